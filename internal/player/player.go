package player

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
)

const (
	eventBufferSize  = 16
	positionInterval = 500 * time.Millisecond
)

var speakerOnce sync.Once

// Player is the beep-backed audio device.
type Player struct {
	mu sync.Mutex

	state    State
	path     string
	gen      int // load generation; stale end-of-track callbacks are ignored
	ctrl     *beep.Ctrl
	volume   *effects.Volume
	streamer beep.StreamSeekCloser
	format   beep.Format
	file     *os.File
	duration time.Duration

	volumeLevel float64
	muted       bool

	events chan Event
	done   chan struct{}
}

// New creates a new player. The speaker is initialized lazily on the
// first Load, at that track's sample rate.
func New() *Player {
	p := &Player{
		state:       Stopped,
		volumeLevel: 1.0,
		events:      make(chan Event, eventBufferSize),
		done:        make(chan struct{}),
	}
	go p.positionLoop()
	return p
}

// Load opens a track and prepares it for playback, paused at position 0.
// The previous track, if any, is released first.
func (p *Player) Load(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()

	streamer, format, f, err := decode(path)
	if err != nil {
		return err
	}

	var initErr error
	speakerOnce.Do(func() {
		initErr = speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10))
	})
	if initErr != nil {
		streamer.Close()
		f.Close()
		return initErr
	}

	p.gen++
	gen := p.gen
	p.path = path
	p.file = f
	p.streamer = streamer
	p.format = format
	p.duration = format.SampleRate.D(streamer.Len())
	p.ctrl = &beep.Ctrl{Streamer: beep.Resample(4, format.SampleRate, format.SampleRate, streamer), Paused: true}
	p.volume = &effects.Volume{
		Streamer: p.ctrl,
		Base:     2,
		Volume:   levelToVolume(p.volumeLevel),
		Silent:   p.muted || p.volumeLevel <= 0,
	}
	p.state = Paused

	speaker.Play(beep.Seq(p.volume, beep.Callback(func() {
		p.trackEnded(gen, path)
	})))

	p.send(Opened{Path: path, Duration: p.duration})
	return nil
}

// Play starts or resumes playback of the loaded track.
func (p *Player) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctrl == nil {
		return
	}
	speaker.Lock()
	p.ctrl.Paused = false
	speaker.Unlock()
	p.state = Playing
}

// Pause pauses playback.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Playing || p.ctrl == nil {
		return
	}
	speaker.Lock()
	p.ctrl.Paused = true
	speaker.Unlock()
	p.state = Paused
}

// Stop stops playback and releases the loaded track.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Player) stopLocked() {
	if p.state == Stopped {
		return
	}
	speaker.Clear()
	if p.streamer != nil {
		p.streamer.Close()
		p.streamer = nil
	}
	if p.file != nil {
		p.file.Close()
		p.file = nil
	}
	p.gen++ // invalidate the pending end-of-track callback
	p.ctrl = nil
	p.volume = nil
	p.path = ""
	p.duration = 0
	p.state = Stopped
}

// SeekTo seeks to an absolute position in the loaded track.
func (p *Player) SeekTo(pos time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.streamer == nil {
		return
	}
	if pos < 0 {
		pos = 0
	}
	if pos > p.duration {
		pos = p.duration
	}
	speaker.Lock()
	err := p.streamer.Seek(p.format.SampleRate.N(pos))
	speaker.Unlock()
	if err != nil {
		p.send(Error{Path: p.path, Err: fmt.Errorf("seek: %w", err)})
	}
}

// SetVolume sets the volume level (0.0 to 1.0).
func (p *Player) SetVolume(level float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	p.volumeLevel = level
	if p.volume != nil {
		speaker.Lock()
		p.volume.Volume = levelToVolume(level)
		p.volume.Silent = p.muted || level <= 0
		speaker.Unlock()
	}
}

// SetMuted sets the muted state without losing the volume level.
func (p *Player) SetMuted(muted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.muted = muted
	if p.volume != nil {
		speaker.Lock()
		p.volume.Silent = muted || p.volumeLevel <= 0
		speaker.Unlock()
	}
}

// Volume returns the current volume level.
func (p *Player) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volumeLevel
}

// Muted returns true if audio is muted.
func (p *Player) Muted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.muted
}

// State returns the device state.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Position returns the playback position of the loaded track.
func (p *Player) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionLocked()
}

func (p *Player) positionLocked() time.Duration {
	if p.streamer == nil {
		return 0
	}
	speaker.Lock()
	pos := p.format.SampleRate.D(p.streamer.Position())
	speaker.Unlock()
	return pos
}

// Duration returns the duration of the loaded track.
func (p *Player) Duration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duration
}

// Events returns the device event channel.
func (p *Player) Events() <-chan Event {
	return p.events
}

// Close stops playback and the position loop.
func (p *Player) Close() error {
	p.mu.Lock()
	select {
	case <-p.done:
		p.mu.Unlock()
		return nil
	default:
	}
	p.stopLocked()
	close(p.done)
	p.mu.Unlock()
	return nil
}

func (p *Player) trackEnded(gen int, path string) {
	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		return
	}
	p.state = Stopped
	p.mu.Unlock()
	p.send(Ended{Path: path})
}

func (p *Player) positionLoop() {
	ticker := time.NewTicker(positionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.mu.Lock()
			if p.state != Playing {
				p.mu.Unlock()
				continue
			}
			ev := Position{Position: p.positionLocked(), Duration: p.duration}
			p.mu.Unlock()
			p.send(ev)
		}
	}
}

// send delivers an event without blocking; a full buffer drops it.
func (p *Player) send(e Event) {
	select {
	case p.events <- e:
	default:
	}
}

func decode(path string) (beep.StreamSeekCloser, beep.Format, *os.File, error) {
	ext := strings.ToLower(filepath.Ext(path))
	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, nil, err
	}

	var streamer beep.StreamSeekCloser
	var format beep.Format
	switch ext {
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	case ".flac":
		streamer, format, err = flac.Decode(f)
	default:
		err = fmt.Errorf("unsupported format: %s", ext)
	}
	if err != nil {
		f.Close()
		return nil, beep.Format{}, nil, err
	}
	return streamer, format, f, nil
}

// levelToVolume converts a 0.0-1.0 level to beep's logarithmic scale.
// Volume 0 means no change, -1 half volume, -2 quarter, and so on.
func levelToVolume(level float64) float64 {
	if level <= 0 {
		return -10
	}
	if level >= 1 {
		return 0
	}
	return math.Log2(level)
}
