// internal/player/interface.go
package player

import "time"

// State represents the audio device state.
type State int

const (
	Stopped State = iota
	Playing
	Paused
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Stopped:
		return "Stopped"
	case Playing:
		return "Playing"
	case Paused:
		return "Paused"
	default:
		return "Unknown"
	}
}

// Event is a playback event from the audio device.
type Event interface{ event() }

// Opened is emitted when Load has opened a track.
type Opened struct {
	Path     string
	Duration time.Duration
}

// Position is emitted periodically while playing.
type Position struct {
	Position time.Duration
	Duration time.Duration
}

// Ended is emitted when the current track plays to completion.
type Ended struct {
	Path string
}

// Error is emitted on a device-level failure.
type Error struct {
	Path string
	Err  error
}

func (Opened) event()   {}
func (Position) event() {}
func (Ended) event()    {}
func (Error) event()    {}

// Interface defines the audio device contract for dependency injection
// and testing. Load opens a track without starting playback; it returns
// once the track is decodable or fails. Decoding and output are the
// device's business, not the engine's.
type Interface interface {
	Load(path string) error
	Play()
	Pause()
	Stop()
	SeekTo(pos time.Duration)
	SetVolume(level float64)
	SetMuted(muted bool)
	Volume() float64
	Muted() bool
	State() State
	Position() time.Duration
	Duration() time.Duration
	Events() <-chan Event
	Close() error
}

// Verify implementations at compile time.
var (
	_ Interface = (*Player)(nil)
	_ Interface = (*Mock)(nil)
)
