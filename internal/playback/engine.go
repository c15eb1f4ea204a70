// internal/playback/engine.go
package playback

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/llehouerou/drift/internal/player"
	"github.com/llehouerou/drift/internal/playqueue"
	"github.com/llehouerou/drift/internal/state"
)

// Verify engine implements Service at compile time.
var _ Service = (*engine)(nil)

// restartThreshold is how far into a track Previous restarts it instead
// of moving to the prior track.
const restartThreshold = 3 * time.Second

type engine struct {
	mu sync.Mutex

	player player.Interface
	queue  *playqueue.Queue
	st     state.Interface
	log    *log.Logger

	state       State
	repeat      playqueue.RepeatMode
	currentPath string // path of the loaded track; device events for other paths are stale

	subs   []*Subscription
	subsMu sync.RWMutex

	done   chan struct{}
	closed bool
}

// New creates a playback engine driving the given audio device and
// persisting session state through st. The saved volume is applied
// immediately; the saved queue is not restored until Restore is called.
func New(p player.Interface, st state.Interface, logger *log.Logger) Service {
	e := &engine{
		player: p,
		queue:  playqueue.New(),
		st:     st,
		log:    logger,
		done:   make(chan struct{}),
	}

	if v, err := st.GetVolume(); err != nil {
		logger.Warn("failed to load saved volume", "err", err)
	} else {
		p.SetVolume(v.Volume)
		p.SetMuted(v.Muted)
	}

	go e.loop()
	return e
}

// loop consumes audio device events until the engine is closed.
func (e *engine) loop() {
	for {
		select {
		case <-e.done:
			return
		case ev, ok := <-e.player.Events():
			if !ok {
				return
			}
			switch ev := ev.(type) {
			case player.Position:
				e.broadcast(func(s *Subscription) {
					s.sendPosition(PositionChange{Position: ev.Position, Duration: ev.Duration})
				})
			case player.Ended:
				e.handleEnded(ev.Path)
			case player.Error:
				e.broadcast(func(s *Subscription) {
					s.sendError(ErrorEvent{Operation: "playback", Path: ev.Path, Err: ev.Err})
				})
			}
		}
	}
}

// handleEnded advances the queue when the loaded track plays to
// completion. Ended events from a superseded load are dropped.
func (e *engine) handleEnded(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || path != e.currentPath {
		return
	}

	if e.queue.Next(e.repeat) == nil {
		e.stopLocked()
		e.saveSnapshotLocked(0)
		return
	}
	if err := e.startCurrentLocked(); err != nil {
		e.log.Warn("failed to start next track", "err", err)
	}
}

// startCurrentLocked loads and plays the queue's current track. Tracks
// that fail to load are skipped, bounded by the queue length so a fully
// broken queue cannot loop forever.
func (e *engine) startCurrentLocked() error {
	prev := e.queue.Current()
	prevIndex := e.queue.CurrentIndex()

	var lastErr error
	for attempts := 0; attempts < e.queue.Len(); attempts++ {
		t := e.queue.Current()
		if t == nil {
			break
		}

		if err := e.player.Load(t.Path); err != nil {
			lastErr = err
			e.log.Warn("failed to load track, skipping", "path", t.Path, "err", err)
			e.broadcast(func(s *Subscription) {
				s.sendError(ErrorEvent{Operation: "load", Path: t.Path, Err: err})
			})

			skip := e.repeat
			if skip == playqueue.RepeatOne {
				skip = playqueue.RepeatOff
			}
			if e.queue.Next(skip) == nil {
				break
			}
			continue
		}

		e.currentPath = t.Path
		e.player.Play()
		e.setStateLocked(StatePlaying)

		cur := *t
		index := e.queue.CurrentIndex()
		e.broadcast(func(s *Subscription) {
			s.sendTrack(TrackChange{
				Previous:      prev,
				Current:       &cur,
				PreviousIndex: prevIndex,
				Index:         index,
			})
		})
		e.saveSnapshotLocked(0)
		return nil
	}

	e.stopLocked()
	if lastErr != nil {
		return fmt.Errorf("no playable track in queue: %w", lastErr)
	}
	return nil
}

// stopLocked halts the device and records the stopped state. The queue
// position is kept so playback can resume where it left off.
func (e *engine) stopLocked() {
	e.player.Stop()
	e.currentPath = ""
	e.setStateLocked(StateStopped)
}

func (e *engine) setStateLocked(s State) {
	if e.state == s {
		return
	}
	prev := e.state
	e.state = s
	e.broadcast(func(sub *Subscription) {
		sub.sendState(StateChange{Previous: prev, Current: s})
	})
}

// Play starts or resumes playback of the current track.
func (e *engine) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StatePaused:
		e.player.Play()
		e.setStateLocked(StatePlaying)
		return nil
	case StatePlaying:
		return nil
	default:
		if e.queue.Current() == nil {
			return nil
		}
		return e.startCurrentLocked()
	}
}

// PlayTracks replaces the queue and starts playback. With shuffled set,
// a fresh shuffle order is generated and playback starts at a random
// position in it; otherwise playback starts at startIndex. An empty
// track list is a no-op.
func (e *engine) PlayTracks(tracks []playqueue.Track, startIndex int, shuffled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.queue.Replace(tracks, startIndex, shuffled) == nil {
		return nil
	}
	e.broadcastQueueLocked()
	e.broadcastModeLocked()
	return e.startCurrentLocked()
}

// Pause pauses playback.
func (e *engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StatePlaying {
		return nil
	}
	e.player.Pause()
	e.setStateLocked(StatePaused)
	return nil
}

// Resume resumes paused playback.
func (e *engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StatePaused {
		return nil
	}
	e.player.Play()
	e.setStateLocked(StatePlaying)
	return nil
}

// Toggle switches between playing and paused. From stopped it behaves
// like Play.
func (e *engine) Toggle() error {
	e.mu.Lock()
	playing := e.state == StatePlaying
	e.mu.Unlock()

	if playing {
		return e.Pause()
	}
	return e.Play()
}

// Stop halts playback but keeps the queue and position for a later Play.
func (e *engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateStopped {
		return nil
	}
	e.stopLocked()
	e.saveSnapshotLocked(0)
	return nil
}

// Next moves to the next track in the active ordering. Manual skips
// ignore repeat-one. At the end of the queue with repeat off, playback
// stops.
func (e *engine) Next() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	mode := e.repeat
	if mode == playqueue.RepeatOne {
		mode = playqueue.RepeatOff
	}
	if e.queue.Next(mode) == nil {
		if e.state.IsActive() {
			e.stopLocked()
			e.saveSnapshotLocked(0)
		}
		return nil
	}
	return e.startCurrentLocked()
}

// Previous restarts the current track when more than a few seconds in,
// otherwise moves back one position. At the start of the queue the
// current track restarts.
func (e *engine) Previous() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.IsActive() && e.player.Position() > restartThreshold {
		e.player.SeekTo(0)
		e.broadcastPositionLocked(0)
		return nil
	}

	mode := e.repeat
	if mode == playqueue.RepeatOne {
		mode = playqueue.RepeatOff
	}
	if e.queue.Previous(mode) == nil {
		if e.state.IsActive() {
			e.player.SeekTo(0)
			e.broadcastPositionLocked(0)
		}
		return nil
	}
	return e.startCurrentLocked()
}

// JumpTo starts playback at the given queue index.
func (e *engine) JumpTo(index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.queue.JumpTo(index) == nil {
		return fmt.Errorf("queue index %d out of range", index)
	}
	return e.startCurrentLocked()
}

// Seek moves the playback position by delta.
func (e *engine) Seek(delta time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seekToLocked(e.player.Position() + delta)
}

// SeekTo moves the playback position to an absolute offset.
func (e *engine) SeekTo(position time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seekToLocked(position)
}

func (e *engine) seekToLocked(position time.Duration) error {
	if !e.state.IsActive() {
		return nil
	}
	if position < 0 {
		position = 0
	}
	if d := e.player.Duration(); d > 0 && position > d {
		position = d
	}
	e.player.SeekTo(position)
	e.broadcastPositionLocked(position)
	return nil
}

// AddToQueue appends tracks to the queue. Adding to an empty queue cues
// the first track without starting playback.
func (e *engine) AddToQueue(tracks ...playqueue.Track) {
	if len(tracks) == 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.queue.Add(tracks...)
	if e.queue.CurrentIndex() < 0 {
		e.queue.JumpTo(0)
	}
	e.broadcastQueueLocked()
	e.saveSnapshotLocked(e.player.Position())
}

// PlayNext inserts a track immediately after the current one.
func (e *engine) PlayNext(t playqueue.Track) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.queue.InsertNext(t)
	if e.queue.CurrentIndex() < 0 {
		e.queue.JumpTo(0)
	}
	e.broadcastQueueLocked()
	e.saveSnapshotLocked(e.player.Position())
}

// RemoveFromQueue removes the track at the given index. Removing the
// playing track advances to what followed it in the active ordering, or
// stops when it was the last one.
func (e *engine) RemoveFromQueue(index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	removedCurrent, ok := e.queue.RemoveAt(index)
	if !ok {
		return fmt.Errorf("queue index %d out of range", index)
	}

	if removedCurrent {
		wasActive := e.state.IsActive()
		if e.queue.Current() == nil || !wasActive {
			e.stopLocked()
		} else if err := e.startCurrentLocked(); err != nil {
			e.log.Warn("failed to start track after removal", "err", err)
		}
	}
	e.broadcastQueueLocked()
	e.saveSnapshotLocked(0)
	return nil
}

// ClearQueue removes all tracks and stops playback.
func (e *engine) ClearQueue() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.queue.Clear()
	e.stopLocked()
	e.broadcastQueueLocked()
	if err := e.st.ClearPlayback(); err != nil {
		e.log.Warn("failed to clear saved playback", "err", err)
	}
}

// SetVolume sets the output volume (clamped to [0, 1]) and persists it.
func (e *engine) SetVolume(level float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	e.player.SetVolume(level)
	muted := e.player.Muted()
	if err := e.st.SaveVolume(level, muted); err != nil {
		e.log.Warn("failed to save volume", "err", err)
	}
	e.broadcast(func(s *Subscription) {
		s.sendVolume(VolumeChange{Volume: level, Muted: muted})
	})
	return nil
}

// ToggleMute flips the mute state and persists it.
func (e *engine) ToggleMute() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	muted := !e.player.Muted()
	e.player.SetMuted(muted)
	level := e.player.Volume()
	if err := e.st.SaveVolume(level, muted); err != nil {
		e.log.Warn("failed to save volume", "err", err)
	}
	e.broadcast(func(s *Subscription) {
		s.sendVolume(VolumeChange{Volume: level, Muted: muted})
	})
	return nil
}

func (e *engine) Volume() float64 {
	return e.player.Volume()
}

func (e *engine) Muted() bool {
	return e.player.Muted()
}

// State returns the current playback state.
func (e *engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Position returns the current playback position.
func (e *engine) Position() time.Duration {
	return e.player.Position()
}

// Duration returns the current track duration.
func (e *engine) Duration() time.Duration {
	return e.player.Duration()
}

// CurrentTrack returns the current track, or nil if none.
func (e *engine) CurrentTrack() *playqueue.Track {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queue.Current()
}

// QueueTracks returns a copy of the queue in linear order.
func (e *engine) QueueTracks() []playqueue.Track {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queue.Tracks()
}

// QueueIndex returns the current queue index (-1 if none).
func (e *engine) QueueIndex() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queue.CurrentIndex()
}

// QueueLen returns the number of queued tracks.
func (e *engine) QueueLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queue.Len()
}

// QueueIsEmpty returns true if the queue has no tracks.
func (e *engine) QueueIsEmpty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queue.IsEmpty()
}

// Player exposes the underlying audio device.
func (e *engine) Player() player.Interface {
	return e.player
}

// RepeatMode returns the current repeat mode.
func (e *engine) RepeatMode() playqueue.RepeatMode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.repeat
}

// SetRepeatMode sets the repeat mode and persists it.
func (e *engine) SetRepeatMode(mode playqueue.RepeatMode) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.repeat == mode {
		return
	}
	e.repeat = mode
	e.broadcastModeLocked()
	e.saveSnapshotLocked(e.player.Position())
}

// CycleRepeatMode advances off -> all -> one -> off.
func (e *engine) CycleRepeatMode() playqueue.RepeatMode {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.repeat {
	case playqueue.RepeatOff:
		e.repeat = playqueue.RepeatAll
	case playqueue.RepeatAll:
		e.repeat = playqueue.RepeatOne
	default:
		e.repeat = playqueue.RepeatOff
	}
	e.broadcastModeLocked()
	e.saveSnapshotLocked(e.player.Position())
	return e.repeat
}

// Shuffle returns whether shuffle is enabled.
func (e *engine) Shuffle() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queue.Shuffle()
}

// SetShuffle toggles shuffle. The playing track is never interrupted:
// only the ordering projection changes.
func (e *engine) SetShuffle(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.queue.Shuffle() == enabled {
		return
	}
	e.queue.SetShuffle(enabled)
	e.broadcastModeLocked()
	e.saveSnapshotLocked(e.player.Position())
}

// ToggleShuffle flips shuffle and returns the new value.
func (e *engine) ToggleShuffle() bool {
	e.mu.Lock()
	enabled := !e.queue.Shuffle()
	e.mu.Unlock()
	e.SetShuffle(enabled)
	return enabled
}

// Subscribe creates a new event subscription.
func (e *engine) Subscribe() *Subscription {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	sub := newSubscription()
	e.subs = append(e.subs, sub)
	return sub
}

// Restore rebuilds the queue, modes and cued track from the saved
// session. The track is loaded and seeked but playback does not start.
func (e *engine) Restore() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	saved, err := e.st.GetPlayback()
	if err != nil {
		return fmt.Errorf("load saved playback: %w", err)
	}
	if saved == nil {
		return nil
	}

	e.queue.Restore(toQueueSnapshot(saved))
	e.repeat = playqueue.RepeatMode(saved.RepeatMode)
	e.broadcastQueueLocked()
	e.broadcastModeLocked()

	t := e.queue.Current()
	if t == nil {
		return nil
	}
	if err := e.player.Load(t.Path); err != nil {
		e.log.Warn("failed to cue saved track", "path", t.Path, "err", err)
		return nil
	}
	e.currentPath = t.Path
	if saved.Position > 0 {
		e.player.SeekTo(saved.Position)
	}
	e.setStateLocked(StatePaused)
	e.broadcastPositionLocked(saved.Position)
	return nil
}

// Suspend saves the session including the in-track position and halts
// the device. Intended for shutdown.
func (e *engine) Suspend() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.queue.IsEmpty() {
		if err := e.st.ClearPlayback(); err != nil {
			return fmt.Errorf("clear saved playback: %w", err)
		}
		return nil
	}

	// When stopped, the last queue mutation already persisted a snapshot;
	// only active playback has a live position to capture.
	if !e.state.IsActive() {
		return nil
	}

	if err := e.saveSnapshotErrLocked(e.player.Position()); err != nil {
		return err
	}
	e.player.Stop()
	e.setStateLocked(StateStopped)
	e.currentPath = ""
	return nil
}

// Close suspends the session and shuts the engine down.
func (e *engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	if err := e.Suspend(); err != nil {
		e.log.Warn("failed to save session on close", "err", err)
	}
	close(e.done)

	e.subsMu.Lock()
	for _, sub := range e.subs {
		sub.close()
	}
	e.subs = nil
	e.subsMu.Unlock()

	return e.player.Close()
}

// broadcast delivers an event to every subscription.
func (e *engine) broadcast(send func(*Subscription)) {
	e.subsMu.RLock()
	defer e.subsMu.RUnlock()
	for _, sub := range e.subs {
		send(sub)
	}
}

func (e *engine) broadcastQueueLocked() {
	ev := QueueChange{Tracks: e.queue.Tracks(), Index: e.queue.CurrentIndex()}
	e.broadcast(func(s *Subscription) { s.sendQueue(ev) })
}

func (e *engine) broadcastModeLocked() {
	ev := ModeChange{RepeatMode: e.repeat, Shuffle: e.queue.Shuffle()}
	e.broadcast(func(s *Subscription) { s.sendMode(ev) })
}

func (e *engine) broadcastPositionLocked(pos time.Duration) {
	ev := PositionChange{Position: pos, Duration: e.player.Duration()}
	e.broadcast(func(s *Subscription) { s.sendPosition(ev) })
}

// saveSnapshotLocked persists the session; failures are logged, never
// fatal to playback.
func (e *engine) saveSnapshotLocked(pos time.Duration) {
	if err := e.saveSnapshotErrLocked(pos); err != nil {
		e.log.Warn("failed to save playback state", "err", err)
	}
}

func (e *engine) saveSnapshotErrLocked(pos time.Duration) error {
	snap := e.queue.Snapshot()

	ps := state.PlaybackState{
		CurrentIndex: snap.CurrentIndex,
		Position:     pos,
		RepeatMode:   int(e.repeat),
		Shuffle:      snap.Shuffle,
		Tracks:       make([]state.PlaybackTrack, len(snap.Tracks)),
	}
	if cur := e.queue.Current(); cur != nil {
		ps.TrackID = cur.ID
	}

	shufflePos := make([]int, len(snap.Tracks))
	for i := range shufflePos {
		shufflePos[i] = -1
	}
	for orderPos, linearIdx := range snap.ShuffleOrder {
		shufflePos[linearIdx] = orderPos
	}

	for i, t := range snap.Tracks {
		ps.Tracks[i] = state.PlaybackTrack{
			TrackID:         t.ID,
			Path:            t.Path,
			Title:           t.Title,
			Artist:          t.Artist,
			Album:           t.Album,
			Duration:        t.Duration,
			ShufflePosition: shufflePos[i],
		}
	}

	if err := e.st.SavePlayback(ps); err != nil {
		return fmt.Errorf("save playback state: %w", err)
	}
	return nil
}

// toQueueSnapshot converts a saved session back into queue form. A
// corrupt shuffle order is handled by the queue, which falls back to a
// fresh permutation.
func toQueueSnapshot(saved *state.PlaybackState) playqueue.Snapshot {
	snap := playqueue.Snapshot{
		Tracks:       make([]playqueue.Track, len(saved.Tracks)),
		CurrentIndex: saved.CurrentIndex,
		Shuffle:      saved.Shuffle,
	}
	for i, t := range saved.Tracks {
		snap.Tracks[i] = playqueue.Track{
			ID:       t.TrackID,
			Path:     t.Path,
			Title:    t.Title,
			Artist:   t.Artist,
			Album:    t.Album,
			Duration: t.Duration,
		}
	}
	if saved.Shuffle {
		order := make([]int, len(saved.Tracks))
		for i := range order {
			order[i] = -1
		}
		for i, t := range saved.Tracks {
			if t.ShufflePosition >= 0 && t.ShufflePosition < len(order) {
				order[t.ShufflePosition] = i
			}
		}
		snap.ShuffleOrder = order
	}
	return snap
}
