package playback

import (
	"time"

	"github.com/llehouerou/drift/internal/playqueue"
)

// StateChange is emitted when playback state changes.
type StateChange struct {
	Previous State
	Current  State
}

// TrackChange is emitted when playback starts on a track.
//
// Emitted by:
//   - Play/PlayTracks/JumpTo: when a track is loaded and started
//   - Next/Previous: when navigating with playback control
//   - track end: when a track ends and the engine advances, including a
//     repeat-one restart of the same track
//
// NOT emitted by:
//   - Pause/Resume/Stop: state changes do not emit TrackChange
//   - Restore: cueing a saved track does not start playback
//
// Every TrackChange is a fresh playback start, so listeners that count
// plays (scrobbling, listen history) count one per event.
type TrackChange struct {
	Previous      *playqueue.Track
	Current       *playqueue.Track
	PreviousIndex int
	Index         int
}

// QueueChange is emitted when the queue contents or position change.
type QueueChange struct {
	Tracks []playqueue.Track
	Index  int
}

// ModeChange is emitted when repeat or shuffle mode changes.
type ModeChange struct {
	RepeatMode playqueue.RepeatMode
	Shuffle    bool
}

// PositionChange is emitted periodically while playing and after a seek.
type PositionChange struct {
	Position time.Duration
	Duration time.Duration
}

// VolumeChange is emitted when volume or mute changes.
type VolumeChange struct {
	Volume float64
	Muted  bool
}

// ErrorEvent is emitted when an error occurs during playback.
type ErrorEvent struct {
	Operation string // e.g., "load", "seek"
	Path      string // track path if applicable
	Err       error
}
