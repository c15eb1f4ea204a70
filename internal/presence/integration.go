// Package presence broadcasts playback activity to external surfaces
// (Discord rich presence, Last.fm scrobbling, MPRIS). Integrations are
// activated and deactivated from settings without the playback engine
// knowing they exist.
package presence

import (
	"time"

	"github.com/llehouerou/drift/internal/playqueue"
)

// Integration is one external presence surface. Implementations are
// called from dispatch goroutines and must tolerate concurrent calls; a
// panic or a hang in one integration never reaches the others.
type Integration interface {
	// Name identifies the integration in logs and settings predicates.
	Name() string

	// Initialize connects the integration. An error excludes it from the
	// active set until the next settings change.
	Initialize() error

	// OnTrackChanged reports a fresh playback start. listenID identifies
	// the listen history row for this play, 0 if none was recorded.
	OnTrackChanged(track playqueue.Track, listenID int64)

	// OnPlaybackStateChanged reports play/pause flips.
	OnPlaybackStateChanged(playing bool)

	// OnTrackProgress reports the playback position while playing.
	OnTrackProgress(track playqueue.Track, listenID int64, position, duration time.Duration)

	// OnPlaybackStopped reports that playback halted entirely.
	OnPlaybackStopped()

	// Dispose releases resources. Called on deactivation and shutdown.
	Dispose()
}
