// Package scrobble implements Last.fm listen reporting with durable
// at-least-once delivery. Eligibility is decided once per play; listens
// that cannot be submitted live are retried by the reconciler.
package scrobble

import (
	"time"

	"github.com/llehouerou/drift/internal/lastfm"
	"github.com/llehouerou/drift/internal/state"
)

// Reporter is the Last.fm client surface used for submission.
type Reporter interface {
	IsAuthenticated() bool
	UpdateNowPlaying(track lastfm.ScrobbleTrack) error
	Scrobble(track lastfm.ScrobbleTrack) error
}

// ListenStore is the listen history surface used for durable delivery
// tracking. Satisfied by state.Manager.
type ListenStore interface {
	MarkListenEligible(id int64) error
	MarkListenDelivered(id int64) error
	RecordListenAttempt(id int64, errMsg string) error
	PendingListens() ([]state.Listen, error)
}

// Eligible reports whether a play at the given position counts as a
// listen: the track must be longer than 30 seconds and played for at
// least half its length or 4 minutes, whichever comes first.
func Eligible(position, duration time.Duration) bool {
	if duration <= 30*time.Second {
		return false
	}
	return position >= duration/2 || position >= 4*time.Minute
}

func toScrobbleTrack(l state.Listen) lastfm.ScrobbleTrack {
	return lastfm.ScrobbleTrack{
		Artist:    l.Artist,
		Track:     l.Track,
		Album:     l.Album,
		Duration:  time.Duration(l.DurationSecs) * time.Second,
		Timestamp: l.StartedAt,
	}
}
