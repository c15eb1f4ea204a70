package scrobble

import (
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/llehouerou/drift/internal/lastfm"
	"github.com/llehouerou/drift/internal/playqueue"
	"github.com/llehouerou/drift/internal/presence"
)

// Integration reports plays to Last.fm as a presence integration. Now
// playing updates are best effort and sent once per track; scrobble
// eligibility is marked durably before the live submission attempt, so
// a crash or network failure leaves the listen pending for the
// reconciler instead of losing it.
type Integration struct {
	client     Reporter
	store      ListenStore
	scrobbling func() bool
	nowPlaying func() bool
	log        *log.Logger

	mu             sync.Mutex
	track          *playqueue.Track
	listenID       int64
	startedAt      time.Time
	nowPlayingSent bool
	markedListen   int64 // listen id already marked eligible this session
}

// NewIntegration creates the Last.fm presence integration. The two
// gates are read at dispatch time: scrobbling covers listen delivery,
// nowPlaying the optional now-playing updates. Either may be nil,
// which means always on. The integration stays active as long as one
// of them is enabled, so toggling scrobbling off does not silence
// now-playing updates or vice versa.
func NewIntegration(client Reporter, store ListenStore, scrobbling, nowPlaying func() bool, logger *log.Logger) *Integration {
	return &Integration{
		client:     client,
		store:      store,
		scrobbling: scrobbling,
		nowPlaying: nowPlaying,
		log:        logger,
	}
}

func (s *Integration) Name() string { return "lastfm" }

// Initialize verifies a linked session exists.
func (s *Integration) Initialize() error {
	if !s.client.IsAuthenticated() {
		return errors.New("no last.fm session linked")
	}
	return nil
}

func (s *Integration) OnTrackChanged(track playqueue.Track, listenID int64) {
	s.mu.Lock()
	s.track = &track
	s.listenID = listenID
	s.startedAt = time.Now()
	s.nowPlayingSent = false
	sendNow := s.nowPlaying == nil || s.nowPlaying()
	s.mu.Unlock()

	if !sendNow {
		return
	}
	// Best effort: a failed now-playing update is logged and forgotten.
	err := s.client.UpdateNowPlaying(toNowPlaying(track))
	s.mu.Lock()
	s.nowPlayingSent = err == nil
	s.mu.Unlock()
	if err != nil {
		s.log.Debug("now playing update failed", "track", track.Title, "err", err)
	}
}

func (s *Integration) OnPlaybackStateChanged(bool) {}

// OnTrackProgress decides eligibility. The durable eligible flag is
// written before the live submission, then delivery is attempted once;
// on failure the listen stays pending for the reconciler.
func (s *Integration) OnTrackProgress(track playqueue.Track, listenID int64, position, duration time.Duration) {
	if listenID == 0 {
		return
	}
	if s.scrobbling != nil && !s.scrobbling() {
		return
	}
	if duration == 0 {
		duration = track.Duration
	}

	s.mu.Lock()
	if s.markedListen == listenID || !Eligible(position, duration) {
		s.mu.Unlock()
		return
	}
	s.markedListen = listenID
	startedAt := s.startedAt
	s.mu.Unlock()

	if err := s.store.MarkListenEligible(listenID); err != nil {
		s.log.Warn("failed to mark listen eligible", "listen", listenID, "err", err)
		return
	}

	scrobble := toNowPlaying(track)
	scrobble.Timestamp = startedAt
	if err := s.client.Scrobble(scrobble); err != nil {
		s.log.Warn("live scrobble failed, leaving pending", "track", track.Title, "err", err)
		if rerr := s.store.RecordListenAttempt(listenID, err.Error()); rerr != nil {
			s.log.Warn("failed to record scrobble attempt", "listen", listenID, "err", rerr)
		}
		return
	}
	if err := s.store.MarkListenDelivered(listenID); err != nil {
		s.log.Warn("failed to mark listen delivered", "listen", listenID, "err", err)
	}
}

func (s *Integration) OnPlaybackStopped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track = nil
	s.listenID = 0
	s.nowPlayingSent = false
}

func (s *Integration) Dispose() {
	s.OnPlaybackStopped()
}

// Verify Integration satisfies the presence contract at compile time.
var _ presence.Integration = (*Integration)(nil)

func toNowPlaying(track playqueue.Track) lastfm.ScrobbleTrack {
	return lastfm.ScrobbleTrack{
		Artist:   track.Artist,
		Track:    track.Title,
		Album:    track.Album,
		Duration: track.Duration,
	}
}
