package scrobble

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/llehouerou/drift/internal/lastfm"
	"github.com/llehouerou/drift/internal/playqueue"
	"github.com/llehouerou/drift/internal/state"
)

type fakeReporter struct {
	mu sync.Mutex

	authed        bool
	scrobbleErr   error
	nowPlayingErr error

	scrobbles  []lastfm.ScrobbleTrack
	nowPlaying []lastfm.ScrobbleTrack
}

func (f *fakeReporter) IsAuthenticated() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authed
}

func (f *fakeReporter) UpdateNowPlaying(t lastfm.ScrobbleTrack) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nowPlayingErr != nil {
		return f.nowPlayingErr
	}
	f.nowPlaying = append(f.nowPlaying, t)
	return nil
}

func (f *fakeReporter) Scrobble(t lastfm.ScrobbleTrack) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scrobbleErr != nil {
		return f.scrobbleErr
	}
	f.scrobbles = append(f.scrobbles, t)
	return nil
}

func (f *fakeReporter) scrobbleCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.scrobbles)
}

func testTrack() playqueue.Track {
	return playqueue.Track{ID: 1, Path: "/a.mp3", Title: "T", Artist: "A", Album: "L", Duration: 200 * time.Second}
}

func TestEligible(t *testing.T) {
	tests := []struct {
		name     string
		position time.Duration
		duration time.Duration
		expected bool
	}{
		{
			name:     "short track never eligible",
			position: 29 * time.Second,
			duration: 29 * time.Second,
			expected: false,
		},
		{
			name:     "exactly 30s never eligible",
			position: 30 * time.Second,
			duration: 30 * time.Second,
			expected: false,
		},
		{
			name:     "below half",
			position: 99 * time.Second,
			duration: 200 * time.Second,
			expected: false,
		},
		{
			name:     "at half",
			position: 100 * time.Second,
			duration: 200 * time.Second,
			expected: true,
		},
		{
			name:     "long track before four minutes",
			position: 3 * time.Minute,
			duration: 20 * time.Minute,
			expected: false,
		},
		{
			name:     "long track at four minutes",
			position: 4 * time.Minute,
			duration: 20 * time.Minute,
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Eligible(tt.position, tt.duration); got != tt.expected {
				t.Errorf("Eligible(%v, %v) = %v, want %v", tt.position, tt.duration, got, tt.expected)
			}
		})
	}
}

func TestInitialize_RequiresSession(t *testing.T) {
	rep := &fakeReporter{authed: false}
	s := NewIntegration(rep, state.NewMock(), nil, nil, log.New(io.Discard))

	if err := s.Initialize(); err == nil {
		t.Error("Initialize succeeded without a linked session")
	}

	rep.mu.Lock()
	rep.authed = true
	rep.mu.Unlock()
	if err := s.Initialize(); err != nil {
		t.Errorf("Initialize failed with a session: %v", err)
	}
}

func TestOnTrackChanged_SendsNowPlaying(t *testing.T) {
	rep := &fakeReporter{authed: true}
	s := NewIntegration(rep, state.NewMock(), nil, nil, log.New(io.Discard))

	s.OnTrackChanged(testTrack(), 1)

	if len(rep.nowPlaying) != 1 {
		t.Fatalf("now playing updates = %d, want 1", len(rep.nowPlaying))
	}
	if rep.nowPlaying[0].Track != "T" || rep.nowPlaying[0].Artist != "A" {
		t.Errorf("now playing = %+v, want T by A", rep.nowPlaying[0])
	}
}

func TestOnTrackChanged_NowPlayingDisabled(t *testing.T) {
	rep := &fakeReporter{authed: true}
	s := NewIntegration(rep, state.NewMock(), nil, func() bool { return false }, log.New(io.Discard))

	s.OnTrackChanged(testTrack(), 1)

	if len(rep.nowPlaying) != 0 {
		t.Errorf("now playing updates = %d, want 0 when disabled", len(rep.nowPlaying))
	}
}

func TestOnTrackChanged_NowPlayingFailureIsNotFatal(t *testing.T) {
	rep := &fakeReporter{authed: true, nowPlayingErr: errors.New("api down")}
	st := state.NewMock()
	s := NewIntegration(rep, st, nil, nil, log.New(io.Discard))

	track := testTrack()
	id, _ := st.CreateListen(state.Listen{TrackID: track.ID, Artist: track.Artist, Track: track.Title, StartedAt: time.Now()})

	s.OnTrackChanged(track, id)
	s.OnTrackProgress(track, id, 100*time.Second, track.Duration)

	// The failed now-playing update must not block the scrobble.
	if rep.scrobbleCount() != 1 {
		t.Errorf("scrobbles = %d, want 1", rep.scrobbleCount())
	}
}

func TestOnTrackProgress_MarksAndDeliversOnce(t *testing.T) {
	rep := &fakeReporter{authed: true}
	st := state.NewMock()
	s := NewIntegration(rep, st, nil, nil, log.New(io.Discard))

	track := testTrack()
	id, _ := st.CreateListen(state.Listen{TrackID: track.ID, Artist: track.Artist, Track: track.Title, StartedAt: time.Now()})
	s.OnTrackChanged(track, id)

	// Below threshold: nothing happens.
	s.OnTrackProgress(track, id, 50*time.Second, track.Duration)
	if l := st.Listen(id); l.Eligible {
		t.Error("listen marked eligible below threshold")
	}

	// Crossing the threshold marks and delivers exactly once.
	s.OnTrackProgress(track, id, 100*time.Second, track.Duration)
	s.OnTrackProgress(track, id, 150*time.Second, track.Duration)

	l := st.Listen(id)
	if !l.Eligible || !l.Delivered {
		t.Errorf("listen flags = %+v, want eligible and delivered", l)
	}
	if rep.scrobbleCount() != 1 {
		t.Errorf("scrobbles = %d, want 1", rep.scrobbleCount())
	}
}

func TestOnTrackProgress_ScrobblingDisabled(t *testing.T) {
	rep := &fakeReporter{authed: true}
	st := state.NewMock()
	// Now-playing on, scrobbling off: the integration stays active and
	// keeps sending now-playing updates, but no listen is marked or
	// delivered.
	s := NewIntegration(rep, st, func() bool { return false }, nil, log.New(io.Discard))

	track := testTrack()
	id, _ := st.CreateListen(state.Listen{TrackID: track.ID, Artist: track.Artist, Track: track.Title, StartedAt: time.Now()})
	s.OnTrackChanged(track, id)
	s.OnTrackProgress(track, id, 100*time.Second, track.Duration)

	if len(rep.nowPlaying) != 1 {
		t.Errorf("now playing updates = %d, want 1", len(rep.nowPlaying))
	}
	if l := st.Listen(id); l.Eligible || l.Delivered {
		t.Errorf("listen flags = %+v, want untouched with scrobbling off", l)
	}
	if rep.scrobbleCount() != 0 {
		t.Errorf("scrobbles = %d, want 0 with scrobbling off", rep.scrobbleCount())
	}
}

func TestOnTrackProgress_FailureLeavesPending(t *testing.T) {
	rep := &fakeReporter{authed: true, scrobbleErr: errors.New("network down")}
	st := state.NewMock()
	s := NewIntegration(rep, st, nil, nil, log.New(io.Discard))

	track := testTrack()
	id, _ := st.CreateListen(state.Listen{TrackID: track.ID, Artist: track.Artist, Track: track.Title, StartedAt: time.Now()})
	s.OnTrackChanged(track, id)
	s.OnTrackProgress(track, id, 100*time.Second, track.Duration)

	l := st.Listen(id)
	if !l.Eligible {
		t.Error("listen not marked eligible despite threshold")
	}
	if l.Delivered {
		t.Error("listen marked delivered despite failure")
	}
	if l.Attempts != 1 || l.LastError != "network down" {
		t.Errorf("attempt record = (%d, %q), want (1, network down)", l.Attempts, l.LastError)
	}

	pending, _ := st.PendingListens()
	if len(pending) != 1 {
		t.Errorf("pending listens = %d, want 1 for the reconciler", len(pending))
	}
}

func TestReconciler_DeliversPending(t *testing.T) {
	rep := &fakeReporter{authed: true}
	st := state.NewMock()

	id, _ := st.CreateListen(state.Listen{TrackID: 1, Artist: "A", Track: "T", StartedAt: time.Now()})
	_ = st.MarkListenEligible(id)

	r := NewReconciler(rep, st, log.New(io.Discard))
	r.Sweep()

	if l := st.Listen(id); !l.Delivered {
		t.Error("pending listen not delivered by sweep")
	}
	if rep.scrobbleCount() != 1 {
		t.Errorf("scrobbles = %d, want 1", rep.scrobbleCount())
	}
}

func TestReconciler_SkipsWhenNotAuthenticated(t *testing.T) {
	rep := &fakeReporter{authed: false}
	st := state.NewMock()

	id, _ := st.CreateListen(state.Listen{TrackID: 1, Artist: "A", Track: "T", StartedAt: time.Now()})
	_ = st.MarkListenEligible(id)

	r := NewReconciler(rep, st, log.New(io.Discard))
	r.Sweep()

	if l := st.Listen(id); l.Delivered {
		t.Error("listen delivered without authentication")
	}
}

func TestReconciler_AttemptCap(t *testing.T) {
	rep := &fakeReporter{authed: true}
	st := state.NewMock()

	id, _ := st.CreateListen(state.Listen{TrackID: 1, Artist: "A", Track: "T", StartedAt: time.Now()})
	_ = st.MarkListenEligible(id)
	for i := 0; i < maxAttempts; i++ {
		_ = st.RecordListenAttempt(id, "rejected")
	}

	r := NewReconciler(rep, st, log.New(io.Discard))
	r.Sweep()

	if rep.scrobbleCount() != 0 {
		t.Errorf("scrobbles = %d, want 0 past the attempt cap", rep.scrobbleCount())
	}
}

func TestReconciler_RecordsFailedAttempts(t *testing.T) {
	rep := &fakeReporter{authed: true, scrobbleErr: errors.New("still down")}
	st := state.NewMock()

	id, _ := st.CreateListen(state.Listen{TrackID: 1, Artist: "A", Track: "T", StartedAt: time.Now()})
	_ = st.MarkListenEligible(id)

	r := NewReconciler(rep, st, log.New(io.Discard))
	r.Sweep()
	r.Sweep()

	l := st.Listen(id)
	if l.Delivered {
		t.Error("listen delivered despite failures")
	}
	if l.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", l.Attempts)
	}
}

func TestStartStop(t *testing.T) {
	rep := &fakeReporter{authed: true}
	st := state.NewMock()

	id, _ := st.CreateListen(state.Listen{TrackID: 1, Artist: "A", Track: "T", StartedAt: time.Now()})
	_ = st.MarkListenEligible(id)

	r := NewReconciler(rep, st, log.New(io.Discard))
	r.Start()
	defer r.Stop()

	// The initial sweep runs on Start.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if l := st.Listen(id); l.Delivered {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("initial sweep did not deliver the pending listen")
}
