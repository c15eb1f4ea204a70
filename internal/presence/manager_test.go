package presence

import (
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/llehouerou/drift/internal/config"
	"github.com/llehouerou/drift/internal/playback"
	"github.com/llehouerou/drift/internal/playqueue"
	"github.com/llehouerou/drift/internal/settings"
	"github.com/llehouerou/drift/internal/state"
)

type fakeIntegration struct {
	mu sync.Mutex

	name          string
	initErr       error
	panicOnTrack  bool
	progressDelay time.Duration

	initCalls    int
	trackIDs     []int64
	listenIDs    []int64
	stateCalls   []bool
	progressCnt  int
	stopCalls    int
	disposeCalls int
	events       []string
}

func (f *fakeIntegration) Name() string { return f.name }

func (f *fakeIntegration) Initialize() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initCalls++
	return f.initErr
}

func (f *fakeIntegration) OnTrackChanged(track playqueue.Track, listenID int64) {
	f.mu.Lock()
	f.trackIDs = append(f.trackIDs, track.ID)
	f.listenIDs = append(f.listenIDs, listenID)
	f.events = append(f.events, "track")
	panicking := f.panicOnTrack
	f.mu.Unlock()
	if panicking {
		panic("integration exploded")
	}
}

func (f *fakeIntegration) OnPlaybackStateChanged(playing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stateCalls = append(f.stateCalls, playing)
}

func (f *fakeIntegration) OnTrackProgress(playqueue.Track, int64, time.Duration, time.Duration) {
	f.mu.Lock()
	delay := f.progressDelay
	f.mu.Unlock()
	time.Sleep(delay)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.progressCnt++
	f.events = append(f.events, "progress")
}

func (f *fakeIntegration) OnPlaybackStopped() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
}

func (f *fakeIntegration) Dispose() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disposeCalls++
}

func (f *fakeIntegration) snapshot() fakeIntegration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fakeIntegration{
		initCalls:    f.initCalls,
		trackIDs:     append([]int64(nil), f.trackIDs...),
		listenIDs:    append([]int64(nil), f.listenIDs...),
		stateCalls:   append([]bool(nil), f.stateCalls...),
		progressCnt:  f.progressCnt,
		stopCalls:    f.stopCalls,
		disposeCalls: f.disposeCalls,
		events:       append([]string(nil), f.events...),
	}
}

// Verify the fake implements Integration at compile time.
var _ Integration = (*fakeIntegration)(nil)

func waitFor(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
}

func newTestStore(t *testing.T, st *state.Mock) *settings.Store {
	t.Helper()
	cfg := &config.Config{
		Lastfm:  config.LastfmConfig{APIKey: "k", APISecret: "s"},
		Discord: config.DiscordConfig{AppID: "12345"},
	}
	store, err := settings.New(cfg, st)
	if err != nil {
		t.Fatalf("settings.New failed: %v", err)
	}
	return store
}

func discordEnabled(s settings.Snapshot) bool { return s.DiscordEnabled }

func trackChange(id int64) playback.TrackChange {
	return playback.TrackChange{
		Current: &playqueue.Track{ID: id, Title: "T", Artist: "A", Album: "L", Duration: 3 * time.Minute},
		Index:   0,
	}
}

func TestActivationFollowsSettings(t *testing.T) {
	st := state.NewMock()
	store := newTestStore(t, st)
	fake := &fakeIntegration{name: "discord"}

	m := NewManager(st, log.New(io.Discard))
	m.Register(fake, discordEnabled)
	m.Start(store)
	defer m.Close()

	if got := fake.snapshot(); got.initCalls != 1 {
		t.Errorf("initCalls = %d, want 1", got.initCalls)
	}

	m.handleTrackChange(trackChange(7))
	waitFor(t, "track dispatch", func() bool {
		return len(fake.snapshot().trackIDs) == 1
	})

	if err := store.SetDiscordEnabled(false); err != nil {
		t.Fatalf("SetDiscordEnabled failed: %v", err)
	}
	waitFor(t, "deactivation", func() bool {
		s := fake.snapshot()
		return s.stopCalls >= 1 && s.disposeCalls >= 1
	})

	// Deactivated integrations receive no further events.
	before := len(fake.snapshot().trackIDs)
	m.handleTrackChange(trackChange(8))
	time.Sleep(50 * time.Millisecond)
	if got := len(fake.snapshot().trackIDs); got != before {
		t.Errorf("trackIDs after deactivation = %d, want %d", got, before)
	}
}

func TestFailedInitializeExcludedUntilNextChange(t *testing.T) {
	st := state.NewMock()
	store := newTestStore(t, st)
	bad := &fakeIntegration{name: "discord", initErr: errors.New("socket unavailable")}
	good := &fakeIntegration{name: "mpris"}

	m := NewManager(st, log.New(io.Discard))
	m.Register(bad, discordEnabled)
	m.Register(good, func(settings.Snapshot) bool { return true })
	m.Start(store)
	defer m.Close()

	m.handleTrackChange(trackChange(1))
	waitFor(t, "good integration dispatch", func() bool {
		return len(good.snapshot().trackIDs) == 1
	})
	if got := len(bad.snapshot().trackIDs); got != 0 {
		t.Errorf("failed integration got %d track events, want 0", got)
	}

	// A settings change retries the failed integration.
	bad.mu.Lock()
	bad.initErr = nil
	bad.mu.Unlock()
	if err := store.SetNowPlayingEnabled(false); err != nil {
		t.Fatalf("SetNowPlayingEnabled failed: %v", err)
	}
	waitFor(t, "retry after settings change", func() bool {
		return bad.snapshot().initCalls >= 2
	})
}

func TestCatchUpOnActivation(t *testing.T) {
	st := state.NewMock()
	store := newTestStore(t, st)
	_ = store.SetDiscordEnabled(false)
	fake := &fakeIntegration{name: "discord"}

	m := NewManager(st, log.New(io.Discard))
	m.Register(fake, discordEnabled)
	m.Start(store)
	defer m.Close()

	// A track starts while the integration is inactive.
	m.handleTrackChange(trackChange(42))
	time.Sleep(20 * time.Millisecond)
	if got := len(fake.snapshot().trackIDs); got != 0 {
		t.Fatalf("inactive integration got %d track events, want 0", got)
	}

	// Enabling it replays the current context.
	if err := store.SetDiscordEnabled(true); err != nil {
		t.Fatalf("SetDiscordEnabled failed: %v", err)
	}
	waitFor(t, "catch-up dispatch", func() bool {
		s := fake.snapshot()
		return len(s.trackIDs) == 1 && s.trackIDs[0] == 42 && len(s.stateCalls) == 1
	})
}

func TestListenRecordedOncePerPlay(t *testing.T) {
	st := state.NewMock()
	store := newTestStore(t, st)
	fake := &fakeIntegration{name: "discord"}

	m := NewManager(st, log.New(io.Discard))
	m.Register(fake, discordEnabled)
	m.Start(store)
	defer m.Close()

	m.handleTrackChange(trackChange(7))
	waitFor(t, "track dispatch", func() bool {
		return len(fake.snapshot().listenIDs) == 1
	})

	listenID := fake.snapshot().listenIDs[0]
	if listenID == 0 {
		t.Fatal("listenID = 0, want a recorded listen")
	}
	l := st.Listen(listenID)
	if l == nil || l.TrackID != 7 || l.Track != "T" || l.Artist != "A" {
		t.Errorf("listen row = %+v, want track 7 T by A", l)
	}
	if l.Eligible || l.Delivered {
		t.Errorf("fresh listen flags = %+v, want not eligible, not delivered", l)
	}
}

func TestBroadcastPreservesEventOrder(t *testing.T) {
	st := state.NewMock()
	store := newTestStore(t, st)
	slow := &fakeIntegration{name: "discord", progressDelay: 50 * time.Millisecond}

	m := NewManager(st, log.New(io.Discard))
	m.Register(slow, discordEnabled)
	m.Start(store)
	defer m.Close()

	// A slow progress handler must finish before the next track change
	// is delivered, or the integration would see the events swapped.
	m.handleTrackChange(trackChange(1))
	m.handleProgress(playback.PositionChange{Position: time.Second, Duration: time.Minute})
	m.handleTrackChange(trackChange(2))

	got := strings.Join(slow.snapshot().events, ",")
	if got != "track,progress,track" {
		t.Errorf("event order = %q, want track,progress,track", got)
	}
}

func TestPanicIsolation(t *testing.T) {
	st := state.NewMock()
	store := newTestStore(t, st)
	angry := &fakeIntegration{name: "discord", panicOnTrack: true}
	calm := &fakeIntegration{name: "mpris"}

	m := NewManager(st, log.New(io.Discard))
	m.Register(angry, discordEnabled)
	m.Register(calm, func(settings.Snapshot) bool { return true })
	m.Start(store)
	defer m.Close()

	m.handleTrackChange(trackChange(1))
	waitFor(t, "calm integration dispatch", func() bool {
		return len(calm.snapshot().trackIDs) == 1
	})

	// The manager survives and keeps dispatching.
	m.handleTrackChange(trackChange(2))
	waitFor(t, "second dispatch", func() bool {
		return len(calm.snapshot().trackIDs) == 2
	})
}

func TestStopClearsContext(t *testing.T) {
	st := state.NewMock()
	store := newTestStore(t, st)
	fake := &fakeIntegration{name: "discord"}

	m := NewManager(st, log.New(io.Discard))
	m.Register(fake, discordEnabled)
	m.Start(store)
	defer m.Close()

	m.handleTrackChange(trackChange(1))
	m.handleStateChange(playback.StateChange{Previous: playback.StatePlaying, Current: playback.StateStopped})
	waitFor(t, "stop dispatch", func() bool {
		return fake.snapshot().stopCalls >= 1
	})

	// Progress after stop has no current track and is not dispatched.
	m.handleProgress(playback.PositionChange{Position: time.Second})
	time.Sleep(20 * time.Millisecond)
	if got := fake.snapshot().progressCnt; got != 0 {
		t.Errorf("progress dispatches after stop = %d, want 0", got)
	}
}

func TestClose_DisposesActive(t *testing.T) {
	st := state.NewMock()
	store := newTestStore(t, st)
	fake := &fakeIntegration{name: "discord"}

	m := NewManager(st, log.New(io.Discard))
	m.Register(fake, discordEnabled)
	m.Start(store)

	m.Close()
	waitFor(t, "dispose on close", func() bool {
		return fake.snapshot().disposeCalls >= 1
	})

	// Events after close are ignored.
	m.handleTrackChange(trackChange(9))
	time.Sleep(20 * time.Millisecond)
	if got := len(fake.snapshot().trackIDs); got != 0 {
		t.Errorf("trackIDs after close = %d, want 0", got)
	}
}
