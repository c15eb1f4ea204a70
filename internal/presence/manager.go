package presence

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/llehouerou/drift/internal/playback"
	"github.com/llehouerou/drift/internal/playqueue"
	"github.com/llehouerou/drift/internal/settings"
	"github.com/llehouerou/drift/internal/state"
)

// dispatchTimeout is how long an integration call may run before the
// manager logs it as stuck. The call is not killed, only reported.
const dispatchTimeout = 5 * time.Second

// ListenWriter records listen history rows. Satisfied by state.Manager.
type ListenWriter interface {
	CreateListen(l state.Listen) (int64, error)
}

type registration struct {
	integration Integration
	activeWhen  func(settings.Snapshot) bool
}

// Manager routes playback events to whichever integrations the current
// settings activate. Each call runs in its own goroutine with panic
// recovery, so one broken integration cannot take down the rest; event
// broadcasts wait for every call to return before the next event, so
// each integration sees events in order.
type Manager struct {
	mu      sync.Mutex
	log     *log.Logger
	listens ListenWriter

	registry []registration
	active   []Integration

	curTrack  *playqueue.Track
	curListen int64
	playing   bool

	unsubscribe func()
	closed      bool
}

// NewManager creates a presence manager. Integrations are added with
// Register before Start.
func NewManager(listens ListenWriter, logger *log.Logger) *Manager {
	return &Manager{
		log:     logger,
		listens: listens,
	}
}

// Register adds an integration with the settings predicate that governs
// when it is active. Registration order is dispatch order.
func (m *Manager) Register(i Integration, activeWhen func(settings.Snapshot) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registry = append(m.registry, registration{integration: i, activeWhen: activeWhen})
}

// Start activates integrations for the current settings and follows
// later settings changes.
func (m *Manager) Start(store *settings.Store) {
	m.apply(store.Current())
	m.unsubscribe = store.Subscribe(m.apply)
}

// apply reconciles the active set against a settings snapshot. A failed
// Initialize excludes the integration until the next settings change,
// when it is retried.
func (m *Manager) apply(snap settings.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	next := make([]Integration, 0, len(m.registry))
	for _, r := range m.registry {
		name := r.integration.Name()
		want := r.activeWhen(snap)
		isActive := m.isActiveLocked(name)

		switch {
		case want && !isActive:
			if err := r.integration.Initialize(); err != nil {
				// Left out of the active set until the next settings
				// change retries it.
				m.log.Warn("integration failed to initialize, skipping", "integration", name, "err", err)
				continue
			}
			m.log.Info("integration activated", "integration", name)
			next = append(next, r.integration)
			m.catchUpLocked(r.integration)

		case !want && isActive:
			m.log.Info("integration deactivated", "integration", name)
			m.dispatch(r.integration, "deactivate", func(i Integration) {
				i.OnPlaybackStopped()
				i.Dispose()
			})

		case want:
			next = append(next, r.integration)
		}
	}
	m.active = next
}

func (m *Manager) isActiveLocked(name string) bool {
	for _, i := range m.active {
		if i.Name() == name {
			return true
		}
	}
	return false
}

// catchUpLocked replays the current playback context to a freshly
// activated integration so it does not wait for the next track.
func (m *Manager) catchUpLocked(i Integration) {
	if m.curTrack == nil {
		return
	}
	track := *m.curTrack
	listenID := m.curListen
	playing := m.playing
	m.dispatch(i, "catch-up", func(i Integration) {
		i.OnTrackChanged(track, listenID)
		i.OnPlaybackStateChanged(playing)
	})
}

// Run consumes playback events until the subscription closes. Intended
// to run as a goroutine.
func (m *Manager) Run(sub *playback.Subscription) {
	for {
		select {
		case <-sub.Done:
			return
		case ev := <-sub.TrackChanged:
			m.handleTrackChange(ev)
		case ev := <-sub.StateChanged:
			m.handleStateChange(ev)
		case ev := <-sub.PositionChanged:
			m.handleProgress(ev)
		}
	}
}

func (m *Manager) handleTrackChange(ev playback.TrackChange) {
	if ev.Current == nil {
		return
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}

	listenID, err := m.listens.CreateListen(state.Listen{
		TrackID:      ev.Current.ID,
		Artist:       ev.Current.Artist,
		Track:        ev.Current.Title,
		Album:        ev.Current.Album,
		DurationSecs: int(ev.Current.Duration.Seconds()),
		StartedAt:    time.Now(),
	})
	if err != nil {
		m.log.Warn("failed to record listen", "track", ev.Current.Title, "err", err)
		listenID = 0
	}

	track := *ev.Current
	m.curTrack = &track
	m.curListen = listenID
	m.playing = true
	targets := m.activeLocked()
	m.mu.Unlock()

	m.broadcast(targets, "track-changed", func(i Integration) {
		i.OnTrackChanged(track, listenID)
	})
}

func (m *Manager) handleStateChange(ev playback.StateChange) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}

	stopped := ev.Current == playback.StateStopped
	m.playing = ev.Current == playback.StatePlaying
	if stopped {
		m.curTrack = nil
		m.curListen = 0
	}
	playing := m.playing
	targets := m.activeLocked()
	m.mu.Unlock()

	if stopped {
		m.broadcast(targets, "stopped", func(i Integration) {
			i.OnPlaybackStopped()
		})
	} else {
		m.broadcast(targets, "state-changed", func(i Integration) {
			i.OnPlaybackStateChanged(playing)
		})
	}
}

func (m *Manager) handleProgress(ev playback.PositionChange) {
	m.mu.Lock()
	if m.closed || m.curTrack == nil || !m.playing {
		m.mu.Unlock()
		return
	}
	track := *m.curTrack
	listenID := m.curListen
	targets := m.activeLocked()
	m.mu.Unlock()

	m.broadcast(targets, "progress", func(i Integration) {
		i.OnTrackProgress(track, listenID, ev.Position, ev.Duration)
	})
}

func (m *Manager) activeLocked() []Integration {
	out := make([]Integration, len(m.active))
	copy(out, m.active)
	return out
}

// broadcast fans fn out to all targets concurrently and waits for every
// call to return before the next event is processed, so each
// integration sees events in playback order.
func (m *Manager) broadcast(targets []Integration, op string, fn func(Integration)) {
	var wg sync.WaitGroup
	for _, i := range targets {
		wg.Add(1)
		go func(i Integration) {
			defer wg.Done()
			m.call(i, op, fn)
		}(i)
	}
	wg.Wait()
}

// dispatch runs one integration call in its own goroutine without
// waiting. Used off the event path (activation, teardown).
func (m *Manager) dispatch(i Integration, op string, fn func(Integration)) {
	go m.call(i, op, fn)
}

// call runs one integration call. Panics are recovered and logged;
// calls exceeding dispatchTimeout are reported but left running, there
// is no way to kill them.
func (m *Manager) call(i Integration, op string, fn func(Integration)) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("integration panicked", "integration", i.Name(), "op", op, "panic", r)
		}
	}()

	timer := time.AfterFunc(dispatchTimeout, func() {
		m.log.Warn("integration call is taking too long", "integration", i.Name(), "op", op)
	})
	defer timer.Stop()

	fn(i)
}

// Close deactivates all integrations and detaches from settings.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	targets := m.active
	m.active = nil
	m.mu.Unlock()

	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	for _, i := range targets {
		m.dispatch(i, "close", func(i Integration) {
			i.OnPlaybackStopped()
			i.Dispose()
		})
	}
}
