// Package settings merges file configuration with persisted runtime
// toggles and fans out change notifications to interested components.
package settings

import (
	"fmt"
	"sync"

	"github.com/llehouerou/drift/internal/config"
	"github.com/llehouerou/drift/internal/state"
)

// Snapshot is an immutable view of the effective integration settings.
type Snapshot struct {
	DiscordEnabled    bool
	MPRISEnabled      bool
	ScrobblingEnabled bool
	NowPlayingEnabled bool
	RestoreOnLaunch   bool
	LastfmLinked      bool
}

// Store holds the effective settings and notifies subscribers on change.
// Toggles persist across restarts; config gates which integrations are
// available at all.
type Store struct {
	mu     sync.Mutex
	cfg    *config.Config
	st     state.Interface
	snap   Snapshot
	subs   map[int]func(Snapshot)
	nextID int
	closed bool
}

// New builds a store from config and the persisted toggles. On first run
// the toggles are seeded from config defaults and saved.
func New(cfg *config.Config, st state.Interface) (*Store, error) {
	saved, err := st.GetIntegrationSettings()
	if err != nil {
		return nil, fmt.Errorf("load integration settings: %w", err)
	}

	if saved == nil {
		seed := state.IntegrationSettings{
			DiscordEnabled:    cfg.DiscordEnabled(),
			MPRISEnabled:      cfg.MprisEnabled(),
			ScrobblingEnabled: cfg.ScrobblingEnabled(),
			NowPlayingEnabled: cfg.NowPlayingEnabled(),
			RestoreOnLaunch:   cfg.RestoreOnLaunch(),
		}
		if err := st.SaveIntegrationSettings(seed); err != nil {
			return nil, fmt.Errorf("seed integration settings: %w", err)
		}
		saved = &seed
	}

	session, err := st.GetLastfmSession()
	if err != nil {
		return nil, fmt.Errorf("load lastfm session: %w", err)
	}

	s := &Store{
		cfg:  cfg,
		st:   st,
		subs: make(map[int]func(Snapshot)),
	}
	s.snap = s.effective(*saved, session != nil)
	return s, nil
}

// effective gates persisted toggles by what config makes possible.
func (s *Store) effective(saved state.IntegrationSettings, linked bool) Snapshot {
	return Snapshot{
		DiscordEnabled:    saved.DiscordEnabled && s.cfg.HasDiscordConfig(),
		MPRISEnabled:      saved.MPRISEnabled,
		ScrobblingEnabled: saved.ScrobblingEnabled && s.cfg.HasLastfmConfig(),
		NowPlayingEnabled: saved.NowPlayingEnabled,
		RestoreOnLaunch:   saved.RestoreOnLaunch,
		LastfmLinked:      linked,
	}
}

// Current returns the effective settings.
func (s *Store) Current() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Subscribe registers fn to be called after every settings change. The
// returned function removes the subscription.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) SetDiscordEnabled(enabled bool) error {
	return s.update(func(snap *Snapshot) {
		snap.DiscordEnabled = enabled && s.cfg.HasDiscordConfig()
	})
}

func (s *Store) SetMPRISEnabled(enabled bool) error {
	return s.update(func(snap *Snapshot) {
		snap.MPRISEnabled = enabled
	})
}

func (s *Store) SetScrobblingEnabled(enabled bool) error {
	return s.update(func(snap *Snapshot) {
		snap.ScrobblingEnabled = enabled && s.cfg.HasLastfmConfig()
	})
}

func (s *Store) SetNowPlayingEnabled(enabled bool) error {
	return s.update(func(snap *Snapshot) {
		snap.NowPlayingEnabled = enabled
	})
}

func (s *Store) SetRestoreOnLaunch(enabled bool) error {
	return s.update(func(snap *Snapshot) {
		snap.RestoreOnLaunch = enabled
	})
}

// SetLastfmLinked records whether a Last.fm session is available. The
// session itself is persisted by the auth flow; this only updates the
// snapshot and notifies subscribers.
func (s *Store) SetLastfmLinked(linked bool) {
	s.mu.Lock()
	if s.closed || s.snap.LastfmLinked == linked {
		s.mu.Unlock()
		return
	}
	s.snap.LastfmLinked = linked
	snap, subs := s.snapshotAndSubs()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

// ReloadConfig swaps the file configuration and recomputes the effective
// snapshot from the persisted toggles. Only the config gates move; the
// saved toggles themselves are untouched.
func (s *Store) ReloadConfig(cfg *config.Config) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}

	saved, err := s.st.GetIntegrationSettings()
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("load integration settings: %w", err)
	}
	if saved == nil {
		s.mu.Unlock()
		return nil
	}

	s.cfg = cfg
	next := s.effective(*saved, s.snap.LastfmLinked)
	if next == s.snap {
		s.mu.Unlock()
		return nil
	}

	s.snap = next
	snap, subs := s.snapshotAndSubs()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
	return nil
}

// update applies a mutation, persists the toggles and notifies
// subscribers. No-op mutations do not notify.
func (s *Store) update(mutate func(*Snapshot)) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}

	next := s.snap
	mutate(&next)
	if next == s.snap {
		s.mu.Unlock()
		return nil
	}

	if err := s.st.SaveIntegrationSettings(state.IntegrationSettings{
		DiscordEnabled:    next.DiscordEnabled,
		MPRISEnabled:      next.MPRISEnabled,
		ScrobblingEnabled: next.ScrobblingEnabled,
		NowPlayingEnabled: next.NowPlayingEnabled,
		RestoreOnLaunch:   next.RestoreOnLaunch,
	}); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("save integration settings: %w", err)
	}

	s.snap = next
	snap, subs := s.snapshotAndSubs()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
	return nil
}

// snapshotAndSubs must be called with the lock held.
func (s *Store) snapshotAndSubs() (Snapshot, []func(Snapshot)) {
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	return s.snap, subs
}

// Close drops all subscriptions. Further setter calls are ignored.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.subs = make(map[int]func(Snapshot))
}
