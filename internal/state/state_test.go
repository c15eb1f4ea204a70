package state

import (
	"testing"
	"time"
)

// setupTestManager opens a state manager backed by an in-memory database.
func setupTestManager(t *testing.T) *Manager {
	t.Helper()

	m, err := OpenAt(":memory:")
	if err != nil {
		t.Fatalf("failed to open state manager: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestGetPlayback_Empty(t *testing.T) {
	m := setupTestManager(t)

	s, err := m.GetPlayback()
	if err != nil {
		t.Fatalf("GetPlayback failed: %v", err)
	}
	if s != nil {
		t.Errorf("expected nil snapshot on empty db, got %+v", s)
	}
}

func TestSaveAndGetPlayback(t *testing.T) {
	m := setupTestManager(t)

	saved := PlaybackState{
		TrackID:      2,
		CurrentIndex: 1,
		Position:     42 * time.Second,
		RepeatMode:   1,
		Shuffle:      true,
		Tracks: []PlaybackTrack{
			{TrackID: 1, Path: "/a.mp3", Title: "A", Artist: "X", Album: "L", Duration: 3 * time.Minute, ShufflePosition: 2},
			{TrackID: 2, Path: "/b.mp3", Title: "B", Artist: "X", Album: "L", Duration: 4 * time.Minute, ShufflePosition: 0},
			{TrackID: 3, Path: "/c.mp3", Title: "C", ShufflePosition: 1},
		},
	}
	if err := m.SavePlayback(saved); err != nil {
		t.Fatalf("SavePlayback failed: %v", err)
	}

	got, err := m.GetPlayback()
	if err != nil {
		t.Fatalf("GetPlayback failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetPlayback returned nil after save")
	}

	if got.TrackID != 2 || got.CurrentIndex != 1 || got.Position != 42*time.Second {
		t.Errorf("snapshot header = %+v, want track 2 at index 1, 42s", got)
	}
	if got.RepeatMode != 1 || !got.Shuffle {
		t.Errorf("modes = (%d, %v), want (1, true)", got.RepeatMode, got.Shuffle)
	}
	if len(got.Tracks) != 3 {
		t.Fatalf("len(Tracks) = %d, want 3", len(got.Tracks))
	}
	for i, want := range saved.Tracks {
		g := got.Tracks[i]
		if g.TrackID != want.TrackID || g.Path != want.Path || g.ShufflePosition != want.ShufflePosition {
			t.Errorf("track[%d] = %+v, want %+v", i, g, want)
		}
		if g.Duration != want.Duration {
			t.Errorf("track[%d].Duration = %v, want %v", i, g.Duration, want.Duration)
		}
	}
}

func TestSavePlayback_Overwrite(t *testing.T) {
	m := setupTestManager(t)

	first := PlaybackState{
		TrackID:      1,
		CurrentIndex: 0,
		Tracks:       []PlaybackTrack{{TrackID: 1, Path: "/a.mp3", Title: "A", ShufflePosition: -1}},
	}
	if err := m.SavePlayback(first); err != nil {
		t.Fatalf("first SavePlayback failed: %v", err)
	}

	second := PlaybackState{
		TrackID:      9,
		CurrentIndex: 0,
		Tracks:       []PlaybackTrack{{TrackID: 9, Path: "/z.mp3", Title: "Z", ShufflePosition: -1}},
	}
	if err := m.SavePlayback(second); err != nil {
		t.Fatalf("second SavePlayback failed: %v", err)
	}

	got, err := m.GetPlayback()
	if err != nil {
		t.Fatalf("GetPlayback failed: %v", err)
	}
	if len(got.Tracks) != 1 || got.Tracks[0].TrackID != 9 {
		t.Errorf("snapshot = %+v, want single track 9", got)
	}
}

func TestClearPlayback(t *testing.T) {
	m := setupTestManager(t)

	_ = m.SavePlayback(PlaybackState{
		TrackID: 1,
		Tracks:  []PlaybackTrack{{TrackID: 1, Path: "/a.mp3", Title: "A", ShufflePosition: -1}},
	})
	if err := m.ClearPlayback(); err != nil {
		t.Fatalf("ClearPlayback failed: %v", err)
	}

	got, err := m.GetPlayback()
	if err != nil {
		t.Fatalf("GetPlayback failed: %v", err)
	}
	if got != nil {
		t.Errorf("snapshot after clear = %+v, want nil", got)
	}
}

func TestVolume_RoundTrip(t *testing.T) {
	m := setupTestManager(t)

	v, err := m.GetVolume()
	if err != nil {
		t.Fatalf("GetVolume failed: %v", err)
	}
	if v.Volume != 1.0 || v.Muted {
		t.Errorf("default volume = %+v, want 1.0 unmuted", v)
	}

	if err := m.SaveVolume(0.4, true); err != nil {
		t.Fatalf("SaveVolume failed: %v", err)
	}

	v, err = m.GetVolume()
	if err != nil {
		t.Fatalf("GetVolume failed: %v", err)
	}
	if v.Volume != 0.4 || !v.Muted {
		t.Errorf("volume = %+v, want 0.4 muted", v)
	}
}

func TestIntegrationSettings_RoundTrip(t *testing.T) {
	m := setupTestManager(t)

	s, err := m.GetIntegrationSettings()
	if err != nil {
		t.Fatalf("GetIntegrationSettings failed: %v", err)
	}
	if s != nil {
		t.Errorf("expected nil settings before first save, got %+v", s)
	}

	want := IntegrationSettings{
		DiscordEnabled:    true,
		ScrobblingEnabled: true,
		NowPlayingEnabled: true,
		RestoreOnLaunch:   false,
	}
	if err := m.SaveIntegrationSettings(want); err != nil {
		t.Fatalf("SaveIntegrationSettings failed: %v", err)
	}

	s, err = m.GetIntegrationSettings()
	if err != nil {
		t.Fatalf("GetIntegrationSettings failed: %v", err)
	}
	if *s != want {
		t.Errorf("settings = %+v, want %+v", *s, want)
	}
}

func TestListens_Lifecycle(t *testing.T) {
	m := setupTestManager(t)

	id, err := m.CreateListen(Listen{
		TrackID:      7,
		Artist:       "X",
		Track:        "A",
		Album:        "L",
		DurationSecs: 180,
		StartedAt:    time.Now().Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("CreateListen failed: %v", err)
	}
	if id == 0 {
		t.Fatal("CreateListen returned id 0")
	}

	// Not yet eligible: should not show up in the pending set.
	pending, err := m.PendingListens()
	if err != nil {
		t.Fatalf("PendingListens failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending before eligibility = %d, want 0", len(pending))
	}

	if err := m.MarkListenEligible(id); err != nil {
		t.Fatalf("MarkListenEligible failed: %v", err)
	}
	pending, err = m.PendingListens()
	if err != nil {
		t.Fatalf("PendingListens failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending after eligibility = %d, want 1", len(pending))
	}
	if pending[0].ID != id || pending[0].Track != "A" || pending[0].Artist != "X" {
		t.Errorf("pending listen = %+v, want id %d track A by X", pending[0], id)
	}
	if pending[0].DurationSecs != 180 {
		t.Errorf("pending listen DurationSecs = %d, want 180", pending[0].DurationSecs)
	}

	if err := m.RecordListenAttempt(id, "network down"); err != nil {
		t.Fatalf("RecordListenAttempt failed: %v", err)
	}
	pending, _ = m.PendingListens()
	if pending[0].Attempts != 1 || pending[0].LastError != "network down" {
		t.Errorf("attempt state = (%d, %q), want (1, network down)", pending[0].Attempts, pending[0].LastError)
	}

	if err := m.MarkListenDelivered(id); err != nil {
		t.Fatalf("MarkListenDelivered failed: %v", err)
	}
	pending, err = m.PendingListens()
	if err != nil {
		t.Fatalf("PendingListens failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending after delivery = %d, want 0", len(pending))
	}
}

func TestPurgeListens(t *testing.T) {
	m := setupTestManager(t)

	id, err := m.CreateListen(Listen{TrackID: 1, Artist: "X", Track: "A", StartedAt: time.Now()})
	if err != nil {
		t.Fatalf("CreateListen failed: %v", err)
	}
	if err := m.MarkListenEligible(id); err != nil {
		t.Fatalf("MarkListenEligible failed: %v", err)
	}

	if err := m.PurgeListens(); err != nil {
		t.Fatalf("PurgeListens failed: %v", err)
	}

	pending, err := m.PendingListens()
	if err != nil {
		t.Fatalf("PendingListens failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending after purge = %d, want 0", len(pending))
	}
}

func TestLastfmSession_RoundTrip(t *testing.T) {
	m := setupTestManager(t)

	s, err := m.GetLastfmSession()
	if err != nil {
		t.Fatalf("GetLastfmSession failed: %v", err)
	}
	if s != nil {
		t.Errorf("expected nil session, got %+v", s)
	}

	if err := m.SaveLastfmSession("alice", "sk-123"); err != nil {
		t.Fatalf("SaveLastfmSession failed: %v", err)
	}

	s, err = m.GetLastfmSession()
	if err != nil {
		t.Fatalf("GetLastfmSession failed: %v", err)
	}
	if s == nil || s.Username != "alice" || s.SessionKey != "sk-123" {
		t.Errorf("session = %+v, want alice/sk-123", s)
	}

	if err := m.DeleteLastfmSession(); err != nil {
		t.Fatalf("DeleteLastfmSession failed: %v", err)
	}
	s, _ = m.GetLastfmSession()
	if s != nil {
		t.Errorf("session after delete = %+v, want nil", s)
	}
}
