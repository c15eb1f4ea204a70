// internal/state/mock.go
package state

import (
	"database/sql"
	"sync"
	"time"
)

// Mock is a test double for Manager.
type Mock struct {
	mu sync.Mutex

	playback  *PlaybackState
	volume    *VolumeState
	settings  *IntegrationSettings
	session   *LastfmSession
	listens   map[int64]*Listen
	nextID    int64
	saveErr   error
	saveCalls int
	closed    bool
}

// NewMock creates a new mock state manager for testing.
func NewMock() *Mock {
	return &Mock{listens: make(map[int64]*Listen)}
}

func (m *Mock) DB() *sql.DB { return nil }

func (m *Mock) SavePlayback(s PlaybackState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveCalls++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.playback = &s
	return nil
}

func (m *Mock) GetPlayback() (*PlaybackState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playback, nil
}

func (m *Mock) ClearPlayback() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playback = nil
	return nil
}

func (m *Mock) GetVolume() (*VolumeState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.volume == nil {
		return &VolumeState{Volume: 1.0}, nil
	}
	return m.volume, nil
}

func (m *Mock) SaveVolume(volume float64, muted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = &VolumeState{Volume: volume, Muted: muted}
	return nil
}

func (m *Mock) GetIntegrationSettings() (*IntegrationSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings, nil
}

func (m *Mock) SaveIntegrationSettings(s IntegrationSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = &s
	return nil
}

func (m *Mock) GetLastfmSession() (*LastfmSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session, nil
}

func (m *Mock) SaveLastfmSession(username, sessionKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = &LastfmSession{Username: username, SessionKey: sessionKey, LinkedAt: time.Now()}
	return nil
}

func (m *Mock) DeleteLastfmSession() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}

func (m *Mock) CreateListen(l Listen) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	l.ID = m.nextID
	l.CreatedAt = time.Now()
	m.listens[l.ID] = &l
	return l.ID, nil
}

func (m *Mock) MarkListenEligible(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.listens[id]; ok {
		l.Eligible = true
	}
	return nil
}

func (m *Mock) MarkListenDelivered(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.listens[id]; ok {
		l.Delivered = true
	}
	return nil
}

func (m *Mock) RecordListenAttempt(id int64, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.listens[id]; ok {
		l.Attempts++
		l.LastError = errMsg
	}
	return nil
}

func (m *Mock) PendingListens() ([]Listen, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Listen
	for _, l := range m.listens {
		if l.Eligible && !l.Delivered {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (m *Mock) DeleteOldListens(_ time.Duration) error { return nil }

func (m *Mock) PurgeListens() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listens = make(map[int64]*Listen)
	return nil
}

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Test helpers

func (m *Mock) SetPlayback(s *PlaybackState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playback = s
}

func (m *Mock) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = err
}

func (m *Mock) SetSession(s *LastfmSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = s
}

func (m *Mock) SaveCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveCalls
}

func (m *Mock) Listen(id int64) *Listen {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.listens[id]; ok {
		cp := *l
		return &cp
	}
	return nil
}

func (m *Mock) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Verify Mock implements Interface at compile time.
var _ Interface = (*Mock)(nil)
