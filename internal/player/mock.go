// internal/player/mock.go
package player

import (
	"sync"
	"time"
)

// Mock is a test double for the audio device.
type Mock struct {
	mu sync.Mutex

	state       State
	path        string
	position    time.Duration
	duration    time.Duration
	volumeLevel float64
	muted       bool

	loadErr     error
	loadErrFor  map[string]error
	loadCalls   []string
	seekCalls   []time.Duration
	volumeCalls []float64

	events chan Event
}

// NewMock creates a new mock audio device for testing.
func NewMock() *Mock {
	return &Mock{
		state:       Stopped,
		volumeLevel: 1.0,
		loadErrFor:  make(map[string]error),
		events:      make(chan Event, eventBufferSize),
	}
}

func (m *Mock) Load(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadCalls = append(m.loadCalls, path)
	if err, ok := m.loadErrFor[path]; ok {
		return err
	}
	if m.loadErr != nil {
		return m.loadErr
	}
	m.path = path
	m.position = 0
	m.state = Paused
	return nil
}

func (m *Mock) Play() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.path != "" {
		m.state = Playing
	}
}

func (m *Mock) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Playing {
		m.state = Paused
	}
}

func (m *Mock) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = Stopped
	m.path = ""
	m.position = 0
}

func (m *Mock) SeekTo(pos time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seekCalls = append(m.seekCalls, pos)
	m.position = pos
}

func (m *Mock) SetVolume(level float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volumeCalls = append(m.volumeCalls, level)
	m.volumeLevel = level
}

func (m *Mock) SetMuted(muted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.muted = muted
}

func (m *Mock) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volumeLevel
}

func (m *Mock) Muted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.muted
}

func (m *Mock) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Mock) Position() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

func (m *Mock) Duration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.duration
}

func (m *Mock) Events() <-chan Event { return m.events }

func (m *Mock) Close() error { return nil }

// Test helpers

func (m *Mock) SetLoadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadErr = err
}

// SetLoadErrorFor makes Load fail for one specific path only.
func (m *Mock) SetLoadErrorFor(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadErrFor[path] = err
}

func (m *Mock) SetPosition(pos time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.position = pos
}

func (m *Mock) SetDuration(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.duration = d
}

func (m *Mock) LoadCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.loadCalls))
	copy(out, m.loadCalls)
	return out
}

func (m *Mock) SeekCalls() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]time.Duration, len(m.seekCalls))
	copy(out, m.seekCalls)
	return out
}

// Emit injects a device event, as the real device would.
func (m *Mock) Emit(e Event) {
	select {
	case m.events <- e:
	default:
	}
}

// SimulateEnded marks the device stopped and emits Ended for the loaded
// track.
func (m *Mock) SimulateEnded() {
	m.mu.Lock()
	path := m.path
	m.state = Stopped
	m.mu.Unlock()
	m.Emit(Ended{Path: path})
}
