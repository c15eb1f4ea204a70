package player

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLevelToVolume(t *testing.T) {
	// 0 is beep's "no change"; halving the level drops one octave.
	assert.Equal(t, 0.0, levelToVolume(1.0))
	assert.Equal(t, -1.0, levelToVolume(0.5))
	assert.Equal(t, -2.0, levelToVolume(0.25))

	// Zero and below collapse to the silence floor.
	assert.Equal(t, -10.0, levelToVolume(0))
	assert.Equal(t, -10.0, levelToVolume(-0.3))

	// Above 1.0 never amplifies.
	assert.Equal(t, 0.0, levelToVolume(1.5))
}

func TestDecode_UnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "track.wav")
	if err := os.WriteFile(path, []byte("not audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, _, _, err := decode(path)
	assert.ErrorContains(t, err, "unsupported format")
}

func TestDecode_MissingFile(t *testing.T) {
	_, _, _, err := decode(filepath.Join(t.TempDir(), "missing.mp3"))
	assert.Error(t, err)
}

func TestMock_LoadCuesPaused(t *testing.T) {
	m := NewMock()

	assert.NoError(t, m.Load("/a.mp3"))
	assert.Equal(t, Paused, m.State())
	assert.Equal(t, time.Duration(0), m.Position())

	m.Play()
	assert.Equal(t, Playing, m.State())

	m.Stop()
	assert.Equal(t, Stopped, m.State())

	// Play without a loaded track stays stopped.
	m.Play()
	assert.Equal(t, Stopped, m.State())
}

func TestMock_SimulateEnded(t *testing.T) {
	m := NewMock()
	assert.NoError(t, m.Load("/a.mp3"))
	m.Play()
	m.SimulateEnded()

	assert.Equal(t, Stopped, m.State())

	select {
	case ev := <-m.Events():
		ended, ok := ev.(Ended)
		assert.True(t, ok, "expected Ended event, got %T", ev)
		assert.Equal(t, "/a.mp3", ended.Path)
	default:
		t.Fatal("no event emitted")
	}
}
