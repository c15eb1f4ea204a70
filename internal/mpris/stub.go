//go:build !linux

package mpris

import (
	"time"

	"github.com/charmbracelet/log"

	"github.com/llehouerou/drift/internal/playback"
	"github.com/llehouerou/drift/internal/playqueue"
	"github.com/llehouerou/drift/internal/presence"
)

// Integration is a no-op on non-Linux platforms.
type Integration struct{}

// NewIntegration returns a no-op integration on non-Linux platforms.
func NewIntegration(_ playback.Service, _ *log.Logger) *Integration {
	return &Integration{}
}

func (m *Integration) Name() string { return "mpris" }

func (m *Integration) Initialize() error { return nil }

func (m *Integration) OnTrackChanged(playqueue.Track, int64) {}

func (m *Integration) OnPlaybackStateChanged(bool) {}

func (m *Integration) OnTrackProgress(playqueue.Track, int64, time.Duration, time.Duration) {}

func (m *Integration) OnPlaybackStopped() {}

func (m *Integration) Dispose() {}

// Verify Integration satisfies the presence contract at compile time.
var _ presence.Integration = (*Integration)(nil)
