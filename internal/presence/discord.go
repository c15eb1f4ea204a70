package presence

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hugolgst/rich-go/client"

	"github.com/llehouerou/drift/internal/playqueue"
)

// Discord publishes the playing track as Discord rich presence over the
// local IPC socket. Requires a running Discord client; Initialize fails
// when the socket is unavailable.
type Discord struct {
	appID string
	log   *log.Logger

	mu        sync.Mutex
	connected bool
	track     *playqueue.Track
	playing   bool
	startedAt time.Time
}

// NewDiscord creates a Discord presence integration for the given
// application id.
func NewDiscord(appID string, logger *log.Logger) *Discord {
	return &Discord{appID: appID, log: logger}
}

func (d *Discord) Name() string { return "discord" }

// Initialize connects to the local Discord IPC socket.
func (d *Discord) Initialize() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return nil
	}
	if err := client.Login(d.appID); err != nil {
		return fmt.Errorf("discord ipc login: %w", err)
	}
	d.connected = true
	return nil
}

func (d *Discord) OnTrackChanged(track playqueue.Track, _ int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.track = &track
	d.playing = true
	d.startedAt = time.Now()
	d.updateActivityLocked()
}

func (d *Discord) OnPlaybackStateChanged(playing bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.track == nil || d.playing == playing {
		return
	}
	d.playing = playing
	d.updateActivityLocked()
}

// OnTrackProgress keeps the elapsed timestamp honest after seeks. Small
// drift is left alone to avoid hammering the IPC socket.
func (d *Discord) OnTrackProgress(_ playqueue.Track, _ int64, position, _ time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.track == nil || !d.playing {
		return
	}
	expected := time.Now().Add(-position)
	drift := d.startedAt.Sub(expected)
	if drift < -3*time.Second || drift > 3*time.Second {
		d.startedAt = expected
		d.updateActivityLocked()
	}
}

func (d *Discord) OnPlaybackStopped() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.track = nil
	d.playing = false
	if !d.connected {
		return
	}
	// rich-go has no clear-activity call; dropping the connection removes
	// the presence. Initialize reconnects on the next activation.
	client.Logout()
	d.connected = false
}

func (d *Discord) Dispose() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.track = nil
	if d.connected {
		client.Logout()
		d.connected = false
	}
}

// updateActivityLocked pushes the current activity. Reconnects first if
// a stop dropped the IPC connection.
func (d *Discord) updateActivityLocked() {
	if d.track == nil {
		return
	}
	if !d.connected {
		if err := client.Login(d.appID); err != nil {
			d.log.Warn("discord reconnect failed", "err", err)
			return
		}
		d.connected = true
	}

	activity := client.Activity{
		Details:    d.track.Title,
		State:      fmt.Sprintf("by %s", d.track.Artist),
		LargeImage: "drift",
		LargeText:  d.track.Album,
	}
	if d.playing {
		start := d.startedAt
		activity.Timestamps = &client.Timestamps{Start: &start}
	} else {
		activity.SmallImage = "paused"
		activity.SmallText = "Paused"
	}

	if err := client.SetActivity(activity); err != nil {
		d.log.Warn("failed to update discord activity", "err", err)
	}
}

// Verify Discord implements Integration at compile time.
var _ Integration = (*Discord)(nil)
