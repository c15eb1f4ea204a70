package playback

import (
	"time"

	"github.com/llehouerou/drift/internal/player"
	"github.com/llehouerou/drift/internal/playqueue"
)

// Service defines the playback engine contract.
type Service interface {
	// Playback control
	Play() error
	PlayTracks(tracks []playqueue.Track, startIndex int, shuffled bool) error
	Pause() error
	Resume() error
	Toggle() error
	Stop() error
	Next() error
	Previous() error
	JumpTo(index int) error
	Seek(delta time.Duration) error
	SeekTo(position time.Duration) error

	// Queue manipulation
	AddToQueue(tracks ...playqueue.Track)
	PlayNext(t playqueue.Track)
	RemoveFromQueue(index int) error
	ClearQueue()

	// Volume control
	SetVolume(level float64) error
	ToggleMute() error
	Volume() float64
	Muted() bool

	// State queries
	State() State
	Position() time.Duration
	Duration() time.Duration
	CurrentTrack() *playqueue.Track
	QueueTracks() []playqueue.Track
	QueueIndex() int
	QueueLen() int
	QueueIsEmpty() bool
	Player() player.Interface

	// Mode control
	RepeatMode() playqueue.RepeatMode
	SetRepeatMode(mode playqueue.RepeatMode)
	CycleRepeatMode() playqueue.RepeatMode
	Shuffle() bool
	SetShuffle(enabled bool)
	ToggleShuffle() bool

	// Session persistence
	Restore() error
	Suspend() error

	// Event subscription
	Subscribe() *Subscription

	// Lifecycle
	Close() error
}
