// internal/state/interface.go
package state

import (
	"database/sql"
	"time"
)

// Interface defines the state manager contract for dependency injection
// and testing.
type Interface interface {
	DB() *sql.DB

	SavePlayback(s PlaybackState) error
	GetPlayback() (*PlaybackState, error)
	ClearPlayback() error

	GetVolume() (*VolumeState, error)
	SaveVolume(volume float64, muted bool) error

	GetIntegrationSettings() (*IntegrationSettings, error)
	SaveIntegrationSettings(s IntegrationSettings) error

	GetLastfmSession() (*LastfmSession, error)
	SaveLastfmSession(username, sessionKey string) error
	DeleteLastfmSession() error

	CreateListen(l Listen) (int64, error)
	MarkListenEligible(id int64) error
	MarkListenDelivered(id int64) error
	RecordListenAttempt(id int64, errMsg string) error
	PendingListens() ([]Listen, error)
	DeleteOldListens(maxAge time.Duration) error
	PurgeListens() error

	Close() error
}

// Verify Manager implements Interface at compile time.
var _ Interface = (*Manager)(nil)
