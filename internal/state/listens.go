package state

import (
	"database/sql"
	"time"

	dbutil "github.com/llehouerou/drift/internal/db"
)

// Listen is one play of a track, recorded when the track starts.
// eligible flips once when the scrobble threshold is crossed; delivered
// flips once a reporting attempt succeeds. Rows are otherwise immutable.
type Listen struct {
	ID           int64
	TrackID      int64
	Artist       string
	Track        string
	Album        string
	DurationSecs int
	StartedAt    time.Time
	Eligible     bool
	Delivered    bool
	Attempts     int
	LastError    string
	CreatedAt    time.Time
}

// CreateListen records the start of a track play and returns the listen id.
func (m *Manager) CreateListen(l Listen) (int64, error) {
	res, err := m.db.Exec(`
		INSERT INTO listens
		(track_id, artist, track, album, duration_seconds, started_at, eligible, delivered, attempts, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, 0, 0, ?)
	`, l.TrackID, l.Artist, l.Track, l.Album, l.DurationSecs, l.StartedAt.Unix(), time.Now().Unix())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// MarkListenEligible durably flags a listen as qualifying for delivery.
func (m *Manager) MarkListenEligible(id int64) error {
	_, err := m.db.Exec(`UPDATE listens SET eligible = 1 WHERE id = ?`, id)
	return err
}

// MarkListenDelivered durably flags a listen as reported.
func (m *Manager) MarkListenDelivered(id int64) error {
	_, err := m.db.Exec(`UPDATE listens SET delivered = 1 WHERE id = ?`, id)
	return err
}

// RecordListenAttempt increments the attempt count and stores the error.
func (m *Manager) RecordListenAttempt(id int64, errMsg string) error {
	_, err := m.db.Exec(`
		UPDATE listens SET attempts = attempts + 1, last_error = ? WHERE id = ?
	`, errMsg, id)
	return err
}

// PendingListens returns eligible-but-undelivered listens, oldest first.
func (m *Manager) PendingListens() ([]Listen, error) {
	rows, err := m.db.Query(`
		SELECT id, track_id, artist, track, album, duration_seconds, started_at,
		       eligible, delivered, attempts, last_error, created_at
		FROM listens
		WHERE eligible = 1 AND delivered = 0
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listens []Listen
	for rows.Next() {
		var l Listen
		var album, lastError sql.NullString
		var startedAt, createdAt int64

		err := rows.Scan(
			&l.ID, &l.TrackID, &l.Artist, &l.Track, &album, &l.DurationSecs,
			&startedAt, &l.Eligible, &l.Delivered, &l.Attempts, &lastError, &createdAt,
		)
		if err != nil {
			return nil, err
		}

		l.Album = dbutil.NullStringValue(album)
		l.LastError = dbutil.NullStringValue(lastError)
		l.StartedAt = time.Unix(startedAt, 0)
		l.CreatedAt = time.Unix(createdAt, 0)
		listens = append(listens, l)
	}

	return listens, rows.Err()
}

// DeleteOldListens removes delivered or abandoned listens older than maxAge.
func (m *Manager) DeleteOldListens(maxAge time.Duration) error {
	cutoff := time.Now().Add(-maxAge).Unix()
	_, err := m.db.Exec(`DELETE FROM listens WHERE created_at < ?`, cutoff)
	return err
}

// PurgeListens removes all listen history (data reset).
func (m *Manager) PurgeListens() error {
	_, err := m.db.Exec(`DELETE FROM listens`)
	return err
}
