package state

import (
	"database/sql"
	"errors"
	"time"

	dbutil "github.com/llehouerou/drift/internal/db"
)

// PlaybackTrack is one queue entry in the saved snapshot.
type PlaybackTrack struct {
	TrackID         int64
	Path            string
	Title           string
	Artist          string
	Album           string
	Duration        time.Duration
	ShufflePosition int // position in the shuffled projection, -1 when shuffle is off
}

// PlaybackState is the persisted playback snapshot.
type PlaybackState struct {
	TrackID      int64
	CurrentIndex int
	Position     time.Duration
	RepeatMode   int
	Shuffle      bool
	Tracks       []PlaybackTrack
}

// GetPlayback returns the saved snapshot, or nil if none was saved.
func (m *Manager) GetPlayback() (*PlaybackState, error) {
	var s PlaybackState
	var positionMS int64
	row := m.db.QueryRow(`
		SELECT track_id, current_index, position_ms, repeat_mode, shuffle
		FROM playback_state WHERE id = 1
	`)
	err := row.Scan(&s.TrackID, &s.CurrentIndex, &positionMS, &s.RepeatMode, &s.Shuffle)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // nil snapshot means nothing to restore
	}
	if err != nil {
		return nil, err
	}
	s.Position = time.Duration(positionMS) * time.Millisecond

	rows, err := m.db.Query(`
		SELECT track_id, path, title, artist, album, duration_ms, shuffle_position
		FROM playback_tracks
		ORDER BY position
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var t PlaybackTrack
		var trackID sql.NullInt64
		var artist, album sql.NullString
		var durationMS int64
		var shufflePos sql.NullInt64

		if err := rows.Scan(&trackID, &t.Path, &t.Title, &artist, &album, &durationMS, &shufflePos); err != nil {
			return nil, err
		}

		t.TrackID = dbutil.NullInt64Value(trackID)
		t.Artist = dbutil.NullStringValue(artist)
		t.Album = dbutil.NullStringValue(album)
		t.Duration = time.Duration(durationMS) * time.Millisecond
		t.ShufflePosition = -1
		if shufflePos.Valid {
			t.ShufflePosition = int(shufflePos.Int64)
		}
		s.Tracks = append(s.Tracks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(s.Tracks) == 0 {
		return nil, nil //nolint:nilnil // an empty queue is nothing to restore
	}
	return &s, nil
}

// SavePlayback replaces the saved snapshot.
func (m *Manager) SavePlayback(s PlaybackState) error {
	return dbutil.WithTx(m.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM playback_tracks`); err != nil {
			return err
		}

		_, err := tx.Exec(`
			INSERT INTO playback_state (id, track_id, current_index, position_ms, repeat_mode, shuffle)
			VALUES (1, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				track_id = excluded.track_id,
				current_index = excluded.current_index,
				position_ms = excluded.position_ms,
				repeat_mode = excluded.repeat_mode,
				shuffle = excluded.shuffle
		`, s.TrackID, s.CurrentIndex, s.Position.Milliseconds(), s.RepeatMode, s.Shuffle)
		if err != nil {
			return err
		}

		stmt, err := tx.Prepare(`
			INSERT INTO playback_tracks (position, shuffle_position, track_id, path, title, artist, album, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, t := range s.Tracks {
			var trackID any
			if t.TrackID > 0 {
				trackID = t.TrackID
			}
			var shufflePos any
			if t.ShufflePosition >= 0 {
				shufflePos = t.ShufflePosition
			}
			if _, err := stmt.Exec(i, shufflePos, trackID, t.Path, t.Title, t.Artist, t.Album, t.Duration.Milliseconds()); err != nil {
				return err
			}
		}
		return nil
	})
}

// ClearPlayback removes the saved snapshot.
func (m *Manager) ClearPlayback() error {
	return dbutil.WithTx(m.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM playback_tracks`); err != nil {
			return err
		}
		_, err := tx.Exec(`DELETE FROM playback_state`)
		return err
	})
}
