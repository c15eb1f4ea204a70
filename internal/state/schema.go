package state

import (
	"database/sql"
)

const currentSchemaVersion = 3

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		);

		CREATE TABLE IF NOT EXISTS playback_state (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			track_id INTEGER NOT NULL DEFAULT 0,
			current_index INTEGER NOT NULL DEFAULT -1,
			position_ms INTEGER NOT NULL DEFAULT 0,
			repeat_mode INTEGER NOT NULL DEFAULT 0,
			shuffle INTEGER NOT NULL DEFAULT 0,
			volume REAL NOT NULL DEFAULT 1.0,
			muted INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS playback_tracks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			position INTEGER NOT NULL,
			shuffle_position INTEGER,
			track_id INTEGER,
			path TEXT NOT NULL,
			title TEXT NOT NULL,
			artist TEXT,
			album TEXT,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			UNIQUE(position)
		);

		CREATE INDEX IF NOT EXISTS idx_playback_tracks_position ON playback_tracks(position);

		CREATE TABLE IF NOT EXISTS integration_settings (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			discord_enabled INTEGER NOT NULL DEFAULT 0,
			mpris_enabled INTEGER NOT NULL DEFAULT 0,
			scrobbling_enabled INTEGER NOT NULL DEFAULT 0,
			now_playing_enabled INTEGER NOT NULL DEFAULT 0,
			restore_on_launch INTEGER NOT NULL DEFAULT 1
		);

		CREATE TABLE IF NOT EXISTS lastfm_session (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			username TEXT NOT NULL,
			session_key TEXT NOT NULL,
			linked_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS listens (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			track_id INTEGER NOT NULL,
			artist TEXT NOT NULL,
			track TEXT NOT NULL,
			album TEXT,
			duration_seconds INTEGER NOT NULL DEFAULT 0,
			started_at INTEGER NOT NULL,
			eligible INTEGER NOT NULL DEFAULT 0,
			delivered INTEGER NOT NULL DEFAULT 0,
			attempts INTEGER NOT NULL DEFAULT 0,
			last_error TEXT,
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_listens_pending ON listens(eligible, delivered);
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		INSERT OR IGNORE INTO schema_version (version) VALUES (?)
	`, currentSchemaVersion)
	if err != nil {
		return err
	}

	// Migration: add restore_on_launch column if missing
	_, _ = db.Exec(`ALTER TABLE integration_settings ADD COLUMN restore_on_launch INTEGER NOT NULL DEFAULT 1`)

	// Migration: add shuffle_position column if missing
	_, _ = db.Exec(`ALTER TABLE playback_tracks ADD COLUMN shuffle_position INTEGER`)

	return nil
}
