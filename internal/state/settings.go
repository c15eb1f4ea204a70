package state

import (
	"database/sql"
	"errors"
)

// IntegrationSettings holds the persisted integration toggles.
type IntegrationSettings struct {
	DiscordEnabled    bool
	MPRISEnabled      bool
	ScrobblingEnabled bool
	NowPlayingEnabled bool
	RestoreOnLaunch   bool
}

// GetIntegrationSettings returns the saved toggles, or nil if none were
// saved yet. Callers seed defaults from config on first run.
func (m *Manager) GetIntegrationSettings() (*IntegrationSettings, error) {
	var s IntegrationSettings
	row := m.db.QueryRow(`
		SELECT discord_enabled, mpris_enabled, scrobbling_enabled, now_playing_enabled, restore_on_launch
		FROM integration_settings WHERE id = 1
	`)
	err := row.Scan(&s.DiscordEnabled, &s.MPRISEnabled, &s.ScrobblingEnabled, &s.NowPlayingEnabled, &s.RestoreOnLaunch)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// SaveIntegrationSettings persists the toggles.
func (m *Manager) SaveIntegrationSettings(s IntegrationSettings) error {
	_, err := m.db.Exec(`
		INSERT INTO integration_settings
		(id, discord_enabled, mpris_enabled, scrobbling_enabled, now_playing_enabled, restore_on_launch)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			discord_enabled = excluded.discord_enabled,
			mpris_enabled = excluded.mpris_enabled,
			scrobbling_enabled = excluded.scrobbling_enabled,
			now_playing_enabled = excluded.now_playing_enabled,
			restore_on_launch = excluded.restore_on_launch
	`, s.DiscordEnabled, s.MPRISEnabled, s.ScrobblingEnabled, s.NowPlayingEnabled, s.RestoreOnLaunch)
	return err
}
