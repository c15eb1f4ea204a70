package config

import (
	"os"
	"path/filepath"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	MusicFolder string `koanf:"music_folder"` // root folder for resolving track paths

	// Last.fm scrobbling (enables scrobbling when configured)
	Lastfm LastfmConfig `koanf:"lastfm"`

	// Discord rich presence
	Discord DiscordConfig `koanf:"discord"`

	// MPRIS media-controls bridge (linux only)
	Mpris MprisConfig `koanf:"mpris"`

	// Playback behavior
	Playback PlaybackConfig `koanf:"playback"`
}

// LastfmConfig holds Last.fm API credentials.
type LastfmConfig struct {
	APIKey    string `koanf:"api_key"`
	APISecret string `koanf:"api_secret"`
}

// DiscordConfig holds Discord rich presence configuration.
type DiscordConfig struct {
	AppID   string `koanf:"app_id"`
	Enabled *bool  `koanf:"enabled"` // default: true when app_id is set
}

// MprisConfig holds MPRIS bridge configuration.
type MprisConfig struct {
	Enabled *bool `koanf:"enabled"` // default: true
}

// PlaybackConfig holds playback startup behavior.
type PlaybackConfig struct {
	RestoreOnLaunch *bool            `koanf:"restore_on_launch"` // default: true
	ListenRetention int              `koanf:"listen_retention_days"`
	Scrobbling      ScrobblingConfig `koanf:"scrobbling"`
}

// ScrobblingConfig holds scrobble submission defaults.
type ScrobblingConfig struct {
	Enabled    *bool `koanf:"enabled"`     // default: true when last.fm is linked
	NowPlaying *bool `koanf:"now_playing"` // default: true
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Try config files in order of priority (last wins)
	configPaths := getConfigPaths()

	for _, path := range configPaths {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	// Expand ~ in music_folder
	if cfg.MusicFolder != "" {
		cfg.MusicFolder = expandPath(cfg.MusicFolder)
	}

	return cfg, nil
}

// Watch reloads the merged configuration whenever one of the existing
// config files changes and passes the result to onChange. The returned
// function stops the watches.
func Watch(onChange func(*Config)) (func(), error) {
	var watched []*file.File

	stop := func() {
		for _, p := range watched {
			_ = p.Unwatch()
		}
	}

	for _, path := range getConfigPaths() {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		p := file.Provider(path)
		err := p.Watch(func(_ interface{}, err error) {
			if err != nil {
				return
			}
			if cfg, err := Load(); err == nil {
				onChange(cfg)
			}
		})
		if err != nil {
			stop()
			return nil, err
		}
		watched = append(watched, p)
	}

	return stop, nil
}

func getConfigPaths() []string {
	paths := []string{}

	// 1. ~/.config/drift/config.toml
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "drift", "config.toml"))
	}

	// 2. ./config.toml (pwd, highest priority)
	paths = append(paths, "config.toml")

	return paths
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// HasLastfmConfig returns true if Last.fm scrobbling is configured.
func (c *Config) HasLastfmConfig() bool {
	return c.Lastfm.APIKey != "" && c.Lastfm.APISecret != ""
}

// HasDiscordConfig returns true if Discord rich presence is configured.
func (c *Config) HasDiscordConfig() bool {
	return c.Discord.AppID != ""
}

// DiscordEnabled reports whether Discord presence should start when configured.
func (c *Config) DiscordEnabled() bool {
	if !c.HasDiscordConfig() {
		return false
	}
	if c.Discord.Enabled == nil {
		return true
	}
	return *c.Discord.Enabled
}

// MprisEnabled reports whether the MPRIS bridge should start.
func (c *Config) MprisEnabled() bool {
	if c.Mpris.Enabled == nil {
		return true
	}
	return *c.Mpris.Enabled
}

// RestoreOnLaunch reports whether the saved session should be restored at startup.
func (c *Config) RestoreOnLaunch() bool {
	if c.Playback.RestoreOnLaunch == nil {
		return true
	}
	return *c.Playback.RestoreOnLaunch
}

// ScrobblingEnabled reports whether scrobble submission is on by default.
func (c *Config) ScrobblingEnabled() bool {
	if !c.HasLastfmConfig() {
		return false
	}
	if c.Playback.Scrobbling.Enabled == nil {
		return true
	}
	return *c.Playback.Scrobbling.Enabled
}

// NowPlayingEnabled reports whether now-playing updates are on by default.
func (c *Config) NowPlayingEnabled() bool {
	if c.Playback.Scrobbling.NowPlaying == nil {
		return true
	}
	return *c.Playback.Scrobbling.NowPlaying
}

// ListenRetentionDays returns the listen history retention with defaults applied.
func (c *Config) ListenRetentionDays() int {
	if c.Playback.ListenRetention <= 0 {
		return 90
	}
	return c.Playback.ListenRetention
}
