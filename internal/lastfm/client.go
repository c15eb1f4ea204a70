// Package lastfm wraps the Last.fm web API for scrobble delivery and
// the desktop authorization flow.
package lastfm

import (
	"errors"
	"fmt"
	"sync"

	"github.com/shkh/lastfm-go/lastfm"
)

// ErrNotAuthenticated is returned when no session key is set.
var ErrNotAuthenticated = errors.New("not authenticated")

// Client submits scrobbles and now-playing updates on behalf of one
// authorized user.
type Client struct {
	mu         sync.Mutex
	api        *lastfm.Api
	apiKey     string
	apiSecret  string
	sessionKey string
}

func New(apiKey, apiSecret string) *Client {
	return &Client{
		api:       lastfm.New(apiKey, apiSecret),
		apiKey:    apiKey,
		apiSecret: apiSecret,
	}
}

// SetSessionKey installs a previously saved session key. An empty key
// de-authenticates the client.
func (c *Client) SetSessionKey(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionKey = key
	c.api.SetSession(key)
}

// IsAuthenticated reports whether a session key is installed.
func (c *Client) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionKey != ""
}

// GetToken requests a fresh authorization token.
func (c *Client) GetToken() (string, error) {
	token, err := c.api.GetToken()
	if err != nil {
		return "", fmt.Errorf("get token: %w", err)
	}
	return token, nil
}

// GetAuthURL builds the page where the user authorizes the token.
func (c *Client) GetAuthURL(token string) string {
	return fmt.Sprintf("https://www.last.fm/api/auth/?api_key=%s&token=%s", c.apiKey, token)
}

// GetSession exchanges an authorized token for a session key and
// resolves the account name behind it.
func (c *Client) GetSession(token string) (username, sessionKey string, err error) {
	if err := c.api.LoginWithToken(token); err != nil {
		return "", "", fmt.Errorf("get session: %w", err)
	}

	sessionKey = c.api.GetSessionKey()
	c.mu.Lock()
	c.sessionKey = sessionKey
	c.mu.Unlock()

	info, err := c.api.User.GetInfo(nil)
	if err != nil {
		// The session works even when the name lookup does not.
		return "unknown", sessionKey, nil //nolint:nilerr // username is cosmetic
	}
	return info.Name, sessionKey, nil
}

// UpdateNowPlaying tells Last.fm what is playing right now.
func (c *Client) UpdateNowPlaying(track ScrobbleTrack) error {
	if !c.IsAuthenticated() {
		return ErrNotAuthenticated
	}
	if _, err := c.api.Track.UpdateNowPlaying(trackParams(track, false)); err != nil {
		return fmt.Errorf("update now playing: %w", err)
	}
	return nil
}

// Scrobble records a completed listen.
func (c *Client) Scrobble(track ScrobbleTrack) error {
	if !c.IsAuthenticated() {
		return ErrNotAuthenticated
	}
	if _, err := c.api.Track.Scrobble(trackParams(track, true)); err != nil {
		return fmt.Errorf("scrobble: %w", err)
	}
	return nil
}

// trackParams builds the signed-call parameter set. Scrobbles carry the
// listen start timestamp; now-playing updates must not.
func trackParams(track ScrobbleTrack, withTimestamp bool) lastfm.P {
	p := lastfm.P{
		"artist": track.Artist,
		"track":  track.Track,
	}
	if withTimestamp {
		p["timestamp"] = track.Timestamp.Unix()
	}
	if track.Album != "" {
		p["album"] = track.Album
	}
	if track.AlbumArtist != "" && track.AlbumArtist != track.Artist {
		p["albumArtist"] = track.AlbumArtist
	}
	if track.Duration > 0 {
		p["duration"] = int(track.Duration.Seconds())
	}
	return p
}
