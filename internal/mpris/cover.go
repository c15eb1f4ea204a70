//go:build linux

package mpris

import (
	"os"
	"path/filepath"
)

var (
	coverBases = []string{"cover", "folder", "album", "front"}
	coverExts  = []string{".jpg", ".png", ".jpeg"}
)

// albumArtPath probes the track's directory for an album art file,
// trying base names in priority order. Returns "" when none exists.
func albumArtPath(trackPath string) string {
	dir := filepath.Dir(trackPath)
	for _, base := range coverBases {
		for _, ext := range coverExts {
			candidate := filepath.Join(dir, base+ext)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	return ""
}
