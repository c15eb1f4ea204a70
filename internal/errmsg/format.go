// Package errmsg provides consistent error formatting for user-facing messages.
package errmsg

import "fmt"

// Op represents an operation that can fail.
type Op string

// Operation constants - grouped by domain.
const (
	// Playback operations
	OpPlaybackStart   Op = "start playback"
	OpPlaybackPause   Op = "pause playback"
	OpPlaybackResume  Op = "resume playback"
	OpPlaybackStop    Op = "stop playback"
	OpPlaybackNext    Op = "skip to next track"
	OpPlaybackPrev    Op = "skip to previous track"
	OpPlaybackSeek    Op = "seek"
	OpPlaybackVolume  Op = "set volume"
	OpPlaybackRestore Op = "restore saved session"
	OpPlaybackSuspend Op = "save session"

	// Queue operations
	OpQueueLoad   Op = "load queue"
	OpQueueAdd    Op = "add to queue"
	OpQueueRemove Op = "remove from queue"
	OpQueueJump   Op = "jump to queue position"

	// Session state operations
	OpStateOpen  Op = "open state database"
	OpStateSave  Op = "save playback state"
	OpStateClear Op = "clear playback state"

	// Scrobbling operations
	OpScrobbleSubmit  Op = "submit scrobble"
	OpScrobbleAuth    Op = "link last.fm account"
	OpScrobbleHistory Op = "load listen history"

	// Integration operations
	OpIntegrationToggle Op = "update integration settings"

	// Initialization
	OpInitialize Op = "initialize application"
)

// Format creates a user-friendly error message.
func Format(op Op, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Failed to %s: %v", op, err)
}

// FormatWith creates an error message with additional context.
func FormatWith(op Op, context string, err error) string {
	if err == nil {
		return ""
	}
	if context == "" {
		return Format(op, err)
	}
	return fmt.Sprintf("Failed to %s '%s': %v", op, context, err)
}
