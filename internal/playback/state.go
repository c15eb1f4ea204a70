package playback

// State is the engine lifecycle state. Stopped means nothing is cued;
// Paused means a track is loaded and holding at a position.
type State int

const (
	StateStopped State = iota
	StatePlaying
	StatePaused
)

var stateNames = [...]string{
	StateStopped: "Stopped",
	StatePlaying: "Playing",
	StatePaused:  "Paused",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}

// IsActive reports whether a track is loaded (playing or paused).
func (s State) IsActive() bool {
	return s != StateStopped
}
