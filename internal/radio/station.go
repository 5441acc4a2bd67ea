package radio

// Station is a playable entry from the station directory. Values are
// immutable once loaded.
type Station struct {
	ID          string // Directory identifier (e.g. "groovesalad")
	Title       string // Display name
	Description string // One-line description
	DJ          string // Host or curator
	Genre       string // Pipe-separated genre list
	URL         string // Resolved stream URL
	Image       string // Artwork URL
	LastPlaying string // Last-known "now playing" string from the directory
}

// PlayState represents the current playback state of the session
type PlayState int

const (
	StateStopped PlayState = iota // Nothing bound or output halted
	StatePlaying                  // Audio is flowing to the device
	StatePaused                   // Output paused, stream still bound
)

// String returns a human-readable representation of the PlayState
func (s PlayState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Find returns the index of the station with the given id, or -1.
func Find(stations []Station, id string) int {
	for i, st := range stations {
		if st.ID == id {
			return i
		}
	}
	return -1
}
