// Package control defines playback commands and the UDP channel that
// carries them between processes.
package control

import "fmt"

// Kind identifies a command
type Kind int

const (
	Play Kind = iota
	Stop
	TogglePause
	VolumeUp
	VolumeDown
	SetVolume
	Tune
	TuneNext
	TunePrev
	SelectUp
	SelectDown
	Toggle
	ToggleHelp
	ScrollHistoryUp
	ScrollHistoryDown
	Quit
)

var kindNames = map[Kind]string{
	Play:              "play",
	Stop:              "stop",
	TogglePause:       "pause",
	VolumeUp:          "volume-up",
	VolumeDown:        "volume-down",
	SetVolume:         "volume",
	Tune:              "tune",
	TuneNext:          "tune-next",
	TunePrev:          "tune-prev",
	SelectUp:          "select-up",
	SelectDown:        "select-down",
	Toggle:            "toggle",
	ToggleHelp:        "help",
	ScrollHistoryUp:   "scroll-up",
	ScrollHistoryDown: "scroll-down",
	Quit:              "quit",
}

// String returns a short name for the kind
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Command is a playback intent. It is plain data and may come from the
// keyboard, the network or the startup directive.
type Command struct {
	Kind      Kind
	Volume    float64 // SetVolume only
	StationID string  // Tune only
}

// String renders the command for logs
func (c Command) String() string {
	switch c.Kind {
	case SetVolume:
		return fmt.Sprintf("volume %.1f", c.Volume)
	case Tune:
		return "tune " + c.StationID
	default:
		return c.Kind.String()
	}
}

// Wire returns the datagram text for c, or false if the command has no
// network form.
func (c Command) Wire() (string, bool) {
	switch c.Kind {
	case Play:
		return "play", true
	case Stop:
		return "stop", true
	case TogglePause:
		return "pause", true
	case Toggle:
		return "toggle", true
	case VolumeUp:
		return "volume up", true
	case VolumeDown:
		return "volume down", true
	case SetVolume:
		return fmt.Sprintf("volume %g", c.Volume), true
	case Tune:
		return "tune " + c.StationID, true
	case TuneNext:
		return "tune next", true
	case TunePrev:
		return "tune prev", true
	case SelectUp:
		return "select up", true
	case SelectDown:
		return "select down", true
	default:
		return "", false
	}
}
