package daemon

import (
	"fmt"
	"math"

	"github.com/jfmyers9/tuner/internal/control"
	"github.com/jfmyers9/tuner/internal/history"
	"github.com/jfmyers9/tuner/internal/radio"
	"github.com/rs/zerolog"
)

// volumeStep is the change applied by VolumeUp and VolumeDown
const volumeStep = 0.1

// Player is the playback surface driven by the router
type Player interface {
	Play(idx int, station radio.Station)
	Stop(soft bool)
	Pause()
	SetVolume(v float64)
	Volume() float64
	State() radio.PlayState
	Active() (int, radio.Station)
}

// Journal is the history log the router writes to and scrolls through
type Journal interface {
	Add(kind history.Kind, text string)
	Len() int
}

// Router turns commands into Player calls and owns the view state (the
// selection cursor, help overlay and history scroll). It is driven from
// the loop goroutine only.
type Router struct {
	player   Player
	journal  Journal
	logger   zerolog.Logger
	stations []radio.Station

	selected int
	help     bool
	scroll   int
}

// NewRouter creates a Router with no stations loaded
func NewRouter(player Player, journal Journal, logger zerolog.Logger) *Router {
	return &Router{
		player:  player,
		journal: journal,
		logger:  logger.With().Str("component", "router").Logger(),
	}
}

// SetStations installs the station list and points the cursor at
// preferID when it is present.
func (r *Router) SetStations(stations []radio.Station, preferID string) {
	r.stations = stations
	r.selected = 0
	if idx := radio.Find(stations, preferID); idx >= 0 {
		r.selected = idx
	}
}

// Stations returns the loaded station list
func (r *Router) Stations() []radio.Station { return r.stations }

// Selected returns the cursor index
func (r *Router) Selected() int { return r.selected }

// Help reports whether the help overlay is shown
func (r *Router) Help() bool { return r.help }

// Scroll returns the history scroll offset
func (r *Router) Scroll() int { return r.scroll }

// Apply executes cmd and reports whether the player should quit.
func (r *Router) Apply(cmd control.Command) (quit bool) {
	r.logger.Debug().Stringer("command", cmd).Msg("Applying command")

	switch cmd.Kind {
	case control.Quit:
		return true

	case control.Stop:
		r.player.Stop(false)

	case control.TogglePause:
		r.player.Pause()

	case control.VolumeUp:
		r.player.SetVolume(stepVolume(r.player.Volume(), volumeStep))

	case control.VolumeDown:
		r.player.SetVolume(stepVolume(r.player.Volume(), -volumeStep))

	case control.SetVolume:
		r.player.SetVolume(cmd.Volume)

	case control.SelectUp:
		if r.selected > 0 {
			r.selected--
		}

	case control.SelectDown:
		if r.selected < len(r.stations)-1 {
			r.selected++
		}

	case control.ToggleHelp:
		r.help = !r.help

	case control.ScrollHistoryUp:
		if r.scroll > 0 {
			r.scroll--
		}

	case control.ScrollHistoryDown:
		if r.scroll < r.journal.Len()-1 {
			r.scroll++
		}

	case control.Play, control.Toggle, control.Tune, control.TuneNext, control.TunePrev:
		r.applyStation(cmd)
	}

	return false
}

// applyStation handles the commands that need a station list
func (r *Router) applyStation(cmd control.Command) {
	if len(r.stations) == 0 {
		r.journal.Add(history.KindInfo, fmt.Sprintf("Station list not loaded yet, ignoring %s", cmd))
		return
	}

	switch cmd.Kind {
	case control.Play:
		r.playSelected()

	case control.Toggle:
		switch r.player.State() {
		case radio.StatePlaying:
			r.player.Stop(false)
		case radio.StatePaused:
			r.player.Pause()
		default:
			if active, _ := r.player.Active(); active == r.selected {
				r.player.Stop(true)
			} else {
				r.playSelected()
			}
		}

	case control.Tune:
		idx := radio.Find(r.stations, cmd.StationID)
		if idx < 0 {
			r.journal.Add(history.KindError, fmt.Sprintf("Unknown station %q", cmd.StationID))
			return
		}
		r.selected = idx
		r.playSelected()

	case control.TuneNext:
		r.selected = (r.selected + 1) % len(r.stations)
		r.playSelected()

	case control.TunePrev:
		r.selected = (r.selected - 1 + len(r.stations)) % len(r.stations)
		r.playSelected()
	}
}

func (r *Router) playSelected() {
	if r.selected < 0 || r.selected >= len(r.stations) {
		r.selected = 0
	}
	r.player.Play(r.selected, r.stations[r.selected])
}

// stepVolume adds delta and rounds to one decimal so repeated steps do
// not accumulate float error.
func stepVolume(v, delta float64) float64 {
	return math.Round((v+delta)*10) / 10
}
