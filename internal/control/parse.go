package control

import (
	"math"
	"strconv"
	"strings"

	"github.com/jfmyers9/tuner/internal/radio"
)

// MaxDatagram is the largest command accepted from the network
const MaxDatagram = 512

// bareVerbs are commands without arguments
var bareVerbs = map[string]Kind{
	"play":   Play,
	"stop":   Stop,
	"pause":  TogglePause,
	"toggle": Toggle,
}

// Parse decodes one whitespace-tokenized command line. Errors are
// radio.KindControl.
func Parse(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, radio.Errorf(radio.KindControl, "parse", "empty command")
	}

	verb := strings.ToLower(fields[0])
	args := fields[1:]

	if kind, ok := bareVerbs[verb]; ok {
		if len(args) != 0 {
			return Command{}, radio.Errorf(radio.KindControl, "parse", "%s takes no arguments", verb)
		}
		return Command{Kind: kind}, nil
	}

	switch verb {
	case "volume":
		if len(args) != 1 {
			return Command{}, radio.Errorf(radio.KindControl, "parse", "usage: volume up|down|<0.0-2.0>")
		}
		switch strings.ToLower(args[0]) {
		case "up":
			return Command{Kind: VolumeUp}, nil
		case "down":
			return Command{Kind: VolumeDown}, nil
		}
		v, err := strconv.ParseFloat(args[0], 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return Command{}, radio.Errorf(radio.KindControl, "parse", "invalid volume %q", args[0])
		}
		return Command{Kind: SetVolume, Volume: v}, nil

	case "tune":
		if len(args) != 1 {
			return Command{}, radio.Errorf(radio.KindControl, "parse", "usage: tune next|prev|<station-id>")
		}
		switch strings.ToLower(args[0]) {
		case "next":
			return Command{Kind: TuneNext}, nil
		case "prev":
			return Command{Kind: TunePrev}, nil
		}
		return Command{Kind: Tune, StationID: args[0]}, nil

	case "select":
		if len(args) != 1 {
			return Command{}, radio.Errorf(radio.KindControl, "parse", "usage: select up|down")
		}
		switch strings.ToLower(args[0]) {
		case "up":
			return Command{Kind: SelectUp}, nil
		case "down":
			return Command{Kind: SelectDown}, nil
		}
		return Command{}, radio.Errorf(radio.KindControl, "parse", "invalid selection %q", args[0])
	}

	return Command{}, radio.Errorf(radio.KindControl, "parse", "unknown command %q", verb)
}
