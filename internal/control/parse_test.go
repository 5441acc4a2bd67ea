package control

import (
	"errors"
	"testing"

	"github.com/jfmyers9/tuner/internal/radio"
)

func TestParse(t *testing.T) {
	tests := []struct {
		line string
		want Command
	}{
		{"play", Command{Kind: Play}},
		{"  STOP  ", Command{Kind: Stop}},
		{"pause", Command{Kind: TogglePause}},
		{"toggle", Command{Kind: Toggle}},
		{"volume up", Command{Kind: VolumeUp}},
		{"Volume Down", Command{Kind: VolumeDown}},
		{"volume 0.5", Command{Kind: SetVolume, Volume: 0.5}},
		{"volume 3", Command{Kind: SetVolume, Volume: 3}},
		{"tune next", Command{Kind: TuneNext}},
		{"tune PREV", Command{Kind: TunePrev}},
		{"tune groovesalad", Command{Kind: Tune, StationID: "groovesalad"}},
		{"select up", Command{Kind: SelectUp}},
		{"select down\n", Command{Kind: SelectDown}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := Parse(tt.line)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.line, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	lines := []string{
		"",
		"   ",
		"rewind",
		"play now",
		"volume",
		"volume loud",
		"volume NaN",
		"volume +Inf",
		"tune",
		"tune a b",
		"select left",
	}

	for _, line := range lines {
		t.Run(line, func(t *testing.T) {
			_, err := Parse(line)
			if err == nil {
				t.Fatalf("Parse(%q) succeeded, want error", line)
			}
			if !errors.Is(err, &radio.Error{Kind: radio.KindControl}) {
				t.Errorf("Parse(%q) error kind = %v, want control", line, radio.KindOf(err))
			}
		})
	}
}

func TestWireRoundTrip(t *testing.T) {
	for kind := range kindNames {
		cmd := Command{Kind: kind}
		switch kind {
		case SetVolume:
			cmd.Volume = 1.3
		case Tune:
			cmd.StationID = "dronezone"
		}

		wire, ok := cmd.Wire()
		if !ok {
			switch kind {
			case ToggleHelp, ScrollHistoryUp, ScrollHistoryDown, Quit:
				continue
			}
			t.Fatalf("%s has no wire form", kind)
		}

		got, err := Parse(wire)
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", wire, err)
		}
		if got != cmd {
			t.Errorf("Parse(%q) = %+v, want %+v", wire, got, cmd)
		}
	}
}
