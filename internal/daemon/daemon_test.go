package daemon

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jfmyers9/tuner/internal/audio"
	"github.com/jfmyers9/tuner/internal/control"
	"github.com/jfmyers9/tuner/internal/history"
	"github.com/jfmyers9/tuner/internal/playback"
	"github.com/jfmyers9/tuner/internal/radio"
	"github.com/rs/zerolog"
)

// nullSink accepts sources and reports a healthy queue
type nullSink struct {
	mu     sync.Mutex
	src    io.ReadCloser
	volume float64
}

func (s *nullSink) Append(src io.ReadCloser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.src != nil {
		s.src.Close()
	}
	s.src = src
}

func (s *nullSink) Play()  {}
func (s *nullSink) Pause() {}

func (s *nullSink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.src != nil {
		s.src.Close()
		s.src = nil
	}
}

func (s *nullSink) SetVolume(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = v
}

func (s *nullSink) Stats() audio.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return audio.Stats{QueueLen: 1, Empty: s.src == nil}
}

// recordingFrontend captures views and lets tests wait on them
type recordingFrontend struct {
	mu    sync.Mutex
	views []View
}

func (f *recordingFrontend) Run(ctx context.Context, commands chan<- control.Command) error {
	<-ctx.Done()
	return ctx.Err()
}

func (f *recordingFrontend) Update(v View) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.views = append(f.views, v)
}

func (f *recordingFrontend) waitFor(t *testing.T, desc string, cond func(View) bool) View {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		for _, v := range f.views {
			if cond(v) {
				f.mu.Unlock()
				return v
			}
		}
		f.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
	return View{}
}

func newTestDaemon(t *testing.T, cfg Config) (*Daemon, *recordingFrontend, *history.Emitter) {
	t.Helper()

	emitter := history.NewEmitter(64)
	frontend := &recordingFrontend{}
	connector := playback.ConnectorFunc(func(ctx context.Context, st radio.Station) (io.ReadCloser, error) {
		emitter.TryEmit(history.KindPlayback, "%s :: Test Artist - Test Song", st.Title)
		return io.NopCloser(strings.NewReader("")), nil
	})

	cfg.TickInterval = 10 * time.Millisecond
	cfg.StateFile = filepath.Join(t.TempDir(), "state.json")
	cfg.LogLevel = 2

	d, err := New(cfg, Deps{
		Sink:      &nullSink{},
		Connector: connector,
		Stations:  &fakeFetcher{stations: testStations},
		History:   emitter,
		Frontend:  frontend,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d, frontend, emitter
}

func TestDaemon_AutoPlayAndQuit(t *testing.T) {
	d, frontend, _ := newTestDaemon(t, Config{
		Volume:      0.5,
		LastStation: "secretagent",
		AutoPlay:    "dronezone",
	})

	done := make(chan error, 1)
	go func() { done <- d.RunContext(context.Background()) }()

	v := frontend.waitFor(t, "autoplay", func(v View) bool {
		return v.State == radio.StatePlaying && v.Active == 1
	})
	if v.Volume != 0.5 {
		t.Errorf("volume = %v, want 0.5", v.Volume)
	}

	frontend.waitFor(t, "stream title", func(v View) bool {
		return v.Title == "Test Artist - Test Song"
	})

	np, err := ReadNowPlaying(d.config.StateFile)
	if err != nil {
		t.Fatalf("ReadNowPlaying: %v", err)
	}
	if np.StationID != "dronezone" {
		t.Errorf("state file station = %q, want dronezone", np.StationID)
	}

	d.Send(control.Command{Kind: control.VolumeUp})
	d.Send(control.Command{Kind: control.Quit})

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("RunContext: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("daemon did not quit")
	}

	settings := d.Settings()
	if settings.LastStation != "dronezone" {
		t.Errorf("LastStation = %q, want dronezone", settings.LastStation)
	}
	if settings.Volume != 0.6 {
		t.Errorf("Volume = %v, want 0.6", settings.Volume)
	}

	np, err = ReadNowPlaying(d.config.StateFile)
	if err != nil {
		t.Fatalf("ReadNowPlaying: %v", err)
	}
	if np.Playing() {
		t.Errorf("state after quit = %+v, want stopped", np)
	}
}

func TestDaemon_SelectsLastStationWithoutPlaying(t *testing.T) {
	d, frontend, _ := newTestDaemon(t, Config{Volume: 1, LastStation: "secretagent"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.RunContext(ctx) }()

	v := frontend.waitFor(t, "stations loaded", func(v View) bool {
		return len(v.Stations) == len(testStations)
	})
	if v.Selected != 2 {
		t.Errorf("selected = %d, want 2", v.Selected)
	}
	if v.State != radio.StateStopped || v.Active != -1 {
		t.Errorf("state = %v active = %d, want idle", v.State, v.Active)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("RunContext: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("daemon did not stop on cancel")
	}

	if got := d.Settings().LastStation; got != "secretagent" {
		t.Errorf("LastStation = %q, want unchanged secretagent", got)
	}
}
