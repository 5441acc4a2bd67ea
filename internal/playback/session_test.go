package playback

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jfmyers9/tuner/internal/audio"
	"github.com/jfmyers9/tuner/internal/history"
	"github.com/jfmyers9/tuner/internal/radio"
	"github.com/rs/zerolog"
)

var (
	stationA = radio.Station{ID: "groovesalad", Title: "Groove Salad", URL: "http://a.example/stream"}
	stationB = radio.Station{ID: "dronezone", Title: "Drone Zone", URL: "http://b.example/stream"}
)

// fakeSink records operations and reports configurable stats
type fakeSink struct {
	mu      sync.Mutex
	src     io.ReadCloser
	playing bool
	volume  float64
	stats   audio.Stats
	stops   int
}

func (f *fakeSink) Append(src io.ReadCloser) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.src = src
	f.stats = audio.Stats{QueueLen: 1, Paused: true}
}

func (f *fakeSink) Play() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing = true
	f.stats.Paused = false
}

func (f *fakeSink) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing = false
	f.stats.Paused = true
}

func (f *fakeSink) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.src != nil {
		_ = f.src.Close()
		f.src = nil
	}
	f.playing = false
	f.stops++
	f.stats = audio.Stats{Empty: true}
}

func (f *fakeSink) SetVolume(v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = v
}

func (f *fakeSink) Stats() audio.Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

func (f *fakeSink) setStats(st audio.Stats) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats = st
}

// fakeSource is a closable stream body
type fakeSource struct {
	station string
	mu      sync.Mutex
	closed  bool
}

func (f *fakeSource) Read(p []byte) (int, error) { return 0, io.EOF }

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSource) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeConnector counts calls and delegates to fn
type fakeConnector struct {
	mu    sync.Mutex
	calls []string
	fn    func(ctx context.Context, station radio.Station, call int) (io.ReadCloser, error)
}

func (f *fakeConnector) Connect(ctx context.Context, station radio.Station) (io.ReadCloser, error) {
	f.mu.Lock()
	f.calls = append(f.calls, station.ID)
	call := len(f.calls)
	f.mu.Unlock()

	if f.fn == nil {
		return &fakeSource{station: station.ID}, nil
	}
	return f.fn(ctx, station, call)
}

func (f *fakeConnector) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeClock is advanced manually
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type harness struct {
	session   *Session
	sink      *fakeSink
	connector *fakeConnector
	clock     *fakeClock
	log       *history.Log
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		sink:      &fakeSink{stats: audio.Stats{Empty: true}},
		connector: &fakeConnector{},
		clock:     &fakeClock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)},
		log:       history.NewLog(100),
	}
	h.session = NewSession(h.sink, h.connector, h.log, 1.0, zerolog.Nop())
	h.session.now = h.clock.now
	t.Cleanup(h.session.Close)
	return h
}

// settle waits for the next connect result and applies it
func (h *harness) settle(t *testing.T) Result {
	t.Helper()
	select {
	case res := <-h.session.Results():
		h.session.HandleResult(res)
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for connect result")
		return Result{}
	}
}

func (h *harness) errorEntries(substr string) int {
	n := 0
	for _, msg := range h.log.Recent(2) {
		if msg.Kind == history.KindError && strings.Contains(msg.Text, substr) {
			n++
		}
	}
	return n
}

func TestPlayBindsStream(t *testing.T) {
	h := newHarness(t)

	h.session.Play(0, stationA)
	if h.session.State() != radio.StateStopped {
		t.Errorf("state before result = %v, want stopped", h.session.State())
	}
	if !h.session.Loading() {
		t.Error("expected loading while connect is in flight")
	}

	h.settle(t)

	if h.session.State() != radio.StatePlaying {
		t.Errorf("state = %v, want playing", h.session.State())
	}
	if h.session.Loading() {
		t.Error("expected loading cleared after bind")
	}
	if idx, st := h.session.Active(); idx != 0 || st.ID != stationA.ID {
		t.Errorf("Active() = (%d, %s), want (0, %s)", idx, st.ID, stationA.ID)
	}
	if !h.sink.playing || h.sink.src == nil {
		t.Error("expected sink to be playing a bound source")
	}
}

func TestTimeAccounting(t *testing.T) {
	h := newHarness(t)

	h.session.Play(0, stationA)
	h.settle(t)

	h.clock.advance(3 * time.Second)
	h.session.Pause()
	h.clock.advance(10 * time.Second) // paused, not counted
	h.session.Pause()
	if h.session.State() != radio.StatePlaying {
		t.Fatalf("state after resume = %v, want playing", h.session.State())
	}
	h.clock.advance(2 * time.Second)
	h.session.Stop(false)

	if got := h.session.Elapsed(); got != 5*time.Second {
		t.Errorf("Elapsed() = %v, want 5s", got)
	}
}

func TestTenSecondsOfPlay(t *testing.T) {
	h := newHarness(t)

	h.session.Play(0, stationA)
	h.settle(t)

	for i := 0; i < 40; i++ {
		h.clock.advance(250 * time.Millisecond)
		h.sink.setStats(audio.Stats{QueueLen: 1, Position: time.Duration(i+1) * 250 * time.Millisecond})
		h.session.Tick()
	}
	h.session.Stop(false)

	if got := h.session.Elapsed(); got != 10*time.Second {
		t.Errorf("Elapsed() = %v, want 10s", got)
	}
	if h.connector.callCount() != 1 {
		t.Errorf("connects = %d, want 1", h.connector.callCount())
	}
}

func TestStopIsIdempotent(t *testing.T) {
	h := newHarness(t)

	h.session.Play(0, stationA)
	h.settle(t)
	h.clock.advance(4 * time.Second)

	h.session.Stop(false)
	h.clock.advance(3 * time.Second)
	h.session.Stop(false)

	if h.session.State() != radio.StateStopped {
		t.Errorf("state = %v, want stopped", h.session.State())
	}
	if got := h.session.Elapsed(); got != 4*time.Second {
		t.Errorf("Elapsed() = %v, want 4s", got)
	}
}

func TestPauseAndStopNoOps(t *testing.T) {
	h := newHarness(t)

	h.session.Pause()
	if h.session.State() != radio.StateStopped {
		t.Errorf("Pause from stopped changed state to %v", h.session.State())
	}

	h.session.Play(0, stationA)
	h.settle(t)
	h.session.Pause()

	h.session.Stop(false)
	if h.session.State() != radio.StatePaused {
		t.Errorf("Stop from paused changed state to %v", h.session.State())
	}
	h.session.Stop(true)
	if h.session.State() != radio.StatePaused {
		t.Errorf("soft Stop from paused changed state to %v", h.session.State())
	}
}

func TestSoftStopResumes(t *testing.T) {
	t.Run("sink has content", func(t *testing.T) {
		h := newHarness(t)
		h.session.Play(0, stationA)
		h.settle(t)

		h.session.Stop(false)
		// Pretend the device kept its buffer
		h.sink.setStats(audio.Stats{QueueLen: 1})

		h.session.Stop(true)
		if h.session.State() != radio.StatePlaying {
			t.Errorf("state = %v, want playing", h.session.State())
		}
		if h.connector.callCount() != 1 {
			t.Errorf("connects = %d, want 1 (no reconnect)", h.connector.callCount())
		}
	})

	t.Run("empty sink reconnects", func(t *testing.T) {
		h := newHarness(t)
		h.session.Play(0, stationA)
		h.settle(t)
		h.session.Stop(false)

		h.session.Stop(true)
		h.settle(t)

		if h.session.State() != radio.StatePlaying {
			t.Errorf("state = %v, want playing", h.session.State())
		}
		if h.connector.callCount() != 2 {
			t.Errorf("connects = %d, want 2", h.connector.callCount())
		}
	})

	t.Run("nothing played yet", func(t *testing.T) {
		h := newHarness(t)
		h.session.Stop(true)
		if h.session.State() != radio.StateStopped || h.connector.callCount() != 0 {
			t.Error("soft stop without an active station should do nothing")
		}
	})
}

func TestConnectFailureRestoresPriorState(t *testing.T) {
	h := newHarness(t)
	h.connector.fn = func(ctx context.Context, st radio.Station, call int) (io.ReadCloser, error) {
		return nil, &radio.Error{Kind: radio.KindNetwork, Op: "connect", Err: errors.New("refused")}
	}

	h.session.Play(0, stationA)
	h.settle(t)

	if h.session.State() != radio.StateStopped {
		t.Errorf("state = %v, want stopped", h.session.State())
	}
	if h.session.Loading() {
		t.Error("expected loading cleared after failure")
	}
	if h.errorEntries("Could not play Groove Salad") != 1 {
		t.Error("expected one error entry for the failed play")
	}
	if got := h.session.Elapsed(); got != 0 {
		t.Errorf("Elapsed() = %v, want 0", got)
	}
}

func TestSupersededConnectIsDiscarded(t *testing.T) {
	h := newHarness(t)

	release := make(chan struct{})
	slow := &fakeSource{station: stationA.ID}
	h.connector.fn = func(ctx context.Context, st radio.Station, call int) (io.ReadCloser, error) {
		if st.ID == stationA.ID {
			<-release
			return slow, nil
		}
		return &fakeSource{station: st.ID}, nil
	}

	h.session.Play(0, stationA)
	h.session.Play(1, stationB)
	close(release)

	// A's late result may or may not be delivered; either way only B binds
	for res := h.settle(t); res.Station.ID != stationB.ID; res = h.settle(t) {
		if h.session.State() == radio.StatePlaying {
			t.Fatalf("superseded result for %s was bound", res.Station.ID)
		}
	}
	if h.sink.src == nil || h.sink.src.(*fakeSource).station != stationB.ID {
		t.Error("expected B's source to be bound")
	}

	// A's goroutine sees its context cancelled and closes its source
	deadline := time.Now().Add(2 * time.Second)
	for !slow.isClosed() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !slow.isClosed() {
		t.Error("superseded source was not closed")
	}
	if idx, _ := h.session.Active(); idx != 1 {
		t.Errorf("active = %d, want 1", idx)
	}
}

func TestStaleResultClosesSource(t *testing.T) {
	h := newHarness(t)
	h.session.Play(0, stationA)
	h.settle(t)

	src := &fakeSource{}
	h.session.HandleResult(Result{Generation: h.session.generation - 1, Source: src})

	if !src.isClosed() {
		t.Error("expected stale source to be closed")
	}
	if h.session.State() != radio.StatePlaying {
		t.Errorf("stale result changed state to %v", h.session.State())
	}
}

func TestStationSwitchResetsElapsed(t *testing.T) {
	h := newHarness(t)

	h.session.Play(0, stationA)
	h.settle(t)
	h.clock.advance(7 * time.Second)

	// Same station again keeps accumulating
	h.session.Play(0, stationA)
	h.settle(t)
	h.clock.advance(1 * time.Second)
	if got := h.session.Elapsed(); got != 8*time.Second {
		t.Errorf("Elapsed() after replay = %v, want 8s", got)
	}

	h.session.Play(1, stationB)
	h.settle(t)
	h.clock.advance(2 * time.Second)
	if got := h.session.Elapsed(); got != 2*time.Second {
		t.Errorf("Elapsed() after switch = %v, want 2s", got)
	}
}

func TestSetVolumeClamps(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"below range", -1.0, 0.0},
		{"above range", 3.0, 2.0},
		{"in range", 0.7, 0.7},
		{"upper bound", 2.0, 2.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.session.SetVolume(tt.in)
			if got := h.session.Volume(); got != tt.want {
				t.Errorf("Volume() = %v, want %v", got, tt.want)
			}
			if h.sink.volume != tt.want {
				t.Errorf("sink volume = %v, want %v", h.sink.volume, tt.want)
			}
		})
	}
}

func TestNewSessionClampsInitialVolume(t *testing.T) {
	s := NewSession(&fakeSink{}, &fakeConnector{}, history.NewLog(1), 5, zerolog.Nop())
	if s.Volume() != MaxVolume {
		t.Errorf("Volume() = %v, want %v", s.Volume(), MaxVolume)
	}
}

func TestSettingsReportsBoundStation(t *testing.T) {
	h := newHarness(t)

	if vol, id := h.session.Settings(); vol != 1.0 || id != "" {
		t.Errorf("Settings() before play = (%v, %q)", vol, id)
	}

	h.session.SetVolume(0.6)
	h.session.Play(1, stationB)
	h.settle(t)
	h.session.Stop(false)

	if vol, id := h.session.Settings(); vol != 0.6 || id != stationB.ID {
		t.Errorf("Settings() = (%v, %q), want (0.6, %q)", vol, id, stationB.ID)
	}
}

func TestPlayFromPausedThenStop(t *testing.T) {
	h := newHarness(t)

	release := make(chan struct{})
	h.connector.fn = func(ctx context.Context, st radio.Station, call int) (io.ReadCloser, error) {
		if call == 2 {
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return &fakeSource{station: st.ID}, nil
	}

	h.session.Play(0, stationA)
	h.settle(t)
	h.clock.advance(3 * time.Second)
	h.session.Pause()

	h.session.Play(1, stationB)
	if h.session.State() != radio.StateStopped {
		t.Errorf("state while switching from paused = %v, want stopped", h.session.State())
	}

	h.session.Stop(false)
	close(release)

	if h.session.Loading() {
		t.Error("expected Stop to abandon the connect")
	}
	select {
	case res := <-h.session.Results():
		h.session.HandleResult(res)
	case <-time.After(100 * time.Millisecond):
	}
	if h.session.State() != radio.StateStopped {
		t.Errorf("state = %v, want stopped", h.session.State())
	}
	if h.sink.src != nil {
		t.Error("abandoned connect was bound to the sink")
	}
}

func TestElapsedExcludesFailedReconnects(t *testing.T) {
	h := newHarness(t)
	h.connector.fn = func(ctx context.Context, st radio.Station, call int) (io.ReadCloser, error) {
		if call == 1 {
			return &fakeSource{station: st.ID}, nil
		}
		return nil, &radio.Error{Kind: radio.KindNetwork, Op: "connect", Err: errors.New("refused")}
	}

	h.session.Play(0, stationA)
	h.settle(t)

	for i := 1; i <= 40; i++ {
		h.clock.advance(250 * time.Millisecond)
		h.sink.setStats(audio.Stats{QueueLen: 1, Position: time.Duration(i) * 250 * time.Millisecond})
		h.session.Tick()
	}

	// The stream dies and every reconnect fails for a minute
	h.sink.setStats(audio.Stats{Empty: true})
	h.session.Tick()
	if !h.session.Loading() {
		t.Fatal("expected a restart once the sink emptied")
	}
	h.settle(t)

	for elapsed := time.Duration(0); elapsed < time.Minute; elapsed += 250 * time.Millisecond {
		h.clock.advance(250 * time.Millisecond)
		h.session.Tick()
		if h.session.Loading() {
			h.settle(t)
		}
	}

	if h.session.State() != radio.StatePlaying {
		t.Errorf("state = %v, want playing while recovery continues", h.session.State())
	}
	if h.session.RestartAttempts() < 2 {
		t.Errorf("RestartAttempts() = %d, want repeated restarts", h.session.RestartAttempts())
	}
	if got := h.session.Elapsed(); got != 10*time.Second {
		t.Errorf("Elapsed() = %v, want 10s of audible play", got)
	}
}
