// Package playback holds the authoritative playback state: the
// Playing/Paused/Stopped machine, elapsed-time accounting and underrun
// recovery. A Session is driven from a single goroutine.
package playback

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jfmyers9/tuner/internal/audio"
	"github.com/jfmyers9/tuner/internal/history"
	"github.com/jfmyers9/tuner/internal/radio"
	"github.com/rs/zerolog"
)

// Volume bounds
const (
	MinVolume = 0.0
	MaxVolume = 2.0
)

// Sink is the audio output driven by the session
type Sink interface {
	Append(src io.ReadCloser)
	Play()
	Pause()
	Stop()
	SetVolume(v float64)
	Stats() audio.Stats
}

// Connector opens a station's decoded stream
type Connector interface {
	Connect(ctx context.Context, station radio.Station) (io.ReadCloser, error)
}

// ConnectorFunc adapts a function to Connector
type ConnectorFunc func(ctx context.Context, station radio.Station) (io.ReadCloser, error)

// Connect implements Connector
func (f ConnectorFunc) Connect(ctx context.Context, station radio.Station) (io.ReadCloser, error) {
	return f(ctx, station)
}

// Reporter receives user-facing history entries
type Reporter interface {
	Add(kind history.Kind, text string)
}

// Result is the outcome of a background connect
type Result struct {
	Generation uint64
	Attempt    string
	Station    radio.Station
	Source     io.ReadCloser
	Err        error
}

// Session owns playback state. All methods must be called from the same
// goroutine; connects run in the background and report through Results.
type Session struct {
	sink      Sink
	connector Connector
	reporter  Reporter
	logger    zerolog.Logger
	now       func() time.Time
	results   chan Result

	state         radio.PlayState
	volume        float64
	active        int
	station       radio.Station
	playbackStart time.Time
	lastPause     time.Time
	totalPlayed   time.Duration

	generation uint64
	cancel     context.CancelFunc
	prior      radio.PlayState
	tracker    UnderrunTracker
}

// NewSession creates a stopped session with the given starting volume
func NewSession(sink Sink, connector Connector, reporter Reporter, volume float64, logger zerolog.Logger) *Session {
	s := &Session{
		sink:      sink,
		connector: connector,
		reporter:  reporter,
		logger:    logger.With().Str("component", "session").Logger(),
		now:       time.Now,
		results:   make(chan Result, 4),
		state:     radio.StateStopped,
		volume:    clampVolume(volume),
		active:    -1,
	}
	sink.SetVolume(s.volume)
	return s
}

// Results delivers connect outcomes; pass each to HandleResult
func (s *Session) Results() <-chan Result {
	return s.results
}

// Play supersedes whatever is bound and starts connecting to station,
// which sits at idx in the station list. A paused session becomes
// Stopped since its stream is gone; otherwise the state changes when the
// result is handled.
func (s *Session) Play(idx int, station radio.Station) {
	now := s.now()

	s.sink.Stop()
	s.cancelConnect()

	switch s.state {
	case radio.StatePlaying:
		s.fold(now)
	case radio.StatePaused:
		// The paused stream was just discarded
		s.state = radio.StateStopped
	}
	if idx != s.active {
		s.totalPlayed = 0
	}

	s.prior = s.state
	s.active = idx
	s.station = station
	s.lastPause = time.Time{}
	s.playbackStart = now
	s.tracker.Started(now)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	gen := s.generation
	attempt := uuid.NewString()

	s.logger.Info().
		Str("station", station.ID).
		Str("attempt", attempt).
		Uint64("generation", gen).
		Msg("Connecting")

	go func() {
		src, err := s.connector.Connect(ctx, station)
		res := Result{
			Generation: gen,
			Attempt:    attempt,
			Station:    station,
			Source:     src,
			Err:        err,
		}
		select {
		case s.results <- res:
		case <-ctx.Done():
			if src != nil {
				_ = src.Close()
			}
		}
	}()
}

// HandleResult applies a connect outcome. Results from superseded
// attempts are closed and ignored.
func (s *Session) HandleResult(res Result) {
	if res.Generation != s.generation {
		if res.Source != nil {
			_ = res.Source.Close()
		}
		s.logger.Debug().
			Str("attempt", res.Attempt).
			Uint64("generation", res.Generation).
			Msg("Discarding superseded connect")
		return
	}

	if res.Err != nil {
		s.tracker.Failed()
		s.state = s.prior
		// Nothing is audible until a later connect binds
		s.playbackStart = time.Time{}
		s.reporter.Add(history.KindError, fmt.Sprintf("Could not play %s: %v", res.Station.Title, res.Err))
		s.logger.Warn().
			Err(res.Err).
			Str("station", res.Station.ID).
			Str("attempt", res.Attempt).
			Str("kind", radio.KindOf(res.Err).String()).
			Msg("Connect failed")
		return
	}

	s.sink.Append(res.Source)
	s.sink.SetVolume(s.volume)
	s.sink.Play()
	s.state = radio.StatePlaying
	if s.playbackStart.IsZero() {
		s.playbackStart = s.now()
	}
	s.tracker.Loaded()

	s.reporter.Add(history.KindInfo, "Playing "+res.Station.Title)
	s.logger.Info().
		Str("station", res.Station.ID).
		Str("attempt", res.Attempt).
		Msg("Stream bound")
}

// Stop halts playback. When already stopped and soft is set, output
// resumes instead; an emptied sink is refilled by reconnecting the active
// station. Stop is a no-op while paused.
func (s *Session) Stop(soft bool) {
	now := s.now()

	switch s.state {
	case radio.StatePlaying:
		s.sink.Stop()
		s.cancelConnect()
		s.tracker.Failed()
		s.fold(now)
		s.lastPause = now
		s.state = radio.StateStopped

	case radio.StateStopped:
		if !soft {
			// Abandon a connect started from Stopped
			if s.tracker.Loading() {
				s.cancelConnect()
				s.tracker.Failed()
				s.playbackStart = time.Time{}
			}
			return
		}
		if s.active < 0 || s.tracker.Loading() {
			return
		}
		if s.sink.Stats().Empty {
			s.Play(s.active, s.station)
			return
		}
		s.sink.Play()
		s.playbackStart = now
		s.lastPause = time.Time{}
		s.state = radio.StatePlaying
	}
}

// Pause toggles between Playing and Paused. It does nothing while stopped
// or while a connect is in flight.
func (s *Session) Pause() {
	if s.tracker.Loading() {
		return
	}
	now := s.now()

	switch s.state {
	case radio.StatePlaying:
		s.sink.Pause()
		s.fold(now)
		s.lastPause = now
		s.state = radio.StatePaused
	case radio.StatePaused:
		s.sink.Play()
		s.playbackStart = now
		s.lastPause = time.Time{}
		s.state = radio.StatePlaying
	}
}

// SetVolume clamps v to [MinVolume, MaxVolume] and applies it. NaN is
// ignored.
func (s *Session) SetVolume(v float64) {
	if math.IsNaN(v) {
		return
	}
	s.volume = clampVolume(v)
	s.sink.SetVolume(s.volume)
}

// Tick runs underrun detection and restarts the active station when due.
// It is a no-op unless playing.
func (s *Session) Tick() {
	if s.state != radio.StatePlaying {
		return
	}
	now := s.now()
	st := s.sink.Stats()

	restart := s.tracker.Check(now, Sample{
		QueueLen:      st.QueueLen,
		Empty:         st.Empty,
		Paused:        st.Paused,
		Position:      st.Position,
		PlaybackStart: s.playbackStart,
	})
	if !restart {
		return
	}

	attempts := s.tracker.RestartAttempts()
	s.reporter.Add(history.KindError, fmt.Sprintf("Underrun detected on %s, restarting (attempt %d, next backoff %s)",
		s.station.Title, attempts, Backoff(attempts)))
	s.logger.Warn().
		Str("station", s.station.ID).
		Int("attempts", attempts).
		Int("queue_len", st.QueueLen).
		Bool("empty", st.Empty).
		Dur("position", st.Position).
		Msg("Underrun detected")

	s.Play(s.active, s.station)
}

// Close cancels any in-flight connect and releases the sink's source
func (s *Session) Close() {
	s.cancelConnect()
	s.sink.Stop()
}

// State returns the current playback state
func (s *Session) State() radio.PlayState {
	return s.state
}

// Volume returns the current volume
func (s *Session) Volume() float64 {
	return s.volume
}

// Active returns the index and value of the bound station; the index is
// -1 before the first play.
func (s *Session) Active() (int, radio.Station) {
	return s.active, s.station
}

// Settings returns the volume and bound station id to carry into the
// next run. The id is empty before the first play.
func (s *Session) Settings() (volume float64, stationID string) {
	return s.volume, s.station.ID
}

// Loading reports whether a connect is in flight
func (s *Session) Loading() bool {
	return s.tracker.Loading()
}

// Underrun reports whether the last tick triggered a restart
func (s *Session) Underrun() bool {
	return s.tracker.Detected()
}

// RestartAttempts returns restarts since the last successful bind
func (s *Session) RestartAttempts() int {
	return s.tracker.RestartAttempts()
}

// Elapsed returns total audible time for the current binding
func (s *Session) Elapsed() time.Duration {
	total := s.totalPlayed
	if s.state == radio.StatePlaying && !s.playbackStart.IsZero() {
		total += s.now().Sub(s.playbackStart)
	}
	return total
}

// fold moves the running interval into totalPlayed
func (s *Session) fold(now time.Time) {
	if s.playbackStart.IsZero() {
		return
	}
	s.totalPlayed += now.Sub(s.playbackStart)
	s.playbackStart = time.Time{}
}

// cancelConnect abandons the in-flight connect, if any. Bumping the
// generation makes any result it still delivers stale.
func (s *Session) cancelConnect() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.generation++
}

func clampVolume(v float64) float64 {
	return max(MinVolume, min(MaxVolume, v))
}
