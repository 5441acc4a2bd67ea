// Package daemon runs the player: a single loop goroutine owns playback
// state and multiplexes commands, history, connect results and the
// station list.
package daemon

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/jfmyers9/tuner/internal/control"
	"github.com/jfmyers9/tuner/internal/history"
	"github.com/jfmyers9/tuner/internal/playback"
	"github.com/jfmyers9/tuner/internal/radio"
	"github.com/jfmyers9/tuner/internal/stream"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// CommandQueueSize bounds the command channel shared by all sources
const CommandQueueSize = 64

// Config holds daemon configuration
type Config struct {
	TickInterval time.Duration // How often the monitor and display run
	StateFile    string        // Path to the now-playing snapshot
	Volume       float64       // Starting volume
	LastStation  string        // Station to select once the list loads
	AutoPlay     string        // Station to tune once the list loads
	LogLevel     int           // History verbosity
	UDPEnabled   bool
	UDPPort      int
}

// Deps are the collaborators the daemon drives
type Deps struct {
	Sink      playback.Sink
	Connector playback.Connector
	Stations  StationFetcher
	History   *history.Emitter
	Frontend  Frontend // nil when headless
}

// Frontend is an interactive display. Run blocks until the user leaves;
// Update is called from the loop goroutine.
type Frontend interface {
	Run(ctx context.Context, commands chan<- control.Command) error
	Update(v View)
}

// View is a snapshot of everything a frontend renders
type View struct {
	Stations        []radio.Station
	Selected        int
	Active          int
	State           radio.PlayState
	Loading         bool
	Underrun        bool
	RestartAttempts int
	Volume          float64
	Elapsed         time.Duration
	Title           string
	History         []history.Message
	Scroll          int
	Help            bool
}

// Settings are the values persisted across runs
type Settings struct {
	Volume      float64
	LastStation string
	LogLevel    int
	UDPEnabled  bool
	UDPPort     int
}

// Daemon coordinates the playback session, station loading and the
// command sources.
type Daemon struct {
	config   Config
	session  *playback.Session
	router   *Router
	log      *history.Log
	history  *history.Emitter
	loader   *Loader
	listener *control.Listener
	frontend Frontend
	state    *State
	commands chan control.Command
	logger   zerolog.Logger

	title    string
	titleFor string // station id the title belongs to

	mu       sync.Mutex
	settings Settings
}

// New creates a new Daemon instance
func New(cfg Config, deps Deps, logger zerolog.Logger) (*Daemon, error) {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 250 * time.Millisecond
	}

	state, err := NewState(cfg.StateFile)
	if err != nil {
		// A corrupt snapshot is rewritten on the first update
		logger.Warn().Err(err).Str("path", cfg.StateFile).Msg("Ignoring unreadable state file")
	}

	emitter := deps.History
	if emitter == nil {
		emitter = history.NewEmitter(256)
	}

	log := history.NewLog(history.DefaultLogSize)
	session := playback.NewSession(deps.Sink, deps.Connector, log, cfg.Volume, logger)

	d := &Daemon{
		config:   cfg,
		session:  session,
		router:   NewRouter(session, log, logger),
		log:      log,
		history:  emitter,
		loader:   NewLoader(deps.Stations, emitter, logger),
		frontend: deps.Frontend,
		state:    state,
		commands: make(chan control.Command, CommandQueueSize),
		logger:   logger.With().Str("component", "daemon").Logger(),
		settings: Settings{
			Volume:      cfg.Volume,
			LastStation: cfg.LastStation,
			LogLevel:    cfg.LogLevel,
			UDPEnabled:  cfg.UDPEnabled,
			UDPPort:     cfg.UDPPort,
		},
	}

	if cfg.UDPEnabled {
		d.listener = control.NewListener(cfg.UDPPort, emitter, logger)
	}

	return d, nil
}

// StreamConnector adapts a stream.Connector to the session's Connector
func StreamConnector(c *stream.Connector) playback.Connector {
	return playback.ConnectorFunc(func(ctx context.Context, station radio.Station) (io.ReadCloser, error) {
		src, err := c.Connect(ctx, station)
		if err != nil {
			return nil, err
		}
		return src, nil
	})
}

// Send queues a command without blocking. It reports false when the
// queue is full and the command was dropped.
func (d *Daemon) Send(cmd control.Command) bool {
	select {
	case d.commands <- cmd:
		return true
	default:
		d.logger.Warn().Stringer("command", cmd).Msg("Command queue full, dropping")
		return false
	}
}

// Settings returns the values to persist. Valid after Run returns.
func (d *Daemon) Settings() Settings {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.settings
}

// Run starts the daemon and blocks until shutdown signal received
func (d *Daemon) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// Handle first signal gracefully, second signal forces exit
	go func() {
		select {
		case <-sigChan:
		case <-ctx.Done():
			return
		}
		d.logger.Info().Msg("Shutdown signal received, initiating graceful shutdown")
		cancel()

		<-sigChan
		d.logger.Warn().Msg("Second shutdown signal received, forcing exit")
		os.Exit(1)
	}()

	return d.RunContext(ctx)
}

// RunContext runs the daemon until ctx is cancelled or a Quit command
// arrives.
func (d *Daemon) RunContext(ctx context.Context) error {
	if err := d.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// run starts the background tasks and drives the loop
func (d *Daemon) run(ctx context.Context) error {
	d.logger.Info().Msg("Starting player")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	stations := make(chan []radio.Station, 1)

	g.Go(func() error {
		return ignoreCanceled(d.loader.Run(gctx, stations))
	})

	if d.listener != nil {
		g.Go(func() error {
			err := d.listener.Run(gctx, d.commands)
			if err != nil && gctx.Err() == nil {
				// The player keeps working without remote control
				d.logger.Error().Err(err).Msg("UDP listener failed")
				d.history.Emit(gctx, history.KindError, "UDP control unavailable: %v", err)
			}
			return nil
		})
	}

	if d.frontend != nil {
		g.Go(func() error {
			err := d.frontend.Run(gctx, d.commands)
			cancel()
			return ignoreCanceled(err)
		})
	}

	d.loop(gctx, stations)
	cancel()

	err := g.Wait()
	d.shutdown()

	d.logger.Info().Msg("Player stopped")
	return err
}

// loop is the only goroutine touching the session, router and log
func (d *Daemon) loop(ctx context.Context, stations <-chan []radio.Station) {
	ticker := time.NewTicker(d.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			d.session.Tick()

		case cmd := <-d.commands:
			if d.router.Apply(cmd) {
				d.logger.Info().Msg("Quit requested")
				return
			}

		case msg := <-d.history.C():
			d.record(msg)

		case res := <-d.session.Results():
			d.session.HandleResult(res)

		case list := <-stations:
			stations = nil
			d.router.SetStations(list, d.config.LastStation)
			if d.config.AutoPlay != "" {
				d.Send(control.Command{Kind: control.Tune, StationID: d.config.AutoPlay})
			}
		}

		d.publish()
	}
}

// record moves a history message into the log and tracks the stream
// title from playback entries.
func (d *Daemon) record(msg history.Message) {
	d.log.Append(msg)

	if msg.Kind == history.KindPlayback {
		if _, title, ok := strings.Cut(msg.Text, " :: "); ok {
			_, st := d.session.Active()
			d.title = title
			d.titleFor = st.ID
		}
	}
}

// view builds the frontend snapshot
func (d *Daemon) view() View {
	active, st := d.session.Active()
	title := d.title
	if d.titleFor != st.ID {
		title = ""
	}

	return View{
		Stations:        d.router.Stations(),
		Selected:        d.router.Selected(),
		Active:          active,
		State:           d.session.State(),
		Loading:         d.session.Loading(),
		Underrun:        d.session.Underrun(),
		RestartAttempts: d.session.RestartAttempts(),
		Volume:          d.session.Volume(),
		Elapsed:         d.session.Elapsed(),
		Title:           title,
		History:         d.log.Recent(d.config.LogLevel),
		Scroll:          d.router.Scroll(),
		Help:            d.router.Help(),
	}
}

// publish pushes the current view to the frontend and the state file
func (d *Daemon) publish() {
	v := d.view()

	if d.frontend != nil {
		d.frontend.Update(v)
	}

	if err := d.state.Update(nowPlaying(v)); err != nil {
		d.logger.Debug().Err(err).Msg("Failed to persist state")
	}
}

// shutdown releases the audio stream and records final settings
func (d *Daemon) shutdown() {
	d.session.Close()

	final := nowPlaying(d.view())
	final.State = radio.StateStopped.String()
	if err := d.state.Update(final); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to persist final state")
	}
	if err := d.state.Flush(); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to flush state")
	}

	volume, stationID := d.session.Settings()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.settings.Volume = volume
	if stationID != "" {
		d.settings.LastStation = stationID
	}
}

func nowPlaying(v View) NowPlaying {
	np := NowPlaying{
		State:     v.State.String(),
		Volume:    v.Volume,
		Elapsed:   v.Elapsed.Truncate(time.Second),
		Title:     v.Title,
		UpdatedAt: time.Now(),
	}
	if v.Active >= 0 && v.Active < len(v.Stations) {
		np.StationID = v.Stations[v.Active].ID
		np.Station = v.Stations[v.Active].Title
	}
	return np
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
