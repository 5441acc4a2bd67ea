/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/jfmyers9/tuner/internal/audio"
	"github.com/jfmyers9/tuner/internal/config"
	"github.com/jfmyers9/tuner/internal/daemon"
	"github.com/jfmyers9/tuner/internal/history"
	"github.com/jfmyers9/tuner/internal/stations"
	"github.com/jfmyers9/tuner/internal/stream"
	"github.com/jfmyers9/tuner/internal/tui"
	"github.com/jfmyers9/tuner/pkg/somafm"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	runLogFile      string
	runLogLevel     string
	runDataDir      string
	runStation      string
	runUDP          bool
	runPort         int
	runHeadless     bool
	runHistoryLevel int
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the radio player",
	Long: `Run the radio player with its terminal interface.

The player will:
- Load the SomaFM station directory (cached for a day in the data directory)
- Stream the selected station to the default audio device
- Watch for stalls and reconnect with exponential backoff
- Accept UDP commands from other shells when --udp is set
- Save volume and the last station to the config file on exit

With --headless no interface is drawn and logs go to stderr. Use
--station to start playing a station as soon as the directory loads.`,
	RunE: runPlayer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runLogFile, "log-file", "", "Log file path (default: <data-dir>/tuner.log, stderr when headless)")
	runCmd.Flags().StringVar(&runLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	runCmd.Flags().StringVar(&runDataDir, "data-dir", "", "Data directory for state and cache (default: ~/.local/share/tuner)")
	runCmd.Flags().StringVar(&runStation, "station", "", "Station id to play once the directory loads")
	runCmd.Flags().BoolVar(&runUDP, "udp", false, "Listen for UDP control commands (overrides config)")
	runCmd.Flags().IntVar(&runPort, "port", 0, "UDP control port (overrides config)")
	runCmd.Flags().BoolVar(&runHeadless, "headless", false, "Run without the terminal interface")
	runCmd.Flags().IntVar(&runHistoryLevel, "history-level", -1, "History verbosity; 2 shows connection steps (overrides config)")
}

func runPlayer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	overrides := runOverrides{
		Port:         runPort,
		HistoryLevel: runHistoryLevel,
		AutoPlay:     runStation,
	}
	if cmd.Flags().Changed("udp") {
		overrides.UDP = &runUDP
	}

	dataDir := runDataDir
	if dataDir == "" {
		dataDir = config.DefaultDataDir()
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	// The interface owns the terminal, so logs go to a file unless headless
	logFile := runLogFile
	if logFile == "" && !runHeadless {
		logFile = filepath.Join(dataDir, "tuner.log")
	}
	logger, closeLog := setupLogger(logFile, runLogLevel)
	defer closeLog()

	logger.Info().
		Str("version", version).
		Str("data_dir", dataDir).
		Msg("Starting tuner")

	format := audio.Format{SampleRate: cfg.Audio.SampleRate, Channels: 2}
	output, err := audio.NewOtoOutput(format, cfg.Audio.Buffer)
	if err != nil {
		logger.Error().Err(err).Msg("Audio device unavailable")
		return fmt.Errorf("failed to open audio device: %w", err)
	}
	sink := audio.NewSink(output, format)
	defer sink.Close()

	emitter := history.NewEmitter(256)

	connector := stream.NewConnector(stream.Config{
		PrefetchSeconds: cfg.Stream.PrefetchSeconds,
		BufferBytes:     cfg.Stream.BufferBytes,
		SampleRate:      cfg.Audio.SampleRate,
	}, emitter, logger)

	directory, closeDir := newDirectory(cfg, dataDir, logger)
	defer closeDir()

	var frontend daemon.Frontend
	if !runHeadless {
		frontend = tui.New(logger)
	}

	d, err := daemon.New(playerConfig(cfg, overrides, filepath.Join(dataDir, "state.json")), daemon.Deps{
		Sink:      sink,
		Connector: daemon.StreamConnector(connector),
		Stations:  directory,
		History:   emitter,
		Frontend:  frontend,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create player: %w", err)
	}

	// Blocks until quit or shutdown signal
	if err := d.Run(); err != nil {
		return fmt.Errorf("player error: %w", err)
	}

	if err := saveSettings(cfg, d.Settings()); err != nil {
		logger.Warn().Err(err).Msg("Failed to save settings")
	}

	logger.Info().Msg("Player stopped")
	return nil
}

// runOverrides are command-line values that apply to this run only
type runOverrides struct {
	UDP          *bool // nil keeps the config value
	Port         int   // 0 keeps the config value
	HistoryLevel int   // negative keeps the config value
	AutoPlay     string
}

// playerConfig merges cfg with this run's overrides. cfg is left untouched
// so the overrides never reach the config file.
func playerConfig(cfg *config.Config, o runOverrides, stateFile string) daemon.Config {
	dc := daemon.Config{
		TickInterval: cfg.TickInterval,
		StateFile:    stateFile,
		Volume:       cfg.Volume,
		LastStation:  cfg.LastStation,
		AutoPlay:     o.AutoPlay,
		LogLevel:     cfg.LogLevel,
		UDPEnabled:   cfg.UDPEnabled,
		UDPPort:      cfg.UDPPort,
	}
	if o.UDP != nil {
		dc.UDPEnabled = *o.UDP
	}
	if o.Port > 0 {
		dc.UDPPort = o.Port
	}
	if o.HistoryLevel >= 0 {
		dc.LogLevel = o.HistoryLevel
	}
	return dc
}

// saveSettings persists the volume and station the player ended on. The
// remaining persisted keys keep their configured values.
func saveSettings(cfg *config.Config, settings daemon.Settings) error {
	cfg.Volume = settings.Volume
	cfg.LastStation = settings.LastStation
	return cfg.Save()
}

// newDirectory builds the cached SomaFM directory. A cache that cannot be
// opened is skipped rather than failing startup.
func newDirectory(cfg *config.Config, dataDir string, logger zerolog.Logger) (*stations.Directory, func()) {
	client := somafm.NewClient(somafm.Config{
		BaseURL:    cfg.Directory.URL,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		Logger:     stations.ZerologAdapter{Logger: logger},
	})

	cache, err := stations.OpenCache(filepath.Join(dataDir, "stations.db"))
	if err != nil {
		logger.Warn().Err(err).Msg("Station cache unavailable")
		return stations.NewDirectory(client, nil, cfg.Directory.CacheTTL, logger), func() {}
	}

	return stations.NewDirectory(client, cache, cfg.Directory.CacheTTL, logger), func() {
		if err := cache.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close station cache")
		}
	}
}

// setupLogger creates a logger with the specified configuration. The
// returned func closes the log file, if any.
func setupLogger(logFile, logLevel string) (zerolog.Logger, func()) {
	// Parse log level
	level := zerolog.InfoLevel
	switch logLevel {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	// Set up output
	var output io.Writer = os.Stderr
	closeFn := func() {}
	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create log directory: %v\n", err)
		}
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		} else {
			output = f
			closeFn = func() { _ = f.Close() }
		}
	}

	logger := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()

	// Use pretty console output if logging to stderr
	if output == os.Stderr {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	return logger, closeFn
}
