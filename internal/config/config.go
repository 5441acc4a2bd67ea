package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	// Persisted player settings, written back by Save
	Volume      float64
	LastStation string
	LogLevel    int // History verbosity; 1 and below hides system chatter
	UDPPort     int
	UDPEnabled  bool

	// Interval of the player's control loop
	TickInterval time.Duration

	Stream    StreamConfig
	Audio     AudioConfig
	Directory DirectoryConfig

	// Output format template for the now command
	// Default: "{{.Station}}{{if .Title}} - {{.Title}}{{end}}"
	OutputFormat string

	// Pad or truncate now output to this display width (0 disables)
	OutputWidth int

	// Scroll now output that exceeds OutputWidth instead of truncating
	MarqueeEnabled   bool
	MarqueeSpeed     int // characters per second
	MarqueeSeparator string

	dir string
}

// StreamConfig tunes the network pipeline
type StreamConfig struct {
	PrefetchSeconds int
	BufferBytes     int
}

// AudioConfig describes the output device
type AudioConfig struct {
	SampleRate int
	Buffer     time.Duration
}

// DirectoryConfig locates the station directory
type DirectoryConfig struct {
	URL      string
	CacheTTL time.Duration
}

const (
	DefaultOutputFormat = "{{.Station}}{{if .Title}} - {{.Title}}{{end}}"
	DefaultDirectoryURL = "https://somafm.com/channels.json"
)

// Load reads configuration from file and environment
func Load() (*Config, error) {
	return LoadDir(getConfigDir())
}

// LoadDir reads configuration from dir/config.yaml and the environment.
// Save writes back to the same directory.
func LoadDir(dir string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	v.AddConfigPath(".")

	v.SetDefault("volume", 1.0)
	v.SetDefault("last_station", "")
	v.SetDefault("log_level", 1)
	v.SetDefault("udp_port", 8069)
	v.SetDefault("udp_enabled", false)
	v.SetDefault("tick_interval", "250ms")
	v.SetDefault("stream.prefetch_seconds", 5)
	v.SetDefault("stream.buffer_bytes", 1<<20)
	v.SetDefault("audio.sample_rate", 44100)
	v.SetDefault("audio.buffer", "200ms")
	v.SetDefault("directory.url", DefaultDirectoryURL)
	v.SetDefault("directory.cache_ttl", "24h")
	v.SetDefault("output_format", DefaultOutputFormat)
	v.SetDefault("output_width", 0)
	v.SetDefault("marquee_enabled", false)
	v.SetDefault("marquee_speed", 2)
	v.SetDefault("marquee_separator", " • ")

	// Read config file (optional - don't fail if missing)
	_ = v.ReadInConfig()

	// TUNER_STREAM_PREFETCH_SECONDS and friends
	v.SetEnvPrefix("TUNER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		Volume:       v.GetFloat64("volume"),
		LastStation:  v.GetString("last_station"),
		LogLevel:     v.GetInt("log_level"),
		UDPPort:      v.GetInt("udp_port"),
		UDPEnabled:   v.GetBool("udp_enabled"),
		TickInterval: v.GetDuration("tick_interval"),
		Stream: StreamConfig{
			PrefetchSeconds: v.GetInt("stream.prefetch_seconds"),
			BufferBytes:     v.GetInt("stream.buffer_bytes"),
		},
		Audio: AudioConfig{
			SampleRate: v.GetInt("audio.sample_rate"),
			Buffer:     v.GetDuration("audio.buffer"),
		},
		Directory: DirectoryConfig{
			URL:      v.GetString("directory.url"),
			CacheTTL: v.GetDuration("directory.cache_ttl"),
		},
		OutputFormat:     v.GetString("output_format"),
		OutputWidth:      v.GetInt("output_width"),
		MarqueeEnabled:   v.GetBool("marquee_enabled"),
		MarqueeSpeed:     v.GetInt("marquee_speed"),
		MarqueeSeparator: v.GetString("marquee_separator"),
		dir:              dir,
	}

	return cfg, nil
}

// getConfigDir returns the configuration directory path
// Creates the directory if it doesn't exist
func getConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	configDir := filepath.Join(homeDir, ".config", "tuner")

	// Create config directory if it doesn't exist
	_ = os.MkdirAll(configDir, 0755)

	return configDir
}

// GetConfigDir returns the configuration directory path (public helper)
func GetConfigDir() string {
	return getConfigDir()
}

// DefaultDataDir returns ~/.local/share/tuner, or "." when the home
// directory is unknown.
func DefaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(homeDir, ".local", "share", "tuner")
}

// Save writes the persisted player settings to the config file. Other
// keys already in the file are kept.
func (c *Config) Save() error {
	dir := c.dir
	if dir == "" {
		dir = getConfigDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	configFile := filepath.Join(dir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configFile)
	_ = v.ReadInConfig()

	v.Set("volume", c.Volume)
	v.Set("last_station", c.LastStation)
	v.Set("log_level", c.LogLevel)
	v.Set("udp_port", c.UDPPort)
	v.Set("udp_enabled", c.UDPEnabled)

	return v.WriteConfigAs(configFile)
}
