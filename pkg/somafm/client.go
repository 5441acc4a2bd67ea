package somafm

import (
	"net/http"
)

// Config holds client configuration.
type Config struct {
	HTTPClient  *http.Client // Optional: HTTP client (defaults to http.DefaultClient)
	BaseURL     string       // Optional: directory URL (defaults to the SomaFM channel list)
	Logger      Logger       // Optional: Logger interface for debug logging
	Concurrency int          // Optional: parallel playlist fetches (defaults to 8)
}

// Logger is an optional interface for logging.
type Logger interface {
	// Debugf logs a debug message with format and arguments.
	Debugf(format string, args ...interface{})
}

// Client fetches and resolves the SomaFM directory.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	logger      Logger
	concurrency int
}

const (
	// DefaultBaseURL is the SomaFM channel list.
	DefaultBaseURL = "https://somafm.com/channels.json"

	defaultConcurrency = 8
	userAgent          = "tuner/1.0"
)

// NewClient creates a new directory client.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	return &Client{
		httpClient:  httpClient,
		baseURL:     baseURL,
		logger:      cfg.Logger,
		concurrency: concurrency,
	}
}

// logDebugf logs a debug message if a logger is configured.
func (c *Client) logDebugf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Debugf(format, args...)
	}
}
