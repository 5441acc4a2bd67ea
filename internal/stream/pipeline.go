// Package stream opens live ICY/HTTP audio streams and turns them into
// decoded PCM sources.
package stream

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/jfmyers9/tuner/internal/history"
	"github.com/jfmyers9/tuner/internal/radio"
	"github.com/rs/zerolog"
)

const (
	// DefaultPrefetchSeconds is the buffering depth before decoding starts
	DefaultPrefetchSeconds = 5

	// TitleQueueSize bounds pending now-playing updates
	TitleQueueSize = 32

	userAgent = "tuner/1.0"
)

// Config holds stream pipeline settings
type Config struct {
	HTTPClient      *http.Client // Optional: defaults to a client without an overall timeout
	PrefetchSeconds int          // Seconds of audio buffered before decoding
	BufferBytes     int          // Ring buffer capacity
	SampleRate      int          // Output sample rate; other rates are resampled (0 accepts any)
	Decode          DecodeFunc   // Optional: defaults to DecodeMP3
}

// StatusError is returned when the stream server answers with a non-200
// status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d %s", e.Code, http.StatusText(e.Code))
}

// Connector opens streams for stations
type Connector struct {
	config  Config
	client  *http.Client
	history *history.Emitter
	logger  zerolog.Logger
}

// NewConnector creates a Connector. Step transitions are reported on
// emitter when it is non-nil.
func NewConnector(cfg Config, emitter *history.Emitter, logger zerolog.Logger) *Connector {
	if cfg.PrefetchSeconds <= 0 {
		cfg.PrefetchSeconds = DefaultPrefetchSeconds
	}
	if cfg.BufferBytes <= 0 {
		cfg.BufferBytes = DefaultBufferBytes
	}
	if cfg.Decode == nil {
		cfg.Decode = DecodeMP3
	}

	client := cfg.HTTPClient
	if client == nil {
		// Live streams never end, so only the setup phases get deadlines
		client = &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 15 * time.Second,
			},
		}
	}

	return &Connector{
		config:  cfg,
		client:  client,
		history: emitter,
		logger:  logger.With().Str("component", "stream").Logger(),
	}
}

// Source is a connected, decoded stream. Reads return PCM. Close releases
// the connection, the buffer and the decoder.
type Source struct {
	pcm     Decoded
	ring    *Ring
	cancel  context.CancelFunc
	bitrate int
	once    sync.Once
}

// Read implements io.Reader
func (s *Source) Read(p []byte) (int, error) {
	return s.pcm.Read(p)
}

// SampleRate returns the decoded sample rate in Hz
func (s *Source) SampleRate() int {
	return s.pcm.SampleRate()
}

// Bitrate returns the nominal stream bitrate in kbps
func (s *Source) Bitrate() int {
	return s.bitrate
}

// Buffered returns the compressed bytes waiting in the ring
func (s *Source) Buffered() int {
	return s.ring.Buffered()
}

// Close implements io.Closer
func (s *Source) Close() error {
	s.once.Do(func() {
		s.cancel()
		_ = s.ring.Close()
	})
	return nil
}

// Connect opens station's stream, prefetches and starts the decoder.
// Cancelling ctx aborts the attempt and, after success, tears the source
// down.
func (c *Connector) Connect(ctx context.Context, station radio.Station) (*Source, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	src, err := c.connect(streamCtx, station, cancel)
	if err != nil {
		cancel()
		if ctx.Err() == nil {
			c.emit(ctx, history.KindError, "Stream error for %s: %v", station.Title, err)
		}
		c.logger.Warn().Err(err).Str("station", station.ID).Msg("Connect failed")
		return nil, err
	}
	return src, nil
}

func (c *Connector) connect(ctx context.Context, station radio.Station, cancel context.CancelFunc) (*Source, error) {
	c.emit(ctx, history.KindSystem, "Streaming from %s", station.URL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, station.URL, nil)
	if err != nil {
		return nil, &radio.Error{Kind: radio.KindNetwork, Op: "connect", Err: err}
	}
	req.Header.Set("Icy-MetaData", "1")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &radio.Error{Kind: radio.KindNetwork, Op: "connect", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, &radio.Error{Kind: radio.KindNetwork, Op: "connect", Err: &StatusError{Code: resp.StatusCode}}
	}

	bitrate := parseBitrate(resp.Header.Get("icy-br"))
	metaint, _ := strconv.Atoi(resp.Header.Get("icy-metaint"))
	prefetch := PrefetchBytes(bitrate, c.config.PrefetchSeconds)

	c.emit(ctx, history.KindBackground, "Got response from %s", station.Title)
	c.emit(ctx, history.KindSystem, "Bit rate: %d kbps", bitrate)
	c.logger.Debug().
		Str("station", station.ID).
		Int("bitrate", bitrate).
		Int("metaint", metaint).
		Int("prefetch", prefetch).
		Str("icy_name", resp.Header.Get("icy-name")).
		Msg("Stream connected")

	titles := make(chan string, TitleQueueSize)
	ring := NewRing(c.config.BufferBytes)
	body := NewICYReader(resp.Body, metaint, func(title string) {
		select {
		case titles <- title:
		default:
			// Relay is behind; drop the update
		}
	})

	go func() {
		_, err := io.Copy(ring, body)
		ring.CloseWrite(err)
		_ = resp.Body.Close()
		close(titles)
	}()
	go c.relayTitles(ctx, station, titles)

	c.emit(ctx, history.KindBackground, "Buffering %d KB", prefetch/1024)
	if err := ring.WaitFor(ctx, prefetch); err != nil {
		_ = ring.Close()
		return nil, &radio.Error{Kind: radio.KindStream, Op: "prefetch", Err: err}
	}

	pcm, err := c.decode(ctx, ring)
	if err != nil {
		_ = ring.Close()
		return nil, &radio.Error{Kind: radio.KindStream, Op: "decode", Err: err}
	}
	c.emit(ctx, history.KindBackground, "Decoder ready (%d Hz)", pcm.SampleRate())

	if want := c.config.SampleRate; want > 0 && pcm.SampleRate() != want {
		c.emit(ctx, history.KindBackground, "Resampling %d Hz to %d Hz", pcm.SampleRate(), want)
		pcm = Resample(pcm, want)
	}

	return &Source{
		pcm:     pcm,
		ring:    ring,
		cancel:  cancel,
		bitrate: bitrate,
	}, nil
}

// decode runs the decoder setup on its own goroutine so a stalled header
// read can be abandoned when ctx is cancelled.
func (c *Connector) decode(ctx context.Context, ring *Ring) (Decoded, error) {
	type result struct {
		pcm Decoded
		err error
	}
	done := make(chan result, 1)

	go func() {
		pcm, err := c.config.Decode(ring)
		done <- result{pcm: pcm, err: err}
	}()

	select {
	case res := <-done:
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return res.pcm, res.err
	case <-ctx.Done():
		// Unblocks the decoder's pending read
		_ = ring.Close()
		return nil, ctx.Err()
	}
}

// relayTitles forwards metadata updates to the history log until the
// producer closes the channel.
func (c *Connector) relayTitles(ctx context.Context, station radio.Station, titles <-chan string) {
	for title := range titles {
		c.emit(ctx, history.KindPlayback, "%s :: %s", station.Title, title)
	}
}

func (c *Connector) emit(ctx context.Context, kind history.Kind, format string, args ...any) {
	if c.history == nil {
		return
	}
	c.history.Emit(ctx, kind, format, args...)
}
