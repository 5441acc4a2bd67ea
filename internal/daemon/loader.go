package daemon

import (
	"context"
	"time"

	"github.com/jfmyers9/tuner/internal/history"
	"github.com/jfmyers9/tuner/internal/radio"
	"github.com/rs/zerolog"
)

const (
	loaderBaseBackoff = 1 * time.Second
	loaderMaxBackoff  = 30 * time.Second
)

// StationFetcher resolves the station directory
type StationFetcher interface {
	FetchAll(ctx context.Context) ([]radio.Station, error)
}

// Loader fetches the station list in the background, retrying until it
// succeeds, and delivers it exactly once.
type Loader struct {
	fetcher StationFetcher
	history *history.Emitter
	logger  zerolog.Logger
	backoff time.Duration
}

// NewLoader creates a new Loader instance
func NewLoader(fetcher StationFetcher, emitter *history.Emitter, logger zerolog.Logger) *Loader {
	return &Loader{
		fetcher: fetcher,
		history: emitter,
		logger:  logger.With().Str("component", "loader").Logger(),
		backoff: loaderBaseBackoff,
	}
}

// Run fetches until success or ctx is cancelled and sends the result on
// out. Blocks until delivered.
func (l *Loader) Run(ctx context.Context, out chan<- []radio.Station) error {
	l.logger.Info().Msg("Loading station directory")
	l.history.Emit(ctx, history.KindSystem, "Loading station directory")

	backoff := l.backoff
	for attempt := 1; ; attempt++ {
		stations, err := l.fetcher.FetchAll(ctx)
		if err == nil {
			l.logger.Info().Int("count", len(stations)).Int("attempt", attempt).Msg("Stations loaded")
			l.history.Emit(ctx, history.KindInfo, "Loaded %d stations", len(stations))
			select {
			case out <- stations:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		l.logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", backoff).Msg("Failed to load stations")
		l.history.Emit(ctx, history.KindError, "Failed to load stations: %v (retrying in %s)", err, backoff)

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}

		backoff *= 2
		if backoff > loaderMaxBackoff {
			backoff = loaderMaxBackoff
		}
	}
}
