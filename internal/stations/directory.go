// Package stations resolves the station directory, backed by a local
// SQLite cache.
package stations

import (
	"context"
	"time"

	"github.com/jfmyers9/tuner/internal/radio"
	"github.com/jfmyers9/tuner/pkg/somafm"
	"github.com/rs/zerolog"
)

// Source fetches the live directory
type Source interface {
	Stations(ctx context.Context) ([]somafm.Station, error)
}

// Directory resolves stations from a Source, consulting the cache first.
type Directory struct {
	source Source
	cache  *Cache
	ttl    time.Duration
	logger zerolog.Logger
	now    func() time.Time
}

// NewDirectory creates a Directory. cache may be nil. A ttl of zero
// disables cache reads, though successful fetches still refresh it.
func NewDirectory(source Source, cache *Cache, ttl time.Duration, logger zerolog.Logger) *Directory {
	return &Directory{
		source: source,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With().Str("component", "stations").Logger(),
		now:    time.Now,
	}
}

// FetchAll returns the playable stations. A fresh cache is served without
// touching the network. When the network fails a stale cache is served
// instead. Errors are radio.KindStation.
func (d *Directory) FetchAll(ctx context.Context) ([]radio.Station, error) {
	if cached := d.fresh(ctx); len(cached) > 0 {
		d.logger.Debug().Int("count", len(cached)).Msg("Serving stations from cache")
		return cached, nil
	}
	return d.Refresh(ctx)
}

// Refresh fetches the live directory and updates the cache, falling back
// to any cached copy on failure.
func (d *Directory) Refresh(ctx context.Context) ([]radio.Station, error) {
	remote, err := d.source.Stations(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if stale := d.cached(ctx); len(stale) > 0 {
			d.logger.Warn().Err(err).Int("count", len(stale)).Msg("Directory fetch failed, serving stale cache")
			return stale, nil
		}
		return nil, &radio.Error{Kind: radio.KindStation, Op: "fetch directory", Err: err}
	}

	stations := make([]radio.Station, 0, len(remote))
	for _, st := range remote {
		stations = append(stations, fromSomaFM(st))
	}

	if len(stations) == 0 {
		return nil, radio.Errorf(radio.KindStation, "fetch directory", "directory is empty")
	}

	if d.cache != nil {
		if err := d.cache.Replace(ctx, stations, d.now()); err != nil {
			d.logger.Warn().Err(err).Msg("Failed to update station cache")
		}
	}

	d.logger.Info().Int("count", len(stations)).Msg("Station directory loaded")
	return stations, nil
}

func (d *Directory) fresh(ctx context.Context) []radio.Station {
	if d.cache == nil || d.ttl <= 0 {
		return nil
	}
	at, ok, err := d.cache.UpdatedAt(ctx)
	if err != nil {
		d.logger.Warn().Err(err).Msg("Failed to read station cache")
		return nil
	}
	if !ok || d.now().Sub(at) > d.ttl {
		return nil
	}
	return d.cached(ctx)
}

func (d *Directory) cached(ctx context.Context) []radio.Station {
	if d.cache == nil {
		return nil
	}
	stations, err := d.cache.All(ctx)
	if err != nil {
		d.logger.Warn().Err(err).Msg("Failed to read station cache")
		return nil
	}
	return stations
}

func fromSomaFM(st somafm.Station) radio.Station {
	image := st.LargeImage
	if image == "" {
		image = st.Image
	}
	return radio.Station{
		ID:          st.ID,
		Title:       st.Title,
		Description: st.Description,
		DJ:          st.DJ,
		Genre:       st.Genre,
		URL:         st.StreamURL,
		Image:       image,
		LastPlaying: st.LastPlaying,
	}
}

// ZerologAdapter adapts a zerolog.Logger to the somafm.Logger interface
type ZerologAdapter struct {
	Logger zerolog.Logger
}

// Debugf logs at debug level
func (a ZerologAdapter) Debugf(format string, args ...interface{}) {
	a.Logger.Debug().Msgf(format, args...)
}
