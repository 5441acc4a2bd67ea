package somafm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Channels fetches the raw channel directory.
func (c *Client) Channels(ctx context.Context) ([]Channel, error) {
	body, err := c.get(ctx, c.baseURL)
	if err != nil {
		return nil, err
	}

	var list channelList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("failed to parse channel list: %w", err)
	}
	return list.Channels, nil
}

// Stations fetches the directory and resolves every channel to a stream
// URL. Channels that fail to resolve are skipped; an error is returned
// only when the directory itself cannot be fetched or nothing resolved.
// Order follows the directory.
func (c *Client) Stations(ctx context.Context) ([]Station, error) {
	channels, err := c.Channels(ctx)
	if err != nil {
		return nil, err
	}

	resolved := make([]*Station, len(channels))
	var mu sync.Mutex
	var failures int

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for i, ch := range channels {
		g.Go(func() error {
			url, err := c.StreamURL(gctx, ch)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				c.logDebugf("somafm: skipping %s: %v", ch.ID, err)
				mu.Lock()
				failures++
				mu.Unlock()
				return nil
			}
			resolved[i] = &Station{Channel: ch, StreamURL: url}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	stations := make([]Station, 0, len(channels))
	for _, st := range resolved {
		if st != nil {
			stations = append(stations, *st)
		}
	}

	if len(stations) == 0 && len(channels) > 0 {
		return nil, fmt.Errorf("somafm: none of %d channels resolved", failures)
	}
	return stations, nil
}

// StreamURL resolves the best playlist of ch to a direct stream URL.
func (c *Client) StreamURL(ctx context.Context, ch Channel) (string, error) {
	pl, ok := BestPlaylist(ch.Playlists)
	if !ok {
		return "", ErrNoPlaylist
	}

	body, err := c.get(ctx, pl.URL)
	if err != nil {
		return "", err
	}
	return ParsePLS(body)
}

// BestPlaylist picks the highest quality MP3 playlist, falling back to
// any MP3 playlist and then to the first listed.
func BestPlaylist(playlists []Playlist) (Playlist, bool) {
	if len(playlists) == 0 {
		return Playlist{}, false
	}

	for _, pl := range playlists {
		if strings.EqualFold(pl.Format, "mp3") && strings.EqualFold(pl.Quality, "highest") {
			return pl, true
		}
	}
	for _, pl := range playlists {
		if strings.EqualFold(pl.Format, "mp3") {
			return pl, true
		}
	}
	return playlists[0], true
}

// ParsePLS returns the first FileN entry of a PLS playlist.
func ParsePLS(data []byte) (string, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		if len(key) > 4 && strings.EqualFold(key[:4], "file") {
			if value = strings.TrimSpace(value); value != "" {
				return value, nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read playlist: %w", err)
	}
	return "", ErrEmptyPlaylist
}
