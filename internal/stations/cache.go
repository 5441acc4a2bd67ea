package stations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jfmyers9/tuner/internal/radio"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

const updatedAtKey = "updated_at"

// Cache keeps the last resolved directory in SQLite so startup does not
// depend on the network.
type Cache struct {
	db *sql.DB
}

// OpenCache opens (or creates) the cache at dbPath and applies migrations.
// Use ":memory:" for a throwaway cache.
func OpenCache(dbPath string) (*Cache, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps ":memory:" databases consistent
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA journal_mode = WAL",
		"PRAGMA temp_store = MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Cache{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("sqlite driver: %w", err)
	}

	d, err := iofs.New(embeddedMigrations, "migrations")
	if err != nil {
		return fmt.Errorf("iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", d, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("migrate init: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Close closes the database connection
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Replace swaps the cached directory for stations and stamps it with at.
func (c *Cache) Replace(ctx context.Context, stations []radio.Station, at time.Time) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM stations"); err != nil {
		return fmt.Errorf("failed to clear stations: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO stations (id, position, title, description, dj, genre, url, image, last_playing)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, st := range stations {
		_, err := stmt.ExecContext(ctx,
			st.ID, i, st.Title, st.Description, st.DJ, st.Genre, st.URL, st.Image, st.LastPlaying,
		)
		if err != nil {
			return fmt.Errorf("failed to insert station %s: %w", st.ID, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO directory_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, updatedAtKey, strconv.FormatInt(at.Unix(), 10))
	if err != nil {
		return fmt.Errorf("failed to stamp cache: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// All returns the cached stations in directory order.
func (c *Cache) All(ctx context.Context) ([]radio.Station, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, title, description, dj, genre, url, image, last_playing
		FROM stations
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stations: %w", err)
	}
	defer rows.Close()

	var stations []radio.Station
	for rows.Next() {
		var st radio.Station
		err := rows.Scan(&st.ID, &st.Title, &st.Description, &st.DJ, &st.Genre, &st.URL, &st.Image, &st.LastPlaying)
		if err != nil {
			return nil, fmt.Errorf("failed to scan station: %w", err)
		}
		stations = append(stations, st)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stations: %w", err)
	}
	return stations, nil
}

// Count returns the number of cached stations
func (c *Cache) Count(ctx context.Context) (int, error) {
	var count int
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM stations").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count stations: %w", err)
	}
	return count, nil
}

// UpdatedAt returns when the cache was last replaced. ok is false for a
// cache that was never filled.
func (c *Cache) UpdatedAt(ctx context.Context) (t time.Time, ok bool, err error) {
	var value string
	err = c.db.QueryRowContext(ctx,
		"SELECT value FROM directory_meta WHERE key = ?", updatedAtKey,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read cache timestamp: %w", err)
	}

	secs, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid cache timestamp %q: %w", value, err)
	}
	return time.Unix(secs, 0), true, nil
}
