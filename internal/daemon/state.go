package daemon

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// defaultPersistInterval bounds how often elapsed-time updates hit disk
const defaultPersistInterval = 5 * time.Second

// NowPlaying is the snapshot published for other processes such as the
// now command.
type NowPlaying struct {
	StationID string        `json:"station_id,omitempty"`
	Station   string        `json:"station,omitempty"`
	Title     string        `json:"title,omitempty"`
	State     string        `json:"state"`
	Volume    float64       `json:"volume"`
	Elapsed   time.Duration `json:"elapsed"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Playing reports whether the snapshot describes audible playback
func (np NowPlaying) Playing() bool {
	return np.State == "playing" && np.StationID != ""
}

// State holds the latest NowPlaying snapshot and persists it to disk
type State struct {
	mu       sync.RWMutex
	current  NowPlaying
	filePath string // Path to state file for persistence

	persistInterval time.Duration
	lastPersist     time.Time
	dirty           bool // changes not yet written
}

// NewState creates a new State instance
// If filePath is provided, attempts to restore state from disk
func NewState(filePath string) (*State, error) {
	s := &State{
		filePath:        filePath,
		persistInterval: defaultPersistInterval,
	}

	if filePath != "" {
		if err := s.restore(); err != nil && !os.IsNotExist(err) {
			// Not fatal - the player starts fresh
			return s, err
		}
	}

	return s, nil
}

// Update replaces the snapshot. Station, title and state changes are
// written immediately; elapsed-time and volume drift is throttled.
func (s *State) Update(np NowPlaying) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	significant := np.StationID != s.current.StationID ||
		np.Title != s.current.Title ||
		np.State != s.current.State
	unchanged := np.Volume == s.current.Volume && np.Elapsed == s.current.Elapsed

	if !significant && unchanged {
		return nil
	}

	s.current = np
	if significant {
		return s.persist()
	}
	s.dirty = true
	return s.throttledPersist()
}

// Get returns a copy of the current snapshot
func (s *State) Get() NowPlaying {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Flush writes pending changes, if any
func (s *State) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}
	return s.persist()
}

// throttledPersist writes only when persistInterval has elapsed since the
// last write, leaving dirty set otherwise.
// Must be called with lock held
func (s *State) throttledPersist() error {
	if time.Since(s.lastPersist) < s.persistInterval {
		s.dirty = true
		return nil
	}
	return s.persist()
}

// persist saves the current state to disk
// Must be called with lock held
func (s *State) persist() error {
	if s.filePath == "" {
		s.dirty = false
		return nil // No persistence configured
	}

	data, err := json.MarshalIndent(s.current, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	// Write atomically via temp file + rename
	tmpPath := s.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, s.filePath); err != nil {
		return err
	}

	s.dirty = false
	s.lastPersist = time.Now()
	return nil
}

// restore loads state from disk
func (s *State) restore() error {
	np, err := ReadNowPlaying(s.filePath)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = np
	return nil
}

// ReadNowPlaying loads a snapshot written by a running player
func ReadNowPlaying(path string) (NowPlaying, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return NowPlaying{}, err
	}

	var np NowPlaying
	if err := json.Unmarshal(data, &np); err != nil {
		return NowPlaying{}, err
	}
	return np, nil
}
