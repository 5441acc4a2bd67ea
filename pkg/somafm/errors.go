package somafm

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents an unsuccessful HTTP response from SomaFM.
type Error struct {
	StatusCode int    // HTTP status code
	URL        string // Requested URL
}

// Error returns the error message.
func (e *Error) Error() string {
	return fmt.Sprintf("somafm: %s returned %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Is matches another *Error with the same status code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.StatusCode == t.StatusCode
}

// Temporary returns true if the request may succeed when retried.
//
// Server errors (5xx) and rate limiting (429) are temporary.
func (e *Error) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

var (
	// ErrNoPlaylist is returned when a channel lists no playlists.
	ErrNoPlaylist = errors.New("somafm: channel has no playlist")

	// ErrEmptyPlaylist is returned when a PLS file has no File entries.
	ErrEmptyPlaylist = errors.New("somafm: playlist has no entries")
)
