package playback

import "time"

// Underrun detection constants
const (
	GracePeriod    = 5 * time.Second        // Detection is suppressed this long after a connect starts
	StallThreshold = 5 * time.Second        // A frozen position counts only after this much play time
	BaseBackoff    = 500 * time.Millisecond // Delay required after the first restart
	MaxBackoff     = 30 * time.Second       // Upper bound for restart backoff
)

// Backoff returns the minimum delay between the previous restart and the
// next one: min(0.5s * 2^attempts, 30s).
func Backoff(attempts int) time.Duration {
	d := BaseBackoff
	for i := 0; i < attempts; i++ {
		d *= 2
		if d >= MaxBackoff {
			return MaxBackoff
		}
	}
	return d
}

// Sample is one observation of the sink taken by the host tick
type Sample struct {
	QueueLen      int
	Empty         bool
	Paused        bool
	Position      time.Duration
	PlaybackStart time.Time
}

// UnderrunTracker decides when a stalled stream should be restarted.
type UnderrunTracker struct {
	lastPosition    time.Duration
	lastCheck       time.Time
	loading         bool
	graceAnchor     time.Time
	lastRestart     time.Time
	restartAttempts int
	detected        bool
}

// Started records that a connect began at now. Detection waits for the
// grace period and for Loaded or Failed.
func (t *UnderrunTracker) Started(now time.Time) {
	t.graceAnchor = now
	t.loading = true
	t.lastPosition = 0
}

// Loaded records that a new stream is bound and collapses the backoff
func (t *UnderrunTracker) Loaded() {
	t.loading = false
	t.restartAttempts = 0
}

// Failed records that a connect ended without binding a stream
func (t *UnderrunTracker) Failed() {
	t.loading = false
}

// Check evaluates one tick and reports whether a restart is due. A true
// result counts as a restart attempt.
func (t *UnderrunTracker) Check(now time.Time, s Sample) bool {
	stalled := s.Position == t.lastPosition &&
		!s.PlaybackStart.IsZero() &&
		now.Sub(s.PlaybackStart) > StallThreshold
	potential := s.Empty || (s.QueueLen == 0 && !s.Paused) || stalled

	pastGrace := now.Sub(t.graceAnchor) > GracePeriod
	pastBackoff := t.lastRestart.IsZero() || now.Sub(t.lastRestart) >= Backoff(t.restartAttempts)

	t.lastPosition = s.Position
	t.lastCheck = now

	if potential && !t.loading && pastGrace && pastBackoff {
		t.lastRestart = now
		t.restartAttempts++
		t.detected = true
		return true
	}

	t.detected = false
	return false
}

// Loading reports whether a connect is in flight
func (t *UnderrunTracker) Loading() bool {
	return t.loading
}

// Detected reports whether the last check triggered a restart
func (t *UnderrunTracker) Detected() bool {
	return t.detected
}

// RestartAttempts returns restarts since the last successful bind
func (t *UnderrunTracker) RestartAttempts() int {
	return t.restartAttempts
}
