// Package history carries user-facing diagnostics from every component to
// the host loop, which keeps a bounded in-memory log for the UI.
package history

import (
	"context"
	"fmt"
	"time"
)

// Kind tags a message with its severity or origin
type Kind int

const (
	KindInfo       Kind = iota // General user-facing notices
	KindError                  // Failures the user should see
	KindSystem                 // Pipeline step transitions
	KindBackground             // Low-level progress (buffering, decoder)
	KindPlayback               // Now-playing title updates
)

// String returns a human-readable representation of the Kind
func (k Kind) String() string {
	switch k {
	case KindInfo:
		return "info"
	case KindError:
		return "error"
	case KindSystem:
		return "system"
	case KindBackground:
		return "background"
	case KindPlayback:
		return "playback"
	default:
		return "unknown"
	}
}

// Message is a single history entry
type Message struct {
	Text string
	Kind Kind
	Time time.Time
}

// Timestamp formats the message time as HH:MM:SS
func (m Message) Timestamp() string {
	return m.Time.Format("15:04:05")
}

// Visible reports whether a message of this kind is shown at the given
// verbosity. Level 1 and below hide System and Background chatter.
func (k Kind) Visible(level int) bool {
	if level > 1 {
		return true
	}
	return k == KindError || k == KindInfo || k == KindPlayback
}

// Emitter is the producer side of the ordered history channel.
type Emitter struct {
	ch  chan Message
	now func() time.Time
}

// NewEmitter creates an Emitter with a channel of the given capacity
func NewEmitter(size int) *Emitter {
	return &Emitter{
		ch:  make(chan Message, size),
		now: time.Now,
	}
}

// C returns the consumer side of the channel
func (e *Emitter) C() <-chan Message {
	return e.ch
}

// Emit queues a message, blocking until there is room or ctx is done.
// Background goroutines use this so no entry is lost while the loop is
// busy.
func (e *Emitter) Emit(ctx context.Context, kind Kind, format string, args ...any) {
	msg := Message{Text: fmt.Sprintf(format, args...), Kind: kind, Time: e.now()}
	select {
	case e.ch <- msg:
	case <-ctx.Done():
	}
}

// TryEmit queues a message without blocking and reports whether it was
// accepted.
func (e *Emitter) TryEmit(kind Kind, format string, args ...any) bool {
	msg := Message{Text: fmt.Sprintf(format, args...), Kind: kind, Time: e.now()}
	select {
	case e.ch <- msg:
		return true
	default:
		return false
	}
}
