package history

import "time"

// DefaultLogSize is the number of entries kept for display
const DefaultLogSize = 500

// Log is a fixed-size ring of messages owned by the host loop.
// It is not safe for concurrent use.
type Log struct {
	buf   []Message
	count int // total messages added (count % len(buf) = next write index)
	now   func() time.Time
}

// NewLog creates a Log holding at most size messages
func NewLog(size int) *Log {
	if size <= 0 {
		size = DefaultLogSize
	}
	return &Log{
		buf: make([]Message, size),
		now: time.Now,
	}
}

// Append adds a message, overwriting the oldest once full
func (l *Log) Append(msg Message) {
	l.buf[l.count%len(l.buf)] = msg
	l.count++
}

// Add records a message stamped with the current time
func (l *Log) Add(kind Kind, text string) {
	l.Append(Message{Text: text, Kind: kind, Time: l.now()})
}

// Len returns the number of messages retained
func (l *Log) Len() int {
	if l.count > len(l.buf) {
		return len(l.buf)
	}
	return l.count
}

// Recent returns retained messages visible at level, most recent first.
func (l *Log) Recent(level int) []Message {
	n := l.Len()
	result := make([]Message, 0, n)
	for i := 0; i < n; i++ {
		// Walk backwards from the most recently written slot
		msg := l.buf[(l.count-1-i)%len(l.buf)]
		if msg.Kind.Visible(level) {
			result = append(result, msg)
		}
	}
	return result
}
