package stream

import (
	"context"
	"io"
	"sync"
)

// DefaultBufferBytes is the ring capacity used when none is configured
const DefaultBufferBytes = 1 << 20

// Ring is a bounded byte ring buffer between the network producer and the
// decoder. Writes block while the ring is full so a slow consumer applies
// backpressure instead of growing memory.
type Ring struct {
	mu   sync.Mutex
	cond *sync.Cond

	buf      []byte
	readPos  int
	writePos int
	filled   int

	written  int64 // total bytes accepted from the producer
	writeEnd bool  // producer finished
	writeErr error // producer's terminal error (nil means clean EOF)
	closed   bool  // consumer side closed
}

// NewRing creates a ring holding at most capacity bytes
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultBufferBytes
	}
	r := &Ring{buf: make([]byte, capacity)}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Write copies p into the ring, blocking while it is full.
func (r *Ring) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for len(p) > 0 {
		if r.closed {
			return n, io.ErrClosedPipe
		}

		available := len(r.buf) - r.filled
		if available == 0 {
			r.cond.Wait()
			continue
		}

		toWrite := min(len(p), available)

		// Handle wrap-around
		endSpace := len(r.buf) - r.writePos
		if toWrite <= endSpace {
			copy(r.buf[r.writePos:], p[:toWrite])
		} else {
			copy(r.buf[r.writePos:], p[:endSpace])
			copy(r.buf, p[endSpace:toWrite])
		}
		r.writePos = (r.writePos + toWrite) % len(r.buf)

		r.filled += toWrite
		r.written += int64(toWrite)
		n += toWrite
		p = p[toWrite:]
		r.cond.Broadcast()
	}
	return n, nil
}

// Read copies buffered bytes into p, blocking while the ring is empty and
// the producer is still running. Once the producer has finished and the
// ring is drained, Read returns the producer's error or io.EOF.
func (r *Ring) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for r.filled == 0 {
		if r.closed {
			return 0, io.EOF
		}
		if r.writeEnd {
			if r.writeErr != nil {
				return 0, r.writeErr
			}
			return 0, io.EOF
		}
		r.cond.Wait()
	}

	toRead := min(len(p), r.filled)

	endSpace := len(r.buf) - r.readPos
	if toRead <= endSpace {
		copy(p, r.buf[r.readPos:r.readPos+toRead])
	} else {
		copy(p, r.buf[r.readPos:])
		copy(p[endSpace:], r.buf[:toRead-endSpace])
	}
	r.readPos = (r.readPos + toRead) % len(r.buf)

	r.filled -= toRead
	r.cond.Broadcast()
	return toRead, nil
}

// CloseWrite marks the producer as finished. Buffered bytes remain readable.
func (r *Ring) CloseWrite(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.writeEnd {
		return
	}
	r.writeEnd = true
	if err != io.EOF {
		r.writeErr = err
	}
	r.cond.Broadcast()
}

// Close releases both sides. Blocked writers fail and readers see EOF.
func (r *Ring) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	r.cond.Broadcast()
	return nil
}

// Buffered returns the number of unread bytes
func (r *Ring) Buffered() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filled
}

// Written returns the total number of bytes accepted so far
func (r *Ring) Written() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}

// WaitFor blocks until at least n bytes are buffered. It returns early
// without error if the producer finished after writing something, and
// fails if it finished without writing anything. n is capped at the ring
// capacity.
func (r *Ring) WaitFor(ctx context.Context, n int) error {
	n = min(n, len(r.buf))

	stop := context.AfterFunc(ctx, func() {
		r.mu.Lock()
		r.cond.Broadcast()
		r.mu.Unlock()
	})
	defer stop()

	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case r.filled >= n:
			return nil
		case r.closed:
			return io.ErrClosedPipe
		case r.writeEnd && r.written > 0:
			return nil
		case r.writeEnd && r.writeErr != nil:
			return r.writeErr
		case r.writeEnd:
			return io.ErrUnexpectedEOF
		}
		r.cond.Wait()
	}
}
