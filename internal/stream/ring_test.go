package stream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

func TestRingReadWriteWrap(t *testing.T) {
	r := NewRing(8)

	if _, err := r.Write([]byte("abcdef")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	buf := make([]byte, 4)
	if n, _ := r.Read(buf); string(buf[:n]) != "abcd" {
		t.Fatalf("Read = %q, want %q", buf[:n], "abcd")
	}

	// Crosses the end of the backing array
	if _, err := r.Write([]byte("ghijkl")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if r.Buffered() != 8 {
		t.Fatalf("Buffered() = %d, want 8", r.Buffered())
	}

	out := make([]byte, 8)
	n, err := io.ReadFull(r, out)
	if err != nil {
		t.Fatalf("ReadFull: %v", err)
	}
	if got := string(out[:n]); got != "efghijkl" {
		t.Errorf("got %q, want %q", got, "efghijkl")
	}
	if r.Written() != 12 {
		t.Errorf("Written() = %d, want 12", r.Written())
	}
}

func TestRingWriteBlocksWhenFull(t *testing.T) {
	r := NewRing(4)
	if _, err := r.Write([]byte("full")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	wrote := make(chan struct{})
	go func() {
		_, _ = r.Write([]byte("more"))
		close(wrote)
	}()

	select {
	case <-wrote:
		t.Fatal("Write returned while ring was full")
	case <-time.After(50 * time.Millisecond):
	}

	buf := make([]byte, 4)
	if _, err := io.ReadFull(r, buf); err != nil {
		t.Fatalf("ReadFull: %v", err)
	}

	select {
	case <-wrote:
	case <-time.After(time.Second):
		t.Fatal("Write did not resume after space was freed")
	}
}

func TestRingCloseWriteDrainsThenReportsError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{name: "clean end", err: nil, wantErr: io.EOF},
		{name: "io.EOF", err: io.EOF, wantErr: io.EOF},
		{name: "network error", err: errors.New("reset"), wantErr: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRing(16)
			_, _ = r.Write([]byte("tail"))
			r.CloseWrite(tt.err)

			data, err := io.ReadAll(r)
			if !bytes.Equal(data, []byte("tail")) {
				t.Errorf("ReadAll = %q, want %q", data, "tail")
			}
			// io.ReadAll swallows io.EOF
			if tt.wantErr == io.EOF && err != nil {
				t.Errorf("ReadAll error = %v, want nil", err)
			}
			if tt.err != nil && tt.err != io.EOF && !errors.Is(err, tt.err) {
				t.Errorf("ReadAll error = %v, want %v", err, tt.err)
			}
		})
	}
}

func TestRingCloseUnblocksWriter(t *testing.T) {
	r := NewRing(2)
	_, _ = r.Write([]byte("xx"))

	errc := make(chan error, 1)
	go func() {
		_, err := r.Write([]byte("yy"))
		errc <- err
	}()

	time.Sleep(20 * time.Millisecond)
	_ = r.Close()

	select {
	case err := <-errc:
		if !errors.Is(err, io.ErrClosedPipe) {
			t.Errorf("Write error = %v, want io.ErrClosedPipe", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not unblock writer")
	}
}

func TestRingWaitFor(t *testing.T) {
	t.Run("reaches target", func(t *testing.T) {
		r := NewRing(64)
		go func() {
			for i := 0; i < 4; i++ {
				_, _ = r.Write([]byte("12345678"))
				time.Sleep(5 * time.Millisecond)
			}
		}()
		if err := r.WaitFor(context.Background(), 32); err != nil {
			t.Fatalf("WaitFor: %v", err)
		}
		if r.Buffered() < 32 {
			t.Errorf("Buffered() = %d, want >= 32", r.Buffered())
		}
	})

	t.Run("target capped at capacity", func(t *testing.T) {
		r := NewRing(4)
		_, _ = r.Write([]byte("abcd"))
		if err := r.WaitFor(context.Background(), 1<<20); err != nil {
			t.Fatalf("WaitFor: %v", err)
		}
	})

	t.Run("producer ends early with data", func(t *testing.T) {
		r := NewRing(64)
		_, _ = r.Write([]byte("ab"))
		r.CloseWrite(nil)
		if err := r.WaitFor(context.Background(), 32); err != nil {
			t.Fatalf("WaitFor: %v", err)
		}
	})

	t.Run("producer ends empty", func(t *testing.T) {
		r := NewRing(64)
		r.CloseWrite(nil)
		if err := r.WaitFor(context.Background(), 32); !errors.Is(err, io.ErrUnexpectedEOF) {
			t.Fatalf("WaitFor error = %v, want io.ErrUnexpectedEOF", err)
		}
	})

	t.Run("context cancelled", func(t *testing.T) {
		r := NewRing(64)
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if err := r.WaitFor(ctx, 32); !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("WaitFor error = %v, want context.DeadlineExceeded", err)
		}
	})
}
