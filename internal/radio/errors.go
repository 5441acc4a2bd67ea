package radio

import (
	"errors"
	"fmt"
)

// Kind classifies failures so callers can decide whether to recover
// locally or surface the error.
type Kind int

const (
	KindGeneric Kind = iota
	KindNetwork      // Transport or HTTP failures
	KindAudio        // Output device unavailable or busy
	KindStream       // Prefetch or decode failures
	KindStation      // Directory fetch or parse failures
	KindControl      // Malformed control command
)

// String returns the lowercase name of the kind
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAudio:
		return "audio"
	case KindStream:
		return "stream"
	case KindStation:
		return "station"
	case KindControl:
		return "control"
	default:
		return "generic"
	}
}

// Error is a classified failure.
//
// Op names the step that failed ("connect", "prefetch", "decode", ...).
// Two errors match under errors.Is when their kinds are equal, so callers
// can test against a bare &Error{Kind: KindStream}.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Error returns the error message.
func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s error: %s", e.Kind, e.Op)
	default:
		return fmt.Sprintf("%s error", e.Kind)
	}
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Errorf builds an *Error wrapping a formatted cause.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindGeneric when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindGeneric
}
