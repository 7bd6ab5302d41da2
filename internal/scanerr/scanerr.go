// Package scanerr defines the error kinds surfaced by a scan session.
//
// Fatal kinds (Config, Capability, Device, Remote, NoSession) always reach
// the caller. NotFound is recoverable: the scheduler consumes it and keeps
// sampling, so it never escapes a session.
package scanerr

import (
	"errors"
	"fmt"
)

// Kind classifies a scan error.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfig
	KindCapability
	KindDevice
	KindNotFound
	KindRemote
	KindNoSession
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindCapability:
		return "capability"
	case KindDevice:
		return "device"
	case KindNotFound:
		return "not found"
	case KindRemote:
		return "remote"
	case KindNoSession:
		return "no session"
	default:
		return "unknown"
	}
}

// Error carries a Kind, the operation that failed and an optional cause.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op == "" {
		return fmt.Sprintf("%s error: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s error: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns an error of the given kind.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap attaches a kind to err. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Config reports an invalid or missing option.
func Config(op, format string, args ...any) *Error {
	return New(KindConfig, op, fmt.Sprintf(format, args...))
}

// Capability reports a missing decoder library or device feature.
func Capability(op, format string, args ...any) *Error {
	return New(KindCapability, op, fmt.Sprintf(format, args...))
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Fatal reports whether err must end a session.
func Fatal(err error) bool {
	return err != nil && KindOf(err) != KindNotFound
}
