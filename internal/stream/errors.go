package stream

import (
	"errors"
	"fmt"
)

// ErrorKind separates input problems from connection problems.
type ErrorKind int

const (
	// TransportError covers failed handshakes, dropped connections and
	// streams that end before the sentinel.
	TransportError ErrorKind = iota
	// ValidationError is raised when the message is missing or blank.
	ValidationError
)

func (k ErrorKind) String() string {
	if k == ValidationError {
		return "validation"
	}
	return "transport"
}

var (
	// ErrBlankMessage reports a missing or whitespace-only message parameter.
	ErrBlankMessage = errors.New("message is empty")
	// ErrStreamTruncated reports a body that ended without the sentinel.
	ErrStreamTruncated = errors.New("stream ended before " + Sentinel)
)

// SessionError is the only error type delivered to an error callback.
type SessionError struct {
	Kind ErrorKind
	Err  error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("stream %s error: %v", e.Kind, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	var se *SessionError
	return errors.As(err, &se) && se.Kind == ValidationError
}

func transportErr(err error) *SessionError {
	return &SessionError{Kind: TransportError, Err: err}
}

func validationErr(err error) *SessionError {
	return &SessionError{Kind: ValidationError, Err: err}
}
