// Package waerr defines the error taxonomy shared by the auth store and its
// storage backends.
//
// ValidationError covers malformed input (session identifiers, collection
// names, timestamps, credential shapes) and is never retried. ConnectionError
// is raised after a storage operation exhausts its retry budget and wraps the
// last underlying cause. DecodingError is a ValidationError specialization
// raised while reviving serialized binary payloads.
package waerr

import "fmt"

// ValidationError reports malformed input. It is surfaced immediately to the
// caller and never retried.
type ValidationError struct {
	Msg   string
	Cause error
}

func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("validation: %s: %v", e.Msg, e.Cause)
	}
	return "validation: " + e.Msg
}

func (e *ValidationError) Unwrap() error { return e.Cause }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ConnectionError reports a storage operation that failed after exhausting
// its retry budget, or a store that could not be reached at all.
type ConnectionError struct {
	Op       string
	Attempts int
	Cause    error
}

func (e *ConnectionError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("connection: %s failed after %d attempts: %v", e.Op, e.Attempts, e.Cause)
	}
	return fmt.Sprintf("connection: %s: %v", e.Op, e.Cause)
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

// DecodingError reports a serialized payload that could not be revived, e.g.
// a marked buffer whose data is not valid base64. It unwraps to a
// ValidationError so callers can treat the two uniformly.
type DecodingError struct {
	Msg   string
	Cause error
}

func (e *DecodingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("decoding: %s: %v", e.Msg, e.Cause)
	}
	return "decoding: " + e.Msg
}

// Unwrap exposes the underlying cause through a ValidationError so that
// errors.As(err, **ValidationError) matches decoding failures too.
func (e *DecodingError) Unwrap() error {
	return &ValidationError{Msg: e.Msg, Cause: e.Cause}
}
