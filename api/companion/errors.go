package companion

import (
	"errors"
	"fmt"
)

// The different client error types.
var (
	ErrUnexpectedStatus  = errors.New("unexpected response status")
	ErrMalformedResponse = errors.New("malformed response")
)

// StatusError is returned when the companion service replies with a non-2xx status.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

// Error returns the formatted error.
func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: %s (%d)", e.Method, e.Path, ErrUnexpectedStatus, e.Code)
	if e.Body != "" {
		msg += ": " + e.Body
	}

	return msg
}

// Unwrap returns ErrUnexpectedStatus.
func (e *StatusError) Unwrap() error {
	return ErrUnexpectedStatus
}
