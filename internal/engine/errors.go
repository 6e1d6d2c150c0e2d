package engine

import (
	"errors"
	"fmt"

	"github.com/zcourts/dqlite/internal/gwproto"
)

// Error is a SQL-engine failure carrying the same small error-code
// space cowsql's client driver exposes on the wire (busy, I/O, not-
// found, ...) alongside a human-readable message. Handlers in package
// gateway propagate Error verbatim into a FAILURE response's Code and
// Message fields.
type Error struct {
	Code    gwproto.ErrCode
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("engine: %s (code %d)", e.Message, e.Code)
}

// NewError constructs an *Error with the given code and message.
func NewError(code gwproto.ErrCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// CodeOf extracts the engine error code from err, defaulting to
// ErrCodeError when err does not wrap an *Error.
func CodeOf(err error) gwproto.ErrCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return gwproto.ErrCodeError
}

// MessageOf extracts the human-readable message from err, falling back
// to err.Error() when err does not wrap an *Error.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
