package kpi

import (
	"errors"
	"fmt"
)

// ErrorKind categorises evaluation failures.
type ErrorKind string

// Error is an evaluation failure. No result is produced when Evaluate returns
// one.
type Error struct {
	Kind    ErrorKind         `json:"kind"`
	Message string            `json:"message"`
	Cause   error             `json:"-"`
	Context map[string]string `json:"context,omitempty"`
}

// Sentinels for errors.Is. Matching compares Kind only.
var (
	ErrNoActiveConnections = &Error{Kind: "NO_ACTIVE_CONNECTIONS"}
	ErrInsufficientData    = &Error{Kind: "INSUFFICIENT_DATA"}
	ErrMissingGridMetric   = &Error{Kind: "MISSING_GRID_METRIC"}
	ErrInvalidWindow       = &Error{Kind: "INVALID_WINDOW"}
	ErrUnsupportedKPI      = &Error{Kind: "UNSUPPORTED_KPI"}
	ErrDataSource          = &Error{Kind: "DATA_SOURCE"}
)

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, msg, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same Kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// WithContext adds a key/value pair and returns e.
func (e *Error) WithContext(key, value string) *Error {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

func newError(sentinel *Error, format string, args ...any) *Error {
	return &Error{Kind: sentinel.Kind, Message: fmt.Sprintf(format, args...)}
}

func wrapError(sentinel *Error, cause error, format string, args ...any) *Error {
	return &Error{Kind: sentinel.Kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Reason returns the error kind of err, or "INTERNAL" when err is not an
// *Error.
func Reason(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return string(e.Kind)
	}
	return "INTERNAL"
}
