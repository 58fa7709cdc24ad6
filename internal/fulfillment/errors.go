package fulfillment

import (
	"errors"
	"fmt"
)

// Kind classifies a fulfillment failure.
type Kind string

const (
	KindValidation      Kind = "VALIDATION"
	KindNotFound        Kind = "NOT_FOUND"
	KindConflict        Kind = "CONFLICT"
	KindConfiguration   Kind = "CONFIGURATION"
	KindProviderFailure Kind = "PROVIDER_FAILURE"
)

// Error is a typed fulfillment failure. For KindProviderFailure, Message is the
// carrier's own text, unmodified.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind when target is one of the kind sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// Kind sentinels, for use with errors.Is.
var (
	ErrValidation      = &Error{Kind: KindValidation}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrConflict        = &Error{Kind: KindConflict}
	ErrConfiguration   = &Error{Kind: KindConfiguration}
	ErrProviderFailure = &Error{Kind: KindProviderFailure}
)

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func validationError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func notFoundError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func conflictError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func configurationError(cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindConfiguration, Message: fmt.Sprintf(format, args...), Err: cause}
}

// NewNotFound builds a NotFound error; storage implementations use it for missing rows.
func NewNotFound(format string, args ...interface{}) error {
	return notFoundError(format, args...)
}

// NewConflict builds a Conflict error; storage implementations use it for stale writes.
func NewConflict(format string, args ...interface{}) error {
	return conflictError(format, args...)
}
