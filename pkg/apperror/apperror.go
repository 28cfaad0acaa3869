package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies an error so transport layers can map it to a status code
// and clients can decide whether a retry makes sense.
type Kind int

const (
	KindUnknown Kind = iota
	// KindNotFound - booking/vendor/service reference does not resolve
	KindNotFound
	// KindConflict - transition violates a state machine precondition
	KindConflict
	// KindForbidden - caller identity does not match the booking's parties
	KindForbidden
	// KindInvalid - malformed input
	KindInvalid
	// KindUnavailable - no eligible vendors for a lead
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindForbidden:
		return "forbidden"
	case KindInvalid:
		return "invalid"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Error is a domain error carrying a Kind and a client-safe message
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound builds a not-found error
func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Conflict builds a conflict error
func Conflict(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// Forbidden builds a forbidden error
func Forbidden(format string, args ...interface{}) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

// Invalid builds a validation error
func Invalid(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalid, Message: fmt.Sprintf(format, args...)}
}

// Unavailable builds an unavailable error
func Unavailable(format string, args ...interface{}) *Error {
	return &Error{Kind: KindUnavailable, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches an underlying cause to a domain error
func Wrap(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the Kind from an error chain, KindUnknown if absent
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether the error chain carries the given kind
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
