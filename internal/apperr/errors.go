// Package apperr defines the error taxonomy shared by services, middleware and handlers.
// Services return *Error values; the HTTP layer maps the Kind to a status code.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for transport mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindUnauthorized
	KindForbidden
	KindConflict
	KindConfiguration
	KindTooManyRequests
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindNotFound:
		return "NotFound"
	case KindUnauthorized:
		return "Unauthorized"
	case KindForbidden:
		return "Forbidden"
	case KindConflict:
		return "Conflict"
	case KindConfiguration:
		return "ConfigurationError"
	case KindTooManyRequests:
		return "TooManyRequests"
	default:
		return "Internal"
	}
}

// Error is an application error with a client-safe message.
type Error struct {
	Kind    Kind
	Message string
	// Details is optional structured context returned to the client (e.g. field errors).
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same Kind, so errors.Is(err, apperr.ErrNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// Sentinels for errors.Is checks against a kind.
var (
	ErrValidation      = &Error{Kind: KindValidation}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrUnauthorized    = &Error{Kind: KindUnauthorized}
	ErrForbidden       = &Error{Kind: KindForbidden}
	ErrConflict        = &Error{Kind: KindConflict}
	ErrConfiguration   = &Error{Kind: KindConfiguration}
	ErrTooManyRequests = &Error{Kind: KindTooManyRequests}
	ErrInternal        = &Error{Kind: KindInternal}
)

func Validation(msg string) *Error { return &Error{Kind: KindValidation, Message: msg} }

// ValidationDetails carries per-field messages.
func ValidationDetails(msg string, details any) *Error {
	return &Error{Kind: KindValidation, Message: msg, Details: details}
}

func NotFound(msg string) *Error        { return &Error{Kind: KindNotFound, Message: msg} }
func Unauthorized(msg string) *Error    { return &Error{Kind: KindUnauthorized, Message: msg} }
func Forbidden(msg string) *Error       { return &Error{Kind: KindForbidden, Message: msg} }
func Conflict(msg string) *Error        { return &Error{Kind: KindConflict, Message: msg} }
func Configuration(msg string) *Error   { return &Error{Kind: KindConfiguration, Message: msg} }
func TooManyRequests(msg string) *Error { return &Error{Kind: KindTooManyRequests, Message: msg} }

// Internal wraps an unexpected failure.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// Wrap attaches a cause to an error of the given kind.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the Kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// StatusCode maps an error to its HTTP status.
func StatusCode(err error) int {
	switch KindOf(err) {
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
