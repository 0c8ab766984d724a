// Package apperr defines the closed set of error kinds surfaced by the
// services.  Handlers switch on Kind to choose an HTTP status; callers never
// inspect provider specific error strings.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies an error.
type Kind int

const (
	KindUpstream Kind = iota // store, mail or identity provider failure
	KindValidation
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindRateLimited
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	case KindConflict:
		return "conflict"
	default:
		return "upstream"
	}
}

// Error is the concrete error type returned by services.
type Error struct {
	Kind    Kind
	Message string
	// Fields carries per-field validation messages.
	Fields map[string]string
	// ResetAt is set for KindRateLimited.
	ResetAt time.Time
	// Count is the number of blocking records for KindConflict, when known.
	Count int
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same kind and message, so package level
// values such as ErrRoleChangeNotAllowed work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == e.Message
}

// Well known errors.
var (
	ErrRoleChangeNotAllowed = &Error{Kind: KindValidation, Message: "role cannot be changed"}
	ErrActiveBookingsExist  = &Error{Kind: KindConflict, Message: "trip has active bookings"}
)

func Validation(msg string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

// Field is shorthand for a validation error on a single field.
func Field(field, msg string) *Error {
	return &Error{Kind: KindValidation, Message: field + " " + msg, Fields: map[string]string{field: msg}}
}

func Unauthenticated(msg string) *Error {
	return &Error{Kind: KindAuthentication, Message: msg}
}

func Forbidden(msg string) *Error {
	return &Error{Kind: KindAuthorization, Message: msg}
}

// NotFound reports a missing resource, named by what ("trip", "booking").
func NotFound(what string) *Error {
	return &Error{Kind: KindNotFound, Message: what + " not found"}
}

func RateLimited(resetAt time.Time) *Error {
	return &Error{Kind: KindRateLimited, Message: "too many requests", ResetAt: resetAt}
}

func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

// ActiveBookings returns ErrActiveBookingsExist carrying the blocking count.
func ActiveBookings(n int) *Error {
	return &Error{Kind: KindConflict, Message: ErrActiveBookingsExist.Message, Count: n}
}

func Upstream(msg string, err error) *Error {
	return &Error{Kind: KindUpstream, Message: msg, Err: err}
}

// KindOf returns the kind of err.  Errors that are not *Error are upstream.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUpstream
}

// As unwraps err into an *Error when possible.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
