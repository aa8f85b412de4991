// Package domainerrors defines the small error vocabulary that crosses
// package boundaries. Handlers map these codes to HTTP statuses; everything
// internal (storage errors, provider errors, stack detail) stays wrapped
// underneath and is never shown to a caller.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for boundary handling.
type Code string

const (
	// CodeUnauthorized covers every token failure: malformed, bad signature,
	// wrong audience, expired. Callers get one generic message for all of
	// them so a probing client cannot learn which check failed.
	CodeUnauthorized Code = "unauthorized"

	// CodeForbidden is an authenticated principal lacking the required role.
	CodeForbidden Code = "forbidden"

	// CodeRateLimited is a per-subject quota rejection. Distinct from
	// CodeForbidden: it is a resource-protection signal, not an
	// access-control decision.
	CodeRateLimited Code = "rate_limited"

	CodeBadRequest Code = "bad_request"
	CodeNotFound   Code = "not_found"

	// CodeDownstream is a failure reported by the instance provider after
	// the request was admitted.
	CodeDownstream Code = "downstream_error"

	CodeInternal Code = "internal_error"
)

// Error carries a code and a caller-safe message. RetryAfter is populated
// only for CodeRateLimited.
type Error struct {
	Code       Code
	Message    string
	RetryAfter int // seconds, 0 when not applicable
	wrapped    error
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.wrapped }

// New builds an Error with the given code and caller-safe message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches an internal cause to a caller-safe error. The cause is
// available through errors.Unwrap for logging but never serialized.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, wrapped: cause}
}

// RateLimited builds a rate-limit rejection with a retry hint in seconds.
func RateLimited(retryAfter int) *Error {
	return &Error{
		Code:       CodeRateLimited,
		Message:    "rate limit exceeded",
		RetryAfter: retryAfter,
	}
}

// CodeOf extracts the Code from err, defaulting to CodeInternal so that
// unclassified failures always land on the fail-closed path.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// As is a convenience wrapper around errors.As for *Error.
func As(err error) (*Error, bool) {
	var de *Error
	ok := errors.As(err, &de)
	return de, ok
}
