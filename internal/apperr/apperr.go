// Package apperr defines the error kinds shared by the domain packages.
// Domain code wraps one of the sentinels so transports can map a failure
// to a status with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnavailable  = errors.New("service unavailable")
	ErrInternal     = errors.New("internal error")
)

// BadRequest wraps ErrBadRequest with a formatted detail.
func BadRequest(format string, args ...any) error {
	return wrap(ErrBadRequest, format, args...)
}

// NotFound wraps ErrNotFound with a formatted detail.
func NotFound(format string, args ...any) error {
	return wrap(ErrNotFound, format, args...)
}

// Conflict wraps ErrConflict with a formatted detail.
func Conflict(format string, args ...any) error {
	return wrap(ErrConflict, format, args...)
}

// Unauthorized wraps ErrUnauthorized with a formatted detail.
func Unauthorized(format string, args ...any) error {
	return wrap(ErrUnauthorized, format, args...)
}

// Internal wraps a persistence or other unexpected failure. The cause is
// kept for logging; transports must not show it to the caller.
func Internal(op string, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrInternal, op, cause)
}

func wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// Kind returns the sentinel an error wraps, or ErrInternal when it wraps none.
func Kind(err error) error {
	for _, kind := range []error{ErrBadRequest, ErrUnauthorized, ErrForbidden, ErrNotFound, ErrConflict, ErrUnavailable, ErrInternal} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrInternal
}
