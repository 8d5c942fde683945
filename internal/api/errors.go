package api

import (
	"errors"
	"net/http"

	"guest-visits-backend/internal/apperr"
	"guest-visits-backend/internal/auth"
)

// ErrorInfo contains error metadata for user-facing errors
type ErrorInfo struct {
	Message   string   // User-friendly message
	StopCodes []string // Optional stop codes for client-side handling
}

// errorStatusMap maps error kinds to HTTP status codes
var errorStatusMap = map[error]int{
	apperr.ErrBadRequest:   http.StatusBadRequest,
	apperr.ErrUnauthorized: http.StatusUnauthorized,
	auth.ErrNonValidToken:  http.StatusUnauthorized,
	apperr.ErrForbidden:    http.StatusForbidden,
	apperr.ErrNotFound:     http.StatusNotFound,
	apperr.ErrConflict:     http.StatusConflict,
	apperr.ErrUnavailable:  http.StatusServiceUnavailable,
	apperr.ErrInternal:     http.StatusInternalServerError,
}

// stopCodes lets clients branch on the failure without parsing messages
var stopCodes = map[error][]string{
	apperr.ErrBadRequest:   {"INVALID_REQUEST"},
	apperr.ErrUnauthorized: {"AUTH_REQUIRED"},
	auth.ErrNonValidToken:  {"AUTH_INVALID_TOKEN"},
	apperr.ErrForbidden:    {"FORBIDDEN"},
	apperr.ErrNotFound:     {"NOT_FOUND"},
	apperr.ErrConflict:     {"CONFLICT"},
}

// GetErrorStatus returns the HTTP status code for an error
func GetErrorStatus(err error) int {
	if errors.Is(err, auth.ErrNonValidToken) {
		return errorStatusMap[auth.ErrNonValidToken]
	}
	return errorStatusMap[apperr.Kind(err)]
}

// GetErrorInfo returns the message and stop codes shown to the caller.
// Server errors never expose their cause.
func GetErrorInfo(err error) ErrorInfo {
	status := GetErrorStatus(err)
	if status >= 500 {
		if status == http.StatusServiceUnavailable {
			return ErrorInfo{Message: "Service is temporarily unavailable"}
		}
		return ErrorInfo{Message: "An internal error occurred"}
	}

	key := apperr.Kind(err)
	if errors.Is(err, auth.ErrNonValidToken) {
		key = auth.ErrNonValidToken
	}
	return ErrorInfo{Message: err.Error(), StopCodes: stopCodes[key]}
}
