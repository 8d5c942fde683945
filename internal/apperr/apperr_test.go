package apperr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want error
	}{
		{"bad request", BadRequest("invalid date %q", "2024-13-01"), ErrBadRequest},
		{"not found", NotFound("entry %s", "x"), ErrNotFound},
		{"conflict", Conflict("already deleted"), ErrConflict},
		{"unauthorized", Unauthorized("missing token"), ErrUnauthorized},
		{"internal", Internal("save entry", errors.New("disk full")), ErrInternal},
		{"unknown", errors.New("boom"), ErrInternal},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Kind(tc.err))
		})
	}
}

func TestInternal_KeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Internal("load entry", cause)

	assert.ErrorIs(t, err, ErrInternal)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "load entry")
}

func TestBadRequest_Message(t *testing.T) {
	err := BadRequest("invalid date %q", "tomorrow")
	assert.EqualError(t, err, `bad request: invalid date "tomorrow"`)
}
