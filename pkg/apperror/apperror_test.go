package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesKind(t *testing.T) {
	err := NotFound("sitter not found")

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrForbidden))

	wrapped := fmt.Errorf("loading sitter: %w", err)
	assert.True(t, errors.Is(wrapped, ErrNotFound))
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, "ignored"))

	cause := errors.New("connection refused")
	err := Wrap(cause, "failed to load booking")
	assert.True(t, errors.Is(err, ErrUnexpected))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "internal server error", Message(err))

	known := Forbidden("not yours")
	assert.Same(t, known, Wrap(known, "ignored"))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "not found", err: ErrNotFound, expected: http.StatusNotFound},
		{name: "forbidden", err: ErrForbidden, expected: http.StatusForbidden},
		{name: "unauthorized", err: ErrUnauthorized, expected: http.StatusUnauthorized},
		{name: "slot unavailable", err: ErrSlotUnavailable, expected: http.StatusBadRequest},
		{name: "slot taken", err: ErrSlotTaken, expected: http.StatusBadRequest},
		{name: "invalid transition", err: ErrInvalidTransition, expected: http.StatusBadRequest},
		{name: "validation", err: Validation("bad date"), expected: http.StatusBadRequest},
		{name: "plain error", err: errors.New("boom"), expected: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HTTPStatus(tt.err))
		})
	}
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "bad date", Message(Validation("bad date")))
	assert.Equal(t, "internal server error", Message(errors.New("pq: relation does not exist")))
}
