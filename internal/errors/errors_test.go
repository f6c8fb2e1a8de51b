package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		err    *APIError
		status int
	}{
		{NewValidationError("bad_payload", "bad payload"), http.StatusBadRequest},
		{NewAuthError("invalid_token", "invalid token"), http.StatusUnauthorized},
		{NewForbiddenError("not_player", "not a player"), http.StatusForbidden},
		{NewNotFoundError("no_game", "game not found"), http.StatusNotFound},
		{NewConflictError("name_taken", "name taken"), http.StatusConflict},
		{NewUpstreamError("workers_down", "workers unavailable", nil), http.StatusBadGateway},
		{NewStorageError("query", "query failed", nil), http.StatusInternalServerError},
		{NewInternalError("boom", "boom", nil), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.err.Type), func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.HTTPStatus())
			assert.Equal(t, tt.status, StatusFor(tt.err))
		})
	}
}

func TestStatusForPlainError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.New("boom")))
}

func TestDetailMasksInternalCauses(t *testing.T) {
	cause := errors.New("dial tcp 10.0.0.1:5432: connection refused")
	err := NewStorageError("query", "user lookup failed", cause)

	assert.Equal(t, "internal server error", DetailFor(err))
	assert.NotContains(t, DetailFor(err), "10.0.0.1")

	// client-facing categories keep their message
	assert.Equal(t, "game not found", DetailFor(NewNotFoundError("no_game", "game not found")))
}

func TestUnwrapAndIs(t *testing.T) {
	cause := errors.New("row not found")
	err := NewStorageError("query", "lookup failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.True(t, errors.Is(err, NewStorageError("query", "other message", nil)))
	assert.False(t, errors.Is(err, NewStorageError("exec", "lookup failed", nil)))
}

func TestErrorString(t *testing.T) {
	err := NewUpstreamError("workers_status", "move validation failed", fmt.Errorf("status 503"))
	assert.Equal(t, "[workers_status] move validation failed: status 503", err.Error())
}

func TestIsType(t *testing.T) {
	wrapped := fmt.Errorf("handling move: %w", NewForbiddenError("not_turn", "not your turn"))
	assert.True(t, IsType(wrapped, ErrorTypeForbidden))
	assert.False(t, IsType(wrapped, ErrorTypeAuth))
	assert.False(t, IsType(errors.New("plain"), ErrorTypeAuth))
}
