package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsIsMatchesByKind(t *testing.T) {
	err := Conflict("order %d already claimed", 7)
	wrapped := fmt.Errorf("claim: %w", err)

	assert.True(t, errors.Is(wrapped, ErrConflict))
	assert.False(t, errors.Is(wrapped, ErrValidation))
	assert.Equal(t, "order 7 already claimed", err.Error())
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validation("cart empty"), http.StatusBadRequest},
		{"conflict", Conflict("x"), http.StatusConflict},
		{"not found", NotFound("x"), http.StatusNotFound},
		{"forbidden", Forbidden("x"), http.StatusForbidden},
		{"unauthorized", Unauthorized("x"), http.StatusUnauthorized},
		{"transient", Transient(errors.New("database is locked")), http.StatusServiceUnavailable},
		{"foreign", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(Transient(errors.New("busy"))))
	assert.True(t, Retryable(Conflict("already claimed")))
	assert.False(t, Retryable(Validation("cart empty")))
}
