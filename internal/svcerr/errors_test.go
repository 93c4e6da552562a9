package svcerr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotFoundShape(t *testing.T) {
	err := NotFound("token", "abc123")
	assert.Equal(t, ErrCodeNotFound, err.Code)
	assert.Equal(t, http.StatusNotFound, err.HTTPStatus)
	assert.Equal(t, "token", err.Details["resource"])
	assert.Equal(t, "abc123", err.Details["id"])
}

func TestWrapPreservesUnderlyingError(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := DatabaseError("list_tokens", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestGetServiceErrorUnwrapsChain(t *testing.T) {
	original := CycleLocked("token-1")
	wrapped := fmt.Errorf("scheduler tick failed: %w", original)

	got := GetServiceError(wrapped)
	assert.NotNil(t, got)
	assert.Equal(t, ErrCodeCycleLocked, got.Code)
	assert.True(t, IsServiceError(wrapped))
}

func TestGetHTTPStatusFallsBackTo500(t *testing.T) {
	plain := errors.New("unstructured failure")
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(plain))
}

func TestRateLimitExceededDetails(t *testing.T) {
	err := RateLimitExceeded(100, "1m")
	assert.Equal(t, http.StatusTooManyRequests, err.HTTPStatus)
	assert.Equal(t, 100, err.Details["limit"])
	assert.Equal(t, "1m", err.Details["window"])
}
