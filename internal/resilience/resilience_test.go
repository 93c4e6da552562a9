package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerOpensAfterMaxFailures(t *testing.T) {
	cb := New(Config{MaxFailures: 2, Timeout: 50 * time.Millisecond, HalfOpenMax: 1})
	failing := errors.New("boom")

	assert.ErrorIs(t, cb.Execute(context.Background(), func() error { return failing }), failing)
	assert.ErrorIs(t, cb.Execute(context.Background(), func() error { return failing }), failing)
	assert.Equal(t, StateOpen, cb.State())

	err := cb.Execute(context.Background(), func() error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen, "an open breaker must reject without calling fn")
}

func TestCircuitBreakerHalfOpenRecovers(t *testing.T) {
	cb := New(Config{MaxFailures: 1, Timeout: 10 * time.Millisecond, HalfOpenMax: 1})
	failing := errors.New("fail")
	require.ErrorIs(t, cb.Execute(context.Background(), func() error { return failing }), failing)
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)

	err := cb.Execute(context.Background(), func() error { return nil })
	assert.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State(), "a successful half-open probe should close the breaker")
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}

	err := Retry(context.Background(), cfg, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	attempts := 0
	cfg := RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2}
	permanent := errors.New("permanent")

	err := Retry(context.Background(), cfg, func() error {
		attempts++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 2, attempts)
}

func TestRetryRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: 10 * time.Millisecond, MaxDelay: 10 * time.Millisecond, Multiplier: 1}
	err := Retry(ctx, cfg, func() error { return errors.New("fail") })
	assert.ErrorIs(t, err, context.Canceled)
}
