package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRetryOnceRetriesTransientExactlyOnce(t *testing.T) {
	attempts := 0
	err := RetryOnce(context.Background(), nil, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return Transient(errors.New("i/o hiccup"))
		}
		return nil
	})

	require.Error(t, err)
	require.Equal(t, 2, attempts, "RetryOnce must try at most twice")
}

func TestRetryOnceDoesNotRetryPermanentErrors(t *testing.T) {
	attempts := 0
	err := RetryOnce(context.Background(), nil, func(ctx context.Context) error {
		attempts++
		return errors.New("assertion failed")
	})

	require.Error(t, err)
	require.Equal(t, 1, attempts)
}

func TestRetryOnceSucceedsOnRetry(t *testing.T) {
	attempts := 0
	err := RetryOnce(context.Background(), nil, func(ctx context.Context) error {
		attempts++
		if attempts == 1 {
			return Transient(errors.New("timeout"))
		}
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, 2, attempts)
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("verifier", CircuitBreakerConfig{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		Timeout:          time.Minute,
	}, nil)

	require.NoError(t, cb.Allow())
	cb.Mark(errors.New("boom"))
	require.Equal(t, StateClosed, cb.State())
	cb.Mark(errors.New("boom"))
	require.Equal(t, StateOpen, cb.State())

	require.Error(t, cb.Allow())
}
