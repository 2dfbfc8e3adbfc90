package verifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sentinel-cycle/engine/internal/resilience"
)

type fixedRunner struct {
	result Result
	err    error
	delay  time.Duration
	calls  int
}

func (f *fixedRunner) Run(ctx context.Context, _ map[string][]byte) (Result, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
	return f.result, f.err
}

func TestAdapterRunPassesThroughSuccess(t *testing.T) {
	runner := &fixedRunner{result: Result{Passed: true, Summary: "ok"}}
	a := New(runner, DefaultConfig(), nil)

	result, err := a.Run(context.Background(), nil)
	require.NoError(t, err)
	require.True(t, result.Passed)
	require.Equal(t, 1, runner.calls)
}

func TestAdapterRunTimesOutAsFailure(t *testing.T) {
	runner := &fixedRunner{delay: 50 * time.Millisecond}
	a := New(runner, Config{Timeout: 5 * time.Millisecond, CircuitBreaker: resilience.DefaultCircuitBreakerConfig()}, nil)

	result, err := a.Run(context.Background(), nil)
	require.NoError(t, err)
	require.False(t, result.Passed)
	require.Equal(t, "timeout", result.Summary)
}

func TestAdapterRunRetriesTransientErrorOnce(t *testing.T) {
	attempt := 0
	runner := &recordingRunner{fn: func() (Result, error) {
		attempt++
		if attempt == 1 {
			return Result{}, resilience.Transient(errors.New("flaky I/O"))
		}
		return Result{Passed: true}, nil
	}}
	a := New(runner, DefaultConfig(), nil)

	result, err := a.Run(context.Background(), nil)
	require.NoError(t, err)
	require.True(t, result.Passed)
	require.Equal(t, 2, attempt)
}

type recordingRunner struct {
	fn func() (Result, error)
}

func (r *recordingRunner) Run(ctx context.Context, _ map[string][]byte) (Result, error) {
	return r.fn()
}
