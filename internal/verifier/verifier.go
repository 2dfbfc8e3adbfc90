// Package verifier adapts the Verifier collaborator from §4.5: it runs
// tests against a post-apply VFS snapshot and reports pass/fail. A timeout
// is surfaced as a failed run, never a panic; one retry is permitted for
// transient (non-assertion) errors via internal/resilience.
package verifier

import (
	"context"
	"errors"
	"time"

	"github.com/sentinel-cycle/engine/internal/logging"
	"github.com/sentinel-cycle/engine/internal/resilience"
	"github.com/sentinel-cycle/engine/internal/sentinelerr"
)

// Result is run's return shape (§4.5).
type Result struct {
	Passed     bool
	Summary    string
	DurationMs int64
}

// Runner is the pluggable test-execution strategy. Implementations MAY run
// in an isolated worker; the core does not depend on isolation.
type Runner interface {
	Run(ctx context.Context, snapshot map[string][]byte) (Result, error)
}

// Config bounds one Verifier adapter.
type Config struct {
	Timeout        time.Duration
	CircuitBreaker resilience.CircuitBreakerConfig
}

// DefaultConfig matches §6's default: verifier.timeout_ms = 30000.
func DefaultConfig() Config {
	return Config{
		Timeout:        30 * time.Second,
		CircuitBreaker: resilience.DefaultCircuitBreakerConfig(),
	}
}

// Adapter wraps a Runner with the timeout, single-retry, and circuit
// breaker behaviour the FSM driver depends on.
type Adapter struct {
	runner  Runner
	cfg     Config
	breaker *resilience.CircuitBreaker
	logger  logging.Logger
}

// New constructs a Verifier adapter around runner.
func New(runner Runner, cfg Config, logger logging.Logger) *Adapter {
	logger = logging.OrNop(logger).With("verifier")
	return &Adapter{
		runner:  runner,
		cfg:     cfg,
		breaker: resilience.NewCircuitBreaker("verifier", cfg.CircuitBreaker, logger),
		logger:  logger,
	}
}

// Run executes the adapter's Runner under the configured timeout, retrying
// exactly once on a transient error, guarded by the circuit breaker. A
// context deadline exceeded is reported as {Passed:false, Summary:"timeout"}
// rather than an error, per §4.5.
func (a *Adapter) Run(ctx context.Context, snapshot map[string][]byte) (Result, error) {
	var result Result
	started := time.Now()

	err := a.breaker.Execute(ctx, func(ctx context.Context) error {
		runCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()

		return resilience.RetryOnce(runCtx, a.logger, func(ctx context.Context) error {
			r, runErr := a.runner.Run(ctx, snapshot)
			if runErr != nil {
				return runErr
			}
			result = r
			return nil
		})
	})

	result.DurationMs = time.Since(started).Milliseconds()

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Result{Passed: false, Summary: "timeout", DurationMs: result.DurationMs}, nil
		}
		return Result{}, sentinelerr.Wrap(sentinelerr.KindVerificationFailed, err)
	}
	return result, nil
}
