package resilience

import (
	"context"
	"fmt"

	"github.com/sentinel-cycle/engine/internal/logging"
)

// RetryOnce implements spec §4.1's Verifier failure rule verbatim: a single
// retry for a transient error, no retry at all for anything else (including
// a domain fail outcome, which is never represented as an error here).
func RetryOnce(ctx context.Context, logger logging.Logger, fn func(ctx context.Context) error) error {
	logger = logging.OrNop(logger)

	err := fn(ctx)
	if err == nil {
		return nil
	}
	if !IsTransient(err) {
		return err
	}

	logger.Warn("transient error on first attempt, retrying once: %v", err)
	select {
	case <-ctx.Done():
		return fmt.Errorf("context cancelled during retry: %w", ctx.Err())
	default:
	}

	retryErr := fn(ctx)
	if retryErr == nil {
		logger.Info("retry succeeded")
		return nil
	}
	return retryErr
}
