package ai

import (
	"context"
	"log/slog"
	"time"
)

// RetryConfig bounds every outbound model call. Timeout applies per attempt,
// Backoff doubles between attempts.
type RetryConfig struct {
	Attempts int           `cli:"llm-retries"`
	Backoff  time.Duration `cli:"llm-backoff"`
	Timeout  time.Duration `cli:"llm-timeout"`
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts: 3,
		Backoff:  500 * time.Millisecond,
		Timeout:  45 * time.Second,
	}
}

// retry runs op up to cfg.Attempts times. Each attempt gets its own deadline
// of cfg.Timeout; the error of the last attempt is returned. A cancelled
// parent context stops the loop between attempts.
func retry(ctx context.Context, cfg RetryConfig, logger *slog.Logger, op func(ctx context.Context) error) error {
	attempts := cfg.Attempts
	if attempts < 1 {
		attempts = 1
	}

	backoff := cfg.Backoff
	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
		}

		attemptCtx := ctx
		cancel := context.CancelFunc(func() {})
		if cfg.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		}
		last = op(attemptCtx)
		cancel()

		if last == nil {
			return nil
		}
		if ctx.Err() != nil {
			return last
		}
		logger.Debug("model call failed", "attempt", attempt, "of", attempts, "err", last)
	}
	return last
}
