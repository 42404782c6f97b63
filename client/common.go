package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// WithRetryAfter runs fn, sleeping out the store's retryAfter hint and
// retrying whenever fn fails with ErrRateLimited. Every other error is
// returned as-is. The core never calls this on its own; it is an opt-in
// for callers that prefer waiting over surfacing the backoff.
func WithRetryAfter[R any](ctx context.Context, logger *slog.Logger, fn func() (R, error)) (R, error) {
	for {
		result, err := fn()
		if err == nil {
			return result, nil
		}

		var rateLimitErr *ErrRateLimited
		if errors.As(err, &rateLimitErr) {
			wait := rateLimitErr.RetryAfter
			if wait <= 0 {
				wait = time.Second
			}
			logger.Warn("Store rate limited operation, sleeping", "duration", wait)
			select {
			case <-time.After(wait):
				continue
			case <-ctx.Done():
				var zero R
				return zero, fmt.Errorf("operation cancelled during rate limit sleep: %w", ctx.Err())
			}
		}

		var zero R
		return zero, err
	}
}

// WithRetryAfterVoid is WithRetryAfter for operations without a result.
func WithRetryAfterVoid(ctx context.Context, logger *slog.Logger, fn func() error) error {
	_, err := WithRetryAfter(ctx, logger, func() (any, error) {
		return nil, fn()
	})
	return err
}
