package resilience

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/tagmark/tagmark/pkg/config"
	"github.com/tagmark/tagmark/pkg/models"
)

// retryable reports whether err is worth another attempt. Cancellation of
// the surrounding context, business outcomes, and non-transient HTTP
// statuses are permanent; everything else (transport errors, per-attempt
// timeouts, 429s, 5xx) is transient.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrInvalidInput) {
		return false
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

// withRetry runs op up to cfg.MaxAttempts times with exponential backoff.
// Non-retryable errors abort immediately and are returned unwrapped.
func withRetry(ctx context.Context, cfg config.RetryConfig, log *slog.Logger, op func(context.Context) error) error {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = cfg.BaseWait
	expo.Multiplier = cfg.Multiplier
	expo.RandomizationFactor = 0
	expo.MaxElapsedTime = 0

	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(attempts-1)), ctx)

	attempt := 0
	operation := func() error {
		attempt++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !retryable(ctx, err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		log.Warn("remote call failed, retrying",
			"attempt", attempt,
			"max_attempts", attempts,
			"wait", wait,
			"error", err)
	}
	return backoff.RetryNotify(operation, policy, notify)
}
