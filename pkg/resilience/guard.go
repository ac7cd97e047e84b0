// Package resilience wraps calls to remote dependencies with bounded retry,
// a per-dependency circuit breaker, and conversion of exhausted failures
// into typed unavailability errors.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tagmark/tagmark/pkg/config"
	"github.com/tagmark/tagmark/pkg/metrics"
	"github.com/tagmark/tagmark/pkg/models"
)

// Guard is the resilience envelope for one remote dependency. Retries run
// inside a single breaker observation: a call that succeeds on a later
// attempt records one success, a call that exhausts its attempts records one
// failure and surfaces as one ServiceUnavailableError.
type Guard struct {
	service string
	breaker *Breaker
	retry   config.RetryConfig
	log     *slog.Logger
}

// NewGuard builds a guard for service with its breaker and retry tuning.
func NewGuard(service string, breakerCfg config.BreakerConfig, retryCfg config.RetryConfig) *Guard {
	return &Guard{
		service: service,
		breaker: NewBreaker(service, breakerCfg),
		retry:   retryCfg,
		log:     slog.With("service", service),
	}
}

// Service returns the dependency name the guard protects.
func (g *Guard) Service() string {
	return g.service
}

// Breaker exposes the underlying breaker for diagnostics.
func (g *Guard) Breaker() *Breaker {
	return g.breaker
}

// Do runs op under the guard. Business errors (ErrNotFound, ErrInvalidInput)
// pass through unchanged and count as breaker successes, since the
// dependency answered. Cancellation passes through without an observation.
// Everything else records a failure and is wrapped in a
// ServiceUnavailableError carrying the remaining open dwell.
func (g *Guard) Do(ctx context.Context, op func(context.Context) error) error {
	if err := g.breaker.Acquire(); err != nil {
		metrics.RecordRemoteCall(g.service, "rejected")
		return &ServiceUnavailableError{
			Service:    g.service,
			RetryAfter: g.breaker.RetryAfter(),
			Err:        err,
		}
	}

	start := time.Now()
	err := withRetry(ctx, g.retry, g.log, op)
	metrics.ObserveRemoteCallDuration(g.service, time.Since(start).Seconds())

	switch {
	case err == nil:
		g.breaker.Record(true)
		metrics.RecordRemoteCall(g.service, "success")
		return nil

	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		// The caller went away; the dependency answered nothing we can
		// judge. Free the probe slot instead of recording an outcome.
		g.breaker.Release()
		return err

	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrInvalidInput):
		g.breaker.Record(true)
		metrics.RecordRemoteCall(g.service, "success")
		return err

	default:
		g.breaker.Record(false)
		metrics.RecordRemoteCall(g.service, "failure")
		return &ServiceUnavailableError{
			Service:    g.service,
			RetryAfter: g.breaker.RetryAfter(),
			Err:        err,
		}
	}
}
