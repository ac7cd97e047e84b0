package resilience

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"
)

// ErrCircuitOpen is returned by Breaker.Acquire while the breaker refuses
// calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ServiceUnavailableError reports that a remote dependency could not serve a
// call, either because its breaker is open or because all retry attempts
// failed. RetryAfter carries the remaining open dwell.
type ServiceUnavailableError struct {
	Service    string
	RetryAfter time.Duration
	Err        error
}

func (e *ServiceUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("service %s unavailable (retry after %s): %v", e.Service, e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("service %s unavailable (retry after %s)", e.Service, e.RetryAfter)
}

func (e *ServiceUnavailableError) Unwrap() error {
	return e.Err
}

// RetryAfterSeconds rounds the retry hint up to whole seconds for use in
// Retry-After headers and event payloads. It never reports less than one
// second.
func (e *ServiceUnavailableError) RetryAfterSeconds() int {
	seconds := int(math.Ceil(e.RetryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}

// IsServiceUnavailable reports whether err carries a ServiceUnavailableError
// and returns it when present.
func IsServiceUnavailable(err error) (*ServiceUnavailableError, bool) {
	var unavailable *ServiceUnavailableError
	if errors.As(err, &unavailable) {
		return unavailable, true
	}
	return nil, false
}

// HTTPStatusError reports a non-2xx response from an upstream API.
type HTTPStatusError struct {
	Service    string
	StatusCode int
	Status     string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("%s returned unexpected status %s", e.Service, e.Status)
}

// Retryable reports whether the status indicates a transient condition worth
// another attempt.
func (e *HTTPStatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
