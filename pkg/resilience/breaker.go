package resilience

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/tagmark/tagmark/pkg/config"
	"github.com/tagmark/tagmark/pkg/metrics"
)

// State identifies a circuit breaker state.
type State int

const (
	// StateClosed admits all calls.
	StateClosed State = iota
	// StateOpen refuses calls until the open dwell elapses.
	StateOpen
	// StateHalfOpen admits a limited number of probe calls.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// clock abstracts time so tests can step through the open dwell.
type clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Breaker is a count-window circuit breaker for one remote dependency. It
// observes one outcome per logical call (retries happen inside a single
// observation) and opens when the failure share of the last WindowSize
// outcomes reaches the threshold. State is process-lifetime and updated
// atomically under a single mutex.
type Breaker struct {
	service    string
	threshold  float64
	windowSize int
	openDwell  time.Duration
	maxProbes  int

	clock clock
	log   *slog.Logger

	mu       sync.Mutex
	state    State
	window   []bool // recent outcomes, true marks a failure
	head     int
	filled   int
	openedAt time.Time
	inFlight int // unresolved half-open probes
	probeOK  int // successful probes in the current half-open round
}

// NewBreaker builds a closed breaker for service.
func NewBreaker(service string, cfg config.BreakerConfig) *Breaker {
	b := &Breaker{
		service:    service,
		threshold:  cfg.Threshold,
		windowSize: cfg.WindowSize,
		openDwell:  cfg.OpenDwell,
		maxProbes:  cfg.HalfOpenProbes,
		clock:      realClock{},
		log:        slog.With("service", service),
		state:      StateClosed,
		window:     make([]bool, cfg.WindowSize),
	}
	metrics.SetBreakerState(service, StateClosed.String())
	return b
}

// Acquire asks the breaker to admit one logical call. It returns
// ErrCircuitOpen while the breaker refuses calls. While half-open the
// admitted call is a probe; its outcome must be reported via Record, or
// Release when no outcome was observed.
func (b *Breaker) Acquire() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.clock.Now().Sub(b.openedAt) < b.openDwell {
			return ErrCircuitOpen
		}
		b.transitionTo(StateHalfOpen)
		b.inFlight = 1
		return nil
	case StateHalfOpen:
		if b.inFlight+b.probeOK >= b.maxProbes {
			return ErrCircuitOpen
		}
		b.inFlight++
		return nil
	default:
		return ErrCircuitOpen
	}
}

// Record reports the outcome of an admitted call.
func (b *Breaker) Record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.observe(!success)
		if b.filled >= b.windowSize && b.failureRatio() >= b.threshold {
			b.trip()
		}
	case StateHalfOpen:
		if b.inFlight > 0 {
			b.inFlight--
		}
		if !success {
			b.trip()
			return
		}
		b.probeOK++
		if b.probeOK >= b.maxProbes {
			b.transitionTo(StateClosed)
			b.resetWindow()
		}
	case StateOpen:
		// A call admitted before the trip finished late. The open state
		// already reflects the window; ignore the straggler.
	}
}

// Release returns an admitted call without an outcome, freeing its probe
// slot. Used when the caller was cancelled before the dependency answered.
func (b *Breaker) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen && b.inFlight > 0 {
		b.inFlight--
	}
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// RetryAfter returns the remaining open dwell, or zero when the breaker is
// not open.
func (b *Breaker) RetryAfter() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return 0
	}
	remaining := b.openDwell - b.clock.Now().Sub(b.openedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Snapshot is a point-in-time view of a breaker for diagnostics.
type Snapshot struct {
	Service           string `json:"service"`
	State             string `json:"state"`
	WindowSize        int    `json:"window_size"`
	ObservedCalls     int    `json:"observed_calls"`
	Failures          int    `json:"failures"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
}

// Snapshot returns the breaker's current state for diagnostics.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	failures := 0
	for i := 0; i < b.filled; i++ {
		if b.window[i] {
			failures++
		}
	}
	snap := Snapshot{
		Service:       b.service,
		State:         b.state.String(),
		WindowSize:    b.windowSize,
		ObservedCalls: b.filled,
		Failures:      failures,
	}
	if b.state == StateOpen {
		remaining := b.openDwell - b.clock.Now().Sub(b.openedAt)
		if remaining > 0 {
			snap.RetryAfterSeconds = int(math.Ceil(remaining.Seconds()))
		}
	}
	return snap
}

// observe pushes one outcome into the rolling window. Callers hold b.mu.
func (b *Breaker) observe(failure bool) {
	b.window[b.head] = failure
	b.head = (b.head + 1) % b.windowSize
	if b.filled < b.windowSize {
		b.filled++
	}
}

// failureRatio computes the failure share of the observed window. Callers
// hold b.mu.
func (b *Breaker) failureRatio() float64 {
	if b.filled == 0 {
		return 0
	}
	failures := 0
	for i := 0; i < b.filled; i++ {
		if b.window[i] {
			failures++
		}
	}
	return float64(failures) / float64(b.filled)
}

// trip opens the breaker and starts a fresh dwell. Callers hold b.mu.
func (b *Breaker) trip() {
	b.openedAt = b.clock.Now()
	b.inFlight = 0
	b.probeOK = 0
	b.transitionTo(StateOpen)
	metrics.RecordBreakerTrip(b.service)
}

// resetWindow clears observed outcomes after recovery. Callers hold b.mu.
func (b *Breaker) resetWindow() {
	for i := range b.window {
		b.window[i] = false
	}
	b.head = 0
	b.filled = 0
	b.inFlight = 0
	b.probeOK = 0
}

// transitionTo moves the breaker to a new state. Callers hold b.mu.
func (b *Breaker) transitionTo(next State) {
	if b.state == next {
		return
	}
	prev := b.state
	b.state = next
	metrics.SetBreakerState(b.service, next.String())

	if next == StateOpen {
		b.log.Warn("circuit breaker opened",
			"from", prev.String(),
			"open_dwell", b.openDwell)
		return
	}
	b.log.Info("circuit breaker state changed",
		"from", prev.String(),
		"to", next.String())
}
