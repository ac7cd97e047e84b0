// Package scheduler runs the periodic triggers: the playlist trigger and the
// unsorted-bookmark sweep. Both are fixed-delay sleep loops, not cron: the
// delay is measured from the end of one cycle to the start of the next, so a
// slow cycle never overlaps the following one.
package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Runner owns one fixed-delay loop. It sleeps the initial delay, then
// alternates cycle and sleep until stopped.
type Runner struct {
	name         string
	initialDelay time.Duration
	fixedDelay   time.Duration
	cycle        func(ctx context.Context)

	cancel context.CancelFunc
	done   chan struct{}
}

// NewRunner creates a runner for cycle. The cycle function must return when
// its context ends.
func NewRunner(name string, initialDelay, fixedDelay time.Duration, cycle func(ctx context.Context)) *Runner {
	return &Runner{
		name:         name,
		initialDelay: initialDelay,
		fixedDelay:   fixedDelay,
		cycle:        cycle,
	}
}

// Start launches the loop. Calling Start twice is a no-op.
func (r *Runner) Start(ctx context.Context) {
	if r.cancel != nil {
		return
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})

	go r.run(ctx)

	slog.Info("Scheduler started",
		"name", r.name,
		"initial_delay", r.initialDelay,
		"fixed_delay", r.fixedDelay,
	)
}

// Stop signals the loop to exit and waits for the running cycle to finish.
func (r *Runner) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
	slog.Info("Scheduler stopped", "name", r.name)
}

func (r *Runner) run(ctx context.Context) {
	defer close(r.done)

	if !r.sleep(ctx, r.initialDelay) {
		return
	}
	for {
		r.cycle(ctx)
		if !r.sleep(ctx, r.fixedDelay) {
			return
		}
	}
}

// sleep waits for d or until the context ends; false means shutdown.
func (r *Runner) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
