package pipeline

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/tagmark/tagmark/pkg/events"
	"github.com/tagmark/tagmark/pkg/models"
)

// Triggers name where a run was submitted from, for logs and metrics.
const (
	TriggerAPI       = "api"
	TriggerScheduler = "scheduler"
)

// Run is one in-flight tagging run. It is created by Orchestrator.Prepare
// with the request already validated and the playlist already resolved, and
// owns the event stream its consumer drains.
type Run struct {
	// ID is a ULID, so concurrently created runs sort by creation time.
	ID string
	// Playlist is the resolved playlist the run processes.
	Playlist models.Playlist
	// Request is the normalized request: playlist input replaced by the bare
	// playlist ID, strategy and verbosity defaulted.
	Request models.TagPlaylistRequest

	trigger string
	stream  *events.Stream
}

// newRun builds the run handle with a fresh event stream.
func newRun(trigger string, playlist models.Playlist, req models.TagPlaylistRequest, buffer int) *Run {
	return &Run{
		ID:       ulid.Make().String(),
		Playlist: playlist,
		Request:  req,
		trigger:  trigger,
		stream:   events.NewStream(buffer),
	}
}

// Events is the run's progress stream. It is closed by the run after the
// completed event; consumers must drain it until close even after they stop
// caring, so the producer can always finish.
func (r *Run) Events() <-chan events.Event {
	return r.stream.Events()
}

// Registry tracks the cancel functions of in-flight runs so the API and
// graceful shutdown can abort them.
type Registry struct {
	mu   sync.RWMutex
	runs map[string]context.CancelFunc
}

// NewRegistry creates an empty run registry.
func NewRegistry() *Registry {
	return &Registry{
		runs: make(map[string]context.CancelFunc),
	}
}

// Register stores a run's cancel function for the duration of the run.
func (reg *Registry) Register(runID string, cancel context.CancelFunc) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.runs[runID] = cancel
}

// Unregister removes the cancel function when the run ends.
func (reg *Registry) Unregister(runID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.runs, runID)
}

// Cancel aborts one run. Returns false when the run is not active.
func (reg *Registry) Cancel(runID string) bool {
	reg.mu.RLock()
	cancel, ok := reg.runs[runID]
	reg.mu.RUnlock()
	if ok {
		cancel()
	}
	return ok
}

// CancelAll aborts every active run and returns how many were cancelled.
// Runs unregister themselves as they wind down.
func (reg *Registry) CancelAll() int {
	reg.mu.RLock()
	cancels := make([]context.CancelFunc, 0, len(reg.runs))
	for _, cancel := range reg.runs {
		cancels = append(cancels, cancel)
	}
	reg.mu.RUnlock()

	for _, cancel := range cancels {
		cancel()
	}
	return len(cancels)
}

// Len reports the number of active runs.
func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.runs)
}
