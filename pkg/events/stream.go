package events

import (
	"log/slog"
	"sync"

	"github.com/tagmark/tagmark/pkg/metrics"
)

// DefaultBuffer is the stream capacity used when the caller passes a
// non-positive value.
const DefaultBuffer = 256

// Stream carries one run's events to a single consumer in emission order.
//
// Publishing an informational event never blocks: when the buffer is
// nearly full the event is dropped and counted, keeping room for the
// critical events that must still arrive. Publishing a critical event
// blocks until the consumer makes room, which is safe because consumers
// are required to drain the channel until it is closed.
type Stream struct {
	ch        chan Event
	closeOnce sync.Once
	log       *slog.Logger
}

// NewStream creates a stream with the given buffer capacity.
func NewStream(buffer int) *Stream {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if buffer < 2 {
		// One slot for a fatal error, one for the completed event.
		buffer = 2
	}
	return &Stream{
		ch:  make(chan Event, buffer),
		log: slog.With("component", "events"),
	}
}

// Publish delivers e to the consumer. Informational events are dropped
// when the consumer lags; critical events always enqueue.
func (s *Stream) Publish(e Event) {
	if e.Critical() {
		s.ch <- e
		return
	}
	// Reserve the last slot for critical events.
	if len(s.ch) >= cap(s.ch)-1 {
		s.drop(e)
		return
	}
	select {
	case s.ch <- e:
	default:
		s.drop(e)
	}
}

// Events is the consumer side of the stream. It is closed by the
// producer after the terminal event.
func (s *Stream) Events() <-chan Event {
	return s.ch
}

// Close ends the stream. Call it after publishing the terminal event.
// Safe to call more than once.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		close(s.ch)
	})
}

func (s *Stream) drop(e Event) {
	metrics.RecordDroppedEvent(string(e.Type))
	s.log.Debug("dropped event on full stream", "type", e.Type)
}
