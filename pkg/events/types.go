// Package events defines the progress events a tagging run emits and the
// bounded stream that carries them to a single consumer.
//
// ════════════════════════════════════════════════════════════════
// Run Event Lifecycle
// ════════════════════════════════════════════════════════════════
//
// Every run emits events in a fixed order:
//
//	started                  (once, before any work)
//	progress                 (zero or more, gated by verbosity)
//	video_completed |
//	video_skipped   |
//	error                    (one per video, in playlist order)
//	batch_completed          (after each batch of videos)
//	error                    (fatal — only when the run aborts)
//	completed                (always last, even after a fatal error)
//
// Two events are critical and are never dropped under backpressure:
// completed, and an error marked fatal. Everything else is informational
// and may be discarded when the consumer lags. The stream is closed by
// the producer after completed; consumers must drain until close.
//
// Note: a fatal error does NOT terminate the stream by itself. It is
// always followed by a completed event carrying whatever counts the run
// accrued before aborting. "completed" is the only terminal event.
//
// ════════════════════════════════════════════════════════════════
package events

import (
	"github.com/tagmark/tagmark/pkg/models"
)

// Type names one kind of run event.
type Type string

const (
	TypeStarted        Type = "started"
	TypeProgress       Type = "progress"
	TypeBatchCompleted Type = "batch_completed"
	TypeVideoCompleted Type = "video_completed"
	TypeVideoSkipped   Type = "video_skipped"
	TypeError          Type = "error"
	TypeCompleted      Type = "completed"
)

// FatalPrefix starts the message of every run-aborting error event.
const FatalPrefix = "Fatal"

// Event is one progress report of a tagging run.
type Event struct {
	Type    Type   `json:"type"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"` // typed payload, see *Data structs

	fatal bool
}

// Critical reports whether the event must reach the consumer even when
// the stream buffer is full: completed and fatal errors.
func (e Event) Critical() bool {
	return e.Type == TypeCompleted || (e.Type == TypeError && e.fatal)
}

// Fatal reports whether the event is a run-aborting error.
func (e Event) Fatal() bool {
	return e.Type == TypeError && e.fatal
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool {
	return e.Type == TypeCompleted
}

// StartedData accompanies the started event.
type StartedData struct {
	RunID         string `json:"run_id"`
	PlaylistID    string `json:"playlist_id"`
	PlaylistTitle string `json:"playlist_title,omitempty"`
	Timestamp     string `json:"timestamp"` // RFC3339Nano
}

// VideoData accompanies video_completed, video_skipped, and per-video
// error events.
type VideoData struct {
	VideoID string   `json:"video_id"`
	Title   string   `json:"title"`
	URL     string   `json:"url,omitempty"`
	Tags    []string `json:"tags,omitempty"` // only on video_completed
}

// BatchData accompanies batch_completed.
type BatchData struct {
	BatchNumber  int `json:"batch_number"` // 1-based
	TotalBatches int `json:"total_batches"`
	Succeeded    int `json:"succeeded"` // counts within this batch
	Skipped      int `json:"skipped"`
	Failed       int `json:"failed"`
}

// ErrorData accompanies error events. VideoID is set for per-video
// failures; Service and RetryAfterSeconds for dependency outages.
type ErrorData struct {
	VideoID           string `json:"video_id,omitempty"`
	Service           string `json:"service,omitempty"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
	Fatal             bool   `json:"fatal"`
}

// NewStarted builds the run-opening event.
func NewStarted(message string, data StartedData) Event {
	return Event{Type: TypeStarted, Message: message, Data: data}
}

// NewProgress builds an informational stage-transition event.
func NewProgress(message string) Event {
	return Event{Type: TypeProgress, Message: message}
}

// NewVideoCompleted reports one successfully bookmarked video.
func NewVideoCompleted(message string, data VideoData) Event {
	return Event{Type: TypeVideoCompleted, Message: message, Data: data}
}

// NewVideoSkipped reports one video skipped as a duplicate.
func NewVideoSkipped(message string, data VideoData) Event {
	return Event{Type: TypeVideoSkipped, Message: message, Data: data}
}

// NewBatchCompleted reports one finished batch.
func NewBatchCompleted(message string, data BatchData) Event {
	return Event{Type: TypeBatchCompleted, Message: message, Data: data}
}

// NewVideoError reports one failed video. The run continues.
func NewVideoError(message string, data ErrorData) Event {
	return Event{Type: TypeError, Message: message, Data: data}
}

// NewFatalError reports a run-aborting failure. The message is prefixed
// with "Fatal" so consumers can distinguish it from per-video errors,
// and a completed event must still follow it.
func NewFatalError(message string, data ErrorData) Event {
	data.Fatal = true
	return Event{
		Type:    TypeError,
		Message: FatalPrefix + ": " + message,
		Data:    data,
		fatal:   true,
	}
}

// NewCompleted builds the terminal event with the run's final counts.
func NewCompleted(message string, summary models.ProcessingSummary) Event {
	return Event{Type: TypeCompleted, Message: message, Data: summary}
}
