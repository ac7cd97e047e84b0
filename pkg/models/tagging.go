package models

// ScoredTag is a single tag proposal from the model.
type ScoredTag struct {
	Name string `json:"name"`
	// Confidence is the model's self-reported certainty in [0,1].
	Confidence float64 `json:"confidence"`
	// Preexisting marks a tag reused from the store's current vocabulary.
	Preexisting bool `json:"preexisting"`
}

// TagNames extracts the names from scored tags, preserving order.
func TagNames(tags []ScoredTag) []string {
	names := make([]string, 0, len(tags))
	for _, tag := range tags {
		names = append(names, tag.Name)
	}
	return names
}

// TagStrategy shapes tag generation for one request.
type TagStrategy struct {
	MaxTags            int     `json:"max_tags"`
	ConfidenceFloor    float64 `json:"confidence_floor"`
	CustomInstructions string  `json:"custom_instructions,omitempty"`
}

// DefaultTagStrategy returns the strategy used when a request does not
// override it.
func DefaultTagStrategy() TagStrategy {
	return TagStrategy{MaxTags: 5, ConfidenceFloor: 0.5}
}

// Verbosity controls how chatty a run's informational progress events are.
// It never affects lifecycle events (started, video_*, batch_completed,
// error, completed).
type Verbosity string

const (
	// VerbosityMinimal suppresses progress events entirely.
	VerbosityMinimal Verbosity = "minimal"
	// VerbosityNormal emits progress for stage transitions (default).
	VerbosityNormal Verbosity = "normal"
	// VerbosityDetailed additionally emits per-video progress.
	VerbosityDetailed Verbosity = "detailed"
)

// IsValid checks if the verbosity level is recognized.
func (v Verbosity) IsValid() bool {
	switch v {
	case VerbosityMinimal, VerbosityNormal, VerbosityDetailed:
		return true
	default:
		return false
	}
}

// TagPlaylistRequest is one tagging run over a playlist. The destination
// container is intentionally absent: the selector chooses it.
type TagPlaylistRequest struct {
	// PlaylistInput is a bare playlist ID or any playlist URL form.
	PlaylistInput string        `json:"playlist_input"`
	Filters       *VideoFilters `json:"filters,omitempty"`
	Strategy      TagStrategy   `json:"strategy"`
	Verbosity     Verbosity     `json:"verbosity"`
}

// VideoStatus is the terminal state of one video within a run.
type VideoStatus string

const (
	VideoStatusSuccess VideoStatus = "SUCCESS"
	VideoStatusSkipped VideoStatus = "SKIPPED"
	VideoStatusFailed  VideoStatus = "FAILED"
)

// VideoOutcome records what happened to one video.
type VideoOutcome struct {
	Video        VideoRef    `json:"video"`
	Tags         []string    `json:"tags"`
	Status       VideoStatus `json:"status"`
	ErrorMessage string      `json:"error_message,omitempty"`
}

// ProcessingSummary aggregates a completed (or aborted) run.
// Total always equals Succeeded + Skipped + Failed.
type ProcessingSummary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Record counts one video outcome into the summary.
func (s *ProcessingSummary) Record(status VideoStatus) {
	s.Total++
	switch status {
	case VideoStatusSuccess:
		s.Succeeded++
	case VideoStatusSkipped:
		s.Skipped++
	case VideoStatusFailed:
		s.Failed++
	}
}
