// Package pipeline executes tagging runs: the per-playlist orchestration
// state machine and the periodic unsorted-bookmark sweeper.
//
// A run moves through fixed stages: select the destination container,
// resolve its id, load the tag vocabulary, fetch and filter the playlist
// videos, then process the videos sequentially in fixed-size batches. Each
// video is checked for a pre-existing bookmark (skip), tagged by the model,
// and stored. Per-video errors are reported and the run continues; a
// dependency outage aborts the run, because without a trustworthy store no
// further bookmark may be written. Whatever happens, the run's stream ends
// with a completed event carrying the counts accrued so far.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tagmark/tagmark/pkg/config"
	"github.com/tagmark/tagmark/pkg/events"
	"github.com/tagmark/tagmark/pkg/metrics"
	"github.com/tagmark/tagmark/pkg/models"
	"github.com/tagmark/tagmark/pkg/resilience"
	"github.com/tagmark/tagmark/pkg/videosource"
)

// DefaultBatchSize is how many videos one batch carries.
const DefaultBatchSize = 10

// videoSource is the slice of the video source client the orchestrator needs.
type videoSource interface {
	GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error)
	ListPlaylistVideos(ctx context.Context, playlistID string) ([]models.VideoRef, error)
}

// bookmarkStore is the slice of the bookmark service the orchestrator needs.
type bookmarkStore interface {
	ListTags(ctx context.Context, principal string) ([]models.Tag, error)
	ResolveContainerID(ctx context.Context, principal, title string) (int64, error)
	DropPlaylistMapping(playlistID string)
	BookmarkExists(ctx context.Context, containerID int64, url string) (bool, error)
	CreateBookmark(ctx context.Context, containerID int64, url, title string, tags []string) error
}

// containerSelector chooses the destination container for a playlist.
type containerSelector interface {
	SelectForPlaylist(ctx context.Context, principal string, playlist models.Playlist) (string, error)
}

// tagGenerator produces the tags for one video.
type tagGenerator interface {
	GenerateTags(ctx context.Context, video models.VideoRef, vocabulary []models.Tag, strategy models.TagStrategy) ([]models.ScoredTag, error)
}

// Orchestrator prepares and executes tagging runs. It is stateless across
// runs and safe for concurrent use; shared state (caches, breakers) lives in
// the injected dependencies.
type Orchestrator struct {
	videos   videoSource
	store    bookmarkStore
	selector containerSelector
	tagger   tagGenerator
	registry *Registry

	deadline    time.Duration
	eventBuffer int
	// batchSize is DefaultBatchSize unless a test narrows it.
	batchSize int
}

// New creates an Orchestrator with the configured run deadline and event
// buffer. registry receives every started run's cancel function.
func New(videos videoSource, store bookmarkStore, selector containerSelector, tagger tagGenerator, registry *Registry, cfg *config.PipelineConfig) *Orchestrator {
	return &Orchestrator{
		videos:      videos,
		store:       store,
		selector:    selector,
		tagger:      tagger,
		registry:    registry,
		deadline:    cfg.RunDeadline,
		eventBuffer: cfg.EventBuffer,
		batchSize:   DefaultBatchSize,
	}
}

// ────────────────────────────────────────────────────────────
// Prepare / Start — the two-phase entry point
// ────────────────────────────────────────────────────────────

// Prepare validates and normalizes the request and resolves the playlist.
// Nothing is executed and no event is published yet, so errors still map
// cleanly onto responses: validation errors, playlist not found, or a
// dependency already unavailable.
func (o *Orchestrator) Prepare(ctx context.Context, trigger string, req models.TagPlaylistRequest) (*Run, error) {
	playlistID, err := videosource.ParsePlaylistInput(req.PlaylistInput)
	if err != nil {
		return nil, models.NewValidationError("playlist_input", err.Error())
	}
	req.PlaylistInput = playlistID

	if req.Verbosity == "" {
		req.Verbosity = models.VerbosityNormal
	}
	if !req.Verbosity.IsValid() {
		return nil, models.NewValidationError("verbosity", fmt.Sprintf("unknown verbosity %q", req.Verbosity))
	}
	if req.Strategy == (models.TagStrategy{}) {
		req.Strategy = models.DefaultTagStrategy()
	}
	if req.Strategy.MaxTags < 0 {
		return nil, models.NewValidationError("strategy.max_tags", "must not be negative")
	}
	if req.Strategy.ConfidenceFloor < 0 || req.Strategy.ConfidenceFloor > 1 {
		return nil, models.NewValidationError("strategy.confidence_floor", "must be between 0 and 1")
	}
	if req.Filters != nil {
		if req.Filters.MaxVideos != nil && *req.Filters.MaxVideos < 1 {
			return nil, models.NewValidationError("filters.max_videos", "must be at least 1")
		}
		if req.Filters.MaxDurationSeconds != nil && *req.Filters.MaxDurationSeconds < 1 {
			return nil, models.NewValidationError("filters.max_duration_seconds", "must be at least 1")
		}
	}

	playlist, err := o.videos.GetPlaylist(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	return newRun(trigger, *playlist, req, o.eventBuffer), nil
}

// Start launches the run's state machine in its own goroutine under the run
// deadline. Progress flows out on run.Events(); the stream is closed after
// the terminal event. The run context derives from ctx, so a disconnecting
// API caller cancels the run at its next safe point.
func (o *Orchestrator) Start(ctx context.Context, run *Run) {
	runCtx, cancel := context.WithTimeout(ctx, o.deadline)
	o.registry.Register(run.ID, cancel)

	go func() {
		defer cancel()
		defer o.registry.Unregister(run.ID)
		o.execute(runCtx, run)
	}()
}

// TagPlaylist runs the pipeline end to end for one playlist and blocks until
// the run finishes, draining progress internally. Used by the scheduler,
// which has no streaming consumer.
func (o *Orchestrator) TagPlaylist(ctx context.Context, trigger string, req models.TagPlaylistRequest) (models.ProcessingSummary, error) {
	run, err := o.Prepare(ctx, trigger, req)
	if err != nil {
		return models.ProcessingSummary{}, err
	}
	o.Start(ctx, run)

	var summary models.ProcessingSummary
	var fatal error
	for event := range run.Events() {
		switch {
		case event.Fatal():
			fatal = errors.New(event.Message)
		case event.Terminal():
			if s, ok := event.Data.(models.ProcessingSummary); ok {
				summary = s
			}
		}
	}
	return summary, fatal
}

// ────────────────────────────────────────────────────────────
// Run execution — the per-playlist state machine
// ────────────────────────────────────────────────────────────

// batchInput groups everything the batch loop needs.
type batchInput struct {
	container   string
	containerID int64
	vocabulary  []models.Tag
	videos      []models.VideoRef
}

// execute drives one run from started to completed. It always publishes the
// terminal event and closes the stream, whatever goes wrong in between.
func (o *Orchestrator) execute(ctx context.Context, run *Run) {
	logger := slog.With(
		"run_id", run.ID,
		"playlist_id", run.Playlist.ID,
		"trigger", run.trigger,
	)
	logger.Info("Tagging run started", "playlist_title", run.Playlist.Title)

	startedAt := time.Now()
	var summary models.ProcessingSummary
	defer run.stream.Close()

	// 1. Announce the run
	run.stream.Publish(events.NewStarted(
		fmt.Sprintf("Tagging playlist %q", run.Playlist.Title),
		events.StartedData{
			RunID:         run.ID,
			PlaylistID:    run.Playlist.ID,
			PlaylistTitle: run.Playlist.Title,
			Timestamp:     startedAt.Format(time.RFC3339Nano),
		},
	))

	// 2. Select the destination container
	o.progress(run, models.VerbosityNormal, "Selecting destination container")
	title, err := o.selector.SelectForPlaylist(ctx, models.DefaultPrincipal, run.Playlist)
	if err != nil {
		o.finish(ctx, run, logger, summary, fmt.Errorf("selecting container: %w", err), startedAt)
		return
	}

	// 3. Resolve the container id (re-selecting once if a cached mapping
	// points at a container that no longer exists)
	title, containerID, err := o.resolveContainer(ctx, run, title)
	if err != nil {
		o.finish(ctx, run, logger, summary, fmt.Errorf("resolving container: %w", err), startedAt)
		return
	}

	// 4. Load the tag vocabulary
	o.progress(run, models.VerbosityNormal, "Loading tag vocabulary")
	vocabulary, err := o.store.ListTags(ctx, models.DefaultPrincipal)
	if err != nil {
		o.finish(ctx, run, logger, summary, fmt.Errorf("loading tags: %w", err), startedAt)
		return
	}

	// 5. Fetch and filter the playlist videos
	o.progress(run, models.VerbosityNormal, "Fetching playlist videos")
	videos, err := o.videos.ListPlaylistVideos(ctx, run.Playlist.ID)
	if err != nil {
		o.finish(ctx, run, logger, summary, fmt.Errorf("fetching videos: %w", err), startedAt)
		return
	}
	videos = applyFilters(videos, run.Request.Filters)
	logger.Info("Videos selected for processing",
		"count", len(videos),
		"container", title,
		"container_id", containerID,
	)

	// 6. Process the videos in fixed-size batches
	fatal := o.processBatches(ctx, run, batchInput{
		container:   title,
		containerID: containerID,
		vocabulary:  vocabulary,
		videos:      videos,
	}, &summary)

	// 7. Summarize
	o.finish(ctx, run, logger, summary, fatal, startedAt)
}

// resolveContainer maps the selected title to its container id. A cached
// playlist mapping can name a container deleted since it was stored; the
// stale mapping is dropped and selection runs once more before giving up.
func (o *Orchestrator) resolveContainer(ctx context.Context, run *Run, title string) (string, int64, error) {
	containerID, err := o.store.ResolveContainerID(ctx, models.DefaultPrincipal, title)
	if err == nil {
		return title, containerID, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return "", 0, err
	}

	slog.Warn("Selected container no longer exists, re-selecting",
		"run_id", run.ID, "container", title)
	o.store.DropPlaylistMapping(run.Playlist.ID)

	title, err = o.selector.SelectForPlaylist(ctx, models.DefaultPrincipal, run.Playlist)
	if err != nil {
		return "", 0, err
	}
	containerID, err = o.store.ResolveContainerID(ctx, models.DefaultPrincipal, title)
	if err != nil {
		return "", 0, err
	}
	return title, containerID, nil
}

// processBatches walks the videos sequentially in fixed-size batches,
// recording every outcome into summary. It returns a non-nil error only when
// the run must abort (dependency unavailable); cancellation ends the loop
// quietly and is routed by the caller via ctx.
func (o *Orchestrator) processBatches(ctx context.Context, run *Run, in batchInput, summary *models.ProcessingSummary) error {
	totalBatches := (len(in.videos) + o.batchSize - 1) / o.batchSize

	for start := 0; start < len(in.videos); start += o.batchSize {
		end := start + o.batchSize
		if end > len(in.videos) {
			end = len(in.videos)
		}
		batchNumber := start/o.batchSize + 1
		batch := in.videos[start:end]

		o.progress(run, models.VerbosityNormal,
			fmt.Sprintf("Processing batch %d of %d (%d videos)", batchNumber, totalBatches, len(batch)))

		before := *summary
		for i, video := range batch {
			// Cancellation is honored between videos, never mid-video.
			if ctx.Err() != nil {
				return nil
			}

			o.progress(run, models.VerbosityDetailed,
				fmt.Sprintf("Processing video %d of %d: %s", start+i+1, len(in.videos), video.Title))

			status, err := o.processVideo(ctx, run, in, video)
			if err != nil {
				return err
			}
			summary.Record(status)
			metrics.RecordVideoOutcome(strings.ToLower(string(status)))
		}

		run.stream.Publish(events.NewBatchCompleted(
			fmt.Sprintf("Batch %d of %d complete", batchNumber, totalBatches),
			events.BatchData{
				BatchNumber:  batchNumber,
				TotalBatches: totalBatches,
				Succeeded:    summary.Succeeded - before.Succeeded,
				Skipped:      summary.Skipped - before.Skipped,
				Failed:       summary.Failed - before.Failed,
			},
		))
	}
	return nil
}

// processVideo runs one video through duplicate check, tag generation, and
// bookmark creation. Per-video failures are published and reported as
// FAILED; a dependency outage is returned as an error and aborts the run.
func (o *Orchestrator) processVideo(ctx context.Context, run *Run, in batchInput, video models.VideoRef) (models.VideoStatus, error) {
	// The duplicate check fails closed: without a trustworthy answer no
	// bookmark may be created.
	exists, err := o.store.BookmarkExists(ctx, in.containerID, video.URL)
	if err != nil {
		return o.videoFailed(ctx, run, video, fmt.Errorf("duplicate check: %w", err))
	}
	if exists {
		run.stream.Publish(events.NewVideoSkipped(
			fmt.Sprintf("Already bookmarked: %s", video.Title),
			events.VideoData{VideoID: video.VideoID, Title: video.Title, URL: video.URL},
		))
		return models.VideoStatusSkipped, nil
	}

	scored, err := o.tagger.GenerateTags(ctx, video, in.vocabulary, run.Request.Strategy)
	if err != nil {
		return o.videoFailed(ctx, run, video, fmt.Errorf("generating tags: %w", err))
	}
	tags := models.TagNames(scored)

	if err := o.store.CreateBookmark(ctx, in.containerID, video.URL, video.Title, tags); err != nil {
		return o.videoFailed(ctx, run, video, fmt.Errorf("creating bookmark: %w", err))
	}

	run.stream.Publish(events.NewVideoCompleted(
		fmt.Sprintf("Tagged: %s", video.Title),
		events.VideoData{VideoID: video.VideoID, Title: video.Title, URL: video.URL, Tags: tags},
	))
	return models.VideoStatusSuccess, nil
}

// videoFailed routes one video error. Cancellation and dependency outages
// propagate up and end the run; anything else is published as a per-video
// error and the run continues.
func (o *Orchestrator) videoFailed(ctx context.Context, run *Run, video models.VideoRef, err error) (models.VideoStatus, error) {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return models.VideoStatusFailed, err
	}
	if _, ok := resilience.IsServiceUnavailable(err); ok {
		return models.VideoStatusFailed, err
	}

	slog.Warn("Video failed, run continues",
		"run_id", run.ID, "video_id", video.VideoID, "error", err)
	run.stream.Publish(events.NewVideoError(
		fmt.Sprintf("Video %s failed: %v", video.VideoID, err),
		events.ErrorData{VideoID: video.VideoID},
	))
	return models.VideoStatusFailed, nil
}

// finish publishes the terminal events, logs the run outcome, and records
// metrics. A fatal error produces an error event before completed;
// cancellation and deadline expiry produce only the completed event with the
// counts accrued so far.
func (o *Orchestrator) finish(ctx context.Context, run *Run, logger *slog.Logger, summary models.ProcessingSummary, fatal error, startedAt time.Time) {
	elapsed := time.Since(startedAt)
	counts := fmt.Sprintf("%d tagged, %d skipped, %d failed", summary.Succeeded, summary.Skipped, summary.Failed)

	var outcome, message string
	switch {
	case ctx.Err() == context.DeadlineExceeded:
		outcome = "timed_out"
		message = fmt.Sprintf("Run deadline exceeded after %d videos: %s", summary.Total, counts)
		logger.Warn("Tagging run timed out", "elapsed", elapsed, "total", summary.Total)

	case ctx.Err() != nil:
		outcome = "cancelled"
		message = fmt.Sprintf("Run cancelled after %d videos: %s", summary.Total, counts)
		logger.Warn("Tagging run cancelled", "elapsed", elapsed, "total", summary.Total)

	case fatal != nil:
		outcome = "failed"
		data := events.ErrorData{}
		if unavailable, ok := resilience.IsServiceUnavailable(fatal); ok {
			data.Service = unavailable.Service
			data.RetryAfterSeconds = unavailable.RetryAfterSeconds()
		}
		run.stream.Publish(events.NewFatalError(fatal.Error(), data))
		message = fmt.Sprintf("Run aborted after %d videos: %s", summary.Total, counts)
		logger.Error("Tagging run failed", "error", fatal, "elapsed", elapsed, "total", summary.Total)

	default:
		outcome = "completed"
		message = fmt.Sprintf("Processed %d videos: %s", summary.Total, counts)
		logger.Info("Tagging run complete",
			"elapsed", elapsed,
			"total", summary.Total,
			"succeeded", summary.Succeeded,
			"skipped", summary.Skipped,
			"failed", summary.Failed,
		)
	}

	run.stream.Publish(events.NewCompleted(message, summary))
	metrics.RecordRun(run.trigger, outcome)
}

// progress publishes a progress event when the run's verbosity admits it:
// minimal suppresses all progress, normal carries stage transitions, and
// detailed additionally carries per-video lines.
func (o *Orchestrator) progress(run *Run, level models.Verbosity, message string) {
	switch run.Request.Verbosity {
	case models.VerbosityMinimal:
		return
	case models.VerbosityNormal:
		if level != models.VerbosityNormal {
			return
		}
	}
	run.stream.Publish(events.NewProgress(message))
}

// applyFilters narrows videos to the requested subset: the predicate filters
// first, then the maxVideos cap.
func applyFilters(videos []models.VideoRef, filters *models.VideoFilters) []models.VideoRef {
	if filters == nil {
		return videos
	}
	kept := make([]models.VideoRef, 0, len(videos))
	for _, video := range videos {
		if filters.Matches(video) {
			kept = append(kept, video)
		}
	}
	if filters.MaxVideos != nil && len(kept) > *filters.MaxVideos {
		kept = kept[:*filters.MaxVideos]
	}
	return kept
}
