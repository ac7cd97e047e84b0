package scheduler

import (
	"context"
	"log/slog"

	"github.com/tagmark/tagmark/pkg/config"
	"github.com/tagmark/tagmark/pkg/models"
	"github.com/tagmark/tagmark/pkg/pipeline"
)

// playlistTagger is the slice of the orchestrator the trigger needs.
type playlistTagger interface {
	TagPlaylist(ctx context.Context, trigger string, req models.TagPlaylistRequest) (models.ProcessingSummary, error)
}

// PlaylistTrigger periodically submits each configured playlist for tagging,
// sequentially and in configuration order.
type PlaylistTrigger struct {
	tagger    playlistTagger
	playlists []string
	runner    *Runner
	log       *slog.Logger
}

// NewPlaylistTrigger creates the trigger from the scheduler configuration.
func NewPlaylistTrigger(tagger playlistTagger, cfg *config.SchedulerConfig) *PlaylistTrigger {
	t := &PlaylistTrigger{
		tagger:    tagger,
		playlists: cfg.PlaylistIDs,
		log:       slog.With("component", "playlist-trigger"),
	}
	t.runner = NewRunner("playlist-trigger", cfg.InitialDelay, cfg.FixedDelay, t.cycle)
	return t
}

// Start launches the trigger loop.
func (t *PlaylistTrigger) Start(ctx context.Context) {
	t.runner.Start(ctx)
}

// Stop ends the loop and waits for an in-flight cycle to wind down.
func (t *PlaylistTrigger) Stop() {
	t.runner.Stop()
}

// cycle tags every configured playlist. A failing playlist is logged and the
// remaining playlists still run.
func (t *PlaylistTrigger) cycle(ctx context.Context) {
	for _, playlistID := range t.playlists {
		if ctx.Err() != nil {
			return
		}

		summary, err := t.tagger.TagPlaylist(ctx, pipeline.TriggerScheduler, models.TagPlaylistRequest{
			PlaylistInput: playlistID,
			Verbosity:     models.VerbosityMinimal,
		})
		if err != nil {
			t.log.Error("Scheduled tagging run failed", "playlist_id", playlistID, "error", err)
			continue
		}
		t.log.Info("Scheduled tagging run complete",
			"playlist_id", playlistID,
			"total", summary.Total,
			"succeeded", summary.Succeeded,
			"skipped", summary.Skipped,
			"failed", summary.Failed,
		)
	}
}

// sweeper is the slice of the pipeline sweeper the trigger needs.
type sweeper interface {
	Sweep(ctx context.Context) (pipeline.SweepSummary, error)
}

// SweepTrigger periodically runs the unsorted-bookmark sweeper.
type SweepTrigger struct {
	sweeper sweeper
	runner  *Runner
	log     *slog.Logger
}

// NewSweepTrigger creates the trigger from the unsorted-processor
// configuration.
func NewSweepTrigger(sweeper sweeper, cfg *config.UnsortedProcessorConfig) *SweepTrigger {
	t := &SweepTrigger{
		sweeper: sweeper,
		log:     slog.With("component", "sweep-trigger"),
	}
	t.runner = NewRunner("unsorted-sweeper", cfg.InitialDelay, cfg.FixedDelay, t.cycle)
	return t
}

// Start launches the trigger loop.
func (t *SweepTrigger) Start(ctx context.Context) {
	t.runner.Start(ctx)
}

// Stop ends the loop and waits for an in-flight sweep to wind down.
func (t *SweepTrigger) Stop() {
	t.runner.Stop()
}

// cycle runs one sweep. The sweeper logs its own terminal summary; only the
// error path is reported here.
func (t *SweepTrigger) cycle(ctx context.Context) {
	if _, err := t.sweeper.Sweep(ctx); err != nil {
		t.log.Error("Unsorted sweep failed", "error", err)
	}
}
