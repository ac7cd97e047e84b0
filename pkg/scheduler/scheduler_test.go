package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagmark/tagmark/pkg/config"
	"github.com/tagmark/tagmark/pkg/models"
	"github.com/tagmark/tagmark/pkg/pipeline"
)

type fakeTagger struct {
	requests []models.TagPlaylistRequest
	triggers []string
	errOn    string
}

func (f *fakeTagger) TagPlaylist(_ context.Context, trigger string, req models.TagPlaylistRequest) (models.ProcessingSummary, error) {
	f.requests = append(f.requests, req)
	f.triggers = append(f.triggers, trigger)
	if f.errOn == req.PlaylistInput {
		return models.ProcessingSummary{}, errors.New("playlist unavailable")
	}
	return models.ProcessingSummary{Total: 2, Succeeded: 2}, nil
}

type fakeSweeper struct {
	calls int
	err   error
}

func (f *fakeSweeper) Sweep(context.Context) (pipeline.SweepSummary, error) {
	f.calls++
	if f.err != nil {
		return pipeline.SweepSummary{}, f.err
	}
	return pipeline.SweepSummary{Total: 1, Succeeded: 1}, nil
}

func TestPlaylistTriggerCycleTagsAllPlaylists(t *testing.T) {
	tagger := &fakeTagger{}
	trigger := NewPlaylistTrigger(tagger, &config.SchedulerConfig{
		PlaylistIDs: []string{"PL1", "PL2", "PL3"},
	})

	trigger.cycle(context.Background())

	require.Len(t, tagger.requests, 3)
	assert.Equal(t, "PL1", tagger.requests[0].PlaylistInput)
	assert.Equal(t, models.VerbosityMinimal, tagger.requests[0].Verbosity)
	assert.Equal(t, []string{pipeline.TriggerScheduler, pipeline.TriggerScheduler, pipeline.TriggerScheduler}, tagger.triggers)
}

func TestPlaylistTriggerCycleToleratesFailures(t *testing.T) {
	tagger := &fakeTagger{errOn: "PL2"}
	trigger := NewPlaylistTrigger(tagger, &config.SchedulerConfig{
		PlaylistIDs: []string{"PL1", "PL2", "PL3"},
	})

	trigger.cycle(context.Background())

	assert.Len(t, tagger.requests, 3, "a failing playlist must not stop the rest")
}

func TestPlaylistTriggerCycleStopsOnCancel(t *testing.T) {
	tagger := &fakeTagger{}
	trigger := NewPlaylistTrigger(tagger, &config.SchedulerConfig{
		PlaylistIDs: []string{"PL1", "PL2"},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	trigger.cycle(ctx)

	assert.Empty(t, tagger.requests)
}

func TestSweepTriggerCycle(t *testing.T) {
	sweeper := &fakeSweeper{}
	trigger := NewSweepTrigger(sweeper, &config.UnsortedProcessorConfig{})

	trigger.cycle(context.Background())
	assert.Equal(t, 1, sweeper.calls)

	// Errors are logged, not propagated.
	sweeper.err = errors.New("store down")
	trigger.cycle(context.Background())
	assert.Equal(t, 2, sweeper.calls)
}

func TestRunnerRunsAndStops(t *testing.T) {
	ticks := make(chan struct{}, 16)
	runner := NewRunner("test", time.Millisecond, time.Millisecond, func(context.Context) {
		select {
		case ticks <- struct{}{}:
		default:
		}
	})

	runner.Start(context.Background())
	runner.Start(context.Background()) // second Start is a no-op

	for i := 0; i < 2; i++ {
		select {
		case <-ticks:
		case <-time.After(2 * time.Second):
			t.Fatal("cycle did not run")
		}
	}

	runner.Stop()
	runner.Stop() // Stop is safe to call again
}

func TestRunnerStopDuringInitialDelay(t *testing.T) {
	ran := false
	runner := NewRunner("test", time.Hour, time.Hour, func(context.Context) {
		ran = true
	})

	runner.Start(context.Background())
	runner.Stop()

	assert.False(t, ran, "cycle must not run before the initial delay elapses")
}
