// Tagmark server: tags playlist videos with a language model and files them
// as bookmarks, exposing tagging runs and store views over HTTP.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tagmark/tagmark/pkg/api"
	"github.com/tagmark/tagmark/pkg/bookmarks"
	"github.com/tagmark/tagmark/pkg/config"
	"github.com/tagmark/tagmark/pkg/llm"
	"github.com/tagmark/tagmark/pkg/pipeline"
	"github.com/tagmark/tagmark/pkg/resilience"
	"github.com/tagmark/tagmark/pkg/scheduler"
	"github.com/tagmark/tagmark/pkg/selector"
	"github.com/tagmark/tagmark/pkg/tagger"
	"github.com/tagmark/tagmark/pkg/version"
	"github.com/tagmark/tagmark/pkg/videosource"
)

// triggerDrainTimeout bounds how long shutdown waits for an in-flight
// scheduled cycle to notice cancellation and return.
const triggerDrainTimeout = 10 * time.Second

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	// Parse command-line flags
	configPath := flag.String("config",
		getEnv("TAGMARK_CONFIG", "./config/tagmark.yaml"),
		"Path to configuration file")
	flag.Parse()

	// Load .env from the config file's directory so API keys referenced by
	// the config template are in the environment before expansion.
	envPath := filepath.Join(filepath.Dir(*configPath), ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	slog.Info("Starting tagmark",
		"version", version.Full(),
		"config_file", *configPath)

	ctx := context.Background()

	// 1. Initialize configuration
	cfg, err := config.Initialize(ctx, *configPath)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	// 2. Build one resilience guard per upstream dependency. The guard is
	// shared by everything that talks to that dependency, so a breaker
	// opened by the pipeline also shields the sweeper and the API.
	videoGuard := resilience.NewGuard(config.DependencyVideoSource,
		*cfg.BreakerFor(config.DependencyVideoSource),
		*cfg.RetryFor(config.DependencyVideoSource))
	storeGuard := resilience.NewGuard(config.DependencyBookmarkStore,
		*cfg.BreakerFor(config.DependencyBookmarkStore),
		*cfg.RetryFor(config.DependencyBookmarkStore))
	llmGuard := resilience.NewGuard(config.DependencyLLM,
		*cfg.BreakerFor(config.DependencyLLM),
		*cfg.RetryFor(config.DependencyLLM))

	// 3. Create upstream clients
	videos := videosource.NewClient(*cfg.VideoSource, videoGuard)

	storeClient := bookmarks.NewClient(*cfg.BookmarkStore, storeGuard)
	store := bookmarks.NewService(storeClient, *cfg.BookmarkStore)

	llmClient, err := llm.NewClient(*cfg.LLM)
	if err != nil {
		slog.Error("Failed to initialize LLM client",
			"provider", cfg.LLM.Provider, "error", err)
		os.Exit(1)
	}
	model := llm.NewGuarded(llmClient, llmGuard)
	slog.Info("Upstream clients initialized",
		"llm_provider", cfg.LLM.Provider,
		"llm_model", model.Model())

	// 4. Domain services
	containerSelector := selector.New(store, videos, model, cfg.BookmarkStore.FallbackContainer)
	tagGenerator := tagger.NewGenerator(model, cfg.Tagging)

	// 5. Pipeline
	registry := pipeline.NewRegistry()
	orchestrator := pipeline.New(videos, store, containerSelector, tagGenerator, registry, cfg.Pipeline)
	sweeper := pipeline.NewSweeper(store, videos, containerSelector, tagGenerator)

	// 6. Background triggers (both disabled by default)
	var playlistTrigger *scheduler.PlaylistTrigger
	if cfg.Scheduler.Enabled {
		playlistTrigger = scheduler.NewPlaylistTrigger(orchestrator, cfg.Scheduler)
		playlistTrigger.Start(ctx)
	}

	var sweepTrigger *scheduler.SweepTrigger
	if cfg.UnsortedProcessor.Enabled {
		sweepTrigger = scheduler.NewSweepTrigger(sweeper, cfg.UnsortedProcessor)
		sweepTrigger.Start(ctx)
	}

	// 7. Create and start the HTTP server (non-blocking)
	guards := []*resilience.Guard{videoGuard, storeGuard, llmGuard}
	httpServer := api.NewServer(orchestrator, store, registry, guards, cfg.Server)

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("Tagmark started successfully",
		"port", cfg.Server.Port,
		"scheduler_enabled", cfg.Scheduler.Enabled,
		"sweeper_enabled", cfg.UnsortedProcessor.Enabled)

	// 8. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 9. Graceful shutdown. Triggers stop first so nothing submits new runs;
	// Stop cancels an in-flight cycle and waits for it to return.
	triggersDone := make(chan struct{})
	go func() {
		if playlistTrigger != nil {
			playlistTrigger.Stop()
		}
		if sweepTrigger != nil {
			sweepTrigger.Stop()
		}
		close(triggersDone)
	}()

	drainCtx, drainCancel := context.WithTimeout(ctx, triggerDrainTimeout)
	defer drainCancel()
	select {
	case <-triggersDone:
		slog.Info("Triggers stopped")
	case <-drainCtx.Done():
		slog.Warn("Trigger shutdown timeout exceeded")
	}

	// Cancel remaining runs so their SSE streams flush a final completed
	// event and release the handlers the HTTP shutdown waits on.
	if n := registry.CancelAll(); n > 0 {
		slog.Info("Cancelled in-flight runs", "count", n)
	}

	httpCtx, httpCancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer httpCancel()
	if err := httpServer.Shutdown(httpCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
