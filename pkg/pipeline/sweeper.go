package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tagmark/tagmark/pkg/metrics"
	"github.com/tagmark/tagmark/pkg/models"
	"github.com/tagmark/tagmark/pkg/resilience"
	"github.com/tagmark/tagmark/pkg/videosource"
)

// sweeperStore is the slice of the bookmark service the sweeper needs.
type sweeperStore interface {
	ListBookmarks(ctx context.Context, containerID int64) ([]models.Bookmark, error)
	ListTags(ctx context.Context, principal string) ([]models.Tag, error)
	ResolveContainerID(ctx context.Context, principal, title string) (int64, error)
	UpdateBookmark(ctx context.Context, bookmarkID, containerID int64, tags []string) error
}

// videoGetter fetches a single video's metadata.
type videoGetter interface {
	GetVideo(ctx context.Context, videoID string) (*models.VideoRef, error)
}

// videoSelector chooses the destination container for a single video.
type videoSelector interface {
	SelectForVideo(ctx context.Context, principal string, video models.VideoRef) (string, error)
}

// SweepSummary counts one sweep over the unsorted container. Total covers
// only the bookmarks whose URL points at the video source; everything else
// in the container is left untouched.
type SweepSummary struct {
	Total     int
	Succeeded int
	Failed    int
}

// Sweeper re-files unsorted video bookmarks: for each bookmark in the
// store's unsorted container whose URL is a video link, it fetches the
// video, generates tags, selects a container, and updates the bookmark in
// place. Individual failures do not stop a sweep; a dependency outage does,
// since every remaining bookmark would fail the same way.
type Sweeper struct {
	store    sweeperStore
	videos   videoGetter
	selector videoSelector
	tagger   tagGenerator
	log      *slog.Logger
}

// NewSweeper creates a Sweeper over the given dependencies.
func NewSweeper(store sweeperStore, videos videoGetter, selector videoSelector, tagger tagGenerator) *Sweeper {
	return &Sweeper{
		store:    store,
		videos:   videos,
		selector: selector,
		tagger:   tagger,
		log:      slog.With("component", "sweeper"),
	}
}

// Sweep processes the unsorted container once. The returned summary covers
// whatever was attempted, even when the sweep ends early on cancellation or
// a dependency outage.
func (s *Sweeper) Sweep(ctx context.Context) (SweepSummary, error) {
	var summary SweepSummary

	bookmarks, err := s.store.ListBookmarks(ctx, models.UnsortedContainerID)
	if err != nil {
		return summary, fmt.Errorf("listing unsorted bookmarks: %w", err)
	}

	candidates := make([]models.Bookmark, 0, len(bookmarks))
	for _, bookmark := range bookmarks {
		if videosource.IsVideoURL(bookmark.URL) {
			candidates = append(candidates, bookmark)
		}
	}
	s.log.Info("Unsorted sweep started",
		"unsorted", len(bookmarks),
		"videos", len(candidates),
	)
	if len(candidates) == 0 {
		s.logSweepDone(summary)
		return summary, nil
	}

	vocabulary, err := s.store.ListTags(ctx, models.DefaultPrincipal)
	if err != nil {
		return summary, fmt.Errorf("loading tags: %w", err)
	}

	for _, bookmark := range candidates {
		if ctx.Err() != nil {
			s.logSweepDone(summary)
			return summary, ctx.Err()
		}

		summary.Total++
		if err := s.sweepBookmark(ctx, bookmark, vocabulary); err != nil {
			summary.Failed++
			metrics.RecordUnsortedBookmark("failed")

			if unavailable, ok := resilience.IsServiceUnavailable(err); ok {
				s.log.Warn("Dependency unavailable, ending sweep early",
					"service", unavailable.Service,
					"retry_after_seconds", unavailable.RetryAfterSeconds(),
				)
				s.logSweepDone(summary)
				return summary, err
			}

			s.log.Warn("Unsorted bookmark failed, sweep continues",
				"bookmark_id", bookmark.ID, "url", bookmark.URL, "error", err)
			continue
		}
		summary.Succeeded++
		metrics.RecordUnsortedBookmark("succeeded")
	}

	s.logSweepDone(summary)
	return summary, nil
}

// sweepBookmark enriches and re-files one bookmark.
func (s *Sweeper) sweepBookmark(ctx context.Context, bookmark models.Bookmark, vocabulary []models.Tag) error {
	videoID, ok := videosource.ExtractVideoID(bookmark.URL)
	if !ok {
		return fmt.Errorf("no video id in url %q", bookmark.URL)
	}

	video, err := s.videos.GetVideo(ctx, videoID)
	if err != nil {
		return fmt.Errorf("fetching video %s: %w", videoID, err)
	}

	scored, err := s.tagger.GenerateTags(ctx, *video, vocabulary, models.DefaultTagStrategy())
	if err != nil {
		return fmt.Errorf("generating tags: %w", err)
	}

	title, err := s.selector.SelectForVideo(ctx, models.DefaultPrincipal, *video)
	if err != nil {
		return fmt.Errorf("selecting container: %w", err)
	}
	containerID, err := s.store.ResolveContainerID(ctx, models.DefaultPrincipal, title)
	if err != nil {
		return fmt.Errorf("resolving container %q: %w", title, err)
	}

	if err := s.store.UpdateBookmark(ctx, bookmark.ID, containerID, models.TagNames(scored)); err != nil {
		return fmt.Errorf("updating bookmark: %w", err)
	}

	s.log.Debug("Unsorted bookmark re-filed",
		"bookmark_id", bookmark.ID,
		"video_id", videoID,
		"container", title,
	)
	return nil
}

func (s *Sweeper) logSweepDone(summary SweepSummary) {
	s.log.Info("Unsorted sweep complete",
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
	)
}
