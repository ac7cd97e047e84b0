package bookmarks

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/tagmark/tagmark/pkg/cache"
	"github.com/tagmark/tagmark/pkg/config"
	"github.com/tagmark/tagmark/pkg/metrics"
	"github.com/tagmark/tagmark/pkg/models"
	"github.com/tagmark/tagmark/pkg/resilience"
)

// StoreClient is the remote surface the service wraps.
type StoreClient interface {
	ListTags(ctx context.Context) ([]models.Tag, error)
	ListContainers(ctx context.Context) ([]models.Container, error)
	CreateContainer(ctx context.Context, title string) (int64, error)
	BookmarkExists(ctx context.Context, containerID int64, url string) (bool, error)
	CreateBookmark(ctx context.Context, containerID int64, url, title string, tags []string) error
	ListBookmarks(ctx context.Context, containerID int64) ([]models.Bookmark, error)
	UpdateBookmark(ctx context.Context, bookmarkID, containerID int64, tags []string) error
}

// Service fronts the bookmark store with the three pipeline caches: the tag
// vocabulary, the container list, and the playlist-to-container mapping.
// All three are process-global and shared between concurrent runs.
type Service struct {
	client StoreClient

	tags       *cache.TTL[[]models.Tag]
	containers *cache.TTL[[]models.Container]
	mappings   *cache.TTL[string]

	group singleflight.Group
	log   *slog.Logger
}

// NewService builds the caching facade over client with the configured TTLs.
func NewService(client StoreClient, cfg config.BookmarkStoreConfig) *Service {
	return &Service{
		client:     client,
		tags:       cache.NewTTL[[]models.Tag](cfg.TagsTTL),
		containers: cache.NewTTL[[]models.Container](cfg.ContainerListTTL),
		mappings:   cache.NewTTL[string](cfg.PlaylistMappingTTL),
		log:        slog.With("component", "bookmarks"),
	}
}

// ListTags returns the principal's tag vocabulary through the tags cache.
// Empty vocabularies are cached too: a principal without tags must not cost
// a remote call per video.
func (s *Service) ListTags(ctx context.Context, principal string) ([]models.Tag, error) {
	if tags, ok := s.tags.Get(principal); ok {
		metrics.RecordCacheRequest("tags", true)
		return tags, nil
	}
	metrics.RecordCacheRequest("tags", false)

	result, err, _ := s.group.Do("tags:"+principal, func() (any, error) {
		if tags, ok := s.tags.Get(principal); ok {
			return tags, nil
		}
		tags, err := s.client.ListTags(ctx)
		if err != nil {
			return nil, err
		}
		s.tags.Set(principal, tags)
		return tags, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]models.Tag), nil
}

// ListContainers returns the principal's containers through the containers
// cache. Empty lists are served but never cached, so the next call can
// observe recovery after a degraded episode. An unavailable store degrades
// to an empty list instead of failing the caller.
func (s *Service) ListContainers(ctx context.Context, principal string) ([]models.Container, error) {
	if containers, ok := s.containers.Get(principal); ok {
		metrics.RecordCacheRequest("containers", true)
		return containers, nil
	}
	metrics.RecordCacheRequest("containers", false)

	result, err, _ := s.group.Do("containers:"+principal, func() (any, error) {
		if containers, ok := s.containers.Get(principal); ok {
			return containers, nil
		}
		containers, err := s.client.ListContainers(ctx)
		if err != nil {
			if unavailable, ok := resilience.IsServiceUnavailable(err); ok {
				s.log.Warn("container listing degraded to empty list",
					"retry_after_seconds", unavailable.RetryAfterSeconds())
				return []models.Container{}, nil
			}
			return nil, err
		}
		if len(containers) > 0 {
			s.containers.Set(principal, containers)
		}
		return containers, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]models.Container), nil
}

// CreateContainer creates a container and evicts the containers cache so the
// next listing observes it.
func (s *Service) CreateContainer(ctx context.Context, title string) (int64, error) {
	id, err := s.client.CreateContainer(ctx, title)
	if err != nil {
		return 0, err
	}
	s.containers.Clear()
	return id, nil
}

// ResolveContainerID maps a container title to its id. On a miss the
// containers cache is refreshed once, since the title may come from a
// mapping that predates the cached list.
func (s *Service) ResolveContainerID(ctx context.Context, principal, title string) (int64, error) {
	containers, err := s.ListContainers(ctx, principal)
	if err != nil {
		return 0, err
	}
	if container := models.FindContainer(containers, title); container != nil {
		return container.ID, nil
	}

	s.containers.Clear()
	containers, err = s.ListContainers(ctx, principal)
	if err != nil {
		return 0, err
	}
	if container := models.FindContainer(containers, title); container != nil {
		return container.ID, nil
	}
	return 0, fmt.Errorf("container %q: %w", title, models.ErrNotFound)
}

// PlaylistMapping returns the cached container title for a playlist.
func (s *Service) PlaylistMapping(playlistID string) (string, bool) {
	title, ok := s.mappings.Get(playlistID)
	metrics.RecordCacheRequest("playlist_mapping", ok)
	return title, ok
}

// StorePlaylistMapping remembers the selected container title for a playlist.
func (s *Service) StorePlaylistMapping(playlistID, title string) {
	s.mappings.Set(playlistID, title)
}

// DropPlaylistMapping forgets a stale playlist mapping so the next run
// re-selects a container.
func (s *Service) DropPlaylistMapping(playlistID string) {
	s.mappings.Evict(playlistID)
}

// BookmarkExists reports whether the container already holds url. A degraded
// store fails the check closed; callers must not create on error.
func (s *Service) BookmarkExists(ctx context.Context, containerID int64, url string) (bool, error) {
	return s.client.BookmarkExists(ctx, containerID, url)
}

// CreateBookmark stores a new bookmark.
func (s *Service) CreateBookmark(ctx context.Context, containerID int64, url, title string, tags []string) error {
	return s.client.CreateBookmark(ctx, containerID, url, title, tags)
}

// ListBookmarks returns the complete bookmark list of a container.
func (s *Service) ListBookmarks(ctx context.Context, containerID int64) ([]models.Bookmark, error) {
	return s.client.ListBookmarks(ctx, containerID)
}

// UpdateBookmark moves a bookmark and replaces its tags.
func (s *Service) UpdateBookmark(ctx context.Context, bookmarkID, containerID int64, tags []string) error {
	return s.client.UpdateBookmark(ctx, bookmarkID, containerID, tags)
}
