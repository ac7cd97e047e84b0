package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagmark/tagmark/pkg/bookmarks"
	"github.com/tagmark/tagmark/pkg/config"
	"github.com/tagmark/tagmark/pkg/models"
	"github.com/tagmark/tagmark/pkg/pipeline"
	"github.com/tagmark/tagmark/pkg/resilience"
	"github.com/tagmark/tagmark/pkg/videosource"
)

// ────────────────────────────────────────────────────────────
// Fakes
// ────────────────────────────────────────────────────────────

// videoSourceStub feeds the orchestrator.
type videoSourceStub struct {
	playlist    *models.Playlist
	playlistErr error
	videos      []models.VideoRef
	videosErr   error
}

func (s *videoSourceStub) GetPlaylist(context.Context, string) (*models.Playlist, error) {
	if s.playlistErr != nil {
		return nil, s.playlistErr
	}
	return s.playlist, nil
}

func (s *videoSourceStub) ListPlaylistVideos(context.Context, string) ([]models.VideoRef, error) {
	if s.videosErr != nil {
		return nil, s.videosErr
	}
	return s.videos, nil
}

// runStoreStub answers the orchestrator's bookmark-store calls.
type runStoreStub struct {
	containerID int64
	createErr   error
	onCreate    func()
}

func (s *runStoreStub) ListTags(context.Context, string) ([]models.Tag, error) {
	return nil, nil
}

func (s *runStoreStub) ResolveContainerID(context.Context, string, string) (int64, error) {
	return s.containerID, nil
}

func (s *runStoreStub) DropPlaylistMapping(string) {}

func (s *runStoreStub) BookmarkExists(context.Context, int64, string) (bool, error) {
	return false, nil
}

func (s *runStoreStub) CreateBookmark(context.Context, int64, string, string, []string) error {
	if s.onCreate != nil {
		s.onCreate()
	}
	return s.createErr
}

type selectorStub struct {
	title string
}

func (s *selectorStub) SelectForPlaylist(context.Context, string, models.Playlist) (string, error) {
	return s.title, nil
}

type taggerStub struct {
	tags []models.ScoredTag
	err  error
}

func (s *taggerStub) GenerateTags(context.Context, models.VideoRef, []models.Tag, models.TagStrategy) ([]models.ScoredTag, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.tags, nil
}

// storeClientStub backs the bookmarks.Service behind the read-only endpoints.
type storeClientStub struct {
	tags       []models.Tag
	tagsErr    error
	containers []models.Container
}

func (s *storeClientStub) ListTags(context.Context) ([]models.Tag, error) {
	return s.tags, s.tagsErr
}

func (s *storeClientStub) ListContainers(context.Context) ([]models.Container, error) {
	return s.containers, nil
}

func (s *storeClientStub) CreateContainer(context.Context, string) (int64, error) {
	return 0, fmt.Errorf("unexpected CreateContainer call")
}

func (s *storeClientStub) BookmarkExists(context.Context, int64, string) (bool, error) {
	return false, nil
}

func (s *storeClientStub) CreateBookmark(context.Context, int64, string, string, []string) error {
	return nil
}

func (s *storeClientStub) ListBookmarks(context.Context, int64) ([]models.Bookmark, error) {
	return nil, nil
}

func (s *storeClientStub) UpdateBookmark(context.Context, int64, int64, []string) error {
	return nil
}

// ────────────────────────────────────────────────────────────
// Fixture
// ────────────────────────────────────────────────────────────

type fixture struct {
	server   *Server
	videos   *videoSourceStub
	store    *runStoreStub
	tagger   *taggerStub
	client   *storeClientStub
	registry *pipeline.Registry
}

func newTestFixture() *fixture {
	videos := &videoSourceStub{
		playlist: &models.Playlist{ID: "PL123", Title: "Go Talks"},
	}
	store := &runStoreStub{containerID: 7}
	tagger := &taggerStub{}
	client := &storeClientStub{}
	registry := pipeline.NewRegistry()

	orchestrator := pipeline.New(videos, store, &selectorStub{title: "Programming"}, tagger,
		registry, config.DefaultPipelineConfig())
	service := bookmarks.NewService(client, *config.DefaultBookmarkStoreConfig())

	guards := []*resilience.Guard{
		newTestGuard(config.DependencyVideoSource),
		newTestGuard(config.DependencyBookmarkStore),
		newTestGuard(config.DependencyLLM),
	}

	return &fixture{
		server:   NewServer(orchestrator, service, registry, guards, config.DefaultServerConfig()),
		videos:   videos,
		store:    store,
		tagger:   tagger,
		client:   client,
		registry: registry,
	}
}

func (f *fixture) handler() http.Handler {
	return f.server.Handler()
}

func newTestGuard(service string) *resilience.Guard {
	return resilience.NewGuard(service, *config.DefaultBreakerConfig(), *config.DefaultRetryConfig(service))
}

func testVideos(n int) []models.VideoRef {
	videos := make([]models.VideoRef, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("vid-%d", i+1)
		videos = append(videos, models.VideoRef{
			VideoID: id,
			URL:     videosource.WatchURL(id),
			Title:   fmt.Sprintf("Video %d", i+1),
		})
	}
	return videos
}

// ────────────────────────────────────────────────────────────
// Tests
// ────────────────────────────────────────────────────────────

func TestHealthHandler(t *testing.T) {
	fx := newTestFixture()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	fx.handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.NotEmpty(t, resp.Version)
	assert.Equal(t, 0, resp.ActiveRuns)
}

func TestMetricsRoute(t *testing.T) {
	fx := newTestFixture()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	fx.handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	// Runtime collectors are always registered, so the exposition is never empty.
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestUnknownRouteReturns404(t *testing.T) {
	fx := newTestFixture()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)
	rec := httptest.NewRecorder()
	fx.handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
