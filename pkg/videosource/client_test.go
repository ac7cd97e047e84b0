package videosource

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagmark/tagmark/pkg/config"
	"github.com/tagmark/tagmark/pkg/models"
	"github.com/tagmark/tagmark/pkg/resilience"
)

func newTestClient(server *httptest.Server) *Client {
	guard := resilience.NewGuard(config.DependencyVideoSource,
		*config.DefaultBreakerConfig(),
		config.RetryConfig{MaxAttempts: 2, BaseWait: time.Millisecond, Multiplier: 2},
	)
	return NewClient(config.VideoSourceConfig{
		BaseURL:  server.URL,
		APIKey:   "test-key",
		Timeout:  5 * time.Second,
		PageSize: 2,
	}, guard)
}

func TestGetPlaylist(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/playlists", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "snippet", r.URL.Query().Get("part"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"items":[{"id":"PL123","snippet":{"title":"Cooking","description":"Weeknight recipes"}}]}`)
	}))
	defer server.Close()

	playlist, err := newTestClient(server).GetPlaylist(context.Background(), "PL123")
	require.NoError(t, err)
	assert.Equal(t, &models.Playlist{ID: "PL123", Title: "Cooking", Description: "Weeknight recipes"}, playlist)
}

func TestGetPlaylistNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"items":[]}`)
	}))
	defer server.Close()

	_, err := newTestClient(server).GetPlaylist(context.Background(), "PLmissing")
	assert.ErrorIs(t, err, ErrPlaylistNotFound)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestListPlaylistVideosPaginates(t *testing.T) {
	var itemCalls, videoCalls int

	mux := http.NewServeMux()
	mux.HandleFunc("/playlistItems", func(w http.ResponseWriter, r *http.Request) {
		itemCalls++
		assert.Equal(t, "PL123", r.URL.Query().Get("playlistId"))
		assert.Equal(t, "2", r.URL.Query().Get("maxResults"))

		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("pageToken") == "" {
			fmt.Fprint(w, `{"nextPageToken":"page2","items":[{"contentDetails":{"videoId":"v1"}},{"contentDetails":{"videoId":"v2"}}]}`)
			return
		}
		fmt.Fprint(w, `{"items":[{"contentDetails":{"videoId":"v3"}}]}`)
	})
	mux.HandleFunc("/videos", func(w http.ResponseWriter, r *http.Request) {
		videoCalls++
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("id") {
		case "v1,v2":
			fmt.Fprint(w, `{"items":[
				{"id":"v1","snippet":{"title":"First","publishedAt":"2024-05-01T10:00:00Z"},"contentDetails":{"duration":"PT4M13S"}},
				{"id":"v2","snippet":{"title":"Second","description":"follow-up","publishedAt":"2024-05-02T10:00:00Z"},"contentDetails":{"duration":"PT1H"}}]}`)
		case "v3":
			fmt.Fprint(w, `{"items":[{"id":"v3","snippet":{"title":"Third"},"contentDetails":{"duration":""}}]}`)
		default:
			t.Errorf("unexpected id batch %q", r.URL.Query().Get("id"))
		}
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	videos, err := newTestClient(server).ListPlaylistVideos(context.Background(), "PL123")
	require.NoError(t, err)
	require.Len(t, videos, 3)

	assert.Equal(t, "v1", videos[0].VideoID)
	assert.Equal(t, "https://www.youtube.com/watch?v=v1", videos[0].URL)
	assert.Equal(t, "First", videos[0].Title)
	require.NotNil(t, videos[0].DurationSeconds)
	assert.EqualValues(t, 253, *videos[0].DurationSeconds)
	require.NotNil(t, videos[0].PublishedAt)

	assert.Equal(t, "Third", videos[2].Title)
	assert.Nil(t, videos[2].DurationSeconds, "missing duration stays unset")
	assert.Nil(t, videos[2].PublishedAt)

	assert.Equal(t, 2, itemCalls)
	assert.Equal(t, 2, videoCalls)
}

func TestListPlaylistVideosUnknownPlaylist(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newTestClient(server).ListPlaylistVideos(context.Background(), "PLmissing")
	assert.ErrorIs(t, err, ErrPlaylistNotFound)
}

func TestGetVideo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/videos", r.URL.Path)
		assert.Equal(t, "v1", r.URL.Query().Get("id"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"items":[{"id":"v1","snippet":{"title":"First","publishedAt":"2024-05-01T10:00:00Z"},"contentDetails":{"duration":"PT4M13S"}}]}`)
	}))
	defer server.Close()

	video, err := newTestClient(server).GetVideo(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, "v1", video.VideoID)
	assert.Equal(t, "First", video.Title)
	require.NotNil(t, video.DurationSeconds)
	assert.EqualValues(t, 253, *video.DurationSeconds)
}

func TestGetVideoNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"items":[]}`)
	}))
	defer server.Close()

	_, err := newTestClient(server).GetVideo(context.Background(), "vmissing")
	assert.ErrorIs(t, err, ErrVideoNotFound)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestServerErrorBecomesUnavailable(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestClient(server).ListPlaylistVideos(context.Background(), "PL123")

	unavailable, ok := resilience.IsServiceUnavailable(err)
	require.True(t, ok)
	assert.Equal(t, config.DependencyVideoSource, unavailable.Service)
	assert.Equal(t, 2, calls, "bounded retry, one breaker observation")
}
