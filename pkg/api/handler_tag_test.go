package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagmark/tagmark/pkg/models"
	"github.com/tagmark/tagmark/pkg/resilience"
	"github.com/tagmark/tagmark/pkg/videosource"
)

func postTag(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/playlists/tag", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestTagPlaylistHandler_BindingValidation(t *testing.T) {
	fx := newTestFixture()

	tests := []struct {
		name        string
		body        string
		expectField string
		expectMsg   string
	}{
		{
			name:        "missing playlist_input",
			body:        `{}`,
			expectField: "playlist_input",
			expectMsg:   "playlist_input is required",
		},
		{
			name:        "unknown verbosity",
			body:        `{"playlist_input":"PL123","verbosity":"loud"}`,
			expectField: "verbosity",
			expectMsg:   "verbosity must be one of: minimal, normal, detailed",
		},
		{
			name:      "malformed JSON",
			body:      `{"playlist_input":`,
			expectMsg: "malformed request body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postTag(t, fx.handler(), tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, codeValidation, resp.Code)
			assert.Equal(t, tt.expectField, resp.Field)
			assert.Contains(t, resp.Message, tt.expectMsg)
			assert.Equal(t, "/api/v1/playlists/tag", resp.Path)
			assert.NotEmpty(t, resp.RequestID)
			assert.NotEmpty(t, resp.Timestamp)
		})
	}
}

func TestTagPlaylistHandler_DomainValidation(t *testing.T) {
	fx := newTestFixture()

	rec := postTag(t, fx.handler(), `{"playlist_input":"PL123","filters":{"max_videos":0}}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, codeValidation, resp.Code)
	assert.Equal(t, "filters.max_videos", resp.Field)
}

func TestTagPlaylistHandler_PlaylistNotFound(t *testing.T) {
	fx := newTestFixture()
	fx.videos.playlistErr = videosource.ErrPlaylistNotFound

	rec := postTag(t, fx.handler(), `{"playlist_input":"PL404"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, codeNotFound, resp.Code)
}

func TestTagPlaylistHandler_SourceUnavailable(t *testing.T) {
	fx := newTestFixture()
	fx.videos.playlistErr = &resilience.ServiceUnavailableError{
		Service:    "videoSource",
		RetryAfter: 21 * time.Second,
		Err:        errors.New("http 500"),
	}

	rec := postTag(t, fx.handler(), `{"playlist_input":"PL123"}`)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "21", rec.Header().Get("Retry-After"))
	resp := decodeError(t, rec)
	assert.Equal(t, codeUnavailable, resp.Code)
	assert.Contains(t, resp.Message, "videoSource")
	assert.Empty(t, resp.Detail)
}

func TestTagPlaylistHandler_DebugDetail(t *testing.T) {
	fx := newTestFixture()
	fx.videos.playlistErr = videosource.ErrPlaylistNotFound

	req := httptest.NewRequest(http.MethodPost, "/api/v1/playlists/tag?debug=true",
		strings.NewReader(`{"playlist_input":"PL404"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	fx.handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeError(t, rec)
	assert.Contains(t, resp.Detail, "playlist not found")
}

func TestTagPlaylistHandler_StreamsRun(t *testing.T) {
	fx := newTestFixture()
	fx.videos.videos = testVideos(2)
	fx.tagger.tags = []models.ScoredTag{{Name: "golang", Confidence: 0.9}}

	rec := postTag(t, fx.handler(), `{"playlist_input":"PL123","verbosity":"minimal"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	body := rec.Body.String()
	assert.Contains(t, body, ":connected")
	assert.Contains(t, body, "event:started")
	assert.Equal(t, 2, strings.Count(body, "event:video_completed"))
	assert.Contains(t, body, "event:batch_completed")
	assert.Contains(t, body, "event:completed")
	assert.Contains(t, body, `"succeeded":2`)

	// started precedes completed on the wire.
	assert.Less(t, strings.Index(body, "event:started"), strings.Index(body, "event:completed"))
}

func TestTagPlaylistHandler_FatalMidRunKeepsStatus200(t *testing.T) {
	fx := newTestFixture()
	fx.videos.videos = testVideos(2)
	fx.tagger.err = &resilience.ServiceUnavailableError{
		Service:    "llm",
		RetryAfter: 9 * time.Second,
		Err:        errors.New("model down"),
	}

	rec := postTag(t, fx.handler(), `{"playlist_input":"PL123","verbosity":"minimal"}`)

	// The stream had already begun; failures ride the stream, not the status.
	assert.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "event:error")
	assert.Contains(t, body, `"fatal":true`)
	assert.Contains(t, body, `"service":"llm"`)
	assert.Contains(t, body, "event:completed")
}

func TestTagPlaylistHandler_ClientDisconnectCancelsRun(t *testing.T) {
	fx := newTestFixture()
	fx.videos.videos = testVideos(3)
	fx.tagger.tags = []models.ScoredTag{{Name: "golang", Confidence: 0.9}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// The first stored bookmark stands in for the client dropping mid-run.
	fx.store.onCreate = cancel

	req := httptest.NewRequest(http.MethodPost, "/api/v1/playlists/tag",
		strings.NewReader(`{"playlist_input":"PL123","verbosity":"minimal"}`)).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	fx.handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	assert.Contains(t, body, "event:completed")
	assert.Contains(t, body, "cancelled")
	assert.NotContains(t, body, "event:error")
	assert.Contains(t, body, `"succeeded":1`)
}
