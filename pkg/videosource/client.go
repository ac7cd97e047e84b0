// Package videosource is the YouTube Data API client used to enumerate
// playlist videos and fetch video metadata.
package videosource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tagmark/tagmark/pkg/config"
	"github.com/tagmark/tagmark/pkg/models"
	"github.com/tagmark/tagmark/pkg/resilience"
)

var (
	// ErrPlaylistNotFound marks a playlist id the video source does not know.
	ErrPlaylistNotFound = fmt.Errorf("playlist not found: %w", models.ErrNotFound)
	// ErrVideoNotFound marks a video id the video source does not know.
	ErrVideoNotFound = fmt.Errorf("video not found: %w", models.ErrNotFound)
)

// Client talks to the YouTube Data API v3. Every operation is one logical
// call through the videoSource resilience envelope.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	pageSize   int
	guard      *resilience.Guard
	log        *slog.Logger
}

// NewClient creates a video source client running under guard.
func NewClient(cfg config.VideoSourceConfig, guard *resilience.Guard) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		pageSize:   cfg.PageSize,
		guard:      guard,
		log:        slog.With("service", config.DependencyVideoSource),
	}
}

type playlistListResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title       string `json:"title"`
			Description string `json:"description"`
		} `json:"snippet"`
	} `json:"items"`
}

type playlistItemsResponse struct {
	NextPageToken string `json:"nextPageToken"`
	Items         []struct {
		ContentDetails struct {
			VideoID string `json:"videoId"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type videoItem struct {
	ID      string `json:"id"`
	Snippet struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		PublishedAt string `json:"publishedAt"`
	} `json:"snippet"`
	ContentDetails struct {
		Duration string `json:"duration"`
	} `json:"contentDetails"`
}

type videoListResponse struct {
	Items []videoItem `json:"items"`
}

// GetPlaylist fetches playlist metadata.
func (c *Client) GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	var playlist *models.Playlist
	err := c.guard.Do(ctx, func(ctx context.Context) error {
		query := url.Values{}
		query.Set("part", "snippet")
		query.Set("id", playlistID)

		var resp playlistListResponse
		if err := c.getJSON(ctx, "/playlists", query, &resp); err != nil {
			return err
		}
		if len(resp.Items) == 0 {
			return fmt.Errorf("playlist %q: %w", playlistID, ErrPlaylistNotFound)
		}

		item := resp.Items[0]
		playlist = &models.Playlist{
			ID:          item.ID,
			Title:       item.Snippet.Title,
			Description: item.Snippet.Description,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return playlist, nil
}

// ListPlaylistVideos returns every video of the playlist in playlist order.
// Pages are walked until exhaustion, then snippet and duration details are
// resolved in bulk. Filtering is the caller's job.
func (c *Client) ListPlaylistVideos(ctx context.Context, playlistID string) ([]models.VideoRef, error) {
	var videos []models.VideoRef
	err := c.guard.Do(ctx, func(ctx context.Context) error {
		ids, err := c.collectPlaylistItemIDs(ctx, playlistID)
		if err != nil {
			return err
		}
		refs, err := c.fetchVideoDetails(ctx, ids)
		if err != nil {
			return err
		}
		videos = refs
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.log.Debug("listed playlist videos", "playlist_id", playlistID, "count", len(videos))
	return videos, nil
}

// GetVideo fetches one video by id.
func (c *Client) GetVideo(ctx context.Context, videoID string) (*models.VideoRef, error) {
	var video *models.VideoRef
	err := c.guard.Do(ctx, func(ctx context.Context) error {
		query := url.Values{}
		query.Set("part", "snippet,contentDetails")
		query.Set("id", videoID)

		var resp videoListResponse
		if err := c.getJSON(ctx, "/videos", query, &resp); err != nil {
			return err
		}
		if len(resp.Items) == 0 {
			return fmt.Errorf("video %q: %w", videoID, ErrVideoNotFound)
		}

		ref := newVideoRef(resp.Items[0])
		video = &ref
		return nil
	})
	if err != nil {
		return nil, err
	}
	return video, nil
}

func (c *Client) collectPlaylistItemIDs(ctx context.Context, playlistID string) ([]string, error) {
	var ids []string
	pageToken := ""
	for {
		query := url.Values{}
		query.Set("part", "contentDetails")
		query.Set("playlistId", playlistID)
		query.Set("maxResults", strconv.Itoa(c.pageSize))
		if pageToken != "" {
			query.Set("pageToken", pageToken)
		}

		var resp playlistItemsResponse
		if err := c.getJSON(ctx, "/playlistItems", query, &resp); err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return nil, fmt.Errorf("playlist %q: %w", playlistID, ErrPlaylistNotFound)
			}
			return nil, err
		}

		for _, item := range resp.Items {
			if id := item.ContentDetails.VideoID; id != "" {
				ids = append(ids, id)
			}
		}
		if resp.NextPageToken == "" {
			return ids, nil
		}
		pageToken = resp.NextPageToken
	}
}

// fetchVideoDetails resolves snippet and duration for ids in request-order,
// chunked to the API's id-list limit. Videos the source no longer serves
// (deleted, private) are dropped from the result.
func (c *Client) fetchVideoDetails(ctx context.Context, ids []string) ([]models.VideoRef, error) {
	refs := make([]models.VideoRef, 0, len(ids))
	for start := 0; start < len(ids); start += c.pageSize {
		end := start + c.pageSize
		if end > len(ids) {
			end = len(ids)
		}

		query := url.Values{}
		query.Set("part", "snippet,contentDetails")
		query.Set("id", strings.Join(ids[start:end], ","))
		query.Set("maxResults", strconv.Itoa(c.pageSize))

		var resp videoListResponse
		if err := c.getJSON(ctx, "/videos", query, &resp); err != nil {
			return nil, err
		}
		for _, item := range resp.Items {
			refs = append(refs, newVideoRef(item))
		}
	}
	return refs, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	query.Set("key", c.apiKey)
	requestURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call video source: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return models.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return &resilience.HTTPStatusError{
			Service:    config.DependencyVideoSource,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode video source response: %w", err)
	}
	return nil
}

func newVideoRef(item videoItem) models.VideoRef {
	ref := models.VideoRef{
		VideoID:     item.ID,
		URL:         WatchURL(item.ID),
		Title:       item.Snippet.Title,
		Description: item.Snippet.Description,
	}
	if ts, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt); err == nil {
		ref.PublishedAt = &ts
	}
	if seconds, ok := parseISODuration(item.ContentDetails.Duration); ok {
		ref.DurationSeconds = &seconds
	}
	return ref
}
