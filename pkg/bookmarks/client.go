// Package bookmarks talks to the bookmark store and layers the TTL caches
// the pipeline reads through.
package bookmarks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tagmark/tagmark/pkg/config"
	"github.com/tagmark/tagmark/pkg/models"
	"github.com/tagmark/tagmark/pkg/resilience"
)

// listPageSize is the bookmark page size the store serves per request.
const listPageSize = 50

// Client talks to the bookmark store REST API. Every operation is one
// logical call through the bookmarkStore resilience envelope.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	guard      *resilience.Guard
	log        *slog.Logger
}

// NewClient creates a bookmark store client running under guard.
func NewClient(cfg config.BookmarkStoreConfig, guard *resilience.Guard) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		guard:      guard,
		log:        slog.With("service", config.DependencyBookmarkStore),
	}
}

type tagsResponse struct {
	Items []struct {
		ID string `json:"_id"`
	} `json:"items"`
}

type collectionItem struct {
	ID    int64  `json:"_id"`
	Title string `json:"title"`
}

type collectionsResponse struct {
	Items []collectionItem `json:"items"`
}

type collectionResponse struct {
	Item collectionItem `json:"item"`
}

type raindropItem struct {
	ID         int64    `json:"_id"`
	Link       string   `json:"link"`
	Title      string   `json:"title"`
	Tags       []string `json:"tags"`
	Collection struct {
		ID int64 `json:"$id"`
	} `json:"collection"`
}

type raindropsResponse struct {
	Items []raindropItem `json:"items"`
	Count int            `json:"count"`
}

type raindropRequest struct {
	Link       string   `json:"link,omitempty"`
	Title      string   `json:"title,omitempty"`
	Tags       []string `json:"tags"`
	Collection struct {
		ID int64 `json:"$id"`
	} `json:"collection"`
}

// ListTags returns the full tag vocabulary of the authenticated principal.
func (c *Client) ListTags(ctx context.Context) ([]models.Tag, error) {
	var tags []models.Tag
	err := c.guard.Do(ctx, func(ctx context.Context) error {
		var resp tagsResponse
		if err := c.doJSON(ctx, http.MethodGet, "/tags", nil, nil, &resp); err != nil {
			return err
		}
		tags = make([]models.Tag, 0, len(resp.Items))
		for _, item := range resp.Items {
			tags = append(tags, models.Tag{Name: item.ID})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tags, nil
}

// ListContainers returns all containers of the authenticated principal.
func (c *Client) ListContainers(ctx context.Context) ([]models.Container, error) {
	var containers []models.Container
	err := c.guard.Do(ctx, func(ctx context.Context) error {
		var resp collectionsResponse
		if err := c.doJSON(ctx, http.MethodGet, "/collections", nil, nil, &resp); err != nil {
			return err
		}
		containers = make([]models.Container, 0, len(resp.Items))
		for _, item := range resp.Items {
			containers = append(containers, models.Container{ID: item.ID, Title: item.Title})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return containers, nil
}

// CreateContainer creates a container and returns its id.
func (c *Client) CreateContainer(ctx context.Context, title string) (int64, error) {
	var id int64
	err := c.guard.Do(ctx, func(ctx context.Context) error {
		body := map[string]string{"title": title}
		var resp collectionResponse
		if err := c.doJSON(ctx, http.MethodPost, "/collection", nil, body, &resp); err != nil {
			return err
		}
		id = resp.Item.ID
		return nil
	})
	if err != nil {
		return 0, err
	}

	c.log.Info("created container", "title", title, "container_id", id)
	return id, nil
}

// BookmarkExists reports whether the container already holds a bookmark for
// url. Failures propagate unchanged: during degraded operation the check
// fails closed rather than reporting a false negative.
func (c *Client) BookmarkExists(ctx context.Context, containerID int64, bookmarkURL string) (bool, error) {
	exists := false
	err := c.guard.Do(ctx, func(ctx context.Context) error {
		query := url.Values{}
		query.Set("search", fmt.Sprintf("link:%q", bookmarkURL))
		query.Set("perpage", "1")

		var resp raindropsResponse
		path := "/raindrops/" + strconv.FormatInt(containerID, 10)
		if err := c.doJSON(ctx, http.MethodGet, path, query, nil, &resp); err != nil {
			return err
		}
		exists = len(resp.Items) > 0 || resp.Count > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return exists, nil
}

// CreateBookmark stores a new bookmark in the container.
func (c *Client) CreateBookmark(ctx context.Context, containerID int64, bookmarkURL, title string, tags []string) error {
	return c.guard.Do(ctx, func(ctx context.Context) error {
		body := raindropRequest{Link: bookmarkURL, Title: title, Tags: tags}
		body.Collection.ID = containerID
		if body.Tags == nil {
			body.Tags = []string{}
		}
		return c.doJSON(ctx, http.MethodPost, "/raindrop", nil, body, nil)
	})
}

// ListBookmarks returns the complete bookmark list of a container, walking
// the store's pages internally. The special container id -1 addresses the
// unsorted pool.
func (c *Client) ListBookmarks(ctx context.Context, containerID int64) ([]models.Bookmark, error) {
	var bookmarks []models.Bookmark
	err := c.guard.Do(ctx, func(ctx context.Context) error {
		bookmarks = bookmarks[:0]
		path := "/raindrops/" + strconv.FormatInt(containerID, 10)
		for page := 0; ; page++ {
			query := url.Values{}
			query.Set("perpage", strconv.Itoa(listPageSize))
			query.Set("page", strconv.Itoa(page))

			var resp raindropsResponse
			if err := c.doJSON(ctx, http.MethodGet, path, query, nil, &resp); err != nil {
				return err
			}
			for _, item := range resp.Items {
				bookmarks = append(bookmarks, models.Bookmark{
					ID:          item.ID,
					URL:         item.Link,
					Title:       item.Title,
					ContainerID: item.Collection.ID,
					Tags:        item.Tags,
				})
			}
			if len(resp.Items) < listPageSize {
				return nil
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return bookmarks, nil
}

// UpdateBookmark moves a bookmark to a container and replaces its tags.
func (c *Client) UpdateBookmark(ctx context.Context, bookmarkID, containerID int64, tags []string) error {
	return c.guard.Do(ctx, func(ctx context.Context) error {
		body := raindropRequest{Tags: tags}
		body.Collection.ID = containerID
		if body.Tags == nil {
			body.Tags = []string{}
		}
		path := "/raindrop/" + strconv.FormatInt(bookmarkID, 10)
		return c.doJSON(ctx, http.MethodPut, path, nil, body, nil)
	})
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body, out any) error {
	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call bookmark store: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return models.ErrNotFound
	case resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("bookmark store rejected the request: %w", models.ErrInvalidInput)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &resilience.HTTPStatusError{
			Service:    config.DependencyBookmarkStore,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode bookmark store response: %w", err)
	}
	return nil
}
