package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagmark/tagmark/pkg/models"
	"github.com/tagmark/tagmark/pkg/resilience"
)

func abortOn(t *testing.T, target string, err error) (*httptest.ResponseRecorder, ErrorResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, target, nil)

	abortWithError(c, err)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestAbortWithError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		expectCode  int
		expectBody  string
		expectField string
	}{
		{
			name:        "validation error maps to 400",
			err:         models.NewValidationError("verbosity", `unknown verbosity "loud"`),
			expectCode:  http.StatusBadRequest,
			expectBody:  codeValidation,
			expectField: "verbosity",
		},
		{
			name:       "not found maps to 404",
			err:        fmt.Errorf("wrapped: %w", models.ErrNotFound),
			expectCode: http.StatusNotFound,
			expectBody: codeNotFound,
		},
		{
			name: "unavailable maps to 503",
			err: &resilience.ServiceUnavailableError{
				Service:    "llm",
				RetryAfter: 12 * time.Second,
				Err:        errors.New("gateway timeout"),
			},
			expectCode: http.StatusServiceUnavailable,
			expectBody: codeUnavailable,
		},
		{
			name:       "unknown error maps to 500",
			err:        errors.New("something unexpected happened"),
			expectCode: http.StatusInternalServerError,
			expectBody: codeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := abortOn(t, "/api/v1/tags", tt.err)

			assert.Equal(t, tt.expectCode, rec.Code)
			assert.Equal(t, tt.expectBody, resp.Code)
			assert.Equal(t, tt.expectCode, resp.Status)
			assert.Equal(t, tt.expectField, resp.Field)
			assert.Equal(t, "/api/v1/tags", resp.Path)
			assert.NotEmpty(t, resp.Timestamp)
			// No ?debug=true, so the raw error never leaks.
			assert.Empty(t, resp.Detail)
		})
	}
}

func TestAbortWithErrorSetsRetryAfter(t *testing.T) {
	rec, _ := abortOn(t, "/api/v1/tags", &resilience.ServiceUnavailableError{
		Service:    "bookmarkStore",
		RetryAfter: 42 * time.Second,
		Err:        errors.New("http 503"),
	})

	assert.Equal(t, "42", rec.Header().Get("Retry-After"))
}

func TestAbortWithErrorDebugDetail(t *testing.T) {
	_, resp := abortOn(t, "/api/v1/tags?debug=true", fmt.Errorf("dial tcp: connection refused"))

	assert.Equal(t, codeInternal, resp.Code)
	assert.Contains(t, resp.Detail, "connection refused")
}

func TestBindingMessagePhrasing(t *testing.T) {
	// Exercised end to end in handler_tag_test; here only the fallback arm.
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/playlists/tag", nil)

	abortWithBindingError(c, errors.New("unexpected EOF"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "malformed request body", resp.Message)
}
