package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/tagmark/tagmark/pkg/models"
	"github.com/tagmark/tagmark/pkg/resilience"
)

// Error codes carried in structured error bodies.
const (
	codeValidation  = "validation_failed"
	codeNotFound    = "not_found"
	codeUnavailable = "service_unavailable"
	codeInternal    = "internal_error"
)

// ErrorResponse is the structured body of every non-2xx response.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Status    int    `json:"status"`
	Timestamp string `json:"timestamp"`
	RequestID string `json:"request_id,omitempty"`
	Path      string `json:"path"`
	// Field names the offending request field on validation failures.
	Field string `json:"field,omitempty"`
	// Detail carries the underlying error, only when ?debug=true.
	Detail string `json:"detail,omitempty"`
}

// abortWithError maps domain errors to HTTP error responses in one place.
func abortWithError(c *gin.Context, err error) {
	var validErr *models.ValidationError
	if errors.As(err, &validErr) {
		writeError(c, http.StatusBadRequest, codeValidation, validErr.Message, validErr.Field, err)
		return
	}
	if errors.Is(err, models.ErrNotFound) {
		writeError(c, http.StatusNotFound, codeNotFound, "resource not found", "", err)
		return
	}
	if unavailable, ok := resilience.IsServiceUnavailable(err); ok {
		c.Header("Retry-After", strconv.Itoa(unavailable.RetryAfterSeconds()))
		writeError(c, http.StatusServiceUnavailable, codeUnavailable,
			fmt.Sprintf("%s is unavailable", unavailable.Service), "", err)
		return
	}

	// Unexpected error
	slog.Error("Unexpected handler error", "error", err, "path", c.Request.URL.Path)
	writeError(c, http.StatusInternalServerError, codeInternal, "internal server error", "", err)
}

// abortWithBindingError maps a request binding failure to a field-level 400.
func abortWithBindingError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		writeError(c, http.StatusBadRequest, codeValidation, bindingMessage(fe), fe.Field(), err)
		return
	}
	writeError(c, http.StatusBadRequest, codeValidation, "malformed request body", "", err)
}

// bindingMessage phrases one validator failure for the response body. The
// field name is already the JSON name via registerBindingRules.
func bindingMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "verbosity":
		return "verbosity must be one of: minimal, normal, detailed"
	default:
		return fe.Field() + " is invalid"
	}
}

// writeError emits the structured error body and aborts the request.
func writeError(c *gin.Context, status int, code, message, field string, err error) {
	resp := &ErrorResponse{
		Code:      code,
		Message:   message,
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RequestID: requestIDFrom(c),
		Path:      c.Request.URL.Path,
		Field:     field,
	}
	if err != nil && c.Query("debug") == "true" {
		resp.Detail = err.Error()
	}
	c.AbortWithStatusJSON(status, resp)
}
