package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// requestIDHeader carries the per-request ID in both directions: an inbound
// value from a proxy is honored, otherwise one is generated.
const requestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

// requestID assigns each request a unique ID and echoes it in the response.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// requestIDFrom returns the request's ID, empty when the middleware did not run.
func requestIDFrom(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// requestLogger emits one structured record per completed request.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		slog.Info("HTTP request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", requestIDFrom(c))
	}
}

// recovery converts handler panics into structured 500 responses.
func recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		slog.Error("Handler panicked",
			"panic", recovered,
			"path", c.Request.URL.Path,
			"request_id", requestIDFrom(c))
		writeError(c, http.StatusInternalServerError, codeInternal, "internal server error", "", nil)
	})
}

// securityHeaders sets standard security response headers.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
		c.Next()
	}
}
