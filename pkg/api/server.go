// Package api exposes the HTTP surface: the SSE tagging endpoint, read-only
// views of the bookmark store, breaker diagnostics, health, and metrics.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tagmark/tagmark/pkg/bookmarks"
	"github.com/tagmark/tagmark/pkg/config"
	"github.com/tagmark/tagmark/pkg/pipeline"
	"github.com/tagmark/tagmark/pkg/resilience"
)

// Server wires the HTTP surface to the pipeline and its collaborators.
type Server struct {
	orchestrator *pipeline.Orchestrator
	store        *bookmarks.Service
	registry     *pipeline.Registry
	guards       []*resilience.Guard

	httpServer *http.Server
}

// NewServer builds the API server. The guards are exposed read-only through
// the breaker diagnostics endpoint.
func NewServer(orchestrator *pipeline.Orchestrator, store *bookmarks.Service, registry *pipeline.Registry, guards []*resilience.Guard, cfg *config.ServerConfig) *Server {
	registerBindingRules()

	s := &Server{
		orchestrator: orchestrator,
		store:        store,
		registry:     registry,
		guards:       guards,
	}
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: s.router(),
	}
	return s
}

// router assembles the gin engine: middleware, then routes.
func (s *Server) router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(requestID(), requestLogger(), recovery(), securityHeaders())

	router.GET("/health", s.healthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.POST("/playlists/tag", s.tagPlaylistHandler)
	v1.GET("/containers", s.containersHandler)
	v1.GET("/tags", s.tagsHandler)
	v1.GET("/system/breakers", s.breakersHandler)

	return router
}

// Handler exposes the assembled routes, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves HTTP and blocks until the listener closes. A closed listener
// after Shutdown is not an error.
func (s *Server) Start() error {
	slog.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx expires. Active SSE streams end when their runs are cancelled.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
