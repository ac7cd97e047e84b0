package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tagmark/tagmark/pkg/version"
)

// healthHandler handles GET /health.
// Liveness only: external dependencies (video source, bookmark store, LLM)
// are deliberately excluded so an orchestrator never restarts the process
// because a remote service is down. Their state is visible on
// /api/v1/system/breakers instead.
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, &HealthResponse{
		Status:     "healthy",
		Version:    version.GitCommit,
		ActiveRuns: s.registry.Len(),
	})
}
