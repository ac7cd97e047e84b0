package api

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/tagmark/tagmark/pkg/models"
	"github.com/tagmark/tagmark/pkg/resilience"
)

// --- Response types ---

// ContainersResponse is returned by GET /api/v1/containers.
type ContainersResponse struct {
	Containers []models.Container `json:"containers"`
}

// TagsResponse is returned by GET /api/v1/tags.
type TagsResponse struct {
	Tags []models.Tag `json:"tags"`
}

// BreakersResponse is returned by GET /api/v1/system/breakers.
type BreakersResponse struct {
	Breakers []resilience.Snapshot `json:"breakers"`
}

// --- Handlers ---

// containersHandler handles GET /api/v1/containers. Reads go through the
// container cache, so the view can lag the store by up to its TTL.
func (s *Server) containersHandler(c *gin.Context) {
	containers, err := s.store.ListContainers(c.Request.Context(), models.DefaultPrincipal)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if containers == nil {
		containers = []models.Container{}
	}
	c.JSON(http.StatusOK, ContainersResponse{Containers: containers})
}

// tagsHandler handles GET /api/v1/tags.
func (s *Server) tagsHandler(c *gin.Context) {
	tags, err := s.store.ListTags(c.Request.Context(), models.DefaultPrincipal)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if tags == nil {
		tags = []models.Tag{}
	}
	c.JSON(http.StatusOK, TagsResponse{Tags: tags})
}

// breakersHandler handles GET /api/v1/system/breakers.
func (s *Server) breakersHandler(c *gin.Context) {
	response := BreakersResponse{
		Breakers: make([]resilience.Snapshot, 0, len(s.guards)),
	}
	for _, guard := range s.guards {
		response.Breakers = append(response.Breakers, guard.Breaker().Snapshot())
	}

	// Sort for deterministic output.
	sort.Slice(response.Breakers, func(i, j int) bool {
		return response.Breakers[i].Service < response.Breakers[j].Service
	})

	c.JSON(http.StatusOK, response)
}
