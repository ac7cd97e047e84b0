package api

import (
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/tagmark/tagmark/pkg/models"
)

// TagPlaylistRequest is the HTTP request body for POST /api/v1/playlists/tag.
// Strategy and verbosity are optional; the pipeline fills in defaults.
type TagPlaylistRequest struct {
	PlaylistInput string               `json:"playlist_input" binding:"required"`
	Filters       *models.VideoFilters `json:"filters,omitempty"`
	Strategy      *models.TagStrategy  `json:"strategy,omitempty"`
	Verbosity     string               `json:"verbosity,omitempty" binding:"omitempty,verbosity"`
}

// toModel transforms the DTO into the pipeline's request type.
func (r TagPlaylistRequest) toModel() models.TagPlaylistRequest {
	req := models.TagPlaylistRequest{
		PlaylistInput: r.PlaylistInput,
		Filters:       r.Filters,
		Verbosity:     models.Verbosity(r.Verbosity),
	}
	if r.Strategy != nil {
		req.Strategy = *r.Strategy
	}
	return req
}

var bindingRulesOnce sync.Once

// registerBindingRules installs the custom binding rules on gin's validator,
// once per process: the verbosity rule, and JSON names in FieldError.Field so
// validation messages speak the wire format.
func registerBindingRules() {
	bindingRulesOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("verbosity", func(fl validator.FieldLevel) bool {
			return models.Verbosity(fl.Field().String()).IsValid()
		})
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
}
