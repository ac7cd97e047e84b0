// Package tagger turns one video's metadata into a filtered list of tag
// names using the language model.
package tagger

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/tagmark/tagmark/pkg/config"
	"github.com/tagmark/tagmark/pkg/llm"
	"github.com/tagmark/tagmark/pkg/models"
)

// Generator asks the model for scored tag proposals and reduces them to
// the final names: blocklist, confidence floor, confidence-descending
// order, then the tag limit. Stateless across calls and safe for
// concurrent use.
type Generator struct {
	llm      llm.Client
	defaults config.TaggingConfig
	// blocked is the normalized blocklist; blockedNames keeps the
	// original order for the prompt. Both empty when filtering is off.
	blocked      map[string]struct{}
	blockedNames []string
	log          *slog.Logger
}

// NewGenerator creates a Generator using the configured tagging defaults.
func NewGenerator(client llm.Client, cfg *config.TaggingConfig) *Generator {
	blocked, names := parseBlocklist(cfg.BlockedTags)
	return &Generator{
		llm:          client,
		defaults:     *cfg,
		blocked:      blocked,
		blockedNames: names,
		log:          slog.With("component", "tagger"),
	}
}

// GenerateTags produces the final scored tags for one video, highest
// confidence first.
//
// A response the model formats badly is not an error: the video proceeds
// with zero tags and the bad payload is logged. Errors from the model
// call itself (including unavailability) are returned to the caller.
func (g *Generator) GenerateTags(ctx context.Context, video models.VideoRef, vocabulary []models.Tag, strategy models.TagStrategy) ([]models.ScoredTag, error) {
	maxTags := strategy.MaxTags
	if maxTags <= 0 {
		maxTags = g.defaults.MaxTags
	}

	prompt := buildPrompt(video, vocabulary, strategy, g.blockedNames, maxTags)

	response, err := g.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	scored, err := parseScoredTags(response)
	if err != nil {
		g.log.Warn("discarding unparseable model response",
			"video_id", video.VideoID,
			"error", err)
		return []models.ScoredTag{}, nil
	}

	return g.filter(scored, strategy.ConfidenceFloor, maxTags), nil
}

// filter applies the blocklist and confidence floor, orders by confidence
// descending (ties keep the model's order), and cuts to maxTags.
func (g *Generator) filter(scored []models.ScoredTag, floor float64, maxTags int) []models.ScoredTag {
	kept := make([]models.ScoredTag, 0, len(scored))
	for _, tag := range scored {
		name := strings.TrimSpace(tag.Name)
		if name == "" {
			continue
		}
		if _, hit := g.blocked[strings.ToLower(name)]; hit {
			g.log.Debug("dropped blocklisted tag", "tag", name)
			continue
		}
		if tag.Confidence < floor {
			continue
		}
		tag.Name = name
		kept = append(kept, tag)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Confidence > kept[j].Confidence
	})
	if len(kept) > maxTags {
		kept = kept[:maxTags]
	}
	return kept
}

// parseBlocklist normalizes the comma-separated blocklist into a
// lower-cased set plus the cleaned names in configuration order.
func parseBlocklist(raw string) (map[string]struct{}, []string) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	blocked := make(map[string]struct{})
	var names []string
	for _, part := range strings.Split(raw, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		if _, seen := blocked[name]; seen {
			continue
		}
		blocked[name] = struct{}{}
		names = append(names, name)
	}
	return blocked, names
}
