package tagger

import (
	"fmt"
	"strings"

	"github.com/tagmark/tagmark/pkg/models"
)

const promptIntro = "You are a bookmarking assistant. Suggest tags that classify a video for later retrieval."

// buildPrompt assembles the full tag-generation prompt for one video.
func buildPrompt(video models.VideoRef, vocabulary []models.Tag, strategy models.TagStrategy, blocked []string, maxTags int) string {
	var sb strings.Builder

	sb.WriteString(promptIntro)
	sb.WriteString("\n\n")

	sb.WriteString(FormatVideoSection(video))
	sb.WriteString("\n")

	sb.WriteString(FormatVocabularySection(vocabulary))
	sb.WriteString("\n")

	sb.WriteString(FormatRulesSection(strategy, blocked, maxTags))

	return sb.String()
}

// FormatVideoSection builds the video details section.
// The description may be empty; it is omitted rather than shown blank.
func FormatVideoSection(video models.VideoRef) string {
	var sb strings.Builder
	sb.WriteString("## Video\n\n")
	sb.WriteString("**Title:** ")
	sb.WriteString(video.Title)
	sb.WriteString("\n")

	if video.Description != "" {
		sb.WriteString("\n**Description:**\n")
		sb.WriteString(video.Description)
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatVocabularySection lists the store's current tags. The model is
// asked to prefer them and to mark each reuse with preexisting set true.
func FormatVocabularySection(vocabulary []models.Tag) string {
	if len(vocabulary) == 0 {
		return "## Existing Tags\nThe store has no tags yet; every suggestion will be new.\n"
	}

	var sb strings.Builder
	sb.WriteString("## Existing Tags\n\n")
	sb.WriteString("Prefer these existing tags where they fit, and set \"preexisting\": true for each one you reuse:\n\n")
	for _, tag := range vocabulary {
		sb.WriteString("- ")
		sb.WriteString(tag.Name)
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatRulesSection builds the constraints and the response contract.
func FormatRulesSection(strategy models.TagStrategy, blocked []string, maxTags int) string {
	var sb strings.Builder
	sb.WriteString("## Rules\n\n")
	fmt.Fprintf(&sb, "- Suggest at most %d tags.\n", maxTags)
	fmt.Fprintf(&sb, "- Only include tags you are at least %.2f confident in.\n", strategy.ConfidenceFloor)
	sb.WriteString("- Tag names are lower-case and hyphenated, e.g. spring-boot.\n")

	if len(blocked) > 0 {
		sb.WriteString("- Do not suggest these tags: ")
		sb.WriteString(strings.Join(blocked, ", "))
		sb.WriteString("\n")
	}

	if strategy.CustomInstructions != "" {
		sb.WriteString("- ")
		sb.WriteString(strategy.CustomInstructions)
		sb.WriteString("\n")
	}

	sb.WriteString("\nRespond with a JSON array, one object per tag:\n")
	sb.WriteString(`[{"name": "spring-boot", "confidence": 0.9, "preexisting": true}]`)
	sb.WriteString("\nReturn only the JSON array, optionally inside a fenced code block. Do not add commentary.\n")
	return sb.String()
}
