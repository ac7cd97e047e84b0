package tagger

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tagmark/tagmark/pkg/models"
)

// parseScoredTags decodes the model's tag proposals. The payload is the
// body of the first fenced code block when one is present, otherwise the
// whole trimmed response.
func parseScoredTags(response string) ([]models.ScoredTag, error) {
	payload := extractPayload(response)
	if payload == "" {
		return nil, fmt.Errorf("empty model response")
	}

	var tags []models.ScoredTag
	if err := json.Unmarshal([]byte(payload), &tags); err != nil {
		return nil, fmt.Errorf("decode tag array: %w", err)
	}
	return tags, nil
}

// extractPayload strips a markdown code fence around the model's answer.
// Models wrap JSON in ```json ... ``` (or a bare ```) often enough that
// parsing the raw text directly would reject otherwise valid answers.
func extractPayload(text string) string {
	trimmed := strings.TrimSpace(text)

	start := strings.Index(trimmed, "```")
	if start == -1 {
		return trimmed
	}
	body := trimmed[start+3:]

	end := strings.Index(body, "```")
	if end == -1 {
		// Unterminated fence; treat the rest as the payload.
		end = len(body)
	}
	body = body[:end]

	// Drop a language tag on the opening fence, e.g. ```json.
	if nl := strings.IndexByte(body, '\n'); nl != -1 {
		firstLine := strings.TrimSpace(body[:nl])
		if firstLine != "" && !strings.ContainsAny(firstLine, "[{") {
			body = body[nl+1:]
		}
	}

	return strings.TrimSpace(body)
}
