package tagger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagmark/tagmark/pkg/config"
	"github.com/tagmark/tagmark/pkg/models"
)

type fakeModel struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeModel) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeModel) Model() string { return "fake-model" }

func newTestGenerator(model *fakeModel, blockedTags string) *Generator {
	cfg := config.DefaultTaggingConfig()
	cfg.BlockedTags = blockedTags
	return NewGenerator(model, cfg)
}

func testVideo() models.VideoRef {
	return models.VideoRef{
		VideoID:     "dQw4w9WgXcQ",
		URL:         "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		Title:       "Spring Boot in 100 Seconds",
		Description: "A quick tour of Spring Boot.",
	}
}

func TestGenerateTags(t *testing.T) {
	model := &fakeModel{response: `[
		{"name": "spring-boot", "confidence": 0.95, "preexisting": true},
		{"name": "java", "confidence": 0.8, "preexisting": true},
		{"name": "tutorial", "confidence": 0.9, "preexisting": false}
	]`}
	g := newTestGenerator(model, "")

	vocabulary := []models.Tag{{Name: "spring-boot"}, {Name: "java"}}
	tags, err := g.GenerateTags(context.Background(), testVideo(), vocabulary, models.DefaultTagStrategy())

	require.NoError(t, err)
	assert.Equal(t, []string{"spring-boot", "tutorial", "java"}, models.TagNames(tags))

	require.Len(t, model.prompts, 1)
	prompt := model.prompts[0]
	assert.Contains(t, prompt, "Spring Boot in 100 Seconds")
	assert.Contains(t, prompt, "A quick tour of Spring Boot.")
	assert.Contains(t, prompt, "- spring-boot\n")
	assert.Contains(t, prompt, `"preexisting": true`)
	assert.Contains(t, prompt, "at most 5 tags")
	assert.Contains(t, prompt, "0.50 confident")
	assert.Contains(t, prompt, "lower-case and hyphenated, e.g. spring-boot")
	assert.NotContains(t, prompt, "Do not suggest")
}

func TestGenerateTagsAppliesBlocklist(t *testing.T) {
	model := &fakeModel{response: `[
		{"name": "tutorial", "confidence": 0.9, "preexisting": false},
		{"name": "SPAM", "confidence": 0.8, "preexisting": false},
		{"name": "programming", "confidence": 0.85, "preexisting": false},
		{"name": "Promotional", "confidence": 0.7, "preexisting": false}
	]`}
	g := newTestGenerator(model, "spam,promotional")

	tags, err := g.GenerateTags(context.Background(), testVideo(), nil, models.TagStrategy{MaxTags: 5})

	require.NoError(t, err)
	// The blocklist matches case-insensitively and never reaches the output.
	assert.Equal(t, []string{"tutorial", "programming"}, models.TagNames(tags))

	prompt := model.prompts[0]
	assert.Contains(t, prompt, "Do not suggest these tags: spam, promotional")
}

func TestGenerateTagsAppliesConfidenceFloor(t *testing.T) {
	model := &fakeModel{response: `[
		{"name": "go", "confidence": 0.9, "preexisting": false},
		{"name": "maybe-golang", "confidence": 0.3, "preexisting": false}
	]`}
	g := newTestGenerator(model, "")

	tags, err := g.GenerateTags(context.Background(), testVideo(), nil, models.TagStrategy{MaxTags: 5, ConfidenceFloor: 0.5})

	require.NoError(t, err)
	assert.Equal(t, []string{"go"}, models.TagNames(tags))
}

func TestGenerateTagsTruncatesAtLimit(t *testing.T) {
	model := &fakeModel{response: `[
		{"name": "one", "confidence": 0.6, "preexisting": false},
		{"name": "two", "confidence": 0.9, "preexisting": false},
		{"name": "three", "confidence": 0.8, "preexisting": false},
		{"name": "four", "confidence": 0.7, "preexisting": false}
	]`}
	g := newTestGenerator(model, "")

	tags, err := g.GenerateTags(context.Background(), testVideo(), nil, models.TagStrategy{MaxTags: 2})

	require.NoError(t, err)
	// The two highest-confidence survivors, highest first.
	assert.Equal(t, []string{"two", "three"}, models.TagNames(tags))
}

func TestGenerateTagsKeepsModelOrderOnTies(t *testing.T) {
	model := &fakeModel{response: `[
		{"name": "first", "confidence": 0.8, "preexisting": false},
		{"name": "second", "confidence": 0.8, "preexisting": false},
		{"name": "third", "confidence": 0.8, "preexisting": false}
	]`}
	g := newTestGenerator(model, "")

	tags, err := g.GenerateTags(context.Background(), testVideo(), nil, models.TagStrategy{MaxTags: 5})

	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, models.TagNames(tags))
}

func TestGenerateTagsSkipsBlankNames(t *testing.T) {
	model := &fakeModel{response: `[
		{"name": "  ", "confidence": 0.9, "preexisting": false},
		{"name": " docker ", "confidence": 0.8, "preexisting": false}
	]`}
	g := newTestGenerator(model, "")

	tags, err := g.GenerateTags(context.Background(), testVideo(), nil, models.TagStrategy{MaxTags: 5})

	require.NoError(t, err)
	assert.Equal(t, []string{"docker"}, models.TagNames(tags))
}

func TestGenerateTagsToleratesUnparseableResponse(t *testing.T) {
	model := &fakeModel{response: "I'm sorry, I cannot tag this video."}
	g := newTestGenerator(model, "")

	tags, err := g.GenerateTags(context.Background(), testVideo(), nil, models.DefaultTagStrategy())

	// A garbled answer costs the video its tags, not the run.
	require.NoError(t, err)
	assert.Empty(t, tags)
	assert.NotNil(t, tags)
}

func TestGenerateTagsPropagatesModelErrors(t *testing.T) {
	modelErr := errors.New("model unreachable")
	model := &fakeModel{err: modelErr}
	g := newTestGenerator(model, "")

	_, err := g.GenerateTags(context.Background(), testVideo(), nil, models.DefaultTagStrategy())

	assert.ErrorIs(t, err, modelErr)
}

func TestGenerateTagsFallsBackToConfiguredLimit(t *testing.T) {
	model := &fakeModel{response: `[
		{"name": "a", "confidence": 0.9, "preexisting": false},
		{"name": "b", "confidence": 0.9, "preexisting": false},
		{"name": "c", "confidence": 0.9, "preexisting": false},
		{"name": "d", "confidence": 0.9, "preexisting": false},
		{"name": "e", "confidence": 0.9, "preexisting": false},
		{"name": "f", "confidence": 0.9, "preexisting": false}
	]`}
	g := newTestGenerator(model, "")

	tags, err := g.GenerateTags(context.Background(), testVideo(), nil, models.TagStrategy{})

	require.NoError(t, err)
	assert.Len(t, tags, 5)
	assert.Contains(t, model.prompts[0], "at most 5 tags")
}

func TestParseBlocklist(t *testing.T) {
	blocked, names := parseBlocklist(" Spam , promotional ,, SPAM ")

	assert.Equal(t, []string{"spam", "promotional"}, names)
	assert.Contains(t, blocked, "spam")
	assert.Contains(t, blocked, "promotional")
	assert.Len(t, blocked, 2)
}

func TestParseBlocklistDisabledWhenEmpty(t *testing.T) {
	blocked, names := parseBlocklist("   ")
	assert.Nil(t, blocked)
	assert.Nil(t, names)
}
