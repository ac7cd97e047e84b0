package selector

import (
	"fmt"
	"strings"

	"github.com/tagmark/tagmark/pkg/models"
)

// LowConfidence is the literal reply the model gives when none of the
// collections fits.
const LowConfidence = "LOW_CONFIDENCE"

// maxSampleVideos caps how many playlist video titles the prompt shows.
const maxSampleVideos = 10

const selectionRole = "You are organizing a video bookmark library. Pick the collection where the following content belongs."

const selectionRules = `## Rules

- Respond with exactly one collection title from the list, character for character.
- If none of the collections fits, respond with exactly LOW_CONFIDENCE.
- Do not invent new collections.
- Do not explain your choice.`

// buildPlaylistPrompt assembles the collection-selection prompt for a
// playlist: the collections on offer, the playlist itself, and a sample
// of its videos.
func buildPlaylistPrompt(containers []models.Container, playlist models.Playlist, samples []models.VideoRef) string {
	var sb strings.Builder

	sb.WriteString(selectionRole)
	sb.WriteString("\n\n")

	sb.WriteString(FormatContainerSection(containers))
	sb.WriteString("\n")

	sb.WriteString(FormatPlaylistSection(playlist))
	sb.WriteString("\n")

	sb.WriteString(FormatSampleSection(samples))
	sb.WriteString("\n")

	sb.WriteString(selectionRules)

	return sb.String()
}

// buildVideoPrompt assembles the selection prompt for a single video.
func buildVideoPrompt(containers []models.Container, video models.VideoRef) string {
	var sb strings.Builder

	sb.WriteString(selectionRole)
	sb.WriteString("\n\n")

	sb.WriteString(FormatContainerSection(containers))
	sb.WriteString("\n")

	sb.WriteString(FormatVideoSection(video))
	sb.WriteString("\n")

	sb.WriteString(selectionRules)

	return sb.String()
}

// FormatContainerSection lists the collection titles the model may answer
// with, one bullet per title.
func FormatContainerSection(containers []models.Container) string {
	var sb strings.Builder
	sb.WriteString("## Collections\n\n")
	for _, c := range containers {
		sb.WriteString("- ")
		sb.WriteString(c.Title)
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatPlaylistSection builds the playlist metadata block.
func FormatPlaylistSection(playlist models.Playlist) string {
	var sb strings.Builder
	sb.WriteString("## Playlist\n\n")
	sb.WriteString("**Title:** ")
	sb.WriteString(playlist.Title)
	sb.WriteString("\n")
	if playlist.Description != "" {
		sb.WriteString("**Description:** ")
		sb.WriteString(playlist.Description)
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatVideoSection builds the video metadata block.
func FormatVideoSection(video models.VideoRef) string {
	var sb strings.Builder
	sb.WriteString("## Video\n\n")
	sb.WriteString("**Title:** ")
	sb.WriteString(video.Title)
	sb.WriteString("\n")
	if video.Description != "" {
		sb.WriteString("**Description:** ")
		sb.WriteString(video.Description)
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatSampleSection numbers up to maxSampleVideos playlist video titles.
func FormatSampleSection(samples []models.VideoRef) string {
	if len(samples) > maxSampleVideos {
		samples = samples[:maxSampleVideos]
	}

	var sb strings.Builder
	sb.WriteString("## Sample Videos\n\n")
	for i, video := range samples {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, video.Title)
	}
	return sb.String()
}
