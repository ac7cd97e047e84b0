package videosource

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/tagmark/tagmark/pkg/models"
)

// playlistIDPattern matches bare playlist identifiers.
var playlistIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ParsePlaylistInput resolves a raw playlist identifier or any YouTube
// playlist URL form to the playlist ID.
func ParsePlaylistInput(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", fmt.Errorf("playlist input is empty: %w", models.ErrInvalidInput)
	}

	// Anything without URL punctuation is treated as a bare ID.
	if !strings.ContainsAny(trimmed, "/?") {
		if !playlistIDPattern.MatchString(trimmed) {
			return "", fmt.Errorf("playlist id %q contains invalid characters: %w", trimmed, models.ErrInvalidInput)
		}
		return trimmed, nil
	}

	candidate := trimmed
	if !strings.Contains(candidate, "://") {
		candidate = "https://" + candidate
	}
	parsed, err := url.Parse(candidate)
	if err != nil {
		return "", fmt.Errorf("playlist url %q is malformed: %w", trimmed, models.ErrInvalidInput)
	}
	if !isYouTubeHost(parsed.Host) {
		return "", fmt.Errorf("url host %q is not a recognized video source: %w", parsed.Host, models.ErrInvalidInput)
	}
	if id := parsed.Query().Get("list"); id != "" {
		return id, nil
	}
	return "", fmt.Errorf("url %q carries no playlist id: %w", trimmed, models.ErrInvalidInput)
}

// IsVideoURL reports whether raw points at a YouTube host.
func IsVideoURL(raw string) bool {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Host == "" {
		return false
	}
	return isYouTubeHost(parsed.Host)
}

// ExtractVideoID pulls the video identifier out of the common YouTube URL
// forms: watch, short link, shorts, embed, and live.
func ExtractVideoID(raw string) (string, bool) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !isYouTubeHost(parsed.Host) {
		return "", false
	}

	if normalizeHost(parsed.Host) == "youtu.be" {
		segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
		if len(segments) > 0 && segments[0] != "" {
			return segments[0], true
		}
		return "", false
	}

	if id := parsed.Query().Get("v"); id != "" {
		return id, true
	}
	for _, prefix := range []string{"/shorts/", "/embed/", "/live/"} {
		if strings.HasPrefix(parsed.Path, prefix) {
			rest := strings.TrimPrefix(parsed.Path, prefix)
			if id := strings.Split(rest, "/")[0]; id != "" {
				return id, true
			}
		}
	}
	return "", false
}

// WatchURL returns the canonical watch URL for a video id.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + url.QueryEscape(videoID)
}

func normalizeHost(host string) string {
	host = strings.ToLower(host)
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimPrefix(host, "m.")
	return host
}

func isYouTubeHost(host string) bool {
	switch normalizeHost(host) {
	case "youtube.com", "music.youtube.com", "youtu.be":
		return true
	}
	return false
}

// isoDurationPattern matches the subset of ISO-8601 durations the video
// source emits, e.g. "PT4M13S", "PT1H2M", "P1DT2H".
var isoDurationPattern = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// parseISODuration converts an ISO-8601 duration to whole seconds.
func parseISODuration(value string) (int64, bool) {
	match := isoDurationPattern.FindStringSubmatch(value)
	if match == nil {
		return 0, false
	}

	var seconds int64
	for i, unit := range []int64{86400, 3600, 60, 1} {
		if match[i+1] == "" {
			continue
		}
		n, err := strconv.ParseInt(match[i+1], 10, 64)
		if err != nil {
			return 0, false
		}
		seconds += n * unit
	}
	return seconds, true
}
