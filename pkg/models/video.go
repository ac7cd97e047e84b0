package models

import "time"

// VideoRef identifies a single video at the video source.
// Instances are created by the video source client and never mutated.
type VideoRef struct {
	VideoID         string     `json:"video_id"`
	URL             string     `json:"url"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	PublishedAt     *time.Time `json:"published_at,omitempty"`
	DurationSeconds *int64     `json:"duration_seconds,omitempty"`
}

// Playlist is the metadata of a playlist at the video source.
type Playlist struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// VideoFilters narrows the set of playlist videos a run processes.
// Zero values mean "no constraint".
type VideoFilters struct {
	// PublishedAfter keeps only videos published strictly after the instant.
	// Videos without a publication timestamp fail the filter.
	PublishedAfter *time.Time `json:"published_after,omitempty"`
	// MaxDurationSeconds keeps only videos of at most this length.
	// Videos without a known duration fail the filter.
	MaxDurationSeconds *int64 `json:"max_duration_seconds,omitempty"`
	// MaxVideos caps how many videos are processed after the other filters.
	MaxVideos *int `json:"max_videos,omitempty"`
}

// Matches reports whether the video passes the published-after and
// max-duration filters. MaxVideos is a limit, not a predicate, and is
// applied by the caller after filtering.
func (f *VideoFilters) Matches(v VideoRef) bool {
	if f == nil {
		return true
	}
	if f.PublishedAfter != nil {
		if v.PublishedAt == nil || !v.PublishedAt.After(*f.PublishedAfter) {
			return false
		}
	}
	if f.MaxDurationSeconds != nil {
		if v.DurationSeconds == nil || *v.DurationSeconds > *f.MaxDurationSeconds {
			return false
		}
	}
	return true
}
