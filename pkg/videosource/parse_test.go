package videosource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagmark/tagmark/pkg/models"
)

func TestParsePlaylistInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare id", "PLabc123_-XYZ", "PLabc123_-XYZ"},
		{"bare id with whitespace", "  PLabc123  ", "PLabc123"},
		{"playlist url", "https://www.youtube.com/playlist?list=PLabc123", "PLabc123"},
		{"watch url with list", "https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=PLabc123", "PLabc123"},
		{"music host", "https://music.youtube.com/playlist?list=PLabc123", "PLabc123"},
		{"mobile host", "https://m.youtube.com/playlist?list=PLabc123", "PLabc123"},
		{"schemeless url", "youtube.com/playlist?list=PLabc123", "PLabc123"},
		{"short link with list", "https://youtu.be/dQw4w9WgXcQ?list=PLabc123", "PLabc123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePlaylistInput(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePlaylistInputRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"whitespace only", "   "},
		{"foreign host", "https://vimeo.com/playlist?list=PL1"},
		{"url without list param", "https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
		{"invalid characters", "PL abc!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePlaylistInput(tt.input)
			assert.ErrorIs(t, err, models.ErrInvalidInput)
		})
	}
}

func TestExtractVideoID(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		wantID string
		wantOK bool
	}{
		{"watch url", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"short link", "https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"short link with query", "https://youtu.be/dQw4w9WgXcQ?t=42", "dQw4w9WgXcQ", true},
		{"shorts", "https://www.youtube.com/shorts/abc123", "abc123", true},
		{"embed", "https://www.youtube.com/embed/abc123", "abc123", true},
		{"live", "https://www.youtube.com/live/abc123", "abc123", true},
		{"playlist url", "https://www.youtube.com/playlist?list=PL1", "", false},
		{"foreign host", "https://vimeo.com/watch?v=abc", "", false},
		{"not a url", "just words", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := ExtractVideoID(tt.url)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestIsVideoURL(t *testing.T) {
	assert.True(t, IsVideoURL("https://www.youtube.com/watch?v=abc"))
	assert.True(t, IsVideoURL("https://youtu.be/abc"))
	assert.True(t, IsVideoURL("https://music.youtube.com/watch?v=abc"))
	assert.False(t, IsVideoURL("https://vimeo.com/12345"))
	assert.False(t, IsVideoURL("not a url"))
}

func TestParseISODuration(t *testing.T) {
	tests := []struct {
		value string
		want  int64
		ok    bool
	}{
		{"PT4M13S", 253, true},
		{"PT1H2M3S", 3723, true},
		{"PT45S", 45, true},
		{"PT2H", 7200, true},
		{"P1DT2H", 93600, true},
		{"P0D", 0, true},
		{"", 0, false},
		{"4m13s", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, ok := parseISODuration(tt.value)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
