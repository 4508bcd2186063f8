package util_test

import (
	"testing"

	"github.com/hbomb79/Siphon/internal/api/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_IsVideoURL(t *testing.T) {
	accepted := []string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"http://youtube.com/watch?v=dQw4w9WgXcQ&list=PL123",
		"youtube.com/watch?v=abc-_123",
		"https://youtu.be/dQw4w9WgXcQ",
		"youtu.be/dQw4w9WgXcQ?t=42",
		"https://m.youtube.com/watch?v=dQw4w9WgXcQ",
	}
	for _, url := range accepted {
		assert.True(t, util.IsVideoURL(url), url)
	}

	rejected := []string{
		"",
		"https://vimeo.com/12345",
		"https://www.youtube.com/",
		"https://www.youtube.com/watch?v=",
		"https://evil.example/?next=https://youtube.com/watch?v=abc",
		"ftp://youtube.com/watch?v=abc",
	}
	for _, url := range rejected {
		assert.False(t, util.IsVideoURL(url), url)
	}
}

func Test_IsFormatID(t *testing.T) {
	for _, id := range []string{"22", "137+140", "bestaudio", "hls720"} {
		assert.True(t, util.IsFormatID(id), id)
	}
	for _, id := range []string{"", "+", "22;rm -rf", "137 140", "../etc", "dash-1"} {
		assert.False(t, util.IsFormatID(id), id)
	}
}

func Test_NewValidator_CustomTags(t *testing.T) {
	type request struct {
		URL    string `json:"url" validate:"required,youtube_url"`
		Format string `json:"format_id" validate:"required,format_id"`
		Output string `json:"output_format" validate:"required,output_format"`
	}

	validate := util.NewValidator()
	require.NoError(t, validate.Struct(request{URL: "https://youtu.be/abc", Format: "18", Output: "MP3"}))

	err := validate.Struct(request{URL: "https://youtu.be/abc", Format: "18", Output: "wav"})
	assert.ErrorContains(t, err, "output_format")

	err = validate.Struct(request{URL: "not a url", Format: "18", Output: "mp4"})
	assert.ErrorContains(t, err, "url")
}
