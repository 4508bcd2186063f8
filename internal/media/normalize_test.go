package media_test

import (
	"testing"

	"github.com/hbomb79/Siphon/internal/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }
func s(v string) *string   { return &v }

func heights(formats []media.FormatDescriptor) []float64 {
	out := make([]float64, len(formats))
	for i, format := range formats {
		if format.Height != nil {
			out[i] = *format.Height
		}
	}
	return out
}

func ids(formats []media.FormatDescriptor) []string {
	out := make([]string, len(formats))
	for i, format := range formats {
		out[i] = format.FormatID
	}
	return out
}

func Test_NormalizeFormats_DropsDuplicatesFirstWins(t *testing.T) {
	formats := media.NormalizeFormats([]media.RawFormat{
		{FormatID: "18", Extension: "mp4", Height: f(360), VideoCodec: s("avc1"), AudioCodec: s("mp4a")},
		{FormatID: "18", Extension: "webm", Height: f(1080), VideoCodec: s("vp9"), AudioCodec: s("opus")},
	}, 0)

	require.Len(t, formats, 1)
	assert.Equal(t, "mp4", formats[0].Extension)
	assert.Equal(t, 360.0, *formats[0].Height)
}

func Test_NormalizeFormats_DropsUnusableRecords(t *testing.T) {
	formats := media.NormalizeFormats([]media.RawFormat{
		{FormatID: "no-ext", Extension: "", VideoCodec: s("avc1"), AudioCodec: s("mp4a")},
		{FormatID: "no-codecs", Extension: "mp4", VideoCodec: s("none"), AudioCodec: s("none")},
		{FormatID: "missing-codecs", Extension: "mhtml"},
		{FormatID: "none-video-no-audio", Extension: "mp4", VideoCodec: s("none")},
		{FormatID: "audio", Extension: "m4a", VideoCodec: s("none"), AudioCodec: s("mp4a.40.2")},
		{FormatID: "video", Extension: "mp4", VideoCodec: s("avc1"), AudioCodec: s("none")},
	}, 0)

	assert.ElementsMatch(t, []string{"audio", "video"}, ids(formats))
	for _, format := range formats {
		if format.FormatID == "audio" {
			assert.Nil(t, format.VideoCodec, "'none' codec is normalized to absent")
			assert.Equal(t, "mp4a.40.2", *format.AudioCodec)
		}
		if format.FormatID == "video" {
			assert.Nil(t, format.AudioCodec)
		}
	}
}

func Test_NormalizeFormats_SortOrder(t *testing.T) {
	formats := media.NormalizeFormats([]media.RawFormat{
		{FormatID: "a", Extension: "mp4", Height: f(360), VideoCodec: s("avc1")},
		{FormatID: "b", Extension: "mp4", Height: f(1080), VideoCodec: s("avc1")},
		{FormatID: "c", Extension: "mp4", Height: f(720), VideoCodec: s("avc1")},
		{FormatID: "d", Extension: "m4a", AudioCodec: s("mp4a")},
	}, 0)

	assert.Equal(t, []float64{1080, 720, 360, 0}, heights(formats))
}

func Test_NormalizeFormats_BitrateBreaksHeightTies(t *testing.T) {
	formats := media.NormalizeFormats([]media.RawFormat{
		{FormatID: "low", Extension: "m4a", AudioCodec: s("mp4a"), AudioBitrate: f(48)},
		{FormatID: "high-video", Extension: "mp4", Height: f(720), VideoCodec: s("avc1"), VideoBitrate: f(900)},
		{FormatID: "high", Extension: "m4a", AudioCodec: s("opus"), AudioBitrate: f(160)},
		{FormatID: "low-video", Extension: "mp4", Height: f(720), VideoCodec: s("avc1"), VideoBitrate: f(300)},
	}, 0)

	assert.Equal(t, []string{"high-video", "low-video", "high", "low"}, ids(formats))
}

func Test_NormalizeFormats_SizeEstimate(t *testing.T) {
	formats := media.NormalizeFormats([]media.RawFormat{
		{FormatID: "exact", Extension: "mp4", VideoCodec: s("avc1"), FileSize: f(10_485_760)},
		{FormatID: "estimated", Extension: "m4a", AudioCodec: s("mp4a"), AudioBitrate: f(128), Duration: f(60)},
		{FormatID: "video-duration", Extension: "m4a", AudioCodec: s("mp4a"), VideoBitrate: f(64)},
		{FormatID: "unknown", Extension: "m4a", AudioCodec: s("mp4a")},
	}, 120)

	byID := map[string]media.FormatDescriptor{}
	for _, format := range formats {
		byID[format.FormatID] = format
	}

	require.NotNil(t, byID["exact"].EstimatedSizeMB)
	assert.Equal(t, 10.0, *byID["exact"].EstimatedSizeMB)

	require.NotNil(t, byID["estimated"].EstimatedSizeMB)
	assert.InDelta(t, 0.9375, *byID["estimated"].EstimatedSizeMB, 1e-9)

	require.NotNil(t, byID["video-duration"].EstimatedSizeMB, "falls back to the video's duration")
	assert.InDelta(t, (64.0*120)/8/1024, *byID["video-duration"].EstimatedSizeMB, 1e-9)

	assert.Nil(t, byID["unknown"].EstimatedSizeMB)
}

func Test_NormalizeFormats_FormatName(t *testing.T) {
	tests := []struct {
		summary  string
		raw      media.RawFormat
		expected string
	}{
		{"progressive", media.RawFormat{FormatID: "18", Extension: "mp4", Height: f(360), VideoCodec: s("avc1.42001E"), AudioCodec: s("mp4a.40.2")}, "360p (avc1.42001E) Audio:mp4a.40.2"},
		{"audio only with bitrate", media.RawFormat{FormatID: "140", Extension: "m4a", VideoCodec: s("none"), AudioCodec: s("mp4a.40.2"), AudioBitrate: f(129.478)}, "Audio:mp4a.40.2 129.478kbps"},
		{"video only with bitrate", media.RawFormat{FormatID: "137", Extension: "mp4", Height: f(1080), VideoCodec: s("avc1"), AudioCodec: s("none"), VideoBitrate: f(4400)}, "1080p (avc1) 4400kbps"},
	}

	for _, tt := range tests {
		t.Run(tt.summary, func(t *testing.T) {
			formats := media.NormalizeFormats([]media.RawFormat{tt.raw}, 0)
			require.Len(t, formats, 1)
			assert.Equal(t, tt.expected, formats[0].FormatName)
		})
	}
}

func Test_NormalizeFormats_IsDash(t *testing.T) {
	formats := media.NormalizeFormats([]media.RawFormat{
		{FormatID: "dash", Extension: "mp4", VideoCodec: s("avc1"), FormatNote: "DASH video"},
		{FormatID: "plain", Extension: "mp4", VideoCodec: s("avc1"), FormatNote: "1080p"},
	}, 0)

	for _, format := range formats {
		assert.Equal(t, format.FormatID == "dash", format.IsDash, format.FormatID)
	}
}

func Test_Normalize_Metadata(t *testing.T) {
	metadata := media.Normalize(&media.RawVideo{
		ID:       "abc123",
		Title:    "Title",
		Duration: 212.7,
		Thumbnails: []media.Thumbnail{
			{URL: "small", Width: 120, Height: 90},
			{URL: "wide", Width: 1280, Height: 720},
			{URL: "tall", Width: 1280, Height: 960},
		},
		AgeLimit: 18,
		IsLive:   true,
	})

	assert.Equal(t, "abc123", metadata.VideoID)
	assert.Equal(t, 212, metadata.Duration)
	assert.Equal(t, "tall", metadata.Thumbnail)
	assert.True(t, metadata.AgeRestricted)
	assert.True(t, metadata.IsLive)
	assert.Empty(t, metadata.Formats)
}

func Test_BestThumbnail_PrefersDirect(t *testing.T) {
	assert.Equal(t, "direct", media.BestThumbnail("direct", []media.Thumbnail{{URL: "big", Width: 4000, Height: 4000}}))
	assert.Equal(t, "", media.BestThumbnail("", nil))
}

func Test_BestSelectors(t *testing.T) {
	formats := media.NormalizeFormats([]media.RawFormat{
		{FormatID: "140", Extension: "m4a", AudioCodec: s("mp4a"), AudioBitrate: f(128)},
		{FormatID: "251", Extension: "webm", AudioCodec: s("opus"), AudioBitrate: f(160)},
		{FormatID: "18", Extension: "mp4", Height: f(360), FPS: f(30), VideoCodec: s("avc1"), AudioCodec: s("mp4a")},
		{FormatID: "22", Extension: "mp4", Height: f(720), FPS: f(30), VideoCodec: s("avc1"), AudioCodec: s("mp4a")},
		{FormatID: "137", Extension: "mp4", Height: f(1080), VideoCodec: s("avc1")},
	}, 0)

	audio := media.BestAudio(formats)
	require.NotNil(t, audio)
	assert.Equal(t, "251", audio.FormatID)

	video := media.BestVideo(formats)
	require.NotNil(t, video)
	assert.Equal(t, "22", video.FormatID)

	assert.Nil(t, media.BestAudio(nil))
	assert.Nil(t, media.BestVideo(formats[len(formats)-1:]))
}
