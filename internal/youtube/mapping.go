package youtube

import (
	"mime"
	"strconv"
	"strings"

	kkdai "github.com/kkdai/youtube/v2"

	"github.com/hbomb79/Siphon/internal/media"
)

func toRawVideo(video *kkdai.Video) *media.RawVideo {
	thumbnails := make([]media.Thumbnail, 0, len(video.Thumbnails))
	for _, t := range video.Thumbnails {
		thumbnails = append(thumbnails, media.Thumbnail{URL: t.URL, Width: float64(t.Width), Height: float64(t.Height)})
	}

	return &media.RawVideo{
		ID:         video.ID,
		Title:      video.Title,
		Duration:   video.Duration.Seconds(),
		Thumbnails: thumbnails,
		IsLive:     video.HLSManifestURL != "",
		Formats:    toRawFormats(video),
	}
}

func toRawFormats(video *kkdai.Video) []media.RawFormat {
	formats := make([]media.RawFormat, 0, len(video.Formats))
	for _, f := range video.Formats {
		formats = append(formats, toRawFormat(f))
	}

	return formats
}

// toRawFormat derives the container and codecs from the stream's MIME type,
// e.g. `video/mp4; codecs="avc1.640028"`. Audio-only streams report no
// video codec; progressive streams list both codecs.
func toRawFormat(f kkdai.Format) media.RawFormat {
	raw := media.RawFormat{
		FormatID:   strconv.Itoa(f.ItagNo),
		Height:     positiveInt(f.Height),
		Width:      positiveInt(f.Width),
		FPS:        positiveInt(f.FPS),
		FormatNote: f.QualityLabel,
	}

	mediaType, params, err := mime.ParseMediaType(f.MimeType)
	if err != nil {
		return raw
	}
	kind, container, _ := strings.Cut(mediaType, "/")
	raw.Extension = extensionFor(kind, container)

	codecs := splitCodecs(params["codecs"])
	switch {
	case kind == "audio" && len(codecs) > 0:
		raw.VideoCodec = ptr("none")
		raw.AudioCodec = ptr(codecs[0])
	case kind == "video" && len(codecs) > 1:
		raw.VideoCodec = ptr(codecs[0])
		raw.AudioCodec = ptr(codecs[1])
	case kind == "video" && len(codecs) == 1:
		raw.VideoCodec = ptr(codecs[0])
		raw.AudioCodec = ptr("none")
		raw.FormatNote = "DASH video"
	}

	bitrate := f.AverageBitrate
	if bitrate <= 0 {
		bitrate = f.Bitrate
	}
	if bitrate > 0 {
		kbps := float64(bitrate) / 1000
		if kind == "audio" {
			raw.AudioBitrate = &kbps
		} else {
			raw.VideoBitrate = &kbps
		}
	}

	if f.ContentLength > 0 {
		size := float64(f.ContentLength)
		raw.FileSize = &size
	}
	if ms, err := strconv.ParseFloat(f.ApproxDurationMs, 64); err == nil && ms > 0 {
		seconds := ms / 1000
		raw.Duration = &seconds
	}

	return raw
}

// extensionFor maps the MIME subtype to the extension yt-dlp would report.
// Audio carried in an MP4 container is conventionally ".m4a".
func extensionFor(kind string, container string) string {
	if kind == "audio" && container == "mp4" {
		return "m4a"
	}

	return container
}

func splitCodecs(codecs string) []string {
	if strings.TrimSpace(codecs) == "" {
		return nil
	}

	parts := strings.Split(codecs, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if c := strings.TrimSpace(part); c != "" {
			out = append(out, c)
		}
	}

	return out
}

func positiveInt(v int) *float64 {
	if v <= 0 {
		return nil
	}

	f := float64(v)
	return &f
}

func ptr[T any](v T) *T { return &v }
