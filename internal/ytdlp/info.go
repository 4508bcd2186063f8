package ytdlp

import (
	"encoding/json"
	"fmt"

	"github.com/hbomb79/Siphon/internal/media"
)

// infoDict mirrors the subset of yt-dlp's JSON info dict we consume. Numeric
// fields are pointers as yt-dlp emits null for anything it could not
// determine.
type infoDict struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Duration   *float64        `json:"duration"`
	Thumbnail  string          `json:"thumbnail"`
	Thumbnails []thumbnailDict `json:"thumbnails"`
	AgeLimit   *int            `json:"age_limit"`
	IsLive     *bool           `json:"is_live"`
	Formats    []formatDict    `json:"formats"`
}

type thumbnailDict struct {
	URL    string   `json:"url"`
	Width  *float64 `json:"width"`
	Height *float64 `json:"height"`
}

type formatDict struct {
	FormatID   string   `json:"format_id"`
	Ext        string   `json:"ext"`
	Height     *float64 `json:"height"`
	Width      *float64 `json:"width"`
	FPS        *float64 `json:"fps"`
	VCodec     *string  `json:"vcodec"`
	ACodec     *string  `json:"acodec"`
	FileSize   *float64 `json:"filesize"`
	ABR        *float64 `json:"abr"`
	VBR        *float64 `json:"vbr"`
	Duration   *float64 `json:"duration"`
	FormatNote string   `json:"format_note"`
}

// DecodeInfo parses the output of `yt-dlp -J` in to the extractor-neutral
// raw model.
func DecodeInfo(data []byte) (*media.RawVideo, error) {
	var info infoDict
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to decode yt-dlp info: %w", err)
	}

	raw := &media.RawVideo{
		ID:         info.ID,
		Title:      info.Title,
		Thumbnail:  info.Thumbnail,
		Thumbnails: make([]media.Thumbnail, 0, len(info.Thumbnails)),
		Formats:    make([]media.RawFormat, 0, len(info.Formats)),
	}
	if info.Duration != nil {
		raw.Duration = *info.Duration
	}
	if info.AgeLimit != nil {
		raw.AgeLimit = *info.AgeLimit
	}
	if info.IsLive != nil {
		raw.IsLive = *info.IsLive
	}

	for _, t := range info.Thumbnails {
		raw.Thumbnails = append(raw.Thumbnails, media.Thumbnail{URL: t.URL, Width: deref(t.Width), Height: deref(t.Height)})
	}

	for _, f := range info.Formats {
		raw.Formats = append(raw.Formats, media.RawFormat{
			FormatID:     f.FormatID,
			Extension:    f.Ext,
			Height:       f.Height,
			Width:        f.Width,
			FPS:          f.FPS,
			VideoCodec:   f.VCodec,
			AudioCodec:   f.ACodec,
			FileSize:     f.FileSize,
			AudioBitrate: f.ABR,
			VideoBitrate: f.VBR,
			Duration:     f.Duration,
			FormatNote:   f.FormatNote,
		})
	}

	return raw, nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
