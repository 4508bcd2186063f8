// Package media holds the format/metadata model shared by every extractor
// backend, along with the normalization rules that turn an extractor's raw
// format records into the list presented to clients.
package media

import (
	"context"
	"strings"
)

type (
	// FormatDescriptor is one downloadable variant of a video. Optional
	// attributes are nil when the extractor did not report them.
	FormatDescriptor struct {
		FormatID        string
		FormatName      string
		Extension       string
		Height          *float64
		Width           *float64
		FPS             *float64
		VideoCodec      *string
		AudioCodec      *string
		AudioBitrate    *float64
		VideoBitrate    *float64
		EstimatedSizeMB *float64
		IsDash          bool
	}

	// VideoMetadata is the result of a single enumeration.
	VideoMetadata struct {
		VideoID       string
		Title         string
		Duration      int
		Thumbnail     string
		AgeRestricted bool
		IsLive        bool
		Formats       []FormatDescriptor
	}

	// RawFormat is a format record as reported by an extractor backend,
	// before de-duplication, filtering and sorting.
	RawFormat struct {
		FormatID     string
		Extension    string
		Height       *float64
		Width        *float64
		FPS          *float64
		VideoCodec   *string
		AudioCodec   *string
		FileSize     *float64
		AudioBitrate *float64
		VideoBitrate *float64
		Duration     *float64
		FormatNote   string
	}

	Thumbnail struct {
		URL    string
		Width  float64
		Height float64
	}

	// RawVideo is the full, un-normalized extractor response.
	RawVideo struct {
		ID         string
		Title      string
		Duration   float64
		Thumbnail  string
		Thumbnails []Thumbnail
		AgeLimit   int
		IsLive     bool
		Formats    []RawFormat
	}

	// Extractor enumerates the formats available for a video URL.
	Extractor interface {
		Extract(ctx context.Context, url string) (*RawVideo, error)
	}

	// Fetcher materializes exactly one format of a video at a local path.
	Fetcher interface {
		Fetch(ctx context.Context, url string, formatID string, destination string) error
	}
)

// HasVideo reports whether the descriptor carries a video stream.
func (f FormatDescriptor) HasVideo() bool { return f.VideoCodec != nil }

// HasAudio reports whether the descriptor carries an audio stream.
func (f FormatDescriptor) HasAudio() bool { return f.AudioCodec != nil }

// codecPresent normalizes codec fields: a missing value, an empty value
// and the extractor's "none" marker all mean the stream is absent.
func codecPresent(codec *string) (string, bool) {
	if codec == nil {
		return "", false
	}

	c := strings.TrimSpace(*codec)
	if c == "" || strings.EqualFold(c, "none") {
		return "", false
	}

	return c, true
}

func ptr[T any](v T) *T { return &v }
