package media

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Normalize converts an extractor response into VideoMetadata, applying the
// format filtering, size estimation, naming and ordering rules.
func Normalize(raw *RawVideo) *VideoMetadata {
	return &VideoMetadata{
		VideoID:       raw.ID,
		Title:         raw.Title,
		Duration:      int(raw.Duration),
		Thumbnail:     BestThumbnail(raw.Thumbnail, raw.Thumbnails),
		AgeRestricted: raw.AgeLimit >= 18,
		IsLive:        raw.IsLive,
		Formats:       NormalizeFormats(raw.Formats, raw.Duration),
	}
}

// NormalizeFormats de-duplicates (first occurrence wins), drops unusable
// records and sorts the remainder by height then bitrate, both descending.
// videoDuration is used for size estimation when a record carries no
// duration of its own.
func NormalizeFormats(formats []RawFormat, videoDuration float64) []FormatDescriptor {
	seen := make(map[string]struct{}, len(formats))
	out := make([]FormatDescriptor, 0, len(formats))

	for _, raw := range formats {
		if _, ok := seen[raw.FormatID]; ok {
			continue
		}
		if strings.TrimSpace(raw.Extension) == "" {
			continue
		}

		vcodec, hasVideo := codecPresent(raw.VideoCodec)
		acodec, hasAudio := codecPresent(raw.AudioCodec)
		if !hasVideo && !hasAudio {
			continue
		}

		descriptor := FormatDescriptor{
			FormatID:        raw.FormatID,
			Extension:       raw.Extension,
			Height:          positive(raw.Height),
			Width:           positive(raw.Width),
			FPS:             positive(raw.FPS),
			AudioBitrate:    positive(raw.AudioBitrate),
			VideoBitrate:    positive(raw.VideoBitrate),
			EstimatedSizeMB: estimateSize(raw, videoDuration),
			IsDash:          strings.EqualFold(strings.TrimSpace(raw.FormatNote), "dash video"),
		}
		if hasVideo {
			descriptor.VideoCodec = ptr(vcodec)
		}
		if hasAudio {
			descriptor.AudioCodec = ptr(acodec)
		}
		descriptor.FormatName = formatName(descriptor)

		out = append(out, descriptor)
		seen[raw.FormatID] = struct{}{}
	}

	sort.SliceStable(out, func(i, j int) bool {
		hi, hj := valueOr(out[i].Height, 0), valueOr(out[j].Height, 0)
		if hi != hj {
			return hi > hj
		}

		return sortBitrate(out[i]) > sortBitrate(out[j])
	})

	return out
}

// estimateSize returns the size in MiB: exact when the extractor reports a
// file size, otherwise derived from bitrate (kbps) and duration.
func estimateSize(raw RawFormat, videoDuration float64) *float64 {
	if size := valueOr(raw.FileSize, 0); size > 0 {
		return ptr(size / (1024 * 1024))
	}

	bitrate := valueOr(raw.AudioBitrate, 0)
	if bitrate <= 0 {
		bitrate = valueOr(raw.VideoBitrate, 0)
	}
	duration := valueOr(raw.Duration, videoDuration)
	if bitrate > 0 && duration > 0 {
		return ptr((bitrate * duration) / 8 / 1024)
	}

	return nil
}

func formatName(f FormatDescriptor) string {
	parts := make([]string, 0, 4)
	if f.Height != nil {
		parts = append(parts, fmt.Sprintf("%dp", int(*f.Height)))
	}
	if f.VideoCodec != nil {
		parts = append(parts, fmt.Sprintf("(%s)", *f.VideoCodec))
	}
	if f.AudioCodec != nil {
		parts = append(parts, "Audio:"+*f.AudioCodec)
	}
	if bitrate := displayBitrate(f); bitrate > 0 {
		parts = append(parts, strconv.FormatFloat(bitrate, 'f', -1, 64)+"kbps")
	}

	if len(parts) == 0 {
		return "Format " + f.FormatID
	}

	return strings.Join(parts, " ")
}

// displayBitrate prefers the audio bitrate, as the extractor's own
// naming does.
func displayBitrate(f FormatDescriptor) float64 {
	if f.AudioBitrate != nil {
		return *f.AudioBitrate
	}
	return valueOr(f.VideoBitrate, 0)
}

func sortBitrate(f FormatDescriptor) float64 {
	return math.Max(valueOr(f.AudioBitrate, 0), valueOr(f.VideoBitrate, 0))
}

// BestThumbnail prefers the direct thumbnail URL, falling back to the
// largest (by width, then height) entry of the thumbnail collection.
func BestThumbnail(direct string, thumbnails []Thumbnail) string {
	if direct != "" {
		return direct
	}

	var best *Thumbnail
	for i := range thumbnails {
		t := &thumbnails[i]
		if t.URL == "" {
			continue
		}
		if best == nil || t.Width > best.Width || (t.Width == best.Width && t.Height > best.Height) {
			best = t
		}
	}

	if best == nil {
		return ""
	}
	return best.URL
}

// BestAudio returns the audio-only format with the highest audio bitrate.
func BestAudio(formats []FormatDescriptor) *FormatDescriptor {
	var best *FormatDescriptor
	for i := range formats {
		f := &formats[i]
		if !f.HasAudio() || f.HasVideo() {
			continue
		}
		if best == nil || valueOr(f.AudioBitrate, 0) > valueOr(best.AudioBitrate, 0) {
			best = f
		}
	}

	return best
}

// BestVideo returns the format carrying both audio and video with the
// greatest height, breaking ties on frame rate.
func BestVideo(formats []FormatDescriptor) *FormatDescriptor {
	var best *FormatDescriptor
	for i := range formats {
		f := &formats[i]
		if !f.HasAudio() || !f.HasVideo() {
			continue
		}
		if best == nil {
			best = f
			continue
		}

		h, bh := valueOr(f.Height, 0), valueOr(best.Height, 0)
		if h > bh || (h == bh && valueOr(f.FPS, 0) > valueOr(best.FPS, 0)) {
			best = f
		}
	}

	return best
}

func valueOr(v *float64, dflt float64) float64 {
	if v == nil {
		return dflt
	}
	return *v
}

// positive drops zero values, which extractors use interchangeably
// with "unknown".
func positive(v *float64) *float64 {
	if v == nil || *v <= 0 {
		return nil
	}
	return ptr(*v)
}
