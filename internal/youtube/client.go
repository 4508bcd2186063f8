// Package youtube is the native extractor backend: it talks to the platform
// directly through github.com/kkdai/youtube instead of shelling out to
// yt-dlp.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	kkdai "github.com/kkdai/youtube/v2"

	"github.com/hbomb79/Siphon/internal/media"
	"github.com/hbomb79/Siphon/pkg/logger"
)

var log = logger.Get("YouTube")

var ErrFormatUnavailable = errors.New("requested format is not available")

type (
	// Merger muxes a separately fetched video and audio stream in to a
	// single container.
	Merger interface {
		Merge(ctx context.Context, video string, audio string, output string) error
	}

	// api is the subset of the kkdai client we depend on.
	api interface {
		GetVideoContext(ctx context.Context, url string) (*kkdai.Video, error)
		GetStreamContext(ctx context.Context, video *kkdai.Video, format *kkdai.Format) (io.ReadCloser, int64, error)
	}

	Config struct {
		// SocketTimeout bounds connection establishment and the wait for
		// response headers. It deliberately does not bound body reads, as
		// streams can legitimately take a long time to transfer.
		SocketTimeout time.Duration
	}

	Client struct {
		api    api
		merger Merger
	}
)

func New(config Config, merger Merger) *Client {
	timeout := config.SocketTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: timeout}).DialContext
	transport.ResponseHeaderTimeout = timeout

	return &Client{
		api:    &kkdai.Client{HTTPClient: &http.Client{Transport: transport}},
		merger: merger,
	}
}

// Extract loads the video and maps every stream the library exposes on to
// the extractor-neutral raw model.
func (client *Client) Extract(ctx context.Context, url string) (*media.RawVideo, error) {
	video, err := client.api.GetVideoContext(ctx, url)
	if err != nil {
		return nil, translateError(err)
	}

	return toRawVideo(video), nil
}

// Fetch streams the requested format to destination. Format ids follow
// yt-dlp's conventions: an itag, "best", "bestaudio", or "video+audio" which
// fetches both parts and merges them.
func (client *Client) Fetch(ctx context.Context, url string, formatID string, destination string) error {
	video, err := client.api.GetVideoContext(ctx, url)
	if err != nil {
		return translateError(err)
	}

	if videoID, audioID, ok := strings.Cut(formatID, "+"); ok {
		return client.fetchMerged(ctx, video, videoID, audioID, destination)
	}

	format, err := resolveFormat(video, formatID)
	if err != nil {
		return err
	}

	return client.stream(ctx, video, format, destination)
}

func (client *Client) fetchMerged(ctx context.Context, video *kkdai.Video, videoID string, audioID string, destination string) error {
	if client.merger == nil {
		return fmt.Errorf("cannot fetch %s+%s: no merger configured", videoID, audioID)
	}

	videoFormat, err := resolveFormat(video, videoID)
	if err != nil {
		return err
	}
	audioFormat, err := resolveFormat(video, audioID)
	if err != nil {
		return err
	}

	videoPart := fmt.Sprintf("%s.f%d", destination, videoFormat.ItagNo)
	audioPart := fmt.Sprintf("%s.f%d", destination, audioFormat.ItagNo)
	defer removePart(videoPart)
	defer removePart(audioPart)

	if err := client.stream(ctx, video, videoFormat, videoPart); err != nil {
		return err
	}
	if err := client.stream(ctx, video, audioFormat, audioPart); err != nil {
		return err
	}

	log.Emit(logger.DEBUG, "Merging itag %d and %d in to %s\n", videoFormat.ItagNo, audioFormat.ItagNo, destination)
	if err := client.merger.Merge(ctx, videoPart, audioPart, destination); err != nil {
		return fmt.Errorf("failed to merge streams: %w", err)
	}

	return nil
}

func (client *Client) stream(ctx context.Context, video *kkdai.Video, format *kkdai.Format, destination string) error {
	reader, size, err := client.api.GetStreamContext(ctx, video, format)
	if err != nil {
		return translateError(err)
	}
	defer reader.Close()

	file, err := os.Create(destination)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", destination, err)
	}

	written, err := io.Copy(file, reader)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		removePart(destination)
		return fmt.Errorf("%w: streaming itag %d: %w", media.ErrToolFailed, format.ItagNo, err)
	}

	log.Emit(logger.DEBUG, "Streamed itag %d (%d of %d bytes) to %s\n", format.ItagNo, written, size, destination)
	return nil
}

// resolveFormat finds the library format for a format id. "best" and
// "bestaudio" are resolved against the normalized format list so that they
// pick the same formats the client was shown.
func resolveFormat(video *kkdai.Video, formatID string) (*kkdai.Format, error) {
	switch formatID {
	case "best", "bestaudio":
		formats := media.NormalizeFormats(toRawFormats(video), video.Duration.Seconds())

		var chosen *media.FormatDescriptor
		if formatID == "best" {
			chosen = media.BestVideo(formats)
		} else {
			chosen = media.BestAudio(formats)
		}
		if chosen == nil {
			return nil, fmt.Errorf("%w: no format matches %q", ErrFormatUnavailable, formatID)
		}
		formatID = chosen.FormatID
	}

	itag, err := strconv.Atoi(formatID)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not an itag", ErrFormatUnavailable, formatID)
	}

	for i := range video.Formats {
		if video.Formats[i].ItagNo == itag {
			return &video.Formats[i], nil
		}
	}

	return nil, fmt.Errorf("%w: itag %d", ErrFormatUnavailable, itag)
}

// translateError attaches the failure taxonomy to the library's typed
// errors. Anything else is reported as an extractor failure and left to
// media.Classify's message matching.
func translateError(err error) error {
	switch {
	case errors.Is(err, kkdai.ErrVideoPrivate):
		return fmt.Errorf("%w: %w", media.ErrVideoNotFound, err)
	case errors.Is(err, kkdai.ErrLoginRequired):
		return fmt.Errorf("%w: %w", media.ErrAgeRestricted, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %w", media.ErrToolFailed, err)
	}
}

func removePart(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Emit(logger.WARNING, "Failed to remove partial stream %s: %v\n", path, err)
	}
}
