// Package ytdlp adapts the yt-dlp command line tool to the media package's
// Extractor and Fetcher interfaces.
package ytdlp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/hbomb79/Siphon/internal/media"
	"github.com/hbomb79/Siphon/pkg/logger"
)

var log = logger.Get("yt-dlp")

// ErrTimeout is returned when the context deadline expires while yt-dlp is
// still running. The process is killed.
var ErrTimeout = errors.New("yt-dlp timed out")

type Config struct {
	// BinaryPath is the yt-dlp executable; a bare name is resolved via PATH.
	BinaryPath string

	// SocketTimeout is passed through to yt-dlp for its network operations.
	SocketTimeout time.Duration

	// FfmpegPath, when set, tells yt-dlp where to find ffmpeg for merging
	// separate video and audio streams.
	FfmpegPath string
}

type Client struct {
	config Config
}

func New(config Config) *Client {
	if config.BinaryPath == "" {
		config.BinaryPath = "yt-dlp"
	}

	return &Client{config: config}
}

// Extract runs yt-dlp in JSON dump mode and decodes the result.
func (client *Client) Extract(ctx context.Context, url string) (*media.RawVideo, error) {
	stdout, err := client.run(ctx, client.extractArgs(url))
	if err != nil {
		return nil, err
	}

	return DecodeInfo(stdout)
}

// Fetch downloads exactly one format (or a merged "video+audio" pair) to
// destination. A nil error does not guarantee the file exists; callers must
// verify that themselves.
func (client *Client) Fetch(ctx context.Context, url string, formatID string, destination string) error {
	log.Emit(logger.DEBUG, "Fetching format %s of %s to %s\n", formatID, url, destination)
	_, err := client.run(ctx, client.fetchArgs(url, formatID, destination))
	return err
}

// Version reports the installed yt-dlp version. It is used to confirm the
// tool is present and runnable.
func (client *Client) Version(ctx context.Context) (string, error) {
	stdout, err := client.run(ctx, []string{"--version"})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(stdout)), nil
}

func (client *Client) extractArgs(url string) []string {
	return []string{
		"-J",
		"--no-playlist",
		"--no-warnings",
		"--socket-timeout", client.socketTimeout(),
		url,
	}
}

func (client *Client) fetchArgs(url string, formatID string, destination string) []string {
	args := []string{
		"-f", formatID,
		"-o", destination,
		"--no-playlist",
		"--no-part",
		"--force-overwrites",
		"--no-mtime",
		"--no-warnings",
		"--socket-timeout", client.socketTimeout(),
	}
	if client.config.FfmpegPath != "" {
		args = append(args, "--ffmpeg-location", client.config.FfmpegPath)
	}
	if strings.Contains(formatID, "+") {
		args = append(args, "--merge-output-format", "mp4")
	}

	return append(args, url)
}

func (client *Client) socketTimeout() string {
	seconds := int(client.config.SocketTimeout.Seconds())
	if seconds <= 0 {
		seconds = 30
	}

	return strconv.Itoa(seconds)
}

// run executes yt-dlp and returns its stdout. A non-zero exit is reported as
// media.ErrToolFailed carrying the tool's own error message.
func (client *Client) run(ctx context.Context, args []string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, client.config.BinaryPath, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil, fmt.Errorf("%w: %s", media.ErrToolFailed, toolMessage(stderr.String(), exitErr))
	}

	return nil, fmt.Errorf("failed to run %s: %w", client.config.BinaryPath, err)
}

// toolMessage picks the most useful line from yt-dlp's stderr. yt-dlp
// prefixes fatal problems with "ERROR:".
func toolMessage(stderr string, exitErr *exec.ExitError) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); strings.HasPrefix(line, "ERROR:") {
			return line
		}
	}

	if trimmed := strings.TrimSpace(stderr); trimmed != "" {
		return trimmed
	}

	return exitErr.Error()
}
