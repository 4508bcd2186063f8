// Package ffmpeg wraps the ffmpeg and ffprobe executables: availability
// checks, audio extraction, stream muxing and duration probing.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/hbomb79/Siphon/pkg/logger"
)

var log = logger.Get("FFmpeg")

var (
	// ErrUnavailable is returned when the ffmpeg (or ffprobe) executable
	// cannot be found.
	ErrUnavailable = errors.New("ffmpeg is not available")

	ErrInputMissing  = errors.New("input file does not exist")
	ErrOutputMissing = errors.New("ffmpeg exited successfully but produced no output")
	ErrTimeout       = errors.New("ffmpeg timed out")
)

// ExitError is returned when ffmpeg exits with a non-zero status. Output
// holds the interesting tail of the tool's stderr.
type ExitError struct {
	Output string
	Err    error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("ffmpeg failed: %s", e.Output)
}

func (e *ExitError) Unwrap() error { return e.Err }

const DefaultAudioBitrate = "192k"

type Config struct {
	FfmpegBinaryPath  string        `yaml:"ffmpeg_binary" env:"TRANSCODER_FFMPEG_BINARY_PATH" env-default:"ffmpeg"`
	FfprobeBinaryPath string        `yaml:"ffprobe_binary" env:"TRANSCODER_FFPROBE_BINARY_PATH" env-default:"ffprobe"`
	ConversionTimeout time.Duration `yaml:"conversion_timeout" env:"TRANSCODER_CONVERSION_TIMEOUT" env-default:"1h"`
	ProbeTimeout      time.Duration `yaml:"probe_timeout" env:"TRANSCODER_PROBE_TIMEOUT" env-default:"10s"`
	AudioBitrate      string        `yaml:"audio_bitrate" env:"TRANSCODER_AUDIO_BITRATE" env-default:"192k"`
}

type Transcoder struct {
	config Config
}

func New(config Config) *Transcoder {
	if config.FfmpegBinaryPath == "" {
		config.FfmpegBinaryPath = "ffmpeg"
	}
	if config.FfprobeBinaryPath == "" {
		config.FfprobeBinaryPath = "ffprobe"
	}
	if config.AudioBitrate == "" {
		config.AudioBitrate = DefaultAudioBitrate
	}

	return &Transcoder{config: config}
}

// FfmpegPath returns the resolved ffmpeg executable, or the configured value
// if it cannot be resolved.
func (t *Transcoder) FfmpegPath() string {
	if path, err := resolve(t.config.FfmpegBinaryPath); err == nil {
		return path
	}

	return t.config.FfmpegBinaryPath
}

// Validate confirms both ffmpeg and ffprobe can be found. It does not run
// either of them.
func (t *Transcoder) Validate() error {
	for _, binary := range []string{t.config.FfmpegBinaryPath, t.config.FfprobeBinaryPath} {
		if _, err := resolve(binary); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrUnavailable, binary, err)
		}
	}

	return nil
}

// Available is a convenience for health reporting.
func (t *Transcoder) Available() bool { return t.Validate() == nil }

// ConvertToAudio extracts the audio stream of input in to output, encoded at
// the configured bitrate. The output container is inferred by ffmpeg from
// the output extension.
func (t *Transcoder) ConvertToAudio(ctx context.Context, input string, output string) error {
	if err := requireInput(input); err != nil {
		return err
	}

	return t.run(ctx, output,
		"-i", input,
		"-q:a", "0",
		"-map", "a",
		"-b:a", t.config.AudioBitrate,
		"-y", output,
	)
}

// Merge muxes the first video stream of video with the first audio stream
// of audio. The video stream is copied; audio is re-encoded to AAC so that
// the result is valid in an MP4 container regardless of the source codec.
func (t *Transcoder) Merge(ctx context.Context, video string, audio string, output string) error {
	if err := requireInput(video); err != nil {
		return err
	}
	if err := requireInput(audio); err != nil {
		return err
	}

	return t.run(ctx, output,
		"-i", video,
		"-i", audio,
		"-c:v", "copy",
		"-c:a", "aac",
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-y", output,
	)
}

// run executes ffmpeg, bounded by the configured conversion timeout, and
// verifies the output exists afterwards.
func (t *Transcoder) run(ctx context.Context, output string, args ...string) error {
	if err := t.Validate(); err != nil {
		return err
	}

	if t.config.ConversionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.ConversionTimeout)
		defer cancel()
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.config.FfmpegBinaryPath, append([]string{"-hide_banner", "-nostdin"}, args...)...)
	cmd.Stderr = &stderr

	started := time.Now()
	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s", ErrTimeout, time.Since(started).Round(time.Second))
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		return &ExitError{Output: tail(stderr.String(), 5), Err: err}
	}

	if _, err := os.Stat(output); err != nil {
		return fmt.Errorf("%w: %s", ErrOutputMissing, output)
	}

	log.Emit(logger.DEBUG, "ffmpeg produced %s in %s\n", output, time.Since(started).Round(time.Millisecond))
	return nil
}

func requireInput(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %s", ErrInputMissing, path)
	}

	return nil
}

// resolve accepts either an explicit path to an existing file, or a bare
// executable name to be looked up in PATH.
func resolve(binary string) (string, error) {
	if strings.ContainsRune(binary, os.PathSeparator) {
		info, err := os.Stat(binary)
		if err != nil {
			return "", err
		}
		if info.IsDir() {
			return "", fmt.Errorf("%s is a directory", binary)
		}

		return binary, nil
	}

	return exec.LookPath(binary)
}

// tail keeps the last n non-empty lines of ffmpeg's (very noisy) output.
func tail(output string, n int) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	kept := make([]string, 0, n)
	for i := len(lines) - 1; i >= 0 && len(kept) < n; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			kept = append([]string{line}, kept...)
		}
	}

	return strings.Join(kept, "\n")
}
