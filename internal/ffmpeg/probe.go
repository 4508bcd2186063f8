package ffmpeg

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/floostack/transcoder"
	"github.com/floostack/transcoder/ffmpeg"
)

type probeResult struct {
	metadata transcoder.Metadata
	err      error
}

// ProbeDuration reports the container duration of path in whole seconds
// using ffprobe. The probe is abandoned once the probe timeout (or ctx)
// expires.
func (t *Transcoder) ProbeDuration(ctx context.Context, path string) (int, error) {
	if err := requireInput(path); err != nil {
		return 0, err
	}

	timeout := t.config.ProbeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cfg := &ffmpeg.Config{
		FfmpegBinPath:  t.config.FfmpegBinaryPath,
		FfprobeBinPath: t.config.FfprobeBinaryPath,
	}

	// GetMetadata has no cancellation of its own, so it is raced against
	// the deadline. The buffered channel lets an abandoned probe finish
	// without leaking the goroutine forever.
	results := make(chan probeResult, 1)
	go func() {
		metadata, err := ffmpeg.New(cfg).Input(path).GetMetadata()
		results <- probeResult{metadata, err}
	}()

	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%w: probing %s: %w", ErrTimeout, path, ctx.Err())
	case result := <-results:
		if result.err != nil {
			return 0, fmt.Errorf("failed to extract file metadata using ffprobe: %w", result.err)
		}

		return parseDuration(result.metadata.GetFormat().GetDuration())
	}
}

func parseDuration(raw string) (int, error) {
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe reported unparseable duration %q: %w", raw, err)
	}

	return int(math.Floor(seconds)), nil
}
