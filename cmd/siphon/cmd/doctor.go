package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/hbomb79/Siphon/internal"
	"github.com/hbomb79/Siphon/internal/ffmpeg"
	"github.com/hbomb79/Siphon/internal/ytdlp"
	"github.com/spf13/cobra"
)

var errChecksFailed = errors.New("one or more checks failed")

func init() {
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that the external tools and staging directory are usable",
	RunE:  runDoctor,
}

type check struct {
	name string
	run  func(ctx context.Context) (string, error)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	transcoder := ffmpeg.New(globalConfig.Transcoder)
	checks := []check{
		{"ffmpeg/ffprobe", func(context.Context) (string, error) {
			return transcoder.FfmpegPath(), transcoder.Validate()
		}},
		{"staging directory", func(context.Context) (string, error) {
			return checkStagingDir()
		}},
	}
	if globalConfig.Extractor.Backend == internal.BackendYtDlp {
		client := ytdlp.New(ytdlp.Config{BinaryPath: globalConfig.Extractor.YtDlpPath})
		checks = append(checks, check{"yt-dlp", client.Version})
	}

	pass, fail := color.New(color.FgHiGreen), color.New(color.FgHiRed, color.Bold)
	failed := false
	for _, c := range checks {
		detail, err := c.run(ctx)
		if err != nil {
			failed = true
			fail.Fprintf(cmd.OutOrStdout(), "  ✗ %-18s %v\n", c.name, err)
			continue
		}

		pass.Fprintf(cmd.OutOrStdout(), "  ✓ %-18s %s\n", c.name, detail)
	}

	if failed {
		return errChecksFailed
	}

	return nil
}

func checkStagingDir() (string, error) {
	dir, err := globalConfig.StagingDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return dir, err
	}

	probe, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return dir, fmt.Errorf("staging directory is not writable: %w", err)
	}
	probe.Close()
	os.Remove(probe.Name())

	return dir, nil
}
