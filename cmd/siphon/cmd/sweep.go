package cmd

import (
	"time"

	"github.com/hbomb79/Siphon/internal/cleanup"
	"github.com/hbomb79/Siphon/pkg/logger"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(sweepCmd)

	sweepCmd.Flags().Float64("max-age-hours", 0, "Remove files older than this many hours (defaults to the configured sweep age)")
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove stale files from the staging directory",
	Long: `Removes every file in the staging directory whose modification time is older
than the maximum age. This is the same sweep the server performs periodically,
and is safe to run from cron while the server is stopped.`,
	RunE: runSweep,
}

func runSweep(cmd *cobra.Command, args []string) error {
	dir, err := globalConfig.StagingDir()
	if err != nil {
		return err
	}

	maxAge := globalConfig.Staging.SweepMaxAge
	if hours, _ := cmd.Flags().GetFloat64("max-age-hours"); hours > 0 {
		maxAge = time.Duration(hours * float64(time.Hour))
	}

	removed, err := cleanup.Sweep(dir, maxAge, time.Now())
	if err != nil {
		return err
	}

	log.Emit(logger.SUCCESS, "Removed %d file(s) older than %s from %s\n", removed, maxAge, dir)
	return nil
}
