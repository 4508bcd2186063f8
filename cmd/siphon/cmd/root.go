package cmd

import (
	"fmt"
	"os"

	"github.com/hbomb79/Siphon/internal"
	"github.com/hbomb79/Siphon/pkg/logger"
	"github.com/spf13/cobra"
)

var log = logger.Get("CLI")

// cfgFile holds the path to the config file specified by the user
var cfgFile string

// globalConfig holds the loaded configuration
var globalConfig *internal.SiphonConfig

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "siphon",
	Short: "Format enumeration and download service for online videos",
	Long: `Siphon exposes a small HTTP API which lists the formats available for a
video and produces a downloadable file in the chosen format, converting to
MP3 when asked.`,
	PersistentPreRunE: loadGlobalConfig,
	SilenceUsage:      true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML configuration file (environment variables are always read)")
}

func loadGlobalConfig(cmd *cobra.Command, args []string) error {
	config, err := internal.LoadConfig(cfgFile)
	if err != nil {
		return err
	}

	logger.SetMinLoggingLevel(logger.ParseLevel(config.LogLevel).Level())
	globalConfig = config
	return nil
}
