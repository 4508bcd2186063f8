package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hbomb79/Siphon/internal"
	"github.com/hbomb79/Siphon/pkg/logger"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Address to listen on (overrides config)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		globalConfig.RestConfig.HostAddr = addr
	}

	siphon, err := internal.New(*globalConfig)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := siphon.Run(ctx); err != nil {
		return err
	}

	log.Emit(logger.STOP, "Siphon stopped\n")
	return nil
}
