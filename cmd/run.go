package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/williamokano/dbb/pkg/backup"
	"github.com/williamokano/dbb/pkg/logger"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Dump, compress, validate, upload and clean up one backup",
	Args:  cobra.NoArgs,
	RunE:  runBackup,
}

func runBackup(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	log := logger.Get().With().Str("command", "run").Logger()
	status := logger.NewStatus(cmd.OutOrStdout(), settings.NoColor)

	runner, err := backup.NewRunnerFromSettings(settings, status, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runner.Run(ctx).Err
}
