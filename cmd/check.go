package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/williamokano/dbb/pkg/archive"
	"github.com/williamokano/dbb/pkg/backup"
	"github.com/williamokano/dbb/pkg/dump"
	"github.com/williamokano/dbb/pkg/logger"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Resolve the run configuration and print the upload target",
	Long: `check runs the configuration provider and reads the environment exactly like
run does, then prints where today's backup would go. Nothing is dumped or
uploaded and no secret is printed.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	log := logger.Get().With().Str("command", "check").Logger()
	cfg, err := backup.NewResolverFromSettings(settings, log).Resolve(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	runDate := dump.FormatRunDate(nowFunc())
	route := cfg.Route()

	fmt.Fprintf(out, "namespace:   %s\n", cfg.Namespace())
	fmt.Fprintf(out, "stage:       %s (route %q)\n", cfg.Environment(), route.Stage)
	fmt.Fprintf(out, "database:    %s@%s/%s\n", cfg.DatabaseUser(), cfg.DatabaseHost(), cfg.DatabaseName())
	fmt.Fprintf(out, "storage:     %s\n", settings.Storage.Type)
	fmt.Fprintf(out, "bucket:      %s\n", cfg.BucketName())
	fmt.Fprintf(out, "key:         %s\n", archive.RemoteKey(cfg.KeyPrefix(), runDate))
	fmt.Fprintf(out, "artifact:    %s\n", dump.ArtifactPath(settings.GetArtifactDir(), settings.Artifact.FilePrefix, runDate))

	leftovers, err := dump.FindLeftovers(settings.GetArtifactDir(), settings.Artifact.FilePrefix, runDate)
	if err != nil {
		return err
	}
	for _, a := range leftovers {
		fmt.Fprintf(out, "pending:     %s (%d bytes, never uploaded)\n", a.LocalPath, a.SizeBytes)
	}

	if route.Inverted {
		warn := color.New(color.FgHiYellow)
		if settings.NoColor {
			warn.DisableColor()
		}
		warn.Fprintf(out, "warning:     stage %q writes to the bucket labelled for another stage\n", cfg.Environment())
	}

	return nil
}
