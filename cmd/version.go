package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// Set with -ldflags "-X github.com/williamokano/dbb/cmd.Version=..."
var (
	Version = "dev"
	Commit  = "none"
)

// nowFunc is swapped in tests
var nowFunc = time.Now

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "dbb %s (%s)\n", Version, Commit)
	},
}
