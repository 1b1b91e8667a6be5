package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/williamokano/dbb/pkg/config"
	"github.com/williamokano/dbb/pkg/failure"
	"github.com/williamokano/dbb/pkg/logger"
)

var cfgFile string

// settingsViper carries defaults, the optional dbb.yaml, DBB_* env vars and flags
var settingsViper = config.NewViper()

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dbb",
	Short: "Unattended database snapshot archiver",
	Long: `dbb dumps the project database, compresses the dump, checks it is plausible,
uploads it privately to object storage under a date keyed name and removes the
local copy. It is meant to run from cron; every failure exits non-zero.

Exit codes:
  0  backup stored and local artifact removed
  1  unexpected error
  2  configuration error (provider, environment, settings)
  3  dump or compression failed
  4  artifact implausibly small (kept for inspection)
  5  upload failed (artifact kept)

Examples:
  # nightly run from the project root
  dbb run --workdir /srv/app

  # show where this host would upload without dumping anything
  dbb check --workdir /srv/app`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI and exits with the code matching the error kind
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(failure.ExitCode(err))
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "settings file (default is ./dbb.yaml when present)")
	flags.String("workdir", "", "project root holding .env, cli/ and db/ (default is the current directory)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "json", "log format (json, console)")
	flags.Bool("no-color", false, "disable colored status lines")

	settingsViper.BindPFlag("workdir", flags.Lookup("workdir"))
	settingsViper.BindPFlag("log_level", flags.Lookup("log-level"))
	settingsViper.BindPFlag("log_format", flags.Lookup("log-format"))
	settingsViper.BindPFlag("no_color", flags.Lookup("no-color"))

	rootCmd.AddCommand(runCmd, checkCmd, routesCmd, versionCmd)
}

// loadSettings reads the tool settings and initialises the global logger
func loadSettings() (*config.Settings, error) {
	settings, err := config.LoadSettings(settingsViper, cfgFile)
	if err != nil {
		return nil, failure.Configuration(err, "invalid settings")
	}

	logger.InitWithWriter(settings.LogLevel, settings.LogFormat, os.Stderr)
	return settings, nil
}
