package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/williamokano/dbb/pkg/config"
	"github.com/williamokano/dbb/pkg/failure"
)

var (
	routesNamespace string
	routesPreset    string
)

var routesCmd = &cobra.Command{
	Use:   "routes [stage]",
	Short: "Print the stage route table, or the route one stage resolves to",
	Long: `routes prints the effective stage route table: routing.routes when set,
otherwise the routing.preset table. Built-in presets: ` + strings.Join(config.PresetNames(), ", ") + `.`,
	Example: `  dbb routes
  dbb routes production --namespace acme
  dbb routes --preset dedicated`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRoutes,
}

func init() {
	routesCmd.Flags().StringVar(&routesNamespace, "namespace", "app", "namespace used in the example key prefix")
	routesCmd.Flags().StringVar(&routesPreset, "preset", "",
		"show a built-in preset instead of the configured table ("+strings.Join(config.PresetNames(), ", ")+")")
}

func runRoutes(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	var table config.RouteTable
	if routesPreset != "" {
		table, err = config.Preset(routesPreset)
	} else {
		table, err = settings.GetRoutes()
	}
	if err != nil {
		return failure.Configuration(err, "invalid route table")
	}

	if len(args) == 1 {
		route, err := table.Match(args[0])
		if err != nil {
			return failure.Configuration(err, "no route")
		}
		table = config.RouteTable{route}
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STAGE\tBUCKET SUFFIX\tKEY PREFIX\tINVERTED")
	for _, r := range table {
		fmt.Fprintf(w, "%s\t%q\t%s/\t%t\n", r.Stage, r.BucketSuffix, r.KeyPrefixFor(routesNamespace), r.Inverted)
	}
	return w.Flush()
}
