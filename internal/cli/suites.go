package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/apiprobe/internal/harness"
	"github.com/roach88/apiprobe/internal/probes"
	"github.com/roach88/apiprobe/internal/report"
)

// NewSuitesCommand creates the suites command, which lists the plan in run
// order. The names are the ones --only and --skip accept.
func NewSuitesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "suites",
		Short:         "List the probe suites in run order",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			names := harness.Names(probes.Plan())
			if rootOpts.Format == "json" {
				return formatter.Success(names)
			}
			for i, name := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "%2d. %-12s %s\n", i+1, name, report.Title(name))
			}
			return nil
		},
	}
}
