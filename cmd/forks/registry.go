package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fxding/forks/pkg/presenter"
	"github.com/fxding/forks/pkg/registry"
	"github.com/fxding/forks/pkg/staleness"
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Maintain the registry under ~/.forks",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var registryRefreshCmd = withTracing(&cobra.Command{
	Use:   "refresh",
	Short: "Check every tracked source for upstream changes",
	Long: `Check every source in the registry for new upstream commits and record
the result. Sources checked recently are skipped unless --force is given.
Records whose skill is no longer installed anywhere are pruned.`,
	Run: func(cmd *cobra.Command, _ []string) {
		force, _ := cmd.Flags().GetBool("force")
		svc := mustService(cmd)

		report, _, err := svc.RefreshRegistry(cmd.Context(), force)
		if err != nil {
			exitWithError(err, "Failed to refresh registry")
		}
		emit(cmd, report, func() { printReport(report) })
	},
})

var registrySchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of the registry files",
	Run: func(_ *cobra.Command, _ []string) {
		b, err := registry.Schema()
		if err != nil {
			exitWithError(err, "Failed to generate schema")
		}
		fmt.Fprintln(presenter.Stdout(), string(b))
	},
}

func printReport(report staleness.Report) {
	presenter.Success(fmt.Sprintf("Checked %s, %d skipped, %d pruned",
		presenter.Count(len(report.Checked), "source"), len(report.Skipped), len(report.Pruned)))
	if len(report.Updates) > 0 {
		presenter.Warning(fmt.Sprintf("Updates available: %s", strings.Join(report.Updates, ", ")))
	}
	if report.Err != nil {
		presenter.Warning(fmt.Sprintf("Some sources could not be checked: %v", report.Err))
	}
}

func init() {
	registryRefreshCmd.Flags().Bool("force", false, "Check every source regardless of when it was last checked")

	registryCmd.AddCommand(registryRefreshCmd)
	registryCmd.AddCommand(registrySchemaCmd)
}
