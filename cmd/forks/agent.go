package main

import (
	"github.com/spf13/cobra"

	"github.com/fxding/forks/pkg/agents"
	"github.com/fxding/forks/pkg/osutil"
	"github.com/fxding/forks/pkg/presenter"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Inspect the agent tools forks installs skills for",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var agentListCmd = withTracing(&cobra.Command{
	Use:   "list",
	Short: "List known agents and their skill directories",
	Run: func(cmd *cobra.Command, _ []string) {
		home, err := osutil.HomeDir()
		if err != nil {
			exitWithError(err, "Failed to resolve home directory")
		}
		catalog := agents.Default()

		defs := catalog.All()
		if detected, _ := cmd.Flags().GetBool("detected"); detected {
			defs = catalog.Detected(home)
		}
		filter := mustFilter(cmd)
		list := []agents.Definition{}
		for _, d := range defs {
			if filter.Match(d.CLIName, d.Name) {
				list = append(list, d)
			}
		}

		emit(cmd, list, func() {
			rows := make([][]string, 0, len(list))
			for _, d := range list {
				rows = append(rows, []string{d.CLIName, d.Name, d.ProjectPath, d.GlobalDir(home)})
			}
			presenter.Table([]string{"ID", "NAME", "PROJECT", "GLOBAL"}, rows)
		})
	},
})

func init() {
	agentListCmd.Flags().Bool("detected", false, "Only agents whose config directory exists")
	agentListCmd.Flags().StringP("filter", "f", "", "Glob or substring matched against id and name")

	agentCmd.AddCommand(agentListCmd)
}
