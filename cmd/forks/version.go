package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fxding/forks/pkg/presenter"
	"github.com/fxding/forks/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		info := version.Get()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			out, err := info.JSON()
			if err != nil {
				exitWithError(err, "Failed to encode version")
			}
			fmt.Fprintln(presenter.Stdout(), out)
			return
		}
		fmt.Fprintln(presenter.Stdout(), info.String())
	},
}

func init() {
	versionCmd.Flags().Bool("json", false, "Print as JSON")
}
