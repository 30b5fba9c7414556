package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fxding/forks/pkg/presenter"
)

var searchCmd = withTracing(&cobra.Command{
	Use:   "search <query>",
	Short: "Search the public skill directory",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		query := strings.Join(args, " ")
		results, err := newSearchClient().Search(cmd.Context(), query)
		if err != nil {
			exitWithError(err, "Search failed")
		}

		emit(cmd, results, func() {
			if len(results) == 0 {
				presenter.Info(fmt.Sprintf("No skills match %q.", query))
				return
			}
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				rows = append(rows, []string{r.Name, r.Source(), fmt.Sprintf("%d", r.Installs)})
			}
			presenter.Table([]string{"NAME", "SOURCE", "INSTALLS"}, rows)
		})
	},
})
