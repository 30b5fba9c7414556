package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fxding/forks/pkg/presenter"
	"github.com/fxding/forks/pkg/registry"
	"github.com/fxding/forks/pkg/skills"
)

var sourceCmd = &cobra.Command{
	Use:   "source",
	Short: "Manage the sources skills are installed from",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var sourceListCmd = withTracing(&cobra.Command{
	Use:   "list",
	Short: "List tracked sources and sources with installed skills",
	Run: func(cmd *cobra.Command, _ []string) {
		svc := mustService(cmd)
		snap, err := svc.Snapshot(cmd.Context())
		if err != nil {
			exitWithError(err, "Failed to list sources")
		}

		filter := mustFilter(cmd)
		list := []registry.Source{}
		for _, src := range snap.Sources {
			if filter.Match(append([]string{src.ID}, src.Skills...)...) {
				list = append(list, src)
			}
		}

		emit(cmd, list, func() {
			if len(list) == 0 {
				presenter.Info("No sources.")
				return
			}
			rows := make([][]string, 0, len(list))
			for _, src := range list {
				rows = append(rows, []string{src.ID, string(src.Type), fmt.Sprintf("%d", len(src.Skills)), yesNo(src.UpdateAvailable), formatTime(src.LastChecked)})
			}
			presenter.Table([]string{"SOURCE", "TYPE", "SKILLS", "UPDATE", "CHECKED"}, rows)
		})
	},
})

var sourceAddCmd = withTracing(&cobra.Command{
	Use:   "add <source>",
	Short: "Clone a source and track it without installing anything",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		svc := mustService(cmd)
		if _, err := svc.AddSource(cmd.Context(), args[0]); err != nil {
			exitWithError(err, "Failed to add source")
		}
		presenter.Success(fmt.Sprintf("Tracking %s", args[0]))
	},
})

var sourceRemoveCmd = withTracing(&cobra.Command{
	Use:   "remove <source>",
	Short: "Stop tracking a source, keeping its cache and installed skills",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		svc := mustService(cmd)
		if _, err := svc.RemoveSource(cmd.Context(), args[0]); err != nil {
			exitWithError(err, "Failed to remove source")
		}
		presenter.Success(fmt.Sprintf("No longer tracking %s", args[0]))
	},
})

var sourceDeleteCmd = withTracing(&cobra.Command{
	Use:   "delete <source>",
	Short: "Forget a source, its skill records and its cache",
	Long: `Delete a source from the registry: every skill record installed from it is
removed, the source is untracked, and a remote source's cache directory is
deleted. Installed skill copies and local folders are left alone.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			if !presenter.Confirm(fmt.Sprintf("Delete %s and its registry records?", args[0])) {
				presenter.Info("Aborted.")
				return
			}
		}

		svc := mustService(cmd)
		_, removed, err := svc.DeleteSource(cmd.Context(), args[0])
		if len(removed) > 0 {
			presenter.Info(fmt.Sprintf("Removed records: %s", strings.Join(removed, ", ")))
		}
		if err != nil {
			exitWithError(err, "Failed to delete source")
		}
		presenter.Success(fmt.Sprintf("Deleted %s", args[0]))
	},
})

var sourceBrowseCmd = withTracing(&cobra.Command{
	Use:   "browse <source>",
	Short: "List the skills a source contains without tracking it",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		svc := mustService(cmd)
		ctx := cmd.Context()

		var (
			found []skills.Skill
			err   error
		)
		if cached, _ := cmd.Flags().GetBool("cached"); cached {
			found, err = svc.SourceSkills(ctx, args[0])
		} else {
			found, err = svc.Browse(ctx, args[0])
		}
		if err != nil {
			exitWithError(err, "Failed to browse source")
		}

		emit(cmd, found, func() {
			rows := make([][]string, 0, len(found))
			for _, sk := range found {
				agents := strings.Join(sk.Agents, ", ")
				if agents == "" {
					agents = "-"
				}
				rows = append(rows, []string{sk.Name, agents, sk.Description})
			}
			presenter.Table([]string{"NAME", "AGENTS", "DESCRIPTION"}, rows)
		})
	},
})

var sourceUpdateCmd = withTracing(&cobra.Command{
	Use:   "update <source>",
	Short: "Pull a source once and reinstall every skill installed from it",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		svc := mustService(cmd)
		res, err := svc.UpdateAllInSource(cmd.Context(), args[0])
		if err != nil {
			exitWithError(err, "Failed to update source")
		}
		printOutput(res.Output)
		presenter.Success(fmt.Sprintf("Updated skills from %s", args[0]))
	},
})

func init() {
	sourceListCmd.Flags().StringP("filter", "f", "", "Glob or substring matched against source and skill names")
	sourceDeleteCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	sourceBrowseCmd.Flags().Bool("cached", false, "Read the registry cache instead of a fresh clone")

	sourceCmd.AddCommand(sourceListCmd)
	sourceCmd.AddCommand(sourceAddCmd)
	sourceCmd.AddCommand(sourceRemoveCmd)
	sourceCmd.AddCommand(sourceDeleteCmd)
	sourceCmd.AddCommand(sourceBrowseCmd)
	sourceCmd.AddCommand(sourceUpdateCmd)
}
