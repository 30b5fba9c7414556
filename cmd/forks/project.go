package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fxding/forks/pkg/presenter"
	"github.com/fxding/forks/pkg/skills"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Track project directories and their project-level skills",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var projectListCmd = withTracing(&cobra.Command{
	Use:   "list",
	Short: "List tracked projects",
	Run: func(cmd *cobra.Command, _ []string) {
		store := newProjectStore(mustService(cmd))
		list, err := store.List(cmd.Context())
		if err != nil {
			exitWithError(err, "Failed to list projects")
		}
		emit(cmd, list, func() {
			if len(list) == 0 {
				presenter.Info("No projects.")
				return
			}
			rows := make([][]string, 0, len(list))
			for _, p := range list {
				rows = append(rows, []string{p.Name, p.Path, p.ID})
			}
			presenter.Table([]string{"NAME", "PATH", "ID"}, rows)
		})
	},
})

var projectAddCmd = withTracing(&cobra.Command{
	Use:   "add <dir>",
	Short: "Track a project directory",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store := newProjectStore(mustService(cmd))
		p, err := store.Add(cmd.Context(), args[0])
		if err != nil {
			exitWithError(err, "Failed to add project")
		}
		presenter.Success(fmt.Sprintf("Tracking %s (%s)", p.Name, p.Path))
	},
})

var projectRemoveCmd = withTracing(&cobra.Command{
	Use:   "remove <id-or-dir>",
	Short: "Stop tracking a project",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store := newProjectStore(mustService(cmd))
		if err := store.Remove(cmd.Context(), args[0]); err != nil {
			exitWithError(err, "Failed to remove project")
		}
		presenter.Success(fmt.Sprintf("No longer tracking %s", args[0]))
	},
})

var projectSkillsCmd = withTracing(&cobra.Command{
	Use:   "skills <id-or-dir>",
	Short: "List the skills installed in a project, per agent",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		svc := mustService(cmd)
		store := newProjectStore(svc)

		p, err := store.Get(ctx, args[0])
		if err != nil {
			exitWithError(err, "Failed to find project")
		}
		list, err := store.Skills(ctx, p)
		if err != nil {
			exitWithError(err, "Failed to scan project")
		}

		emit(cmd, list, func() {
			if len(list) == 0 {
				presenter.Info(fmt.Sprintf("No agent skill directories in %s.", p.Path))
				return
			}
			for _, as := range list {
				presenter.Section(svc.Catalog().DisplayName(as.Agent))
				if len(as.Skills) == 0 {
					presenter.Info(presenter.Dim("(none)"))
					continue
				}
				presenter.Info(strings.Join(skills.Names(as.Skills), "\n"))
			}
		})
	},
})

var projectUninstallCmd = withTracing(&cobra.Command{
	Use:   "uninstall <id-or-dir> <skill> --agent <agent>",
	Short: "Remove a skill from a project's agent directory",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		agent, _ := cmd.Flags().GetString("agent")
		store := newProjectStore(mustService(cmd))

		p, err := store.Get(ctx, args[0])
		if err != nil {
			exitWithError(err, "Failed to find project")
		}
		if err := store.UninstallSkill(ctx, p, agent, args[1]); err != nil {
			exitWithError(err, "Failed to uninstall skill")
		}
		presenter.Success(fmt.Sprintf("Removed %s from %s", args[1], p.Name))
	},
})

func init() {
	projectUninstallCmd.Flags().StringP("agent", "a", "", "Agent CLI id or name")
	projectUninstallCmd.MarkFlagRequired("agent")

	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectAddCmd)
	projectCmd.AddCommand(projectRemoveCmd)
	projectCmd.AddCommand(projectSkillsCmd)
	projectCmd.AddCommand(projectUninstallCmd)
}
