package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/fxding/forks/pkg/installed"
	"github.com/fxding/forks/pkg/presenter"
	"github.com/fxding/forks/pkg/preview"
	"github.com/fxding/forks/pkg/service"
	"github.com/fxding/forks/pkg/skills"
)

// SkillInstallConfig holds the flags of `skill install`.
type SkillInstallConfig struct {
	Skills     []string
	All        bool
	Agents     []string
	ProjectDir string
}

// NewSkillInstallConfig returns the defaults.
func NewSkillInstallConfig() *SkillInstallConfig {
	return &SkillInstallConfig{}
}

var skillCmd = &cobra.Command{
	Use:   "skill",
	Short: "Install, inspect and update skills",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var skillListCmd = withTracing(&cobra.Command{
	Use:   "list",
	Short: "List installed skills across all agents",
	Long: `List every skill found in the global skill directory of any known agent,
merged by name, with the agents hosting it and the source it came from.`,
	Run: func(cmd *cobra.Command, _ []string) {
		svc := mustService(cmd)
		snap, err := svc.Snapshot(cmd.Context())
		if err != nil {
			exitWithError(err, "Failed to list skills")
		}

		agent, _ := cmd.Flags().GetString("agent")
		if agent != "" {
			def, err := svc.Catalog().Lookup(agent)
			if err != nil {
				exitWithError(err, "Invalid --agent")
			}
			agent = def.CLIName
		}
		updates, _ := cmd.Flags().GetBool("updates")
		filter := mustFilter(cmd)

		var list []installed.Skill
		for _, sk := range snap.Installed {
			if !filter.Match(sk.Name, sk.Source) {
				continue
			}
			if agent != "" && !sk.HasAgent(agent) {
				continue
			}
			if updates && !sk.UpdateAvailable {
				continue
			}
			list = append(list, sk)
		}
		if list == nil {
			list = []installed.Skill{}
		}

		emit(cmd, list, func() {
			if len(list) == 0 {
				presenter.Info("No skills installed.")
				return
			}
			rows := make([][]string, 0, len(list))
			for _, sk := range list {
				source := sk.Source
				if source == "" {
					source = "-"
				}
				rows = append(rows, []string{sk.Name, strings.Join(sk.Agents, ", "), source, yesNo(sk.UpdateAvailable), formatTime(sk.LastChecked)})
			}
			presenter.Table([]string{"NAME", "AGENTS", "SOURCE", "UPDATE", "CHECKED"}, rows)
		})
	},
})

var skillInstallCmd = withTracing(&cobra.Command{
	Use:   "install <source>",
	Short: "Install skills from a git repository or local folder",
	Long: `Install skills from a source into one or more agents.

A source is a git URL, an owner/repo shorthand, or a local folder. Remote
sources are cloned into the registry cache first.

Examples:
  forks skill install acme/toolkit --skill pdf-tools --agent claude-code
  forks skill install acme/toolkit --all --agent claude-code --agent cursor
  forks skill install ./my-skills --skill notes --agent codex --project .`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		config := getSkillInstallConfigFromFlags(cmd)
		svc := mustService(cmd)
		ctx := cmd.Context()

		names := config.Skills
		if config.All {
			found, err := svc.Browse(ctx, args[0])
			if err != nil {
				exitWithError(err, "Failed to discover skills")
			}
			names = skills.Names(found)
		}
		if len(names) == 0 {
			exitWithError(errors.New("pass --skill at least once or --all"), "Nothing to install")
		}

		projectDir := config.ProjectDir
		if projectDir != "" {
			abs, err := filepath.Abs(projectDir)
			if err != nil {
				exitWithError(err, "Invalid --project")
			}
			projectDir = abs
		}

		res, err := svc.Install(ctx, service.InstallRequest{
			Source:     args[0],
			Skills:     names,
			Agents:     config.Agents,
			ProjectDir: projectDir,
		})
		if err != nil {
			exitWithError(err, "Failed to install skills")
		}
		printOutput(res.Output)
		presenter.Success(fmt.Sprintf("Installed %s for %s", strings.Join(names, ", "), strings.Join(config.Agents, ", ")))
	},
})

var skillUninstallCmd = withTracing(&cobra.Command{
	Use:   "uninstall <name> --agent <agent>",
	Short: "Remove a skill from one agent",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		agent, _ := cmd.Flags().GetString("agent")
		svc := mustService(cmd)

		res, err := svc.Uninstall(cmd.Context(), args[0], agent)
		if err != nil {
			exitWithError(err, "Failed to uninstall skill")
		}
		printOutput(res.Output)
		presenter.Success(fmt.Sprintf("Removed %s from %s", args[0], svc.Catalog().DisplayName(agent)))
	},
})

var skillUpdateCmd = withTracing(&cobra.Command{
	Use:   "update <name> --agent <agent>",
	Short: "Pull the skill's source and reinstall it for one agent",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		agent, _ := cmd.Flags().GetString("agent")
		svc := mustService(cmd)

		res, err := svc.UpdateSkill(cmd.Context(), args[0], agent)
		if err != nil {
			exitWithError(err, "Failed to update skill")
		}
		printOutput(res.Output)
		presenter.Success(fmt.Sprintf("Updated %s", args[0]))
	},
})

var skillCheckCmd = withTracing(&cobra.Command{
	Use:   "check <name>",
	Short: "Check whether the skill's source has new commits",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		svc := mustService(cmd)
		available, err := svc.CheckSkill(cmd.Context(), args[0])
		if err != nil {
			exitWithError(err, "Failed to check skill")
		}
		emit(cmd, map[string]any{"name": args[0], "updateAvailable": available}, func() {
			if available {
				presenter.Warning(fmt.Sprintf("%s has an update available", args[0]))
			} else {
				presenter.Success(fmt.Sprintf("%s is up to date", args[0]))
			}
		})
	},
})

var skillShowCmd = withTracing(&cobra.Command{
	Use:   "show <name>",
	Short: "Show a skill's SKILL.md",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		svc := mustService(cmd)
		path, err := svc.SkillMarkdownPath(cmd.Context(), args[0])
		if err != nil {
			exitWithError(err, "Failed to locate SKILL.md")
		}
		doc, err := preview.RenderFile(path)
		if err != nil {
			exitWithError(err, "Failed to render SKILL.md")
		}

		if asHTML, _ := cmd.Flags().GetBool("html"); asHTML {
			fmt.Fprint(presenter.Stdout(), preview.Page(doc))
			return
		}
		emit(cmd, doc, func() {
			presenter.Section(doc.Name())
			for _, k := range doc.FrontMatterKeys() {
				if k == "name" {
					continue
				}
				presenter.Info(fmt.Sprintf("%s: %v", presenter.Highlight(k), doc.FrontMatter[k]))
			}
			presenter.Info(presenter.Dim(path))
			presenter.Separator()
			fmt.Fprint(presenter.Stdout(), doc.Body)
		})
	},
})

var skillDiffCmd = withTracing(&cobra.Command{
	Use:   "diff <name> --agent <agent>",
	Short: "Diff the cached SKILL.md against the installed copy",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		agent, _ := cmd.Flags().GetString("agent")
		svc := mustService(cmd)
		diff, err := svc.DiffSkill(cmd.Context(), args[0], agent)
		if err != nil {
			exitWithError(err, "Failed to diff skill")
		}
		if diff == "" {
			presenter.Success("No differences")
			return
		}
		fmt.Fprint(presenter.Stdout(), diff)
	},
})

var skillPathCmd = withTracing(&cobra.Command{
	Use:   "path <name>",
	Short: "Print the path of a skill's SKILL.md",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		svc := mustService(cmd)
		path, err := svc.SkillMarkdownPath(cmd.Context(), args[0])
		if err != nil {
			exitWithError(err, "Failed to locate SKILL.md")
		}
		fmt.Fprintln(presenter.Stdout(), path)
	},
})

func init() {
	skillListCmd.Flags().String("agent", "", "Only skills installed for this agent")
	skillListCmd.Flags().Bool("updates", false, "Only skills with an update available")
	skillListCmd.Flags().StringP("filter", "f", "", "Glob or substring matched against name and source")

	defaults := NewSkillInstallConfig()
	skillInstallCmd.Flags().StringSliceP("skill", "s", defaults.Skills, "Skill to install (repeatable)")
	skillInstallCmd.Flags().Bool("all", defaults.All, "Install every skill the source contains")
	skillInstallCmd.Flags().StringSliceP("agent", "a", defaults.Agents, "Agent to install for, by CLI id or name (repeatable)")
	skillInstallCmd.Flags().StringP("project", "p", defaults.ProjectDir, "Install into this project directory instead of globally")
	skillInstallCmd.MarkFlagRequired("agent")

	for _, c := range []*cobra.Command{skillUninstallCmd, skillUpdateCmd, skillDiffCmd} {
		c.Flags().StringP("agent", "a", "", "Agent CLI id or name")
		c.MarkFlagRequired("agent")
	}

	skillShowCmd.Flags().Bool("html", false, "Print a standalone HTML page")

	skillCmd.AddCommand(skillListCmd)
	skillCmd.AddCommand(skillInstallCmd)
	skillCmd.AddCommand(skillUninstallCmd)
	skillCmd.AddCommand(skillUpdateCmd)
	skillCmd.AddCommand(skillCheckCmd)
	skillCmd.AddCommand(skillShowCmd)
	skillCmd.AddCommand(skillDiffCmd)
	skillCmd.AddCommand(skillPathCmd)
}

func getSkillInstallConfigFromFlags(cmd *cobra.Command) *SkillInstallConfig {
	config := NewSkillInstallConfig()
	if names, err := cmd.Flags().GetStringSlice("skill"); err == nil {
		config.Skills = names
	}
	if all, err := cmd.Flags().GetBool("all"); err == nil {
		config.All = all
	}
	if agents, err := cmd.Flags().GetStringSlice("agent"); err == nil {
		config.Agents = agents
	}
	if dir, err := cmd.Flags().GetString("project"); err == nil {
		config.ProjectDir = dir
	}
	return config
}

// printOutput echoes install command output when not quiet.
func printOutput(out string) {
	out = strings.TrimSpace(out)
	if out == "" || presenter.IsQuiet() {
		return
	}
	presenter.Info(presenter.Dim(out))
}
