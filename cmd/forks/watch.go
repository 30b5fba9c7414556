package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fxding/forks/pkg/logger"
	"github.com/fxding/forks/pkg/presenter"
	"github.com/fxding/forks/pkg/watcher"
)

var watchCmd = withTracing(&cobra.Command{
	Use:   "watch",
	Short: "Re-list installed skills whenever an agent skill directory changes",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		svc := mustService(cmd)
		debounce, _ := cmd.Flags().GetDuration("debounce")

		roots := []string{cfg.RegistryRoot}
		for _, def := range svc.Catalog().All() {
			roots = append(roots, def.GlobalDir(svc.Home()))
		}

		w := watcher.New(roots, debounce)
		w.OnChange = func(ctx context.Context, paths []string) {
			logger.G(ctx).WithField("paths", paths).Debug("skill directories changed")
			snap, err := svc.Refresh(ctx)
			if err != nil {
				presenter.Error(err, "Failed to rescan skills")
				return
			}
			presenter.Section(presenter.Count(len(snap.Installed), "skill") + " installed")
			rows := make([][]string, 0, len(snap.Installed))
			for _, sk := range snap.Installed {
				rows = append(rows, []string{sk.Name, strings.Join(sk.Agents, ", "), yesNo(sk.UpdateAvailable)})
			}
			presenter.Table([]string{"NAME", "AGENTS", "UPDATE"}, rows)
		}

		presenter.Info("Watching agent skill directories. Press Ctrl-C to stop.")
		if err := w.Run(ctx); err != nil {
			exitWithError(err, "Failed to watch")
		}
	},
})

func init() {
	watchCmd.Flags().Duration("debounce", watcher.DefaultDebounce, "Wait this long after the last change before rescanning")
}
