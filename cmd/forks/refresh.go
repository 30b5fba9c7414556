package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/fxding/forks/pkg/logger"
	"github.com/fxding/forks/pkg/service"
	"github.com/fxding/forks/pkg/staleness"
)

var refreshCmd = withTracing(&cobra.Command{
	Use:   "refresh",
	Short: "Refresh update state once, or keep sweeping with --watch",
	Long: `Refresh runs one throttled registry refresh. With --watch it keeps running
and sweeps on the configured interval until interrupted.`,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		svc := mustService(cmd)

		if watch, _ := cmd.Flags().GetBool("watch"); !watch {
			report, _, err := svc.RefreshRegistry(ctx, false)
			if err != nil {
				exitWithError(err, "Failed to refresh")
			}
			emit(cmd, report, func() { printReport(report) })
			return
		}

		interval := cfg.Sweep.Interval
		if d, _ := cmd.Flags().GetDuration("interval"); d > 0 {
			interval = d
		}
		sweeper := svc.Sweeper(interval, func(ctx context.Context, report staleness.Report, snap *service.Snapshot) {
			logger.G(ctx).WithField("checked", len(report.Checked)).
				WithField("updates", len(report.Updates)).
				WithField("sources", len(snap.Sources)).
				Debug("sweep finished")
			if len(report.Checked) > 0 || len(report.Pruned) > 0 {
				printReport(report)
			}
		})
		logger.G(ctx).WithField("interval", interval).Info("sweeping registry until interrupted")
		if err := sweeper.Run(ctx); err != nil {
			exitWithError(err, "Sweep stopped")
		}
	},
})

func init() {
	refreshCmd.Flags().BoolP("watch", "w", false, "Keep sweeping on an interval")
	refreshCmd.Flags().Duration("interval", 0, "Sweep interval (defaults to sweep.interval)")
}
