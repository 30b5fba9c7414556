package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fxding/forks/pkg/config"
	"github.com/fxding/forks/pkg/logger"
	"github.com/fxding/forks/pkg/presenter"
	"github.com/fxding/forks/pkg/telemetry"
)

// exitCancelled is the conventional exit status after SIGINT.
const exitCancelled = 130

var (
	cfg             config.Config
	shutdownTracing = func(context.Context) error { return nil }
)

func init() {
	if err := config.Init(viper.GetViper()); err != nil {
		presenter.Error(err, "Failed to load configuration")
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "forks",
	Short: "Manage agent skills across coding agents",
	Long: `forks installs SKILL.md skills from git repositories or local folders into the
skill directories of coding agents, remembers where every skill came from, and
tells you when the source has moved on.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}
		cfg = loaded

		if err := logger.Configure(cfg.LogLevel, cfg.LogFormat); err != nil {
			return err
		}

		if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
			presenter.SetQuiet(true)
		}

		shutdown, err := initTracing(cmd.Context())
		if err != nil {
			logger.G(cmd.Context()).WithError(err).Warn("failed to initialise tracing")
			return nil
		}
		shutdownTracing = shutdown
		return nil
	},
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

func main() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (panic, fatal, error, warn, info, debug, trace)")
	rootCmd.PersistentFlags().String("log-format", "fmt", "Log format (fmt or json)")
	rootCmd.PersistentFlags().String("root", "", "Registry root directory (default ~/.forks)")
	rootCmd.PersistentFlags().StringP("format", "o", "table", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress informational output")
	rootCmd.PersistentFlags().Bool("tracing-enabled", false, "Export OpenTelemetry traces")
	rootCmd.PersistentFlags().String("tracing-sampler", telemetry.SamplerAlways, "Tracing sampler (always, never, ratio)")
	rootCmd.PersistentFlags().Float64("tracing-ratio", 1, "Sampling ratio for the ratio sampler")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("registry_root", rootCmd.PersistentFlags().Lookup("root"))
	viper.BindPFlag("tracing.enabled", rootCmd.PersistentFlags().Lookup("tracing-enabled"))
	viper.BindPFlag("tracing.sampler", rootCmd.PersistentFlags().Lookup("tracing-sampler"))
	viper.BindPFlag("tracing.ratio", rootCmd.PersistentFlags().Lookup("tracing-ratio"))

	rootCmd.AddCommand(skillCmd)
	rootCmd.AddCommand(sourceCmd)
	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(registryCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if shutdownErr := shutdownTracing(context.Background()); shutdownErr != nil {
		logger.G(ctx).WithError(shutdownErr).Debug("failed to flush traces")
	}

	if err != nil {
		exitWithError(err, "")
	}
}
