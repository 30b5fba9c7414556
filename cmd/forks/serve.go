package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fxding/forks/pkg/logger"
	"github.com/fxding/forks/pkg/server"
)

var serveCmd = withTracing(&cobra.Command{
	Use:   "serve",
	Short: "Serve the skill read model over HTTP",
	Long: `Serve exposes installed skills, sources, agents and search as a JSON API
for dashboards and editor integrations.`,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		svc := mustService(cmd)

		srv, err := server.New(&server.Config{Host: cfg.Serve.Host, Port: cfg.Serve.Port}, svc, newSearchClient())
		if err != nil {
			exitWithError(err, "Invalid server configuration")
		}
		sweeper := svc.Sweeper(cfg.Sweep.Interval, nil)
		go func() {
			if err := sweeper.Run(ctx); err != nil {
				logger.G(ctx).WithError(err).Warn("registry sweep stopped")
			}
		}()

		logger.G(ctx).WithField("address", cfg.Serve.Host).WithField("port", cfg.Serve.Port).Info("starting server")
		if err := srv.Start(ctx); err != nil {
			exitWithError(err, "Server failed")
		}
	},
})

func init() {
	serveCmd.Flags().String("host", "localhost", "Host to bind to")
	serveCmd.Flags().Int("port", 8787, "Port to listen on")

	viper.BindPFlag("serve.host", serveCmd.Flags().Lookup("host"))
	viper.BindPFlag("serve.port", serveCmd.Flags().Lookup("port"))
}
