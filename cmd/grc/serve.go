package main

import (
	"github.com/spf13/cobra"

	"github.com/heartmarshall/grc-backend/internal/app"
	"github.com/heartmarshall/grc-backend/internal/transport/rest"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the operational HTTP server (health and /metrics)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := bootstrap(ctx, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			deps := rest.ServerDeps{
				Checks:  rt.backend.HealthChecks(),
				Version: app.BuildVersion(),
				Log:     rt.log,
			}
			if rt.cfg.Metrics.Enabled {
				deps.Gatherer = rt.backend.Registry
				deps.Recorder = rt.backend.Metrics
			}
			srv := rest.NewServer(rt.cfg.Server, rest.NewHandler(deps), rt.log)
			return srv.Run(ctx)
		},
	}
}
