package commands

import (
	"context"

	"github.com/spf13/cobra"

	"stockmatrix/internal/app"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only JSON API",
		Long: `Starts the HTTP API over the store. No endpoint writes.

Endpoints:
  GET /healthz
  GET /api/v1/sheets
  GET /api/v1/sheets/{name}
  GET /api/v1/sheets/{name}/header
  GET /api/v1/sheets/{name}/provenance
  GET /api/v1/symbols
  GET /api/v1/runs
  GET /metrics

Example:
  matrixctl serve --port 8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				if port > 0 {
					a.Config.Server.Port = port
				}
				return a.Run(ctx)
			})
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (default: server.port)")
	return cmd
}
