package cmd

import (
	"github.com/spf13/cobra"
)

func newServeCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serves the query API and runs scheduled crawls",
		Long: `Starts the HTTP API. When schedule.enabled is set, crawls also run on the
configured cron expression. Blocks until SIGINT or SIGTERM.`,
		RunE: withApp(cfgFile, func(cmd *cobra.Command, app App) error {
			return app.Run(cmd.Context())
		}),
	}
}
