package main

import (
	"github.com/dmitrijs2005/academyhub/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the server",
	Long:  `Run the HTTP API, the realtime relay, the gRPC health endpoint and the background jobs until interrupted.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		app, err := server.NewApp(cmd.Context(), cfg, logger)
		if err != nil {
			logger.Error(cmd.Context(), "failed to start", "error", err)
			return err
		}
		return app.Run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
