/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ssargent/tablekv/pkg/api"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the admin REST API server",
	Long: `Start the tablekv admin REST API.

Routes under /api/v1 require the X-API-Key header when an API key is
configured. /health and /metrics are always open.

Examples:
  tablekv serve
  tablekv serve --port 9000 --bind 0.0.0.0
  tablekv serve --api-key mysecretkey`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := container.Config()
		if cmd.Flags().Changed("port") {
			cfg.Server.Port, _ = cmd.Flags().GetInt("port")
		}
		if cmd.Flags().Changed("bind") {
			cfg.Server.Bind, _ = cmd.Flags().GetString("bind")
		}
		if cmd.Flags().Changed("api-key") {
			cfg.Server.APIKey, _ = cmd.Flags().GetString("api-key")
		}

		db, err := container.DB()
		if err != nil {
			return err
		}

		log := container.Logger()
		if cfg.Server.APIKey == "" {
			log.Warn().Msg("no API key configured, /api/v1 is open")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cmd.Printf("🚀 Starting tablekv server on %s:%d\n", cfg.Server.Bind, cfg.Server.Port)
		cmd.Printf("📁 Data directory: %s\n", cfg.DataDir)

		return api.StartServer(ctx, db, api.ServerConfig{
			Bind:   cfg.Server.Bind,
			Port:   cfg.Server.Port,
			APIKey: cfg.Server.APIKey,
		}, api.Dependencies{
			Logger:   log,
			Metrics:  container.Metrics(),
			Gatherer: container.Registry(),
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	serveCmd.Flags().String("bind", "127.0.0.1", "Address to bind server to")
	serveCmd.Flags().String("api-key", "", "API key for /api/v1 (overrides the config file)")
}
