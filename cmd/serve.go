package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nexobotics/nova/api"
	"github.com/nexobotics/nova/internal/app"
	"github.com/nexobotics/nova/internal/config"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(parent context.Context) error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting nova", "version", Version)

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	// Construct the default pipeline up front so bootstrap seeding and
	// collection creation happen at startup, not on the first request.
	pipeline, err := a.Pipelines.Get(ctx, cfg.Collection)
	if err != nil {
		return fmt.Errorf("initializing pipeline: %w", err)
	}

	server := api.NewServer(api.Config{
		CORSOrigins: cfg.CORSOrigins,
		TopK:        cfg.TopK,
	}, pipeline, a.Sessions, a.DBPool, logger)

	addr := serveAddr
	if addr == "" {
		addr = cfg.Addr
	}
	return server.Run(ctx, addr)
}
