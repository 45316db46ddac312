// Package cmd contains the nova CLI commands.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nexobotics/nova/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "nova",
	Short: "NOVA - Nexobotics customer service assistant",
	Long: `NOVA is an AI customer service assistant backed by a retrieval-augmented
knowledge base. Answers come from indexed company knowledge, grounded by
vector search over PostgreSQL.

Run "nova serve" to start the HTTP API, or "nova ingest" to load
knowledge into the database.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the process logger. DEBUG in the environment enables
// debug level.
func newLogger() log.Logger {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level, JSON: true})
	slog.SetDefault(logger)
	return logger
}
