// Package app assembles the application from its parts: config, database,
// Genkit clients, knowledge store, pipelines, and sessions.
package app

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nexobotics/nova/internal/config"
	"github.com/nexobotics/nova/internal/gemini"
	"github.com/nexobotics/nova/internal/knowledge"
	"github.com/nexobotics/nova/internal/log"
	"github.com/nexobotics/nova/internal/rag"
	"github.com/nexobotics/nova/internal/session"
)

// App holds the wired application.
type App struct {
	Config *config.Config
	Logger log.Logger

	// Core services
	DBPool    *pgxpool.Pool
	Embedder  *gemini.Embedder
	Generator *gemini.Generator
	Knowledge *knowledge.Store
	Pipelines *rag.Registry
	Sessions  *session.Store

	// Lifecycle management
	otelCleanup func()
	cancel      context.CancelFunc
}

// Close gracefully shuts down all resources.
func (a *App) Close() error {
	a.Logger.Info("shutting down application")

	if a.cancel != nil {
		a.cancel()
	}

	if a.DBPool != nil {
		a.DBPool.Close()
		a.Logger.Info("database pool closed")
	}

	if a.otelCleanup != nil {
		a.otelCleanup()
	}

	return nil
}
