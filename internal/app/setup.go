package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nexobotics/nova/db"
	"github.com/nexobotics/nova/internal/config"
	"github.com/nexobotics/nova/internal/database"
	"github.com/nexobotics/nova/internal/gemini"
	"github.com/nexobotics/nova/internal/knowledge"
	"github.com/nexobotics/nova/internal/log"
	"github.com/nexobotics/nova/internal/observability"
	"github.com/nexobotics/nova/internal/rag"
	"github.com/nexobotics/nova/internal/session"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup; call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	// Tracing first so Genkit's TracerProvider is ready before Init.
	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool

	g, err := provideGenkit(ctx)
	if err != nil {
		return nil, err
	}

	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}

	clientCfg := gemini.ClientConfig{RequestsPerMinute: cfg.GeminiRPM}

	// #nosec G115 -- dimension is validated to [128, 3072] by cfg.Validate
	a.Embedder, err = gemini.NewEmbedder(embedder, int32(cfg.EmbedderDimension), clientCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	a.Generator, err = gemini.NewGenerator(g, cfg.FullGenerationModel(), clientCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating generator: %w", err)
	}

	a.Knowledge, err = knowledge.New(pool, logger)
	if err != nil {
		return nil, fmt.Errorf("creating knowledge store: %w", err)
	}

	a.Pipelines = rag.NewRegistry(a.Embedder, a.Knowledge, a.Generator, rag.PipelineConfig{
		Collection: cfg.Collection,
		TopK:       cfg.TopK,
		Generation: cfg.Generation,
		Bootstrap:  cfg.Bootstrap,
	}, logger)

	a.Sessions = session.New(session.Config{}, logger)

	// The janitor lives for the life of the app; Close cancels it.
	janitorCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancel = cancel
	go a.Sessions.Run(janitorCtx)

	return a, nil
}

// provideOtelShutdown sets up OTLP tracing and returns its cleanup.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger log.Logger) func() {
	shutdown := observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: "nova",
	})

	//nolint:contextcheck // Independent context: shutdown runs during teardown when parent is canceled
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), observability.ShutdownTimeout)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideDBPool runs migrations and creates the connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return database.NewPool(ctx, cfg.PostgresConnectionString())
}

// provideGenkit initializes Genkit with the Google AI plugin. The plugin
// reads GEMINI_API_KEY from the environment; config validation already
// ensured it is set.
func provideGenkit(ctx context.Context) (*genkit.Genkit, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit")
	}
	return g, nil
}
