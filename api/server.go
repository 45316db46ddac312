// Package api provides the HTTP REST API for NOVA.
//
// Endpoints:
//
//	POST   /chat                answer a question (retrieve + generate)
//	GET    /health              liveness probe
//	GET    /ready               readiness probe (database ping)
//	POST   /api/sessions        create a session
//	GET    /api/sessions/{id}   session history
//	DELETE /api/sessions/{id}   clear a session
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: HTTP middleware (recovery, logging, CORS)
//   - health.go: health check endpoints
//   - chat.go: chat endpoint
//   - session.go: session management endpoints
//   - response.go: JSON response helpers
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nexobotics/nova/internal/log"
	"github.com/nexobotics/nova/internal/session"
)

const (
	// DefaultAddr is the default address for the HTTP server.
	DefaultAddr = ":8080"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout is the timeout for reading request headers.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is the maximum duration for writing the response. Chat
	// responses wait on a model call, so this is generous.
	WriteTimeout = 120 * time.Second

	// IdleTimeout is the keep-alive idle limit.
	IdleTimeout = 120 * time.Second
)

// Server is the HTTP server for NOVA's REST API.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger

	corsOrigins []string

	// Handlers
	health  *HealthHandler
	chat    *ChatHandler
	session *SessionHandler
}

// Config carries the server's construction-time settings.
type Config struct {
	CORSOrigins []string
	TopK        int
}

// NewServer creates an HTTP server with all routes registered.
func NewServer(cfg Config, svc QueryService, sessions *session.Store, pool *pgxpool.Pool, logger log.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		mux:         mux,
		logger:      logger,
		corsOrigins: cfg.CORSOrigins,
		health:      NewHealthHandler(pool, logger),
		chat:        NewChatHandler(svc, sessions, cfg.TopK, logger),
		session:     NewSessionHandler(sessions, logger),
	}

	s.health.RegisterRoutes(mux)
	s.chat.RegisterRoutes(mux)
	s.session.RegisterRoutes(mux)

	return s
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery → logging → CORS → handler
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		loggingMiddleware(s.logger),
		corsMiddleware(s.corsOrigins),
	)
}

// Run starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
