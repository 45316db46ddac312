package rag

import (
	"context"
	"log/slog"
	"sync"
)

// Registry hands out one Pipeline per collection, constructing lazily on
// first request and reusing the instance afterwards so repeated requests
// share the same collection handle.
//
// Dependencies are injected at construction rather than read from global
// state. Creation is mutex-guarded check-then-create: concurrent cold-start
// requests for the same collection construct (and ensure the underlying
// collection) exactly once. The lock is held across construction; warm
// lookups return right after the map read.
type Registry struct {
	embedder  Embedder
	store     Store
	generator Generator
	defaults  PipelineConfig
	logger    *slog.Logger

	mu        sync.Mutex
	pipelines map[string]*Pipeline
}

// NewRegistry creates a Registry. defaults supplies the per-pipeline
// settings (TopK, Generation, Bootstrap); the Collection field of defaults
// is ignored, the Get argument wins.
func NewRegistry(embedder Embedder, store Store, generator Generator, defaults PipelineConfig, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		embedder:  embedder,
		store:     store,
		generator: generator,
		defaults:  defaults,
		logger:    logger,
		pipelines: make(map[string]*Pipeline),
	}
}

// Get returns the pipeline for the named collection, constructing and
// caching it on first use.
func (r *Registry) Get(ctx context.Context, collection string) (*Pipeline, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.pipelines[collection]; ok {
		return p, nil
	}

	cfg := r.defaults
	cfg.Collection = collection

	p, err := NewPipeline(ctx, r.embedder, r.store, r.generator, cfg, r.logger)
	if err != nil {
		return nil, err
	}

	r.pipelines[collection] = p
	r.logger.Debug("constructed pipeline", "collection", collection)
	return p, nil
}
