package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nexobotics/nova/internal/gemini"
	"github.com/nexobotics/nova/internal/knowledge"
)

// Fixed fallback responses. Query never surfaces a raw backend error to the
// end user; it substitutes one of these depending on which stage failed.
const (
	// FallbackNoInformation is returned when retrieval finds nothing.
	FallbackNoInformation = "I don't have specific information about that in my knowledge base. Would you like me to connect you with a customer service representative who can help?"

	// FallbackGenerationUnavailable is returned when retrieval succeeded
	// but the generation call failed.
	FallbackGenerationUnavailable = "I apologize, but I'm having trouble accessing that information right now. Is there something else I can help you with?"

	// FallbackTechnicalDifficulty is returned when embedding or retrieval
	// itself failed.
	FallbackTechnicalDifficulty = "I'm having technical difficulties at the moment. Please try again in a moment or reach out to our support team if this persists."
)

// DefaultTopK is the number of passages retrieved when the caller does not
// ask for a specific count.
const DefaultTopK = 5

// Embedder converts text to an embedding vector. Implemented by
// *gemini.Embedder; mocked in tests.
type Embedder interface {
	Embed(ctx context.Context, text string, mode gemini.EmbedMode) ([]float32, error)
}

// Generator produces text from a prompt. Implemented by *gemini.Generator.
type Generator interface {
	Generate(ctx context.Context, prompt string, cfg gemini.GenerationConfig) (string, error)
}

// Store is the vector-store surface the pipeline depends on.
// Implemented by *knowledge.Store.
type Store interface {
	Ensure(ctx context.Context, name string) (*knowledge.Collection, bool, error)
	Drop(ctx context.Context, name string) error
	Upsert(ctx context.Context, col *knowledge.Collection, docs []knowledge.Document, vectors [][]float32) error
	Search(ctx context.Context, col *knowledge.Collection, vec []float32, topK int) ([]knowledge.Result, error)
}

// PipelineConfig configures a Pipeline instance.
type PipelineConfig struct {
	// Collection is the vector-store collection this pipeline serves.
	Collection string

	// TopK is the default retrieval depth. Zero means DefaultTopK.
	TopK int

	// Generation holds the decoding parameters for answer generation.
	Generation gemini.GenerationConfig

	// Bootstrap seeds a small fixed document set when the collection is
	// created for the first time. Existing collections are never reseeded.
	Bootstrap bool
}

// QueryResult is the caller-facing outcome of a query: the answer text plus
// the passages it was grounded on, nearest first with their distances.
// Passages are present whenever retrieval succeeded, even if generation
// subsequently failed.
type QueryResult struct {
	Response string             `json:"response"`
	Passages []knowledge.Result `json:"passages"`
}

// Pipeline is the retrieval-augmented generation orchestrator for one
// collection: it owns an embedder, a vector-store collection handle, and a
// generator, and wires them into the ingestion and query paths.
//
// Pipeline is safe for concurrent use. Query calls are independent;
// AddDocuments batches apply as units relative to each other (the store
// runs each batch in one transaction).
type Pipeline struct {
	embedder  Embedder
	store     Store
	generator Generator
	col       *knowledge.Collection
	cfg       PipelineConfig
	logger    *slog.Logger
}

// NewPipeline creates a pipeline and ensures its collection exists.
// When the collection is created for the first time and cfg.Bootstrap is
// set, it is seeded with the built-in bootstrap documents; a seeding
// failure is logged but does not fail construction.
func NewPipeline(ctx context.Context, embedder Embedder, store Store, generator Generator, cfg PipelineConfig, logger *slog.Logger) (*Pipeline, error) {
	if embedder == nil || store == nil || generator == nil {
		return nil, fmt.Errorf("embedder, store, and generator are required")
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if logger == nil {
		logger = slog.Default()
	}

	col, created, err := store.Ensure(ctx, cfg.Collection)
	if err != nil {
		return nil, fmt.Errorf("ensuring collection %q: %w", cfg.Collection, err)
	}

	p := &Pipeline{
		embedder:  embedder,
		store:     store,
		generator: generator,
		col:       col,
		cfg:       cfg,
		logger:    logger.With("collection", cfg.Collection),
	}

	if created && cfg.Bootstrap {
		if err := p.AddDocuments(ctx, BootstrapDocuments()); err != nil {
			p.logger.Warn("seeding bootstrap documents failed", "error", err)
		} else {
			p.logger.Info("seeded bootstrap documents", "count", len(BootstrapDocuments()))
		}
	}

	return p, nil
}

// Collection returns the name of the collection this pipeline serves.
func (p *Pipeline) Collection() string {
	return p.cfg.Collection
}

// AddDocuments embeds and stores a batch of documents.
//
// The batch is validated before any embedding call: every document needs a
// non-empty id and text (ErrValidation). Embedding failures abort the call
// before anything is written, so a batch is either stored completely or
// not at all. Unlike Query, errors propagate to the caller.
func (p *Pipeline) AddDocuments(ctx context.Context, docs []knowledge.Document) error {
	if len(docs) == 0 {
		return fmt.Errorf("%w: empty batch", ErrValidation)
	}
	for i, doc := range docs {
		if doc.ID == "" {
			return fmt.Errorf("%w: document %d has empty id", ErrValidation, i)
		}
		if doc.Text == "" {
			return fmt.Errorf("%w: document %q has empty text", ErrValidation, doc.ID)
		}
	}

	vectors := make([][]float32, len(docs))
	for i, doc := range docs {
		vec, err := p.embedder.Embed(ctx, doc.Text, gemini.EmbedModeDocument)
		if err != nil {
			return fmt.Errorf("embedding document %q: %w", doc.ID, err)
		}
		vectors[i] = vec
	}

	if err := p.store.Upsert(ctx, p.col, docs, vectors); err != nil {
		return fmt.Errorf("storing batch: %w", err)
	}

	p.logger.Info("added documents", "count", len(docs))
	return nil
}

// Query answers a question grounded in the collection's documents.
//
// Backend failures never propagate to the caller: each stage maps to a
// fixed fallback response instead. Only invalid caller input (an empty
// question) returns an error.
//
// Stages:
//  1. Embed the question in query mode; failure → technical-difficulty
//     fallback with no passages.
//  2. Retrieve up to topK passages; retrieval failure → same fallback;
//     empty result → no-information fallback.
//  3. Build the grounded prompt and call the generator; failure → apology
//     fallback, still carrying the retrieved passages.
func (p *Pipeline) Query(ctx context.Context, question string, topK int) (QueryResult, error) {
	if topK <= 0 {
		topK = p.cfg.TopK
	}

	vec, err := p.embedder.Embed(ctx, question, gemini.EmbedModeQuery)
	if err != nil {
		if errors.Is(err, gemini.ErrInvalidInput) {
			return QueryResult{}, err
		}
		p.logger.Error("query embedding failed", "error", err)
		return QueryResult{Response: FallbackTechnicalDifficulty, Passages: []knowledge.Result{}}, nil
	}

	passages, err := p.store.Search(ctx, p.col, vec, topK)
	if err != nil {
		p.logger.Error("retrieval failed", "error", err)
		return QueryResult{Response: FallbackTechnicalDifficulty, Passages: []knowledge.Result{}}, nil
	}
	if len(passages) == 0 {
		p.logger.Debug("no passages retrieved", "question_length", len(question))
		return QueryResult{Response: FallbackNoInformation, Passages: []knowledge.Result{}}, nil
	}

	prompt := BuildPrompt(question, passages)

	response, err := p.generator.Generate(ctx, prompt, p.cfg.Generation)
	if err != nil {
		// Retrieval succeeded, so the passages are still useful to the
		// caller even though the model could not answer.
		p.logger.Error("generation failed", "error", err)
		return QueryResult{Response: FallbackGenerationUnavailable, Passages: passages}, nil
	}

	return QueryResult{Response: response, Passages: passages}, nil
}
