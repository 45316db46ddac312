package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// EmbedMode selects the embedding task variant. Document and query
// embeddings come from the same model but are not interchangeable: the
// same text may embed differently depending on the mode, so ingestion
// must use EmbedModeDocument and search must use EmbedModeQuery.
type EmbedMode string

const (
	// EmbedModeDocument is the indexing-oriented variant, used when
	// storing documents.
	EmbedModeDocument EmbedMode = "RETRIEVAL_DOCUMENT"

	// EmbedModeQuery is the search-oriented variant, used when embedding
	// a user question.
	EmbedModeQuery EmbedMode = "RETRIEVAL_QUERY"
)

// Embedder converts text to fixed-dimension vectors using a Gemini
// embedding model registered with Genkit.
//
// Embedder does not retry; retry policy belongs to the caller. It is
// stateless per call and safe for concurrent use.
type Embedder struct {
	embedder  ai.Embedder
	dimension int32
	timeout   time.Duration
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// NewEmbedder creates an Embedder.
//
// dimension is the output dimensionality requested from the model
// (Gemini embedding models support Matryoshka truncation); it must match
// the dimension of the collection the vectors are written to. Zero keeps
// the model default.
func NewEmbedder(embedder ai.Embedder, dimension int32, cfg ClientConfig, logger *slog.Logger) (*Embedder, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultEmbedTimeout
	}
	return &Embedder{
		embedder:  embedder,
		dimension: dimension,
		timeout:   timeout,
		limiter:   newLimiter(cfg.RequestsPerMinute),
		logger:    logger,
	}, nil
}

// Embed returns the embedding vector for text under the given mode.
//
// Text that is empty after trimming fails with ErrInvalidInput before any
// remote call. Remote or timeout failures wrap ErrEmbedding.
func (e *Embedder) Embed(ctx context.Context, text string, mode EmbedMode) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is empty", ErrInvalidInput)
	}
	switch mode {
	case EmbedModeDocument, EmbedModeQuery:
	default:
		return nil, fmt.Errorf("%w: unknown embed mode %q", ErrInvalidInput, mode)
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: waiting for rate limiter: %v", ErrEmbedding, err)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	embedCfg := &genai.EmbedContentConfig{TaskType: string(mode)}
	if e.dimension > 0 {
		dim := e.dimension
		embedCfg.OutputDimensionality = &dim
	}

	resp, err := e.embedder.Embed(callCtx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: embedCfg,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: model returned no embedding", ErrEmbedding)
	}

	vec := resp.Embeddings[0].Embedding
	e.logger.Debug("embedded text", "mode", string(mode), "dimension", len(vec))
	return vec, nil
}
