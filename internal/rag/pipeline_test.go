package rag

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/nexobotics/nova/internal/gemini"
	"github.com/nexobotics/nova/internal/knowledge"
	"github.com/nexobotics/nova/internal/log"
)

// stubEmbedder implements Embedder with a configurable function.
type stubEmbedder struct {
	embedFn func(ctx context.Context, text string, mode gemini.EmbedMode) ([]float32, error)
	calls   atomic.Int64
}

func (s *stubEmbedder) Embed(ctx context.Context, text string, mode gemini.EmbedMode) ([]float32, error) {
	s.calls.Add(1)
	if s.embedFn != nil {
		return s.embedFn(ctx, text, mode)
	}
	return []float32{1, 0, 0}, nil
}

// stubGenerator implements Generator.
type stubGenerator struct {
	generateFn func(ctx context.Context, prompt string, cfg gemini.GenerationConfig) (string, error)
	lastPrompt string
}

func (s *stubGenerator) Generate(ctx context.Context, prompt string, cfg gemini.GenerationConfig) (string, error) {
	s.lastPrompt = prompt
	if s.generateFn != nil {
		return s.generateFn(ctx, prompt, cfg)
	}
	return "generated answer", nil
}

// stubStore implements Store in memory.
type stubStore struct {
	ensureCalls atomic.Int64
	created     bool
	ensureErr   error

	upsertCalls int
	upsertDocs  []knowledge.Document
	upsertErr   error

	searchResults []knowledge.Result
	searchErr     error
}

func (s *stubStore) Ensure(_ context.Context, name string) (*knowledge.Collection, bool, error) {
	s.ensureCalls.Add(1)
	if s.ensureErr != nil {
		return nil, false, s.ensureErr
	}
	return &knowledge.Collection{Name: name}, s.created, nil
}

func (s *stubStore) Drop(context.Context, string) error { return nil }

func (s *stubStore) Upsert(_ context.Context, _ *knowledge.Collection, docs []knowledge.Document, _ [][]float32) error {
	s.upsertCalls++
	s.upsertDocs = append(s.upsertDocs, docs...)
	return s.upsertErr
}

func (s *stubStore) Search(context.Context, *knowledge.Collection, []float32, int) ([]knowledge.Result, error) {
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return s.searchResults, nil
}

func newTestPipeline(t *testing.T, embedder Embedder, store Store, generator Generator) *Pipeline {
	t.Helper()
	p, err := NewPipeline(t.Context(), embedder, store, generator, PipelineConfig{
		Collection: "test",
		Generation: gemini.DefaultGenerationConfig(),
	}, log.NewNop())
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return p
}

func TestNewPipelineValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewPipeline(t.Context(), nil, &stubStore{}, &stubGenerator{}, PipelineConfig{Collection: "c"}, log.NewNop()); err == nil {
		t.Error("expected error for nil embedder")
	}
	if _, err := NewPipeline(t.Context(), &stubEmbedder{}, &stubStore{}, &stubGenerator{}, PipelineConfig{}, log.NewNop()); err == nil {
		t.Error("expected error for empty collection name")
	}
}

func TestNewPipelineEnsureFailure(t *testing.T) {
	t.Parallel()

	store := &stubStore{ensureErr: errors.New("db down")}
	_, err := NewPipeline(t.Context(), &stubEmbedder{}, store, &stubGenerator{}, PipelineConfig{Collection: "c"}, log.NewNop())
	if err == nil {
		t.Fatal("expected error when collection cannot be ensured")
	}
}

func TestNewPipelineBootstrap(t *testing.T) {
	t.Parallel()

	t.Run("seeds new collection", func(t *testing.T) {
		t.Parallel()
		store := &stubStore{created: true}
		p, err := NewPipeline(t.Context(), &stubEmbedder{}, store, &stubGenerator{}, PipelineConfig{
			Collection: "fresh",
			Bootstrap:  true,
		}, log.NewNop())
		if err != nil {
			t.Fatalf("NewPipeline: %v", err)
		}
		if p == nil {
			t.Fatal("nil pipeline")
		}
		if got, want := len(store.upsertDocs), len(BootstrapDocuments()); got != want {
			t.Errorf("seeded %d documents, want %d", got, want)
		}
	})

	t.Run("skips existing collection", func(t *testing.T) {
		t.Parallel()
		store := &stubStore{created: false}
		_, err := NewPipeline(t.Context(), &stubEmbedder{}, store, &stubGenerator{}, PipelineConfig{
			Collection: "existing",
			Bootstrap:  true,
		}, log.NewNop())
		if err != nil {
			t.Fatalf("NewPipeline: %v", err)
		}
		if store.upsertCalls != 0 {
			t.Errorf("existing collection was reseeded (%d upserts)", store.upsertCalls)
		}
	})

	t.Run("seed failure is not fatal", func(t *testing.T) {
		t.Parallel()
		store := &stubStore{created: true}
		embedder := &stubEmbedder{embedFn: func(context.Context, string, gemini.EmbedMode) ([]float32, error) {
			return nil, gemini.ErrEmbedding
		}}
		p, err := NewPipeline(t.Context(), embedder, store, &stubGenerator{}, PipelineConfig{
			Collection: "fresh",
			Bootstrap:  true,
		}, log.NewNop())
		if err != nil {
			t.Fatalf("NewPipeline: %v", err)
		}
		if p == nil {
			t.Fatal("nil pipeline")
		}
	})
}

func TestAddDocumentsValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		docs []knowledge.Document
	}{
		{"empty batch", nil},
		{"empty id", []knowledge.Document{{Text: "text"}}},
		{"empty text", []knowledge.Document{{ID: "d1"}}},
		{"one bad among good", []knowledge.Document{
			{ID: "d1", Text: "fine"},
			{ID: "", Text: "missing id"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			embedder := &stubEmbedder{}
			store := &stubStore{}
			p := newTestPipeline(t, embedder, store, &stubGenerator{})

			err := p.AddDocuments(t.Context(), tt.docs)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("got %v, want ErrValidation", err)
			}
			// Validation runs before any embedding.
			if n := embedder.calls.Load(); n != 0 {
				t.Errorf("embedder called %d times before validation failure", n)
			}
			if store.upsertCalls != 0 {
				t.Error("store written despite validation failure")
			}
		})
	}
}

func TestAddDocumentsEmbedFailureWritesNothing(t *testing.T) {
	t.Parallel()

	embedder := &stubEmbedder{embedFn: func(_ context.Context, text string, _ gemini.EmbedMode) ([]float32, error) {
		if text == "second" {
			return nil, gemini.ErrEmbedding
		}
		return []float32{1}, nil
	}}
	store := &stubStore{}
	p := newTestPipeline(t, embedder, store, &stubGenerator{})

	err := p.AddDocuments(t.Context(), []knowledge.Document{
		{ID: "d1", Text: "first"},
		{ID: "d2", Text: "second"},
		{ID: "d3", Text: "third"},
	})
	if !errors.Is(err, gemini.ErrEmbedding) {
		t.Fatalf("got %v, want ErrEmbedding", err)
	}
	if store.upsertCalls != 0 {
		t.Error("partial batch reached the store")
	}
}

func TestAddDocumentsUsesDocumentMode(t *testing.T) {
	t.Parallel()

	var mode gemini.EmbedMode
	embedder := &stubEmbedder{embedFn: func(_ context.Context, _ string, m gemini.EmbedMode) ([]float32, error) {
		mode = m
		return []float32{1}, nil
	}}
	store := &stubStore{}
	p := newTestPipeline(t, embedder, store, &stubGenerator{})

	if err := p.AddDocuments(t.Context(), []knowledge.Document{{ID: "d1", Text: "t"}}); err != nil {
		t.Fatalf("AddDocuments: %v", err)
	}
	if mode != gemini.EmbedModeDocument {
		t.Errorf("embedded with mode %q, want %q", mode, gemini.EmbedModeDocument)
	}
	if store.upsertCalls != 1 {
		t.Errorf("upsert called %d times, want 1", store.upsertCalls)
	}
}

func TestQueryFallbacks(t *testing.T) {
	t.Parallel()

	passages := []knowledge.Result{{Text: "passage", Distance: 0.1}}

	tests := []struct {
		name         string
		embedder     *stubEmbedder
		store        *stubStore
		generator    *stubGenerator
		wantResponse string
		wantPassages int
	}{
		{
			name: "embedding failure",
			embedder: &stubEmbedder{embedFn: func(context.Context, string, gemini.EmbedMode) ([]float32, error) {
				return nil, gemini.ErrEmbedding
			}},
			store:        &stubStore{searchResults: passages},
			generator:    &stubGenerator{},
			wantResponse: FallbackTechnicalDifficulty,
		},
		{
			name:         "retrieval failure",
			embedder:     &stubEmbedder{},
			store:        &stubStore{searchErr: errors.New("db down")},
			generator:    &stubGenerator{},
			wantResponse: FallbackTechnicalDifficulty,
		},
		{
			name:         "no passages",
			embedder:     &stubEmbedder{},
			store:        &stubStore{},
			generator:    &stubGenerator{},
			wantResponse: FallbackNoInformation,
		},
		{
			name:     "generation failure keeps passages",
			embedder: &stubEmbedder{},
			store:    &stubStore{searchResults: passages},
			generator: &stubGenerator{generateFn: func(context.Context, string, gemini.GenerationConfig) (string, error) {
				return "", gemini.ErrGeneration
			}},
			wantResponse: FallbackGenerationUnavailable,
			wantPassages: 1,
		},
		{
			name:         "success",
			embedder:     &stubEmbedder{},
			store:        &stubStore{searchResults: passages},
			generator:    &stubGenerator{},
			wantResponse: "generated answer",
			wantPassages: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := newTestPipeline(t, tt.embedder, tt.store, tt.generator)

			got, err := p.Query(t.Context(), "question", 0)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if got.Response != tt.wantResponse {
				t.Errorf("response = %q, want %q", got.Response, tt.wantResponse)
			}
			if len(got.Passages) != tt.wantPassages {
				t.Errorf("passages = %d, want %d", len(got.Passages), tt.wantPassages)
			}
		})
	}
}

func TestQueryInvalidInputPropagates(t *testing.T) {
	t.Parallel()

	embedder := &stubEmbedder{embedFn: func(context.Context, string, gemini.EmbedMode) ([]float32, error) {
		return nil, gemini.ErrInvalidInput
	}}
	p := newTestPipeline(t, embedder, &stubStore{}, &stubGenerator{})

	_, err := p.Query(t.Context(), "", 0)
	if !errors.Is(err, gemini.ErrInvalidInput) {
		t.Fatalf("got %v, want ErrInvalidInput", err)
	}
}

func TestQueryPromptGrounding(t *testing.T) {
	t.Parallel()

	var mode gemini.EmbedMode
	embedder := &stubEmbedder{embedFn: func(_ context.Context, _ string, m gemini.EmbedMode) ([]float32, error) {
		mode = m
		return []float32{1}, nil
	}}
	store := &stubStore{searchResults: []knowledge.Result{
		{Text: "Nexobotics offers 24/7 support.", Metadata: map[string]string{"category": "support"}},
	}}
	generator := &stubGenerator{}
	p := newTestPipeline(t, embedder, store, generator)

	if _, err := p.Query(t.Context(), "What support do you offer?", 0); err != nil {
		t.Fatalf("Query: %v", err)
	}
	if mode != gemini.EmbedModeQuery {
		t.Errorf("embedded with mode %q, want %q", mode, gemini.EmbedModeQuery)
	}
	if !strings.Contains(generator.lastPrompt, "What support do you offer?") {
		t.Error("question missing from prompt")
	}
	if !strings.Contains(generator.lastPrompt, "Nexobotics offers 24/7 support.") {
		t.Error("retrieved passage missing from prompt")
	}
}
