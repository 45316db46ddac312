package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// GenerationConfig holds the decoding parameters for a generation call.
type GenerationConfig struct {
	Temperature     float32 `mapstructure:"temperature" json:"temperature"`
	TopP            float32 `mapstructure:"top_p" json:"top_p"`
	TopK            int32   `mapstructure:"top_k" json:"top_k"`
	MaxOutputTokens int32   `mapstructure:"max_output_tokens" json:"max_output_tokens"`
}

// DefaultGenerationConfig returns the decoding parameters tuned for
// factual customer-service answers: low temperature, focused sampling.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		Temperature:     0.4,
		TopP:            0.85,
		TopK:            40,
		MaxOutputTokens: 1024,
	}
}

// Validate checks parameter ranges. Out-of-range values are rejected,
// never clamped.
func (c GenerationConfig) Validate() error {
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: temperature %v outside [0, 2]", ErrInvalidConfig, c.Temperature)
	}
	if c.TopP <= 0 || c.TopP > 1 {
		return fmt.Errorf("%w: top_p %v outside (0, 1]", ErrInvalidConfig, c.TopP)
	}
	if c.TopK < 0 {
		return fmt.Errorf("%w: top_k %d is negative", ErrInvalidConfig, c.TopK)
	}
	if c.MaxOutputTokens <= 0 {
		return fmt.Errorf("%w: max_output_tokens %d must be positive", ErrInvalidConfig, c.MaxOutputTokens)
	}
	return nil
}

// Generator produces text from a prompt using a Gemini model registered
// with Genkit. Stateless per call and safe for concurrent use.
type Generator struct {
	g       *genkit.Genkit
	model   string
	timeout time.Duration
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewGenerator creates a Generator for the given model name
// (e.g. "googleai/gemini-2.5-flash").
func NewGenerator(g *genkit.Genkit, model string, cfg ClientConfig, logger *slog.Logger) (*Generator, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultGenerateTimeout
	}
	return &Generator{
		g:       g,
		model:   model,
		timeout: timeout,
		limiter: newLimiter(cfg.RequestsPerMinute),
		logger:  logger,
	}, nil
}

// Generate returns the model's text completion for prompt.
//
// An invalid config fails with ErrInvalidConfig and an empty prompt with
// ErrInvalidInput, both before any remote call. Remote or timeout
// failures wrap ErrGeneration.
func (gen *Generator) Generate(ctx context.Context, prompt string, cfg GenerationConfig) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w: prompt is empty", ErrInvalidInput)
	}
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	if gen.limiter != nil {
		if err := gen.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("%w: waiting for rate limiter: %v", ErrGeneration, err)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, gen.timeout)
	defer cancel()

	temperature := cfg.Temperature
	topP := cfg.TopP
	topK := float32(cfg.TopK)

	resp, err := genkit.Generate(callCtx, gen.g,
		ai.WithModelName(gen.model),
		ai.WithPrompt(prompt),
		ai.WithConfig(&genai.GenerateContentConfig{
			Temperature:     &temperature,
			TopP:            &topP,
			TopK:            &topK,
			MaxOutputTokens: cfg.MaxOutputTokens,
		}),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("%w: model returned empty text", ErrGeneration)
	}

	gen.logger.Debug("generated response", "model", gen.model, "response_length", len(text))
	return text, nil
}
