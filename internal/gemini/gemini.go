// Package gemini wraps the Gemini embedding and generation models behind
// narrow clients with a defined failure contract.
//
// Both clients treat the model as an opaque remote service: they validate
// input locally, apply a per-call timeout and an optional shared rate
// limiter, and surface remote failures as ErrEmbedding or ErrGeneration so
// callers can select fallbacks by error kind.
package gemini

import (
	"errors"
	"time"

	"golang.org/x/time/rate"
)

var (
	// ErrInvalidInput indicates bad caller input (empty text or prompt).
	// No remote call is made.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidConfig indicates out-of-range generation parameters.
	ErrInvalidConfig = errors.New("invalid generation config")

	// ErrEmbedding indicates the embedding model call failed or timed out.
	ErrEmbedding = errors.New("embedding failed")

	// ErrGeneration indicates the generation model call failed or timed out.
	ErrGeneration = errors.New("generation failed")
)

// Default per-call timeouts. A timed-out call is indistinguishable from a
// failed one as far as callers are concerned.
const (
	DefaultEmbedTimeout    = 30 * time.Second
	DefaultGenerateTimeout = 60 * time.Second
)

// ClientConfig tunes the shared behavior of both clients.
type ClientConfig struct {
	// Timeout bounds each remote call. Zero means the package default.
	Timeout time.Duration

	// RequestsPerMinute throttles outbound calls to stay inside model
	// quotas. Zero disables throttling.
	RequestsPerMinute int
}

// newLimiter builds a rate limiter from RequestsPerMinute, or nil when
// throttling is disabled.
func newLimiter(requestsPerMinute int) *rate.Limiter {
	if requestsPerMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), requestsPerMinute)
}
