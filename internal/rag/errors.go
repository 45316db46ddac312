package rag

import "errors"

// Pipeline-level sentinel errors. Lower layers carry their own:
// embedding and generation failures are gemini.ErrEmbedding and
// gemini.ErrGeneration, dimension conflicts are knowledge.ErrDimensionMismatch,
// and missing credentials fail at startup via the config package.
var (
	// ErrValidation indicates a malformed ingestion batch (empty batch,
	// empty id or text, mismatched metadata length). Detected before any
	// embedding call is made.
	ErrValidation = errors.New("batch validation failed")
)
