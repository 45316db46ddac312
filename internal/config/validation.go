package config

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

// validSSLModes excludes the deprecated allow/prefer modes.
var validSSLModes = []string{"disable", "require", "verify-ca", "verify-full"}

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if c.GeminiAPIKey == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
			"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
			ErrMissingAPIKey)
	}

	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr cannot be empty", ErrInvalidAddr)
	}

	if c.GenerationModel == "" {
		return fmt.Errorf("%w: generation_model cannot be empty", ErrInvalidModelName)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidModelName)
	}

	// gemini-embedding-001 supports truncation down to 128 dimensions and
	// tops out at 3072.
	if c.EmbedderDimension < 128 || c.EmbedderDimension > 3072 {
		return fmt.Errorf("%w: must be between 128 and 3072, got %d",
			ErrInvalidDimension, c.EmbedderDimension)
	}

	if err := c.Generation.Validate(); err != nil {
		return fmt.Errorf("generation config: %w", err)
	}

	if c.GeminiRPM < 0 {
		return fmt.Errorf("%w: must be >= 0 (0 disables throttling), got %d",
			ErrInvalidRPM, c.GeminiRPM)
	}

	if strings.TrimSpace(c.Collection) == "" {
		return fmt.Errorf("%w: collection cannot be empty", ErrInvalidCollection)
	}

	if c.TopK < 1 || c.TopK > 50 {
		return fmt.Errorf("%w: must be between 1 and 50, got %d", ErrInvalidTopK, c.TopK)
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgres)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: port must be between 1 and 65535, got %d",
			ErrInvalidPostgres, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgres)
	}
	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: postgres_password must be set", ErrInvalidPostgres)
	}
	if c.PostgresPassword == "nova_dev_password" {
		slog.Warn("using default development password for PostgreSQL",
			"warning", "change postgres_password for production deployments")
	}

	if c.PostgresSSLMode == "" || !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: postgres_ssl_mode %q is not valid, must be one of: %v",
			ErrInvalidPostgres, c.PostgresSSLMode, validSSLModes)
	}

	return nil
}
