// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (NOVA_* plus DATABASE_URL and GEMINI_API_KEY)
//  2. Config file (./config.yaml)
//  3. Default values
//
// Sentinel errors support errors.Is() checks; validation is fail-fast at
// startup so a misconfigured service never starts serving.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"github.com/nexobotics/nova/internal/gemini"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates the Gemini API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates a model identifier is empty or malformed.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidDimension indicates the embedding dimension is out of range.
	ErrInvalidDimension = errors.New("invalid embedding dimension")

	// ErrInvalidCollection indicates the collection name is invalid.
	ErrInvalidCollection = errors.New("invalid collection name")

	// ErrInvalidTopK indicates top_k is out of range.
	ErrInvalidTopK = errors.New("invalid top_k")

	// ErrInvalidRPM indicates the Gemini requests-per-minute limit is invalid.
	ErrInvalidRPM = errors.New("invalid gemini_rpm")

	// ErrInvalidPostgres indicates a PostgreSQL connection setting is invalid.
	ErrInvalidPostgres = errors.New("invalid PostgreSQL configuration")

	// ErrInvalidAddr indicates the listen address is invalid.
	ErrInvalidAddr = errors.New("invalid listen address")
)

const (
	// DefaultEmbedderModel is the Gemini embedding model. It outputs 3072
	// dimensions by default but supports truncation via OutputDimensionality;
	// we request 768.
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultGenerationModel is the Gemini chat model.
	DefaultGenerationModel = "gemini-2.5-flash"

	// DefaultCollection is the knowledge collection queried by the chat API.
	DefaultCollection = "knowledge_base"

	// DefaultGeminiRPM throttles outbound Gemini calls per client so a
	// burst of traffic stays inside model quotas.
	DefaultGeminiRPM = 60
)

// Config stores application configuration.
type Config struct {
	// HTTP server
	Addr        string   `mapstructure:"addr" json:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`

	// Gemini models
	GenerationModel   string `mapstructure:"generation_model" json:"generation_model"`
	EmbedderModel     string `mapstructure:"embedder_model" json:"embedder_model"`
	EmbedderDimension int    `mapstructure:"embedder_dimension" json:"embedder_dimension"`

	// Generation sampling parameters.
	Generation gemini.GenerationConfig `mapstructure:"generation" json:"generation"`

	// GeminiRPM caps outbound calls per minute for each Gemini client.
	// Zero disables throttling.
	GeminiRPM int `mapstructure:"gemini_rpm" json:"gemini_rpm"`

	// Retrieval
	Collection string `mapstructure:"collection" json:"collection"`
	TopK       int    `mapstructure:"top_k" json:"top_k"`
	Bootstrap  bool   `mapstructure:"bootstrap" json:"bootstrap"`

	// PostgreSQL connection (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"-"`
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Tracing (optional; empty endpoint disables export)
	OTLPEndpoint string `mapstructure:"otlp_endpoint" json:"otlp_endpoint"`

	// GeminiAPIKey comes from GEMINI_API_KEY only, never from the file.
	GeminiAPIKey string `mapstructure:"-" json:"-"`
}

// Load loads configuration.
// Priority: environment variables > config file > default values.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults", "config_name", "config.yaml")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	cfg.GeminiAPIKey = strings.TrimSpace(v.GetString("gemini_api_key"))

	// DATABASE_URL overrides individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("cors_origins", []string{"*"})

	v.SetDefault("generation_model", DefaultGenerationModel)
	v.SetDefault("embedder_model", DefaultEmbedderModel)
	v.SetDefault("embedder_dimension", 768)

	def := gemini.DefaultGenerationConfig()
	v.SetDefault("generation.temperature", def.Temperature)
	v.SetDefault("generation.top_p", def.TopP)
	v.SetDefault("generation.top_k", def.TopK)
	v.SetDefault("generation.max_output_tokens", def.MaxOutputTokens)
	v.SetDefault("gemini_rpm", DefaultGeminiRPM)

	v.SetDefault("collection", DefaultCollection)
	v.SetDefault("top_k", 5)
	v.SetDefault("bootstrap", true)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "nova")
	v.SetDefault("postgres_password", "nova_dev_password")
	v.SetDefault("postgres_db_name", "nova")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("otlp_endpoint", "")
}

// bindEnvVariables binds environment overrides explicitly. Hardcoded keys
// cannot fail to bind; a panic here is a bug, not a runtime condition.
func bindEnvVariables(v *viper.Viper) {
	mustBind := func(key string, envVars ...string) {
		args := append([]string{key}, envVars...)
		if err := v.BindEnv(args...); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q: %v", key, err))
		}
	}

	mustBind("gemini_api_key", "GEMINI_API_KEY")

	mustBind("addr", "NOVA_ADDR")
	mustBind("cors_origins", "NOVA_CORS_ORIGINS")
	mustBind("generation_model", "NOVA_GENERATION_MODEL")
	mustBind("embedder_model", "NOVA_EMBEDDER_MODEL")
	mustBind("embedder_dimension", "NOVA_EMBEDDER_DIMENSION")
	mustBind("gemini_rpm", "NOVA_GEMINI_RPM")
	mustBind("collection", "NOVA_COLLECTION")
	mustBind("top_k", "NOVA_TOP_K")
	mustBind("bootstrap", "NOVA_BOOTSTRAP")
	mustBind("otlp_endpoint", "NOVA_OTLP_ENDPOINT")

	mustBind("postgres_host", "NOVA_POSTGRES_HOST")
	mustBind("postgres_port", "NOVA_POSTGRES_PORT")
	mustBind("postgres_user", "NOVA_POSTGRES_USER")
	mustBind("postgres_password", "NOVA_POSTGRES_PASSWORD")
	mustBind("postgres_db_name", "NOVA_POSTGRES_DB_NAME")
	mustBind("postgres_ssl_mode", "NOVA_POSTGRES_SSL_MODE")
}

// FullGenerationModel returns the provider-qualified model name for Genkit,
// e.g. "googleai/gemini-2.5-flash". Names already containing "/" pass through.
func (c *Config) FullGenerationModel() string {
	if strings.Contains(c.GenerationModel, "/") {
		return c.GenerationModel
	}
	return "googleai/" + c.GenerationModel
}
