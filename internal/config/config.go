package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port    string `envconfig:"PORT" default:"8080"`
	Debug   bool   `envconfig:"DEBUG" default:"false"`
	LogMode string `envconfig:"LOG_MODE" default:"development"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"10"`

	RedisURL string `envconfig:"REDIS_URL"`

	S3Endpoint    string `envconfig:"S3_ENDPOINT"`
	S3AccessKey   string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey   string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket      string `envconfig:"S3_BUCKET" default:"ragline-docs"`
	S3Region      string `envconfig:"S3_REGION" default:"us-east-1"`
	MaxObjectSize int64  `envconfig:"MAX_OBJECT_BYTES" default:"209715200"`

	// Embedding provider: http (embedding service), openai, or hash (deterministic, offline).
	EmbeddingProvider string `envconfig:"EMBEDDING_PROVIDER" default:"http"`
	EmbeddingEndpoint string `envconfig:"EMBEDDING_ENDPOINT" default:"http://localhost:8000"`
	// Model and dimension default per provider, see providerDefaults.
	EmbeddingModel string `envconfig:"EMBEDDING_MODEL"`
	EmbeddingDim   int    `envconfig:"EMBEDDING_DIM"`

	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`

	// Generation provider: ollama or openai.
	GenerationProvider string `envconfig:"GENERATION_PROVIDER" default:"ollama"`
	OllamaHost         string `envconfig:"OLLAMA_HOST" default:"http://localhost:11434"`
	GenerationModel    string `envconfig:"GENERATION_MODEL"`

	ExternalTimeout time.Duration `envconfig:"EXTERNAL_TIMEOUT" default:"30s"`

	APIKey             string `envconfig:"API_KEY"`
	RateLimitPerMinute int    `envconfig:"RATE_LIMIT_PER_MINUTE" default:"60"`

	QueueBackend       string        `envconfig:"QUEUE_BACKEND" default:"postgres"`
	WorkerPollInterval time.Duration `envconfig:"WORKER_POLL_INTERVAL" default:"5s"`
	WorkerConcurrency  int           `envconfig:"WORKER_CONCURRENCY" default:"4"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("RAGLINE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.applyProviderDefaults()

	return &cfg, nil
}

type modelDefault struct {
	model string
	dim   int
}

var (
	embeddingDefaults = map[string]modelDefault{
		"http":   {model: "gte-small", dim: 384},
		"hash":   {model: "hash-v1", dim: 384},
		"openai": {model: "text-embedding-3-small", dim: 1536},
	}
	generationDefaults = map[string]string{
		"ollama": "llama3",
		"openai": "gpt-4o-mini",
	}
)

// applyProviderDefaults fills the model and dimension the operator left unset
// with values the selected provider accepts.
func (c *Config) applyProviderDefaults() {
	if d, ok := embeddingDefaults[strings.ToLower(c.EmbeddingProvider)]; ok {
		if c.EmbeddingModel == "" {
			c.EmbeddingModel = d.model
		}
		if c.EmbeddingDim <= 0 {
			c.EmbeddingDim = d.dim
		}
	}
	if c.GenerationModel == "" {
		c.GenerationModel = generationDefaults[strings.ToLower(c.GenerationProvider)]
	}
}

func (c *Config) validate() error {
	switch strings.ToLower(c.EmbeddingProvider) {
	case "http", "hash":
	case "openai":
		if !c.HasOpenAI() {
			return fmt.Errorf("EMBEDDING_PROVIDER=openai requires OPENAI_API_KEY")
		}
	default:
		return fmt.Errorf("unknown EMBEDDING_PROVIDER %q", c.EmbeddingProvider)
	}

	switch strings.ToLower(c.GenerationProvider) {
	case "ollama":
	case "openai":
		if !c.HasOpenAI() {
			return fmt.Errorf("GENERATION_PROVIDER=openai requires OPENAI_API_KEY")
		}
	default:
		return fmt.Errorf("unknown GENERATION_PROVIDER %q", c.GenerationProvider)
	}

	switch strings.ToLower(c.QueueBackend) {
	case "postgres":
	case "redis":
		if !c.HasRedis() {
			return fmt.Errorf("QUEUE_BACKEND=redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("unknown QUEUE_BACKEND %q", c.QueueBackend)
	}

	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasRedis() bool {
	return c.RedisURL != ""
}

func (c *Config) HasAPIKey() bool {
	return c.APIKey != ""
}
