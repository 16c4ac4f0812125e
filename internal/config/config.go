package config

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/textloom/textloom/internal/domain"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Optional static API key for the HTTP surface. Auth is disabled when empty.
	APIKey string `envconfig:"API_KEY"`

	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"768"`
	ChatModel           string `envconfig:"CHAT_MODEL" default:"gpt-4o-mini"`

	// Chunking parameters. Overlap must stay below ChunkMaxChars; this is
	// validated, never clamped.
	ChunkMaxChars int    `envconfig:"CHUNK_MAX_CHARS" default:"1000"`
	ChunkOverlap  int    `envconfig:"CHUNK_OVERLAP" default:"100"`
	HeaderMarker  string `envconfig:"SECTION_HEADER_MARKER" default:"## "`

	TopK int `envconfig:"TOP_K" default:"3"`

	DataDir    string `envconfig:"DATA_DIR" default:"data"`
	OutputDir  string `envconfig:"OUTPUT_DIR" default:"output"`
	PromptPath string `envconfig:"PROMPT_PATH"`

	// Optional external document-conversion service. When unset, PDFs are
	// converted locally.
	ConverterURL string `envconfig:"CONVERTER_URL"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"textloom-archive"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("TEXTLOOM", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate rejects chunking misconfiguration up front; these are fatal and
// never retried.
func (c *Config) Validate() error {
	if c.ChunkMaxChars <= 0 {
		return domain.ErrInvalidChunkSize
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkMaxChars {
		return domain.ErrInvalidOverlap
	}
	if c.EmbeddingDimensions <= 0 {
		return domain.NewDomainError(domain.ErrCodeConfiguration, "embedding dimensions must be positive")
	}
	if c.TopK < 1 {
		return domain.ErrInvalidTopK
	}
	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasRemoteConverter() bool {
	return c.ConverterURL != ""
}
