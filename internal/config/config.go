package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr                string `yaml:"addr"`
	ShutdownTimeoutSecs int    `yaml:"shutdown_timeout_secs"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
}

// PgVectorConfig contains connection details for Postgres with pgvector.
type PgVectorConfig struct {
	DSN       string `yaml:"dsn"`
	Dimension int    `yaml:"dimension"`
}

// StorageConfig selects and configures the vector store implementation.
type StorageConfig struct {
	Type       string          `yaml:"type"`
	Path       string          `yaml:"path"`
	Collection string          `yaml:"collection"`
	Qdrant     *QdrantConfig   `yaml:"qdrant,omitempty"`
	PgVector   *PgVectorConfig `yaml:"pgvector,omitempty"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type  string `yaml:"type"`
	Model string `yaml:"model"`
	// Dimension sizes the lexical embedder's hash space.
	Dimension int                   `yaml:"dimension,omitempty"`
	OpenAI    *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// GeneratorConfig selects and configures the text-generation collaborator.
type GeneratorConfig struct {
	Type    string `yaml:"type"`
	Model   string `yaml:"model"`
	Host    string `yaml:"host"`
	APIKey  string `yaml:"api_key,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Server             ServerConfig    `yaml:"server"`
	Storage            StorageConfig   `yaml:"storage"`
	Embedder           EmbedderConfig  `yaml:"embedder"`
	Generator          GeneratorConfig `yaml:"generator"`
	Log                LogConfig       `yaml:"log"`
	RequestTimeoutSecs int             `yaml:"request_timeout_secs"`
}

// RequestTimeout is the collaborator client timeout.
func (c *AppConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSecs) * time.Second
}

// ShutdownTimeout bounds graceful shutdown.
func (c *AppConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSecs) * time.Second
}

// Load reads a config from a specified path and overlays the environment.
// An empty path or a missing file yields defaults; settings are never
// rejected, only defaulted.
func Load(path string) (*AppConfig, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		}
	}
	applyEnv(cfg)
	applyConfigDefaults(cfg)
	cfg.Generator.Host = StripScheme(cfg.Generator.Host)
	return cfg, nil
}

// StripScheme removes a leading http:// or https:// so the value is a bare
// host:port.
func StripScheme(host string) string {
	host = strings.TrimSpace(host)
	host = strings.TrimPrefix(host, "http://")
	host = strings.TrimPrefix(host, "https://")
	return strings.TrimSuffix(host, "/")
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		Server:    ServerConfig{Addr: ":8000", ShutdownTimeoutSecs: 10},
		Storage:   StorageConfig{Type: "sqlite", Path: "./db", Collection: "docs"},
		Embedder:  EmbedderConfig{Type: "ollama"},
		Generator: GeneratorConfig{Type: "ollama", Model: "tinyllama", Host: "localhost:11434"},
		Log:       LogConfig{Level: "info", Format: "text"},

		RequestTimeoutSecs: 120,
	}
}

func applyEnv(cfg *AppConfig) {
	setString(&cfg.Server.Addr, "RAG_ADDR")
	setInt(&cfg.Server.ShutdownTimeoutSecs, "RAG_SHUTDOWN_TIMEOUT_SECS")

	setString(&cfg.Storage.Type, "RAG_VECTOR_STORE")
	setString(&cfg.Storage.Path, "RAG_DB_PATH")
	setString(&cfg.Storage.Collection, "RAG_COLLECTION_NAME")
	if v := os.Getenv("QDRANT_URL"); v != "" {
		if cfg.Storage.Qdrant == nil {
			cfg.Storage.Qdrant = &QdrantConfig{}
		}
		cfg.Storage.Qdrant.URL = v
	}
	if v := os.Getenv("QDRANT_API_KEY"); v != "" {
		if cfg.Storage.Qdrant == nil {
			cfg.Storage.Qdrant = &QdrantConfig{}
		}
		cfg.Storage.Qdrant.APIKey = v
	}
	if v := os.Getenv("PGVECTOR_DSN"); v != "" {
		if cfg.Storage.PgVector == nil {
			cfg.Storage.PgVector = &PgVectorConfig{}
		}
		cfg.Storage.PgVector.DSN = v
	}
	if cfg.Storage.PgVector != nil {
		setInt(&cfg.Storage.PgVector.Dimension, "PGVECTOR_DIMENSION")
	}

	setString(&cfg.Embedder.Type, "RAG_EMBEDDER")
	setString(&cfg.Embedder.Model, "OLLAMA_EMBED_MODEL")
	setInt(&cfg.Embedder.Dimension, "RAG_EMBED_DIMENSION")

	setString(&cfg.Generator.Type, "RAG_GENERATOR")
	setString(&cfg.Generator.Model, "OLLAMA_MODEL")
	setString(&cfg.Generator.Host, "OLLAMA_HOST")
	setString(&cfg.Generator.APIKey, "RAG_GENERATOR_API_KEY")
	setString(&cfg.Generator.BaseURL, "RAG_GENERATOR_BASE_URL")

	setString(&cfg.Log.Level, "RAG_LOG_LEVEL")
	setString(&cfg.Log.Format, "RAG_LOG_FORMAT")
	setInt(&cfg.RequestTimeoutSecs, "RAG_REQUEST_TIMEOUT_SECS")
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Storage.Type == "qdrant" && cfg.Storage.Qdrant == nil {
		cfg.Storage.Qdrant = &QdrantConfig{}
	}
	if cfg.Storage.Qdrant != nil && cfg.Storage.Qdrant.URL == "" {
		cfg.Storage.Qdrant.URL = "http://localhost:6333"
	}
	if cfg.Storage.PgVector != nil && cfg.Storage.PgVector.Dimension == 0 {
		cfg.Storage.PgVector.Dimension = 384
	}
	if cfg.Embedder.Model == "" && (cfg.Embedder.Type == "ollama" || cfg.Embedder.Type == "") {
		cfg.Embedder.Model = "all-minilm"
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
	}
	if cfg.RequestTimeoutSecs <= 0 {
		cfg.RequestTimeoutSecs = 120
	}
	if cfg.Server.ShutdownTimeoutSecs <= 0 {
		cfg.Server.ShutdownTimeoutSecs = 10
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// setInt keeps the current value when the variable is unset or not a number.
func setInt(dst *int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}
