package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"RAG_ADDR", "RAG_SHUTDOWN_TIMEOUT_SECS", "RAG_VECTOR_STORE", "RAG_DB_PATH", "RAG_COLLECTION_NAME",
	"QDRANT_URL", "QDRANT_API_KEY", "PGVECTOR_DSN", "PGVECTOR_DIMENSION", "RAG_EMBEDDER",
	"OLLAMA_EMBED_MODEL", "RAG_GENERATOR", "OLLAMA_MODEL", "OLLAMA_HOST", "RAG_GENERATOR_API_KEY",
	"RAG_GENERATOR_BASE_URL", "RAG_LOG_LEVEL", "RAG_LOG_FORMAT", "RAG_REQUEST_TIMEOUT_SECS",
	"RAG_EMBED_DIMENSION",
}

// clearEnv blanks every variable the loader reads so the host environment
// cannot leak into assertions.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "./db", cfg.Storage.Path)
	assert.Equal(t, "docs", cfg.Storage.Collection)
	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.Equal(t, "tinyllama", cfg.Generator.Model)
	assert.Equal(t, "localhost:11434", cfg.Generator.Host)
	assert.Equal(t, "ollama", cfg.Generator.Type)
	assert.Equal(t, "all-minilm", cfg.Embedder.Model)
	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, 120*time.Second, cfg.RequestTimeout())
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "docs", cfg.Storage.Collection)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("RAG_DB_PATH", "/var/lib/rag")
	t.Setenv("RAG_COLLECTION_NAME", "kb")
	t.Setenv("OLLAMA_MODEL", "llama3")
	t.Setenv("OLLAMA_HOST", "https://ollama.internal:11434/")
	t.Setenv("RAG_REQUEST_TIMEOUT_SECS", "not-a-number")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/rag", cfg.Storage.Path)
	assert.Equal(t, "kb", cfg.Storage.Collection)
	assert.Equal(t, "llama3", cfg.Generator.Model)
	assert.Equal(t, "ollama.internal:11434", cfg.Generator.Host)
	assert.Equal(t, 120, cfg.RequestTimeoutSecs)
}

func TestLoadLexicalEmbedder(t *testing.T) {
	clearEnv(t)
	t.Setenv("RAG_EMBEDDER", "lexical")
	t.Setenv("RAG_EMBED_DIMENSION", "256")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "lexical", cfg.Embedder.Type)
	assert.Equal(t, 256, cfg.Embedder.Dimension)
	assert.Nil(t, cfg.Embedder.OpenAI)
	assert.Empty(t, cfg.Embedder.Model)
}

func TestLoadOpenAIEmbedderLeavesModelToClient(t *testing.T) {
	clearEnv(t)
	t.Setenv("RAG_EMBEDDER", "openai")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, cfg.Embedder.Model)
	require.NotNil(t, cfg.Embedder.OpenAI)
	assert.Equal(t, "https://api.openai.com/v1", cfg.Embedder.OpenAI.BaseURL)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Embedder.OpenAI.APIKeyEnv)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
storage:
  type: qdrant
  collection: from-yaml
generator:
  model: mistral
  host: http://gpu-box:11434
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	t.Setenv("OLLAMA_MODEL", "phi3")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-yaml", cfg.Storage.Collection)
	assert.Equal(t, "phi3", cfg.Generator.Model)
	assert.Equal(t, "gpu-box:11434", cfg.Generator.Host)
	require.NotNil(t, cfg.Storage.Qdrant)
	assert.Equal(t, "http://localhost:6333", cfg.Storage.Qdrant.URL)
	// Keys absent from the file keep their defaults.
	assert.Equal(t, "./db", cfg.Storage.Path)
}

func TestLoadInvalidYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage: [unterminated"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestPgVectorDimensionDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("PGVECTOR_DSN", "postgres://localhost/rag")

	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg.Storage.PgVector)
	assert.Equal(t, 384, cfg.Storage.PgVector.Dimension)
}

func TestStripScheme(t *testing.T) {
	tests := map[string]string{
		"localhost:11434":         "localhost:11434",
		"http://localhost:11434":  "localhost:11434",
		"https://example.com:443": "example.com:443",
		" http://host:1/ ":        "host:1",
	}
	for in, want := range tests {
		assert.Equal(t, want, StripScheme(in), in)
	}
}

func TestLoadQdrantAPIKeyWithoutURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("RAG_VECTOR_STORE", "qdrant")
	t.Setenv("QDRANT_API_KEY", "secret")

	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg.Storage.Qdrant)
	assert.Equal(t, "secret", cfg.Storage.Qdrant.APIKey)
	assert.Equal(t, "http://localhost:6333", cfg.Storage.Qdrant.URL)
}
