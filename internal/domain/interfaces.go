package domain

import "context"

// Document is a stored text snippet. The vector store owns it; the service
// never caches or mutates documents itself.
type Document struct {
	ID       string
	Text     string
	Metadata map[string]any
}

// Match is a single ranked hit returned by a similarity query.
// Distance is the backend's dissimilarity metric (lower is closer).
type Match struct {
	ID       string
	Text     string
	Distance float64
	Metadata map[string]any
}

// Embedder converts free text into numeric vectors.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore is a persistent document collection with embedding done on
// the store side: callers hand it plain text.
type VectorStore interface {
	Add(ctx context.Context, docs []Document) error
	Query(ctx context.Context, text string, n int) ([]Match, error)
	Get(ctx context.Context, ids []string) ([]Document, error)
	Delete(ctx context.Context, ids []string) error
	Count(ctx context.Context) (int, error)
}

// Generator produces a completion for a prompt using a fixed model.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
	Host() string
	// Provider names the backend, e.g. "ollama" or "openai".
	Provider() string
}
