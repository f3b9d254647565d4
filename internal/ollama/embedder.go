package ollama

import (
	"context"
	"fmt"

	"github.com/ollama/ollama/api"

	"ragapi/internal/domain"
)

var _ domain.Embedder = (*Embedder)(nil)

// Embedder computes embeddings with an Ollama embedding model.
type Embedder struct {
	api   *api.Client
	model string
}

// NewEmbedder creates an embedder bound to model.
func NewEmbedder(client *api.Client, model string) *Embedder {
	return &Embedder{api: client, model: model}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "ollama/" + e.model }

// Embed returns one vector per input text, in order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := e.api.Embed(ctx, &api.EmbedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", mapError(err))
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed: got %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}
