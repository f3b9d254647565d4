package ollama

import (
	"context"
	"fmt"
	"strings"

	"github.com/ollama/ollama/api"

	"ragapi/internal/domain"
)

var _ domain.Generator = (*Generator)(nil)

// Generator sends single-shot, non-streaming prompts to an Ollama model.
type Generator struct {
	api   *api.Client
	model string
	host  string
}

// NewGenerator creates a generator for model served at host.
func NewGenerator(client *api.Client, host, model string) *Generator {
	return &Generator{api: client, model: model, host: host}
}

func (g *Generator) Model() string { return g.model }
func (g *Generator) Host() string  { return g.host }

// Provider returns "ollama".
func (g *Generator) Provider() string { return "ollama" }

// Generate returns the full completion for prompt.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	stream := false
	req := &api.GenerateRequest{
		Model:  g.model,
		Prompt: prompt,
		Stream: &stream,
	}

	var out strings.Builder
	err := g.api.Generate(ctx, req, func(resp api.GenerateResponse) error {
		out.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", mapError(err))
	}
	return out.String(), nil
}

// CheckModel lists installed models and reports whether the configured one
// is among them. Ollama lists models with their tag, so "tinyllama" matches
// "tinyllama:latest".
func (g *Generator) CheckModel(ctx context.Context) (available []string, found bool, err error) {
	resp, err := g.api.List(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("ollama list: %w", err)
	}
	for _, m := range resp.Models {
		available = append(available, m.Name)
		if m.Name == g.model || strings.TrimSuffix(m.Name, ":latest") == g.model {
			found = true
		}
	}
	return available, found, nil
}
