// Package llm provides hosted language-model generators as an alternative to
// a local Ollama daemon.
package llm

import (
	"context"
	"fmt"

	"charm.land/fantasy"
	"charm.land/fantasy/providers/anthropic"
	"charm.land/fantasy/providers/openai"
	"charm.land/fantasy/providers/openrouter"

	"ragapi/internal/domain"
)

// FantasyConfig selects a hosted provider and model. BaseURL is optional
// and ignored by openrouter.
type FantasyConfig struct {
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
}

var _ domain.Generator = (*FantasyGenerator)(nil)

// FantasyGenerator implements domain.Generator on top of a fantasy
// language model.
type FantasyGenerator struct {
	model     fantasy.LanguageModel
	modelName string
	host      string
	provider  string
}

// NewFantasyGenerator builds the provider named in cfg and resolves its model.
func NewFantasyGenerator(ctx context.Context, cfg FantasyConfig) (*FantasyGenerator, error) {
	var provider fantasy.Provider
	var err error

	switch cfg.Provider {
	case "openai":
		opts := []openai.Option{openai.WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		provider, err = openai.New(opts...)

	case "anthropic":
		opts := []anthropic.Option{anthropic.WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		provider, err = anthropic.New(opts...)

	case "openrouter":
		opts := []openrouter.Option{openrouter.WithAPIKey(cfg.APIKey)}
		provider, err = openrouter.New(opts...)

	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}

	if err != nil {
		return nil, fmt.Errorf("create provider: %w", err)
	}

	model, err := provider.LanguageModel(ctx, cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("get language model: %w", err)
	}

	host := cfg.BaseURL
	if host == "" {
		host = cfg.Provider
	}

	return &FantasyGenerator{
		model:     model,
		modelName: cfg.Model,
		host:      host,
		provider:  cfg.Provider,
	}, nil
}

func (g *FantasyGenerator) Model() string { return g.modelName }
func (g *FantasyGenerator) Host() string  { return g.host }

// Provider returns the configured provider name.
func (g *FantasyGenerator) Provider() string { return g.provider }

// Generate runs prompt as a single user turn and returns the text reply.

func (g *FantasyGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	agent := fantasy.NewAgent(g.model)

	result, err := agent.Generate(ctx, fantasy.AgentCall{
		Prompt: prompt,
	})
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}

	return result.Response.Content.Text(), nil
}
