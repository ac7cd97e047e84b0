// Package llm provides single-turn text generation against the configured
// model provider.
package llm

import (
	"context"
	"fmt"

	"github.com/tagmark/tagmark/pkg/config"
	"github.com/tagmark/tagmark/pkg/resilience"
)

// Client generates a completion for a single prompt. Implementations are
// safe for concurrent use.
type Client interface {
	// Generate returns the raw model output for prompt.
	Generate(ctx context.Context, prompt string) (string, error)
	// Model returns the configured model identifier.
	Model() string
}

// NewClient builds the provider-specific client selected by cfg.Provider.
func NewClient(cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case config.LLMProviderOpenAI:
		return newOpenAIClient(cfg)
	case config.LLMProviderAnthropic:
		return newAnthropicClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}

// Guarded wraps a Client in the LLM resilience envelope so every completion
// runs under retry and the llm circuit breaker.
type Guarded struct {
	client Client
	guard  *resilience.Guard
}

// NewGuarded wraps client with guard.
func NewGuarded(client Client, guard *resilience.Guard) *Guarded {
	return &Guarded{client: client, guard: guard}
}

func (g *Guarded) Generate(ctx context.Context, prompt string) (string, error) {
	var out string
	err := g.guard.Do(ctx, func(ctx context.Context) error {
		text, err := g.client.Generate(ctx, prompt)
		if err != nil {
			return err
		}
		out = text
		return nil
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

func (g *Guarded) Model() string {
	return g.client.Model()
}
