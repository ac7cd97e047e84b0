package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/tagmark/tagmark/pkg/config"
	"github.com/tagmark/tagmark/pkg/resilience"
)

// anthropicClient drives the Anthropic Messages API.
type anthropicClient struct {
	client      anthropic.Client
	name        string
	temperature float64
	maxTokens   int64
	timeout     time.Duration
}

func newAnthropicClient(cfg config.LLMConfig) (*anthropicClient, error) {
	var opts []option.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &anthropicClient{
		client:      anthropic.NewClient(opts...),
		name:        cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   int64(cfg.MaxTokens),
		timeout:     cfg.Timeout,
	}, nil
}

func (c *anthropicClient) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.name),
		MaxTokens:   c.maxTokens,
		Temperature: anthropic.Float(c.temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		// Surface the HTTP status so the retry layer can tell rate limits
		// from hard client errors.
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", &resilience.HTTPStatusError{
				Service:    config.DependencyLLM,
				StatusCode: apiErr.StatusCode,
				Status:     fmt.Sprintf("%d", apiErr.StatusCode),
			}
		}
		return "", fmt.Errorf("anthropic completion: %w", err)
	}

	var out strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	return out.String(), nil
}

func (c *anthropicClient) Model() string {
	return c.name
}
