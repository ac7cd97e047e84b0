package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagmark/tagmark/pkg/config"
	"github.com/tagmark/tagmark/pkg/resilience"
)

type fakeClient struct {
	response string
	err      error
	calls    int
}

func (f *fakeClient) Generate(context.Context, string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeClient) Model() string { return "fake-model" }

func newLLMGuard() *resilience.Guard {
	return resilience.NewGuard(config.DependencyLLM,
		config.BreakerConfig{Threshold: 0.5, WindowSize: 10, OpenDwell: 30 * time.Second, HalfOpenProbes: 3},
		config.RetryConfig{MaxAttempts: 2, BaseWait: time.Millisecond, Multiplier: 2},
	)
}

func TestNewClientUnsupportedProvider(t *testing.T) {
	_, err := NewClient(config.LLMConfig{Provider: "watson"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported llm provider")
}

func TestNewClientOpenAI(t *testing.T) {
	cfg := *config.DefaultLLMConfig()
	cfg.APIKey = "test-key"

	client, err := NewClient(cfg)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", client.Model())
}

func TestNewClientAnthropic(t *testing.T) {
	cfg := *config.DefaultLLMConfig()
	cfg.Provider = config.LLMProviderAnthropic
	cfg.Model = "claude-3-5-haiku-latest"
	cfg.APIKey = "test-key"

	client, err := NewClient(cfg)
	require.NoError(t, err)
	assert.Equal(t, "claude-3-5-haiku-latest", client.Model())
}

func TestGuardedGenerate(t *testing.T) {
	fake := &fakeClient{response: `["spring-boot"]`}
	guarded := NewGuarded(fake, newLLMGuard())

	out, err := guarded.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, `["spring-boot"]`, out)
	assert.Equal(t, "fake-model", guarded.Model())
}

func TestGuardedGenerateExhaustsBudget(t *testing.T) {
	fake := &fakeClient{err: errors.New("upstream timeout")}
	guarded := NewGuarded(fake, newLLMGuard())

	_, err := guarded.Generate(context.Background(), "prompt")

	unavailable, ok := resilience.IsServiceUnavailable(err)
	require.True(t, ok)
	assert.Equal(t, config.DependencyLLM, unavailable.Service)
	assert.Equal(t, 2, fake.calls, "llm budget is two attempts")
}
