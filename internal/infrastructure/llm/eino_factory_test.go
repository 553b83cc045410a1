package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-novel-storygen/internal/config"
)

func TestEinoFactory_UnknownProvider(t *testing.T) {
	f := NewEinoFactory(&config.LLMConfig{
		DefaultProvider: "openai",
		Providers:       map[string]config.ProviderConfig{"openai": {Model: "gpt-4o-mini"}, "deepseek": {}},
	})

	_, err := f.Get(context.Background(), "claude")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deepseek, openai")
	assert.Equal(t, []string{"deepseek", "openai"}, f.Providers())
	assert.Equal(t, "gpt-4o-mini", f.ModelName(""))
	assert.Equal(t, "unknown", f.ModelName("deepseek"))
}

func TestEinoFactory_CachesModels(t *testing.T) {
	f := NewEinoFactory(&config.LLMConfig{
		DefaultProvider: "openai",
		Providers: map[string]config.ProviderConfig{
			"openai": {APIKey: "sk-test", BaseURL: "http://127.0.0.1:1/v1", Model: "gpt-4o-mini", Timeout: time.Second},
		},
	})

	a, err := f.Get(context.Background(), "")
	require.NoError(t, err)
	b, err := f.Get(context.Background(), "openai")
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestNewChatModelConfig_OptionalFields(t *testing.T) {
	cfg := newChatModelConfig(config.ProviderConfig{Model: "m"})
	assert.Nil(t, cfg.MaxTokens)
	assert.Nil(t, cfg.Temperature)

	cfg = newChatModelConfig(config.ProviderConfig{Model: "m", MaxTokens: 4096, Temperature: 0.7})
	require.NotNil(t, cfg.MaxTokens)
	assert.Equal(t, 4096, *cfg.MaxTokens)
	require.NotNil(t, cfg.Temperature)
	assert.InDelta(t, 0.7, float64(*cfg.Temperature), 1e-6)
}
