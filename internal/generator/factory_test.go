package generator_test

import (
	"testing"
	"time"

	"github.com/kiranshivaraju/dqbank/internal/config"
	"github.com/kiranshivaraju/dqbank/internal/generator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider_Mock(t *testing.T) {
	p, err := generator.NewProvider(config.GeneratorConfig{Provider: "mock"})
	require.NoError(t, err)
	assert.Equal(t, "mock", p.Name())
}

func TestNewProvider_Ollama(t *testing.T) {
	cfg := config.GeneratorConfig{
		Provider: "ollama",
		Timeout:  30 * time.Second,
		Ollama:   config.OllamaConfig{BaseURL: "http://localhost:11434", Model: "llama3"},
	}
	p, err := generator.NewProvider(cfg)
	require.NoError(t, err)
	assert.Equal(t, "ollama", p.Name())
}

func TestNewProvider_OpenAI(t *testing.T) {
	cfg := config.GeneratorConfig{
		Provider: "openai",
		Timeout:  30 * time.Second,
		OpenAI:   config.OpenAIConfig{APIKey: "sk-test", Model: "gpt-4"},
	}
	p, err := generator.NewProvider(cfg)
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())
}

func TestNewProvider_Anthropic(t *testing.T) {
	cfg := config.GeneratorConfig{
		Provider:  "anthropic",
		Timeout:   30 * time.Second,
		Anthropic: config.AnthropicConfig{APIKey: "sk-ant-test", Model: "claude-sonnet-4-5-20250929"},
	}
	p, err := generator.NewProvider(cfg)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Name())
}

func TestNewProvider_Unknown(t *testing.T) {
	_, err := generator.NewProvider(config.GeneratorConfig{Provider: "bard"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown generator provider")
	assert.Contains(t, err.Error(), "bard")
}

func TestNewProvider_Empty(t *testing.T) {
	_, err := generator.NewProvider(config.GeneratorConfig{Provider: ""})
	require.Error(t, err)
}
