package generator

import (
	"fmt"

	"github.com/kiranshivaraju/dqbank/internal/config"
	"github.com/kiranshivaraju/dqbank/internal/generator/anthropic"
	"github.com/kiranshivaraju/dqbank/internal/generator/mock"
	"github.com/kiranshivaraju/dqbank/internal/generator/ollama"
	"github.com/kiranshivaraju/dqbank/internal/generator/openai"
	"github.com/kiranshivaraju/dqbank/pkg/models"
)

// NewProvider constructs the appropriate candidate generator based on config.
// Called once at server startup.
func NewProvider(cfg config.GeneratorConfig) (models.CandidateGenerator, error) {
	switch cfg.Provider {
	case "mock":
		return mock.NewMockGenerator(), nil
	case "ollama":
		return ollama.NewProvider(cfg.Ollama, cfg.Timeout), nil
	case "openai":
		return openai.NewProvider(cfg.OpenAI, cfg.Timeout), nil
	case "anthropic":
		return anthropic.NewProvider(cfg.Anthropic, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown generator provider %q: must be one of mock, ollama, openai, anthropic", cfg.Provider)
	}
}
