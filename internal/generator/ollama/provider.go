package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kiranshivaraju/dqbank/internal/config"
	"github.com/kiranshivaraju/dqbank/internal/generator/prompt"
	"github.com/kiranshivaraju/dqbank/pkg/models"
)

// Provider implements models.CandidateGenerator against a local Ollama server
// using the /api/generate endpoint.
type Provider struct {
	cfg    config.OllamaConfig
	client *http.Client
}

func NewProvider(cfg config.OllamaConfig, timeout time.Duration) *Provider {
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (p *Provider) Name() string { return "ollama" }

type generateRequest struct {
	Model  string `json:"model"`
	System string `json:"system"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format"`
}

type generateResponse struct {
	Response string `json:"response"`
}

func (p *Provider) Generate(ctx context.Context, issue models.Issue) ([]models.CandidateFix, error) {
	body, err := json.Marshal(generateRequest{
		Model:  p.cfg.Model,
		System: prompt.System(),
		Prompt: prompt.Build(issue),
		Stream: false,
		Format: "json",
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", models.ErrInferenceTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", models.ErrGeneratorUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: ollama returned status %d", models.ErrGeneratorUnavailable, resp.StatusCode)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidGeneration, err)
	}

	return prompt.ParseCandidates(out.Response)
}

var _ models.CandidateGenerator = (*Provider)(nil)
