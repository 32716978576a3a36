// Package ollama adapts github.com/ollama/ollama/api to the shared
// LLMProvider capability, for local/self-hosted models.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/ragseed/internal/providers"
	"github.com/tributary-ai/ragseed/internal/types"
)

const defaultBaseURL = "http://localhost:11434"

// Provider implements providers.LLMProvider against a local Ollama daemon.
// Cost fields are always zero since local inference has no per-token price.
type Provider struct {
	client *api.Client
	config *types.ProviderConfig
	logger *logrus.Logger
}

func New(config *types.ProviderConfig, logger *logrus.Logger) (*Provider, error) {
	raw := config.BaseURL
	if raw == "" {
		raw = defaultBaseURL
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama base url: %w", err)
	}
	httpClient := &http.Client{Timeout: config.ReadTimeout}
	return &Provider{
		client: api.NewClient(base, httpClient),
		config: config,
		logger: logger,
	}, nil
}

func (p *Provider) Name() string                 { return p.config.Name }
func (p *Provider) Config() *types.ProviderConfig { return p.config }

func (p *Provider) ChatCompletion(ctx context.Context, messages []types.ChatMessage, overrides types.ChatOverrides) (*types.ChatResponse, error) {
	start := time.Now()

	chatMessages := make([]api.Message, 0, len(messages))
	for _, m := range messages {
		chatMessages = append(chatMessages, api.Message{Role: string(m.Role), Content: m.Content})
	}

	temperature := float32(p.config.Temperature)
	if overrides.Temperature != nil {
		temperature = *overrides.Temperature
	}
	stream := false

	var response api.ChatResponse
	var respErr error
	req := &api.ChatRequest{
		Model:    p.config.Model,
		Messages: chatMessages,
		Stream:   &stream,
		Options: map[string]interface{}{
			"temperature": temperature,
		},
	}
	err := p.client.Chat(ctx, req, func(r api.ChatResponse) error {
		response = r
		return nil
	})
	latency := providers.NowLatency(start)
	if err != nil {
		respErr = err
		kind := providers.ClassifyTransportError(err)
		p.logger.WithError(err).WithField("provider", p.config.Name).Warn("ollama chat completion failed")
		return &types.ChatResponse{
			Success:  false,
			Provider: p.config.Name,
			Model:    p.config.Model,
			Latency:  latency,
			Error:    types.NewCallError(kind, "%v", respErr),
		}, nil
	}

	return &types.ChatResponse{
		Success:  true,
		Content:  response.Message.Content,
		Provider: p.config.Name,
		Model:    response.Model,
		Latency:  latency,
		Usage: &types.Usage{
			PromptTokens:     response.PromptEvalCount,
			CompletionTokens: response.EvalCount,
			TotalTokens:      response.PromptEvalCount + response.EvalCount,
		},
	}, nil
}

func (p *Provider) EstimateCost(messages []types.ChatMessage, maxTokens int) (*types.CostEstimate, error) {
	inputTokens := providers.EstimateTokens(p.config.Model, messages)
	return &types.CostEstimate{InputTokens: inputTokens, OutputTokens: maxTokens, TotalCost: 0}, nil
}

func (p *Provider) HealthCheck(ctx context.Context) error {
	_, err := p.client.List(ctx)
	return err
}

var _ providers.LLMProvider = (*Provider)(nil)
