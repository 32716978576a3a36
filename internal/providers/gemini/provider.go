// Package gemini adapts google.golang.org/genai to the shared LLMProvider
// capability.
package gemini

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"github.com/tributary-ai/ragseed/internal/providers"
	"github.com/tributary-ai/ragseed/internal/types"
)

// Provider implements providers.LLMProvider for Gemini models.
type Provider struct {
	client *genai.Client
	config *types.ProviderConfig
	logger *logrus.Logger
}

func New(ctx context.Context, config *types.ProviderConfig, logger *logrus.Logger) (*Provider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &Provider{client: client, config: config, logger: logger}, nil
}

func (p *Provider) Name() string                 { return p.config.Name }
func (p *Provider) Config() *types.ProviderConfig { return p.config }

func (p *Provider) ChatCompletion(ctx context.Context, messages []types.ChatMessage, overrides types.ChatOverrides) (*types.ChatResponse, error) {
	start := time.Now()

	var system string
	var contents []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case types.RoleSystem:
			system = m.Content
		case types.RoleUser:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		case types.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		}
	}

	temperature := p.config.Temperature
	if overrides.Temperature != nil {
		temperature = *overrides.Temperature
	}
	maxTokens := int32(p.config.MaxTokens)
	if overrides.MaxTokens != nil {
		maxTokens = int32(*overrides.MaxTokens)
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: maxTokens,
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.config.Model, contents, cfg)
	latency := providers.NowLatency(start)
	if err != nil {
		kind := providers.ClassifyTransportError(err)
		p.logger.WithError(err).WithField("provider", p.config.Name).Warn("gemini chat completion failed")
		return &types.ChatResponse{
			Success:  false,
			Provider: p.config.Name,
			Model:    p.config.Model,
			Latency:  latency,
			Error:    types.NewCallError(kind, "%v", err),
		}, nil
	}

	text := resp.Text()
	if text == "" {
		return &types.ChatResponse{
			Success:  false,
			Provider: p.config.Name,
			Model:    p.config.Model,
			Latency:  latency,
			Error:    types.NewCallError(types.ErrParse, "gemini returned no candidates"),
		}, nil
	}

	usage := &types.Usage{}
	if resp.UsageMetadata != nil {
		usage.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		usage.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	return &types.ChatResponse{
		Success:  true,
		Content:  text,
		Provider: p.config.Name,
		Model:    p.config.Model,
		Latency:  latency,
		Usage:    usage,
	}, nil
}

func (p *Provider) EstimateCost(messages []types.ChatMessage, maxTokens int) (*types.CostEstimate, error) {
	inputTokens := providers.EstimateTokens(p.config.Model, messages)
	if maxTokens == 0 {
		maxTokens = p.config.MaxTokens
	}
	cost := float64(inputTokens)*p.config.InputCostPer1K/1000 + float64(maxTokens)*p.config.OutputCostPer1K/1000
	return &types.CostEstimate{InputTokens: inputTokens, OutputTokens: maxTokens, TotalCost: cost}, nil
}

func (p *Provider) HealthCheck(ctx context.Context) error {
	_, err := p.client.Models.GenerateContent(ctx, p.config.Model,
		[]*genai.Content{genai.NewContentFromText("ping", genai.RoleUser)},
		&genai.GenerateContentConfig{MaxOutputTokens: 1})
	return err
}

var _ providers.LLMProvider = (*Provider)(nil)
