// Package anthropic adapts github.com/anthropics/anthropic-sdk-go to the
// shared LLMProvider capability.
package anthropic

import (
	"context"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/ragseed/internal/providers"
	"github.com/tributary-ai/ragseed/internal/types"
)

// Provider implements providers.LLMProvider for Claude models.
type Provider struct {
	client *anthropic.Client
	config *types.ProviderConfig
	logger *logrus.Logger
}

func New(config *types.ProviderConfig, logger *logrus.Logger) *Provider {
	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	client := anthropic.NewClient(opts...)
	return &Provider{client: &client, config: config, logger: logger}
}

func (p *Provider) Name() string                 { return p.config.Name }
func (p *Provider) Config() *types.ProviderConfig { return p.config }

func (p *Provider) ChatCompletion(ctx context.Context, messages []types.ChatMessage, overrides types.ChatOverrides) (*types.ChatResponse, error) {
	start := time.Now()

	var system string
	var turns []anthropic.MessageParam
	for _, m := range messages {
		switch m.Role {
		case types.RoleSystem:
			system = m.Content
		case types.RoleUser:
			turns = append(turns, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case types.RoleAssistant:
			turns = append(turns, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	maxTokens := int64(p.config.MaxTokens)
	if overrides.MaxTokens != nil {
		maxTokens = int64(*overrides.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.config.Model),
		MaxTokens: maxTokens,
		Messages:  turns,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := p.client.Messages.New(ctx, params)
	latency := providers.NowLatency(start)
	if err != nil {
		kind := providers.ClassifyTransportError(err)
		p.logger.WithError(err).WithField("provider", p.config.Name).Warn("anthropic chat completion failed")
		return &types.ChatResponse{
			Success:  false,
			Provider: p.config.Name,
			Model:    p.config.Model,
			Latency:  latency,
			Error:    types.NewCallError(kind, "%v", err),
		}, nil
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	return &types.ChatResponse{
		Success:      true,
		Content:      content,
		Provider:     p.config.Name,
		Model:        string(resp.Model),
		Latency:      latency,
		FinishReason: string(resp.StopReason),
		Usage: &types.Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
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
	_, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.config.Model),
		MaxTokens: 1,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock("ping"))},
	})
	return err
}

var _ providers.LLMProvider = (*Provider)(nil)
