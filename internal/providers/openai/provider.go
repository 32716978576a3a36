// Package openai adapts github.com/sashabaranov/go-openai to the shared
// LLMProvider capability.
package openai

import (
	"context"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/ragseed/internal/providers"
	"github.com/tributary-ai/ragseed/internal/types"
)

// Provider implements providers.LLMProvider for OpenAI-compatible chat
// completion endpoints.
type Provider struct {
	client *openai.Client
	config *types.ProviderConfig
	logger *logrus.Logger
}

// New builds an OpenAI provider. BaseURL is honored so the same adapter
// serves any OpenAI-compatible gateway.
func New(config *types.ProviderConfig, logger *logrus.Logger) *Provider {
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	return &Provider{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
		logger: logger,
	}
}

func (p *Provider) Name() string                    { return p.config.Name }
func (p *Provider) Config() *types.ProviderConfig    { return p.config }

func (p *Provider) ChatCompletion(ctx context.Context, messages []types.ChatMessage, overrides types.ChatOverrides) (*types.ChatResponse, error) {
	start := time.Now()

	req := openai.ChatCompletionRequest{
		Model:       p.config.Model,
		Messages:    toOpenAIMessages(messages),
		Temperature: p.config.Temperature,
		MaxTokens:   p.config.MaxTokens,
	}
	if overrides.Temperature != nil {
		req.Temperature = *overrides.Temperature
	}
	if overrides.MaxTokens != nil {
		req.MaxTokens = *overrides.MaxTokens
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	latency := providers.NowLatency(start)
	if err != nil {
		kind := classifyErr(err)
		p.logger.WithError(err).WithField("provider", p.config.Name).Warn("openai chat completion failed")
		return &types.ChatResponse{
			Success:  false,
			Provider: p.config.Name,
			Model:    p.config.Model,
			Latency:  latency,
			Error:    types.NewCallError(kind, "%v", err),
		}, nil
	}

	if len(resp.Choices) == 0 {
		return &types.ChatResponse{
			Success:  false,
			Provider: p.config.Name,
			Model:    p.config.Model,
			Latency:  latency,
			Error:    types.NewCallError(types.ErrParse, "openai returned no choices"),
		}, nil
	}

	choice := resp.Choices[0]
	return &types.ChatResponse{
		Success:      true,
		Content:      choice.Message.Content,
		Provider:     p.config.Name,
		Model:        resp.Model,
		Latency:      latency,
		FinishReason: string(choice.FinishReason),
		Usage: &types.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func (p *Provider) EstimateCost(messages []types.ChatMessage, maxTokens int) (*types.CostEstimate, error) {
	inputTokens := providers.EstimateTokens(p.config.Model, messages)
	if maxTokens == 0 {
		maxTokens = p.config.MaxTokens
	}
	cost := float64(inputTokens)*p.config.InputCostPer1K/1000 + float64(maxTokens)*p.config.OutputCostPer1K/1000
	return &types.CostEstimate{
		InputTokens:  inputTokens,
		OutputTokens: maxTokens,
		TotalCost:    cost,
	}, nil
}

func (p *Provider) HealthCheck(ctx context.Context) error {
	_, err := p.client.ListModels(ctx)
	return err
}

func toOpenAIMessages(messages []types.ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return out
}

func classifyErr(err error) types.ErrorKind {
	var apiErr *openai.APIError
	if ok := asAPIError(err, &apiErr); ok {
		return providers.ClassifyHTTPStatus(apiErr.HTTPStatusCode, apiErr.Message)
	}
	return providers.ClassifyTransportError(err)
}

func asAPIError(err error, target **openai.APIError) bool {
	for err != nil {
		if ae, ok := err.(*openai.APIError); ok {
			*target = ae
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}

var _ providers.LLMProvider = (*Provider)(nil)
