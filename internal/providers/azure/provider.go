// Package azure adapts github.com/sashabaranov/go-openai's Azure OpenAI
// config to the shared LLMProvider capability.
package azure

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/ragseed/internal/providers"
	"github.com/tributary-ai/ragseed/internal/types"
)

// Provider implements providers.LLMProvider against an Azure OpenAI
// deployment. Model is the deployment name, not the underlying model id.
type Provider struct {
	client *openai.Client
	config *types.ProviderConfig
	logger *logrus.Logger
}

func New(config *types.ProviderConfig, logger *logrus.Logger) (*Provider, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("azure provider %q requires base_url (resource endpoint)", config.Name)
	}
	clientConfig := openai.DefaultAzureConfig(config.APIKey, config.BaseURL)
	clientConfig.AzureModelMapperFunc = func(model string) string {
		return config.Model
	}
	return &Provider{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
		logger: logger,
	}, nil
}

func (p *Provider) Name() string                 { return p.config.Name }
func (p *Provider) Config() *types.ProviderConfig { return p.config }

// TokenExpiry inspects an Azure AD bearer token (when APIKey carries one
// instead of a static subscription key) and reports its expiry, without
// validating the signature — Azure already did that.
func TokenExpiry(token string) (time.Time, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("parse azure ad token: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, fmt.Errorf("azure ad token carries no exp claim")
	}
	return exp.Time, nil
}

// isADToken distinguishes an Azure AD bearer token (three dot-separated JWT
// segments) from a static subscription key, which carries no dots.
func isADToken(apiKey string) bool {
	return strings.Count(apiKey, ".") == 2
}

func (p *Provider) ChatCompletion(ctx context.Context, messages []types.ChatMessage, overrides types.ChatOverrides) (*types.ChatResponse, error) {
	start := time.Now()

	if isADToken(p.config.APIKey) {
		if exp, err := TokenExpiry(p.config.APIKey); err == nil && !time.Now().Before(exp) {
			p.logger.WithField("provider", p.config.Name).Warn("azure ad token expired, refusing call")
			return &types.ChatResponse{
				Success:  false,
				Provider: p.config.Name,
				Model:    p.config.Model,
				Latency:  providers.NowLatency(start),
				Error:    types.NewCallError(types.ErrAuth, "azure ad token expired at %s", exp.Format(time.RFC3339)),
			}, nil
		}
	}

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
		p.logger.WithError(err).WithField("provider", p.config.Name).Warn("azure chat completion failed")
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
			Error:    types.NewCallError(types.ErrParse, "azure returned no choices"),
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
	return &types.CostEstimate{InputTokens: inputTokens, OutputTokens: maxTokens, TotalCost: cost}, nil
}

func (p *Provider) HealthCheck(ctx context.Context) error {
	_, err := p.client.ListModels(ctx)
	return err
}

func toOpenAIMessages(messages []types.ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}

func classifyErr(err error) types.ErrorKind {
	if apiErr, ok := err.(*openai.APIError); ok {
		return providers.ClassifyHTTPStatus(apiErr.HTTPStatusCode, apiErr.Message)
	}
	return providers.ClassifyTransportError(err)
}

var _ providers.LLMProvider = (*Provider)(nil)
