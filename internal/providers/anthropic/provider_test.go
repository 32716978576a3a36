package anthropic

import (
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/ragseed/internal/types"
)

func testConfig() *types.ProviderConfig {
	return &types.ProviderConfig{
		Name:            "anthropic",
		Vendor:          types.VendorAnthropic,
		APIKey:          "test-key",
		Model:           "claude-3-5-sonnet-20241022",
		Temperature:     0.7,
		MaxTokens:       512,
		InputCostPer1K:  0.003,
		OutputCostPer1K: 0.015,
	}
}

func createTestProvider(t *testing.T) *Provider {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return New(testConfig(), logger)
}

func TestProvider_Name(t *testing.T) {
	p := createTestProvider(t)
	if got := p.Name(); got != "anthropic" {
		t.Errorf("expected name 'anthropic', got %s", got)
	}
}

func TestProvider_EstimateCost(t *testing.T) {
	p := createTestProvider(t)

	messages := []types.ChatMessage{
		{Role: types.RoleSystem, Content: "you are terse"},
		{Role: types.RoleUser, Content: "summarize CAP theorem"},
	}

	estimate, err := p.EstimateCost(messages, 300)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if estimate.OutputTokens != 300 {
		t.Errorf("expected output tokens 300, got %d", estimate.OutputTokens)
	}
	if estimate.TotalCost <= 0 {
		t.Errorf("expected positive cost, got %f", estimate.TotalCost)
	}
}

func TestProvider_Config(t *testing.T) {
	p := createTestProvider(t)
	if p.Config().Model != "claude-3-5-sonnet-20241022" {
		t.Errorf("unexpected model: %s", p.Config().Model)
	}
}
