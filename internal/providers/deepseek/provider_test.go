package deepseek

import (
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/ragseed/internal/types"
)

func testConfig() *types.ProviderConfig {
	return &types.ProviderConfig{
		Name: "deepseek", Vendor: types.VendorDeepSeek, APIKey: "test-key",
		Model: "deepseek-chat", Temperature: 0.7, MaxTokens: 512,
		InputCostPer1K: 0.00014, OutputCostPer1K: 0.00028,
	}
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return l
}

func TestProvider_Name(t *testing.T) {
	p := New(testConfig(), testLogger())
	if got := p.Name(); got != "deepseek" {
		t.Errorf("expected name 'deepseek', got %s", got)
	}
}

func TestProvider_EstimateCost(t *testing.T) {
	p := New(testConfig(), testLogger())

	messages := []types.ChatMessage{{Role: types.RoleUser, Content: "summarize the CAP theorem"}}
	estimate, err := p.EstimateCost(messages, 128)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if estimate.OutputTokens != 128 {
		t.Errorf("expected output tokens 128, got %d", estimate.OutputTokens)
	}
	if estimate.TotalCost <= 0 {
		t.Errorf("expected positive cost, got %f", estimate.TotalCost)
	}
}

func TestProvider_EstimateCost_DefaultsMaxTokens(t *testing.T) {
	p := New(testConfig(), testLogger())
	estimate, err := p.EstimateCost([]types.ChatMessage{{Role: types.RoleUser, Content: "hi"}}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if estimate.OutputTokens != p.config.MaxTokens {
		t.Errorf("expected fallback to configured max tokens %d, got %d", p.config.MaxTokens, estimate.OutputTokens)
	}
}
