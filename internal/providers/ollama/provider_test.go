package ollama

import (
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/ragseed/internal/types"
)

func testConfig() *types.ProviderConfig {
	return &types.ProviderConfig{
		Name: "ollama", Vendor: types.VendorOllama,
		Model: "llama3", Temperature: 0.7, MaxTokens: 512,
	}
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return l
}

func createTestProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := New(testConfig(), testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestProvider_Name(t *testing.T) {
	p := createTestProvider(t)
	if got := p.Name(); got != "ollama" {
		t.Errorf("expected name 'ollama', got %s", got)
	}
}

func TestProvider_New_RejectsInvalidBaseURL(t *testing.T) {
	cfg := testConfig()
	cfg.BaseURL = "://not-a-url"
	if _, err := New(cfg, testLogger()); err == nil {
		t.Error("expected an error for an invalid base url")
	}
}

func TestProvider_EstimateCost_IsAlwaysZero(t *testing.T) {
	p := createTestProvider(t)
	estimate, err := p.EstimateCost([]types.ChatMessage{{Role: types.RoleUser, Content: "hi"}}, 32)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if estimate.TotalCost != 0 {
		t.Errorf("expected zero cost for local inference, got %f", estimate.TotalCost)
	}
}
