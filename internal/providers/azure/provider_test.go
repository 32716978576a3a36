package azure

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/ragseed/internal/types"
)

func testConfig() *types.ProviderConfig {
	return &types.ProviderConfig{
		Name: "azure-gpt4", Vendor: types.VendorAzure, APIKey: "test-key",
		Model: "my-deployment", BaseURL: "https://example.openai.azure.com",
		Temperature: 0.7, MaxTokens: 512,
		InputCostPer1K: 0.00015, OutputCostPer1K: 0.0006,
	}
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return l
}

func TestNew_RequiresBaseURL(t *testing.T) {
	cfg := testConfig()
	cfg.BaseURL = ""
	if _, err := New(cfg, testLogger()); err == nil {
		t.Error("expected an error when base_url is unset")
	}
}

func TestProvider_Name(t *testing.T) {
	p, err := New(testConfig(), testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := p.Name(); got != "azure-gpt4" {
		t.Errorf("expected name 'azure-gpt4', got %s", got)
	}
}

func TestProvider_EstimateCost(t *testing.T) {
	p, err := New(testConfig(), testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	estimate, err := p.EstimateCost([]types.ChatMessage{{Role: types.RoleUser, Content: "explain CAP theorem"}}, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if estimate.OutputTokens != 100 {
		t.Errorf("expected output tokens 100, got %d", estimate.OutputTokens)
	}
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": exp.Unix(),
	})
	signed, err := token.SignedString([]byte("unused-signing-key"))
	if err != nil {
		t.Fatalf("sign test token: %v", err)
	}

	got, err := TokenExpiry(signed)
	if err != nil {
		t.Fatalf("TokenExpiry: %v", err)
	}
	if !got.Equal(exp) {
		t.Errorf("expected expiry %v, got %v", exp, got)
	}
}

func TestTokenExpiry_RejectsMissingExpClaim(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user"})
	signed, err := token.SignedString([]byte("unused-signing-key"))
	if err != nil {
		t.Fatalf("sign test token: %v", err)
	}

	if _, err := TokenExpiry(signed); err == nil {
		t.Error("expected an error for a token with no exp claim")
	}
}

func TestChatCompletion_RefusesExpiredADToken(t *testing.T) {
	expired := time.Now().Add(-time.Hour)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": expired.Unix()})
	signed, err := token.SignedString([]byte("unused-signing-key"))
	if err != nil {
		t.Fatalf("sign test token: %v", err)
	}

	cfg := testConfig()
	cfg.APIKey = signed
	p, err := New(cfg, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	resp, err := p.ChatCompletion(context.Background(), []types.ChatMessage{{Role: types.RoleUser, Content: "hi"}}, types.ChatOverrides{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Success {
		t.Fatal("expected failure for an expired azure ad token")
	}
	if resp.Error == nil || resp.Error.Kind != types.ErrAuth {
		t.Errorf("expected terminal ErrAuth, got %+v", resp.Error)
	}
}
