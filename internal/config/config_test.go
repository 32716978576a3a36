package config

import (
	"os"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Router.PrimaryProvider != "deepseek" {
		t.Errorf("expected default primary provider 'deepseek', got %s", cfg.Router.PrimaryProvider)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default log level 'info', got %s", cfg.Logging.Level)
	}
	if !cfg.Router.AutoFallback {
		t.Error("expected auto_fallback to default true")
	}
	if cfg.RAG.CacheSize != 256 {
		t.Errorf("expected default cache size 256, got %d", cfg.RAG.CacheSize)
	}
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	os.Setenv("RAGSEED_LOG_LEVEL", "debug")
	os.Setenv("RAGSEED_PRIMARY_PROVIDER", "openai")
	defer func() {
		os.Unsetenv("RAGSEED_LOG_LEVEL")
		os.Unsetenv("RAGSEED_PRIMARY_PROVIDER")
	}()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level override to 'debug', got %s", cfg.Logging.Level)
	}
	if cfg.Router.PrimaryProvider != "openai" {
		t.Errorf("expected primary provider override to 'openai', got %s", cfg.Router.PrimaryProvider)
	}
}

func TestLoad_RejectsUnknownPrimaryProvider(t *testing.T) {
	os.Setenv("RAGSEED_PRIMARY_PROVIDER", "not-configured")
	defer os.Unsetenv("RAGSEED_PRIMARY_PROVIDER")

	if _, err := Load(""); err == nil {
		t.Fatal("expected validation error for unknown primary provider")
	}
}

func TestProviderConfig_BuildPrefersEnvKey(t *testing.T) {
	os.Setenv("TEST_PROVIDER_KEY", "from-env")
	defer os.Unsetenv("TEST_PROVIDER_KEY")

	p := &ProviderConfig{Vendor: "openai", APIKey: "inline", APIKeyEnv: "TEST_PROVIDER_KEY", Model: "gpt-4o-mini"}
	built := p.Build("openai")
	if built.APIKey != "from-env" {
		t.Errorf("expected env var to take priority, got %s", built.APIKey)
	}
}

func TestOrderedProviderNames_DedupesAndFiltersUnknown(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	cfg.Router.PreferredProviders = []string{"deepseek", "openai", "unknown"}
	cfg.Router.FallbackProviders = []string{"openai"}

	order := cfg.OrderedProviderNames()
	if len(order) != 2 {
		t.Fatalf("expected 2 deduped providers, got %v", order)
	}
	if order[0] != "deepseek" || order[1] != "openai" {
		t.Errorf("unexpected order: %v", order)
	}
}
