// Package config loads and validates ragseed's YAML configuration, with
// environment-variable overrides for secrets.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tributary-ai/ragseed/internal/types"
)

// Config is the complete application configuration.
type Config struct {
	Router   RouterConfig   `yaml:"router"`
	Search   SearchConfig   `yaml:"search"`
	RAG      RAGConfig      `yaml:"rag"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// RouterConfig controls the LLM router's provider set and fallback policy.
type RouterConfig struct {
	EnableMultiLLMSupport bool                       `yaml:"enable_multi_llm_support"`
	PrimaryProvider       string                     `yaml:"primary_provider"`
	PreferredProviders    []string                   `yaml:"preferred_providers"`
	FallbackProviders     []string                   `yaml:"fallback_providers"`
	AutoFallback          bool                       `yaml:"auto_fallback"`
	HealthCheckInterval   time.Duration              `yaml:"health_check_interval"`
	Providers             map[string]*ProviderConfig `yaml:"providers"`
}

// ProviderConfig is the YAML shape for a single vendor entry; Build converts
// it into types.ProviderConfig after resolving APIKeyEnv.
type ProviderConfig struct {
	Vendor             string        `yaml:"vendor"`
	APIKey             string        `yaml:"api_key"`
	APIKeyEnv          string        `yaml:"api_key_env"`
	Model              string        `yaml:"model"`
	BaseURL            string        `yaml:"base_url"`
	Temperature        float32       `yaml:"temperature"`
	MaxTokens          int           `yaml:"max_tokens"`
	ConnectTimeout     time.Duration `yaml:"connect_timeout"`
	ReadTimeout        time.Duration `yaml:"read_timeout"`
	RetryCount         int           `yaml:"retry_count"`
	RetryBaseDelay     time.Duration `yaml:"retry_base_delay"`
	MinRequestInterval time.Duration `yaml:"min_request_interval"`
	InputCostPer1K     float64       `yaml:"input_cost_per_1k"`
	OutputCostPer1K    float64       `yaml:"output_cost_per_1k"`
	Enabled            bool          `yaml:"enabled"`
}

// Build resolves the YAML provider entry, preferring an explicit api_key_env
// environment variable over an inline key, and returns the runtime type.
func (p *ProviderConfig) Build(name string) *types.ProviderConfig {
	apiKey := p.APIKey
	if p.APIKeyEnv != "" {
		if v := os.Getenv(p.APIKeyEnv); v != "" {
			apiKey = v
		}
	}
	return &types.ProviderConfig{
		Name:               name,
		Vendor:             types.Vendor(p.Vendor),
		APIKey:             apiKey,
		APIKeyEnv:          p.APIKeyEnv,
		Model:              p.Model,
		BaseURL:            p.BaseURL,
		Temperature:        p.Temperature,
		MaxTokens:          p.MaxTokens,
		ConnectTimeout:     p.ConnectTimeout,
		ReadTimeout:        p.ReadTimeout,
		RetryCount:         p.RetryCount,
		RetryBaseDelay:     p.RetryBaseDelay,
		MinRequestInterval: p.MinRequestInterval,
		InputCostPer1K:     p.InputCostPer1K,
		OutputCostPer1K:    p.OutputCostPer1K,
		Enabled:            p.Enabled,
	}
}

// SearchConfig controls the search adapter.
type SearchConfig struct {
	EnableRealWebSearch  bool          `yaml:"enable_real_web_search"`
	EnableParallelSearch bool          `yaml:"enable_parallel_search"`
	TavilyAPIKeyEnv      string        `yaml:"tavily_api_key_env"`
	MaxSearchWorkers     int           `yaml:"max_search_workers"`
	MaxSearchResults     int           `yaml:"max_search_results"`
	RateLimitInterval    time.Duration `yaml:"search_rate_limit_interval"`
	MaxRetries           int           `yaml:"search_max_retries"`
	RetryBaseDelay       time.Duration `yaml:"search_retry_base_delay"`
	RequestTimeout       time.Duration `yaml:"request_timeout"`
}

// RAGConfig controls the generator and verifier pipelines.
type RAGConfig struct {
	CacheSize         int  `yaml:"cache_size"`
	TokenUsageTracking bool `yaml:"token_usage_tracking"`
}

// LoggingConfig controls logrus output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file, applies environment overrides,
// and validates the result. An empty path loads defaults only.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.setDefaults()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("config: load from file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) setDefaults() {
	c.Router = RouterConfig{
		EnableMultiLLMSupport: true,
		PrimaryProvider:       "deepseek",
		AutoFallback:          true,
		HealthCheckInterval:   300 * time.Second,
		Providers: map[string]*ProviderConfig{
			"deepseek": {
				Vendor: "deepseek", Model: "deepseek-chat", APIKeyEnv: "DEEPSEEK_API_KEY",
				Temperature: 0.7, MaxTokens: 2048, Enabled: true,
				InputCostPer1K: 0.00014, OutputCostPer1K: 0.00028,
				ReadTimeout: 60 * time.Second, RetryCount: 2, RetryBaseDelay: 500 * time.Millisecond,
			},
			"openai": {
				Vendor: "openai", Model: "gpt-4o-mini", APIKeyEnv: "OPENAI_API_KEY",
				Temperature: 0.7, MaxTokens: 2048, Enabled: true,
				InputCostPer1K: 0.00015, OutputCostPer1K: 0.0006,
				ReadTimeout: 60 * time.Second, RetryCount: 2, RetryBaseDelay: 500 * time.Millisecond,
			},
		},
	}

	c.Search = SearchConfig{
		EnableRealWebSearch:  false,
		EnableParallelSearch: true,
		TavilyAPIKeyEnv:      "TAVILY_API_KEY",
		MaxSearchWorkers:     3,
		MaxSearchResults:     8,
		RateLimitInterval:    1500 * time.Millisecond,
		MaxRetries:           2,
		RetryBaseDelay:       2 * time.Second,
		RequestTimeout:       10 * time.Second,
	}

	c.RAG = RAGConfig{
		CacheSize:          256,
		TokenUsageTracking: true,
	}

	c.Logging = LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse YAML config: %w", err)
	}
	return nil
}

func (c *Config) loadFromEnv() {
	if level := os.Getenv("RAGSEED_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if format := os.Getenv("RAGSEED_LOG_FORMAT"); format != "" {
		c.Logging.Format = format
	}
	if primary := os.Getenv("RAGSEED_PRIMARY_PROVIDER"); primary != "" {
		c.Router.PrimaryProvider = primary
	}
	if tavilyKey := os.Getenv("TAVILY_API_KEY"); tavilyKey != "" {
		c.Search.EnableRealWebSearch = true
	}
}

func (c *Config) validate() error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "fatal": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if len(c.Router.Providers) == 0 {
		return fmt.Errorf("at least one provider must be configured")
	}
	if _, ok := c.Router.Providers[c.Router.PrimaryProvider]; !ok {
		return fmt.Errorf("primary provider %q is not present in router.providers", c.Router.PrimaryProvider)
	}
	for name, p := range c.Router.Providers {
		if p.Model == "" {
			return fmt.Errorf("provider %q must configure a model", name)
		}
	}

	return nil
}

// OrderedProviderNames returns the candidate dispatch order: primary first,
// then preferred providers, then configured fallbacks, skipping duplicates
// and anything not present in router.providers.
func (c *Config) OrderedProviderNames() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		if _, ok := c.Router.Providers[name]; !ok {
			return
		}
		seen[name] = true
		out = append(out, name)
	}
	add(c.Router.PrimaryProvider)
	for _, p := range c.Router.PreferredProviders {
		add(p)
	}
	for _, p := range c.Router.FallbackProviders {
		add(p)
	}
	return out
}
