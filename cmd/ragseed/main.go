package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/ragseed/internal/config"
	"github.com/tributary-ai/ragseed/internal/providers"
	"github.com/tributary-ai/ragseed/internal/providers/anthropic"
	"github.com/tributary-ai/ragseed/internal/providers/azure"
	"github.com/tributary-ai/ragseed/internal/providers/deepseek"
	"github.com/tributary-ai/ragseed/internal/providers/gemini"
	"github.com/tributary-ai/ragseed/internal/providers/ollama"
	"github.com/tributary-ai/ragseed/internal/providers/openai"
	"github.com/tributary-ai/ragseed/internal/ragseed"
	"github.com/tributary-ai/ragseed/internal/router"
	"github.com/tributary-ai/ragseed/internal/search"
	"github.com/tributary-ai/ragseed/internal/types"
	"github.com/tributary-ai/ragseed/internal/verify"
)

// Application wires configuration into a running router, search adapter,
// RAG generator, and verifier, and runs a single query end to end.
type Application struct {
	cfg      *config.Config
	router   *router.Router
	search   *search.Adapter
	generate *ragseed.Generator
	verify   *verify.Verifier
	logger   *logrus.Logger
}

// NewApplication loads configuration, constructs every provider adapter in
// cfg.OrderedProviderNames order, and assembles the pipeline.
func NewApplication(ctx context.Context, configPath string) (*Application, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logrus.New()
	if err := setupLogger(logger, cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}

	routerInstance := router.New(logger)
	routerInstance.SetHealthCheckInterval(cfg.Router.HealthCheckInterval)
	if err := registerProviders(ctx, routerInstance, cfg, logger); err != nil {
		return nil, fmt.Errorf("failed to register providers: %w", err)
	}

	searchAdapter := search.New(search.Config{
		Enabled:        cfg.Search.EnableRealWebSearch,
		TavilyAPIKey:   os.Getenv(cfg.Search.TavilyAPIKeyEnv),
		MaxResults:     cfg.Search.MaxSearchResults,
		RateLimitGap:   cfg.Search.RateLimitInterval,
		MaxRetries:     cfg.Search.MaxRetries,
		RetryBaseDelay: cfg.Search.RetryBaseDelay,
		RequestTimeout: cfg.Search.RequestTimeout,
	}, logger)

	generator, err := ragseed.New(ragseed.Config{
		MaxSearchWorkers: cfg.Search.MaxSearchWorkers,
		MaxSearchResults: cfg.Search.MaxSearchResults,
		CacheSize:        cfg.RAG.CacheSize,
		EnableParallel:   cfg.Search.EnableParallelSearch,
	}, routerInstance, searchAdapter, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to construct RAG generator: %w", err)
	}

	verifier := verify.New(routerInstance, searchAdapter, logger)

	return &Application{
		cfg:      cfg,
		router:   routerInstance,
		search:   searchAdapter,
		generate: generator,
		verify:   verifier,
		logger:   logger,
	}, nil
}

// Run executes the pipeline once: generate a contextual thinking seed for
// the query, then verify and enhance it.
func (app *Application) Run(ctx context.Context, query string) error {
	app.logger.WithField("query", query).Info("generating thinking seed")

	seedCtx, err := app.generate.Generate(ctx, query)
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	reqLogger := app.logger.WithField("request_id", seedCtx.RequestID)
	reqLogger.WithField("seed", seedCtx.ThinkingSeed).Info("seed generated")

	sink := &loggingSink{logger: reqLogger}
	result := app.verify.Verify(ctx, seedCtx, sink)

	reqLogger.WithFields(logrus.Fields{
		"feasibility_score":    result.FeasibilityScore,
		"verification_passed": result.VerificationPassed,
	}).Info("seed verification complete")

	if result.EnhancedSeed != "" {
		fmt.Println(result.EnhancedSeed)
	} else {
		fmt.Println(seedCtx.ThinkingSeed)
	}

	return nil
}

type loggingSink struct {
	logger *logrus.Entry
}

func (s *loggingSink) Send(e verify.Event) {
	s.logger.WithFields(logrus.Fields{"stage": e.Stage, "meta": e.Meta}).Debug(e.Content)
}

func setupLogger(logger *logrus.Logger, cfg config.LoggingConfig) error {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %s: %w", cfg.Level, err)
	}
	logger.SetLevel(level)

	switch cfg.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	default:
		return fmt.Errorf("invalid log format: %s", cfg.Format)
	}

	switch cfg.Output {
	case "stdout":
		logger.SetOutput(os.Stdout)
	case "stderr":
		logger.SetOutput(os.Stderr)
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", cfg.Output, err)
		}
		logger.SetOutput(file)
	}

	return nil
}

// registerProviders builds a concrete adapter for each name in
// cfg.OrderedProviderNames and registers it with the router in that order,
// so the primary provider is tried first and fallbacks follow.
func registerProviders(ctx context.Context, r *router.Router, cfg *config.Config, logger *logrus.Logger) error {
	registered := 0
	for _, name := range cfg.OrderedProviderNames() {
		entry := cfg.Router.Providers[name]
		built := entry.Build(name)
		if !built.Enabled || built.APIKey == "" {
			logger.WithField("provider", name).Warn("skipping provider with no API key configured")
			continue
		}

		provider, err := buildProvider(ctx, built, logger)
		if err != nil {
			logger.WithError(err).WithField("provider", name).Warn("failed to construct provider, skipping")
			continue
		}

		r.Register(provider)
		logger.WithFields(logrus.Fields{"provider": name, "vendor": built.Vendor, "model": built.Model}).Info("provider registered")
		registered++
	}

	if registered == 0 {
		return fmt.Errorf("no providers were registered - check your configuration and API keys")
	}
	return nil
}

func buildProvider(ctx context.Context, cfg *types.ProviderConfig, logger *logrus.Logger) (providers.LLMProvider, error) {
	switch cfg.Vendor {
	case types.VendorDeepSeek:
		return deepseek.New(cfg, logger), nil
	case types.VendorOpenAI:
		return openai.New(cfg, logger), nil
	case types.VendorAnthropic:
		return anthropic.New(cfg, logger), nil
	case types.VendorGemini:
		return gemini.New(ctx, cfg, logger)
	case types.VendorOllama:
		return ollama.New(cfg, logger)
	case types.VendorAzure:
		return azure.New(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown provider vendor: %s", cfg.Vendor)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [options] <query>\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\nOptions:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
	fmt.Fprintf(os.Stderr, "  DEEPSEEK_API_KEY       DeepSeek API key\n")
	fmt.Fprintf(os.Stderr, "  OPENAI_API_KEY         OpenAI API key\n")
	fmt.Fprintf(os.Stderr, "  ANTHROPIC_API_KEY      Anthropic API key\n")
	fmt.Fprintf(os.Stderr, "  GEMINI_API_KEY         Gemini API key\n")
	fmt.Fprintf(os.Stderr, "  TAVILY_API_KEY         Tavily search API key\n")
	fmt.Fprintf(os.Stderr, "  RAGSEED_LOG_LEVEL      Log level (debug,info,warn,error,fatal)\n")
	fmt.Fprintf(os.Stderr, "  RAGSEED_LOG_FORMAT     Log format (json,text)\n")
	fmt.Fprintf(os.Stderr, "  RAGSEED_PRIMARY_PROVIDER  Primary provider name\n")
	fmt.Fprintf(os.Stderr, "\nExample:\n")
	fmt.Fprintf(os.Stderr, "  DEEPSEEK_API_KEY=sk-xxx %s \"what is the latest progress in fusion energy\"\n", os.Args[0])
}

func main() {
	var (
		configPath = flag.String("config", "", "Path to configuration file")
		showHelp   = flag.Bool("help", false, "Show help message")
	)
	flag.Parse()

	if *showHelp {
		printUsage()
		os.Exit(0)
	}

	query := flag.Arg(0)
	if query == "" {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	app, err := NewApplication(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create application: %v\n", err)
		os.Exit(1)
	}

	if err := app.Run(ctx, query); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}
