// Package search provides a uniform Search capability over real web-search
// backends, with global rate limiting, retry with backoff, and a
// deterministic mock fallback for recoverable failures.
package search

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/ragseed/internal/providers"
	"github.com/tributary-ai/ragseed/internal/types"
)

// backend is the minimal capability a concrete search engine implements.
type backend interface {
	Name() string
	Search(ctx context.Context, query string, maxResults int) (*types.SearchResponse, error)
}

// Config controls adapter behavior independent of any one backend.
type Config struct {
	Enabled        bool
	TavilyAPIKey   string
	MaxResults     int
	RateLimitGap   time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	RequestTimeout time.Duration
}

// Adapter is the uniform Search entry point the RAG pipeline and verifier
// both call against.
type Adapter struct {
	cfg     Config
	real    backend
	mock    *mockBackend
	limiter *GlobalLimiter
	logger  *logrus.Logger
}

func New(cfg Config, logger *logrus.Logger) *Adapter {
	a := &Adapter{
		cfg:     cfg,
		mock:    newMockBackend(),
		limiter: NewGlobalLimiter(cfg.RateLimitGap),
		logger:  logger,
	}
	if cfg.Enabled && cfg.TavilyAPIKey != "" {
		a.real = newTavilyBackend(cfg.TavilyAPIKey, cfg.RequestTimeout)
	}
	return a
}

// Search runs a single query. If no real backend is configured, or the real
// backend fails with a recoverable error after retries, it degrades to the
// deterministic mock so callers always get a non-error SearchResponse. Per
// spec.md §4.3, this never returns a Go error for a backend or context
// failure — terminal conditions are reported as SearchResponse{success:false}.
func (a *Adapter) Search(ctx context.Context, query string) (*types.SearchResponse, error) {
	maxResults := a.cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}

	if a.real == nil {
		return a.mock.Search(ctx, query, maxResults)
	}

	maxRetries := a.cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}
	baseDelay := a.cfg.RetryBaseDelay
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}

	var lastResp *types.SearchResponse
	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := a.limiter.Wait(ctx); err != nil {
			return &types.SearchResponse{Query: query, Success: false, Error: types.NewCallError(types.ErrTimeout, "rate limiter wait canceled: %v", err)}, nil
		}

		resp, err := a.real.Search(ctx, query, maxResults)
		if err != nil {
			resp = &types.SearchResponse{Query: query, Success: false, Error: types.NewCallError(providers.ClassifyTransportError(err), "%v", err)}
		}
		if resp.Success {
			return resp, nil
		}

		lastResp = resp
		if resp.Error != nil && !resp.Error.Kind.Recoverable() {
			a.logger.WithFields(logrus.Fields{
				"backend": a.real.Name(),
				"error":   resp.Error,
			}).Warn("search backend hit a terminal error, not retrying")
			return resp, nil
		}

		a.logger.WithFields(logrus.Fields{
			"backend": a.real.Name(),
			"attempt": attempt + 1,
			"error":   resp.Error,
		}).Warn("search backend call failed, will retry or fall back")

		if attempt < maxRetries-1 {
			delay := retryDelay(baseDelay, attempt, resp.Error)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return &types.SearchResponse{Query: query, Success: false, Error: types.NewCallError(types.ErrTimeout, "context canceled during backoff: %v", ctx.Err())}, nil
			}
		}
	}

	a.logger.WithField("query", query).Info("search backend exhausted retries, degrading to mock results")
	mocked, err := a.mock.Search(ctx, query, maxResults)
	if err != nil {
		return lastResp, nil
	}
	mocked.Metadata["degraded_from"] = a.real.Name()
	return mocked, nil
}

// retryDelay caps exponential backoff at 30s (60s for rate-limit errors),
// preferring a backend-supplied retry-after hint up to 120s when present.
func retryDelay(base time.Duration, attempt int, callErr *types.CallError) time.Duration {
	cap := 30 * time.Second
	if callErr != nil && callErr.Kind == types.ErrRateLimit {
		cap = 60 * time.Second
	}
	if callErr != nil && callErr.RetryAfter > 0 {
		hint := time.Duration(callErr.RetryAfter * float64(time.Second))
		if hint > 120*time.Second {
			hint = 120 * time.Second
		}
		return hint
	}
	delay := base * time.Duration(1<<uint(attempt))
	if delay > cap {
		delay = cap
	}
	return delay
}
