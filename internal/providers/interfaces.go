// Package providers defines the uniform capability every LLM vendor adapter
// implements, plus the shared HTTP error classification used by all of them
// and reused by the search adapter.
package providers

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/tributary-ai/ragseed/internal/types"
)

// LLMProvider is the capability the router dispatches against. Every vendor
// package in internal/providers/<vendor> implements it.
type LLMProvider interface {
	Name() string
	ChatCompletion(ctx context.Context, messages []types.ChatMessage, overrides types.ChatOverrides) (*types.ChatResponse, error)
	EstimateCost(messages []types.ChatMessage, maxTokens int) (*types.CostEstimate, error)
	HealthCheck(ctx context.Context) error
	Config() *types.ProviderConfig
}

// ClassifyHTTPStatus maps a vendor's HTTP status code onto the shared error
// taxonomy. Shared across all adapters so the router's fallback policy
// behaves identically regardless of vendor.
func ClassifyHTTPStatus(status int, body string) types.ErrorKind {
	switch {
	case status == 401 || status == 403:
		return types.ErrAuth
	case status == 404:
		return types.ErrModelNotFound
	case status == 408:
		return types.ErrTimeout
	case status == 429:
		return types.ErrRateLimit
	case status == 400 || status == 422:
		return types.ErrInvalidRequest
	case status >= 500:
		return types.ErrServer
	case status == 0:
		return types.ErrNetwork
	default:
		return types.ErrUnknown
	}
}

// ClassifyTransportError inspects a transport-level error (one that never
// reached an HTTP status) and maps it onto the shared taxonomy.
func ClassifyTransportError(err error) types.ErrorKind {
	if err == nil {
		return types.ErrUnknown
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return types.ErrTimeout
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return types.ErrTimeout
	case strings.Contains(msg, "context canceled"):
		return types.ErrTimeout
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "no such host"),
		strings.Contains(msg, "eof"), strings.Contains(msg, "connection reset"):
		return types.ErrNetwork
	case strings.Contains(msg, "unauthorized"), strings.Contains(msg, "invalid api key"),
		strings.Contains(msg, "authentication"):
		return types.ErrAuth
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "too many requests"):
		return types.ErrRateLimit
	case strings.Contains(msg, "model not found"), strings.Contains(msg, "does not exist"):
		return types.ErrModelNotFound
	case strings.Contains(msg, "unmarshal"), strings.Contains(msg, "invalid character"),
		strings.Contains(msg, "json"):
		return types.ErrParse
	default:
		return types.ErrUnknown
	}
}

// modelEncodings maps a model name prefix onto its tiktoken encoding, mirroring
// the tokenizer each vendor actually uses for OpenAI-compatible wire formats.
var modelEncodings = map[string]string{
	"gpt-4o":        "o200k_base",
	"gpt-4":         "cl100k_base",
	"gpt-3.5":       "cl100k_base",
	"deepseek-chat": "cl100k_base",
}

// encodingFor returns the encoding of the longest prefix in modelEncodings
// that model starts with, or "" when no prefix matches.
func encodingFor(model string) string {
	best, enc := "", ""
	for prefix, e := range modelEncodings {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
			best, enc = prefix, e
		}
	}
	return enc
}

// EstimateTokens counts tokens via tiktoken-go when the model's encoding is
// known, falling back to a 4-chars-per-token heuristic for vendors (Anthropic,
// Gemini, Ollama, Azure deployments under a non-OpenAI naming scheme) whose
// wire format doesn't use a BPE tiktoken encoding.
func EstimateTokens(model string, messages []types.ChatMessage) int {
	name := encodingFor(model)
	if name == "" {
		return heuristicTokens(messages)
	}
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return heuristicTokens(messages)
	}

	total := 0
	for _, m := range messages {
		total += len(enc.Encode(m.Content, nil, nil))
		total += len(enc.Encode(string(m.Role), nil, nil))
	}
	return total
}

func heuristicTokens(messages []types.ChatMessage) int {
	total := 0
	for _, m := range messages {
		total += len(m.Content) + len(m.Role)
	}
	return total / 4
}

// NowLatency is a tiny helper adapters use to compute call latency without
// repeating time.Since at every call site.
func NowLatency(start time.Time) time.Duration {
	return time.Since(start)
}
