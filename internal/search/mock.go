package search

import (
	"context"
	"fmt"
	"time"

	"github.com/tributary-ai/ragseed/internal/types"
)

// mockBackend deterministically synthesizes plausible-looking results when
// no real backend is configured, or when a real backend fails with a
// recoverable error. Auth failures are never routed here — the caller owns
// that decision.
type mockBackend struct{}

func newMockBackend() *mockBackend { return &mockBackend{} }

func (m *mockBackend) Name() string { return "mock" }

func (m *mockBackend) Search(ctx context.Context, query string, maxResults int) (*types.SearchResponse, error) {
	if maxResults <= 0 {
		maxResults = 5
	}
	domains := []string{"example.org", "reference.dev", "docs.internal", "notes.community", "wiki.local"}
	results := make([]types.SearchResult, 0, maxResults)
	for i := 0; i < maxResults; i++ {
		domain := domains[i%len(domains)]
		results = append(results, types.SearchResult{
			Title:     fmt.Sprintf("%s — result %d", query, i+1),
			Snippet:   fmt.Sprintf("Synthesized context for %q, angle %d. No live backend was reachable.", query, i+1),
			URL:       fmt.Sprintf("https://%s/search?q=%d", domain, i+1),
			Relevance: 1.0 - float64(i)*0.12,
		})
	}
	return &types.SearchResponse{
		Query:    query,
		Results:  results,
		Success:  true,
		Latency:  time.Millisecond,
		Metadata: map[string]string{"backend": "mock"},
	}, nil
}
