package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tributary-ai/ragseed/internal/providers"
	"github.com/tributary-ai/ragseed/internal/types"
)

const tavilyEndpoint = "https://api.tavily.com/search"

// tavilyBackend calls the Tavily search API directly over HTTP.
type tavilyBackend struct {
	apiKey     string
	httpClient *http.Client
}

func newTavilyBackend(apiKey string, timeout time.Duration) *tavilyBackend {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &tavilyBackend{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (t *tavilyBackend) Name() string { return "tavily" }

type tavilyRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	SearchDepth string `json:"search_depth"`
	MaxResults  int    `json:"max_results"`
}

type tavilyResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

type tavilyResponse struct {
	Results []tavilyResult `json:"results"`
}

func (t *tavilyBackend) Search(ctx context.Context, query string, maxResults int) (*types.SearchResponse, error) {
	start := time.Now()

	body, err := json.Marshal(tavilyRequest{
		APIKey:      t.apiKey,
		Query:       query,
		SearchDepth: "advanced",
		MaxResults:  maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("tavily: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tavilyEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tavily: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		return &types.SearchResponse{
			Query:   query,
			Success: false,
			Latency: latency,
			Error:   types.NewCallError(providers.ClassifyTransportError(err), "%v", err),
		}, nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &types.SearchResponse{
			Query:   query,
			Success: false,
			Latency: latency,
			Error:   types.NewCallError(types.ErrParse, "read tavily body: %v", err),
		}, nil
	}

	if resp.StatusCode != http.StatusOK {
		return &types.SearchResponse{
			Query:   query,
			Success: false,
			Latency: latency,
			Error:   types.NewCallError(providers.ClassifyHTTPStatus(resp.StatusCode, string(raw)), "tavily status %d", resp.StatusCode),
		}, nil
	}

	var parsed tavilyResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return &types.SearchResponse{
			Query:   query,
			Success: false,
			Latency: latency,
			Error:   types.NewCallError(types.ErrParse, "unmarshal tavily response: %v", err),
		}, nil
	}

	results := make([]types.SearchResult, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		results = append(results, types.SearchResult{
			Title:     r.Title,
			Snippet:   r.Content,
			URL:       r.URL,
			Relevance: r.Score,
		})
	}

	return &types.SearchResponse{
		Query:    query,
		Results:  results,
		Success:  true,
		Latency:  latency,
		Metadata: map[string]string{"backend": "tavily", "search_depth": "advanced"},
	}, nil
}
