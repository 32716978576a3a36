package ragseed

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/ragseed/internal/types"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return l
}

type stubLLM struct {
	resp *types.ChatResponse
	err  error
}

func (s *stubLLM) Complete(ctx context.Context, messages []types.ChatMessage, overrides types.ChatOverrides) (*types.ChatResponse, error) {
	return s.resp, s.err
}

type stubSearch struct {
	resp *types.SearchResponse
}

func (s *stubSearch) Search(ctx context.Context, query string) (*types.SearchResponse, error) {
	return s.resp, nil
}

func TestGenerator_FallsBackWhenLLMUnavailable(t *testing.T) {
	llm := &stubLLM{resp: &types.ChatResponse{Success: false}}
	search := &stubSearch{resp: &types.SearchResponse{
		Success: true,
		Results: []types.SearchResult{
			{Title: "A", Snippet: "Go 1.23 shipped generics refinements.", URL: "https://a.example", Relevance: 0.9},
			{Title: "B", Snippet: "Community notes on iterator support.", URL: "https://b.example", Relevance: 0.7},
		},
	}}

	gen, err := New(Config{CurrentYear: 2026}, llm, search, testLogger())
	if err != nil {
		t.Fatalf("unexpected error building generator: %v", err)
	}

	ctx, err := gen.Generate(context.Background(), "what's the latest in Go generics")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ctx.ThinkingSeed == "" {
		t.Fatal("expected a non-empty thinking seed from the concatenation fallback")
	}
}

func TestGenerator_NoResultsProducesInsufficientData(t *testing.T) {
	llm := &stubLLM{resp: &types.ChatResponse{Success: false}}
	search := &stubSearch{resp: &types.SearchResponse{Success: true}}

	gen, err := New(Config{CurrentYear: 2026}, llm, search, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, err := gen.Generate(context.Background(), "obscure topic with no hits")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ctx.GenerationMetadata["verification_status"] != string(types.StatusInsufficientData) {
		t.Errorf("expected insufficient_data status, got %v", ctx.GenerationMetadata)
	}
}

func TestInjectYear_OnlyForTimeSensitiveQueries(t *testing.T) {
	kw := injectYear([]string{"go", "generics"}, "what's the latest update on go generics", 2026)
	if kw[0] != "2026年" {
		t.Errorf("expected year injected at front, got %v", kw)
	}

	kw2 := injectYear([]string{"go", "generics"}, "explain go generics", 2026)
	if len(kw2) != 2 {
		t.Errorf("expected no injection for non-time-sensitive query, got %v", kw2)
	}
}

func TestValidateAndFixYears_ReplacesWrongYear(t *testing.T) {
	fixed := validateAndFixYears([]string{"latest news 2020年"}, 2026)
	if fixed[0] != "latest news 2026年" {
		t.Errorf("expected year replaced, got %q", fixed[0])
	}
}

func TestValidateAndFixYears_AppendsMissingYear(t *testing.T) {
	fixed := validateAndFixYears([]string{"current trend in databases"}, 2026)
	if fixed[0] != "current trend in databases 2026年" {
		t.Errorf("expected year appended, got %q", fixed[0])
	}
}

func TestBuildQueries_CapsAtFiveWithSpecShape(t *testing.T) {
	strategy := &types.SearchStrategy{
		PrimaryKeywords:   []string{"p1", "p2", "p3", "p4"},
		SecondaryKeywords: []string{"s1", "s2", "s3"},
	}
	queries := buildQueries(strategy, 2026)
	if len(queries) != 5 {
		t.Fatalf("expected 5 queries (cap), got %d: %v", len(queries), queries)
	}
	want := []string{"p1", "p2", "p3", "p1 s1", "p1 s2"}
	for i, w := range want {
		if queries[i] != w {
			t.Errorf("query[%d] = %q, want %q", i, queries[i], w)
		}
	}
}

func TestDedupAndRank_ScoresByKeywordHitsAndDropsDuplicates(t *testing.T) {
	strategy := &types.SearchStrategy{
		PrimaryKeywords:   []string{"kubernetes"},
		SecondaryKeywords: []string{"release"},
	}
	batches := [][]types.SearchResult{
		{
			{Title: "Kubernetes release notes", Snippet: "general overview", URL: "https://dup.example"},
			{Title: "Something else entirely", Snippet: "no hits here", URL: "https://low.example"},
		},
		{
			{Title: "Kubernetes release notes", Snippet: "duplicate by URL", URL: "https://dup.example"},
			{Title: "Kubernetes", Snippet: "just the primary keyword", URL: "https://mid.example"},
		},
	}
	ranked := dedupAndRank(batches, strategy, 8)
	if len(ranked) != 3 {
		t.Fatalf("expected 3 deduped results, got %d: %v", len(ranked), ranked)
	}
	if ranked[0].URL != "https://dup.example" {
		t.Errorf("expected highest-scoring (primary+secondary hit) result first, got %v", ranked)
	}
	if ranked[len(ranked)-1].URL != "https://low.example" {
		t.Errorf("expected zero-hit result last, got %v", ranked)
	}
}
