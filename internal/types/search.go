package types

import "time"

// SearchDepth controls how aggressively stage 1 plans a search strategy.
type SearchDepth string

const (
	DepthShallow SearchDepth = "shallow"
	DepthMedium  SearchDepth = "medium"
	DepthDeep    SearchDepth = "deep"
)

// SearchStrategy is produced by stage 1 of the RAG pipeline.
type SearchStrategy struct {
	PrimaryKeywords   []string
	SecondaryKeywords []string
	Intent            string
	Domain            string
	InfoTypes         []string
	Depth             SearchDepth
}

// SearchResult is one hit. URL is the dedup key.
type SearchResult struct {
	Title     string
	Snippet   string
	URL       string
	Relevance float64
}

// SearchResponse is what a search backend returns. It never carries a raw
// error to callers — terminal failures set Success=false and Error.
type SearchResponse struct {
	Query    string
	Results  []SearchResult
	Latency  time.Duration
	Success  bool
	Error    *CallError
	Metadata map[string]string
}
