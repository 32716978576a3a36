// Package ragseed implements the three-stage plan, search, synthesize
// pipeline that turns a user query into a contextual thinking seed.
package ragseed

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/tributary-ai/ragseed/internal/types"
)

// llmClient is the narrow capability the generator needs from the router —
// a single chat completion call, provider-agnostic.
type llmClient interface {
	Complete(ctx context.Context, messages []types.ChatMessage, overrides types.ChatOverrides) (*types.ChatResponse, error)
}

// searchClient is the narrow capability the generator needs from the search
// adapter.
type searchClient interface {
	Search(ctx context.Context, query string) (*types.SearchResponse, error)
}

// Config controls pipeline behavior.
type Config struct {
	MaxSearchWorkers int
	MaxSearchResults int
	CacheSize        int
	CurrentYear      int
	EnableParallel   bool
}

// Generator runs Plan -> Search -> Synthesize against a user query.
type Generator struct {
	cfg    Config
	llm    llmClient
	search searchClient
	cache  *caches
	logger *logrus.Logger
}

func New(cfg Config, llm llmClient, search searchClient, logger *logrus.Logger) (*Generator, error) {
	c, err := newCaches(cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("ragseed: build caches: %w", err)
	}
	if cfg.CurrentYear == 0 {
		cfg.CurrentYear = time.Now().Year()
	}
	return &Generator{cfg: cfg, llm: llm, search: search, cache: c, logger: logger}, nil
}

// Generate runs the full pipeline and returns a thinking seed grounded in
// live search results.
func (g *Generator) Generate(ctx context.Context, userQuery string) (*types.ThinkingSeedContext, error) {
	strategy := g.planStrategy(ctx, userQuery)

	results := g.gatherInformation(ctx, strategy)

	synthesis := g.synthesize(ctx, userQuery, strategy, results)

	return &types.ThinkingSeedContext{
		RequestID:    uuid.New().String(),
		UserQuery:    userQuery,
		ThinkingSeed: synthesis.ContextualSeed,
		GenerationMetadata: map[string]string{
			"intent":              strategy.Intent,
			"depth":               string(strategy.Depth),
			"sources":             fmt.Sprintf("%d", len(synthesis.Sources)),
			"verification_status": string(synthesis.Verification),
		},
	}, nil
}

// --- stage 1: plan ---

func (g *Generator) planStrategy(ctx context.Context, query string) *types.SearchStrategy {
	if cached, ok := g.cache.strategy.Get(query); ok {
		return cached
	}

	strategy := g.planWithLLM(ctx, query)
	if strategy == nil {
		strategy = g.heuristicStrategy(query)
	}

	g.cache.strategy.Add(query, strategy)
	return strategy
}

func (g *Generator) planWithLLM(ctx context.Context, query string) *types.SearchStrategy {
	prompt := fmt.Sprintf(`Current year: %d. Given the user query below, produce a JSON search strategy with fields primary_keywords, secondary_keywords, intent, domain, info_types, depth (shallow|medium|deep). If the query concerns recent or current events, the keywords must explicitly include %d.

Query: %s

Respond with JSON only.`, g.cfg.CurrentYear, g.cfg.CurrentYear, query)

	resp, err := g.llm.Complete(ctx, []types.ChatMessage{
		{Role: types.RoleSystem, Content: "You are a precise search strategist. Reply with strict JSON."},
		{Role: types.RoleUser, Content: prompt},
	}, types.ChatOverrides{})
	if err != nil || resp == nil || !resp.Success {
		g.logger.WithError(err).Debug("strategy planning LLM call failed, falling back to heuristic")
		return nil
	}

	var parsed struct {
		PrimaryKeywords   []string `json:"primary_keywords"`
		SecondaryKeywords []string `json:"secondary_keywords"`
		Intent            string   `json:"intent"`
		Domain            string   `json:"domain"`
		InfoTypes         []string `json:"info_types"`
		Depth             string   `json:"depth"`
	}
	if err := json.Unmarshal([]byte(extractJSON(resp.Content)), &parsed); err != nil {
		g.logger.WithError(err).Debug("strategy planning response was not valid JSON, falling back to heuristic")
		return nil
	}
	if len(parsed.PrimaryKeywords) == 0 {
		return nil
	}

	parsed.PrimaryKeywords = injectYear(parsed.PrimaryKeywords, query, g.cfg.CurrentYear)

	depth := types.SearchDepth(parsed.Depth)
	switch depth {
	case types.DepthShallow, types.DepthMedium, types.DepthDeep:
	default:
		depth = types.DepthMedium
	}

	return &types.SearchStrategy{
		PrimaryKeywords:   parsed.PrimaryKeywords,
		SecondaryKeywords: parsed.SecondaryKeywords,
		Intent:            parsed.Intent,
		Domain:            parsed.Domain,
		InfoTypes:         parsed.InfoTypes,
		Depth:             depth,
	}
}

func (g *Generator) heuristicStrategy(query string) *types.SearchStrategy {
	keywords := strings.Fields(query)
	keywords = injectYear(keywords, query, g.cfg.CurrentYear)
	return &types.SearchStrategy{
		PrimaryKeywords: keywords,
		Intent:          "general",
		Depth:           types.DepthMedium,
	}
}

// --- stage 2: search ---

func (g *Generator) gatherInformation(ctx context.Context, strategy *types.SearchStrategy) []types.SearchResult {
	queries := buildQueries(strategy, g.cfg.CurrentYear)
	if len(queries) == 0 {
		return nil
	}

	cacheKey := strings.Join(queries, "|")
	if cached, ok := g.cache.information.Get(cacheKey); ok {
		return cached
	}

	var batches [][]types.SearchResult
	if g.cfg.EnableParallel && len(queries) > 1 {
		batches = g.searchParallel(ctx, queries)
	} else {
		batches = g.searchSerial(ctx, queries)
	}

	merged := dedupAndRank(batches, strategy, g.cfg.MaxSearchResults)

	g.cache.information.Add(cacheKey, merged)
	return merged
}

func (g *Generator) searchParallel(ctx context.Context, queries []string) [][]types.SearchResult {
	workers := g.cfg.MaxSearchWorkers
	if workers <= 0 {
		workers = 3
	}

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(workers)

	batches := make([][]types.SearchResult, len(queries))
	for i, q := range queries {
		i, q := i, q
		grp.Go(func() error {
			resp, err := g.search.Search(gctx, q)
			if err != nil {
				g.logger.WithError(err).WithField("query", q).Warn("search dispatch failed")
				return nil
			}
			if resp.Success {
				batches[i] = resp.Results
			}
			return nil
		})
	}
	_ = grp.Wait()
	return batches
}

func (g *Generator) searchSerial(ctx context.Context, queries []string) [][]types.SearchResult {
	batches := make([][]types.SearchResult, len(queries))
	for i, q := range queries {
		if ctx.Err() != nil {
			break
		}
		resp, err := g.search.Search(ctx, q)
		if err != nil {
			g.logger.WithError(err).WithField("query", q).Warn("search dispatch failed")
			continue
		}
		if resp.Success {
			batches[i] = resp.Results
		}
	}
	return batches
}

// dedupAndRank merges search batches (in caller-given order), drops
// duplicate URLs, and ranks by keyword-hit score per spec.md §4.3: 2 points
// per primary-keyword hit plus 1 per secondary-keyword hit, case-insensitive,
// counted over title+snippet. Ties keep insertion order (sort.SliceStable).
func dedupAndRank(batches [][]types.SearchResult, strategy *types.SearchStrategy, maxResults int) []types.SearchResult {
	primary := lowerAll(strategy.PrimaryKeywords)
	secondary := lowerAll(strategy.SecondaryKeywords)

	seen := make(map[string]struct{})
	type scored struct {
		result types.SearchResult
		score  int
	}
	var merged []scored
	for _, batch := range batches {
		for _, r := range batch {
			if r.URL == "" {
				continue
			}
			if _, dup := seen[r.URL]; dup {
				continue
			}
			seen[r.URL] = struct{}{}
			haystack := strings.ToLower(r.Title + " " + r.Snippet)
			score := 0
			for _, kw := range primary {
				if kw != "" && strings.Contains(haystack, kw) {
					score += 2
				}
			}
			for _, kw := range secondary {
				if kw != "" && strings.Contains(haystack, kw) {
					score += 1
				}
			}
			merged = append(merged, scored{result: r, score: score})
		}
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].score > merged[j].score })

	if maxResults <= 0 {
		maxResults = 8
	}
	if len(merged) > maxResults {
		merged = merged[:maxResults]
	}

	out := make([]types.SearchResult, len(merged))
	for i, m := range merged {
		out[i] = m.result
	}
	return out
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

// buildQueries constructs the stage-2 query set per spec.md §4.4: each of
// the first 3 primary keywords individually, plus up to 4 "{primary_i}
// {secondary_j}" combinations for i<2, j<2, capped at 5 total queries,
// followed by the year-validation pass.
func buildQueries(strategy *types.SearchStrategy, year int) []string {
	var queries []string

	primaryCount := len(strategy.PrimaryKeywords)
	for i := 0; i < primaryCount && i < 3; i++ {
		queries = append(queries, strategy.PrimaryKeywords[i])
	}

	comboPrimary := primaryCount
	if comboPrimary > 2 {
		comboPrimary = 2
	}
	comboSecondary := len(strategy.SecondaryKeywords)
	if comboSecondary > 2 {
		comboSecondary = 2
	}
	for i := 0; i < comboPrimary; i++ {
		for j := 0; j < comboSecondary; j++ {
			queries = append(queries, strategy.PrimaryKeywords[i]+" "+strategy.SecondaryKeywords[j])
		}
	}

	if len(queries) > 5 {
		queries = queries[:5]
	}

	return validateAndFixYears(queries, year)
}

// --- stage 3: synthesize ---

func (g *Generator) synthesize(ctx context.Context, userQuery string, strategy *types.SearchStrategy, results []types.SearchResult) *types.Synthesis {
	if len(results) == 0 {
		return &types.Synthesis{
			ContextualSeed: fmt.Sprintf("Basic analysis of %q: no external search context was found; reasoning proceeds from the question alone.", userQuery),
			Confidence:     0.3,
			Verification:   types.StatusInsufficientData,
		}
	}

	cacheKey := userQuery + "|" + strings.Join(sourceURLs(results), ",")
	if cached, ok := g.cache.synthesis.Get(cacheKey); ok {
		return cached
	}

	synth := g.synthesizeWithLLM(ctx, userQuery, results)
	if synth == nil {
		synth = g.concatenateFallback(userQuery, strategy, results)
	}

	g.cache.synthesis.Add(cacheKey, synth)
	return synth
}

// maxSynthesisSources caps how many results are quoted in the synthesis
// prompt, per spec.md §4.4 stage 3 ("up to 6 results").
const maxSynthesisSources = 6

func (g *Generator) synthesizeWithLLM(ctx context.Context, userQuery string, results []types.SearchResult) *types.Synthesis {
	quoted := results
	if len(quoted) > maxSynthesisSources {
		quoted = quoted[:maxSynthesisSources]
	}

	var sb strings.Builder
	sources := make([]string, 0, len(quoted))
	for i, r := range quoted {
		fmt.Fprintf(&sb, "[%d] %s\n%s\n%s\n\n", i+1, r.Title, r.Snippet, r.URL)
		sources = append(sources, r.URL)
	}

	prompt := fmt.Sprintf(`Today's date: %s.

User question: %s

Search results (these supersede anything your training data says where they conflict):
%s
Synthesize a concise, fact-grounded contextual seed of 200-400 characters that the reasoning engine can use as background, grounded in the search results above rather than prior assumptions. Respond with strict JSON only, fields: contextual_seed, key_insights (array), knowledge_gaps (array), confidence (0-1), information_sources (array of URLs), verification_status (one of: verified, partially_verified, needs_verification, insufficient_data).`, time.Now().Format("2006-01-02"), userQuery, sb.String())

	resp, err := g.llm.Complete(ctx, []types.ChatMessage{
		{Role: types.RoleSystem, Content: "You synthesize search results into grounded context. Reply with strict JSON."},
		{Role: types.RoleUser, Content: prompt},
	}, types.ChatOverrides{})
	if err != nil || resp == nil || !resp.Success {
		g.logger.WithError(err).Debug("synthesis LLM call failed, falling back to concatenation")
		return nil
	}

	var parsed struct {
		ContextualSeed      string   `json:"contextual_seed"`
		KeyInsights         []string `json:"key_insights"`
		KnowledgeGaps       []string `json:"knowledge_gaps"`
		Confidence          float64  `json:"confidence"`
		InformationSources  []string `json:"information_sources"`
		VerificationStatus  string   `json:"verification_status"`
	}
	if err := json.Unmarshal([]byte(extractJSON(resp.Content)), &parsed); err != nil || parsed.ContextualSeed == "" {
		g.logger.WithError(err).Debug("synthesis response was not valid JSON, falling back to concatenation")
		return nil
	}

	if len(parsed.InformationSources) > 0 {
		sources = parsed.InformationSources
	}

	status := statusFromLLM(parsed.VerificationStatus, parsed.Confidence)

	return &types.Synthesis{
		ContextualSeed: parsed.ContextualSeed,
		Sources:        sources,
		Confidence:     parsed.Confidence,
		KeyInsights:    parsed.KeyInsights,
		KnowledgeGaps:  parsed.KnowledgeGaps,
		Verification:   status,
	}
}

// statusFromLLM accepts the LLM's self-reported verification status when it
// names one of the closed enum values; otherwise it derives one from
// confidence, the same thresholds used when the LLM omits the field.
func statusFromLLM(reported string, confidence float64) types.VerificationStatus {
	switch types.VerificationStatus(reported) {
	case types.StatusVerified, types.StatusPartiallyVerified, types.StatusNeedsVerification, types.StatusInsufficientData:
		return types.VerificationStatus(reported)
	}
	switch {
	case confidence >= 0.75:
		return types.StatusVerified
	case confidence >= 0.4:
		return types.StatusPartiallyVerified
	default:
		return types.StatusNeedsVerification
	}
}

// concatenateFallback builds the degraded synthesis spec.md §4.4 specifies
// verbatim when the LLM call fails: a concatenation of the top-3 snippets
// with a fixed confidence of 0.6.
func (g *Generator) concatenateFallback(userQuery string, strategy *types.SearchStrategy, results []types.SearchResult) *types.Synthesis {
	sources := make([]string, 0, len(results))
	for _, r := range results {
		sources = append(sources, r.URL)
	}

	limit := len(results)
	if limit > 3 {
		limit = 3
	}
	points := make([]string, 0, limit)
	for i := 0; i < limit; i++ {
		points = append(points, truncate(results[i].Snippet, 120))
	}

	seed := fmt.Sprintf(
		"Based on research of '%s', from %d sources the following points: %s. These indicate %s. Recommend incorporating this real-time information.",
		userQuery, len(results), strings.Join(points, "; "), strategy.Intent,
	)

	return &types.Synthesis{
		ContextualSeed: seed,
		Sources:        sources,
		Confidence:     0.6,
		Verification:   types.StatusNeedsVerification,
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func sourceURLs(results []types.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.URL
	}
	return out
}

// extractJSON trims prose an LLM sometimes wraps around a JSON object,
// returning the substring between the first '{' and the last '}'.
func extractJSON(content string) string {
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start == -1 || end == -1 || end < start {
		return content
	}
	return content[start : end+1]
}
