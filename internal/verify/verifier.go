// Package verify implements the four-step seed verification pipeline:
// basic feasibility scoring, dimension planning, multi-dimension search,
// and LLM-assisted enhancement.
package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/ragseed/internal/types"
)

const (
	maxSearchDimensions  = 3
	maxPlannedDimensions = 3
	enhancementIncrement = 0.2
	enhancementCap       = 0.9
)

var priorityWeight = map[types.Priority]int{
	types.PriorityHigh:   3,
	types.PriorityMedium: 2,
	types.PriorityLow:    1,
}

// llmClient is the narrow capability the verifier needs from the router.
type llmClient interface {
	Complete(ctx context.Context, messages []types.ChatMessage, overrides types.ChatOverrides) (*types.ChatResponse, error)
}

// searchClient is the narrow capability the verifier needs from the search
// adapter.
type searchClient interface {
	Search(ctx context.Context, query string) (*types.SearchResponse, error)
}

// ToolResult is the uniform shape a ToolRegistry tool invocation returns,
// per spec.md §6 (`execute_tool(name, **kw) → {success, data, metadata,
// error}`).
type ToolResult struct {
	Success  bool
	Data     map[string]interface{}
	Metadata map[string]interface{}
	Error    string
}

// ToolRegistry is the optional external capability (§6 Inbound interfaces)
// that can supply a richer idea_verification backend to step 1. A nil
// registry (the default when no concrete tool server is wired, as is the
// case for this CLI) degrades to the keyword/length heuristic.
type ToolRegistry interface {
	HasTool(name string) bool
	ExecuteTool(ctx context.Context, name string, params map[string]interface{}) (ToolResult, error)
}

// Verifier runs the four-step verification pipeline against a thinking
// seed produced by the RAG generator.
type Verifier struct {
	llm         llmClient
	search      searchClient
	tools       ToolRegistry
	logger      *logrus.Logger
	currentYear int
}

func New(llm llmClient, search searchClient, logger *logrus.Logger) *Verifier {
	return &Verifier{llm: llm, search: search, logger: logger, currentYear: time.Now().Year()}
}

// WithTools attaches a ToolRegistry, enabling the richer idea_verification
// path in step 1. Returns the same Verifier for chaining.
func (v *Verifier) WithTools(tools ToolRegistry) *Verifier {
	v.tools = tools
	return v
}

// Verify runs all four steps and returns the accumulated context. sink may
// be nil, in which case events are discarded.
func (v *Verifier) Verify(ctx context.Context, seedCtx *types.ThinkingSeedContext, sink EventSink) *types.SeedVerificationContext {
	if sink == nil {
		sink = noopSink{}
	}

	vctx := types.NewSeedVerificationContext(seedCtx.UserQuery, seedCtx.ThinkingSeed)
	v.emit(sink, StageStart, "verification started", nil)

	v.basicVerification(ctx, seedCtx, vctx)
	vctx.AddMetric("feasibility_score", vctx.FeasibilityScore)
	v.emit(sink, StageBasicVerificationResult, vctx.VerificationMethod, map[string]string{
		"feasibility_score": floatStr(vctx.FeasibilityScore),
	})

	v.emit(sink, StagePlanningStart, "planning verification dimensions", nil)
	dimensions := v.planDimensions(ctx, seedCtx)
	vctx.SearchDimensions = dimensions
	v.emit(sink, StageDimensionsPlanned, "", map[string]string{"count": fmt.Sprintf("%d", len(dimensions))})

	v.multiDimensionSearch(ctx, dimensions, vctx, sink)

	v.emit(sink, StageEnhancementStart, "enhancing seed with search evidence", nil)
	v.enhance(ctx, seedCtx, vctx, sink)
	v.emit(sink, StageEnhancementComplete, vctx.VerificationMethod, nil)

	v.emit(sink, StageComplete, "verification complete", nil)
	return vctx
}

func floatStr(f float64) string { return fmt.Sprintf("%.2f", f) }

// --- step 1: basic verification ---

var feasibilityKeywords = []string{"分析", "方法", "策略", "解决", "建议", "系统", "优化",
	"analysis", "method", "strategy", "solve", "suggest", "system", "optimize"}

func (v *Verifier) basicVerification(ctx context.Context, seedCtx *types.ThinkingSeedContext, vctx *types.SeedVerificationContext) {
	if v.tools != nil && v.tools.HasTool("idea_verification") {
		v.toolBasicVerification(ctx, seedCtx, vctx)
		return
	}

	seed := seedCtx.ThinkingSeed
	length := len(seed)
	lower := strings.ToLower(seed)
	hasKeyword := false
	for _, kw := range feasibilityKeywords {
		if strings.Contains(lower, kw) {
			hasKeyword = true
			break
		}
	}

	vctx.VerificationMethod = "keyword_heuristic"
	vctx.VerificationPassed = true
	switch {
	case length > 30 && hasKeyword:
		vctx.FeasibilityScore = 0.7
		vctx.Evidence = append(vctx.Evidence, "seed length exceeds 30 chars", "contains analytical keyword")
	default:
		vctx.FeasibilityScore = 0.5
		vctx.Evidence = append(vctx.Evidence, "passed baseline heuristic check")
	}
}

// toolBasicVerification invokes the idea_verification tool when a registry
// exposing it is wired. On any failure it degrades to a fixed 0.6 score
// with method simplified_fallback, per spec.md §4.5 step 1 — verification
// tool failures never propagate to the caller.
func (v *Verifier) toolBasicVerification(ctx context.Context, seedCtx *types.ThinkingSeedContext, vctx *types.SeedVerificationContext) {
	result, err := v.tools.ExecuteTool(ctx, "idea_verification", map[string]interface{}{
		"seed":       seedCtx.ThinkingSeed,
		"user_query": seedCtx.UserQuery,
	})
	if err != nil || !result.Success {
		vctx.VerificationMethod = "simplified_fallback"
		vctx.VerificationPassed = true
		vctx.FeasibilityScore = 0.6
		vctx.AddError("idea_verification tool call failed, degraded to fallback score")
		return
	}

	vctx.VerificationMethod = "idea_verification"
	vctx.VerificationPassed = true
	if score, ok := result.Data["feasibility_score"].(float64); ok {
		vctx.FeasibilityScore = score
	} else {
		vctx.FeasibilityScore = 0.6
	}
	if findings, ok := result.Data["key_findings"].([]string); ok {
		vctx.Evidence = append(vctx.Evidence, findings...)
	}

	sources, _ := result.Metadata["sources"].([]map[string]interface{})
	for i, s := range sources {
		if i >= 5 {
			break
		}
		title, _ := s["title"].(string)
		snippet, _ := s["snippet"].(string)
		url, _ := s["url"].(string)
		relevance, _ := s["relevance"].(float64)
		vctx.VerificationSources = append(vctx.VerificationSources, types.Source{
			Title: title, Snippet: snippet, URL: url, Relevance: relevance,
		})
	}
}

// --- step 2: dimension planning ---

// planDimensions runs step 2: ask the LLM for up to 5 dimensions, falling
// back to keyword heuristics, then caps the result at 3 per spec.md §4.5
// step 2 regardless of which path produced it.
func (v *Verifier) planDimensions(ctx context.Context, seedCtx *types.ThinkingSeedContext) []types.SearchDimension {
	dims := v.planDimensionsWithLLM(ctx, seedCtx)
	if len(dims) == 0 {
		dims = fallbackDimensions(seedCtx.UserQuery, v.currentYear)
	}
	if len(dims) > maxPlannedDimensions {
		dims = dims[:maxPlannedDimensions]
	}
	return dims
}

func (v *Verifier) planDimensionsWithLLM(ctx context.Context, seedCtx *types.ThinkingSeedContext) []types.SearchDimension {
	prompt := fmt.Sprintf("Current year: %d. User question: %s\nThinking seed: %s\n\n"+
		"Propose up to 5 verification search dimensions as a JSON array, each with fields "+
		"name, query, priority (high|medium|low), reason. If a dimension concerns recent or "+
		"current developments, its query must explicitly include %d. Reply with JSON only.",
		v.currentYear, seedCtx.UserQuery, seedCtx.ThinkingSeed, v.currentYear)

	resp, err := v.llm.Complete(ctx, []types.ChatMessage{
		{Role: types.RoleSystem, Content: "You plan fact-checking search dimensions. Reply with strict JSON."},
		{Role: types.RoleUser, Content: prompt},
	}, types.ChatOverrides{})
	if err != nil || resp == nil || !resp.Success {
		v.logger.WithError(err).Debug("dimension planning LLM call failed, using fallback dimensions")
		return nil
	}

	var parsed []struct {
		Name     string `json:"name"`
		Query    string `json:"query"`
		Priority string `json:"priority"`
		Reason   string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(extractJSONArray(resp.Content)), &parsed); err != nil {
		v.logger.WithError(err).Debug("dimension planning response was not valid JSON, using fallback dimensions")
		return nil
	}

	dims := make([]types.SearchDimension, 0, len(parsed))
	for _, p := range parsed {
		if p.Query == "" {
			continue
		}
		priority := types.Priority(p.Priority)
		switch priority {
		case types.PriorityHigh, types.PriorityMedium, types.PriorityLow:
		default:
			priority = types.PriorityMedium
		}
		dims = append(dims, types.SearchDimension{Name: p.Name, Query: p.Query, Priority: priority, Reason: p.Reason})
	}

	queries := make([]string, len(dims))
	for i, d := range dims {
		queries[i] = d.Query
	}
	queries = validateAndFixYears(queries, v.currentYear)
	for i := range dims {
		dims[i].Query = queries[i]
	}
	return dims
}

func fallbackDimensions(query string, year int) []types.SearchDimension {
	lower := strings.ToLower(query)
	var dims []types.SearchDimension

	if containsAny(lower, "是什么", "原理", "如何", "怎么", "技术", "算法", "how", "what") {
		dims = append(dims,
			types.SearchDimension{Name: "core concept", Query: query + " explanation", Priority: types.PriorityHigh, Reason: "query asks about a mechanism or concept"},
			types.SearchDimension{Name: "implementation detail", Query: query + " implementation", Priority: types.PriorityMedium, Reason: "supporting technical detail"},
		)
	}
	if containsAny(lower, "区别", "对比", "比较", "vs", "versus", "difference") {
		dims = append(dims, types.SearchDimension{Name: "comparison", Query: query + " comparison", Priority: types.PriorityHigh, Reason: "query asks for a comparison"})
	}
	if containsAny(lower, "最新", "趋势", "发展", "未来", "latest", "trend") {
		dims = append(dims, types.SearchDimension{
			Name:     "recent developments",
			Query:    fmt.Sprintf("%s latest %d", query, year),
			Priority: types.PriorityHigh,
			Reason:   "query is time-sensitive",
		})
	}

	dims = append(dims, types.SearchDimension{Name: "general context", Query: query, Priority: types.PriorityMedium, Reason: "baseline coverage"})
	return dims
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

// --- step 3: multi-dimension search ---

func (v *Verifier) multiDimensionSearch(ctx context.Context, dimensions []types.SearchDimension, vctx *types.SeedVerificationContext, sink EventSink) {
	if len(dimensions) == 0 {
		return
	}

	sorted := make([]types.SearchDimension, len(dimensions))
	copy(sorted, dimensions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return priorityWeight[sorted[i].Priority] > priorityWeight[sorted[j].Priority]
	})

	limit := maxSearchDimensions
	if len(sorted) < limit {
		limit = len(sorted)
	}

	for i := 0; i < limit; i++ {
		dim := sorted[i]
		v.emit(sink, StageDimensionSearchStart, dim.Name, map[string]string{"priority": string(dim.Priority), "query": dim.Query})

		resp, err := v.search.Search(ctx, dim.Query)
		if err != nil {
			vctx.AddError("dimension " + dim.Name + ": " + err.Error())
			continue
		}
		if !resp.Success {
			if resp.Error != nil {
				vctx.AddError("dimension " + dim.Name + ": " + resp.Error.Error())
			}
			continue
		}

		vctx.MultidimResults[dim.Name] = resp.Results
		limitPerDim := 5
		for j, r := range resp.Results {
			if j >= limitPerDim {
				break
			}
			vctx.VerificationSources = append(vctx.VerificationSources, types.Source{
				Title: r.Title, Snippet: r.Snippet, URL: r.URL, Relevance: r.Relevance,
			})
		}
		v.emit(sink, StageDimensionSearchResult, dim.Name, map[string]string{"result_count": fmt.Sprintf("%d", len(resp.Results))})
	}
}

// minEnhancedSeedLength is the spec's floor: an enhancement shorter than
// this is treated the same as an outright failure.
const minEnhancedSeedLength = 50

// --- step 4: enhancement ---

// enhance builds a per-dimension summary from multidim_results and asks the
// LLM to rewrite the seed incorporating it. Per spec.md §4.5 step 4: on
// success the score rises (capped at 0.9) and the method tag flips to
// llm_enhanced_verification; on failure or a too-short result, the original
// seed and method are left untouched — enhancement failures never surface.
func (v *Verifier) enhance(ctx context.Context, seedCtx *types.ThinkingSeedContext, vctx *types.SeedVerificationContext, sink EventSink) {
	if len(vctx.MultidimResults) == 0 {
		return
	}

	summary := buildDimensionSummary(vctx.MultidimResults)
	enhanced := v.enhanceWithLLM(ctx, seedCtx, summary, sink)
	if len(enhanced) < minEnhancedSeedLength {
		vctx.AddError("enhancement produced no usable output, original seed retained")
		return
	}

	vctx.EnhancedSeed = enhanced
	vctx.FeasibilityScore = minFloat(enhancementCap, vctx.FeasibilityScore+enhancementIncrement)
	vctx.VerificationMethod = "llm_enhanced_verification"
	vctx.AddMetric("enhanced_feasibility_score", vctx.FeasibilityScore)
}

// buildDimensionSummary renders "{dimension_name}: {content[:200]}" per
// dimension, per spec.md §4.5 step 4.
func buildDimensionSummary(multidim map[string][]types.SearchResult) string {
	var sb strings.Builder
	for name, results := range multidim {
		if len(results) == 0 {
			continue
		}
		content := results[0].Snippet
		if len(content) > 200 {
			content = content[:200]
		}
		fmt.Fprintf(&sb, "%s: %s\n", name, content)
	}
	return sb.String()
}

func (v *Verifier) enhanceWithLLM(ctx context.Context, seedCtx *types.ThinkingSeedContext, summary string, sink EventSink) string {
	prompt := "Original thinking seed: " + seedCtx.ThinkingSeed +
		"\n\nNew verification evidence by dimension:\n" + summary +
		"\n\nRewrite the thinking seed into an enhanced seed of 200-400 characters that preserves its original structure, integrates this evidence, and uses the current year when describing recency. Reply with plain text only, no JSON, no preamble."

	resp, err := v.llm.Complete(ctx, []types.ChatMessage{
		{Role: types.RoleSystem, Content: "You refine a reasoning seed using new evidence, concisely, in plain text."},
		{Role: types.RoleUser, Content: prompt},
	}, types.ChatOverrides{})
	if err != nil || resp == nil || !resp.Success {
		v.logger.WithError(err).Debug("enhancement LLM call failed")
		return ""
	}
	text := strings.TrimSpace(resp.Content)
	v.emit(sink, StageEnhancementChunk, text, nil)
	return text
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func extractJSONArray(content string) string {
	start := strings.IndexByte(content, '[')
	end := strings.LastIndexByte(content, ']')
	if start == -1 || end == -1 || end < start {
		return content
	}
	return content[start : end+1]
}
