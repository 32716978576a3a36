// Package router selects among registered LLM providers, tracks their
// health, and falls back across the priority-ordered candidate list when a
// call fails with a recoverable error.
package router

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/ragseed/internal/providers"
	"github.com/tributary-ai/ragseed/internal/types"
)

// maxConsecutiveErrors is the threshold at which a provider is marked
// unhealthy. Any successful call resets the counter and restores health.
const maxConsecutiveErrors = 3

// defaultHealthCheckInterval is the spec.md §6 default for health_check_interval.
const defaultHealthCheckInterval = 300 * time.Second

type entry struct {
	provider providers.LLMProvider
	status   *types.ProviderStatus
	mu       sync.Mutex
}

// Router holds a priority-ordered list of providers (primary first, then
// configured fallbacks) and dispatches ChatCompletion against them,
// advancing past recoverable failures and stopping on auth errors.
type Router struct {
	logger *logrus.Logger

	mu                  sync.RWMutex
	order               []string
	entries             map[string]*entry
	healthCheckInterval time.Duration
	statsMu             sync.Mutex
	stats               types.RouterStats
}

func New(logger *logrus.Logger) *Router {
	return &Router{
		logger:              logger,
		entries:             make(map[string]*entry),
		stats:               types.RouterStats{ProviderUsage: make(map[string]int)},
		healthCheckInterval: defaultHealthCheckInterval,
	}
}

// SetHealthCheckInterval overrides the throttle window HealthCheck uses to
// skip re-probing a recently-checked provider when force is false. Values
// <= 0 are ignored, leaving the spec.md §6 default in place.
func (r *Router) SetHealthCheckInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.healthCheckInterval = d
}

func (r *Router) getHealthCheckInterval() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.healthCheckInterval
}

// Register appends a provider to the end of the candidate order. Call in
// priority order: primary first, then fallbacks.
func (r *Router) Register(p providers.LLMProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := p.Name()
	r.entries[name] = &entry{
		provider: p,
		status:   &types.ProviderStatus{Healthy: true},
	}
	r.order = append(r.order, name)
}

// AddEmergencyFallback inserts a provider at the very end of the candidate
// order, used for a last-resort backup not part of the configured chain.
func (r *Router) AddEmergencyFallback(p providers.LLMProvider) {
	r.Register(p)
}

// SwitchPrimary moves the named provider to the front of the candidate
// order. Per spec.md §4.2, it only succeeds when the named provider is
// registered and currently healthy; it returns false and leaves the order
// untouched otherwise.
func (r *Router) SwitchPrimary(name string) bool {
	if !r.isHealthy(name) {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	idx := -1
	for i, n := range r.order {
		if n == name {
			idx = i
			break
		}
	}
	if idx == -1 {
		return false
	}
	if idx == 0 {
		return true
	}

	reordered := make([]string, 0, len(r.order))
	reordered = append(reordered, name)
	for i, n := range r.order {
		if i != idx {
			reordered = append(reordered, n)
		}
	}
	r.order = reordered
	return true
}

// buildAttemptList builds spec.md §4.2's ordered attempt list
// [selected, …order excluding selected and duplicates]. An empty selected
// leaves order untouched; a selected name absent from order is still tried
// first (the caller may be pinning an unregistered or not-yet-known name).
func buildAttemptList(order []string, selected string) []string {
	if selected == "" {
		return order
	}
	out := make([]string, 0, len(order)+1)
	out = append(out, selected)
	for _, n := range order {
		if n != selected {
			out = append(out, n)
		}
	}
	return out
}

func (r *Router) candidateOrder() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Router) entryFor(name string) *entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[name]
}

// Complete dispatches messages against the candidate chain, trying each
// provider in priority order until one succeeds, a terminal (auth) error is
// hit, or the chain is exhausted. Per spec.md §4.2's fallback protocol, the
// attempt list is built as [selected, …fallback_order excluding selected and
// duplicates]: overrides.Provider, if set, is only moved to the front of the
// chain — it still falls back to the rest of the registered candidates
// rather than being dispatched alone.
func (r *Router) Complete(ctx context.Context, messages []types.ChatMessage, overrides types.ChatOverrides) (*types.ChatResponse, error) {
	r.statsMu.Lock()
	r.stats.TotalRequests++
	r.statsMu.Unlock()

	candidates := buildAttemptList(r.candidateOrder(), overrides.Provider)
	if len(candidates) == 0 {
		return &types.ChatResponse{
			Success: false,
			Error:   types.NewCallError(types.ErrUnknown, "router: no providers registered"),
		}, nil
	}

	var lastErr *types.CallError
	for i, name := range candidates {
		e := r.entryFor(name)
		if e == nil {
			continue
		}
		if !r.isHealthy(name) {
			if i == 0 {
				if !r.probeHealth(ctx, name, e) {
					r.logger.WithField("provider", name).Warn("primary provider failed health probe, skipping")
					continue
				}
			} else {
				r.logger.WithField("provider", name).Debug("skipping unhealthy provider in fallback chain")
				continue
			}
		}

		resp, err := e.provider.ChatCompletion(ctx, messages, overrides)
		if err != nil {
			resp = &types.ChatResponse{
				Success:  false,
				Provider: name,
				Error:    types.NewCallError(providers.ClassifyTransportError(err), "router: provider %s returned transport error: %v", name, err),
			}
		}

		if resp.Success {
			r.recordSuccess(name, resp)
			r.statsMu.Lock()
			r.stats.SuccessfulRequests++
			r.stats.ProviderUsage[name]++
			if i > 0 {
				r.stats.FallbackCount++
			}
			r.statsMu.Unlock()
			return resp, nil
		}

		r.recordFailure(name, resp.Error)
		lastErr = resp.Error
		r.logger.WithFields(logrus.Fields{
			"provider": name,
			"error":    resp.Error,
		}).Warn("provider call failed")

		if resp.Error != nil && resp.Error.Kind.IsTerminal() {
			r.statsMu.Lock()
			r.stats.FailedRequests++
			r.statsMu.Unlock()
			return resp, nil
		}
	}

	r.statsMu.Lock()
	r.stats.FailedRequests++
	r.statsMu.Unlock()

	if lastErr != nil {
		return &types.ChatResponse{Success: false, Error: lastErr}, nil
	}
	return &types.ChatResponse{
		Success: false,
		Error:   types.NewCallError(types.ErrUnknown, "no providers available: all candidates unhealthy or failed their health probe"),
	}, nil
}

// primaryProbeTimeout bounds the single health probe attempted on an
// unhealthy primary candidate before the router gives up and either
// advances (if fallbacks exist) or fails outright.
const primaryProbeTimeout = 10 * time.Second

// probeHealth runs a single bounded health check against a candidate
// already marked unhealthy and restores its health on success. Only
// invoked for the primary (first) candidate in an attempt list — fallback
// candidates that are unhealthy are skipped without probing.
func (r *Router) probeHealth(ctx context.Context, name string, e *entry) bool {
	probeCtx, cancel := context.WithTimeout(ctx, primaryProbeTimeout)
	defer cancel()

	start := time.Now()
	err := e.provider.HealthCheck(probeCtx)
	latency := time.Since(start)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.status.LastCheck = time.Now()
	if err != nil {
		return false
	}
	e.status.ConsecutiveErrors = 0
	e.status.Healthy = true
	if e.status.AvgResponseTime == 0 {
		e.status.AvgResponseTime = latency
	} else {
		e.status.AvgResponseTime = (e.status.AvgResponseTime + latency) / 2
	}
	return true
}

func (r *Router) isHealthy(name string) bool {
	e := r.entryFor(name)
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status.Healthy
}

func (r *Router) recordSuccess(name string, resp *types.ChatResponse) {
	e := r.entryFor(name)
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status.ConsecutiveErrors = 0
	e.status.Healthy = true
	e.status.SuccessCount++
	e.status.LastCheck = time.Now()
	if e.status.AvgResponseTime == 0 {
		e.status.AvgResponseTime = resp.Latency
	} else {
		e.status.AvgResponseTime = (e.status.AvgResponseTime + resp.Latency) / 2
	}
	if resp.Usage != nil {
		cfg := e.provider.Config()
		cost := float64(resp.Usage.PromptTokens)*cfg.InputCostPer1K/1000 +
			float64(resp.Usage.CompletionTokens)*cfg.OutputCostPer1K/1000
		e.status.AccruedCost += cost
	}
}

func (r *Router) recordFailure(name string, callErr *types.CallError) {
	e := r.entryFor(name)
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status.ConsecutiveErrors++
	e.status.LastCheck = time.Now()
	if callErr != nil {
		e.status.LastError = callErr.Kind
	}
	if e.status.ConsecutiveErrors >= maxConsecutiveErrors {
		e.status.Healthy = false
	}
}

// Status returns a snapshot of every registered provider's health.
func (r *Router) Status() map[string]types.ProviderStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]types.ProviderStatus, len(r.entries))
	for name, e := range r.entries {
		e.mu.Lock()
		out[name] = *e.status
		e.mu.Unlock()
	}
	return out
}

// Stats returns a snapshot of router-wide counters.
func (r *Router) Stats() types.RouterStats {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	usage := make(map[string]int, len(r.stats.ProviderUsage))
	for k, v := range r.stats.ProviderUsage {
		usage[k] = v
	}
	s := r.stats
	s.ProviderUsage = usage
	return s
}

// HealthCheck pings every registered provider and returns each one's
// resulting health. When force is false, a provider probed more recently
// than the configured health_check_interval is skipped entirely and its
// cached health is reported instead of issuing a new probe.
func (r *Router) HealthCheck(ctx context.Context, force bool) map[string]bool {
	interval := r.getHealthCheckInterval()
	results := make(map[string]bool)

	for _, name := range r.candidateOrder() {
		e := r.entryFor(name)
		if e == nil {
			continue
		}
		e.mu.Lock()
		skip := !force && time.Since(e.status.LastCheck) < interval
		cachedHealthy := e.status.Healthy
		e.mu.Unlock()
		if skip {
			results[name] = cachedHealthy
			continue
		}

		start := time.Now()
		err := e.provider.HealthCheck(ctx)
		latency := time.Since(start)

		e.mu.Lock()
		e.status.LastCheck = time.Now()
		if err != nil {
			e.status.ConsecutiveErrors++
			if e.status.ConsecutiveErrors >= maxConsecutiveErrors {
				e.status.Healthy = false
			}
			r.logger.WithError(err).WithField("provider", name).Warn("provider health check failed")
		} else {
			e.status.ConsecutiveErrors = 0
			e.status.Healthy = true
			if e.status.AvgResponseTime == 0 {
				e.status.AvgResponseTime = latency
			} else {
				e.status.AvgResponseTime = (e.status.AvgResponseTime + latency) / 2
			}
		}
		results[name] = e.status.Healthy
		e.mu.Unlock()
	}
	return results
}
