package router

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/ragseed/internal/types"
)

type stubProvider struct {
	name      string
	resps     []*types.ChatResponse
	calls     int
	healthErr error
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) ChatCompletion(ctx context.Context, messages []types.ChatMessage, overrides types.ChatOverrides) (*types.ChatResponse, error) {
	r := s.resps[s.calls]
	s.calls++
	return r, nil
}

func (s *stubProvider) EstimateCost(messages []types.ChatMessage, maxTokens int) (*types.CostEstimate, error) {
	return &types.CostEstimate{}, nil
}

func (s *stubProvider) HealthCheck(ctx context.Context) error { return s.healthErr }

func (s *stubProvider) Config() *types.ProviderConfig {
	return &types.ProviderConfig{Name: s.name}
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return l
}

func ok(provider string) *types.ChatResponse {
	return &types.ChatResponse{Success: true, Content: "hi", Provider: provider}
}

func fail(kind types.ErrorKind) *types.ChatResponse {
	return &types.ChatResponse{Success: false, Error: types.NewCallError(kind, "boom")}
}

func TestRouter_AdvancesOnRecoverableError(t *testing.T) {
	r := New(testLogger())
	primary := &stubProvider{name: "primary", resps: []*types.ChatResponse{fail(types.ErrTimeout)}}
	fallback := &stubProvider{name: "fallback", resps: []*types.ChatResponse{ok("fallback")}}
	r.Register(primary)
	r.Register(fallback)

	resp, err := r.Complete(context.Background(), []types.ChatMessage{{Role: types.RoleUser, Content: "hi"}}, types.ChatOverrides{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Success || resp.Provider != "fallback" {
		t.Fatalf("expected fallback success, got %+v", resp)
	}

	stats := r.Stats()
	if stats.FallbackCount != 1 {
		t.Errorf("expected fallback count 1, got %d", stats.FallbackCount)
	}
}

func TestRouter_AuthErrorIsTerminal(t *testing.T) {
	r := New(testLogger())
	primary := &stubProvider{name: "primary", resps: []*types.ChatResponse{fail(types.ErrAuth)}}
	fallback := &stubProvider{name: "fallback", resps: []*types.ChatResponse{ok("fallback")}}
	r.Register(primary)
	r.Register(fallback)

	resp, err := r.Complete(context.Background(), []types.ChatMessage{{Role: types.RoleUser, Content: "hi"}}, types.ChatOverrides{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Success {
		t.Fatal("expected failure on terminal auth error")
	}
	if fallback.calls != 0 {
		t.Errorf("fallback must not be called after a terminal error, got %d calls", fallback.calls)
	}
}

func TestRouter_UnhealthyAfterThreeConsecutiveErrors(t *testing.T) {
	r := New(testLogger())
	p := &stubProvider{name: "primary", resps: []*types.ChatResponse{
		fail(types.ErrServer), fail(types.ErrServer), fail(types.ErrServer),
	}}
	r.Register(p)

	for i := 0; i < 3; i++ {
		_, _ = r.Complete(context.Background(), []types.ChatMessage{{Role: types.RoleUser, Content: "hi"}}, types.ChatOverrides{Provider: "primary"})
	}

	status := r.Status()["primary"]
	if status.Healthy {
		t.Error("expected provider to be unhealthy after 3 consecutive errors")
	}
	if status.ConsecutiveErrors != 3 {
		t.Errorf("expected 3 consecutive errors, got %d", status.ConsecutiveErrors)
	}
}

func TestRouter_SuccessResetsHealth(t *testing.T) {
	r := New(testLogger())
	p := &stubProvider{name: "primary", resps: []*types.ChatResponse{
		fail(types.ErrServer), fail(types.ErrServer), fail(types.ErrServer), ok("primary"),
	}}
	r.Register(p)

	for i := 0; i < 4; i++ {
		_, _ = r.Complete(context.Background(), []types.ChatMessage{{Role: types.RoleUser, Content: "hi"}}, types.ChatOverrides{Provider: "primary"})
	}

	status := r.Status()["primary"]
	if !status.Healthy {
		t.Error("expected success to restore health")
	}
	if status.ConsecutiveErrors != 0 {
		t.Errorf("expected consecutive errors reset to 0, got %d", status.ConsecutiveErrors)
	}
}

func TestRouter_UnhealthyPrimaryProbeFailsSkipsCandidate(t *testing.T) {
	r := New(testLogger())
	p := &stubProvider{name: "primary", resps: []*types.ChatResponse{
		fail(types.ErrServer), fail(types.ErrServer), fail(types.ErrServer),
	}}
	r.Register(p)
	for i := 0; i < 3; i++ {
		_, _ = r.Complete(context.Background(), []types.ChatMessage{{Role: types.RoleUser, Content: "hi"}}, types.ChatOverrides{Provider: "primary"})
	}
	if r.Status()["primary"].Healthy {
		t.Fatal("expected primary to be unhealthy before probe test")
	}

	p.healthErr = errors.New("still down")
	resp, err := r.Complete(context.Background(), []types.ChatMessage{{Role: types.RoleUser, Content: "hi"}}, types.ChatOverrides{Provider: "primary"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Success {
		t.Fatal("expected failure when the only candidate's health probe fails")
	}
	if p.calls != 3 {
		t.Errorf("expected no additional ChatCompletion dispatch after a failed probe, calls=%d", p.calls)
	}
}

func TestRouter_UnhealthyPrimaryProbeSucceedsRestoresHealth(t *testing.T) {
	r := New(testLogger())
	p := &stubProvider{name: "primary", resps: []*types.ChatResponse{
		fail(types.ErrServer), fail(types.ErrServer), fail(types.ErrServer), ok("primary"),
	}}
	r.Register(p)
	for i := 0; i < 3; i++ {
		_, _ = r.Complete(context.Background(), []types.ChatMessage{{Role: types.RoleUser, Content: "hi"}}, types.ChatOverrides{Provider: "primary"})
	}

	resp, err := r.Complete(context.Background(), []types.ChatMessage{{Role: types.RoleUser, Content: "hi"}}, types.ChatOverrides{Provider: "primary"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Success {
		t.Fatal("expected the probe to restore health and let the call through")
	}
	if !r.Status()["primary"].Healthy {
		t.Error("expected primary healthy after successful probe+call")
	}
}

func TestRouter_SwitchPrimary(t *testing.T) {
	r := New(testLogger())
	r.Register(&stubProvider{name: "a", resps: []*types.ChatResponse{ok("a")}})
	r.Register(&stubProvider{name: "b", resps: []*types.ChatResponse{ok("b")}})

	if !r.SwitchPrimary("b") {
		t.Fatal("expected switch to a healthy provider to succeed")
	}

	order := r.candidateOrder()
	if order[0] != "b" {
		t.Errorf("expected b to be primary, got %v", order)
	}
}

func TestRouter_SwitchPrimaryRejectsUnhealthyProvider(t *testing.T) {
	r := New(testLogger())
	r.Register(&stubProvider{name: "a", resps: []*types.ChatResponse{ok("a")}})
	r.Register(&stubProvider{name: "b"})

	// Drive b unhealthy directly rather than through Complete: since
	// overrides.Provider only reorders the attempt list to [b, a] rather
	// than restricting it to b alone (spec.md §4.2's fallback protocol), a
	// real fallback dispatch here would let a's success mask b's failures.
	for i := 0; i < maxConsecutiveErrors; i++ {
		r.recordFailure("b", types.NewCallError(types.ErrServer, "boom"))
	}

	if r.SwitchPrimary("b") {
		t.Fatal("expected switch to an unhealthy provider to fail")
	}
	if order := r.candidateOrder(); order[0] != "a" {
		t.Errorf("expected order unchanged on rejected switch, got %v", order)
	}
}

func TestRouter_PinnedProviderFallsBackToOtherCandidates(t *testing.T) {
	r := New(testLogger())
	r.Register(&stubProvider{name: "a", resps: []*types.ChatResponse{ok("a")}})
	r.Register(&stubProvider{name: "b", resps: []*types.ChatResponse{fail(types.ErrServer)}})

	resp, err := r.Complete(context.Background(), []types.ChatMessage{{Role: types.RoleUser, Content: "hi"}}, types.ChatOverrides{Provider: "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Success || resp.Provider != "a" {
		t.Fatalf("expected the pinned provider's failure to fall back to the next candidate, got %+v", resp)
	}

	stats := r.Stats()
	if stats.FallbackCount != 1 {
		t.Errorf("expected fallback count 1, got %d", stats.FallbackCount)
	}
}

func TestRouter_SwitchPrimaryRejectsUnknownProvider(t *testing.T) {
	r := New(testLogger())
	r.Register(&stubProvider{name: "a", resps: []*types.ChatResponse{ok("a")}})

	if r.SwitchPrimary("nonexistent") {
		t.Fatal("expected switch to an unregistered provider to fail")
	}
}

func TestRouter_HealthCheckThrottlesWithinInterval(t *testing.T) {
	r := New(testLogger())
	p := &stubProvider{name: "a"}
	r.Register(p)

	first := r.HealthCheck(context.Background(), true)
	if !first["a"] {
		t.Fatal("expected forced health check to succeed")
	}

	p.healthErr = errors.New("now failing")
	second := r.HealthCheck(context.Background(), false)
	if !second["a"] {
		t.Error("expected throttled check within the interval to return the cached healthy snapshot")
	}

	var last map[string]bool
	for i := 0; i < maxConsecutiveErrors; i++ {
		last = r.HealthCheck(context.Background(), true)
	}
	if last["a"] {
		t.Error("expected forced checks bypassing the throttle to eventually report unhealthy")
	}
}
