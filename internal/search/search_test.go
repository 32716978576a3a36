package search

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/ragseed/internal/types"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return l
}

func TestAdapter_NoBackendUsesMock(t *testing.T) {
	a := New(Config{Enabled: false, MaxResults: 3}, testLogger())
	resp, err := a.Search(context.Background(), "current state of Go generics")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Success {
		t.Fatal("expected mock search to succeed")
	}
	if len(resp.Results) != 3 {
		t.Errorf("expected 3 results, got %d", len(resp.Results))
	}
	if resp.Metadata["backend"] != "mock" {
		t.Errorf("expected mock backend metadata, got %v", resp.Metadata)
	}
}

type fakeBackend struct {
	name     string
	attempts []*types.SearchResponse
	calls    int
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Search(ctx context.Context, query string, maxResults int) (*types.SearchResponse, error) {
	r := f.attempts[f.calls]
	f.calls++
	return r, nil
}

func TestAdapter_DegradesToMockOnRecoverableExhaustion(t *testing.T) {
	a := New(Config{Enabled: true, TavilyAPIKey: "key", MaxResults: 2, MaxRetries: 2, RetryBaseDelay: time.Millisecond}, testLogger())
	a.real = &fakeBackend{
		name: "tavily",
		attempts: []*types.SearchResponse{
			{Success: false, Error: types.NewCallError(types.ErrNetwork, "conn reset")},
			{Success: false, Error: types.NewCallError(types.ErrNetwork, "conn reset")},
		},
	}

	resp, err := a.Search(context.Background(), "latest kubernetes release")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Success {
		t.Fatal("expected degraded mock response to succeed")
	}
	if resp.Metadata["degraded_from"] != "tavily" {
		t.Errorf("expected degraded_from=tavily, got %v", resp.Metadata)
	}
}

func TestAdapter_AuthErrorSkipsRetryAndMock(t *testing.T) {
	a := New(Config{Enabled: true, TavilyAPIKey: "key", MaxRetries: 3, RetryBaseDelay: time.Millisecond}, testLogger())
	fb := &fakeBackend{
		name: "tavily",
		attempts: []*types.SearchResponse{
			{Success: false, Error: types.NewCallError(types.ErrAuth, "bad key")},
		},
	}
	a.real = fb

	resp, err := a.Search(context.Background(), "anything")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Success {
		t.Fatal("expected auth failure to surface, not degrade to mock")
	}
	if fb.calls != 1 {
		t.Errorf("expected exactly 1 call on terminal error, got %d", fb.calls)
	}
}
