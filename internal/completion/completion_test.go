package completion

import (
	"context"
	"testing"
	"time"

	"llmcascade/internal/backend"
	"llmcascade/internal/grammar"
)

type fakeBackend struct {
	responses []*backend.CompletionResponse
	errs      []error
	calls     int
	supports  bool
	requests  []backend.CompletionRequest
}

func (f *fakeBackend) Name() string             { return "fake" }
func (f *fakeBackend) SupportsLogitBias() bool  { return f.supports }
func (f *fakeBackend) Complete(ctx context.Context, req backend.CompletionRequest) (*backend.CompletionResponse, error) {
	i := f.calls
	f.calls++
	f.requests = append(f.requests, req)
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	return f.responses[i], nil
}

func requestedTokens(n int) *int { return &n }

func TestComputeActualRequestTokensClampsToAvailable(t *testing.T) {
	got, err := computeActualRequestTokens(1000, 4096, 3000, 100)
	if err != nil {
		t.Fatal(err)
	}
	if got != 996 {
		t.Errorf("got %d, want 996", got)
	}
}

func TestComputeActualRequestTokensFailsWhenBudgetExhausted(t *testing.T) {
	if _, err := computeActualRequestTokens(10, 100, 100, 10); err == nil {
		t.Fatal("expected error when no budget remains")
	}
}

func TestRunSucceedsOnFirstTry(t *testing.T) {
	fb := &fakeBackend{responses: []*backend.CompletionResponse{
		{Content: "true", StopReason: backend.StopEOS},
	}}
	e := New(fb)
	e.Sleep = func(time.Duration) {}

	req := backend.CompletionRequest{
		Grammar: grammar.Boolean{},
		Config: backend.RequestConfig{
			ModelCtxSize:            4096,
			RequestedResponseTokens: requestedTokens(64),
			RetryAfterFailNTimes:    3,
		},
	}

	res, err := e.Run(context.Background(), req, 100, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.PrimitiveValue != true {
		t.Errorf("primitive value = %v, want true", res.PrimitiveValue)
	}
}

func TestRunRetriesOnNetworkErrorThenSucceeds(t *testing.T) {
	fb := &fakeBackend{
		errs:      []error{context.DeadlineExceeded, nil},
		responses: []*backend.CompletionResponse{nil, {Content: "false", StopReason: backend.StopEOS}},
	}
	e := New(fb)
	e.Sleep = func(time.Duration) {}

	req := backend.CompletionRequest{
		Grammar: grammar.Boolean{},
		Config: backend.RequestConfig{
			ModelCtxSize:            4096,
			RequestedResponseTokens: requestedTokens(64),
			RetryAfterFailNTimes:    3,
		},
	}

	res, err := e.Run(context.Background(), req, 100, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.PrimitiveValue != false {
		t.Errorf("primitive value = %v, want false", res.PrimitiveValue)
	}
	if fb.calls != 2 {
		t.Errorf("calls = %d, want 2", fb.calls)
	}
}

func TestRunExpandsBudgetOnStopLimit(t *testing.T) {
	fb := &fakeBackend{responses: []*backend.CompletionResponse{
		{Content: "", StopReason: backend.StopLimit},
		{Content: "true", StopReason: backend.StopEOS},
	}}
	e := New(fb)
	e.Sleep = func(time.Duration) {}

	req := backend.CompletionRequest{
		Grammar: grammar.Boolean{},
		Config: backend.RequestConfig{
			ModelCtxSize:            4096,
			RequestedResponseTokens: requestedTokens(64),
			RetryAfterFailNTimes:    3,
			IncreaseLimitOnFail:     true,
		},
	}

	res, err := e.Run(context.Background(), req, 100, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(fb.requests) < 2 {
		t.Fatalf("backend saw %d requests, want 2", len(fb.requests))
	}
	if got := *fb.requests[1].Config.RequestedResponseTokens; got != 86 { // ceil(64*1.33)
		t.Errorf("requested tokens = %d, want 86", got)
	}
	if res.Response.Content != "true" {
		t.Errorf("content = %q", res.Response.Content)
	}
}

func TestRunFailsOnStopLimitWithoutRetryFlag(t *testing.T) {
	fb := &fakeBackend{responses: []*backend.CompletionResponse{
		{Content: "", StopReason: backend.StopLimit},
	}}
	e := New(fb)
	e.Sleep = func(time.Duration) {}

	req := backend.CompletionRequest{
		Config: backend.RequestConfig{
			ModelCtxSize:            4096,
			RequestedResponseTokens: requestedTokens(64),
			RetryAfterFailNTimes:    3,
			IncreaseLimitOnFail:     false,
		},
	}

	if _, err := e.Run(context.Background(), req, 100, nil); err == nil {
		t.Fatal("expected error on terminal stop-limit")
	}
}

func TestRunExhaustsRetriesAndAggregates(t *testing.T) {
	fb := &fakeBackend{responses: []*backend.CompletionResponse{
		{Content: "maybe", StopReason: backend.StopSequence},
		{Content: "maybe", StopReason: backend.StopSequence},
	}}
	e := New(fb)
	e.Sleep = func(time.Duration) {}

	req := backend.CompletionRequest{
		Grammar: grammar.Boolean{},
		Config: backend.RequestConfig{
			ModelCtxSize:            4096,
			RequestedResponseTokens: requestedTokens(64),
			RetryAfterFailNTimes:    2,
		},
	}

	if _, err := e.Run(context.Background(), req, 100, nil); err == nil {
		t.Fatal("expected aggregated error after exhausting retries")
	}
}
