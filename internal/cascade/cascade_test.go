package cascade

import (
	"context"
	"testing"
	"time"

	"llmcascade/internal/backend"
	"llmcascade/internal/completion"
)

type fakeBackend struct {
	responses []*backend.CompletionResponse
	i         int
}

func (f *fakeBackend) Name() string            { return "fake" }
func (f *fakeBackend) SupportsLogitBias() bool { return true }
func (f *fakeBackend) Complete(ctx context.Context, req backend.CompletionRequest) (*backend.CompletionResponse, error) {
	r := f.responses[f.i]
	f.i++
	return r, nil
}

func newTestEngine(responses ...*backend.CompletionResponse) *Engine {
	fb := &fakeBackend{responses: responses}
	c := completion.New(fb)
	c.Sleep = func(time.Duration) {}
	return New(c, backend.CompletionRequest{Config: backend.RequestConfig{
		ModelCtxSize:            4096,
		RequestedResponseTokens: intPtr(64),
		RetryAfterFailNTimes:    1,
	}}, 0)
}

func intPtr(n int) *int { return &n }

func TestRoundLifecycleGuidanceThenInference(t *testing.T) {
	e := newTestEngine(&backend.CompletionResponse{Content: "hello", StopReason: backend.StopEOS})

	r, err := e.OpenRound("Q: ")
	if err != nil {
		t.Fatal(err)
	}

	if err := e.RunStep(context.Background(), r, &Step{Kind: StepGuidance, GuidanceText: "prelude "}); err != nil {
		t.Fatal(err)
	}
	if err := e.RunStep(context.Background(), r, &Step{Kind: StepInference, DynamicSuffix: "\n"}); err != nil {
		t.Fatal(err)
	}

	want := "Q: prelude hello\n"
	if r.Transcript() != want {
		t.Errorf("transcript = %q, want %q", r.Transcript(), want)
	}

	r.CloseRound()
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestDropLastStepRematerializes(t *testing.T) {
	e := newTestEngine(
		&backend.CompletionResponse{Content: "first", StopReason: backend.StopEOS},
		&backend.CompletionResponse{Content: "second", StopReason: backend.StopEOS},
	)

	r, _ := e.OpenRound("start:")
	if err := e.RunStep(context.Background(), r, &Step{Kind: StepInference}); err != nil {
		t.Fatal(err)
	}
	if r.Transcript() != "start:first" {
		t.Fatalf("transcript = %q", r.Transcript())
	}

	if err := r.DropLastStep(); err != nil {
		t.Fatal(err)
	}
	if r.Transcript() != "start:" {
		t.Fatalf("transcript after drop = %q, want %q", r.Transcript(), "start:")
	}

	if err := e.RunStep(context.Background(), r, &Step{Kind: StepInference}); err != nil {
		t.Fatal(err)
	}
	if r.Transcript() != "start:second" {
		t.Fatalf("transcript = %q, want replacement content", r.Transcript())
	}
}

func TestCloseFailsWithOpenRound(t *testing.T) {
	e := newTestEngine()
	if _, err := e.OpenRound("x"); err != nil {
		t.Fatal(err)
	}
	if err := e.Close(); err == nil {
		t.Fatal("expected Close to fail while a round remains open")
	}
}

func TestPrimitiveValueReflectsLastRoundLastStep(t *testing.T) {
	e := newTestEngine(&backend.CompletionResponse{Content: "true", StopReason: backend.StopEOS})

	r, _ := e.OpenRound("")
	step := &Step{Kind: StepInference}
	_ = e.RunStep(context.Background(), r, step)
	r.CloseRound()

	if e.PrimitiveValue() != nil {
		// No grammar attached in this test, so nil is expected; this
		// exercises the last-round/last-step lookup path itself.
		t.Errorf("expected nil primitive without a grammar, got %v", e.PrimitiveValue())
	}
}
