package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRescaleTemperatureClampsToAnthropicRange(t *testing.T) {
	if got := rescaleTemperature(2.0); got != 1.0 {
		t.Errorf("rescale(2.0) = %v, want 1.0", got)
	}
	if got := rescaleTemperature(1.0); got != 0.5 {
		t.Errorf("rescale(1.0) = %v, want 0.5", got)
	}
	if got := rescaleTemperature(0); got != 0 {
		t.Errorf("rescale(0) = %v, want 0", got)
	}
}

func TestAnthropicCompleteSeparatesSystemMessage(t *testing.T) {
	var captured anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(anthropicResponse{
			Content:    []anthropicContentBlock{{Type: "text", Text: "hi there"}},
			StopReason: "end_turn",
		})
	}))
	defer srv.Close()

	a := NewAnthropic("key", "claude-x", nil)
	a.BaseURL = srv.URL

	resp, err := a.Complete(context.Background(), CompletionRequest{
		Messages: []RemoteMessage{
			{Role: "system", Content: "be nice"},
			{Role: "user", Content: "hello"},
		},
		Config: RequestConfig{Temperature: 1.0},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "hi there" {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.StopReason != StopEOS {
		t.Errorf("stop reason = %v, want StopEOS", resp.StopReason)
	}
	if captured.System != "be nice" {
		t.Errorf("system = %q, want %q", captured.System, "be nice")
	}
	if len(captured.Messages) != 1 || captured.Messages[0].Role != "user" {
		t.Errorf("messages = %+v, want just the user message", captured.Messages)
	}
}

func TestAnthropicSupportsLogitBiasIsFalse(t *testing.T) {
	a := NewAnthropic("key", "claude-x", nil)
	if a.SupportsLogitBias() {
		t.Fatal("anthropic must not claim logit-bias support")
	}
}
