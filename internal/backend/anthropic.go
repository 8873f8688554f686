package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"llmcascade/internal/pkgerrors"
)

// anthropicMaxTemperature is the upper bound of Anthropic's temperature
// range (0..1), versus the 0..2 range used internally and by the
// OpenAI-compatible providers.
const anthropicMaxTemperature = 1.0
const internalMaxTemperature = 2.0

// Anthropic implements Backend directly: its wire format (system field
// separate from the message array, no logit_bias support) doesn't fit the
// openaicompat base, grounded on the teacher's separate
// client_anthropic.go versus client_openai.go split.
type Anthropic struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
	// Limiter throttles outgoing requests against Anthropic's per-key rate
	// ceiling; NewAnthropic installs NewDefaultLimiter unless the caller
	// overrides it after construction.
	Limiter *rate.Limiter
}

// NewAnthropic builds the Anthropic backend.
func NewAnthropic(apiKey, model string, httpClient *http.Client) *Anthropic {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	baseURL := "https://api.anthropic.com/v1"
	return &Anthropic{APIKey: apiKey, Model: model, BaseURL: baseURL, HTTPClient: httpClient, Limiter: NewDefaultLimiter()}
}

func (a *Anthropic) Name() string { return "anthropic" }

// SupportsLogitBias is false: Anthropic's API has no equivalent knob, so
// the logit-bias compiler's output is simply never sent.
func (a *Anthropic) SupportsLogitBias() bool { return false }

// rescaleTemperature maps the internal 0..2 temperature range onto
// Anthropic's 0..1 range.
func rescaleTemperature(t float64) float64 {
	rescaled := t / internalMaxTemperature * anthropicMaxTemperature
	if rescaled > anthropicMaxTemperature {
		rescaled = anthropicMaxTemperature
	}
	if rescaled < 0 {
		rescaled = 0
	}
	return rescaled
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model         string             `json:"model"`
	System        string             `json:"system,omitempty"`
	Messages      []anthropicMessage `json:"messages"`
	MaxTokens     int                `json:"max_tokens"`
	Temperature   float64            `json:"temperature"`
	StopSequences []string           `json:"stop_sequences,omitempty"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicResponse struct {
	Content      []anthropicContentBlock `json:"content"`
	StopReason   string                  `json:"stop_reason"`
	StopSequence string                  `json:"stop_sequence"`
	Usage        struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (a *Anthropic) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if a.Limiter != nil {
		if err := a.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: anthropic rate limiter: %v", pkgerrors.ErrBackend, err)
		}
	}

	var system string
	messages := make([]anthropicMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == "system" {
			system = m.Content
			continue
		}
		messages = append(messages, anthropicMessage{Role: m.Role, Content: m.Content})
	}

	maxTokens := 4096
	if req.Config.RequestedResponseTokens != nil {
		maxTokens = *req.Config.RequestedResponseTokens
	}

	body := anthropicRequest{
		Model:         a.Model,
		System:        system,
		Messages:      messages,
		MaxTokens:     maxTokens,
		Temperature:   rescaleTemperature(req.Config.Temperature),
		StopSequences: req.StopSequences,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal anthropic request: %v", pkgerrors.ErrBackend, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: build anthropic request: %v", pkgerrors.ErrBackend, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.APIKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := a.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: anthropic request: %v", pkgerrors.ErrBackend, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read anthropic response: %v", pkgerrors.ErrBackend, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: anthropic returned status %d: %s", pkgerrors.ErrBackend, resp.StatusCode, raw)
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: parse anthropic response: %v", pkgerrors.ErrBackend, err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("%w: anthropic api error: %s", pkgerrors.ErrBackend, parsed.Error.Message)
	}

	var content string
	for _, block := range parsed.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	return &CompletionResponse{
		Content:          content,
		StopReason:       anthropicStopReason(parsed.StopReason),
		StopSequence:     parsed.StopSequence,
		PromptTokens:     parsed.Usage.InputTokens,
		CompletionTokens: parsed.Usage.OutputTokens,
	}, nil
}

func anthropicStopReason(reason string) StopReason {
	switch reason {
	case "end_turn":
		return StopEOS
	case "stop_sequence":
		return StopSequence
	case "max_tokens":
		return StopLimit
	default:
		return StopError
	}
}
