// Package openaicompat is the shared base for every backend.Backend whose
// wire format is OpenAI's chat-completions API: OpenAI itself, Perplexity,
// and Mistral (spec §4.J — "three providers share a base the teacher's own
// single-compatible-provider client never needed").
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"llmcascade/internal/backend"
	"llmcascade/internal/pkgerrors"
)

// Client is a thin, provider-agnostic OpenAI-wire-format client. The
// OpenAI, Perplexity and Mistral backends are all Client values built by
// New, differing only in provider name and base URL.
type Client struct {
	Provider   string
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
	// Limiter throttles outgoing requests against the provider's rate
	// ceiling; New installs backend.NewDefaultLimiter unless the caller
	// overrides it after construction.
	Limiter *rate.Limiter
}

// New builds a Client with a sensible request timeout if httpClient is nil.
func New(provider, baseURL, apiKey, model string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Client{Provider: provider, BaseURL: baseURL, APIKey: apiKey, Model: model, HTTPClient: httpClient, Limiter: backend.NewDefaultLimiter()}
}

func (c *Client) Name() string { return c.Provider }

func (c *Client) SupportsLogitBias() bool { return true }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model            string           `json:"model"`
	Messages         []chatMessage    `json:"messages"`
	Temperature      float64          `json:"temperature"`
	TopP             *float64         `json:"top_p,omitempty"`
	FrequencyPenalty *float64         `json:"frequency_penalty,omitempty"`
	PresencePenalty  float64          `json:"presence_penalty"`
	MaxTokens        *int             `json:"max_tokens,omitempty"`
	LogitBias        map[string]int32 `json:"logit_bias,omitempty"`
	Stop             []string         `json:"stop,omitempty"`
}

type chatChoice struct {
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete issues one chat-completion request and normalizes the response
// into backend.CompletionResponse.
func (c *Client) Complete(ctx context.Context, req backend.CompletionRequest) (*backend.CompletionResponse, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %s rate limiter: %v", pkgerrors.ErrBackend, c.Provider, err)
		}
	}

	messages := make([]chatMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = chatMessage{Role: m.Role, Content: m.Content}
	}

	body := chatRequest{
		Model:            c.Model,
		Messages:         messages,
		Temperature:      req.Config.Temperature,
		TopP:             req.Config.TopP,
		FrequencyPenalty: req.Config.FrequencyPenalty,
		PresencePenalty:  req.Config.PresencePenalty,
		MaxTokens:        req.Config.RequestedResponseTokens,
		LogitBias:        req.RemoteBias,
		Stop:             req.StopSequences,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal %s request: %v", pkgerrors.ErrBackend, c.Provider, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: build %s request: %v", pkgerrors.ErrBackend, c.Provider, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %s request: %v", pkgerrors.ErrBackend, c.Provider, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s response: %v", pkgerrors.ErrBackend, c.Provider, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned status %d: %s", pkgerrors.ErrBackend, c.Provider, resp.StatusCode, raw)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: parse %s response: %v", pkgerrors.ErrBackend, c.Provider, err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("%w: %s api error: %s", pkgerrors.ErrBackend, c.Provider, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("%w: %s returned no choices", pkgerrors.ErrBackend, c.Provider)
	}

	choice := parsed.Choices[0]
	stopReason, matchedStop := classifyStop(choice.FinishReason, choice.Message.Content, req.StopSequences)
	return &backend.CompletionResponse{
		Content:          choice.Message.Content,
		StopReason:       stopReason,
		StopSequence:     matchedStop,
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
	}, nil
}

// classifyStop distinguishes a natural end-of-sequence from one of the
// caller's own stop strings: the OpenAI wire format reports both as
// finish_reason "stop", so the content is checked against the configured
// stop set to tell them apart (spec §4.L's stop-reason interpretation).
func classifyStop(finishReason, content string, stopSequences []string) (backend.StopReason, string) {
	switch finishReason {
	case "length":
		return backend.StopLimit, ""
	case "stop":
		for _, s := range stopSequences {
			if s != "" && hasStopSuffix(content, s) {
				return backend.StopSequence, s
			}
		}
		return backend.StopEOS, ""
	default:
		return backend.StopError, ""
	}
}

func hasStopSuffix(content, suffix string) bool {
	if len(suffix) == 0 || len(suffix) > len(content) {
		return false
	}
	return content[len(content)-len(suffix):] == suffix
}
