package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"llmcascade/internal/pkgerrors"
)

// LlamaCpp talks the native llama.cpp server HTTP API (spec §6's
// POST /completion contract) — the local backend the supervisor (K)
// manages the child process for. Grounded on the teacher's own
// request/response-struct-per-endpoint client texture (see
// internal/backend/anthropic.go, internal/backend/openaicompat).
type LlamaCpp struct {
	BaseURL    string
	HTTPClient *http.Client

	cachedPrompt string
}

// NewLlamaCpp builds a LlamaCpp backend against a running server's base
// URL (e.g. the address the supervisor reports once EnsureReady
// succeeds).
func NewLlamaCpp(baseURL string, httpClient *http.Client) *LlamaCpp {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &LlamaCpp{BaseURL: baseURL, HTTPClient: httpClient}
}

func (l *LlamaCpp) Name() string { return "llama.cpp" }

// SupportsLogitBias is true: the native server accepts a [[id, bias]]
// array directly.
func (l *LlamaCpp) SupportsLogitBias() bool { return true }

// SetCache stores renderedPrompt on the backend and ClearCache clears it.
// Complete does not read the stored prompt: the cache_prompt flag it sends
// comes from the request's Config.CachePrompt. These methods exist on
// LlamaCpp only; no interface declares them and the remote backends have
// no counterpart.
func (l *LlamaCpp) SetCache(renderedPrompt string) { l.cachedPrompt = renderedPrompt }
func (l *LlamaCpp) ClearCache()                    { l.cachedPrompt = "" }

type completionRequestBody struct {
	Prompt           string       `json:"prompt"`
	NPredict         int          `json:"n_predict,omitempty"`
	Temperature      float64      `json:"temperature"`
	TopP             *float64     `json:"top_p,omitempty"`
	FrequencyPenalty *float64     `json:"frequency_penalty,omitempty"`
	PresencePenalty  float64      `json:"presence_penalty"`
	Stop             []string     `json:"stop,omitempty"`
	LogitBias        [][2]float64 `json:"logit_bias,omitempty"`
	Grammar          string       `json:"grammar,omitempty"`
	CachePrompt      bool         `json:"cache_prompt"`
	TimingsPerToken  bool         `json:"timings_per_token"`
	Stream           bool         `json:"stream"`
}

type completionResponseBody struct {
	Content         string `json:"content"`
	Tokens          []int  `json:"tokens"`
	StopType        string `json:"stop_type"`
	StoppingWord    string `json:"stopping_word"`
	TokensPredicted int    `json:"tokens_predicted"`
	TokensEvaluated int    `json:"tokens_evaluated"`
	TokensCached    int    `json:"tokens_cached"`
	Timings         struct {
		PromptMS    float64 `json:"prompt_ms"`
		PredictedMS float64 `json:"predicted_ms"`
	} `json:"timings"`
	GenerationSettings map[string]interface{} `json:"generation_settings"`
	Error              *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (l *LlamaCpp) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	grammarString := ""
	if req.Grammar != nil {
		grammarString = req.Grammar.Grammar()
	}

	bias := make([][2]float64, len(req.LocalBias))
	for i, p := range req.LocalBias {
		bias[i] = [2]float64{float64(p.TokenID), p.Bias}
	}

	nPredict := 0
	if req.Config.ActualRequestTokens != nil {
		nPredict = *req.Config.ActualRequestTokens
	} else if req.Config.RequestedResponseTokens != nil {
		nPredict = *req.Config.RequestedResponseTokens
	}

	body := completionRequestBody{
		Prompt:           req.RenderedPrompt,
		NPredict:         nPredict,
		Temperature:      req.Config.Temperature,
		TopP:             req.Config.TopP,
		FrequencyPenalty: req.Config.FrequencyPenalty,
		PresencePenalty:  req.Config.PresencePenalty,
		Stop:             req.StopSequences,
		LogitBias:        bias,
		Grammar:          grammarString,
		CachePrompt:      req.Config.CachePrompt,
		TimingsPerToken:  false,
		Stream:           false,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal llama.cpp request: %v", pkgerrors.ErrBackend, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, l.BaseURL+"/completion", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: build llama.cpp request: %v", pkgerrors.ErrBackend, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := l.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: llama.cpp request: %v", pkgerrors.ErrBackend, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read llama.cpp response: %v", pkgerrors.ErrBackend, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: llama.cpp returned status %d: %s", pkgerrors.ErrBackend, resp.StatusCode, raw)
	}

	var parsed completionResponseBody
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: parse llama.cpp response: %v", pkgerrors.ErrBackend, err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("%w: llama.cpp error: %s", pkgerrors.ErrBackend, parsed.Error.Message)
	}

	stopReason, matchedStop := llamaCppStopReason(parsed.StopType, parsed.StoppingWord)
	return &CompletionResponse{
		Content:            parsed.Content,
		Tokens:             parsed.Tokens,
		StopReason:         stopReason,
		StopSequence:       matchedStop,
		CachedPromptTokens: parsed.TokensCached,
		PromptTokens:       parsed.TokensEvaluated,
		CompletionTokens:   parsed.TokensPredicted,
		GenerationSettings: parsed.GenerationSettings,
		Timings:            Timings{PromptMS: parsed.Timings.PromptMS, CompletionMS: parsed.Timings.PredictedMS},
	}, nil
}

// llamaCppStopReason interprets the server's stop_type/stopping_word pair.
// "limit" means n_predict was exhausted; a non-empty stopping_word means
// one of the caller's stop strings matched; anything else is a natural
// end-of-sequence.
func llamaCppStopReason(stopType, stoppingWord string) (StopReason, string) {
	switch stopType {
	case "limit":
		return StopLimit, ""
	case "word":
		return StopSequence, stoppingWord
	case "eos":
		return StopEOS, ""
	default:
		if stoppingWord != "" {
			return StopSequence, stoppingWord
		}
		return StopEOS, ""
	}
}
