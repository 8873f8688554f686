// Package backend defines the common request/response contract shared by
// local and remote inference providers (spec §4.J).
package backend

import (
	"context"

	"golang.org/x/time/rate"

	"llmcascade/internal/grammar"
)

// DefaultProviderRateLimit and DefaultProviderBurst bound request rate
// against a remote provider absent any provider-specific override;
// conservative enough to stay well under every supported provider's
// published per-minute request ceiling.
const (
	DefaultProviderRateLimit = 10 // requests per second
	DefaultProviderBurst     = 10
)

// NewDefaultLimiter builds the rate limiter every remote backend
// constructor installs unless the caller supplies its own.
func NewDefaultLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(DefaultProviderRateLimit), DefaultProviderBurst)
}

// StopReason classifies why a completion stopped generating.
type StopReason int

const (
	StopEOS StopReason = iota
	StopLimit
	StopSequence
	StopError
)

func (r StopReason) String() string {
	switch r {
	case StopEOS:
		return "eos"
	case StopLimit:
		return "stop-limit"
	case StopSequence:
		return "stop-sequence"
	case StopError:
		return "error"
	default:
		return "unknown"
	}
}

// RequestConfig mirrors spec §3's Request-Config data model. Defaults are
// populated from internal/config's RequestDefaultsConfig ambient
// configuration at the call site; this type carries the per-request,
// possibly-mutated values.
type RequestConfig struct {
	ModelCtxSize          int
	InferenceCtxSize      int
	RequestedResponseTokens *int
	ActualRequestTokens     *int
	SafetyTokens          int
	Temperature           float64
	TopP                  *float64
	FrequencyPenalty      *float64
	PresencePenalty       float64
	RetryAfterFailNTimes  int
	IncreaseLimitOnFail   bool
	CachePrompt           bool
}

// Timings mirrors the generation-timing block a completion response
// carries back for observability.
type Timings struct {
	PromptMS     float64
	CompletionMS float64
}

// CompletionResponse mirrors spec §3's Completion-Response.
type CompletionResponse struct {
	Content            string
	Tokens             []int
	StopReason         StopReason
	StopSequence       string // valid when StopReason == StopSequence
	CachedPromptTokens int
	PromptTokens       int
	CompletionTokens   int
	GenerationSettings map[string]interface{}
	Timings            Timings
}

// CompletionRequest is what callers hand a Backend: rendered prompt
// content, the grammar constraining the response (if any), and a compiled
// logit-bias payload in whichever shape the backend expects.
type CompletionRequest struct {
	// RenderedPrompt is either a chat-template string (local) or ignored
	// in favor of Messages (remote) — backends read whichever field
	// applies to their wire format.
	RenderedPrompt string
	Messages       []RemoteMessage

	Grammar   grammar.Primitive
	LocalBias []LocalBiasPair
	RemoteBias map[string]int32

	// StopSequences are additional stop strings layered on top of
	// whatever a request's grammar already constrains; the cascade
	// engine injects/restores round-local entries here (spec §4.M).
	StopSequences []string

	Config RequestConfig
}

// RemoteMessage mirrors prompt.Message without importing the prompt
// package, keeping backend's dependency surface one-directional.
type RemoteMessage struct {
	Role    string
	Content string
}

// LocalBiasPair mirrors logitbias.LocalPair for the same reason.
type LocalBiasPair struct {
	TokenID int
	Bias    float64
}

// Backend is the common contract every provider implements: local
// llama.cpp server, or a remote OpenAI-compatible/Anthropic API.
type Backend interface {
	Name() string
	// SupportsLogitBias reports whether this backend accepts a compiled
	// logit-bias payload at all (Anthropic does not).
	SupportsLogitBias() bool
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
