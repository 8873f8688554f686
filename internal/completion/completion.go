// Package completion drives a single request through a backend: budget
// checking, logit-bias compilation, retry/backoff across both network
// failures and stop-limit budget expansion, and stop-reason
// interpretation (spec §4.L).
package completion

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"llmcascade/internal/backend"
	"llmcascade/internal/logitbias"
	"llmcascade/internal/pkgerrors"
	"llmcascade/internal/telemetry"
)

var log = telemetry.Get(telemetry.CategoryCompletion)

// Engine drives completion requests against one backend.
type Engine struct {
	Backend backend.Backend
	Sleep   func(d time.Duration) // overridable for tests
}

// New builds a completion Engine for the given backend.
func New(b backend.Backend) *Engine {
	return &Engine{Backend: b, Sleep: time.Sleep}
}

// budgetIncreaseFactor is the context-window expansion multiplier applied
// to requested-response-tokens when a stop-limit is retried.
const budgetIncreaseFactor = 1.33

// computeActualRequestTokens implements step 1: the token budget check.
func computeActualRequestTokens(requested, ctxLimit, promptTokens, safetyTokens int) (int, error) {
	available := ctxLimit - promptTokens - safetyTokens
	if available < 0 {
		available = 0
	}
	actual := requested
	if actual > available {
		actual = available
	}
	if actual <= 0 {
		return 0, fmt.Errorf("%w: no token budget remains (ctx=%d prompt=%d safety=%d requested=%d)",
			pkgerrors.ErrInference, ctxLimit, promptTokens, safetyTokens, requested)
	}
	return actual, nil
}

// Result is what Run returns on success: the raw completion plus, when a
// grammar primitive was supplied, its parsed value. Run recognises no
// null-result stop word: a stop-sequence completion is parsed like any
// other, and PrimitiveValue is nil when the request has no grammar.
type Result struct {
	Response      *backend.CompletionResponse
	PrimitiveValue interface{}
}

// Run executes the retry/backoff loop of spec §4.L step 3 and returns the
// first successful completion, or an aggregated error once the retry
// budget is exhausted.
func (e *Engine) Run(ctx context.Context, req backend.CompletionRequest, promptTokens int, bias *logitbias.Compiler) (*Result, error) {
	requestID := uuid.New().String()

	actual, err := computeActualRequestTokens(
		valueOrZero(req.Config.RequestedResponseTokens),
		req.Config.ModelCtxSize,
		promptTokens,
		req.Config.SafetyTokens,
	)
	if err != nil {
		return nil, err
	}
	req.Config.ActualRequestTokens = &actual

	if bias != nil && e.Backend.SupportsLogitBias() {
		if err := attachBias(ctx, &req, bias); err != nil {
			return nil, err
		}
	}

	var errs []error
	maxAttempts := req.Config.RetryAfterFailNTimes
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	metrics := telemetry.GetMetrics()
	backendName := e.Backend.Name()

	for i := 0; i < maxAttempts; i++ {
		resp, err := e.Backend.Complete(ctx, req)
		if err != nil {
			errs = append(errs, err)
			log.Debugw("completion attempt failed", "request_id", requestID, "attempt", i, "error", err)
			metrics.CompletionAttempts.WithLabelValues(backendName, "error").Inc()
			metrics.CompletionRetries.WithLabelValues(backendName).Inc()
			e.sleepBackoff(ctx, i)
			continue
		}

		switch resp.StopReason {
		case backend.StopEOS:
			value, parseErr := parsePrimitive(req.Grammar, resp.Content)
			if parseErr != nil {
				errs = append(errs, parseErr)
				metrics.CompletionAttempts.WithLabelValues(backendName, "parse-error").Inc()
				metrics.CompletionRetries.WithLabelValues(backendName).Inc()
				continue
			}
			metrics.CompletionAttempts.WithLabelValues(backendName, "eos").Inc()
			return &Result{Response: resp, PrimitiveValue: value}, nil

		case backend.StopSequence:
			value, parseErr := parsePrimitive(req.Grammar, resp.Content)
			if parseErr != nil {
				errs = append(errs, fmt.Errorf("%w: stop-sequence reached without a valid value: %v", pkgerrors.ErrInference, parseErr))
				metrics.CompletionAttempts.WithLabelValues(backendName, "parse-error").Inc()
				metrics.CompletionRetries.WithLabelValues(backendName).Inc()
				continue
			}
			metrics.CompletionAttempts.WithLabelValues(backendName, "stop-sequence").Inc()
			return &Result{Response: resp, PrimitiveValue: value}, nil

		case backend.StopLimit:
			metrics.CompletionAttempts.WithLabelValues(backendName, "stop-limit").Inc()
			if !req.Config.IncreaseLimitOnFail {
				errs = append(errs, fmt.Errorf("%w: stop-limit reached, retry-on-limit disabled", pkgerrors.ErrInference))
				return nil, aggregateErrors(errs)
			}
			prevBudget := actual
			newRequested := int(math.Ceil(float64(*req.Config.RequestedResponseTokens) * budgetIncreaseFactor))
			newActual, budgetErr := computeActualRequestTokens(newRequested, req.Config.ModelCtxSize, promptTokens, req.Config.SafetyTokens)
			if budgetErr != nil || newActual <= prevBudget {
				errs = append(errs, fmt.Errorf("%w: budget expansion did not increase (prev=%d new=%d)", pkgerrors.ErrInference, prevBudget, newActual))
				return nil, aggregateErrors(errs)
			}
			req.Config.RequestedResponseTokens = &newRequested
			req.Config.ActualRequestTokens = &newActual
			actual = newActual
			errs = append(errs, fmt.Errorf("%w: stop-limit, expanding budget to %d and retrying", pkgerrors.ErrInference, newActual))
			metrics.CompletionRetries.WithLabelValues(backendName).Inc()
			continue

		default:
			errs = append(errs, fmt.Errorf("%w: unrecognized stop reason %v", pkgerrors.ErrInference, resp.StopReason))
			metrics.CompletionAttempts.WithLabelValues(backendName, "unrecognized").Inc()
			metrics.CompletionRetries.WithLabelValues(backendName).Inc()
			continue
		}
	}

	log.Warnw("completion retries exhausted", "request_id", requestID, "attempts", maxAttempts, "errors", len(errs))
	return nil, aggregateErrors(errs)
}

func (e *Engine) sleepBackoff(ctx context.Context, attempt int) {
	if ctx.Err() != nil {
		return
	}
	delay := time.Duration(math.Pow(2, float64(attempt))) * time.Second
	e.Sleep(delay)
}

// parsePrimitive returns (nil, nil) when req has no grammar constraint and
// otherwise whatever the primitive's Parse returns; it detects no
// null-result case of its own.
func parsePrimitive(g interface{ Parse(string) (interface{}, error) }, content string) (interface{}, error) {
	if g == nil {
		return nil, nil
	}
	return g.Parse(content)
}

// attachBias compiles both wire shapes onto req; each backend reads
// whichever of LocalBias/RemoteBias matches its own wire format.
func attachBias(ctx context.Context, req *backend.CompletionRequest, c *logitbias.Compiler) error {
	local, err := c.Local(ctx)
	if err != nil {
		return fmt.Errorf("%w: compile local logit bias: %v", pkgerrors.ErrInference, err)
	}
	pairs := make([]backend.LocalBiasPair, len(local))
	for i, p := range local {
		pairs[i] = backend.LocalBiasPair{TokenID: p.TokenID, Bias: p.Bias}
	}
	req.LocalBias = pairs

	remote, err := c.Remote(ctx)
	if err != nil {
		return fmt.Errorf("%w: compile remote logit bias: %v", pkgerrors.ErrInference, err)
	}
	req.RemoteBias = remote
	return nil
}

func valueOrZero(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func aggregateErrors(errs []error) error {
	if len(errs) == 0 {
		return fmt.Errorf("%w: no attempts made", pkgerrors.ErrInference)
	}
	msg := fmt.Sprintf("%d attempt(s) failed:", len(errs))
	for i, e := range errs {
		msg += fmt.Sprintf(" [%d] %v;", i, e)
	}
	return fmt.Errorf("%w: %s", pkgerrors.ErrInference, msg)
}
