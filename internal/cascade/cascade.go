// Package cascade implements the round/step state machine that drives a
// multi-round, multi-step completion flow against a shared backing
// request: guidance steps append deterministic text, inference steps call
// the completion engine under round-local stop sequences and an optional
// grammar (spec §4.M).
package cascade

import (
	"context"
	"fmt"
	"sync"

	"llmcascade/internal/backend"
	"llmcascade/internal/completion"
	"llmcascade/internal/grammar"
	"llmcascade/internal/pkgerrors"
	"llmcascade/internal/telemetry"
)

var log = telemetry.Get(telemetry.CategoryCascade)

// State is a round or cascade's lifecycle state.
type State int

const (
	StateOpen State = iota
	StateRunning
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateRunning:
		return "running"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// StepKind distinguishes a deterministic append from a model call.
type StepKind int

const (
	StepGuidance StepKind = iota
	StepInference
)

// StopWords names the per-step stop-sequence pair injected into the
// backend's stop-sequence set while the step runs.
type StopWords struct {
	Done       string
	NullResult string
}

// Step is one unit of work within a round.
type Step struct {
	Kind StepKind

	// Guidance steps:
	GuidanceText string

	// Inference steps:
	Grammar      grammar.Primitive
	Stops        StopWords
	DynamicSuffix string // appended verbatim after the step's content
	// Temperature, when non-nil, overrides the cascade's BaseReq
	// temperature for this step only — the dynamic-temperature escalation
	// schedule (decision.Run) sets this per attempt rather than baking a
	// fixed temperature into the whole cascade.
	Temperature *float64

	result         *backend.CompletionResponse
	primitiveValue interface{}
}

// PrimitiveValue returns the step's parsed grammar result, or nil for a
// guidance step, a step that has not run, or an inference step without a
// grammar. A completion that ends on the step's NullResult stop word is
// parsed like any other stop-sequence completion.
func (s *Step) PrimitiveValue() interface{} { return s.primitiveValue }

// Content returns the step's raw completion text ("" for a guidance step
// or one that has not run), for callers that need the text itself rather
// than a grammar-parsed value (e.g. a None-check by substring).
func (s *Step) Content() string {
	if s.result == nil {
		return ""
	}
	return s.result.Content
}

// Round is a sequence of steps sharing one rolling transcript fragment.
type Round struct {
	state      State
	promptFragment string
	steps      []*Step
	transcript string
}

// Engine drives a cascade: a sequence of rounds against one completion
// engine and backend-facing request template.
type Engine struct {
	Completion *completion.Engine
	BaseReq    backend.CompletionRequest
	PromptTokens int

	mu     sync.Mutex
	state  State
	rounds []*Round
}

// New builds a cascade Engine in StateOpen, sharing baseReq as the
// backing request template every step clones and augments.
func New(c *completion.Engine, baseReq backend.CompletionRequest, promptTokens int) *Engine {
	return &Engine{Completion: c, BaseReq: baseReq, PromptTokens: promptTokens, state: StateOpen}
}

// State reports the cascade's own lifecycle state (distinct from any
// individual round's state).
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// OpenRound starts a new round with the given opening prompt fragment,
// appending it to that round's transcript.
func (e *Engine) OpenRound(promptFragment string) (*Round, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateClosed {
		return nil, fmt.Errorf("%w: cannot open a round on a closed cascade", pkgerrors.ErrValidation)
	}
	e.state = StateRunning

	r := &Round{state: StateOpen, promptFragment: promptFragment, transcript: promptFragment}
	e.rounds = append(e.rounds, r)
	return r, nil
}

// RunStep executes one step within round r: a guidance step appends its
// text directly; an inference step calls the completion engine with the
// round-local stop sequences and grammar installed, then restores
// whatever stop-sequence set applied before the step ran.
func (e *Engine) RunStep(ctx context.Context, r *Round, step *Step) error {
	if r.state == StateClosed {
		return fmt.Errorf("%w: cannot run a step on a closed round", pkgerrors.ErrValidation)
	}
	r.state = StateRunning

	switch step.Kind {
	case StepGuidance:
		r.transcript += step.GuidanceText
		r.steps = append(r.steps, step)
		return nil

	case StepInference:
		req := e.cloneRequest()
		req.RenderedPrompt = r.transcript
		req.Grammar = step.Grammar
		req.StopSequences = injectStops(req.StopSequences, step.Stops)
		if step.Temperature != nil {
			req.Config.Temperature = *step.Temperature
		}

		res, err := e.Completion.Run(ctx, req, e.PromptTokens, nil)
		if err != nil {
			return fmt.Errorf("%w: cascade step failed: %v", pkgerrors.ErrInference, err)
		}

		step.result = res.Response
		step.primitiveValue = res.PrimitiveValue
		r.transcript += res.Response.Content + step.DynamicSuffix
		r.steps = append(r.steps, step)
		return nil

	default:
		return fmt.Errorf("%w: unknown step kind", pkgerrors.ErrValidation)
	}
}

// DropLastStep removes the round's most recent step (to retry or replace
// it) and re-materializes the transcript from the round's opening
// fragment plus the remaining steps' contributions.
func (r *Round) DropLastStep() error {
	if len(r.steps) == 0 {
		return fmt.Errorf("%w: no step to drop", pkgerrors.ErrValidation)
	}
	r.steps = r.steps[:len(r.steps)-1]
	r.rematerialize()
	return nil
}

func (r *Round) rematerialize() {
	transcript := r.promptFragment
	for _, s := range r.steps {
		switch s.Kind {
		case StepGuidance:
			transcript += s.GuidanceText
		case StepInference:
			if s.result != nil {
				transcript += s.result.Content + s.DynamicSuffix
			}
		}
	}
	r.transcript = transcript
}

// CloseRound commits the round's transcript, making it part of the
// cascade's permanent history.
func (r *Round) CloseRound() {
	r.state = StateClosed
}

// Transcript returns the round's current materialized transcript.
func (r *Round) Transcript() string { return r.transcript }

// Steps returns the round's steps in execution order.
func (r *Round) Steps() []*Step { return r.steps }

// Close closes the cascade itself. Open rounds are not implicitly closed;
// callers must close each round before closing the cascade.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range e.rounds {
		if r.state != StateClosed {
			return fmt.Errorf("%w: round still open", pkgerrors.ErrValidation)
		}
	}
	e.state = StateClosed
	return nil
}

// PrimitiveValue returns the entire cascade's primitive result: the last
// round's last step's parsed value, or nil if no inference step has run.
func (e *Engine) PrimitiveValue() interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.rounds) == 0 {
		return nil
	}
	last := e.rounds[len(e.rounds)-1]
	if len(last.steps) == 0 {
		return nil
	}
	return last.steps[len(last.steps)-1].primitiveValue
}

// cloneRequest returns a structural (non-shared) copy of BaseReq so
// concurrent rounds never alias each other's slices.
func (e *Engine) cloneRequest() backend.CompletionRequest {
	req := e.BaseReq
	req.Messages = append([]backend.RemoteMessage(nil), e.BaseReq.Messages...)
	req.StopSequences = append([]string(nil), e.BaseReq.StopSequences...)
	req.LocalBias = append([]backend.LocalBiasPair(nil), e.BaseReq.LocalBias...)
	if e.BaseReq.RemoteBias != nil {
		req.RemoteBias = make(map[string]int32, len(e.BaseReq.RemoteBias))
		for k, v := range e.BaseReq.RemoteBias {
			req.RemoteBias[k] = v
		}
	}
	return req
}

func injectStops(existing []string, stops StopWords) []string {
	merged := append([]string(nil), existing...)
	if stops.Done != "" {
		merged = append(merged, stops.Done)
	}
	if stops.NullResult != "" {
		merged = append(merged, stops.NullResult)
	}
	return merged
}
