// Package decision implements the best-of-N voting driver over a cascade:
// repeated cascade attempts accumulate votes by choice index (or a
// shared None bucket) until one choice reaches quorum, with optional
// dynamic-temperature scheduling across attempts (spec §4.N).
package decision

import (
	"context"
	"fmt"

	"llmcascade/internal/pkgerrors"
	"llmcascade/internal/telemetry"
)

var log = telemetry.Get(telemetry.CategoryDecision)

// Dynamic-temperature bounds, named exactly as spec §4.N's algorithm.
const (
	TMin = 0.11
	TMax = 1.89
)

// Params configures one decision run.
type Params struct {
	BestOfN            int
	DynamicTemperature bool
	ResultCanBeNone    bool
	RetryLimit         int
}

// ForceOdd rounds n up to the nearest odd value ≥ 1: odd inputs pass
// through unchanged, even inputs (and non-positive inputs) round up.
func ForceOdd(n int) int {
	if n < 1 {
		return 1
	}
	if n%2 == 0 {
		return n + 1
	}
	return n
}

// Quorum is the majority vote threshold for a given (already odd)
// best_of_n.
func Quorum(bestOfN int) int {
	return (bestOfN + bestOfN%2) / 2
}

// AttemptOutcome records one cascade attempt's result for the trace.
type AttemptOutcome struct {
	Temperature    float64
	ParseFailed    bool
	IsNone         bool
	ChoiceIndex    int
	PrimitiveValue interface{}
}

// Result mirrors spec §3's Decision-Result.
type Result struct {
	Votes        map[int]int
	TotalVotes   int
	WinnerVotes  int
	WinnerIndex  *int
	WinnerValue  interface{}
	WinnerIsNone bool
	Confidence   float64
	Attempts     []AttemptOutcome
}

// CascadeRunner runs one cascade attempt at the given temperature and
// returns the resulting primitive value (nil + parseFailed=true when the
// cascade failed to parse a primitive), and the value's choice index when
// it is from an Enumerated primitive's finite domain.
type CascadeRunner func(ctx context.Context, temperature float64) (value interface{}, choiceIndex int, isNone bool, parseFailed bool, err error)

// Run executes the best-of-N voting loop exactly per spec §4.N.
func Run(ctx context.Context, p Params, run CascadeRunner) (*Result, error) {
	bestOfN := ForceOdd(p.BestOfN)
	quorum := Quorum(bestOfN)

	votes := map[int]int{}
	noneCount := 0
	attempts := 0
	temperature := TMin

	var trace []AttemptOutcome

	retryLimit := p.RetryLimit
	if retryLimit <= 0 {
		retryLimit = bestOfN
	}

	// iterations bounds total loop passes independently of attempts
	// (which, per spec §4.N, only advances on a failed parse): a run
	// where every attempt parses but no choice ever reaches quorum
	// would otherwise never terminate.
	maxIterations := (bestOfN + retryLimit) * 4
	iterations := 0

	for attempts < retryLimit && iterations < maxIterations {
		iterations++
		value, choiceIndex, isNone, parseFailed, err := run(ctx, currentTemperature(p.DynamicTemperature, temperature))
		if err != nil {
			return nil, fmt.Errorf("%w: cascade attempt failed: %v", pkgerrors.ErrDecision, err)
		}

		if parseFailed {
			attempts++
			temperature += TMin
			trace = append(trace, AttemptOutcome{Temperature: temperature, ParseFailed: true})
			continue
		}

		// A None result is only a legitimate vote when the caller
		// permits it; otherwise it is treated the same as a failed
		// parse (spec §4.N's result_can_be_none parameter).
		if isNone && !p.ResultCanBeNone {
			attempts++
			temperature += TMin
			trace = append(trace, AttemptOutcome{Temperature: temperature, ParseFailed: true, IsNone: true})
			continue
		}

		outcome := AttemptOutcome{Temperature: temperature, ChoiceIndex: choiceIndex, IsNone: isNone, PrimitiveValue: value}
		trace = append(trace, outcome)

		if isNone {
			noneCount++
		} else {
			votes[choiceIndex]++
		}

		winnerVotes, winnerIndex := maxVotes(votes)
		totalVotes := sumVotes(votes) + noneCount

		if winnerVotes >= quorum {
			idx := winnerIndex
			return &Result{
				Votes: votes, TotalVotes: totalVotes, WinnerVotes: winnerVotes,
				WinnerIndex: &idx, WinnerValue: value, Confidence: float64(winnerVotes) / float64(totalVotes),
				Attempts: trace,
			}, nil
		}
		if noneCount >= quorum {
			return &Result{
				Votes: votes, TotalVotes: totalVotes, WinnerVotes: noneCount,
				WinnerIsNone: true, Confidence: float64(noneCount) / float64(totalVotes),
				Attempts: trace,
			}, nil
		}

		if p.DynamicTemperature {
			remaining := quorum - winnerVotes
			if remaining == 1 {
				temperature = TMax
			} else {
				averageRemaining := float64(quorum+remaining) / 2
				temperature = temperature + (TMax-temperature)/averageRemaining
			}
		}

		// attempts only advances on a failed parse (spec §4.N): a
		// successful vote that hasn't yet reached quorum loops again
		// at no cost to the retry budget.
	}

	log.Warnw("decision retries exhausted before quorum", "attempts", attempts, "votes", votes)
	return nil, &pkgerrors.RetriesExhausted{Attempts: attempts, Votes: votes}
}

func currentTemperature(dynamic bool, t float64) float64 {
	if !dynamic {
		return 0
	}
	return t
}

func maxVotes(votes map[int]int) (count int, index int) {
	first := true
	for idx, c := range votes {
		if first || c > count || (c == count && idx < index) {
			count, index = c, idx
			first = false
		}
	}
	return count, index
}

func sumVotes(votes map[int]int) int {
	total := 0
	for _, c := range votes {
		total += c
	}
	return total
}
