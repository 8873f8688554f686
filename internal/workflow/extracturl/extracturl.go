// Package extracturl finds URL-shaped candidate entities in free text and
// validates each against a caller-supplied criterion via a best-of-N vote,
// composing the FauxURL grammar primitive (H) with the decision engine
// (N). Grounded on original_source/src/workflows/nlp/extract/urls.rs,
// simplified to a scan-then-vote shape per SPEC_FULL.md's composition
// (rather than the original's ExactString-primitive elimination cascade,
// which assumes an interactive multi-round reasoning flow this package
// leaves to the caller's own cascade wiring).
package extracturl

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"llmcascade/internal/decision"
	"llmcascade/internal/grammar"
	"llmcascade/internal/pkgerrors"
	"llmcascade/internal/telemetry"
)

var log = telemetry.Get(telemetry.CategoryWorkflow)

// Candidates scans text for URL-shaped substrings targeting host, using
// the FauxURL primitive to validate each match's shape.
func Candidates(text, host string) []string {
	primitive := grammar.FauxURL{Host: host}
	slugRunes := grammar.SlugAlphabet + "-"

	var found []string
	seen := map[string]bool{}
	for _, scheme := range grammar.AllowedSchemes {
		prefix := scheme + "://" + host + "/"
		cursor := 0
		for {
			idx := strings.Index(text[cursor:], prefix)
			if idx < 0 {
				break
			}
			begin := cursor + idx
			end := begin + len(prefix)
			for end < len(text) && strings.ContainsRune(slugRunes, rune(text[end])) {
				end++
			}
			candidate := text[begin:end]
			if _, err := primitive.Parse(candidate); err == nil && !seen[candidate] {
				seen[candidate] = true
				found = append(found, candidate)
			}
			cursor = end
		}
	}
	return found
}

// Validator runs one cascade attempt deciding whether url satisfies
// criteria; kept abstract so this package never imports internal/cascade
// directly, mirroring decision.CascadeRunner's own abstraction boundary.
type Validator func(ctx context.Context, url, criteria string) (satisfied bool, err error)

// Extract returns every URL-shaped candidate in text that a best-of-N
// vote (decision engine, N) confirms satisfies criteria.
func Extract(ctx context.Context, text, host, criteria string, bestOfN int, validate Validator) ([]string, error) {
	candidates := Candidates(text, host)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no URL-shaped candidates found for host %q", pkgerrors.ErrValidation, host)
	}

	// Each candidate's best-of-N validation is independent of every other
	// candidate's, so they run concurrently rather than one-by-one; a
	// single candidate exhausting its retry budget is logged and
	// excluded, never aborts the other candidates' validation.
	results := make([]bool, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	for i, url := range candidates {
		i, url := i, url
		g.Go(func() error {
			runner := func(ctx context.Context, temperature float64) (interface{}, int, bool, bool, error) {
				ok, err := validate(ctx, url, criteria)
				if err != nil {
					// A validation attempt that errored is treated like a
					// failed parse: it consumes the retry budget rather
					// than aborting the whole extraction.
					return nil, 0, false, true, nil
				}
				if ok {
					return true, 0, false, false, nil
				}
				return false, 1, false, false, nil
			}

			res, err := decision.Run(gctx, decision.Params{BestOfN: bestOfN}, runner)
			if err != nil {
				log.Warnw("url validation exhausted retries", "url", url, "error", err)
				return nil
			}
			if satisfied, ok := res.WinnerValue.(bool); ok && satisfied {
				results[i] = true
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: url validation: %v", pkgerrors.ErrValidation, err)
	}

	var accepted []string
	for i, url := range candidates {
		if results[i] {
			accepted = append(accepted, url)
		}
	}
	return accepted, nil
}
