// Package tokenizer adapts onto an external tokenizer, providing the
// encode/decode/single-token primitives the logit-bias compiler and
// grammar primitives are built on (spec §4.F).
package tokenizer

import (
	"context"
	"fmt"

	"llmcascade/internal/pkgerrors"
)

// Tokenizer is the capability set every backend exposes uniformly,
// regardless of whether tokenization happens against a local llama.cpp
// server or a remote provider's offline vocabulary.
type Tokenizer interface {
	Encode(ctx context.Context, text string) ([]int, error)
	Decode(ctx context.Context, tokens []int) (string, error)
	// TrySingleToken returns the single token ID text encodes to. When
	// text encodes to several tokens, it returns the one candidate that
	// decodes back to exactly text; otherwise it returns an error.
	TrySingleToken(ctx context.Context, text string) (int, error)
	TrySingleTokenID(ctx context.Context, token int) (string, error)
	WhitespaceTokenID(ctx context.Context) (int, error)
}

// ErrNotSingleToken is wrapped with the offending text/token-count.
type ErrNotSingleToken struct {
	Text       string
	TokenCount int
}

func (e *ErrNotSingleToken) Error() string {
	return fmt.Sprintf("text %q tokenizes to %d tokens, want exactly 1", e.Text, e.TokenCount)
}

func (e *ErrNotSingleToken) Unwrap() error { return pkgerrors.ErrValidation }

// trySingleTokenViaEncode is the shared implementation for backends whose
// Encode is already exact: error unless encode(text) yields exactly one
// token.
func trySingleTokenViaEncode(ctx context.Context, t Tokenizer, text string) (int, error) {
	toks, err := t.Encode(ctx, text)
	if err != nil {
		return 0, err
	}
	if len(toks) != 1 {
		return 0, &ErrNotSingleToken{Text: text, TokenCount: len(toks)}
	}
	return toks[0], nil
}

// roundTripSingleCandidate handles tokenizers (like tiktoken's BPE merges)
// that may emit more than one token for what is conceptually a single
// character: it decodes each candidate token individually and keeps only
// the one whose decoded form equals the probe text exactly, per spec
// §4.F's round-trip requirement.
func roundTripSingleCandidate(ctx context.Context, t Tokenizer, probe string, candidates []int) (int, error) {
	for _, tok := range candidates {
		decoded, err := t.Decode(ctx, []int{tok})
		if err != nil {
			continue
		}
		if decoded == probe {
			return tok, nil
		}
	}
	return 0, &ErrNotSingleToken{Text: probe, TokenCount: len(candidates)}
}
