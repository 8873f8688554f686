// Package logitbias normalizes user-supplied bias maps (by token ID,
// character, word, or text) into a validated token-id → bias table, then
// emits backend-specific payload shapes (spec §4.G).
package logitbias

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"llmcascade/internal/pkgerrors"
	"llmcascade/internal/tokenizer"
)

const (
	minBias = -100.0
	maxBias = 100.0
)

// LocalPair is one entry of the local (array-of-pairs) output shape.
type LocalPair struct {
	TokenID int
	Bias    float64
}

// Compiler accumulates bias entries across four input maps and compiles
// them into the two cached output shapes.
type Compiler struct {
	tok tokenizer.Tokenizer

	mu        sync.Mutex
	tokenBias map[int]float64
	charBias  map[string]float64
	wordBias  map[string]float64
	textBias  map[string]float64

	builtLocal  []LocalPair
	builtRemote map[string]int32
	dirty       bool
}

// New builds an empty compiler backed by tok for resolving char/word/text
// keys to token IDs.
func New(tok tokenizer.Tokenizer) *Compiler {
	return &Compiler{
		tok:       tok,
		tokenBias: make(map[int]float64),
		charBias:  make(map[string]float64),
		wordBias:  make(map[string]float64),
		textBias:  make(map[string]float64),
		dirty:     true,
	}
}

// SetTokenBias accumulates a bias keyed by raw token ID.
func (c *Compiler) SetTokenBias(tokenID int, bias float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokenBias[tokenID] = bias
	c.dirty = true
}

// SetCharBias accumulates a bias keyed by a single character.
func (c *Compiler) SetCharBias(ch string, bias float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.charBias[ch] = bias
	c.dirty = true
}

// SetWordBias accumulates a bias keyed by a whole word.
func (c *Compiler) SetWordBias(word string, bias float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wordBias[word] = bias
	c.dirty = true
}

// SetTextBias accumulates a bias keyed by arbitrary text, tokenized and
// applied to every resulting (non-whitespace) token.
func (c *Compiler) SetTextBias(text string, bias float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.textBias[text] = bias
	c.dirty = true
}

// build runs the five-step compile algorithm and caches both output
// shapes. Local and Remote return the cached result until a mutator runs.
func (c *Compiler) build(ctx context.Context) error {
	merged := make(map[int]float64)

	// Step 1: token-id keys must resolve to a valid single token.
	for tokenID, bias := range c.tokenBias {
		if _, err := c.tok.TrySingleTokenID(ctx, tokenID); err != nil {
			return fmt.Errorf("%w: token id %d does not resolve: %v", pkgerrors.ErrValidation, tokenID, err)
		}
		merged[tokenID] = bias
	}

	// Step 2: char keys must encode to exactly one token.
	for ch, bias := range c.charBias {
		id, err := c.tok.TrySingleToken(ctx, ch)
		if err != nil {
			return fmt.Errorf("%w: char %q does not map to a single token: %v", pkgerrors.ErrValidation, ch, err)
		}
		merged[id] = bias
	}

	whitespaceID, err := c.tok.WhitespaceTokenID(ctx)
	if err != nil {
		return fmt.Errorf("%w: resolve whitespace token: %v", pkgerrors.ErrValidation, err)
	}

	// Step 3: word keys: trimmed, non-empty, no embedded whitespace.
	for word, bias := range c.wordBias {
		trimmed := strings.TrimSpace(word)
		if trimmed == "" {
			return fmt.Errorf("%w: word bias key is empty after trimming", pkgerrors.ErrValidation)
		}
		if strings.ContainsAny(trimmed, " \t\n\r") {
			return fmt.Errorf("%w: word bias key %q contains whitespace", pkgerrors.ErrValidation, word)
		}
		toks, err := c.tok.Encode(ctx, trimmed)
		if err != nil {
			return fmt.Errorf("%w: encode word %q: %v", pkgerrors.ErrValidation, trimmed, err)
		}
		for _, id := range toks {
			if id == whitespaceID {
				return fmt.Errorf("%w: word %q tokenized to a whitespace token", pkgerrors.ErrValidation, word)
			}
			merged[id] = bias
		}
	}

	// Step 4: text keys: tokenize, drop whitespace tokens, keep the rest.
	for text, bias := range c.textBias {
		toks, err := c.tok.Encode(ctx, text)
		if err != nil {
			return fmt.Errorf("%w: encode text %q: %v", pkgerrors.ErrValidation, text, err)
		}
		for _, id := range toks {
			if id == whitespaceID {
				continue
			}
			merged[id] = bias
		}
	}

	// Step 5: validate the merged range.
	for id, bias := range merged {
		if bias < minBias || bias > maxBias {
			return fmt.Errorf("%w: bias %v for token %d outside [%g, %g]", pkgerrors.ErrValidation, bias, id, minBias, maxBias)
		}
	}

	local := make([]LocalPair, 0, len(merged))
	remote := make(map[string]int32, len(merged))
	for id, bias := range merged {
		local = append(local, LocalPair{TokenID: id, Bias: bias})
		remote[strconv.Itoa(id)] = int32(math.Ceil(bias))
	}
	sort.Slice(local, func(i, j int) bool { return local[i].TokenID < local[j].TokenID })

	c.builtLocal = local
	c.builtRemote = remote
	c.dirty = false
	return nil
}

// Local returns the local backend shape: an array of (token-id, bias) pairs.
func (c *Compiler) Local(ctx context.Context) ([]LocalPair, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dirty {
		if err := c.build(ctx); err != nil {
			return nil, err
		}
	}
	return c.builtLocal, nil
}

// Remote returns the remote backend shape: token-id (as string) to
// ceiling-rounded int32 bias.
func (c *Compiler) Remote(ctx context.Context) (map[string]int32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dirty {
		if err := c.build(ctx); err != nil {
			return nil, err
		}
	}
	return c.builtRemote, nil
}

// isSingleRune reports whether s is exactly one Unicode code point.
// SetCharBias does not call it; char keys are checked in build through
// the tokenizer's TrySingleToken.
func isSingleRune(s string) bool {
	_, size := utf8.DecodeRuneInString(s)
	return size == len(s) && size > 0
}
