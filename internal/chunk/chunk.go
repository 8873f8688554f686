// Package chunk splits long source documents into token-bounded pieces
// before they are pushed into a Prompt (I), using the tokenizer proxy (F)
// for accurate boundaries rather than a word/character heuristic.
// Grounded on original_source/llm_utils/src/chunking/linear_chunker.rs's
// "keep adding splits until in range, split further if too long" strategy.
package chunk

import (
	"context"
	"fmt"
	"strings"

	"llmcascade/internal/pkgerrors"
)

// TokenCounter counts tokens for a candidate chunk string.
type TokenCounter interface {
	Encode(ctx context.Context, text string) ([]int, error)
}

// Config bounds the chunker's output. Separator is the coarsest boundary
// tried first ("\n\n" by default); finerSeparators lists progressively
// finer fallback boundaries for splits too large to fit within MaxTokens
// on their own.
type Config struct {
	MinTokens       int
	MaxTokens       int
	Separator       string
	FinerSeparators []string
}

func (c Config) withDefaults() Config {
	if c.Separator == "" {
		c.Separator = "\n\n"
	}
	if c.FinerSeparators == nil {
		c.FinerSeparators = []string{"\n", ". ", " "}
	}
	return c
}

// Chunker implements the linear chunking strategy: splits accumulate into
// a chunk until it's within [MinTokens, MaxTokens]; a split that alone
// pushes the chunk over MaxTokens is broken down along a finer separator
// and its pieces are fed back into the pool.
type Chunker struct {
	Tokenizer TokenCounter
	Config    Config
}

// New builds a Chunker.
func New(t TokenCounter, cfg Config) *Chunker {
	return &Chunker{Tokenizer: t, Config: cfg.withDefaults()}
}

// Run splits text into token-bounded chunks in document order.
func (c *Chunker) Run(ctx context.Context, text string) ([]string, error) {
	splits := splitOn(text, c.Config.Separator)
	var chunks []string

	for len(splits) > 0 {
		chunk, rest, err := c.buildChunk(ctx, splits)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
		splits = rest
	}
	return chunks, nil
}

func (c *Chunker) buildChunk(ctx context.Context, splits []string) (string, []string, error) {
	var parts []string

	for len(splits) > 0 {
		candidate := strings.Join(append(append([]string(nil), parts...), splits[0]), "")
		count, err := c.tokenCount(ctx, candidate)
		if err != nil {
			return "", nil, err
		}

		if count > c.Config.MaxTokens {
			if len(parts) > 0 {
				// Adding this split is what pushed us over; keep the
				// chunk built so far and leave the split in the pool.
				return strings.Join(parts, ""), splits, nil
			}

			pieces, err := c.splitFurther(splits[0])
			if err != nil {
				return "", nil, err
			}
			splits = append(pieces, splits[1:]...)
			continue
		}

		parts = append(parts, splits[0])
		splits = splits[1:]
		if count >= c.Config.MinTokens {
			return strings.Join(parts, ""), splits, nil
		}
	}

	if len(parts) == 0 {
		return "", nil, fmt.Errorf("%w: ran out of splits without building a chunk", pkgerrors.ErrValidation)
	}
	return strings.Join(parts, ""), splits, nil
}

func (c *Chunker) tokenCount(ctx context.Context, text string) (int, error) {
	toks, err := c.Tokenizer.Encode(ctx, text)
	if err != nil {
		return 0, fmt.Errorf("%w: count tokens: %v", pkgerrors.ErrBackend, err)
	}
	return len(toks), nil
}

// splitFurther breaks a single split too large to fit any chunk into
// smaller pieces along the next finer separator in Config.FinerSeparators.
func (c *Chunker) splitFurther(split string) ([]string, error) {
	for _, sep := range c.Config.FinerSeparators {
		pieces := splitOn(split, sep)
		if len(pieces) > 1 {
			return pieces, nil
		}
	}
	return nil, fmt.Errorf("%w: split of length %d has no finer boundary left to split on", pkgerrors.ErrValidation, len(split))
}

func splitOn(text, sep string) []string {
	var splits []string
	for _, part := range strings.SplitAfter(text, sep) {
		if part == "" {
			continue
		}
		splits = append(splits, part)
	}
	return splits
}
