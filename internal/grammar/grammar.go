// Package grammar implements the closed set of grammar primitives: each
// builds a GBNF grammar string constraining a local model's output, and a
// matching parser that recovers a typed result from the produced text
// (spec §4.H).
package grammar

import (
	"fmt"
	"strconv"
	"strings"

	"llmcascade/internal/pkgerrors"
)

// Primitive is implemented by every grammar builder in the closed set.
type Primitive interface {
	// Grammar returns the GBNF grammar string constraining generation.
	Grammar() string
	// Parse recovers a typed value from model-produced text that matched
	// Grammar.
	Parse(text string) (interface{}, error)
}

// Enumerated is implemented by primitives with a finite result domain
// (Boolean, ExactString), exposing the index of the matched alternative.
type Enumerated interface {
	Primitive
	ResultIndex(text string) (int, error)
}

// Boolean constrains output to the literal tokens "true" or "false".
type Boolean struct{}

func (Boolean) Grammar() string { return `root ::= "true" | "false"` }

func (Boolean) Parse(text string) (interface{}, error) {
	switch strings.TrimSpace(text) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return nil, fmt.Errorf("%w: boolean grammar produced non-boolean text %q", pkgerrors.ErrValidation, text)
	}
}

func (b Boolean) ResultIndex(text string) (int, error) {
	v, err := b.Parse(text)
	if err != nil {
		return 0, err
	}
	if v.(bool) {
		return 0, nil
	}
	return 1, nil
}

// IntegerBounded constrains output to an unsigned integer with at most two
// digits (bound ≤ 99, per spec §4.H).
type IntegerBounded struct {
	Max uint32
}

func (p IntegerBounded) Grammar() string {
	return `root ::= [0-9] [0-9]?`
}

func (p IntegerBounded) Parse(text string) (interface{}, error) {
	if p.Max > 99 {
		panic("grammar: IntegerBounded.Max must be <= 99")
	}
	n, err := strconv.ParseUint(strings.TrimSpace(text), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: integer grammar produced non-integer text %q: %v", pkgerrors.ErrValidation, text, err)
	}
	if uint32(n) > p.Max {
		return nil, fmt.Errorf("%w: integer %d exceeds bound %d", pkgerrors.ErrValidation, n, p.Max)
	}
	return uint32(n), nil
}

// ExactString constrains output to a literal union of caller-supplied
// alternatives.
type ExactString struct {
	Literals []string
}

func (p ExactString) Grammar() string {
	quoted := make([]string, len(p.Literals))
	for i, lit := range p.Literals {
		quoted[i] = strconv.Quote(lit)
	}
	return "root ::= " + strings.Join(quoted, " | ")
}

func (p ExactString) Parse(text string) (interface{}, error) {
	idx, err := p.ResultIndex(text)
	if err != nil {
		return nil, err
	}
	return p.Literals[idx], nil
}

func (p ExactString) ResultIndex(text string) (int, error) {
	trimmed := strings.TrimSpace(text)
	for i, lit := range p.Literals {
		if lit == trimmed {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: text %q does not match any of %v", pkgerrors.ErrValidation, text, p.Literals)
}

// Sentences constrains output to Min..Max sentences.
type Sentences struct {
	Min, Max       int
	Capitalize     bool
	ForbiddenWords []string
}

func (p Sentences) Grammar() string {
	return fmt.Sprintf(`root ::= sentence{%d,%d}
sentence ::= [A-Za-z0-9 ,;:'"()-]+ "."`, p.Min, p.Max)
}

func (p Sentences) Parse(text string) (interface{}, error) {
	trimmed := strings.TrimSpace(text)
	count := strings.Count(trimmed, ".")
	if count < p.Min || count > p.Max {
		return nil, fmt.Errorf("%w: expected %d..%d sentences, got %d", pkgerrors.ErrValidation, p.Min, p.Max, count)
	}
	if p.Capitalize && trimmed != "" && !isUpperASCII(trimmed[0]) {
		return nil, fmt.Errorf("%w: expected sentence to start capitalized", pkgerrors.ErrValidation)
	}
	lower := strings.ToLower(trimmed)
	for _, forbidden := range p.ForbiddenWords {
		if strings.Contains(lower, strings.ToLower(forbidden)) {
			return nil, fmt.Errorf("%w: text contains forbidden word %q", pkgerrors.ErrValidation, forbidden)
		}
	}
	return trimmed, nil
}

func isUpperASCII(b byte) bool { return b >= 'A' && b <= 'Z' }

// Words constrains output to Min..Max words, joined with Concatenator.
type Words struct {
	Min, Max     int
	Concatenator string
}

func (p Words) Grammar() string {
	return fmt.Sprintf(`root ::= word ("%s" word){%d,%d}
word ::= [A-Za-z0-9]+`, p.Concatenator, max(0, p.Min-1), max(0, p.Max-1))
}

func (p Words) Parse(text string) (interface{}, error) {
	trimmed := strings.TrimSpace(text)
	sep := p.Concatenator
	if sep == "" {
		sep = " "
	}
	words := strings.Split(trimmed, sep)
	if len(words) < p.Min || len(words) > p.Max {
		return nil, fmt.Errorf("%w: expected %d..%d words, got %d", pkgerrors.ErrValidation, p.Min, p.Max, len(words))
	}
	return trimmed, nil
}

// Text constrains output by a maximum token count (enforced by the caller
// via the completion engine's budget, not by the grammar itself).
type Text struct {
	MaxTokens int
}

func (Text) Grammar() string { return "" } // unconstrained: no GBNF restriction

func (Text) Parse(text string) (interface{}, error) { return text, nil }

// None is unconstrained generation: the raw string is returned as-is.
type None struct{}

func (None) Grammar() string                        { return "" }
func (None) Parse(text string) (interface{}, error) { return text, nil }

// Custom wraps a caller-supplied grammar string verbatim.
type Custom struct {
	GrammarString string
}

func (c Custom) Grammar() string                        { return c.GrammarString }
func (c Custom) Parse(text string) (interface{}, error) { return text, nil }
