package logitbias

import (
	"context"
	"strconv"
	"strings"
	"testing"
)

// fakeTokenizer is a tiny word-level tokenizer sufficient to exercise the
// compiler's merge rules without a real backend.
type fakeTokenizer struct {
	vocab map[string]int
	next  int
}

func newFakeTokenizer() *fakeTokenizer {
	return &fakeTokenizer{vocab: map[string]int{" ": 0}, next: 1}
}

func (f *fakeTokenizer) idFor(piece string) int {
	if id, ok := f.vocab[piece]; ok {
		return id
	}
	id := f.next
	f.next++
	f.vocab[piece] = id
	return id
}

func (f *fakeTokenizer) Encode(_ context.Context, text string) ([]int, error) {
	var out []int
	for _, piece := range strings.Fields(text) {
		out = append(out, f.idFor(piece))
	}
	if len(out) == 0 {
		return []int{}, nil
	}
	return out, nil
}

func (f *fakeTokenizer) Decode(_ context.Context, tokens []int) (string, error) {
	var parts []string
	for _, id := range tokens {
		for piece, pid := range f.vocab {
			if pid == id {
				parts = append(parts, piece)
			}
		}
	}
	return strings.Join(parts, " "), nil
}

func (f *fakeTokenizer) TrySingleToken(ctx context.Context, text string) (int, error) {
	toks, err := f.Encode(ctx, text)
	if err != nil {
		return 0, err
	}
	if len(toks) != 1 {
		return 0, &errNotSingle{text, len(toks)}
	}
	return toks[0], nil
}

type errNotSingle struct {
	text string
	n    int
}

func (e *errNotSingle) Error() string { return "not a single token" }

func (f *fakeTokenizer) TrySingleTokenID(_ context.Context, token int) (string, error) {
	for piece, pid := range f.vocab {
		if pid == token {
			return piece, nil
		}
	}
	return "", &errNotSingle{"", 0}
}

func (f *fakeTokenizer) WhitespaceTokenID(_ context.Context) (int, error) {
	return 0, nil
}

func TestCompilerMergesAllFourMapsLaterOverwrites(t *testing.T) {
	fk := newFakeTokenizer()
	catID := fk.idFor("cat")

	c := New(fk)
	c.SetTokenBias(catID, 10)
	c.SetWordBias("cat", 20) // should overwrite the token-id entry for "cat"
	c.SetCharBias("a", 5)
	c.SetTextBias("dog bird", 3)

	local, err := c.Local(context.Background())
	if err != nil {
		t.Fatalf("Local: %v", err)
	}
	if len(local) != 4 { // cat, a, dog, bird
		t.Errorf("local entries = %d, want 4: %#v", len(local), local)
	}
	var found bool
	for _, p := range local {
		if p.TokenID == catID {
			found = true
			if p.Bias != 20 {
				t.Errorf("bias = %v, want 20 (word overwrites token-id)", p.Bias)
			}
		}
	}
	if !found {
		t.Fatal("expected cat token in local output")
	}
}

func TestCompilerRejectsWordWithWhitespace(t *testing.T) {
	fk := newFakeTokenizer()
	c := New(fk)
	c.SetWordBias("two words", 5)
	if _, err := c.Local(context.Background()); err == nil {
		t.Fatal("expected error for whitespace-containing word key")
	}
}

func TestCompilerRejectsOutOfRangeBias(t *testing.T) {
	fk := newFakeTokenizer()
	c := New(fk)
	c.SetWordBias("dog", 150)
	if _, err := c.Local(context.Background()); err == nil {
		t.Fatal("expected error for out-of-range bias")
	}
}

func TestCompilerTextBiasDropsWhitespaceTokens(t *testing.T) {
	fk := newFakeTokenizer()
	c := New(fk)
	c.SetTextBias("alpha beta", 3)
	local, err := c.Local(context.Background())
	if err != nil {
		t.Fatalf("Local: %v", err)
	}
	if len(local) != 2 {
		t.Fatalf("expected 2 tokens from text bias, got %d", len(local))
	}
}

func TestCompilerRemoteShapeCeilsBias(t *testing.T) {
	fk := newFakeTokenizer()
	c := New(fk)
	c.SetWordBias("dog", 2.1)
	remote, err := c.Remote(context.Background())
	if err != nil {
		t.Fatalf("Remote: %v", err)
	}
	dogID := fk.idFor("dog")
	key := strconv.Itoa(dogID)
	if remote[key] != 3 {
		t.Errorf("remote bias = %d, want 3 (ceil of 2.1)", remote[key])
	}
}

func TestCompilerCacheInvalidatesOnMutation(t *testing.T) {
	fk := newFakeTokenizer()
	c := New(fk)
	c.SetWordBias("dog", 1)
	first, err := c.Local(context.Background())
	if err != nil {
		t.Fatalf("Local: %v", err)
	}
	c.SetWordBias("cat", 2)
	second, err := c.Local(context.Background())
	if err != nil {
		t.Fatalf("Local: %v", err)
	}
	if len(second) <= len(first) {
		t.Fatalf("expected cache to rebuild after mutation: first=%d second=%d", len(first), len(second))
	}
}
