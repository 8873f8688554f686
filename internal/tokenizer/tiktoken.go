package tokenizer

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"

	"llmcascade/internal/pkgerrors"
)

func init() {
	// Remote providers don't expose a tokenization endpoint; tiktoken-go's
	// default loader fetches BPE ranks over HTTP on first use, which would
	// make every cold-started process's first tokenizer call a network
	// call. The offline loader embeds the rank files instead.
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// TiktokenProxy backs remote providers (Anthropic, Perplexity, Mistral)
// that don't expose their own tokenization endpoint. It is necessarily an
// approximation: these providers don't use tiktoken's vocabulary, but a
// consistent, offline, fast token-count estimate is strictly better for
// budget checks than no estimate at all.
type TiktokenProxy struct {
	mu  sync.Mutex
	enc *tiktoken.Tiktoken

	whitespaceTokenID *int
}

// NewTiktokenProxy builds a proxy using the named encoding (e.g.
// "cl100k_base").
func NewTiktokenProxy(encodingName string) (*TiktokenProxy, error) {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("%w: load tiktoken encoding %q: %v", pkgerrors.ErrValidation, encodingName, err)
	}
	return &TiktokenProxy{enc: enc}, nil
}

func (t *TiktokenProxy) Encode(_ context.Context, text string) ([]int, error) {
	return t.enc.Encode(text, nil, nil), nil
}

func (t *TiktokenProxy) Decode(_ context.Context, tokens []int) (string, error) {
	return t.enc.Decode(tokens), nil
}

func (t *TiktokenProxy) TrySingleToken(ctx context.Context, text string) (int, error) {
	toks, err := t.Encode(ctx, text)
	if err != nil {
		return 0, err
	}
	if len(toks) == 1 {
		return toks[0], nil
	}
	return roundTripSingleCandidate(ctx, t, text, toks)
}

func (t *TiktokenProxy) TrySingleTokenID(ctx context.Context, token int) (string, error) {
	return t.Decode(ctx, []int{token})
}

func (t *TiktokenProxy) WhitespaceTokenID(ctx context.Context) (int, error) {
	t.mu.Lock()
	cached := t.whitespaceTokenID
	t.mu.Unlock()
	if cached != nil {
		return *cached, nil
	}
	id, err := t.TrySingleToken(ctx, " ")
	if err != nil {
		return 0, fmt.Errorf("%w: resolve whitespace token: %v", pkgerrors.ErrValidation, err)
	}
	t.mu.Lock()
	t.whitespaceTokenID = &id
	t.mu.Unlock()
	return id, nil
}
