package tokenizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"llmcascade/internal/pkgerrors"
)

// Remote proxies tokenization onto a local llama.cpp server's /tokenize and
// /detokenize endpoints.
type Remote struct {
	baseURL    string
	httpClient *http.Client

	mu                sync.Mutex
	whitespaceTokenID *int
}

// NewRemote builds a Remote proxy against baseURL (e.g. "http://127.0.0.1:8080").
func NewRemote(baseURL string, httpClient *http.Client) *Remote {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Remote{baseURL: baseURL, httpClient: httpClient}
}

type tokenizeRequest struct {
	Content string `json:"content"`
}

type tokenizeResponse struct {
	Tokens []int `json:"tokens"`
}

type detokenizeRequest struct {
	Tokens []int `json:"tokens"`
}

type detokenizeResponse struct {
	Content string `json:"content"`
}

func (r *Remote) Encode(ctx context.Context, text string) ([]int, error) {
	var resp tokenizeResponse
	if err := r.post(ctx, "/tokenize", tokenizeRequest{Content: text}, &resp); err != nil {
		return nil, err
	}
	return resp.Tokens, nil
}

func (r *Remote) Decode(ctx context.Context, tokens []int) (string, error) {
	var resp detokenizeResponse
	if err := r.post(ctx, "/detokenize", detokenizeRequest{Tokens: tokens}, &resp); err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (r *Remote) TrySingleToken(ctx context.Context, text string) (int, error) {
	toks, err := r.Encode(ctx, text)
	if err != nil {
		return 0, err
	}
	if len(toks) == 1 {
		return toks[0], nil
	}
	// The server's BPE tokenizer may split a single character into more
	// than one token; narrow to the candidate that round-trips exactly.
	return roundTripSingleCandidate(ctx, r, text, toks)
}

func (r *Remote) TrySingleTokenID(ctx context.Context, token int) (string, error) {
	return r.Decode(ctx, []int{token})
}

func (r *Remote) WhitespaceTokenID(ctx context.Context) (int, error) {
	r.mu.Lock()
	cached := r.whitespaceTokenID
	r.mu.Unlock()
	if cached != nil {
		return *cached, nil
	}

	id, err := r.TrySingleToken(ctx, " ")
	if err != nil {
		return 0, fmt.Errorf("%w: resolve whitespace token: %v", pkgerrors.ErrBackend, err)
	}
	r.mu.Lock()
	r.whitespaceTokenID = &id
	r.mu.Unlock()
	return id, nil
}

func (r *Remote) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: marshal request: %v", pkgerrors.ErrBackend, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", pkgerrors.ErrBackend, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", pkgerrors.ErrBackend, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: %s returned status %d: %s", pkgerrors.ErrBackend, path, resp.StatusCode, b)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", pkgerrors.ErrBackend, path, err)
	}
	return nil
}
