package backend

import (
	"net/http"

	"llmcascade/internal/backend/openaicompat"
)

// NewOpenAI builds the OpenAI backend, grounded on the teacher's
// one-struct-per-provider client texture.
func NewOpenAI(apiKey, model string, httpClient *http.Client) Backend {
	return openaicompat.New("openai", "https://api.openai.com/v1", apiKey, model, httpClient)
}

// NewPerplexity builds the Perplexity backend. Perplexity's chat-completions
// wire format is OpenAI-compatible, so it shares the openaicompat base.
func NewPerplexity(apiKey, model string, httpClient *http.Client) Backend {
	return openaicompat.New("perplexity", "https://api.perplexity.ai", apiKey, model, httpClient)
}

// NewMistral builds the Mistral backend, also OpenAI-wire-compatible.
func NewMistral(apiKey, model string, httpClient *http.Client) Backend {
	return openaicompat.New("mistral", "https://api.mistral.ai/v1", apiKey, model, httpClient)
}
