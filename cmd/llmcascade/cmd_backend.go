package main

import (
	"fmt"
	"net/http"

	"llmcascade/internal/backend"
	"llmcascade/internal/backend/openaicompat"
)

// resolveBackend builds a Backend for name, layering the --api-key flag
// over whatever config.Load already resolved from file/env.
func resolveBackend(name string) (backend.Backend, error) {
	httpClient := &http.Client{Timeout: timeout}

	if name == "llama.cpp" || name == "local" {
		ls := cfg.LocalServer
		baseURL := fmt.Sprintf("http://%s:%d", ls.Host, ls.Port)
		return backend.NewLlamaCpp(baseURL, httpClient), nil
	}

	pc := cfg.RemoteProviders[name]
	key := apiKey
	if key == "" {
		key = pc.APIKey
	}
	if key == "" {
		return nil, fmt.Errorf("no API key configured for provider %q", name)
	}

	switch name {
	case "anthropic":
		return backend.NewAnthropic(key, pc.Model, httpClient), nil
	case "openai", "perplexity", "mistral":
		baseURL := pc.BaseURL
		if baseURL == "" {
			baseURL = defaultBaseURL(name)
		}
		return openaicompat.New(name, baseURL, key, pc.Model, httpClient), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", name)
	}
}

func defaultBaseURL(provider string) string {
	switch provider {
	case "openai":
		return "https://api.openai.com/v1"
	case "perplexity":
		return "https://api.perplexity.ai"
	case "mistral":
		return "https://api.mistral.ai/v1"
	default:
		return ""
	}
}
