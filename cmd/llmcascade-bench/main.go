// Command llmcascade-bench runs a fixed set of prompts through a
// configured backend's best-of-N vote and reports per-prompt timing and
// vote confidence. A thin driver, not a full reproduction of the
// original benchmark's model-roster/CSV-reporting machinery (out of
// scope — see §1's Non-goals on evaluation harnesses).
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"llmcascade/internal/backend"
	"llmcascade/internal/backend/openaicompat"
	"llmcascade/internal/cascade"
	"llmcascade/internal/completion"
	"llmcascade/internal/config"
	"llmcascade/internal/decision"
	"llmcascade/internal/grammar"
)

func main() {
	backendName := flag.String("backend", "llama.cpp", "Backend name: llama.cpp, openai, anthropic, perplexity, mistral")
	questionsPath := flag.String("questions", "", "Path to a newline-delimited question file (reads stdin if empty)")
	bestOfN := flag.Int("best-of", 3, "Votes per question")
	configPath := flag.String("config", "", "Path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	b, err := buildBackend(cfg, *backendName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build backend: %v\n", err)
		os.Exit(1)
	}

	questions, err := readQuestions(*questionsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read questions: %v\n", err)
		os.Exit(1)
	}

	for _, q := range questions {
		start := time.Now()
		result, err := runVote(b, cfg, q, *bestOfN)
		elapsed := time.Since(start)
		if err != nil {
			fmt.Printf("%-40s  error: %v (%s)\n", truncate(q, 40), err, elapsed)
			continue
		}
		fmt.Printf("%-40s  votes=%d/%d confidence=%.2f  (%s)\n", truncate(q, 40), result.WinnerVotes, result.TotalVotes, result.Confidence, elapsed)
	}
}

func buildBackend(cfg *config.Config, name string) (backend.Backend, error) {
	httpClient := &http.Client{Timeout: cfg.RequestDefaults.CompletionTimeout}
	if name == "llama.cpp" || name == "local" {
		ls := cfg.LocalServer
		return backend.NewLlamaCpp(fmt.Sprintf("http://%s:%d", ls.Host, ls.Port), httpClient), nil
	}
	pc := cfg.RemoteProviders[name]
	if pc.APIKey == "" {
		return nil, fmt.Errorf("no API key configured for provider %q", name)
	}
	if name == "anthropic" {
		return backend.NewAnthropic(pc.APIKey, pc.Model, httpClient), nil
	}
	return openaicompat.New(name, pc.BaseURL, pc.APIKey, pc.Model, httpClient), nil
}

func readQuestions(path string) ([]string, error) {
	var r *bufio.Scanner
	if path == "" {
		r = bufio.NewScanner(os.Stdin)
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = bufio.NewScanner(f)
	}

	var questions []string
	for r.Scan() {
		line := strings.TrimSpace(r.Text())
		if line == "" {
			continue
		}
		questions = append(questions, line)
	}
	return questions, r.Err()
}

func runVote(b backend.Backend, cfg *config.Config, question string, bestOfN int) (*decision.Result, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestDefaults.CompletionTimeout)
	defer cancel()

	c := completion.New(b)
	tokens := 256
	rd := cfg.RequestDefaults
	baseReq := backend.CompletionRequest{
		Messages: []backend.RemoteMessage{{Role: "user", Content: question}},
		Config: backend.RequestConfig{
			ModelCtxSize:            4096,
			RequestedResponseTokens: &tokens,
			SafetyTokens:            rd.SafetyTokens,
			RetryAfterFailNTimes:    rd.RetryAfterFailNTimes,
			CachePrompt:             rd.CachePrompt,
		},
	}

	engine := cascade.New(c, baseReq, len(question)/4)
	seen := map[string]int{}
	runner := func(ctx context.Context, temp float64) (interface{}, int, bool, bool, error) {
		r, err := engine.OpenRound(question)
		if err != nil {
			return nil, 0, false, false, err
		}
		step := &cascade.Step{Kind: cascade.StepInference, Grammar: grammar.Text{}, Temperature: &temp}
		if err := engine.RunStep(ctx, r, step); err != nil {
			r.CloseRound()
			return nil, 0, false, true, nil
		}
		r.CloseRound()
		text, _ := step.PrimitiveValue().(string)
		key := strings.TrimSpace(text)
		idx, ok := seen[key]
		if !ok {
			idx = len(seen)
			seen[key] = idx
		}
		return text, idx, false, false, nil
	}

	return decision.Run(ctx, decision.Params{BestOfN: bestOfN, DynamicTemperature: true, RetryLimit: bestOfN * 2}, runner)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
