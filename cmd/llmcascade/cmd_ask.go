package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"llmcascade/internal/backend"
	"llmcascade/internal/completion"
)

var (
	askBackend     string
	askMaxTokens   int
	askTemperature float64
)

var askCmd = &cobra.Command{
	Use:   "ask <prompt>",
	Short: "Send a single completion request to a configured backend",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := resolveBackend(askBackend)
		if err != nil {
			return err
		}

		rd := cfg.RequestDefaults
		tokens := askMaxTokens
		req := backend.CompletionRequest{
			RenderedPrompt: args[0],
			Messages:       []backend.RemoteMessage{{Role: "user", Content: args[0]}},
			Config: backend.RequestConfig{
				ModelCtxSize:            4096,
				RequestedResponseTokens: &tokens,
				SafetyTokens:            rd.SafetyTokens,
				Temperature:             askTemperature,
				PresencePenalty:         rd.PresencePenalty,
				RetryAfterFailNTimes:    rd.RetryAfterFailNTimes,
				IncreaseLimitOnFail:     rd.IncreaseLimitOnFail,
				CachePrompt:             rd.CachePrompt,
			},
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		res, err := completion.New(b).Run(ctx, req, estimatePromptTokens(args[0]), nil)
		if err != nil {
			return fmt.Errorf("completion: %w", err)
		}
		fmt.Println(res.Response.Content)
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askBackend, "backend", "llama.cpp", "Backend name: llama.cpp, openai, anthropic, perplexity, mistral")
	askCmd.Flags().IntVar(&askMaxTokens, "max-tokens", 512, "Requested response tokens")
	askCmd.Flags().Float64Var(&askTemperature, "temperature", 1.0, "Sampling temperature")
}

// estimatePromptTokens is a coarse whitespace-based fallback used where no
// tokenizer round trip is warranted for a one-shot CLI command.
func estimatePromptTokens(text string) int {
	count := 1
	for _, r := range text {
		if r == ' ' || r == '\n' || r == '\t' {
			count++
		}
	}
	return count
}
