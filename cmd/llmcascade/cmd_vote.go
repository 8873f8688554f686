package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"llmcascade/internal/backend"
	"llmcascade/internal/cascade"
	"llmcascade/internal/completion"
	"llmcascade/internal/decision"
	"llmcascade/internal/grammar"
)

var (
	voteBackend     string
	voteBestOfN     int
	voteDynamicTemp bool
	voteMaxTokens   int
)

var voteCmd = &cobra.Command{
	Use:   "vote <prompt>",
	Short: "Run a best-of-N vote over repeated completions of the same prompt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := resolveBackend(voteBackend)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		c := completion.New(b)
		rd := cfg.RequestDefaults
		tokens := voteMaxTokens
		baseReq := backend.CompletionRequest{
			Messages: []backend.RemoteMessage{{Role: "user", Content: args[0]}},
			Config: backend.RequestConfig{
				ModelCtxSize:            4096,
				RequestedResponseTokens: &tokens,
				SafetyTokens:            rd.SafetyTokens,
				RetryAfterFailNTimes:    rd.RetryAfterFailNTimes,
				CachePrompt:             rd.CachePrompt,
			},
		}

		// choiceOf assigns a stable vote index to each distinct response
		// string seen, since the decision engine tallies votes by index
		// rather than by arbitrary comparable value.
		seen := map[string]int{}
		choiceOf := func(text string) int {
			key := strings.TrimSpace(text)
			if idx, ok := seen[key]; ok {
				return idx
			}
			idx := len(seen)
			seen[key] = idx
			return idx
		}

		engine := cascade.New(c, baseReq, estimatePromptTokens(args[0]))
		runner := func(ctx context.Context, temp float64) (interface{}, int, bool, bool, error) {
			req := args[0]
			r, err := engine.OpenRound(req)
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
			return text, choiceOf(text), false, false, nil
		}

		result, err := decision.Run(ctx, decision.Params{
			BestOfN:            voteBestOfN,
			DynamicTemperature: voteDynamicTemp,
			ResultCanBeNone:    false,
			RetryLimit:         voteBestOfN * 2,
		}, runner)
		if err != nil {
			return fmt.Errorf("vote: %w", err)
		}

		fmt.Printf("winner (votes=%d/%d, confidence=%.2f):\n%s\n", result.WinnerVotes, result.TotalVotes, result.Confidence, result.WinnerValue)
		return nil
	},
}

func init() {
	voteCmd.Flags().StringVar(&voteBackend, "backend", "llama.cpp", "Backend name: llama.cpp, openai, anthropic, perplexity, mistral")
	voteCmd.Flags().IntVar(&voteBestOfN, "best-of", 3, "Number of votes to collect (rounded up to odd)")
	voteCmd.Flags().BoolVar(&voteDynamicTemp, "dynamic-temperature", true, "Escalate temperature across attempts toward consensus")
	voteCmd.Flags().IntVar(&voteMaxTokens, "max-tokens", 256, "Requested response tokens per attempt")
}
