// Package main implements the llmcascade CLI — a client-side driver for
// local GGUF model profiling/serving and remote-backend completion and
// voting workflows.
//
// Command implementations are split across cmd_*.go files:
//
//	main.go         - entry point, rootCmd, global flags
//	cmd_serve.go    - serveCmd: supervise a local llama.cpp-server child
//	cmd_profile.go  - profileCmd: summarize a GGUF checkpoint's tensor layout
//	cmd_estimate.go - estimateCmd: KV-cache and scratch-memory sizing against an optional budget
//	cmd_ask.go      - askCmd: a single completion against a configured backend
//	cmd_vote.go     - voteCmd: a best-of-N vote over repeated completions
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"llmcascade/internal/config"
)

var (
	verbose    bool
	configPath string
	apiKey     string
	timeout    time.Duration

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "llmcascade",
	Short: "llmcascade - client-side LLM orchestration over local and remote backends",
	Long: `llmcascade drives a local llama.cpp-server child process or a remote
OpenAI-compatible/Anthropic/Perplexity/Mistral backend through a
constrained-generation cascade and best-of-N voting workflow.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Has no effect; debug logging is enabled by setting LLMCASCADE_DEBUG")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Remote provider API key (overrides config/env)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 180*time.Second, "Operation timeout")

	rootCmd.AddCommand(
		serveCmd,
		profileCmd,
		estimateCmd,
		askCmd,
		voteCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
