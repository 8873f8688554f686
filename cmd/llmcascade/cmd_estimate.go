package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"llmcascade/internal/memory"
)

var (
	estEmbedDim    uint64
	estHeadCount   uint64
	estKVHeadCount uint64
	estBlockCount  uint64
	estCtxSize     uint64
	estBatchSize   uint64
	estBitsPerKV   float64
	estDevices     uint64
	estShardKV     bool
	estBudgetBytes uint64
)

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Compute the KV-cache and scratch-memory footprint for a context size",
	RunE: func(cmd *cobra.Command, args []string) error {
		p := memory.KVCacheParams{
			EmbedDim:         estEmbedDim,
			HeadCount:        estHeadCount,
			KVHeadCount:      estKVHeadCount,
			BlockCount:       estBlockCount,
			CtxSize:          estCtxSize,
			BatchSize:        estBatchSize,
			BitsPerKVElement: estBitsPerKV,
			ShardKV:          estShardKV,
			ComputeDevices:   estDevices,
			TopK:             1,
		}

		ctxBytes, err := p.ContextBytes()
		if err != nil {
			return fmt.Errorf("estimate context bytes: %w", err)
		}
		fmt.Printf("KV-cache bytes (one device): %.0f\n", p.KVBytesOneDevice())
		fmt.Printf("scratch bytes (per device):  %.0f\n", p.ScratchPerDevice())
		fmt.Printf("total context bytes:         %.0f\n", ctxBytes)

		if estBudgetBytes > 0 {
			if uint64(ctxBytes) <= estBudgetBytes {
				fmt.Printf("fits within budget of %d bytes\n", estBudgetBytes)
			} else {
				fmt.Printf("exceeds budget of %d bytes by %.0f\n", estBudgetBytes, ctxBytes-float64(estBudgetBytes))
			}
		}
		return nil
	},
}

func init() {
	estimateCmd.Flags().Uint64Var(&estEmbedDim, "embed-dim", 0, "Model embedding dimension")
	estimateCmd.Flags().Uint64Var(&estHeadCount, "head-count", 0, "Attention head count")
	estimateCmd.Flags().Uint64Var(&estKVHeadCount, "kv-head-count", 0, "KV head count (0 disables GQA grouping)")
	estimateCmd.Flags().Uint64Var(&estBlockCount, "block-count", 0, "Transformer block count")
	estimateCmd.Flags().Uint64Var(&estCtxSize, "ctx-size", 4096, "Context size in tokens")
	estimateCmd.Flags().Uint64Var(&estBatchSize, "batch-size", 1, "Concurrent batch size")
	estimateCmd.Flags().Float64Var(&estBitsPerKV, "bits-per-kv", 16, "Bits per KV cache element")
	estimateCmd.Flags().Uint64Var(&estDevices, "devices", 1, "Compute device count")
	estimateCmd.Flags().BoolVar(&estShardKV, "shard-kv", false, "Shard the KV cache across compute devices")
	estimateCmd.Flags().Uint64Var(&estBudgetBytes, "budget-bytes", 0, "VRAM budget to check the estimate against (0 skips the check)")
	estimateCmd.MarkFlagRequired("embed-dim")
	estimateCmd.MarkFlagRequired("head-count")
	estimateCmd.MarkFlagRequired("block-count")
}
