package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"llmcascade/internal/gguf"
	"llmcascade/internal/profile"
)

var profileCmd = &cobra.Command{
	Use:   "profile <checkpoint.gguf> [shard2.gguf ...]",
	Short: "Summarize a GGUF checkpoint's tensor layout into a model manifest",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cc := profile.NewCheckpointCounts(checkpointNameFromPath(args[0]))

		for i, path := range args {
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open %q: %w", path, err)
			}
			hdr, err := gguf.ReadHeaderFrom(f)
			f.Close()
			if err != nil {
				return fmt.Errorf("read header %q: %w", path, err)
			}

			placement := profile.ShardPlacement{Single: len(args) == 1, Index: i + 1, Total: len(args)}
			if err := cc.AddShard(hdr, path, placement); err != nil {
				return fmt.Errorf("add shard %q: %w", path, err)
			}
		}

		manifest, err := profile.BuildManifest("gguf", cc.Name, args[0], []*profile.CheckpointCounts{cc})
		if err != nil {
			return fmt.Errorf("build manifest: %w", err)
		}

		fmt.Printf("model: %s\n", manifest.BaseName)
		fmt.Printf("params: %d\n", manifest.ParamCount)
		fmt.Printf("blocks: %d\n", manifest.BlockCount)
		if manifest.CtxSize != nil {
			fmt.Printf("context length: %d\n", *manifest.CtxSize)
		}
		for name, ckpt := range manifest.Checkpoints {
			fmt.Printf("checkpoint %q: dominant quant %s, tensor bytes %d\n", name, ckpt.DominantQuantTag, ckpt.TotalTensorBytes)
			if ckpt.HasExperts {
				fmt.Printf("  experts: dominant quant %s, expert bytes %d\n", ckpt.ExpertDominantQuantTag, ckpt.ExpertBlockBytes)
			}
		}
		return nil
	},
}

func checkpointNameFromPath(path string) string {
	base := path
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			base = path[i+1:]
			break
		}
	}
	return base
}
