// Package profile aggregates GGUF tensor descriptors into per-checkpoint
// counts and reduces those counts into a model manifest (spec §4.C).
package profile

import (
	"fmt"
	"strconv"
	"strings"

	"llmcascade/internal/gguf"
	"llmcascade/internal/pkgerrors"
)

// TensorKind classifies a tensor descriptor by name shape.
type TensorKind int

const (
	KindGlobal TensorKind = iota
	KindBlock
	KindExpert
)

// ClassifiedTensor pairs a raw descriptor with its derived classification.
type ClassifiedTensor struct {
	gguf.TensorDescriptor
	Kind        TensorKind
	BlockIndex  int // valid when Kind is KindBlock or KindExpert
	ExpertCount uint64
}

const blockPrefix = "blk."
const expertSuffix = "_exps.weight"

// ClassifyTensor derives a tensor's block/expert/global classification from
// its name and shape, and rejects structurally invalid descriptors.
func ClassifyTensor(td gguf.TensorDescriptor) (ClassifiedTensor, error) {
	if len(td.Shape) == 0 {
		return ClassifiedTensor{}, fmt.Errorf("%w: tensor %q has rank 0", pkgerrors.ErrValidation, td.Name)
	}
	if td.ElementCount == 0 {
		return ClassifiedTensor{}, fmt.Errorf("%w: tensor %q has zero element count", pkgerrors.ErrValidation, td.Name)
	}
	if td.ByteSize == 0 {
		return ClassifiedTensor{}, fmt.Errorf("%w: tensor %q has zero byte size", pkgerrors.ErrValidation, td.Name)
	}

	ct := ClassifiedTensor{TensorDescriptor: td, Kind: KindGlobal}

	if strings.HasSuffix(td.Name, expertSuffix) {
		ct.Kind = KindExpert
		if len(td.Shape) != 3 {
			return ClassifiedTensor{}, fmt.Errorf("%w: expert tensor %q must have rank 3, got %d", pkgerrors.ErrValidation, td.Name, len(td.Shape))
		}
		ct.ExpertCount = td.Shape[len(td.Shape)-1]
		if ct.ExpertCount == 0 {
			return ClassifiedTensor{}, fmt.Errorf("%w: expert tensor %q has zero expert count", pkgerrors.ErrValidation, td.Name)
		}
	}

	if strings.HasPrefix(td.Name, blockPrefix) {
		rest := td.Name[len(blockPrefix):]
		dot := strings.IndexByte(rest, '.')
		if dot < 0 {
			return ClassifiedTensor{}, fmt.Errorf("%w: malformed block tensor name %q", pkgerrors.ErrValidation, td.Name)
		}
		idx, err := strconv.Atoi(rest[:dot])
		if err != nil || idx < 0 {
			return ClassifiedTensor{}, fmt.Errorf("%w: malformed block index in %q", pkgerrors.ErrValidation, td.Name)
		}
		ct.BlockIndex = idx
		if ct.Kind != KindExpert {
			ct.Kind = KindBlock
		}
	}

	return ct, nil
}

// DeclaredCounts holds the optional metadata-declared architecture counts
// referenced by the manifest (block-count, context-length, etc.).
type DeclaredCounts struct {
	BlockCount     *uint64
	ContextLength  *uint64
	EmbeddingDim   *uint64
	HeadCount      *uint64
	KVHeadCount    *uint64
	ExpertCount    *uint64
	ExpertUsedCount *uint64
}

// CheckpointCounts is the aggregation keyed by checkpoint name: global
// tensors, per-block tensor lists, the source file locator, the shard map,
// and any metadata-declared counts.
type CheckpointCounts struct {
	Name      string
	Global    []ClassifiedTensor
	Blocks    map[int][]ClassifiedTensor
	Files     map[int]string // shard index -> file locator; index 0 for "single"
	Total     int            // total shard count; 0 means "single" (unsharded)
	Declared  DeclaredCounts
}

// NewCheckpointCounts builds an empty aggregation for the named checkpoint.
func NewCheckpointCounts(name string) *CheckpointCounts {
	return &CheckpointCounts{
		Name:   name,
		Blocks: make(map[int][]ClassifiedTensor),
		Files:  make(map[int]string),
	}
}

// AddShard walks hdr's tensor descriptors and merges them into cc, recording
// the file locator at the given shard. A single-file (unsharded) checkpoint
// passes shard.Single == true; AddShard rejects pushing a second file to an
// already-single checkpoint, and rejects mismatched totals across shards of
// a sharded checkpoint.
func (cc *CheckpointCounts) AddShard(hdr *gguf.Header, fileLocator string, shard ShardPlacement) error {
	if shard.Single {
		if len(cc.Files) > 0 {
			return fmt.Errorf("%w: checkpoint %q already has a file assigned; cannot push a second file to a single checkpoint", pkgerrors.ErrValidation, cc.Name)
		}
		cc.Total = 0
		cc.Files[0] = fileLocator
	} else {
		if cc.Total != 0 && cc.Total != shard.Total {
			return fmt.Errorf("%w: checkpoint %q shard total mismatch: have %d, got %d", pkgerrors.ErrValidation, cc.Name, cc.Total, shard.Total)
		}
		if _, exists := cc.Files[shard.Index]; exists {
			return fmt.Errorf("%w: checkpoint %q already has shard index %d", pkgerrors.ErrValidation, cc.Name, shard.Index)
		}
		cc.Total = shard.Total
		cc.Files[shard.Index] = fileLocator
	}

	for _, td := range hdr.Tensors {
		ct, err := ClassifyTensor(td)
		if err != nil {
			return err
		}
		switch ct.Kind {
		case KindGlobal:
			cc.Global = append(cc.Global, ct)
		default:
			cc.Blocks[ct.BlockIndex] = append(cc.Blocks[ct.BlockIndex], ct)
		}
	}

	cc.mergeDeclared(hdr.Metadata)
	return nil
}

// ShardPlacement describes where one file sits within a checkpoint's shard
// set.
type ShardPlacement struct {
	Single bool
	Index  int
	Total  int
}

func (cc *CheckpointCounts) mergeDeclared(md map[string]gguf.Value) {
	setU64 := func(dst **uint64, v gguf.Value) {
		if n, ok := v.AsInt64(); ok && n >= 0 {
			u := uint64(n)
			*dst = &u
		}
	}
	// "Last value wins": later shards' declared counts overwrite earlier
	// ones rather than being cross-validated; mismatches are a caller
	// logging concern, not a hard failure.
	if v, ok := md["llama.block_count"]; ok {
		setU64(&cc.Declared.BlockCount, v)
	}
	if v, ok := md["llama.context_length"]; ok {
		setU64(&cc.Declared.ContextLength, v)
	}
	if v, ok := md["llama.embedding_length"]; ok {
		setU64(&cc.Declared.EmbeddingDim, v)
	}
	if v, ok := md["llama.attention.head_count"]; ok {
		setU64(&cc.Declared.HeadCount, v)
	}
	if v, ok := md["llama.attention.head_count_kv"]; ok {
		setU64(&cc.Declared.KVHeadCount, v)
	}
	if v, ok := md["llama.expert_count"]; ok {
		setU64(&cc.Declared.ExpertCount, v)
	}
	if v, ok := md["llama.expert_used_count"]; ok {
		setU64(&cc.Declared.ExpertUsedCount, v)
	}
}

// Validate enforces the Checkpoint-Counts invariants: at least one block and
// one global tensor, and (for sharded checkpoints) a shard map covering
// 1..=total without gaps or duplicates.
func (cc *CheckpointCounts) Validate() error {
	if len(cc.Blocks) == 0 {
		return fmt.Errorf("%w: checkpoint %q has no blocks", pkgerrors.ErrValidation, cc.Name)
	}
	if len(cc.Global) == 0 {
		return fmt.Errorf("%w: checkpoint %q has no global tensors", pkgerrors.ErrValidation, cc.Name)
	}
	if cc.Total == 0 {
		return nil
	}
	if len(cc.Files) != cc.Total {
		return fmt.Errorf("%w: checkpoint %q has %d shard parts, want %d", pkgerrors.ErrValidation, cc.Name, len(cc.Files), cc.Total)
	}
	for i := 1; i <= cc.Total; i++ {
		if _, ok := cc.Files[i]; !ok {
			return fmt.Errorf("%w: checkpoint %q missing shard index %d", pkgerrors.ErrValidation, cc.Name, i)
		}
	}
	return nil
}
