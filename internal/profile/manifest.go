package profile

import (
	"fmt"
	"sort"

	"llmcascade/internal/gguf"
	"llmcascade/internal/pkgerrors"
	"llmcascade/internal/telemetry"
)

var log = telemetry.Get(telemetry.CategoryProfiler)

// CheckpointManifest is one checkpoint's entry in a Model-Manifest: its
// dominant quantization, aggregate byte totals, and (for MoE checkpoints)
// the expert-only breakdown.
type CheckpointManifest struct {
	Name                    string
	DominantQuantTag        string
	TotalTensorBytes        uint64
	TotalBlockBytes         uint64
	ExpertBlockBytes        uint64
	HasExperts              bool
	ExpertDominantQuantTag  string
}

// ModelManifest is the top-level profiling result for a (possibly
// multi-checkpoint) model.
type ModelManifest struct {
	Format          string
	BaseName        string
	Source          string
	Checkpoints     map[string]*CheckpointManifest
	ParamCount      uint64
	BlockCount      uint64
	CtxSize         *uint64
	EmbedDim        *uint64
	HeadCount       *uint64
	KVHeadCount     *uint64
	ExpertCount     *uint64
	TopK            *uint64
	ExpertBlockCount *uint64
}

// BuildManifest reduces the given checkpoints into a Model-Manifest.
// Declared-count mismatches across checkpoints are logged but not fatal:
// the last checkpoint processed (in the given order) wins, matching
// spec §4.C's "last value wins" merge rule.
func BuildManifest(format, baseName, source string, checkpoints []*CheckpointCounts) (*ModelManifest, error) {
	if len(checkpoints) == 0 {
		return nil, fmt.Errorf("%w: manifest requires at least one checkpoint", pkgerrors.ErrProfile)
	}

	m := &ModelManifest{
		Format:      format,
		BaseName:    baseName,
		Source:      source,
		Checkpoints: make(map[string]*CheckpointManifest, len(checkpoints)),
	}

	for _, cc := range checkpoints {
		if err := cc.Validate(); err != nil {
			return nil, err
		}
		cm, paramCount, err := summarizeCheckpoint(cc)
		if err != nil {
			return nil, err
		}
		m.Checkpoints[cc.Name] = cm
		m.ParamCount += paramCount

		mergeDeclaredIntoManifest(m, cc, log)
	}

	return m, nil
}

func mergeDeclaredIntoManifest(m *ModelManifest, cc *CheckpointCounts, logger interface {
	Warnf(string, ...interface{})
}) {
	d := cc.Declared
	if d.BlockCount != nil {
		if m.BlockCount != 0 && m.BlockCount != *d.BlockCount {
			logger.Warnf("checkpoint %q declares block-count %d, overriding previous %d", cc.Name, *d.BlockCount, m.BlockCount)
		}
		m.BlockCount = *d.BlockCount
	}
	assignU64 := func(dst **uint64, v *uint64) {
		if v == nil {
			return
		}
		if *dst != nil && **dst != *v {
			logger.Warnf("checkpoint %q declares a value %d diverging from previous %d", cc.Name, *v, **dst)
		}
		u := *v
		*dst = &u
	}
	assignU64(&m.CtxSize, d.ContextLength)
	assignU64(&m.EmbedDim, d.EmbeddingDim)
	assignU64(&m.HeadCount, d.HeadCount)
	assignU64(&m.KVHeadCount, d.KVHeadCount)
	assignU64(&m.ExpertCount, d.ExpertCount)
	assignU64(&m.TopK, d.ExpertUsedCount)
}

func summarizeCheckpoint(cc *CheckpointCounts) (*CheckpointManifest, uint64, error) {
	cm := &CheckpointManifest{Name: cc.Name}

	typeByteTotals := make(map[uint32]uint64)
	expertTypeByteTotals := make(map[uint32]uint64)
	var totalBits float64
	var totalParams uint64
	var expertBlockCount uint64
	seenExpertBlocks := make(map[int]bool)

	walk := func(ct ClassifiedTensor) {
		cm.TotalTensorBytes += ct.ByteSize
		cm.TotalBlockBytes += ct.ByteSize
		typeByteTotals[ct.ElementType] += ct.ByteSize

		if t, ok := gguf.GGMLTypes[ct.ElementType]; ok {
			totalBits += t.BitsPerWeight() * float64(ct.ElementCount)
		}
		totalParams += ct.ElementCount

		if ct.Kind == KindExpert {
			cm.HasExperts = true
			cm.ExpertBlockBytes += ct.ByteSize
			expertTypeByteTotals[ct.ElementType] += ct.ByteSize
			if !seenExpertBlocks[ct.BlockIndex] {
				seenExpertBlocks[ct.BlockIndex] = true
				expertBlockCount++
			}
		}
	}

	for _, ct := range cc.Global {
		cm.TotalTensorBytes += ct.ByteSize
		typeByteTotals[ct.ElementType] += ct.ByteSize
		if t, ok := gguf.GGMLTypes[ct.ElementType]; ok {
			totalBits += t.BitsPerWeight() * float64(ct.ElementCount)
		}
		totalParams += ct.ElementCount
	}
	for _, tensors := range cc.Blocks {
		for _, ct := range tensors {
			walk(ct)
		}
	}

	dominant, err := dominantQuantTag(typeByteTotals)
	if err != nil {
		return nil, 0, fmt.Errorf("checkpoint %q: %w", cc.Name, err)
	}
	cm.DominantQuantTag = dominant

	if cm.HasExperts {
		expertDominant, err := dominantQuantTag(expertTypeByteTotals)
		if err != nil {
			return nil, 0, fmt.Errorf("checkpoint %q experts: %w", cc.Name, err)
		}
		cm.ExpertDominantQuantTag = expertDominant
	}

	if totalParams > 0 {
		bpw := totalBits / float64(totalParams)
		if declaredType, ok := gguf.GGMLTypes[majorityTypeID(typeByteTotals)]; ok {
			if diff := bpw - declaredType.BitsPerWeight(); diff > 0.01 || diff < -0.01 {
				log.Warnf("checkpoint %q: bits-per-weight %.3f diverges from dominant type %s (%.3f)", cc.Name, bpw, declaredType.Tag, declaredType.BitsPerWeight())
			}
		}
	}

	return cm, totalParams, nil
}

// dominantQuantTag picks the tensor-type ID with the largest aggregate byte
// count (a proxy for "most weights use this type"), tie-breaking on the
// lower numeric type ID, and returns its GGML tag.
func dominantQuantTag(byteTotals map[uint32]uint64) (string, error) {
	id := majorityTypeID(byteTotals)
	t, ok := gguf.GGMLTypes[id]
	if !ok {
		return "", fmt.Errorf("%w: no recognized tensor types", pkgerrors.ErrProfile)
	}
	return t.Tag, nil
}

func majorityTypeID(byteTotals map[uint32]uint64) uint32 {
	ids := make([]uint32, 0, len(byteTotals))
	for id := range byteTotals {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var best uint32
	var bestBytes uint64
	first := true
	for _, id := range ids {
		b := byteTotals[id]
		if first || b > bestBytes {
			best = id
			bestBytes = b
			first = false
		}
	}
	return best
}
