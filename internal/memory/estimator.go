// Package memory implements the closed-form KV-cache and scratch-memory
// estimates used to pick a quantization that fits a device's VRAM budget
// (spec §4.D). All arithmetic is performed in float64 and ceiling-rounded
// to whole bytes; results that overflow a representable byte count surface
// as MemoryEstimateOverflow rather than silently wrapping.
package memory

import (
	"math"

	"llmcascade/internal/pkgerrors"
)

// KVCacheParams are the architecture and request shape inputs to the
// KV-cache size formula.
type KVCacheParams struct {
	EmbedDim         uint64
	HeadCount        uint64
	KVHeadCount      uint64 // 0 means "no grouped-query attention", G=1
	BlockCount       uint64
	CtxSize          uint64
	BatchSize        uint64
	BitsPerKVElement float64
	ShardKV          bool
	ComputeDevices   uint64
	TopK             uint64 // 1 for dense models
}

func (p KVCacheParams) groupFactor() float64 {
	if p.KVHeadCount == 0 || p.HeadCount == 0 {
		return 1
	}
	return float64(p.HeadCount) / float64(p.KVHeadCount)
}

// KVElements computes KV_elements = 2 · (E/G) · L · C · B.
func (p KVCacheParams) KVElements() float64 {
	g := p.groupFactor()
	return 2 * (float64(p.EmbedDim) / g) * float64(p.BlockCount) * float64(p.CtxSize) * float64(p.BatchSize)
}

// KVBytesOneDevice computes KV_bytes_one_device = KV_elements · (bits/8).
func (p KVCacheParams) KVBytesOneDevice() float64 {
	return p.KVElements() * (p.BitsPerKVElement / 8)
}

// KVBytesTotal computes KV_bytes_total, accounting for whether the KV
// cache is sharded across compute devices.
func (p KVCacheParams) KVBytesTotal() (float64, error) {
	one := p.KVBytesOneDevice()
	if p.ShardKV {
		return one, nil
	}
	devices := p.ComputeDevices
	if devices == 0 {
		devices = 1
	}
	return one * float64(devices), nil
}

// ScratchPerDevice computes scratch_per_device per spec §4.D:
// ((C/1024)·2 + 0.75) · head-count · 2^20 · k · max(B,128)/128.
func (p KVCacheParams) ScratchPerDevice() float64 {
	batch := float64(p.BatchSize)
	if batch < 128 {
		batch = 128
	}
	k := p.TopK
	if k == 0 {
		k = 1
	}
	return ((float64(p.CtxSize)/1024)*2 + 0.75) * float64(p.HeadCount) * math.Pow(2, 20) * float64(k) * batch / 128
}

// ContextBytes computes context_bytes = KV_bytes_total + Σ scratch_per_device,
// summed across ComputeDevices (or 1, if unset/sharded across a single host).
func (p KVCacheParams) ContextBytes() (float64, error) {
	kv, err := p.KVBytesTotal()
	if err != nil {
		return 0, err
	}
	devices := p.ComputeDevices
	if devices == 0 {
		devices = 1
	}
	scratch := p.ScratchPerDevice() * float64(devices)
	total := kv + scratch
	if math.IsInf(total, 0) || total > math.MaxInt64 {
		return 0, &pkgerrors.MemoryEstimateOverflow{Value: total}
	}
	return total, nil
}

func ceilUint64(f float64) uint64 {
	return uint64(math.Ceil(f))
}

// DenseLayerAverage computes ⌈(totalBlockBytes + contextBytes) / blockCount⌉
// for a dense (non-MoE) model.
func DenseLayerAverage(totalBlockBytes uint64, ctxBytes float64, blockCount uint64) (uint64, error) {
	if blockCount == 0 {
		panic("memory: block count must be positive")
	}
	avg := (float64(totalBlockBytes) + ctxBytes) / float64(blockCount)
	if math.IsInf(avg, 0) || avg > math.MaxInt64 {
		return 0, &pkgerrors.MemoryEstimateOverflow{Value: avg}
	}
	return ceilUint64(avg), nil
}

// MoELayerAverage splits dense-tensor bytes from expert bytes per
// spec §4.D: dense-block average = ⌈ctx/block⌉ + ⌈dense/block⌉;
// expert-MoE-block average additionally adds ⌈expert_bytes / expert_block_count⌉.
func MoELayerAverage(totalBlockBytes, expertBlockBytes uint64, ctxBytes float64, blockCount, expertBlockCount uint64) (denseAvg, expertAvg uint64, err error) {
	if blockCount == 0 {
		panic("memory: block count must be positive")
	}
	if blockCount < expertBlockCount {
		panic("memory: block count must be >= expert block count")
	}
	if totalBlockBytes < expertBlockBytes {
		panic("memory: total block bytes must be >= expert block bytes")
	}

	denseBytes := totalBlockBytes - expertBlockBytes
	ctxPart := ctxBytes / float64(blockCount)
	densePart := float64(denseBytes) / float64(blockCount)
	dTotal := ctxPart + densePart
	if math.IsInf(dTotal, 0) || dTotal > math.MaxInt64 {
		return 0, 0, &pkgerrors.MemoryEstimateOverflow{Value: dTotal}
	}
	denseAvg = ceilUint64(ctxPart) + ceilUint64(densePart)

	if expertBlockCount == 0 {
		return denseAvg, 0, nil
	}
	expertPart := float64(expertBlockBytes) / float64(expertBlockCount)
	if math.IsInf(expertPart, 0) || expertPart > math.MaxInt64 {
		return 0, 0, &pkgerrors.MemoryEstimateOverflow{Value: expertPart}
	}
	expertAvg = denseAvg + ceilUint64(expertPart)
	return denseAvg, expertAvg, nil
}

// QuantCandidate pairs a quantization tag with its estimated total byte
// footprint.
type QuantCandidate struct {
	Tag          string
	EstimatedBytes uint64
	ExpertBytes    uint64 // 0 for dense candidates
}

// SelectQuantization picks, among candidates, the one with the largest
// estimate that still fits within budgetBytes. Returns false if none fit.
func SelectQuantization(candidates []QuantCandidate, budgetBytes uint64) (QuantCandidate, bool) {
	if len(candidates) == 0 {
		panic("memory: candidate set must be non-empty")
	}
	var best QuantCandidate
	found := false
	for _, c := range candidates {
		if c.EstimatedBytes <= budgetBytes && (!found || c.EstimatedBytes > best.EstimatedBytes) {
			best = c
			found = true
		}
	}
	return best, found
}

// SelectQuantizationMoE additionally requires expert bytes to fit within
// offloadBudgetBytes and the dense-only remainder to fit within
// computeBudgetBytes. Returns false if experts alone exceed the offload
// budget for every candidate, or no candidate satisfies both constraints.
func SelectQuantizationMoE(candidates []QuantCandidate, computeBudgetBytes, offloadBudgetBytes uint64) (QuantCandidate, bool) {
	if len(candidates) == 0 {
		panic("memory: candidate set must be non-empty")
	}
	var best QuantCandidate
	found := false
	for _, c := range candidates {
		if c.ExpertBytes > offloadBudgetBytes {
			continue
		}
		denseRemainder := c.EstimatedBytes - c.ExpertBytes
		if denseRemainder > computeBudgetBytes {
			continue
		}
		if !found || c.EstimatedBytes > best.EstimatedBytes {
			best = c
			found = true
		}
	}
	return best, found
}
