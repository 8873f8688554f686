package profile

import (
	"testing"

	"llmcascade/internal/gguf"
)

func td(name string, shape []uint64, typeID uint32) gguf.TensorDescriptor {
	count := uint64(1)
	for _, d := range shape {
		count *= d
	}
	size, _ := gguf.TensorByteSize(typeID, count)
	return gguf.TensorDescriptor{Name: name, Shape: shape, ElementCount: count, ByteSize: size, ElementType: typeID}
}

func TestClassifyTensorGlobalBlockExpert(t *testing.T) {
	g, err := ClassifyTensor(td("token_embd.weight", []uint64{4096, 32000}, 0))
	if err != nil || g.Kind != KindGlobal {
		t.Fatalf("expected global tensor, got %+v err=%v", g, err)
	}

	b, err := ClassifyTensor(td("blk.3.attn_q.weight", []uint64{4096, 4096}, 0))
	if err != nil || b.Kind != KindBlock || b.BlockIndex != 3 {
		t.Fatalf("expected block 3, got %+v err=%v", b, err)
	}

	e, err := ClassifyTensor(td("blk.3.ffn_gate_exps.weight", []uint64{4096, 14336, 8}, 0))
	if err != nil || e.Kind != KindExpert || e.ExpertCount != 8 {
		t.Fatalf("expected expert tensor with 8 experts, got %+v err=%v", e, err)
	}
}

func TestClassifyTensorRejectsInvalid(t *testing.T) {
	cases := []gguf.TensorDescriptor{
		{Name: "bad.rank0", Shape: nil, ElementCount: 1, ByteSize: 4},
		{Name: "bad.zerocount", Shape: []uint64{1}, ElementCount: 0, ByteSize: 4},
		{Name: "bad.zerobytes", Shape: []uint64{1}, ElementCount: 1, ByteSize: 0},
	}
	for _, c := range cases {
		if _, err := ClassifyTensor(c); err == nil {
			t.Errorf("expected error for %q", c.Name)
		}
	}
}

func TestCheckpointCountsValidateRequiresBlockAndGlobal(t *testing.T) {
	cc := NewCheckpointCounts("llama-7b")
	if err := cc.Validate(); err == nil {
		t.Fatal("expected error for empty checkpoint")
	}
}

func TestAddShardRejectsSecondFileOnSingle(t *testing.T) {
	cc := NewCheckpointCounts("llama-7b")
	hdr := &gguf.Header{Tensors: []gguf.TensorDescriptor{
		td("token_embd.weight", []uint64{4096, 32000}, 0),
		td("blk.0.attn_q.weight", []uint64{4096, 4096}, 0),
	}}
	if err := cc.AddShard(hdr, "file-a.gguf", ShardPlacement{Single: true}); err != nil {
		t.Fatalf("first AddShard: %v", err)
	}
	if err := cc.AddShard(hdr, "file-b.gguf", ShardPlacement{Single: true}); err == nil {
		t.Fatal("expected error pushing second file to a single checkpoint")
	}
}

func TestBuildManifestDominantQuant(t *testing.T) {
	cc := NewCheckpointCounts("llama-7b")
	hdr := &gguf.Header{
		Tensors: []gguf.TensorDescriptor{
			td("token_embd.weight", []uint64{4096, 32000}, 12), // Q4_K
			td("blk.0.attn_q.weight", []uint64{4096, 4096}, 12),
			td("blk.0.attn_k.weight", []uint64{4096, 4096}, 12),
			td("blk.0.ffn_down.weight", []uint64{4096, 14336}, 14), // Q6_K, smaller total bytes
		},
		Metadata: map[string]gguf.Value{
			"llama.block_count": {Kind: gguf.KindUint32, U: 32},
		},
	}
	if err := cc.AddShard(hdr, "llama-7b.gguf", ShardPlacement{Single: true}); err != nil {
		t.Fatalf("AddShard: %v", err)
	}

	m, err := BuildManifest("gguf", "llama-7b", "local", []*CheckpointCounts{cc})
	if err != nil {
		t.Fatalf("BuildManifest: %v", err)
	}
	cm := m.Checkpoints["llama-7b"]
	if cm == nil {
		t.Fatal("missing checkpoint manifest")
	}
	if cm.DominantQuantTag != "Q4_K" {
		t.Errorf("dominant quant = %s, want Q4_K", cm.DominantQuantTag)
	}
	if m.BlockCount != 32 {
		t.Errorf("block count = %d, want 32", m.BlockCount)
	}
}

func TestManifestCacheRoundTrip(t *testing.T) {
	c, err := NewManifestCache(4)
	if err != nil {
		t.Fatalf("NewManifestCache: %v", err)
	}
	want := &ModelManifest{BaseName: "llama-7b"}
	c.Put("digest-a", want)
	got, ok := c.Get("digest-a")
	if !ok || got != want {
		t.Fatalf("cache round trip failed: got=%v ok=%v", got, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Fatal("expected miss for unknown digest")
	}
}
