package memory

import "testing"

func TestKVElementsAppliesGroupFactor(t *testing.T) {
	p := KVCacheParams{EmbedDim: 4096, HeadCount: 32, KVHeadCount: 8, BlockCount: 32, CtxSize: 4096, BatchSize: 1}
	got := p.KVElements()
	want := 2 * (4096.0 / 4.0) * 32 * 4096 * 1
	if got != want {
		t.Errorf("KVElements = %v, want %v", got, want)
	}
}

func TestKVElementsDefaultGroupFactorOne(t *testing.T) {
	p := KVCacheParams{EmbedDim: 4096, BlockCount: 32, CtxSize: 4096, BatchSize: 1}
	got := p.KVElements()
	want := 2 * 4096.0 * 32 * 4096 * 1
	if got != want {
		t.Errorf("KVElements = %v, want %v", got, want)
	}
}

func TestKVBytesTotalShardedVsReplicated(t *testing.T) {
	p := KVCacheParams{EmbedDim: 128, BlockCount: 1, CtxSize: 1, BatchSize: 1, BitsPerKVElement: 16, ComputeDevices: 4}
	sharded, err := (KVCacheParams{EmbedDim: p.EmbedDim, BlockCount: p.BlockCount, CtxSize: p.CtxSize, BatchSize: p.BatchSize, BitsPerKVElement: p.BitsPerKVElement, ShardKV: true, ComputeDevices: 4}).KVBytesTotal()
	if err != nil {
		t.Fatal(err)
	}
	replicated, err := p.KVBytesTotal()
	if err != nil {
		t.Fatal(err)
	}
	if replicated != sharded*4 {
		t.Errorf("replicated = %v, want %v (4x sharded)", replicated, sharded*4)
	}
}

func TestDenseLayerAverage(t *testing.T) {
	avg, err := DenseLayerAverage(3200, 800, 4)
	if err != nil {
		t.Fatal(err)
	}
	if avg != 1000 {
		t.Errorf("avg = %d, want 1000", avg)
	}
}

func TestDenseLayerAveragePanicsOnZeroBlocks(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for zero block count")
		}
	}()
	DenseLayerAverage(100, 10, 0)
}

func TestMoELayerAverage(t *testing.T) {
	// total=1000, expert=400 -> dense=600 over 4 blocks = 150/block;
	// ctx=400 over 4 blocks = 100/block; dense avg = 250.
	// expert avg adds expert_bytes/expert_block_count = 400/2 = 200 -> 450.
	denseAvg, expertAvg, err := MoELayerAverage(1000, 400, 400, 4, 2)
	if err != nil {
		t.Fatal(err)
	}
	if denseAvg != 250 {
		t.Errorf("denseAvg = %d, want 250", denseAvg)
	}
	if expertAvg != 450 {
		t.Errorf("expertAvg = %d, want 450", expertAvg)
	}
}

func TestMoELayerAveragePanicsOnBadOrdering(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for block_count < expert_block_count")
		}
	}()
	MoELayerAverage(1000, 400, 400, 1, 2)
}

func TestSelectQuantizationPicksLargestFitting(t *testing.T) {
	candidates := []QuantCandidate{
		{Tag: "Q2_K", EstimatedBytes: 100},
		{Tag: "Q4_K", EstimatedBytes: 200},
		{Tag: "Q8_0", EstimatedBytes: 400},
	}
	got, ok := SelectQuantization(candidates, 250)
	if !ok || got.Tag != "Q4_K" {
		t.Fatalf("got %+v ok=%v, want Q4_K", got, ok)
	}
}

func TestSelectQuantizationNoneFit(t *testing.T) {
	candidates := []QuantCandidate{{Tag: "Q8_0", EstimatedBytes: 1000}}
	_, ok := SelectQuantization(candidates, 10)
	if ok {
		t.Fatal("expected no candidate to fit")
	}
}

func TestSelectQuantizationMoERespectsBothBudgets(t *testing.T) {
	candidates := []QuantCandidate{
		{Tag: "Q4_K", EstimatedBytes: 1000, ExpertBytes: 700}, // dense remainder 300
		{Tag: "Q8_0", EstimatedBytes: 2000, ExpertBytes: 1900}, // exceeds offload budget
	}
	got, ok := SelectQuantizationMoE(candidates, 500, 800)
	if !ok || got.Tag != "Q4_K" {
		t.Fatalf("got %+v ok=%v, want Q4_K", got, ok)
	}
}

func TestSelectQuantizationMoENoneWhenExpertsExceedOffload(t *testing.T) {
	candidates := []QuantCandidate{{Tag: "Q8_0", EstimatedBytes: 2000, ExpertBytes: 1900}}
	_, ok := SelectQuantizationMoE(candidates, 5000, 100)
	if ok {
		t.Fatal("expected no candidate when experts alone exceed offload budget")
	}
}
