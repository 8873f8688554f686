package gguf

// GGMLType describes one GGML tensor element-encoding scheme: how many
// elements form a block, and how many bytes that block occupies on disk.
// bits-per-weight is TypeSize*8/BlockSize.
type GGMLType struct {
	ID        uint32
	Tag       string // coarse tensor-type tag, e.g. "Q4_K" (level-less)
	BlockSize int
	TypeSize  int
}

// BitsPerWeight returns TypeSize*8/BlockSize as a float64.
func (t GGMLType) BitsPerWeight() float64 {
	return float64(t.TypeSize*8) / float64(t.BlockSize)
}

// GGMLTypes is indexed by the numeric GGML type ID as stored in a tensor
// descriptor. IDs and block geometry mirror the public ggml tensor-type
// enum; type 4 and 5 (the historical Q4_2/Q4_3 formats) were removed
// upstream and are intentionally absent here.
var GGMLTypes = map[uint32]GGMLType{
	0:  {0, "F32", 1, 4},
	1:  {1, "F16", 1, 2},
	2:  {2, "Q4_0", 32, 18},
	3:  {3, "Q4_1", 32, 20},
	6:  {6, "Q5_0", 32, 22},
	7:  {7, "Q5_1", 32, 24},
	8:  {8, "Q8_0", 32, 34},
	9:  {9, "Q8_1", 32, 36},
	10: {10, "Q2_K", 256, 84},
	11: {11, "Q3_K", 256, 110},
	12: {12, "Q4_K", 256, 144},
	13: {13, "Q5_K", 256, 176},
	14: {14, "Q6_K", 256, 210},
	15: {15, "Q8_K", 256, 292},
	16: {16, "IQ2_XXS", 256, 66},
	17: {17, "IQ2_XS", 256, 74},
	18: {18, "IQ3_XXS", 256, 98},
	19: {19, "IQ1_S", 256, 50},
	20: {20, "IQ4_NL", 32, 18},
	21: {21, "IQ3_S", 256, 110},
	22: {22, "IQ2_S", 256, 82},
	23: {23, "IQ4_XS", 256, 136},
	24: {24, "I8", 1, 1},
	25: {25, "I16", 1, 2},
	26: {26, "I32", 1, 4},
	27: {27, "I64", 1, 8},
	28: {28, "F64", 1, 8},
	29: {29, "IQ1_M", 256, 56},
	30: {30, "BF16", 1, 2},
}

// TensorByteSize computes the on-disk byte size for elementCount elements
// of the given GGML type, rounding up to a whole number of blocks.
func TensorByteSize(typeID uint32, elementCount uint64) (uint64, bool) {
	t, ok := GGMLTypes[typeID]
	if !ok {
		return 0, false
	}
	blocks := (elementCount + uint64(t.BlockSize) - 1) / uint64(t.BlockSize)
	return blocks * uint64(t.TypeSize), true
}
