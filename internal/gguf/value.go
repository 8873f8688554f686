package gguf

// ValueKind enumerates the 13 GGUF metadata value kinds.
type ValueKind uint32

const (
	KindUint8   ValueKind = 0
	KindInt8    ValueKind = 1
	KindUint16  ValueKind = 2
	KindInt16   ValueKind = 3
	KindUint32  ValueKind = 4
	KindInt32   ValueKind = 5
	KindFloat32 ValueKind = 6
	KindBool    ValueKind = 7
	KindString  ValueKind = 8
	KindArray   ValueKind = 9
	KindUint64  ValueKind = 10
	KindInt64   ValueKind = 11
	KindFloat64 ValueKind = 12
)

// Value is a tagged union over the 13 GGUF metadata value kinds. Exactly
// one of the typed fields is meaningful, selected by Kind.
type Value struct {
	Kind ValueKind

	U   uint64
	I   int64
	F32 float32
	F64 float64
	B   bool
	S   string

	// Array fields, valid when Kind == KindArray.
	ElemKind ValueKind
	Arr      []Value
}

// AsInt64 coerces any integer-kind value to int64, for callers (like the
// alignment lookup) that accept "any integer type".
func (v Value) AsInt64() (int64, bool) {
	switch v.Kind {
	case KindUint8, KindUint16, KindUint32, KindUint64:
		return int64(v.U), true
	case KindInt8, KindInt16, KindInt32, KindInt64:
		return v.I, true
	}
	return 0, false
}

func valueU(kind ValueKind, u uint64) Value { return Value{Kind: kind, U: u} }
func valueI(kind ValueKind, i int64) Value  { return Value{Kind: kind, I: i} }
