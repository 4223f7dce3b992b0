// Package optypes defines OpType and lists the operators the shape annotator
// and the kernel splitter understand.
package optypes

// OpType is an enum of the canonical operator kinds. Converters hand the core
// raw type tags from an open vocabulary; FromString folds known synonyms into
// one of these kinds, and everything else maps to Invalid (unsupported).
type OpType int

//go:generate go tool enumer -type=OpType optypes.go

const (
	Invalid OpType = iota
	Placeholder
	Const
	Identity

	Conv2D
	DepthwiseConv2dNative
	MatMul
	FusedBatchNorm
	BiasAdd
	Relu
	Relu6
	LeakyReLU
	Add
	Mul
	AvgPool
	MaxPool
	Mean
	GlobalAveragePooling2D
	GlobalMaxPooling2D
	Reshape
	Concat
	Split
	Transpose
	Pack
	StridedSlice

	// Last should always be kept the last, it is used as a counter/marker.
	Last
)

// aliases maps raw type tags that differ from the canonical enum name.
// TensorFlow frozen graphs and Keras emit several spellings for the same kind.
var aliases = map[string]OpType{
	"AddV2":            Add,
	"ConcatV2":         Concat,
	"Concatenate":      Concat,
	"AveragePooling2D": AvgPool,
	"MaxPooling2D":     MaxPool,
	"Packed":           Pack,
	"SplitV":           Split,
}

// FromString resolves a raw op type tag to its canonical OpType.
// Unknown tags resolve to Invalid; callers treat those as unsupported
// operators rather than errors.
//
// Matching is exact: OpTypeString also accepts case-folded spellings, but the
// converter vocabulary is case-sensitive, so only round-tripping names count.
// Case variants that mean the same kind belong in aliases.
func FromString(tag string) OpType {
	if op, err := OpTypeString(tag); err == nil && op != Last && op.String() == tag {
		return op
	}
	if op, ok := aliases[tag]; ok {
		return op
	}
	return Invalid
}
