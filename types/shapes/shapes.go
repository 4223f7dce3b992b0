// Package shapes defines the Shape type, the unit of tensor metadata the
// graph annotator manipulates.
//
// A Shape is a data type plus an ordered list of dimensions (a "shape
// vector"). The kernel-detection core never touches tensor contents, only
// these descriptors.
package shapes

import (
	"fmt"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// Shape holds the dtype and the dimensions of a tensor.
// A rank-0 Shape with a valid DType is a scalar.
type Shape struct {
	DType      dtypes.DType
	Dimensions []int
}

// Make creates a Shape with the given dtype and dimensions.
func Make(dtype dtypes.DType, dimensions ...int) Shape {
	return Shape{DType: dtype, Dimensions: dimensions}
}

// Invalid returns the invalid shape, the zero value of Shape.
func Invalid() Shape { return Shape{} }

// Ok returns whether the shape has a valid dtype and non-negative dimensions.
func (s Shape) Ok() bool {
	if s.DType == dtypes.InvalidDType {
		return false
	}
	for _, dim := range s.Dimensions {
		if dim < 0 {
			return false
		}
	}
	return true
}

// Rank returns the number of dimensions.
func (s Shape) Rank() int { return len(s.Dimensions) }

// IsScalar returns whether the shape has rank 0.
func (s Shape) IsScalar() bool { return s.Rank() == 0 }

// Dim returns the dimension of the given axis.
// A negative axis counts from the end, like in NumPy: Dim(-1) is the last axis.
func (s Shape) Dim(axis int) int {
	adjusted := axis
	if adjusted < 0 {
		adjusted += s.Rank()
	}
	if adjusted < 0 || adjusted >= s.Rank() {
		panic(errors.Errorf("shape %s has no axis %d", s, axis))
	}
	return s.Dimensions[adjusted]
}

// Size returns the number of elements, the product of all dimensions.
// A scalar has size 1.
func (s Shape) Size() int {
	size := 1
	for _, dim := range s.Dimensions {
		size *= dim
	}
	return size
}

// Clone returns a deep copy of the shape.
func (s Shape) Clone() Shape {
	s2 := Shape{DType: s.DType, Dimensions: make([]int, s.Rank())}
	copy(s2.Dimensions, s.Dimensions)
	return s2
}

// Equal compares dtype and dimensions.
func (s Shape) Equal(other Shape) bool {
	if s.DType != other.DType || s.Rank() != other.Rank() {
		return false
	}
	for axis, dim := range s.Dimensions {
		if other.Dimensions[axis] != dim {
			return false
		}
	}
	return true
}

// EqualDimensions compares only the shape vectors, ignoring the dtype.
func (s Shape) EqualDimensions(other Shape) bool {
	if s.Rank() != other.Rank() {
		return false
	}
	for axis, dim := range s.Dimensions {
		if other.Dimensions[axis] != dim {
			return false
		}
	}
	return true
}

// String implements fmt.Stringer, printing like "(Float32)[1 224 224 3]".
func (s Shape) String() string {
	if !s.Ok() {
		return "(invalid shape)"
	}
	if s.IsScalar() {
		return fmt.Sprintf("(%s)", s.DType)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "(%s)[", s.DType)
	for i, dim := range s.Dimensions {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%d", dim)
	}
	b.WriteByte(']')
	return b.String()
}
