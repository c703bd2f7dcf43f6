// Package tensor provides the dense row-major float64 storage used by the
// autograd engine. Two-dimensional tensors can be viewed as gonum matrices
// without copying.
package tensor

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Tensor is an n-dimensional array stored contiguously in row-major order.
type Tensor struct {
	shape []int
	data  []float64
}

// Volume returns the number of elements described by shape.
func Volume(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// New wraps data in a tensor of the given shape. The slice is not copied.
// It panics if the shape does not describe len(data) elements.
func New(data []float64, shape ...int) *Tensor {
	for _, d := range shape {
		if d < 0 {
			panic(fmt.Sprintf("tensor: negative dimension in shape %v", shape))
		}
	}
	if Volume(shape) != len(data) {
		panic(fmt.Sprintf("tensor: shape %v does not match %d elements", shape, len(data)))
	}
	return &Tensor{shape: append([]int(nil), shape...), data: data}
}

// Zeros returns a zero-filled tensor.
func Zeros(shape ...int) *Tensor {
	return New(make([]float64, Volume(shape)), shape...)
}

// Full returns a tensor with every element set to v.
func Full(v float64, shape ...int) *Tensor {
	t := Zeros(shape...)
	for i := range t.data {
		t.data[i] = v
	}
	return t
}

// Empty returns a tensor with no elements. It stands in for absent state.
func Empty() *Tensor {
	return &Tensor{shape: []int{0}}
}

// IsEmpty reports whether t is nil or holds no elements.
func (t *Tensor) IsEmpty() bool {
	return t == nil || len(t.data) == 0
}

// Shape returns a copy of the tensor's dimensions.
func (t *Tensor) Shape() []int {
	return append([]int(nil), t.shape...)
}

// Dims returns the number of dimensions.
func (t *Tensor) Dims() int {
	return len(t.shape)
}

// Dim returns the size of dimension i.
func (t *Tensor) Dim(i int) int {
	return t.shape[i]
}

// Size returns the number of elements.
func (t *Tensor) Size() int {
	return len(t.data)
}

// Data returns the backing slice. Writes are visible to every view of the tensor.
func (t *Tensor) Data() []float64 {
	return t.data
}

// HasShape reports whether the tensor's dimensions equal shape.
func (t *Tensor) HasShape(shape ...int) bool {
	if len(t.shape) != len(shape) {
		return false
	}
	for i := range shape {
		if t.shape[i] != shape[i] {
			return false
		}
	}
	return true
}

// SameShape reports whether t and o have identical dimensions.
func (t *Tensor) SameShape(o *Tensor) bool {
	return t.HasShape(o.shape...)
}

func (t *Tensor) offset(idx []int) int {
	if len(idx) != len(t.shape) {
		panic(fmt.Sprintf("tensor: %d indices for %d-d tensor", len(idx), len(t.shape)))
	}
	off := 0
	for i, v := range idx {
		if v < 0 || v >= t.shape[i] {
			panic(fmt.Sprintf("tensor: index %v out of range for shape %v", idx, t.shape))
		}
		off = off*t.shape[i] + v
	}
	return off
}

// At returns the element at idx.
func (t *Tensor) At(idx ...int) float64 {
	return t.data[t.offset(idx)]
}

// Set stores v at idx.
func (t *Tensor) Set(v float64, idx ...int) {
	t.data[t.offset(idx)] = v
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	return &Tensor{
		shape: append([]int(nil), t.shape...),
		data:  append([]float64(nil), t.data...),
	}
}

// Reshape returns a view of t with a new shape over the same data.
func (t *Tensor) Reshape(shape ...int) *Tensor {
	return New(t.data, shape...)
}

// Matrix returns a gonum view of a 2-D tensor sharing t's storage.
func (t *Tensor) Matrix() *mat.Dense {
	if len(t.shape) != 2 {
		panic(fmt.Sprintf("tensor: Matrix on %d-d tensor", len(t.shape)))
	}
	return mat.NewDense(t.shape[0], t.shape[1], t.data)
}

// FromMatrix copies a gonum matrix into a new 2-D tensor.
func FromMatrix(m mat.Matrix) *Tensor {
	r, c := m.Dims()
	t := Zeros(r, c)
	t.Matrix().Copy(m)
	return t
}

// EqualApprox reports whether both tensors have the same shape and all
// elements agree within tol.
func (t *Tensor) EqualApprox(o *Tensor, tol float64) bool {
	if !t.SameShape(o) {
		return false
	}
	return floats.EqualApprox(t.data, o.data, tol)
}

func (t *Tensor) String() string {
	if t == nil {
		return "Tensor<nil>"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Tensor%v", t.shape)
	if len(t.data) <= 16 {
		fmt.Fprintf(&sb, "%v", t.data)
	}
	return sb.String()
}
