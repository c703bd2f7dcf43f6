// Package autograd is a small reverse-mode automatic differentiation engine.
//
// A Variable wraps a tensor and, when it requires gradients, remembers the
// operation that produced it. Calling Backward on a result walks that record
// in reverse topological order and accumulates gradients into the leaf
// Variables (typically parameter buffers).
//
// The package also hosts the recurrent primitive (RNN), its parameter sizing
// oracle (NumRNNParams) and the CPU engine that ties them to a random source.
package autograd

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/FlavioCFOliveira/GoRecurrent/internal/tensor"
)

// gradFn maps the gradient of an op's output to one gradient per parent.
// A nil entry means no gradient flows to that parent.
type gradFn func(grad *tensor.Tensor) []*tensor.Tensor

// Variable is a tensor tracked by the autograd tape.
type Variable struct {
	value        *tensor.Tensor
	grad         *tensor.Tensor
	requiresGrad bool

	parents []*Variable
	gradFn  gradFn
}

// NewVariable creates a leaf Variable.
func NewVariable(value *tensor.Tensor, requiresGrad bool) *Variable {
	return &Variable{value: value, requiresGrad: requiresGrad}
}

// Constant creates a leaf Variable that never receives gradients.
func Constant(value *tensor.Tensor) *Variable {
	return NewVariable(value, false)
}

// Empty returns a Variable without elements. It marks absent recurrent state.
func Empty() *Variable {
	return Constant(tensor.Empty())
}

// IsEmpty reports whether v is nil or holds no elements.
func (v *Variable) IsEmpty() bool {
	return v == nil || v.value.IsEmpty()
}

// Value returns the underlying tensor.
func (v *Variable) Value() *tensor.Tensor {
	return v.value
}

// Shape returns a copy of the value's dimensions.
func (v *Variable) Shape() []int {
	return v.value.Shape()
}

// Grad returns the accumulated gradient of a leaf, or nil if none has been
// computed since the last ZeroGrad.
func (v *Variable) Grad() *tensor.Tensor {
	return v.grad
}

// RequiresGrad reports whether gradients flow into v.
func (v *Variable) RequiresGrad() bool {
	return v.requiresGrad
}

// IsLeaf reports whether v was created directly rather than by an op.
func (v *Variable) IsLeaf() bool {
	return v.gradFn == nil
}

// ZeroGrad discards the accumulated gradient.
func (v *Variable) ZeroGrad() {
	v.grad = nil
}

// Detach returns a constant sharing v's value and cut off from the tape.
func (v *Variable) Detach() *Variable {
	return Constant(v.value)
}

func (v *Variable) String() string {
	return fmt.Sprintf("Variable(%v, requiresGrad=%t)", v.value, v.requiresGrad)
}

func (v *Variable) accumulate(g *tensor.Tensor) {
	if v.grad == nil {
		v.grad = g.Clone()
		return
	}
	floats.Add(v.grad.Data(), g.Data())
}

// Backward back-propagates a gradient of ones from v.
func (v *Variable) Backward() {
	v.BackwardWith(tensor.Full(1, v.value.Shape()...))
}

// BackwardWith back-propagates grad, which must match v's shape, and
// accumulates the result into every reachable leaf that requires gradients.
// Backward is not safe for concurrent use on graphs that share leaves.
func (v *Variable) BackwardWith(grad *tensor.Tensor) {
	if !grad.SameShape(v.value) {
		panic(fmt.Sprintf("autograd: gradient shape %v does not match value shape %v", grad.Shape(), v.value.Shape()))
	}
	if !v.requiresGrad {
		return
	}

	order := topoSort(v)
	pending := map[*Variable]*tensor.Tensor{v: grad}
	for i := len(order) - 1; i >= 0; i-- {
		n := order[i]
		g, ok := pending[n]
		if !ok {
			continue
		}
		delete(pending, n)

		if n.gradFn == nil {
			n.accumulate(g)
			continue
		}
		for j, pg := range n.gradFn(g) {
			p := n.parents[j]
			if pg == nil || !p.requiresGrad {
				continue
			}
			// Stored gradients may alias op outputs, so sums always allocate.
			if prev, ok := pending[p]; ok {
				sum := tensor.Zeros(prev.Shape()...)
				floats.AddTo(sum.Data(), prev.Data(), pg.Data())
				pending[p] = sum
			} else {
				pending[p] = pg
			}
		}
	}
}

// topoSort orders the graph below root so that parents precede children.
func topoSort(root *Variable) []*Variable {
	var order []*Variable
	visited := make(map[*Variable]bool)

	type frame struct {
		v    *Variable
		next int
	}
	stack := []frame{{v: root}}
	visited[root] = true
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next < len(top.v.parents) {
			p := top.v.parents[top.next]
			top.next++
			if p.requiresGrad && !visited[p] {
				visited[p] = true
				stack = append(stack, frame{v: p})
			}
			continue
		}
		order = append(order, top.v)
		stack = stack[:len(stack)-1]
	}
	return order
}

// record builds the result of an op, attaching the tape entry only when a
// parent requires gradients.
func record(value *tensor.Tensor, fn gradFn, parents ...*Variable) *Variable {
	out := &Variable{value: value}
	for _, p := range parents {
		if p.requiresGrad {
			out.requiresGrad = true
			break
		}
	}
	if out.requiresGrad {
		out.parents = parents
		out.gradFn = fn
	}
	return out
}
