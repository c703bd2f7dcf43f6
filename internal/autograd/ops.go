package autograd

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/FlavioCFOliveira/GoRecurrent/internal/activations"
	"github.com/FlavioCFOliveira/GoRecurrent/internal/tensor"
)

func mustSameShape(op string, a, b *Variable) {
	if !a.value.SameShape(b.value) {
		panic(fmt.Sprintf("autograd: %s shape mismatch %v vs %v", op, a.Shape(), b.Shape()))
	}
}

func mustDims(op string, v *Variable, dims int) {
	if v.value.Dims() != dims {
		panic(fmt.Sprintf("autograd: %s expects a %d-d tensor, got shape %v", op, dims, v.Shape()))
	}
}

func like(t *tensor.Tensor) *tensor.Tensor {
	return tensor.Zeros(t.Shape()...)
}

// Add returns a + b.
func Add(a, b *Variable) *Variable {
	mustSameShape("Add", a, b)
	out := like(a.value)
	floats.AddTo(out.Data(), a.value.Data(), b.value.Data())
	return record(out, func(g *tensor.Tensor) []*tensor.Tensor {
		return []*tensor.Tensor{g, g}
	}, a, b)
}

// Sub returns a - b.
func Sub(a, b *Variable) *Variable {
	mustSameShape("Sub", a, b)
	out := like(a.value)
	floats.SubTo(out.Data(), a.value.Data(), b.value.Data())
	return record(out, func(g *tensor.Tensor) []*tensor.Tensor {
		neg := like(g)
		floats.ScaleTo(neg.Data(), -1, g.Data())
		return []*tensor.Tensor{g, neg}
	}, a, b)
}

// Mul returns the element-wise product a ∘ b.
func Mul(a, b *Variable) *Variable {
	mustSameShape("Mul", a, b)
	out := like(a.value)
	floats.MulTo(out.Data(), a.value.Data(), b.value.Data())
	return record(out, func(g *tensor.Tensor) []*tensor.Tensor {
		ga, gb := like(g), like(g)
		floats.MulTo(ga.Data(), g.Data(), b.value.Data())
		floats.MulTo(gb.Data(), g.Data(), a.value.Data())
		return []*tensor.Tensor{ga, gb}
	}, a, b)
}

// Scale returns c * a.
func Scale(a *Variable, c float64) *Variable {
	out := like(a.value)
	floats.ScaleTo(out.Data(), c, a.value.Data())
	return record(out, func(g *tensor.Tensor) []*tensor.Tensor {
		ga := like(g)
		floats.ScaleTo(ga.Data(), c, g.Data())
		return []*tensor.Tensor{ga}
	}, a)
}

// Activate applies act element-wise.
func Activate(a *Variable, act activations.Activation) *Variable {
	out := like(a.value)
	activations.Apply(act, out.Data(), a.value.Data())
	return record(out, func(g *tensor.Tensor) []*tensor.Tensor {
		ga := like(g)
		x, gd, d := a.value.Data(), g.Data(), ga.Data()
		for i := range d {
			d[i] = gd[i] * act.Derivative(x[i])
		}
		return []*tensor.Tensor{ga}
	}, a)
}

// Sigmoid applies the logistic function element-wise.
func Sigmoid(a *Variable) *Variable { return Activate(a, activations.Sigmoid{}) }

// Tanh applies tanh element-wise.
func Tanh(a *Variable) *Variable { return Activate(a, activations.Tanh{}) }

// ReLU applies max(0, x) element-wise.
func ReLU(a *Variable) *Variable { return Activate(a, activations.ReLU{}) }

// Abs returns |a|. The subgradient at 0 is 0.
func Abs(a *Variable) *Variable {
	out := like(a.value)
	x, o := a.value.Data(), out.Data()
	for i, v := range x {
		if v < 0 {
			o[i] = -v
		} else {
			o[i] = v
		}
	}
	return record(out, func(g *tensor.Tensor) []*tensor.Tensor {
		ga := like(g)
		gd, d := g.Data(), ga.Data()
		for i, v := range x {
			switch {
			case v > 0:
				d[i] = gd[i]
			case v < 0:
				d[i] = -gd[i]
			}
		}
		return []*tensor.Tensor{ga}
	}, a)
}

// Sum reduces a to a one-element tensor.
func Sum(a *Variable) *Variable {
	out := tensor.New([]float64{floats.Sum(a.value.Data())}, 1)
	return record(out, func(g *tensor.Tensor) []*tensor.Tensor {
		return []*tensor.Tensor{tensor.Full(g.Data()[0], a.Shape()...)}
	}, a)
}

// Mean reduces a to its one-element average.
func Mean(a *Variable) *Variable {
	return Scale(Sum(a), 1/float64(a.value.Size()))
}

// MatMulT returns x · wᵀ for x of shape [n, k] and w of shape [m, k].
func MatMulT(x, w *Variable) *Variable {
	mustDims("MatMulT", x, 2)
	mustDims("MatMulT", w, 2)
	n, k := x.value.Dim(0), x.value.Dim(1)
	m := w.value.Dim(0)
	if w.value.Dim(1) != k {
		panic(fmt.Sprintf("autograd: MatMulT inner dimension mismatch %v vs %v", x.Shape(), w.Shape()))
	}
	out := tensor.Zeros(n, m)
	out.Matrix().Mul(x.value.Matrix(), w.value.Matrix().T())
	return record(out, func(g *tensor.Tensor) []*tensor.Tensor {
		var gx, gw *tensor.Tensor
		if x.requiresGrad {
			gx = tensor.Zeros(n, k)
			gx.Matrix().Mul(g.Matrix(), w.value.Matrix())
		}
		if w.requiresGrad {
			gw = tensor.Zeros(m, k)
			gw.Matrix().Mul(g.Matrix().T(), x.value.Matrix())
		}
		return []*tensor.Tensor{gx, gw}
	}, x, w)
}

// AddBias adds the row vector b of shape [m] to every row of x of shape [n, m].
func AddBias(x, b *Variable) *Variable {
	mustDims("AddBias", x, 2)
	mustDims("AddBias", b, 1)
	n, m := x.value.Dim(0), x.value.Dim(1)
	if b.value.Dim(0) != m {
		panic(fmt.Sprintf("autograd: AddBias width mismatch %v vs %v", x.Shape(), b.Shape()))
	}
	out := x.value.Clone()
	bd := b.value.Data()
	for r := 0; r < n; r++ {
		floats.Add(out.Data()[r*m:(r+1)*m], bd)
	}
	return record(out, func(g *tensor.Tensor) []*tensor.Tensor {
		gb := tensor.Zeros(m)
		for r := 0; r < n; r++ {
			floats.Add(gb.Data(), g.Data()[r*m:(r+1)*m])
		}
		return []*tensor.Tensor{g, gb}
	}, x, b)
}

// Columns returns columns [start, end) of a 2-D tensor.
func Columns(x *Variable, start, end int) *Variable {
	mustDims("Columns", x, 2)
	n, m := x.value.Dim(0), x.value.Dim(1)
	if start < 0 || end > m || start >= end {
		panic(fmt.Sprintf("autograd: Columns [%d, %d) out of range for width %d", start, end, m))
	}
	w := end - start
	out := tensor.Zeros(n, w)
	xd, od := x.value.Data(), out.Data()
	for r := 0; r < n; r++ {
		copy(od[r*w:(r+1)*w], xd[r*m+start:r*m+end])
	}
	return record(out, func(g *tensor.Tensor) []*tensor.Tensor {
		gx := tensor.Zeros(n, m)
		gd, d := g.Data(), gx.Data()
		for r := 0; r < n; r++ {
			copy(d[r*m+start:r*m+end], gd[r*w:(r+1)*w])
		}
		return []*tensor.Tensor{gx}
	}, x)
}

// Concat joins 2-D tensors with equal row counts along their columns.
func Concat(vs ...*Variable) *Variable {
	if len(vs) == 0 {
		panic("autograd: Concat of nothing")
	}
	n := vs[0].value.Dim(0)
	widths := make([]int, len(vs))
	total := 0
	for i, v := range vs {
		mustDims("Concat", v, 2)
		if v.value.Dim(0) != n {
			panic(fmt.Sprintf("autograd: Concat row mismatch %v vs %v", vs[0].Shape(), v.Shape()))
		}
		widths[i] = v.value.Dim(1)
		total += widths[i]
	}
	out := tensor.Zeros(n, total)
	od := out.Data()
	for r := 0; r < n; r++ {
		col := 0
		for i, v := range vs {
			w := widths[i]
			copy(od[r*total+col:r*total+col+w], v.value.Data()[r*w:(r+1)*w])
			col += w
		}
	}
	return record(out, func(g *tensor.Tensor) []*tensor.Tensor {
		grads := make([]*tensor.Tensor, len(vs))
		for i := range vs {
			grads[i] = tensor.Zeros(n, widths[i])
		}
		gd := g.Data()
		for r := 0; r < n; r++ {
			col := 0
			for i, w := range widths {
				copy(grads[i].Data()[r*w:(r+1)*w], gd[r*total+col:r*total+col+w])
				col += w
			}
		}
		return grads
	}, vs...)
}

// Select returns x[i] along the leading axis.
func Select(x *Variable, i int) *Variable {
	shape := x.Shape()
	if len(shape) < 2 || i < 0 || i >= shape[0] {
		panic(fmt.Sprintf("autograd: Select(%d) on shape %v", i, shape))
	}
	inner := tensor.Volume(shape[1:])
	out := tensor.New(append([]float64(nil), x.value.Data()[i*inner:(i+1)*inner]...), shape[1:]...)
	return record(out, func(g *tensor.Tensor) []*tensor.Tensor {
		gx := tensor.Zeros(shape...)
		copy(gx.Data()[i*inner:(i+1)*inner], g.Data())
		return []*tensor.Tensor{gx}
	}, x)
}

// Stack joins equally shaped tensors along a new leading axis.
func Stack(vs ...*Variable) *Variable {
	if len(vs) == 0 {
		panic("autograd: Stack of nothing")
	}
	inner := vs[0].Shape()
	size := vs[0].value.Size()
	out := tensor.Zeros(append([]int{len(vs)}, inner...)...)
	for i, v := range vs {
		if !v.value.HasShape(inner...) {
			panic(fmt.Sprintf("autograd: Stack shape mismatch %v vs %v", inner, v.Shape()))
		}
		copy(out.Data()[i*size:(i+1)*size], v.value.Data())
	}
	return record(out, func(g *tensor.Tensor) []*tensor.Tensor {
		grads := make([]*tensor.Tensor, len(vs))
		for i := range vs {
			grads[i] = tensor.New(g.Data()[i*size:(i+1)*size], inner...)
		}
		return grads
	}, vs...)
}

// Reshape returns a view of x with a new shape of equal volume.
func Reshape(x *Variable, shape ...int) *Variable {
	src := x.Shape()
	return record(x.value.Reshape(shape...), func(g *tensor.Tensor) []*tensor.Tensor {
		return []*tensor.Tensor{g.Reshape(src...)}
	}, x)
}

// Narrow exposes size(shape) elements of the flat buffer x, starting at
// offset, as a tensor of the given shape. The view shares x's storage;
// gradients are scattered back into the matching segment.
func Narrow(x *Variable, offset int, shape ...int) *Variable {
	mustDims("Narrow", x, 1)
	n := tensor.Volume(shape)
	total := x.value.Size()
	if offset < 0 || offset+n > total {
		panic(fmt.Sprintf("autograd: Narrow [%d, %d) out of range for %d elements", offset, offset+n, total))
	}
	out := tensor.New(x.value.Data()[offset:offset+n], shape...)
	return record(out, func(g *tensor.Tensor) []*tensor.Tensor {
		gx := tensor.Zeros(total)
		copy(gx.Data()[offset:offset+n], g.Data())
		return []*tensor.Tensor{gx}
	}, x)
}
