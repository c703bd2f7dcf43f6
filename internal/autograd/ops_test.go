package autograd

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"

	"github.com/FlavioCFOliveira/GoRecurrent/internal/tensor"
)

// probe returns fixed, non-uniform weights so that a weighted sum of an
// op's output exercises every element of its gradient.
func probe(shape []int) *tensor.Tensor {
	w := tensor.Zeros(shape...)
	for i := range w.Data() {
		w.Data()[i] = math.Sin(float64(i) + 1)
	}
	return w
}

func seq(shape ...int) *tensor.Tensor {
	t := tensor.Zeros(shape...)
	for i := range t.Data() {
		t.Data()[i] = 0.3*float64(i) - 0.7 + 0.05*float64(i*i%7)
	}
	return t
}

func scalarOf(v *Variable) float64 {
	return v.Value().Data()[0]
}

// checkGradient compares the tape gradient of sum(probe ∘ f(x)) with a
// central finite difference.
func checkGradient(t *testing.T, name string, x *tensor.Tensor, f func(*Variable) *Variable) {
	t.Helper()

	v := NewVariable(x.Clone(), true)
	out := f(v)
	w := Constant(probe(out.Shape()))
	Sum(Mul(out, w)).Backward()
	if v.Grad() == nil {
		t.Fatalf("%s: no gradient reached the input", name)
	}

	numeric := fd.Gradient(nil, func(p []float64) float64 {
		in := Constant(tensor.New(append([]float64(nil), p...), x.Shape()...))
		return scalarOf(Sum(Mul(f(in), w)))
	}, x.Data(), &fd.Settings{Formula: fd.Central})

	if !floats.EqualApprox(v.Grad().Data(), numeric, 1e-5) {
		t.Errorf("%s: analytic gradient %v, numeric %v", name, v.Grad().Data(), numeric)
	}
}

func TestElementwiseGradients(t *testing.T) {
	other := Constant(seq(2, 3))
	checkGradient(t, "Add", seq(2, 3), func(x *Variable) *Variable { return Add(x, other) })
	checkGradient(t, "Sub", seq(2, 3), func(x *Variable) *Variable { return Sub(other, x) })
	checkGradient(t, "Mul", seq(2, 3), func(x *Variable) *Variable { return Mul(x, other) })
	checkGradient(t, "Square", seq(2, 3), func(x *Variable) *Variable { return Mul(x, x) })
	checkGradient(t, "Scale", seq(2, 3), func(x *Variable) *Variable { return Scale(x, -2.5) })
	checkGradient(t, "Sigmoid", seq(2, 3), Sigmoid)
	checkGradient(t, "Tanh", seq(2, 3), Tanh)
	checkGradient(t, "Mean", seq(2, 3), Mean)
}

func TestMatMulTGradients(t *testing.T) {
	w := seq(4, 3)
	x := seq(2, 3)
	checkGradient(t, "MatMulT/x", x, func(v *Variable) *Variable { return MatMulT(v, Constant(w)) })
	checkGradient(t, "MatMulT/w", w, func(v *Variable) *Variable { return MatMulT(Constant(x), v) })
}

func TestMatMulTValue(t *testing.T) {
	x := Constant(tensor.New([]float64{1, 2, 3, 4}, 2, 2))
	w := Constant(tensor.New([]float64{1, 0, 0, 1, 1, 1}, 3, 2))
	got := MatMulT(x, w).Value()
	want := tensor.New([]float64{1, 2, 3, 3, 4, 7}, 2, 3)
	if !got.EqualApprox(want, 1e-12) {
		t.Errorf("MatMulT = %v, expected %v", got, want)
	}
}

func TestStructuralGradients(t *testing.T) {
	checkGradient(t, "AddBias/x", seq(3, 2), func(v *Variable) *Variable {
		return AddBias(v, Constant(seq(2)))
	})
	checkGradient(t, "AddBias/b", seq(2), func(v *Variable) *Variable {
		return AddBias(Constant(seq(3, 2)), v)
	})
	checkGradient(t, "Columns", seq(2, 5), func(v *Variable) *Variable { return Columns(v, 1, 4) })
	checkGradient(t, "Concat", seq(2, 3), func(v *Variable) *Variable {
		return Concat(Columns(v, 0, 1), Constant(seq(2, 2)), v)
	})
	checkGradient(t, "Select", seq(3, 2, 2), func(v *Variable) *Variable { return Select(v, 1) })
	checkGradient(t, "Stack", seq(2, 2), func(v *Variable) *Variable {
		return Stack(v, Tanh(v), Constant(seq(2, 2)))
	})
	checkGradient(t, "Reshape", seq(2, 3), func(v *Variable) *Variable {
		return Tanh(Reshape(v, 3, 2))
	})
	checkGradient(t, "Narrow", seq(10), func(v *Variable) *Variable {
		return MatMulT(Narrow(v, 2, 2, 3), Narrow(v, 4, 1, 3))
	})
}

func TestSharedParentAccumulates(t *testing.T) {
	x := NewVariable(tensor.New([]float64{1, -2, 3}, 3), true)
	Sum(Add(Mul(x, x), x)).Backward()
	want := []float64{3, -3, 7}
	if !floats.Equal(x.Grad().Data(), want) {
		t.Errorf("grad = %v, expected %v", x.Grad().Data(), want)
	}
}

func TestLeafGradientAccumulatesAcrossBackward(t *testing.T) {
	x := NewVariable(tensor.New([]float64{2}, 1), true)
	Scale(x, 3).Backward()
	Scale(x, 3).Backward()
	if got := x.Grad().Data()[0]; got != 6 {
		t.Errorf("accumulated grad = %v, expected 6", got)
	}
	x.ZeroGrad()
	if x.Grad() != nil {
		t.Errorf("ZeroGrad left a gradient behind")
	}
}

func TestConstantsAreNotRecorded(t *testing.T) {
	a := Constant(seq(2))
	b := Constant(seq(2))
	out := Add(a, b)
	if out.RequiresGrad() || !out.IsLeaf() {
		t.Errorf("op over constants should be an untracked leaf")
	}
	out.Backward()
	if a.Grad() != nil {
		t.Errorf("constant received a gradient")
	}
}

func TestNarrowSharesStorage(t *testing.T) {
	buf := NewVariable(seq(6), true)
	view := Narrow(buf, 2, 2, 2)
	buf.Value().Data()[3] = 99
	if view.Value().At(0, 1) != 99 {
		t.Errorf("Narrow copied the buffer instead of viewing it")
	}
}

func TestEmptyVariable(t *testing.T) {
	var missing *Variable
	if !missing.IsEmpty() || !Empty().IsEmpty() {
		t.Errorf("nil and Empty() must both report empty")
	}
	if Constant(seq(1)).IsEmpty() {
		t.Errorf("one-element variable reported empty")
	}
}
