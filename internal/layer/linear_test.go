package layer

import (
	"errors"
	"testing"

	"github.com/FlavioCFOliveira/GoRecurrent/internal/autograd"
	"github.com/FlavioCFOliveira/GoRecurrent/internal/errs"
	"github.com/FlavioCFOliveira/GoRecurrent/internal/tensor"
)

func TestLinearForward(t *testing.T) {
	l, err := NewLinear(2, 3, autograd.NewCPU(1))
	if err != nil {
		t.Fatal(err)
	}
	// Identity-like weights for predictable output
	copy(l.Weight().Value().Data(), []float64{1, 0, 0, 1, 1, 1})
	copy(l.Bias().Value().Data(), []float64{0.5, -0.5, 0})

	x := autograd.Constant(tensor.New([]float64{1, 2, 3, 4}, 2, 2))
	y, err := l.ForwardInput(x)
	if err != nil {
		t.Fatal(err)
	}
	want := tensor.New([]float64{1.5, 1.5, 3, 3.5, 3.5, 7}, 2, 3)
	if !y.Value().EqualApprox(want, 1e-12) {
		t.Errorf("Forward = %v, expected %v", y.Value(), want)
	}
}

func TestLinearKeepsLeadingAxes(t *testing.T) {
	l, err := NewLinear(4, 1, autograd.NewCPU(2))
	if err != nil {
		t.Fatal(err)
	}
	out, err := l.Forward(sequence(5, 3, 4))
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || !out[0].Value().HasShape(5, 3, 1) {
		t.Errorf("output shape = %v, expected [5 3 1]", out[0].Shape())
	}
}

func TestLinearRejectsBadInput(t *testing.T) {
	l, err := NewLinear(4, 2, autograd.NewCPU(2))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := l.Forward(); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Errorf("no inputs: error = %v", err)
	}
	if _, err := l.ForwardInput(sequence(2, 2, 3)); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Errorf("wrong width: error = %v", err)
	}
	if _, err := l.ForwardInput(autograd.Empty()); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Errorf("empty input: error = %v", err)
	}
	if _, err := NewLinear(0, 2, autograd.NewCPU(1)); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Errorf("zero in size: error = %v", err)
	}
}

func TestLinearGradients(t *testing.T) {
	l, err := NewLinear(3, 2, autograd.NewCPU(3))
	if err != nil {
		t.Fatal(err)
	}
	y, err := l.ForwardInput(sequence(1, 4, 3))
	if err != nil {
		t.Fatal(err)
	}
	autograd.Sum(y).Backward()

	// d sum / d bias is the number of rows.
	for i, g := range l.Bias().Grad().Data() {
		if g != 4 {
			t.Errorf("bias grad[%d] = %v, expected 4", i, g)
		}
	}
	if l.Weight().Grad() == nil {
		t.Errorf("weight received no gradient")
	}
	if l.Describe() != "Linear (3->2)" {
		t.Errorf("Describe() = %q", l.Describe())
	}
}

func TestTrainableModes(t *testing.T) {
	var m trainable
	if !m.IsTraining() || m.Mode() != Training {
		t.Errorf("zero value should be training")
	}
	m.SetTraining(false)
	if m.IsTraining() || m.Mode() != Evaluation {
		t.Errorf("SetTraining(false) did not switch to evaluation")
	}
	m.Train()
	if m.Mode().String() != "training" {
		t.Errorf("Mode().String() = %q", m.Mode())
	}
	m.Eval()
	if m.Mode().String() != "evaluation" {
		t.Errorf("Mode().String() = %q", m.Mode())
	}
}
