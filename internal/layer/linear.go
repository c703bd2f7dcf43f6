package layer

import (
	"fmt"
	"math"

	"github.com/FlavioCFOliveira/GoRecurrent/internal/autograd"
	"github.com/FlavioCFOliveira/GoRecurrent/internal/errs"
)

// Linear is a fully connected projection y = x Wᵀ + b applied over the last
// axis of its input.
type Linear struct {
	trainable

	inSize  int
	outSize int

	// weight is [outSize, inSize]; weight for output i, input j is at i*inSize + j
	weight *autograd.Variable
	bias   *autograd.Variable
}

// NewLinear creates a linear layer with Xavier/Glorot-scaled uniform weights.
func NewLinear(in, out int, init Initializer) (*Linear, error) {
	if in <= 0 || out <= 0 {
		return nil, fmt.Errorf("layer: linear sizes must be positive (in=%d out=%d): %w", in, out, errs.ErrInvalidArgument)
	}
	if init == nil {
		return nil, fmt.Errorf("layer: nil initializer: %w", errs.ErrInvalidArgument)
	}
	scale := math.Sqrt(2.0 / (float64(in) + float64(out)))
	return &Linear{
		inSize:  in,
		outSize: out,
		weight:  init.Uniform([]int{out, in}, -scale, scale, true),
		bias:    init.Uniform([]int{out}, -0.1, 0.1, true),
	}, nil
}

// Forward accepts exactly one input whose last axis has InSize elements.
func (l *Linear) Forward(inputs ...*autograd.Variable) ([]*autograd.Variable, error) {
	if len(inputs) != 1 {
		return nil, fmt.Errorf("layer: linear takes 1 input, got %d: %w", len(inputs), errs.ErrInvalidArgument)
	}
	y, err := l.ForwardInput(inputs[0])
	if err != nil {
		return nil, err
	}
	return []*autograd.Variable{y}, nil
}

// ForwardInput projects x of shape [..., InSize] to [..., OutSize].
func (l *Linear) ForwardInput(x *autograd.Variable) (*autograd.Variable, error) {
	if x.IsEmpty() {
		return nil, fmt.Errorf("layer: linear input is empty: %w", errs.ErrInvalidArgument)
	}
	shape := x.Shape()
	if shape[len(shape)-1] != l.inSize {
		return nil, fmt.Errorf("layer: linear input shape %v, expected last axis %d: %w",
			shape, l.inSize, errs.ErrInvalidArgument)
	}
	rows := x.Value().Size() / l.inSize
	flat := autograd.Reshape(x, rows, l.inSize)
	y := autograd.AddBias(autograd.MatMulT(flat, l.weight), l.bias)

	outShape := append(shape[:len(shape)-1:len(shape)-1], l.outSize)
	return autograd.Reshape(y, outShape...), nil
}

// Params returns the weight and bias Variables.
func (l *Linear) Params() []*autograd.Variable {
	return []*autograd.Variable{l.weight, l.bias}
}

// Weight returns the [out, in] weight Variable.
func (l *Linear) Weight() *autograd.Variable { return l.weight }

// Bias returns the [out] bias Variable.
func (l *Linear) Bias() *autograd.Variable { return l.bias }

// InSize returns the input size of the layer.
func (l *Linear) InSize() int { return l.inSize }

// OutSize returns the output size of the layer.
func (l *Linear) OutSize() int { return l.outSize }

// Describe returns "Linear (in->out)".
func (l *Linear) Describe() string {
	return fmt.Sprintf("Linear (%d->%d)", l.inSize, l.outSize)
}

func (l *Linear) String() string { return l.Describe() }
