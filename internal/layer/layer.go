// Package layer provides differentiable modules built on the autograd engine:
// the recurrent module (RNN), a linear projection head and dropout.
package layer

import (
	"github.com/FlavioCFOliveira/GoRecurrent/internal/autograd"
)

// Module is a differentiable layer.
type Module interface {
	// Forward runs the module on an ordered sequence of inputs.
	Forward(inputs ...*autograd.Variable) ([]*autograd.Variable, error)

	// Params returns the learnable Variables owned by the module.
	Params() []*autograd.Variable

	SetTraining(training bool)
	IsTraining() bool

	// Describe returns a one-line human-readable summary.
	Describe() string
}

// Initializer creates parameter tensors.
type Initializer interface {
	Uniform(shape []int, low, high float64, requiresGrad bool) *autograd.Variable
}

// Engine is the autograd backend consumed by the recurrent module.
type Engine interface {
	Initializer

	NumRNNParams(inputSize, hiddenSize, numLayers int, mode autograd.RNNMode, bidirectional bool) (int, error)

	RNN(input, hidden, cell, weights *autograd.Variable, hiddenSize, numLayers int, mode autograd.RNNMode,
		bidirectional bool, dropout float64) (y, hy, cy *autograd.Variable, err error)
}

// Mode is the lifecycle state a module is run in.
type Mode int

const (
	// Training enables stochastic behavior such as dropout.
	Training Mode = iota
	// Evaluation disables it.
	Evaluation
)

func (m Mode) String() string {
	if m == Evaluation {
		return "evaluation"
	}
	return "training"
}

// trainable carries the training/evaluation flag shared by every module.
type trainable struct {
	eval bool
}

// SetTraining sets whether the module runs in training or evaluation mode.
func (t *trainable) SetTraining(training bool) {
	t.eval = !training
}

// IsTraining returns whether the module is in training mode.
func (t *trainable) IsTraining() bool {
	return !t.eval
}

// Train switches to training mode.
func (t *trainable) Train() { t.eval = false }

// Eval switches to evaluation mode.
func (t *trainable) Eval() { t.eval = true }

// Mode returns the current lifecycle mode.
func (t *trainable) Mode() Mode {
	if t.eval {
		return Evaluation
	}
	return Training
}
