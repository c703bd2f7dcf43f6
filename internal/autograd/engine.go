package autograd

import (
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/FlavioCFOliveira/GoRecurrent/internal/tensor"
)

// CPU is the host engine. It owns the random source used for parameter
// initialization and dropout masks; the source is guarded so concurrent
// forward passes may share one engine.
type CPU struct {
	mu  sync.Mutex
	src rand.Source
}

// NewCPU creates an engine with a deterministic random source.
func NewCPU(seed uint64) *CPU {
	return &CPU{src: rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)}
}

// NumRNNParams is the sizing oracle; see the package-level NumRNNParams.
func (e *CPU) NumRNNParams(inputSize, hiddenSize, numLayers int, mode RNNMode, bidirectional bool) (int, error) {
	return NumRNNParams(inputSize, hiddenSize, numLayers, mode, bidirectional)
}

// Uniform returns a leaf Variable whose elements are drawn from U[low, high).
func (e *CPU) Uniform(shape []int, low, high float64, requiresGrad bool) *Variable {
	e.mu.Lock()
	defer e.mu.Unlock()

	dist := distuv.Uniform{Min: low, Max: high, Src: e.src}
	t := tensor.Zeros(shape...)
	data := t.Data()
	for i := range data {
		data[i] = dist.Rand()
	}
	return NewVariable(t, requiresGrad)
}

// DropoutMask returns an inverted-dropout mask: each element is 0 with
// probability p and 1/(1-p) otherwise.
func (e *CPU) DropoutMask(p float64, rows, cols int) *tensor.Tensor {
	e.mu.Lock()
	defer e.mu.Unlock()

	keep := distuv.Bernoulli{P: 1 - p, Src: e.src}
	scale := 1 / (1 - p)
	m := tensor.Zeros(rows, cols)
	data := m.Data()
	for i := range data {
		data[i] = keep.Rand() * scale
	}
	return m
}

// Dropout zeroes elements of x with probability p and rescales the rest.
// p == 0 returns x unchanged.
func (e *CPU) Dropout(x *Variable, p float64) *Variable {
	if p == 0 {
		return x
	}
	shape := x.Shape()
	cols := shape[len(shape)-1]
	mask := e.DropoutMask(p, x.value.Size()/cols, cols).Reshape(shape...)
	return Mul(x, Constant(mask))
}

// RNN runs the recurrent primitive with masks drawn from this engine.
func (e *CPU) RNN(input, hidden, cell, weights *Variable, hiddenSize, numLayers int, mode RNNMode,
	bidirectional bool, dropout float64) (y, hy, cy *Variable, err error) {
	return RNN(input, hidden, cell, weights, hiddenSize, numLayers, mode, bidirectional, dropout, e.DropoutMask)
}
