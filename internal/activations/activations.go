// Package activations provides the element-wise nonlinearities used by the
// recurrent gates and the autograd Activate op.
package activations

import "math"

// Activation is an element-wise function together with its derivative,
// both evaluated at the pre-activation value x.
type Activation interface {
	// Activate computes f(x)
	Activate(x float64) float64

	// Derivative computes f'(x)
	Derivative(x float64) float64
}

// ReLU activation function.
type ReLU struct{}

// Activate computes max(0, x)
func (ReLU) Activate(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

// Derivative returns 1 if x > 0, else 0
func (ReLU) Derivative(x float64) float64 {
	if x > 0 {
		return 1
	}
	return 0
}

// Sigmoid activation function.
type Sigmoid struct{}

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	// Stable for large negative x.
	e := math.Exp(x)
	return e / (1 + e)
}

// Activate computes 1 / (1 + exp(-x))
func (Sigmoid) Activate(x float64) float64 {
	return sigmoid(x)
}

// Derivative computes sigmoid(x) * (1 - sigmoid(x))
func (Sigmoid) Derivative(x float64) float64 {
	s := sigmoid(x)
	return s * (1 - s)
}

// Tanh activation function.
type Tanh struct{}

// Activate computes tanh(x)
func (Tanh) Activate(x float64) float64 {
	return math.Tanh(x)
}

// Derivative computes 1 - tanh(x)^2
func (Tanh) Derivative(x float64) float64 {
	t := math.Tanh(x)
	return 1 - t*t
}

// Linear is the identity.
type Linear struct{}

// Activate returns x unchanged.
func (Linear) Activate(x float64) float64 { return x }

// Derivative is always 1.
func (Linear) Derivative(float64) float64 { return 1 }

// LeakyReLU passes negative inputs scaled by Alpha.
type LeakyReLU struct {
	Alpha float64
}

// NewLeakyReLU creates a LeakyReLU with the given negative slope.
func NewLeakyReLU(alpha float64) LeakyReLU {
	return LeakyReLU{Alpha: alpha}
}

// Activate computes x if x > 0, else alpha*x
func (l LeakyReLU) Activate(x float64) float64 {
	if x > 0 {
		return x
	}
	return l.Alpha * x
}

// Derivative returns 1 if x > 0, else alpha
func (l LeakyReLU) Derivative(x float64) float64 {
	if x > 0 {
		return 1
	}
	return l.Alpha
}

// Apply writes f(src[i]) into dst[i]. dst and src may alias.
func Apply(act Activation, dst, src []float64) {
	for i, v := range src {
		dst[i] = act.Activate(v)
	}
}
