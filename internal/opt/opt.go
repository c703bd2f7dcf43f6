// Package opt provides optimization algorithms over autograd Variables.
package opt

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/FlavioCFOliveira/GoRecurrent/internal/autograd"
)

// Optimizer updates parameters from their accumulated gradients.
type Optimizer interface {
	// Step applies one update to every parameter that holds a gradient.
	Step()

	// ZeroGrad clears the gradients of all managed parameters.
	ZeroGrad()

	// LearningRate returns the current learning rate.
	LearningRate() float64

	// SetLearningRate replaces the learning rate; used by schedulers.
	SetLearningRate(lr float64)
}

func zeroGrad(params []*autograd.Variable) {
	for _, p := range params {
		p.ZeroGrad()
	}
}

// SGD (Stochastic Gradient Descent) optimizer with optional momentum.
type SGD struct {
	params   []*autograd.Variable
	lr       float64
	momentum float64
	velocity [][]float64
}

// NewSGD creates an SGD optimizer. momentum 0 gives plain gradient descent.
func NewSGD(params []*autograd.Variable, lr, momentum float64) *SGD {
	return &SGD{
		params:   params,
		lr:       lr,
		momentum: momentum,
		velocity: make([][]float64, len(params)),
	}
}

// Step updates params in-place: v = momentum*v + g; params -= lr * v
func (s *SGD) Step() {
	for i, p := range s.params {
		g := p.Grad()
		if g == nil {
			continue
		}
		w := p.Value().Data()
		if s.momentum == 0 {
			floats.AddScaled(w, -s.lr, g.Data())
			continue
		}
		if s.velocity[i] == nil {
			s.velocity[i] = make([]float64, len(w))
		}
		v := s.velocity[i]
		floats.Scale(s.momentum, v)
		floats.Add(v, g.Data())
		floats.AddScaled(w, -s.lr, v)
	}
}

func (s *SGD) ZeroGrad()                  { zeroGrad(s.params) }
func (s *SGD) LearningRate() float64      { return s.lr }
func (s *SGD) SetLearningRate(lr float64) { s.lr = lr }

// Adam optimizer for faster convergence.
type Adam struct {
	params []*autograd.Variable
	lr     float64

	Beta1   float64 // Exponential decay rate for first moment
	Beta2   float64 // Exponential decay rate for second moment
	Epsilon float64 // Small constant for numerical stability

	t    int
	m, v [][]float64
}

// NewAdam creates a new Adam optimizer with default values.
func NewAdam(params []*autograd.Variable, lr float64) *Adam {
	return &Adam{
		params:  params,
		lr:      lr,
		Beta1:   0.9,
		Beta2:   0.999,
		Epsilon: 1e-8,
		m:       make([][]float64, len(params)),
		v:       make([][]float64, len(params)),
	}
}

// Step applies one bias-corrected Adam update.
func (a *Adam) Step() {
	a.t++
	c1 := 1 - math.Pow(a.Beta1, float64(a.t))
	c2 := 1 - math.Pow(a.Beta2, float64(a.t))

	for i, p := range a.params {
		g := p.Grad()
		if g == nil {
			continue
		}
		w, gd := p.Value().Data(), g.Data()
		if a.m[i] == nil {
			a.m[i] = make([]float64, len(w))
			a.v[i] = make([]float64, len(w))
		}
		m, v := a.m[i], a.v[i]
		for j, gj := range gd {
			m[j] = a.Beta1*m[j] + (1-a.Beta1)*gj
			v[j] = a.Beta2*v[j] + (1-a.Beta2)*gj*gj
			w[j] -= a.lr * (m[j] / c1) / (math.Sqrt(v[j]/c2) + a.Epsilon)
		}
	}
}

func (a *Adam) ZeroGrad()                  { zeroGrad(a.params) }
func (a *Adam) LearningRate() float64      { return a.lr }
func (a *Adam) SetLearningRate(lr float64) { a.lr = lr }

// ClipGradNorm rescales the gradients of params so that their joint L2 norm
// is at most maxNorm, and returns the norm before clipping.
func ClipGradNorm(params []*autograd.Variable, maxNorm float64) float64 {
	var sq float64
	for _, p := range params {
		if g := p.Grad(); g != nil {
			n := floats.Norm(g.Data(), 2)
			sq += n * n
		}
	}
	total := math.Sqrt(sq)
	if total > maxNorm && total > 0 {
		scale := maxNorm / total
		for _, p := range params {
			if g := p.Grad(); g != nil {
				floats.Scale(scale, g.Data())
			}
		}
	}
	return total
}
