package layer

import (
	"fmt"
	"strconv"

	"github.com/FlavioCFOliveira/GoRecurrent/internal/autograd"
	"github.com/FlavioCFOliveira/GoRecurrent/internal/errs"
)

// Dropper draws inverted-dropout masks.
type Dropper interface {
	Dropout(x *autograd.Variable, p float64) *autograd.Variable
}

// Dropout implements dropout regularization.
// During training, randomly sets inputs to 0 with probability p and scales
// the rest by 1/(1-p). During evaluation, passes inputs through unchanged.
type Dropout struct {
	trainable

	p      float64
	engine Dropper
}

// NewDropout creates a new dropout module. p must be in [0, 1).
func NewDropout(p float64, engine Dropper) (*Dropout, error) {
	if p < 0 || p >= 1 {
		return nil, fmt.Errorf("layer: dropout %v outside [0, 1): %w", p, errs.ErrInvalidArgument)
	}
	if engine == nil {
		return nil, fmt.Errorf("layer: nil engine: %w", errs.ErrInvalidArgument)
	}
	return &Dropout{p: p, engine: engine}, nil
}

// Forward accepts exactly one input.
func (d *Dropout) Forward(inputs ...*autograd.Variable) ([]*autograd.Variable, error) {
	if len(inputs) != 1 {
		return nil, fmt.Errorf("layer: dropout takes 1 input, got %d: %w", len(inputs), errs.ErrInvalidArgument)
	}
	x := inputs[0]
	if !d.IsTraining() || d.p == 0 || x.IsEmpty() {
		return []*autograd.Variable{x}, nil
	}
	return []*autograd.Variable{d.engine.Dropout(x, d.p)}, nil
}

// Params returns nil; dropout has no learnable state.
func (d *Dropout) Params() []*autograd.Variable { return nil }

// Prob returns the drop probability.
func (d *Dropout) Prob() float64 { return d.p }

// Describe returns e.g. "Dropout (0.3)".
func (d *Dropout) Describe() string {
	return "Dropout (" + strconv.FormatFloat(d.p, 'g', 6, 64) + ")"
}
