// Package loss provides differentiable loss functions over autograd Variables.
package loss

import (
	"fmt"

	"github.com/FlavioCFOliveira/GoRecurrent/internal/autograd"
	"github.com/FlavioCFOliveira/GoRecurrent/internal/errs"
)

// Loss is a loss function recorded on the autograd tape.
type Loss interface {
	// Forward computes the scalar loss between prediction and target.
	// The target is treated as a constant.
	Forward(pred, target *autograd.Variable) (*autograd.Variable, error)
}

func checkShapes(name string, pred, target *autograd.Variable) error {
	if pred.IsEmpty() || target.IsEmpty() {
		return fmt.Errorf("loss: %s of empty tensor: %w", name, errs.ErrInvalidArgument)
	}
	if !pred.Value().SameShape(target.Value()) {
		return fmt.Errorf("loss: %s prediction %v and target %v differ in shape: %w",
			name, pred.Shape(), target.Shape(), errs.ErrInvalidArgument)
	}
	return nil
}

// MSE (Mean Squared Error) loss.
type MSE struct{}

// Forward computes mean squared error: (1/n) * sum((pred - target)^2)
func (MSE) Forward(pred, target *autograd.Variable) (*autograd.Variable, error) {
	if err := checkShapes("MSE", pred, target); err != nil {
		return nil, err
	}
	diff := autograd.Sub(pred, target.Detach())
	return autograd.Mean(autograd.Mul(diff, diff)), nil
}

// L1 (Mean Absolute Error) loss.
type L1 struct{}

// Forward computes mean absolute error: (1/n) * sum(|pred - target|)
func (L1) Forward(pred, target *autograd.Variable) (*autograd.Variable, error) {
	if err := checkShapes("L1", pred, target); err != nil {
		return nil, err
	}
	return autograd.Mean(autograd.Abs(autograd.Sub(pred, target.Detach()))), nil
}

// Value returns the scalar held by a loss Variable.
func Value(l *autograd.Variable) float64 {
	return l.Value().Data()[0]
}
