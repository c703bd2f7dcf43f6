// Package net trains and persists models built from layer modules.
package net

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/FlavioCFOliveira/GoRecurrent/internal/autograd"
	"github.com/FlavioCFOliveira/GoRecurrent/internal/dataset"
	"github.com/FlavioCFOliveira/GoRecurrent/internal/errs"
	"github.com/FlavioCFOliveira/GoRecurrent/internal/layer"
	"github.com/FlavioCFOliveira/GoRecurrent/internal/loss"
	"github.com/FlavioCFOliveira/GoRecurrent/internal/opt"
	"github.com/FlavioCFOliveira/GoRecurrent/internal/tensor"
)

// Trainer fits a model to (input, target) samples. It runs single-threaded:
// gradient accumulation and optimizer steps are never concurrent.
type Trainer struct {
	model     layer.Module
	loss      loss.Loss
	opt       opt.Optimizer
	log       *logrus.Logger
	callbacks []Callback

	// ClipNorm, when positive, bounds the joint gradient norm before each step.
	ClipNorm float64

	stop bool
}

// NewTrainer creates a trainer. A nil logger gets a default logrus logger.
func NewTrainer(model layer.Module, lossFn loss.Loss, optimizer opt.Optimizer, logger *logrus.Logger) *Trainer {
	if logger == nil {
		logger = logrus.New()
	}
	return &Trainer{
		model: model,
		loss:  lossFn,
		opt:   optimizer,
		log:   logger,
	}
}

// AddCallback registers training callbacks.
func (t *Trainer) AddCallback(cbs ...Callback) {
	t.callbacks = append(t.callbacks, cbs...)
}

// Model returns the trained model.
func (t *Trainer) Model() layer.Module { return t.model }

// Optimizer returns the optimizer.
func (t *Trainer) Optimizer() opt.Optimizer { return t.opt }

// Logger returns the trainer's logger.
func (t *Trainer) Logger() *logrus.Logger { return t.log }

// Stop asks Fit to return after the current epoch.
func (t *Trainer) Stop() { t.stop = true }

func sample(ds dataset.Dataset, i int) (x, y *tensor.Tensor, err error) {
	fields, err := ds.Get(i)
	if err != nil {
		return nil, nil, err
	}
	if len(fields) < 2 {
		return nil, nil, fmt.Errorf("net: sample %d has %d fields, need input and target: %w",
			i, len(fields), errs.ErrInvalidArgument)
	}
	return fields[0], fields[1], nil
}

func (t *Trainer) lossOf(x, y *tensor.Tensor) (*autograd.Variable, error) {
	out, err := t.model.Forward(autograd.Constant(x))
	if err != nil {
		return nil, err
	}
	return t.loss.Forward(out[0], autograd.Constant(y))
}

// TrainStep performs one forward, backward and optimizer step on a single
// sample and returns its loss.
func (t *Trainer) TrainStep(x, y *tensor.Tensor) (float64, error) {
	t.opt.ZeroGrad()
	l, err := t.lossOf(x, y)
	if err != nil {
		return 0, err
	}
	l.Backward()
	if t.ClipNorm > 0 {
		opt.ClipGradNorm(t.model.Params(), t.ClipNorm)
	}
	t.opt.Step()
	return loss.Value(l), nil
}

// Fit trains for up to epochs passes over ds and returns the mean training
// loss of every completed epoch. OnTrainEnd is delivered even when Fit fails.
// The model is left in training mode.
func (t *Trainer) Fit(ds dataset.Dataset, epochs int) ([]float64, error) {
	if ds == nil || ds.Len() == 0 {
		return nil, fmt.Errorf("net: nothing to fit: %w", errs.ErrInvalidArgument)
	}
	t.stop = false
	t.model.SetTraining(true)
	for _, cb := range t.callbacks {
		cb.OnTrainBegin(t)
	}
	// OnTrainEnd runs on every exit, errors included.
	defer func() {
		for _, cb := range t.callbacks {
			cb.OnTrainEnd(t)
		}
	}()

	history := make([]float64, 0, epochs)
	for epoch := 1; epoch <= epochs && !t.stop; epoch++ {
		for _, cb := range t.callbacks {
			cb.OnEpochBegin(epoch, t)
		}

		var total float64
		for i := 0; i < ds.Len(); i++ {
			for _, cb := range t.callbacks {
				cb.OnBatchBegin(i, t)
			}
			x, y, err := sample(ds, i)
			if err != nil {
				return history, err
			}
			l, err := t.TrainStep(x, y)
			if err != nil {
				return history, fmt.Errorf("net: epoch %d sample %d: %w", epoch, i, err)
			}
			if math.IsNaN(l) || math.IsInf(l, 0) {
				return history, fmt.Errorf("net: epoch %d sample %d: loss diverged to %v", epoch, i, l)
			}
			total += l
			for _, cb := range t.callbacks {
				cb.OnBatchEnd(i, l, t)
			}
		}

		mean := total / float64(ds.Len())
		history = append(history, mean)
		t.log.WithFields(logrus.Fields{
			"epoch": epoch,
			"loss":  mean,
			"lr":    t.opt.LearningRate(),
		}).Debug("epoch complete")
		for _, cb := range t.callbacks {
			cb.OnEpochEnd(epoch, mean, t)
		}
	}
	return history, nil
}

// Evaluate returns the mean loss over ds with the model in evaluation mode.
// The previous mode is restored afterwards.
func (t *Trainer) Evaluate(ds dataset.Dataset) (float64, error) {
	if ds == nil || ds.Len() == 0 {
		return 0, fmt.Errorf("net: nothing to evaluate: %w", errs.ErrInvalidArgument)
	}
	defer t.model.SetTraining(t.model.IsTraining())
	t.model.SetTraining(false)

	var total float64
	for i := 0; i < ds.Len(); i++ {
		x, y, err := sample(ds, i)
		if err != nil {
			return 0, err
		}
		l, err := t.lossOf(x, y)
		if err != nil {
			return 0, fmt.Errorf("net: evaluate sample %d: %w", i, err)
		}
		total += loss.Value(l)
	}
	return total / float64(ds.Len()), nil
}

// Predict runs the model on x in evaluation mode and returns its first output.
func (t *Trainer) Predict(x *tensor.Tensor) (*tensor.Tensor, error) {
	defer t.model.SetTraining(t.model.IsTraining())
	t.model.SetTraining(false)

	out, err := t.model.Forward(autograd.Constant(x))
	if err != nil {
		return nil, err
	}
	return out[0].Value(), nil
}
