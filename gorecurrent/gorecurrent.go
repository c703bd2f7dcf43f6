// Package gorecurrent re-exports the public surface of the recurrent module,
// its engine, and the training helpers built around it.
package gorecurrent

import (
	"github.com/sirupsen/logrus"

	"github.com/FlavioCFOliveira/GoRecurrent/internal/autograd"
	"github.com/FlavioCFOliveira/GoRecurrent/internal/dataset"
	"github.com/FlavioCFOliveira/GoRecurrent/internal/errs"
	"github.com/FlavioCFOliveira/GoRecurrent/internal/layer"
	"github.com/FlavioCFOliveira/GoRecurrent/internal/loss"
	"github.com/FlavioCFOliveira/GoRecurrent/internal/net"
	"github.com/FlavioCFOliveira/GoRecurrent/internal/opt"
	"github.com/FlavioCFOliveira/GoRecurrent/internal/tensor"
)

// Re-export common types and functions for easier access
type (
	Tensor    = tensor.Tensor
	Variable  = autograd.Variable
	Engine    = layer.Engine
	Module    = layer.Module
	Mode      = layer.Mode
	RNNMode   = autograd.RNNMode
	RNNConfig = layer.RNNConfig
	RNN       = layer.RNN
	Linear    = layer.Linear
	Model     = net.Sequential
	Trainer   = net.Trainer
	Optimizer = opt.Optimizer
	Loss      = loss.Loss
	Dataset   = dataset.Dataset
)

// Recurrent modes
const (
	ReLU = autograd.RNNReLU
	Tanh = autograd.RNNTanh
	LSTM = autograd.LSTM
	GRU  = autograd.GRU
)

// Lifecycle modes
const (
	Training   = layer.Training
	Evaluation = layer.Evaluation
)

// Errors
var (
	ErrInvalidArgument = errs.ErrInvalidArgument
	ErrOutOfRange      = errs.ErrOutOfRange
)

// NewEngine returns the CPU engine seeded with seed.
func NewEngine(seed uint64) *autograd.CPU {
	return autograd.NewCPU(seed)
}

// NewRNN creates a recurrent module.
func NewRNN(cfg RNNConfig, engine Engine) (*RNN, error) {
	return layer.NewRNN(cfg, engine)
}

// NumRNNParams returns the parameter buffer length for a configuration.
func NumRNNParams(cfg RNNConfig) (int, error) {
	return autograd.NumRNNParams(cfg.InputSize, cfg.HiddenSize, cfg.NumLayers, cfg.Mode, cfg.Bidirectional)
}

// NewLinear creates a linear projection head.
func NewLinear(in, out int, engine Engine) (*Linear, error) {
	return layer.NewLinear(in, out, engine)
}

// NewDropout creates a dropout module drawing masks from engine.
func NewDropout(p float64, engine layer.Dropper) (*layer.Dropout, error) {
	return layer.NewDropout(p, engine)
}

// NewSequential chains modules into a model.
func NewSequential(modules ...Module) *Model {
	return net.NewSequential(modules...)
}

// NewTrainer creates a trainer; a nil logger gets a default one.
func NewTrainer(model Module, lossFn Loss, optimizer Optimizer, logger *logrus.Logger) *Trainer {
	return net.NewTrainer(model, lossFn, optimizer, logger)
}

// Tensors and variables
func NewTensor(data []float64, shape ...int) *Tensor { return tensor.New(data, shape...) }
func Zeros(shape ...int) *Tensor                     { return tensor.Zeros(shape...) }
func Constant(t *Tensor) *Variable                   { return autograd.Constant(t) }
func Param(t *Tensor) *Variable                      { return autograd.NewVariable(t, true) }

// Losses
var (
	MSE = loss.MSE{}
	L1  = loss.L1{}
)

// Optimizers
func SGD(params []*Variable, lr, momentum float64) Optimizer { return opt.NewSGD(params, lr, momentum) }
func Adam(params []*Variable, lr float64) Optimizer          { return opt.NewAdam(params, lr) }
