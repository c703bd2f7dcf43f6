package layer

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/FlavioCFOliveira/GoRecurrent/internal/autograd"
	"github.com/FlavioCFOliveira/GoRecurrent/internal/errs"
)

// RNN is a recurrent layer (plain ReLU/tanh, LSTM or GRU; stacked; optionally
// bidirectional) backed by the engine's recurrent primitive.
//
// Its only learnable state is one flat parameter buffer sized by the engine's
// sizing oracle. The module never looks inside the buffer; the engine owns
// its layout. Forward only reads the buffer, so concurrent forwards are safe
// as long as the caller serializes optimizer updates.
type RNN struct {
	trainable

	cfg    RNNConfig
	engine Engine
	params *autograd.Variable
}

// NewRNN validates cfg and allocates the parameter buffer, drawn from
// U[-1/sqrt(hidden), 1/sqrt(hidden)]. The module starts in training mode.
func NewRNN(cfg RNNConfig, engine Engine) (*RNN, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if engine == nil {
		return nil, fmt.Errorf("layer: nil engine: %w", errs.ErrInvalidArgument)
	}
	n, err := engine.NumRNNParams(cfg.InputSize, cfg.HiddenSize, cfg.NumLayers, cfg.Mode, cfg.Bidirectional)
	if err != nil {
		return nil, fmt.Errorf("layer: size rnn parameters: %w: %w", errs.ErrInvalidArgument, err)
	}

	stdv := math.Sqrt(1.0 / float64(cfg.HiddenSize))
	r := &RNN{
		cfg:    cfg,
		engine: engine,
		params: engine.Uniform([]int{n}, -stdv, stdv, true),
	}
	logrus.WithFields(logrus.Fields{
		"module": r.Describe(),
		"params": n,
	}).Debug("initialized recurrent parameters")
	return r, nil
}

// request is a length-checked forward call: the input plus whichever state
// tensors the caller threaded through.
type request struct {
	input, hidden, cell *autograd.Variable
	arity               int
}

func newRequest(inputs []*autograd.Variable) (request, error) {
	if len(inputs) < 1 || len(inputs) > 3 {
		return request{}, fmt.Errorf("layer: invalid inputs size %d: %w", len(inputs), errs.ErrInvalidArgument)
	}
	q := request{input: inputs[0], arity: len(inputs)}
	if q.arity >= 2 {
		q.hidden = inputs[1]
	}
	if q.arity == 3 {
		q.cell = inputs[2]
	}
	return q, nil
}

// result keeps only the outputs matching the state the caller supplied.
func (q request) result(y, hy, cy *autograd.Variable) []*autograd.Variable {
	out := make([]*autograd.Variable, 1, q.arity)
	out[0] = y
	if q.arity >= 2 {
		out = append(out, hy)
	}
	if q.arity == 3 {
		out = append(out, cy)
	}
	return out
}

// Apply runs the module in an explicit mode. inputs is [x], [x, h] or
// [x, h, c]; the result has the same length: [y], [y, hy] or [y, hy, cy].
// Dropout is applied only in Training mode.
func (r *RNN) Apply(mode Mode, inputs ...*autograd.Variable) ([]*autograd.Variable, error) {
	q, err := newRequest(inputs)
	if err != nil {
		return nil, err
	}

	dropout := 0.0
	if mode == Training {
		dropout = r.cfg.DropoutProb
	}
	y, hy, cy, err := r.engine.RNN(q.input, q.hidden, q.cell, r.params,
		r.cfg.HiddenSize, r.cfg.NumLayers, r.cfg.Mode, r.cfg.Bidirectional, dropout)
	if err != nil {
		return nil, fmt.Errorf("layer: %s: %w", r.Describe(), err)
	}
	return q.result(y, hy, cy), nil
}

// Forward runs the module in its current mode. See Apply.
func (r *RNN) Forward(inputs ...*autograd.Variable) ([]*autograd.Variable, error) {
	return r.Apply(r.Mode(), inputs...)
}

// ForwardInput runs the module without initial state and returns only the output.
func (r *RNN) ForwardInput(x *autograd.Variable) (*autograd.Variable, error) {
	res, err := r.Forward(x)
	if err != nil {
		return nil, err
	}
	return res[0], nil
}

// ForwardHidden runs the module from hidden state h and returns the output
// and the final hidden state.
func (r *RNN) ForwardHidden(x, h *autograd.Variable) (y, hy *autograd.Variable, err error) {
	res, err := r.Forward(x, h)
	if err != nil {
		return nil, nil, err
	}
	return res[0], res[1], nil
}

// ForwardCell runs the module from hidden state h and cell state c and
// returns the output and both final states. The cell state is empty for
// modes without one.
func (r *RNN) ForwardCell(x, h, c *autograd.Variable) (y, hy, cy *autograd.Variable, err error) {
	res, err := r.Forward(x, h, c)
	if err != nil {
		return nil, nil, nil, err
	}
	return res[0], res[1], res[2], nil
}

// Params returns the parameter buffer.
func (r *RNN) Params() []*autograd.Variable {
	return []*autograd.Variable{r.params}
}

// Weights returns the flat parameter buffer.
func (r *RNN) Weights() *autograd.Variable {
	return r.params
}

// NumParams returns the length of the parameter buffer.
func (r *RNN) NumParams() int {
	return r.params.Value().Size()
}

// Config returns the module configuration.
func (r *RNN) Config() RNNConfig {
	return r.cfg
}

// OutputSize is the width of each output time step.
func (r *RNN) OutputSize() int {
	return r.cfg.OutputSize()
}

// Describe renders the configuration, e.g.
// "LSTM (10->40) (2-layer) (bidirectional) (dropout=0.5)".
func (r *RNN) Describe() string {
	var sb strings.Builder
	switch r.cfg.Mode {
	case autograd.RNNReLU:
		sb.WriteString("RNN (relu)")
	case autograd.RNNTanh:
		sb.WriteString("RNN (tanh)")
	case autograd.LSTM:
		sb.WriteString("LSTM")
	case autograd.GRU:
		sb.WriteString("GRU")
	}
	fmt.Fprintf(&sb, " (%d->%d)", r.cfg.InputSize, r.cfg.OutputSize())
	if r.cfg.NumLayers > 1 {
		fmt.Fprintf(&sb, " (%d-layer)", r.cfg.NumLayers)
	}
	if r.cfg.Bidirectional {
		sb.WriteString(" (bidirectional)")
	}
	if r.cfg.DropoutProb > 0 {
		fmt.Fprintf(&sb, " (dropout=%s)", strconv.FormatFloat(r.cfg.DropoutProb, 'g', 6, 64))
	}
	return sb.String()
}

func (r *RNN) String() string { return r.Describe() }
