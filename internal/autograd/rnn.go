package autograd

import (
	"fmt"
	"strings"

	"github.com/FlavioCFOliveira/GoRecurrent/internal/errs"
	"github.com/FlavioCFOliveira/GoRecurrent/internal/tensor"
)

// RNNMode selects the recurrent cell.
type RNNMode int

const (
	// RNNReLU is a plain recurrent cell with a ReLU nonlinearity.
	RNNReLU RNNMode = iota
	// RNNTanh is a plain recurrent cell with a tanh nonlinearity.
	RNNTanh
	// LSTM is a long short-term memory cell (gates i, f, g, o).
	LSTM
	// GRU is a gated recurrent unit (gates r, z, n).
	GRU
)

var modeNames = map[RNNMode]string{
	RNNReLU: "relu",
	RNNTanh: "tanh",
	LSTM:    "lstm",
	GRU:     "gru",
}

func (m RNNMode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("RNNMode(%d)", int(m))
}

// Valid reports whether m is one of the defined modes.
func (m RNNMode) Valid() bool {
	_, ok := modeNames[m]
	return ok
}

// Gates returns the number of gate blocks stacked in each weight matrix.
func (m RNNMode) Gates() int {
	switch m {
	case LSTM:
		return 4
	case GRU:
		return 3
	default:
		return 1
	}
}

// HasCellState reports whether the mode carries a cell state.
func (m RNNMode) HasCellState() bool {
	return m == LSTM
}

// ParseRNNMode parses the names produced by String.
func ParseRNNMode(s string) (RNNMode, error) {
	for m, name := range modeNames {
		if strings.EqualFold(s, name) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("autograd: unknown rnn mode %q: %w", s, errs.ErrInvalidArgument)
}

// MarshalText implements encoding.TextMarshaler.
func (m RNNMode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("autograd: cannot marshal %v: %w", m, errs.ErrInvalidArgument)
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *RNNMode) UnmarshalText(b []byte) error {
	v, err := ParseRNNMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// rnnBlock holds the buffer offsets of one (layer, direction) cell.
type rnnBlock struct {
	inSize             int
	wih, whh, bih, bhh int
}

// rnnLayout describes how a flat parameter buffer is carved up. All weight
// matrices come first, ordered by layer then direction, each as W_ih then
// W_hh; the bias vectors follow in the same order, b_ih then b_hh.
type rnnLayout struct {
	hidden, layers, dirs, gates int
	blocks                      []rnnBlock
	total                       int
}

func newRNNLayout(inputSize, hiddenSize, numLayers int, mode RNNMode, bidirectional bool) (*rnnLayout, error) {
	if inputSize <= 0 || hiddenSize <= 0 || numLayers <= 0 {
		return nil, fmt.Errorf("autograd: rnn sizes must be positive (input=%d hidden=%d layers=%d): %w",
			inputSize, hiddenSize, numLayers, errs.ErrInvalidArgument)
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("autograd: %v: %w", mode, errs.ErrInvalidArgument)
	}
	l := &rnnLayout{hidden: hiddenSize, layers: numLayers, dirs: 1, gates: mode.Gates()}
	if bidirectional {
		l.dirs = 2
	}
	gh := l.gates * hiddenSize
	l.blocks = make([]rnnBlock, numLayers*l.dirs)

	off := 0
	for layer := 0; layer < numLayers; layer++ {
		in := inputSize
		if layer > 0 {
			in = l.dirs * hiddenSize
		}
		for d := 0; d < l.dirs; d++ {
			b := &l.blocks[layer*l.dirs+d]
			b.inSize = in
			b.wih = off
			off += gh * in
			b.whh = off
			off += gh * hiddenSize
		}
	}
	for i := range l.blocks {
		l.blocks[i].bih = off
		off += gh
		l.blocks[i].bhh = off
		off += gh
	}
	l.total = off
	return l, nil
}

// NumRNNParams returns the length of the flat parameter buffer the RNN
// primitive expects for the given configuration. It is a pure function.
func NumRNNParams(inputSize, hiddenSize, numLayers int, mode RNNMode, bidirectional bool) (int, error) {
	l, err := newRNNLayout(inputSize, hiddenSize, numLayers, mode, bidirectional)
	if err != nil {
		return 0, err
	}
	return l.total, nil
}

// MaskFunc returns a dropout mask of the given 2-D shape for drop probability p.
type MaskFunc func(p float64, rows, cols int) *tensor.Tensor

// RNN runs a multi-layer, optionally bidirectional recurrent network over a
// time-major input of shape [seqLen, batch, inputSize].
//
// hidden and cell have shape [numLayers*dirs, batch, hiddenSize]; either may
// be nil or empty, in which case zeros are used. cell is only read in LSTM
// mode. When dropout > 0, mask supplies the dropout masks applied to the
// outputs of every layer but the last.
//
// It returns the output [seqLen, batch, dirs*hiddenSize], the final hidden
// state and the final cell state (empty for modes without one).
func RNN(input, hidden, cell, weights *Variable, hiddenSize, numLayers int, mode RNNMode,
	bidirectional bool, dropout float64, mask MaskFunc) (y, hy, cy *Variable, err error) {
	if input.IsEmpty() || input.value.Dims() != 3 {
		return nil, nil, nil, fmt.Errorf("autograd: rnn input must be [seqLen, batch, features]: %w", errs.ErrInvalidArgument)
	}
	if dropout < 0 || dropout >= 1 {
		return nil, nil, nil, fmt.Errorf("autograd: dropout %v outside [0, 1): %w", dropout, errs.ErrInvalidArgument)
	}
	if dropout > 0 && mask == nil {
		return nil, nil, nil, fmt.Errorf("autograd: dropout requires a mask source: %w", errs.ErrInvalidArgument)
	}
	seqLen, batch, features := input.value.Dim(0), input.value.Dim(1), input.value.Dim(2)

	layout, err := newRNNLayout(features, hiddenSize, numLayers, mode, bidirectional)
	if err != nil {
		return nil, nil, nil, err
	}
	if weights.IsEmpty() || weights.value.Dims() != 1 || weights.value.Size() != layout.total {
		return nil, nil, nil, fmt.Errorf("autograd: rnn expects %d weights: %w", layout.total, errs.ErrInvalidArgument)
	}
	stateShape := []int{numLayers * layout.dirs, batch, hiddenSize}
	if !hidden.IsEmpty() && !hidden.value.HasShape(stateShape...) {
		return nil, nil, nil, fmt.Errorf("autograd: hidden state shape %v, expected %v: %w",
			hidden.Shape(), stateShape, errs.ErrInvalidArgument)
	}
	if mode.HasCellState() && !cell.IsEmpty() && !cell.value.HasShape(stateShape...) {
		return nil, nil, nil, fmt.Errorf("autograd: cell state shape %v, expected %v: %w",
			cell.Shape(), stateShape, errs.ErrInvalidArgument)
	}

	initial := func(state *Variable, k int) *Variable {
		if state.IsEmpty() {
			return Constant(tensor.Zeros(batch, hiddenSize))
		}
		return Select(state, k)
	}

	layerIn := make([]*Variable, seqLen)
	for t := range layerIn {
		layerIn[t] = Select(input, t)
	}
	hs := make([]*Variable, len(layout.blocks))
	cs := make([]*Variable, len(layout.blocks))
	gh := layout.gates * hiddenSize

	for l := 0; l < numLayers; l++ {
		dirOut := make([][]*Variable, layout.dirs)
		for d := 0; d < layout.dirs; d++ {
			k := l*layout.dirs + d
			b := layout.blocks[k]
			wih := Narrow(weights, b.wih, gh, b.inSize)
			whh := Narrow(weights, b.whh, gh, hiddenSize)
			bih := Narrow(weights, b.bih, gh)
			bhh := Narrow(weights, b.bhh, gh)

			h := initial(hidden, k)
			var c *Variable
			if mode.HasCellState() {
				c = initial(cell, k)
			}
			outs := make([]*Variable, seqLen)
			for s := 0; s < seqLen; s++ {
				t := s
				if d == 1 {
					t = seqLen - 1 - s
				}
				gx := AddBias(MatMulT(layerIn[t], wih), bih)
				gr := AddBias(MatMulT(h, whh), bhh)
				h, c = cellStep(mode, gx, gr, h, c, hiddenSize)
				outs[t] = h
			}
			dirOut[d] = outs
			hs[k], cs[k] = h, c
		}

		next := make([]*Variable, seqLen)
		for t := range next {
			if layout.dirs == 2 {
				next[t] = Concat(dirOut[0][t], dirOut[1][t])
			} else {
				next[t] = dirOut[0][t]
			}
			if dropout > 0 && l < numLayers-1 {
				next[t] = Mul(next[t], Constant(mask(dropout, batch, layout.dirs*hiddenSize)))
			}
		}
		layerIn = next
	}

	y = Stack(layerIn...)
	hy = Stack(hs...)
	if mode.HasCellState() {
		cy = Stack(cs...)
	} else {
		cy = Empty()
	}
	return y, hy, cy, nil
}

// cellStep advances one time step. gx and gr are the input and recurrent
// projections (bias included) of shape [batch, gates*hidden].
func cellStep(mode RNNMode, gx, gr, h, c *Variable, hidden int) (*Variable, *Variable) {
	gate := func(v *Variable, i int) *Variable {
		return Columns(v, i*hidden, (i+1)*hidden)
	}
	switch mode {
	case RNNReLU:
		return ReLU(Add(gx, gr)), nil
	case RNNTanh:
		return Tanh(Add(gx, gr)), nil
	case LSTM:
		g := Add(gx, gr)
		i := Sigmoid(gate(g, 0))
		f := Sigmoid(gate(g, 1))
		cand := Tanh(gate(g, 2))
		o := Sigmoid(gate(g, 3))
		c = Add(Mul(f, c), Mul(i, cand))
		return Mul(o, Tanh(c)), c
	case GRU:
		r := Sigmoid(Add(gate(gx, 0), gate(gr, 0)))
		z := Sigmoid(Add(gate(gx, 1), gate(gr, 1)))
		n := Tanh(Add(gate(gx, 2), Mul(r, gate(gr, 2))))
		// (1-z)∘n + z∘h
		return Add(n, Mul(z, Sub(h, n))), nil
	}
	panic(fmt.Sprintf("autograd: unhandled rnn mode %v", mode))
}
