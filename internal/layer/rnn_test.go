package layer

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/FlavioCFOliveira/GoRecurrent/internal/autograd"
	"github.com/FlavioCFOliveira/GoRecurrent/internal/errs"
	"github.com/FlavioCFOliveira/GoRecurrent/internal/tensor"
)

// rnnCall records the arguments of one recurrent primitive invocation.
type rnnCall struct {
	input, hidden, cell, weights *autograd.Variable
	hiddenSize, numLayers        int
	mode                         autograd.RNNMode
	bidirectional                bool
	dropout                      float64
}

// recordingEngine wraps the CPU engine and remembers every RNN call.
type recordingEngine struct {
	*autograd.CPU
	calls []rnnCall
}

func newRecordingEngine() *recordingEngine {
	return &recordingEngine{CPU: autograd.NewCPU(7)}
}

func (e *recordingEngine) RNN(input, hidden, cell, weights *autograd.Variable, hiddenSize, numLayers int,
	mode autograd.RNNMode, bidirectional bool, dropout float64) (y, hy, cy *autograd.Variable, err error) {
	e.calls = append(e.calls, rnnCall{input, hidden, cell, weights, hiddenSize, numLayers, mode, bidirectional, dropout})
	return e.CPU.RNN(input, hidden, cell, weights, hiddenSize, numLayers, mode, bidirectional, dropout)
}

func sequence(t, b, f int) *autograd.Variable {
	x := tensor.Zeros(t, b, f)
	for i := range x.Data() {
		x.Data()[i] = math.Cos(0.37 * float64(i))
	}
	return autograd.Constant(x)
}

func mustRNN(t *testing.T, cfg RNNConfig, e Engine) *RNN {
	t.Helper()
	r, err := NewRNN(cfg, e)
	if err != nil {
		t.Fatalf("NewRNN(%+v): %v", cfg, err)
	}
	return r
}

func TestNewRNNAllocatesOracleSizedBuffer(t *testing.T) {
	e := autograd.NewCPU(1)
	cfg := RNNConfig{InputSize: 10, HiddenSize: 20, NumLayers: 2, Mode: autograd.LSTM, Bidirectional: true}
	r := mustRNN(t, cfg, e)

	want, err := autograd.NumRNNParams(10, 20, 2, autograd.LSTM, true)
	if err != nil {
		t.Fatal(err)
	}
	if r.NumParams() != want {
		t.Errorf("NumParams = %d, expected %d", r.NumParams(), want)
	}
	if len(r.Params()) != 1 || r.Params()[0] != r.Weights() {
		t.Errorf("Params should expose exactly the parameter buffer")
	}
	if !r.Weights().RequiresGrad() {
		t.Errorf("parameter buffer must be trainable")
	}

	stdv := math.Sqrt(1.0 / 20)
	for i, v := range r.Weights().Value().Data() {
		if v < -stdv || v >= stdv {
			t.Fatalf("param[%d] = %v outside [-%v, %v)", i, v, stdv, stdv)
		}
	}
	if !r.IsTraining() {
		t.Errorf("new module should start in training mode")
	}
}

func TestNewRNNRejectsBadConfig(t *testing.T) {
	e := autograd.NewCPU(1)
	tests := []struct {
		name string
		cfg  RNNConfig
	}{
		{"zero hidden", RNNConfig{InputSize: 4, HiddenSize: 0, NumLayers: 1, Mode: autograd.LSTM}},
		{"zero input", RNNConfig{InputSize: 0, HiddenSize: 4, NumLayers: 1, Mode: autograd.GRU}},
		{"zero layers", RNNConfig{InputSize: 4, HiddenSize: 4, NumLayers: 0, Mode: autograd.RNNTanh}},
		{"unknown mode", RNNConfig{InputSize: 4, HiddenSize: 4, NumLayers: 1, Mode: autograd.RNNMode(42)}},
		{"dropout one", RNNConfig{InputSize: 4, HiddenSize: 4, NumLayers: 2, Mode: autograd.GRU, DropoutProb: 1}},
		{"negative dropout", RNNConfig{InputSize: 4, HiddenSize: 4, NumLayers: 2, Mode: autograd.GRU, DropoutProb: -0.1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRNN(tt.cfg, e)
			if !errors.Is(err, errs.ErrInvalidArgument) {
				t.Errorf("NewRNN error = %v, expected ErrInvalidArgument", err)
			}
		})
	}

	if _, err := NewRNN(NewRNNConfig(4, 4, autograd.LSTM), nil); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Errorf("nil engine error = %v, expected ErrInvalidArgument", err)
	}
}

func TestRNNOutputArityMirrorsInputArity(t *testing.T) {
	e := autograd.NewCPU(3)
	cfg := RNNConfig{InputSize: 3, HiddenSize: 4, NumLayers: 2, Mode: autograd.LSTM, Bidirectional: true}
	r := mustRNN(t, cfg, e)
	x := sequence(5, 2, 3)
	h := autograd.Constant(tensor.Zeros(4, 2, 4))
	c := autograd.Constant(tensor.Zeros(4, 2, 4))

	for _, inputs := range [][]*autograd.Variable{{x}, {x, h}, {x, h, c}} {
		out, err := r.Forward(inputs...)
		if err != nil {
			t.Fatalf("Forward(%d inputs): %v", len(inputs), err)
		}
		if len(out) != len(inputs) {
			t.Errorf("Forward(%d inputs) returned %d outputs", len(inputs), len(out))
		}
		if !out[0].Value().HasShape(5, 2, 8) {
			t.Errorf("output shape = %v, expected [5 2 8]", out[0].Shape())
		}
		if len(out) > 1 && !out[1].Value().HasShape(4, 2, 4) {
			t.Errorf("hidden shape = %v, expected [4 2 4]", out[1].Shape())
		}
		if len(out) > 2 && !out[2].Value().HasShape(4, 2, 4) {
			t.Errorf("cell shape = %v, expected [4 2 4]", out[2].Shape())
		}
	}
}

func TestRNNInvalidArityDoesNotReachEngine(t *testing.T) {
	e := newRecordingEngine()
	r := mustRNN(t, NewRNNConfig(3, 4, autograd.GRU), e)
	before := r.Weights().Value().Clone()
	x := sequence(2, 1, 3)

	for _, inputs := range [][]*autograd.Variable{nil, {x, x, x, x}} {
		out, err := r.Forward(inputs...)
		if !errors.Is(err, errs.ErrInvalidArgument) {
			t.Errorf("Forward(%d inputs) error = %v, expected ErrInvalidArgument", len(inputs), err)
		}
		if err != nil && !strings.Contains(err.Error(), "invalid inputs size") {
			t.Errorf("error %q should mention the inputs size", err)
		}
		if out != nil {
			t.Errorf("Forward(%d inputs) returned outputs alongside an error", len(inputs))
		}
	}
	if len(e.calls) != 0 {
		t.Errorf("engine was called %d times for malformed input lists", len(e.calls))
	}
	if !r.Weights().Value().EqualApprox(before, 0) {
		t.Errorf("parameters changed after a rejected call")
	}
}

func TestRNNDropoutFollowsMode(t *testing.T) {
	e := newRecordingEngine()
	cfg := RNNConfig{InputSize: 3, HiddenSize: 4, NumLayers: 2, Mode: autograd.LSTM, DropoutProb: 0.3}
	r := mustRNN(t, cfg, e)
	x := sequence(4, 2, 3)

	if _, err := r.Forward(x); err != nil {
		t.Fatal(err)
	}
	r.SetTraining(false)
	if _, err := r.Forward(x); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Apply(Training, x); err != nil {
		t.Fatal(err)
	}

	if len(e.calls) != 3 {
		t.Fatalf("engine calls = %d, expected 3", len(e.calls))
	}
	wantDropout := []float64{0.3, 0, 0.3}
	for i, call := range e.calls {
		if call.dropout != wantDropout[i] {
			t.Errorf("call %d dropout = %v, expected %v", i, call.dropout, wantDropout[i])
		}
		if call.weights != r.Weights() {
			t.Errorf("call %d did not receive the module's own parameter buffer", i)
		}
		if call.hiddenSize != 4 || call.numLayers != 2 || call.mode != autograd.LSTM || call.bidirectional {
			t.Errorf("call %d configuration = %+v", i, call)
		}
	}
}

func TestRNNStateForwarding(t *testing.T) {
	e := newRecordingEngine()
	r := mustRNN(t, NewRNNConfig(3, 4, autograd.LSTM), e)
	x := sequence(2, 1, 3)
	h := autograd.Constant(tensor.Full(0.1, 1, 1, 4))
	c := autograd.Constant(tensor.Full(-0.2, 1, 1, 4))

	if _, err := r.ForwardInput(x); err != nil {
		t.Fatal(err)
	}
	if _, _, err := r.ForwardHidden(x, h); err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := r.ForwardCell(x, h, c); err != nil {
		t.Fatal(err)
	}

	if got := e.calls[0]; got.hidden != nil || got.cell != nil {
		t.Errorf("single input should pass absent state, got hidden=%v cell=%v", got.hidden, got.cell)
	}
	if got := e.calls[1]; got.hidden != h || got.cell != nil {
		t.Errorf("two inputs should pass only the hidden state")
	}
	if got := e.calls[2]; got.hidden != h || got.cell != c {
		t.Errorf("three inputs should pass both states")
	}
}

func TestRNNEmptyStateMeansZero(t *testing.T) {
	r := mustRNN(t, NewRNNConfig(3, 4, autograd.GRU), autograd.NewCPU(5))
	x := sequence(3, 2, 3)

	y1, err := r.ForwardInput(x)
	if err != nil {
		t.Fatal(err)
	}
	y2, _, err := r.ForwardHidden(x, autograd.Empty())
	if err != nil {
		t.Fatal(err)
	}
	y3, _, err := r.ForwardHidden(x, autograd.Constant(tensor.Zeros(1, 2, 4)))
	if err != nil {
		t.Fatal(err)
	}
	if !y1.Value().EqualApprox(y2.Value(), 0) || !y1.Value().EqualApprox(y3.Value(), 1e-12) {
		t.Errorf("absent, empty and zero hidden states should agree")
	}
}

func TestRNNCellStateEmptyForNonLSTM(t *testing.T) {
	for _, mode := range []autograd.RNNMode{autograd.RNNReLU, autograd.RNNTanh, autograd.GRU} {
		r := mustRNN(t, NewRNNConfig(2, 3, mode), autograd.NewCPU(2))
		_, hy, cy, err := r.ForwardCell(sequence(2, 1, 2), autograd.Empty(), autograd.Empty())
		if err != nil {
			t.Fatalf("%v: %v", mode, err)
		}
		if hy.IsEmpty() {
			t.Errorf("%v: hidden output is empty", mode)
		}
		if !cy.IsEmpty() {
			t.Errorf("%v: cell output should be empty, got %v", mode, cy.Shape())
		}
	}
}

func TestRNNEvaluationIsDeterministic(t *testing.T) {
	cfg := RNNConfig{InputSize: 3, HiddenSize: 5, NumLayers: 3, Mode: autograd.GRU, DropoutProb: 0.5}
	r := mustRNN(t, cfg, autograd.NewCPU(11))
	r.Eval()
	x := sequence(6, 2, 3)

	a, err := r.ForwardInput(x)
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.ForwardInput(x)
	if err != nil {
		t.Fatal(err)
	}
	if !a.Value().EqualApprox(b.Value(), 0) {
		t.Errorf("evaluation-mode forwards differ")
	}

	r.Train()
	c, err := r.ForwardInput(x)
	if err != nil {
		t.Fatal(err)
	}
	if c.Value().EqualApprox(a.Value(), 1e-12) {
		t.Errorf("training-mode forward with dropout 0.5 matched evaluation output")
	}
}

func TestRNNEngineErrorsPropagate(t *testing.T) {
	r := mustRNN(t, NewRNNConfig(3, 4, autograd.RNNTanh), autograd.NewCPU(1))
	_, err := r.ForwardInput(sequence(2, 1, 5))
	if !errors.Is(err, errs.ErrInvalidArgument) {
		t.Errorf("feature mismatch error = %v, expected ErrInvalidArgument", err)
	}
}

func TestRNNGradientReachesBuffer(t *testing.T) {
	r := mustRNN(t, RNNConfig{InputSize: 2, HiddenSize: 3, NumLayers: 2, Mode: autograd.LSTM, Bidirectional: true},
		autograd.NewCPU(4))
	y, err := r.ForwardInput(sequence(3, 2, 2))
	if err != nil {
		t.Fatal(err)
	}
	autograd.Sum(y).Backward()

	g := r.Weights().Grad()
	if g == nil || g.Size() != r.NumParams() {
		t.Fatalf("buffer gradient missing or misshapen: %v", g)
	}
	nonzero := 0
	for _, v := range g.Data() {
		if v != 0 {
			nonzero++
		}
	}
	if nonzero == 0 {
		t.Errorf("buffer gradient is all zeros")
	}
}

func TestRNNDescribe(t *testing.T) {
	tests := []struct {
		cfg  RNNConfig
		want string
	}{
		{RNNConfig{InputSize: 10, HiddenSize: 20, NumLayers: 2, Mode: autograd.LSTM, Bidirectional: true, DropoutProb: 0.5},
			"LSTM (10->40) (2-layer) (bidirectional) (dropout=0.5)"},
		{NewRNNConfig(8, 16, autograd.RNNTanh), "RNN (tanh) (8->16)"},
		{NewRNNConfig(8, 16, autograd.RNNReLU), "RNN (relu) (8->16)"},
		{NewRNNConfig(4, 8, autograd.RNNReLU), "RNN (relu) (4->8)"},
		{RNNConfig{InputSize: 4, HiddenSize: 6, NumLayers: 3, Mode: autograd.GRU, DropoutProb: 0.25},
			"GRU (4->6) (3-layer) (dropout=0.25)"},
		{RNNConfig{InputSize: 1, HiddenSize: 2, NumLayers: 1, Mode: autograd.GRU, Bidirectional: true},
			"GRU (1->4) (bidirectional)"},
	}
	for _, tt := range tests {
		r := mustRNN(t, tt.cfg, autograd.NewCPU(1))
		if got := r.Describe(); got != tt.want {
			t.Errorf("Describe() = %q, expected %q", got, tt.want)
		}
		if r.String() != r.Describe() {
			t.Errorf("String() and Describe() disagree")
		}
	}
}

func TestLoadRNNConfig(t *testing.T) {
	cfg, err := LoadRNNConfig(strings.NewReader(
		`{"input_size": 6, "hidden_size": 12, "mode": "gru", "bidirectional": true, "dropout": 0.2}`))
	if err != nil {
		t.Fatal(err)
	}
	want := RNNConfig{InputSize: 6, HiddenSize: 12, NumLayers: 1, Mode: autograd.GRU, Bidirectional: true, DropoutProb: 0.2}
	if cfg != want {
		t.Errorf("LoadRNNConfig = %+v, expected %+v", cfg, want)
	}
	if cfg.OutputSize() != 24 {
		t.Errorf("OutputSize = %d, expected 24", cfg.OutputSize())
	}

	bad := []string{
		`{"input_size": 6, "hidden_size": 12, "mode": "bogus"}`,
		`{"input_size": 6, "hidden_size": 0, "mode": "lstm"}`,
		`{"input_size": 6, "hidden_size": 2, "mode": "lstm", "extra": 1}`,
	}
	for _, doc := range bad {
		if _, err := LoadRNNConfig(strings.NewReader(doc)); err == nil {
			t.Errorf("LoadRNNConfig(%s) succeeded", doc)
		}
	}
}
