package net

import (
	"fmt"
	"io"
	"strings"

	"github.com/c2h5oh/datasize"

	"github.com/FlavioCFOliveira/GoRecurrent/internal/autograd"
	"github.com/FlavioCFOliveira/GoRecurrent/internal/errs"
	"github.com/FlavioCFOliveira/GoRecurrent/internal/layer"
)

// Sequential chains modules. The first module receives the caller's inputs;
// every later module receives the first output of its predecessor. The
// result is the output list of the last module.
type Sequential struct {
	modules []layer.Module
}

// NewSequential creates a new Sequential model.
func NewSequential(modules ...layer.Module) *Sequential {
	return &Sequential{modules: modules}
}

// Add appends a module.
func (s *Sequential) Add(m layer.Module) {
	s.modules = append(s.modules, m)
}

// Modules returns the contained modules in order.
func (s *Sequential) Modules() []layer.Module {
	return s.modules
}

// Forward runs every module in order.
func (s *Sequential) Forward(inputs ...*autograd.Variable) ([]*autograd.Variable, error) {
	if len(s.modules) == 0 {
		return nil, fmt.Errorf("net: empty sequential model: %w", errs.ErrInvalidArgument)
	}
	out := inputs
	for i, m := range s.modules {
		if i > 0 {
			out = out[:1]
		}
		var err error
		out, err = m.Forward(out...)
		if err != nil {
			return nil, fmt.Errorf("net: module %d: %w", i, err)
		}
	}
	return out, nil
}

// Params returns the parameters of every module in order.
func (s *Sequential) Params() []*autograd.Variable {
	var ps []*autograd.Variable
	for _, m := range s.modules {
		ps = append(ps, m.Params()...)
	}
	return ps
}

// SetTraining sets the training mode for every module.
func (s *Sequential) SetTraining(training bool) {
	for _, m := range s.modules {
		m.SetTraining(training)
	}
}

// IsTraining reports whether the first module is in training mode.
func (s *Sequential) IsTraining() bool {
	return len(s.modules) > 0 && s.modules[0].IsTraining()
}

// Describe lists the module descriptions joined by " -> ".
func (s *Sequential) Describe() string {
	parts := make([]string, len(s.modules))
	for i, m := range s.modules {
		parts[i] = m.Describe()
	}
	return "Sequential [" + strings.Join(parts, " -> ") + "]"
}

func (s *Sequential) String() string { return s.Describe() }

// NumParams counts the scalar parameters of the model.
func (s *Sequential) NumParams() int {
	return countParams(s.Params())
}

// ParamBytes is the storage taken by n float64 parameters.
func ParamBytes(n int) datasize.ByteSize {
	return datasize.ByteSize(n) * 8 * datasize.B
}

func countParams(ps []*autograd.Variable) int {
	n := 0
	for _, p := range ps {
		n += p.Value().Size()
	}
	return n
}

// Summary writes a table of the modules and their parameter counts.
func (s *Sequential) Summary(w io.Writer) {
	const rule = "_________________________________________________________________"
	fmt.Fprintln(w, "Model: Sequential")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "%-6s %-46s %-10s\n", "#", "Module", "Param #")
	fmt.Fprintln(w, strings.Repeat("=", len(rule)))

	for i, m := range s.modules {
		fmt.Fprintf(w, "%-6d %-46s %-10d\n", i, m.Describe(), countParams(m.Params()))
	}
	fmt.Fprintln(w, strings.Repeat("=", len(rule)))
	fmt.Fprintf(w, "Total params: %d\n", s.NumParams())
	fmt.Fprintf(w, "Param memory: %s\n", ParamBytes(s.NumParams()).HumanReadable())
	fmt.Fprintln(w, rule)
}
