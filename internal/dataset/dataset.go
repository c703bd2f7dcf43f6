// Package dataset provides indexed collections of training samples.
//
// A sample is an ordered list of tensors (its fields); by convention the
// trainer reads field 0 as the input and field 1 as the target.
package dataset

import (
	"fmt"

	"github.com/FlavioCFOliveira/GoRecurrent/internal/errs"
	"github.com/FlavioCFOliveira/GoRecurrent/internal/tensor"
)

// Dataset is an indexed, read-only collection of samples.
type Dataset interface {
	// Len returns the number of samples.
	Len() int

	// Get returns the fields of sample idx, 0 <= idx < Len().
	Get(idx int) ([]*tensor.Tensor, error)
}

func checkIndex(name string, idx, n int) error {
	if idx < 0 || idx >= n {
		return fmt.Errorf("dataset: %s index %d not in [0, %d): %w", name, idx, n, errs.ErrOutOfRange)
	}
	return nil
}

// TensorDataset holds its samples in memory.
type TensorDataset struct {
	samples [][]*tensor.Tensor
}

// NewTensorDataset creates a dataset from per-field columns: fields[f][i] is
// field f of sample i. Every column must have the same length.
func NewTensorDataset(fields ...[]*tensor.Tensor) (*TensorDataset, error) {
	if len(fields) == 0 {
		return &TensorDataset{}, nil
	}
	n := len(fields[0])
	for f, col := range fields {
		if len(col) != n {
			return nil, fmt.Errorf("dataset: field %d has %d samples, field 0 has %d: %w",
				f, len(col), n, errs.ErrInvalidArgument)
		}
	}
	samples := make([][]*tensor.Tensor, n)
	for i := range samples {
		sample := make([]*tensor.Tensor, len(fields))
		for f, col := range fields {
			sample[f] = col[i]
		}
		samples[i] = sample
	}
	return &TensorDataset{samples: samples}, nil
}

// Append adds one sample.
func (d *TensorDataset) Append(fields ...*tensor.Tensor) {
	d.samples = append(d.samples, fields)
}

// Len returns the number of samples. A nil dataset is empty.
func (d *TensorDataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.samples)
}

// Get returns a copy of the field list of sample idx. The tensors themselves
// are shared.
func (d *TensorDataset) Get(idx int) ([]*tensor.Tensor, error) {
	if err := checkIndex("tensor", idx, d.Len()); err != nil {
		return nil, err
	}
	return append([]*tensor.Tensor(nil), d.samples[idx]...), nil
}
