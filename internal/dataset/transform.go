package dataset

import (
	"fmt"

	"github.com/FlavioCFOliveira/GoRecurrent/internal/errs"
	"github.com/FlavioCFOliveira/GoRecurrent/internal/tensor"
)

// TransformFunc maps one field of a sample to a new tensor.
type TransformFunc func(*tensor.Tensor) *tensor.Tensor

// TransformDataset lazily applies per-field transforms to the samples of
// another dataset. Transform i is applied to field i; fields without a
// transform, and fields whose transform is nil, pass through unchanged.
type TransformDataset struct {
	source Dataset
	fns    []TransformFunc
}

// NewTransformDataset wraps source. A nil source is rejected.
func NewTransformDataset(source Dataset, fns ...TransformFunc) (*TransformDataset, error) {
	if source == nil {
		return nil, fmt.Errorf("dataset: dataset to be transformed is nil: %w", errs.ErrInvalidArgument)
	}
	return &TransformDataset{source: source, fns: fns}, nil
}

// Len returns the length of the source dataset.
func (d *TransformDataset) Len() int { return d.source.Len() }

// Get fetches sample idx from the source and transforms its fields.
func (d *TransformDataset) Get(idx int) ([]*tensor.Tensor, error) {
	if err := checkIndex("transform", idx, d.Len()); err != nil {
		return nil, err
	}
	fields, err := d.source.Get(idx)
	if err != nil {
		return nil, err
	}
	for i := range fields {
		if i >= len(d.fns) {
			break
		}
		if fn := d.fns[i]; fn != nil {
			fields[i] = fn(fields[i])
		}
	}
	return fields, nil
}

// Normalize returns a transform computing (x - mean) / std element-wise.
func Normalize(mean, std float64) TransformFunc {
	return func(t *tensor.Tensor) *tensor.Tensor {
		out := t.Clone()
		for i, v := range out.Data() {
			out.Data()[i] = (v - mean) / std
		}
		return out
	}
}
