package net

import (
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/FlavioCFOliveira/GoRecurrent/internal/autograd"
	"github.com/FlavioCFOliveira/GoRecurrent/internal/errs"
)

// paramRecord is the gob form of one parameter tensor.
type paramRecord struct {
	Shape []int
	Data  []float64
}

// Save writes the values of params to w using gob encoding. Gradients and
// optimizer state are not saved.
func Save(w io.Writer, params []*autograd.Variable) error {
	records := make([]paramRecord, len(params))
	for i, p := range params {
		records[i] = paramRecord{Shape: p.Shape(), Data: p.Value().Data()}
	}
	if err := gob.NewEncoder(w).Encode(records); err != nil {
		return fmt.Errorf("net: encode parameters: %w", err)
	}
	return nil
}

// Load reads values written by Save into params, in place. The count and
// shapes must match exactly; on mismatch nothing is modified.
func Load(r io.Reader, params []*autograd.Variable) error {
	var records []paramRecord
	if err := gob.NewDecoder(r).Decode(&records); err != nil {
		return fmt.Errorf("net: decode parameters: %w", err)
	}
	if len(records) != len(params) {
		return fmt.Errorf("net: checkpoint has %d parameters, model has %d: %w",
			len(records), len(params), errs.ErrInvalidArgument)
	}
	for i, rec := range records {
		if !slices.Equal(rec.Shape, params[i].Shape()) || len(rec.Data) != params[i].Value().Size() {
			return fmt.Errorf("net: parameter %d has shape %v in checkpoint, %v in model: %w",
				i, rec.Shape, params[i].Shape(), errs.ErrInvalidArgument)
		}
	}
	for i, rec := range records {
		copy(params[i].Value().Data(), rec.Data)
	}
	return nil
}

// SaveFile saves params to filename.
func SaveFile(filename string, params []*autograd.Variable) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("net: failed to create file: %w", err)
	}
	if err := Save(file, params); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// LoadFile loads params from filename.
func LoadFile(filename string, params []*autograd.Variable) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("net: failed to open file: %w", err)
	}
	defer file.Close()
	return Load(file, params)
}
