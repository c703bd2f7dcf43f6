package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/FlavioCFOliveira/GoRecurrent/internal/errs"
	"github.com/FlavioCFOliveira/GoRecurrent/internal/tensor"
)

// LoadCSV loads data from a CSV file.
// labelCols specifies the indices of columns to be used as labels.
// All other columns are used as features.
// hasHeader skips the first line if true.
func LoadCSV(filename string, labelCols []int, hasHeader bool) (*TensorDataset, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("dataset: failed to open file: %w", err)
	}
	defer file.Close()

	return ReadCSV(file, labelCols, hasHeader)
}

// ReadCSV is LoadCSV over an arbitrary reader. Each sample holds a feature
// tensor of shape [features] and a label tensor of shape [len(labelCols)],
// labels in the order given by labelCols.
func ReadCSV(r io.Reader, labelCols []int, hasHeader bool) (*TensorDataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("dataset: failed to read csv: %w", err)
	}

	startRow := 0
	if hasHeader {
		startRow = 1
	}
	if len(records) <= startRow {
		return nil, fmt.Errorf("dataset: csv has no data rows: %w", errs.ErrInvalidArgument)
	}

	numCols := len(records[0])
	isLabelCol := make(map[int]bool, len(labelCols))
	for _, col := range labelCols {
		if col < 0 || col >= numCols {
			return nil, fmt.Errorf("dataset: label column %d not in [0, %d): %w", col, numCols, errs.ErrOutOfRange)
		}
		isLabelCol[col] = true
	}
	numFeatures := numCols - len(isLabelCol)

	d := &TensorDataset{samples: make([][]*tensor.Tensor, 0, len(records)-startRow)}
	for i := startRow; i < len(records); i++ {
		record := records[i]
		if len(record) != numCols {
			return nil, fmt.Errorf("dataset: inconsistent number of columns at row %d: %w", i, errs.ErrInvalidArgument)
		}

		features := make([]float64, 0, numFeatures)
		values := make([]float64, numCols)
		for j, s := range record {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("dataset: failed to parse value at row %d, col %d: %w", i, j, err)
			}
			values[j] = v
			if !isLabelCol[j] {
				features = append(features, v)
			}
		}
		labels := make([]float64, len(labelCols))
		for k, col := range labelCols {
			labels[k] = values[col]
		}
		d.Append(tensor.New(features, len(features)), tensor.New(labels, len(labels)))
	}
	return d, nil
}

// Column gathers element idx of field f across all samples, for example a
// single label column to feed SeriesWindows.
func (d *TensorDataset) Column(f, idx int) ([]float64, error) {
	out := make([]float64, len(d.samples))
	for i, s := range d.samples {
		if f < 0 || f >= len(s) {
			return nil, fmt.Errorf("dataset: sample %d has no field %d: %w", i, f, errs.ErrOutOfRange)
		}
		data := s[f].Data()
		if idx < 0 || idx >= len(data) {
			return nil, fmt.Errorf("dataset: field %d of sample %d has no element %d: %w", f, i, idx, errs.ErrOutOfRange)
		}
		out[i] = data[idx]
	}
	return out, nil
}

// Split splits the dataset into two based on the given ratio (0.0 to 1.0).
// The halves share the underlying samples.
func (d *TensorDataset) Split(ratio float64) (train, test *TensorDataset) {
	switch {
	case ratio <= 0:
		return &TensorDataset{}, d
	case ratio >= 1:
		return d, &TensorDataset{}
	}
	at := int(float64(len(d.samples)) * ratio)
	return &TensorDataset{samples: d.samples[:at:at]}, &TensorDataset{samples: d.samples[at:]}
}
