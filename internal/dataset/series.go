package dataset

import (
	"fmt"

	"github.com/FlavioCFOliveira/GoRecurrent/internal/errs"
	"github.com/FlavioCFOliveira/GoRecurrent/internal/tensor"
)

// SeriesWindows cuts a univariate series into next-step prediction samples.
// Sample i has input series[i:i+window] and target series[i+1:i+window+1],
// both shaped [window, 1, 1] (time, batch, feature).
func SeriesWindows(series []float64, window int) (*TensorDataset, error) {
	if window < 1 {
		return nil, fmt.Errorf("dataset: window %d must be positive: %w", window, errs.ErrInvalidArgument)
	}
	if len(series) < window+1 {
		return nil, fmt.Errorf("dataset: series of %d points is too short for window %d: %w",
			len(series), window, errs.ErrInvalidArgument)
	}
	d := &TensorDataset{}
	for i := 0; i+window < len(series); i++ {
		x := append([]float64(nil), series[i:i+window]...)
		y := append([]float64(nil), series[i+1:i+window+1]...)
		d.Append(tensor.New(x, window, 1, 1), tensor.New(y, window, 1, 1))
	}
	return d, nil
}
