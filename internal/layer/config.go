package layer

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/FlavioCFOliveira/GoRecurrent/internal/autograd"
	"github.com/FlavioCFOliveira/GoRecurrent/internal/errs"
)

// RNNConfig configures a recurrent module. It is copied into the module at
// construction and never changes afterwards.
type RNNConfig struct {
	InputSize     int              `json:"input_size"`    // features per time step
	HiddenSize    int              `json:"hidden_size"`   // units per direction
	NumLayers     int              `json:"num_layers"`    // stacked recurrent layers
	Mode          autograd.RNNMode `json:"mode"`          // "relu", "tanh", "lstm" or "gru"
	Bidirectional bool             `json:"bidirectional"` // run a reversed pass as well
	DropoutProb   float64          `json:"dropout"`       // between layers, training only
}

// NewRNNConfig returns a single-layer, unidirectional configuration without dropout.
func NewRNNConfig(inputSize, hiddenSize int, mode autograd.RNNMode) RNNConfig {
	return RNNConfig{
		InputSize:  inputSize,
		HiddenSize: hiddenSize,
		NumLayers:  1,
		Mode:       mode,
	}
}

// Validate reports the first constraint the configuration violates.
func (c RNNConfig) Validate() error {
	switch {
	case c.InputSize <= 0:
		return fmt.Errorf("layer: input size %d must be positive: %w", c.InputSize, errs.ErrInvalidArgument)
	case c.HiddenSize <= 0:
		return fmt.Errorf("layer: hidden size %d must be positive: %w", c.HiddenSize, errs.ErrInvalidArgument)
	case c.NumLayers < 1:
		return fmt.Errorf("layer: layer count %d must be at least 1: %w", c.NumLayers, errs.ErrInvalidArgument)
	case !c.Mode.Valid():
		return fmt.Errorf("layer: unknown mode %v: %w", c.Mode, errs.ErrInvalidArgument)
	case c.DropoutProb < 0 || c.DropoutProb >= 1:
		return fmt.Errorf("layer: dropout %v outside [0, 1): %w", c.DropoutProb, errs.ErrInvalidArgument)
	}
	return nil
}

// NumDirections is 2 for bidirectional modules, 1 otherwise.
func (c RNNConfig) NumDirections() int {
	if c.Bidirectional {
		return 2
	}
	return 1
}

// OutputSize is the width of each output time step.
func (c RNNConfig) OutputSize() int {
	return c.NumDirections() * c.HiddenSize
}

// LoadRNNConfig decodes a JSON configuration. Omitted num_layers defaults to 1.
func LoadRNNConfig(r io.Reader) (RNNConfig, error) {
	cfg := RNNConfig{NumLayers: 1}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return RNNConfig{}, fmt.Errorf("layer: decode rnn config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return RNNConfig{}, err
	}
	return cfg, nil
}
