// Package lstm implements the strike sequence classifier: a stack of LSTM
// layers over a (possibly length-1) sequence of keypoint vectors, dropout on
// the recurrent output and an affine projection of the last step to raw class
// scores.
//
// Training is self-contained pure Go on top of gonum matrices: the model
// accumulates gradients with backpropagation through time, an Adam optimizer
// applies them and CrossEntropy turns scores into a loss. This keeps training
// deterministic for a given seed and free of native runtime dependencies.
package lstm

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the architecture of a Model.
type Config struct {
	// InputDim is the width of one keypoint vector (e.g. 34 = 17 points x 2 axes).
	InputDim int `json:"input_dim"`

	// HiddenSize is the LSTM state size. Default 128.
	HiddenSize int `json:"hidden_size"`

	// NumLayers is the number of stacked LSTM layers. Default 1.
	NumLayers int `json:"num_layers"`

	// NumClasses is the number of output scores. Default 8.
	NumClasses int `json:"num_classes"`

	// DropoutRate is applied between stacked layers and to the final recurrent
	// output while training. Zero disables dropout.
	DropoutRate float64 `json:"dropout_rate"`

	// Seed controls weight initialization and dropout masks. If zero, a
	// time-based seed is used.
	Seed int64 `json:"seed"`
}

// DefaultConfig returns the reference architecture for inputDim features and
// numLayers stacked layers.
func DefaultConfig(inputDim, numLayers int) Config {
	return Config{
		InputDim:    inputDim,
		HiddenSize:  128,
		NumLayers:   numLayers,
		NumClasses:  8,
		DropoutRate: 0.5,
	}
}

// withDefaults fills zero sizes and validates the rest.
func (c Config) withDefaults() (Config, error) {
	if c.InputDim <= 0 {
		return c, fmt.Errorf("input dim must be positive, got %d", c.InputDim)
	}
	if c.HiddenSize == 0 {
		c.HiddenSize = 128
	}
	if c.NumLayers == 0 {
		c.NumLayers = 1
	}
	if c.NumClasses == 0 {
		c.NumClasses = 8
	}
	if c.HiddenSize < 0 || c.NumLayers < 0 || c.NumClasses < 0 {
		return c, errors.New("sizes must be non-negative")
	}
	if c.DropoutRate < 0 || c.DropoutRate >= 1 {
		return c, fmt.Errorf("dropout rate must be in [0, 1), got %v", c.DropoutRate)
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
	return c, nil
}
