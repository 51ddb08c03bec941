package train

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/Noofbiz/strikes/lstm"
)

// Validation modes.
const (
	// ValidationInference scores the model on the validation keypoint CSV.
	ValidationInference = "inference"
	// ValidationLabels compares the two label columns of a comparison CSV.
	// The model is never run, so it says nothing about training progress.
	ValidationLabels = "labels"
)

// Config is the full training configuration. It is read from JSON blocks
// whose absent fields keep their defaults.
type Config struct {
	Model      ModelConfig      `json:"model"`
	Training   TrainingConfig   `json:"training"`
	Precompute PrecomputeConfig `json:"precompute"`
	Validation ValidationConfig `json:"validation"`
	Output     OutputConfig     `json:"output"`
}

// ModelConfig sizes the classifier.
type ModelConfig struct {
	InputSize  int     `json:"input_size"`
	HiddenSize int     `json:"hidden_size"`
	NumLayers  int     `json:"num_layers"`
	Dropout    float64 `json:"dropout"`
}

// TrainingConfig controls the epoch loop and optimizer.
type TrainingConfig struct {
	BatchSize    int     `json:"batch_size"`
	LearningRate float64 `json:"learning_rate"`
	AdamBeta1    float64 `json:"adam_beta1"`
	AdamBeta2    float64 `json:"adam_beta2"`
	AdamEps      float64 `json:"adam_eps"`
	ClipNorm     float64 `json:"clip_norm"`
	MaxEpochs    int     `json:"max_epochs"`
	Patience     int     `json:"patience"`
	MinDelta     float64 `json:"min_delta"`
	Seed         int64   `json:"seed"`
	// Window > 1 feeds each frame with its preceding rows as a sequence.
	Window       int    `json:"window"`
	ClassWeights bool   `json:"class_weights"`
	Device       string `json:"device"`
}

// PrecomputeConfig controls dataset loading.
type PrecomputeConfig struct {
	// Workers parsing CSV rows; 0 uses every CPU.
	Workers int `json:"workers"`
}

// ValidationConfig selects how epochs are scored.
type ValidationConfig struct {
	Mode           string `json:"mode"`
	CheckAlignment bool   `json:"check_alignment"`
}

// OutputConfig controls what is written besides checkpoints.
type OutputConfig struct {
	Dir             string `json:"dir"`
	HalfCheckpoints bool   `json:"half_checkpoints"`
	Plot            bool   `json:"plot"`
	Progress        bool   `json:"progress"`
	Predictions     bool   `json:"predictions"`
}

// DefaultConfig returns the reference configuration: 34 inputs, 128 hidden
// units, 2 layers, batch 10, Adam at 0.001, patience 10 with min delta 0.01
// and at most 100 epochs.
func DefaultConfig() Config {
	adam := lstm.DefaultAdamConfig()
	return Config{
		Model: ModelConfig{
			InputSize:  34,
			HiddenSize: 128,
			NumLayers:  2,
			Dropout:    0.5,
		},
		Training: TrainingConfig{
			BatchSize:    10,
			LearningRate: adam.LearningRate,
			AdamBeta1:    adam.Beta1,
			AdamBeta2:    adam.Beta2,
			AdamEps:      adam.Epsilon,
			MaxEpochs:    100,
			Patience:     10,
			MinDelta:     0.01,
			Window:       1,
			Device:       "cpu",
		},
		Validation: ValidationConfig{
			Mode:           ValidationInference,
			CheckAlignment: true,
		},
		Output: OutputConfig{
			Dir: "models",
		},
	}
}

// LoadConfig overlays the JSON file at path onto base.
func LoadConfig(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := base
	if err := json.Unmarshal(data, &cfg); err != nil {
		return base, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// MaxEpochLimit is the hard cap on epochs per video.
const MaxEpochLimit = 100

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.Model.InputSize <= 0:
		return errors.New("model.input_size must be positive")
	case c.Model.HiddenSize <= 0:
		return errors.New("model.hidden_size must be positive")
	case c.Model.NumLayers <= 0:
		return errors.New("model.num_layers must be positive")
	case c.Model.Dropout < 0 || c.Model.Dropout >= 1:
		return errors.New("model.dropout must be in [0, 1)")
	case c.Training.BatchSize <= 0:
		return errors.New("training.batch_size must be positive")
	case c.Training.LearningRate <= 0:
		return errors.New("training.learning_rate must be positive")
	case c.Training.MaxEpochs <= 0:
		return errors.New("training.max_epochs must be positive")
	case c.Training.MaxEpochs > MaxEpochLimit:
		return fmt.Errorf("training.max_epochs must be at most %d", MaxEpochLimit)
	case c.Training.Patience < 0:
		return errors.New("training.patience must be non-negative")
	case c.Training.MinDelta < 0:
		return errors.New("training.min_delta must be non-negative")
	case c.Training.Window < 0:
		return errors.New("training.window must be non-negative")
	case c.Output.Dir == "":
		return errors.New("output.dir must be set")
	}
	switch c.Validation.Mode {
	case ValidationInference, ValidationLabels:
	default:
		return fmt.Errorf("validation.mode must be %q or %q, got %q", ValidationInference, ValidationLabels, c.Validation.Mode)
	}
	return nil
}

// lstmConfig builds the classifier configuration for numClasses outputs.
func (c Config) lstmConfig(inputDim, numClasses int) lstm.Config {
	return lstm.Config{
		InputDim:    inputDim,
		HiddenSize:  c.Model.HiddenSize,
		NumLayers:   c.Model.NumLayers,
		NumClasses:  numClasses,
		DropoutRate: c.Model.Dropout,
		Seed:        c.Training.Seed,
	}
}

func (c Config) adamConfig() lstm.AdamConfig {
	return lstm.AdamConfig{
		LearningRate: c.Training.LearningRate,
		Beta1:        c.Training.AdamBeta1,
		Beta2:        c.Training.AdamBeta2,
		Epsilon:      c.Training.AdamEps,
		ClipNorm:     c.Training.ClipNorm,
	}
}

// JSON returns the indented JSON form of the configuration.
func (c Config) JSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}
