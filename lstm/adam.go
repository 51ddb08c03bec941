package lstm

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
)

// AdamConfig holds the optimizer hyperparameters.
type AdamConfig struct {
	LearningRate float64 `json:"learning_rate"`
	Beta1        float64 `json:"beta1"`
	Beta2        float64 `json:"beta2"`
	Epsilon      float64 `json:"epsilon"`

	// ClipNorm rescales the global gradient norm down to this value before
	// each step. Zero disables clipping.
	ClipNorm float64 `json:"clip_norm"`
}

// DefaultAdamConfig returns lr 0.001, betas (0.9, 0.999), eps 1e-8.
func DefaultAdamConfig() AdamConfig {
	return AdamConfig{LearningRate: 0.001, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-8}
}

// Adam applies bias-corrected Adam updates to a fixed set of parameters.
type Adam struct {
	cfg    AdamConfig
	params []*Param
	m, v   [][]float64
	step   int
}

// NewAdam creates an optimizer over params.
func NewAdam(params []*Param, cfg AdamConfig) (*Adam, error) {
	if len(params) == 0 {
		return nil, errors.New("no parameters to optimize")
	}
	if cfg.LearningRate <= 0 {
		return nil, errors.New("learning rate must be positive")
	}
	if cfg.Beta1 < 0 || cfg.Beta1 >= 1 || cfg.Beta2 < 0 || cfg.Beta2 >= 1 {
		return nil, errors.New("betas must be in [0, 1)")
	}
	if cfg.ClipNorm < 0 {
		return nil, errors.New("clip norm must be non-negative")
	}
	a := &Adam{cfg: cfg, params: params}
	a.m = make([][]float64, len(params))
	a.v = make([][]float64, len(params))
	for i, p := range params {
		a.m[i] = make([]float64, len(p.Value))
		a.v[i] = make([]float64, len(p.Value))
	}
	return a, nil
}

// ZeroGrad clears every parameter gradient.
func (a *Adam) ZeroGrad() {
	for _, p := range a.params {
		p.zeroGrad()
	}
}

// GradNorm returns the global L2 norm of the current gradients.
func (a *Adam) GradNorm() float64 {
	var sum float64
	for _, p := range a.params {
		sum += floats.Dot(p.Grad, p.Grad)
	}
	return math.Sqrt(sum)
}

// Step applies one update from the accumulated gradients.
func (a *Adam) Step() {
	if a.cfg.ClipNorm > 0 {
		if norm := a.GradNorm(); norm > a.cfg.ClipNorm {
			scale := a.cfg.ClipNorm / (norm + 1e-6)
			for _, p := range a.params {
				floats.Scale(scale, p.Grad)
			}
		}
	}

	a.step++
	b1, b2 := a.cfg.Beta1, a.cfg.Beta2
	c1 := 1 - math.Pow(b1, float64(a.step))
	c2 := 1 - math.Pow(b2, float64(a.step))
	lr := a.cfg.LearningRate
	for i, p := range a.params {
		m, v := a.m[i], a.v[i]
		for j, g := range p.Grad {
			m[j] = b1*m[j] + (1-b1)*g
			v[j] = b2*v[j] + (1-b2)*g*g
			p.Value[j] -= lr * (m[j] / c1) / (math.Sqrt(v[j]/c2) + a.cfg.Epsilon)
		}
	}
}

// Steps returns the number of updates applied.
func (a *Adam) Steps() int { return a.step }
