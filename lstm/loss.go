package lstm

import (
	"errors"
	"fmt"
	"math"
)

// CrossEntropy is softmax cross-entropy over raw scores. With Weights set,
// each example's loss is scaled by the weight of its true class and the batch
// loss is the weighted mean (sum of weighted losses over the sum of weights).
type CrossEntropy struct {
	Weights []float64
}

func (ce *CrossEntropy) weight(label int) float64 {
	if ce.Weights == nil {
		return 1
	}
	return ce.Weights[label]
}

// Batch returns the mean loss over the batch and the gradient of that mean
// with respect to every example's scores.
func (ce *CrossEntropy) Batch(scores [][]float64, labels []int) (float64, [][]float64, error) {
	if len(scores) != len(labels) {
		return 0, nil, fmt.Errorf("%d score rows for %d labels", len(scores), len(labels))
	}
	var total, norm float64
	grads := make([][]float64, len(scores))
	for b, s := range scores {
		y := labels[b]
		if y < 0 || y >= len(s) {
			return 0, nil, fmt.Errorf("label %d out of range [0, %d)", y, len(s))
		}
		if ce.Weights != nil && len(ce.Weights) != len(s) {
			return 0, nil, fmt.Errorf("%d class weights for %d classes", len(ce.Weights), len(s))
		}
		p := softmax(s)
		w := ce.weight(y)
		total += -w * math.Log(math.Max(p[y], math.SmallestNonzeroFloat64))
		norm += w
		p[y] -= 1
		for k := range p {
			p[k] *= w
		}
		grads[b] = p
	}
	if norm == 0 {
		return 0, nil, errors.New("batch has zero total class weight")
	}
	for _, g := range grads {
		for k := range g {
			g[k] /= norm
		}
	}
	return total / norm, grads, nil
}

func softmax(s []float64) []float64 {
	maxV := s[0]
	for _, v := range s[1:] {
		maxV = math.Max(maxV, v)
	}
	out := make([]float64, len(s))
	var sum float64
	for i, v := range s {
		out[i] = math.Exp(v - maxV)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
