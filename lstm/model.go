package lstm

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// Model is a stacked LSTM classifier. It starts in training mode; call Eval
// before inference so dropout is disabled.
type Model struct {
	// Config used for initialization, with defaults filled in.
	Config Config

	layers []*lstmLayer
	head   *linear
	params []*Param

	rng      *rand.Rand
	training bool
}

// NewModel creates a Model with every weight and bias drawn uniformly from
// ±1/sqrt(HiddenSize), which is also the fan-in bound of the output head.
func NewModel(cfg Config) (*Model, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	m := &Model{
		Config:   cfg,
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		training: true,
	}

	H := cfg.HiddenSize
	bound := 1 / math.Sqrt(float64(H))
	in := cfg.InputDim
	for l := 0; l < cfg.NumLayers; l++ {
		layer := &lstmLayer{
			inputDim: in,
			hidden:   H,
			wIH:      newParam(fmt.Sprintf("lstm.%d.w_ih", l), 4*H, in),
			wHH:      newParam(fmt.Sprintf("lstm.%d.w_hh", l), 4*H, H),
			bias:     newParam(fmt.Sprintf("lstm.%d.bias", l), 4*H, 1),
		}
		for _, p := range []*Param{layer.wIH, layer.wHH, layer.bias} {
			p.uniform(m.rng, bound)
			m.params = append(m.params, p)
		}
		m.layers = append(m.layers, layer)
		in = H
	}

	m.head = &linear{
		in:  H,
		out: cfg.NumClasses,
		w:   newParam("fc.weight", cfg.NumClasses, H),
		b:   newParam("fc.bias", cfg.NumClasses, 1),
	}
	m.head.w.uniform(m.rng, bound)
	m.head.b.uniform(m.rng, bound)
	m.params = append(m.params, m.head.w, m.head.b)
	return m, nil
}

// Train enables dropout.
func (m *Model) Train() { m.training = true }

// Eval disables dropout.
func (m *Model) Eval() { m.training = false }

// Training reports whether dropout is active.
func (m *Model) Training() bool { return m.training }

// Parameters returns the trainable parameters in a stable order.
func (m *Model) Parameters() []*Param { return m.params }

// trace is the forward state kept for one example's backward pass.
type trace struct {
	caches    [][]stepCache
	masks     [][][]float64
	final     []float64
	finalMask []float64
}

// dropout returns x with inverted dropout applied and the mask used, or x
// itself and a nil mask when dropout is inactive.
func (m *Model) dropout(x []float64) ([]float64, []float64) {
	p := m.Config.DropoutRate
	if !m.training || p == 0 {
		return x, nil
	}
	scale := 1 / (1 - p)
	mask := make([]float64, len(x))
	out := make([]float64, len(x))
	for i := range x {
		if m.rng.Float64() >= p {
			mask[i] = scale
			out[i] = x[i] * scale
		}
	}
	return out, mask
}

func applyMask(g, mask []float64) {
	if mask == nil {
		return
	}
	for i := range g {
		g[i] *= mask[i]
	}
}

// forward runs one sequence and returns the raw scores. Recurrent state
// starts from zero on every call.
func (m *Model) forward(seq [][]float64) ([]float64, *trace) {
	tr := &trace{
		caches: make([][]stepCache, len(m.layers)),
		masks:  make([][][]float64, len(m.layers)),
	}
	inputs := seq
	for l, layer := range m.layers {
		caches := layer.forward(inputs)
		tr.caches[l] = caches
		outs := make([][]float64, len(caches))
		for t := range caches {
			outs[t] = caches[t].h
		}
		if l < len(m.layers)-1 {
			tr.masks[l] = make([][]float64, len(outs))
			for t := range outs {
				outs[t], tr.masks[l][t] = m.dropout(outs[t])
			}
		}
		inputs = outs
	}
	tr.final, tr.finalMask = m.dropout(inputs[len(inputs)-1])
	return m.head.forward(tr.final), tr
}

// backward accumulates gradients for one example given dScores.
func (m *Model) backward(tr *trace, dScores []float64) {
	dLast := m.head.backward(tr.final, dScores)
	applyMask(dLast, tr.finalMask)

	T := len(tr.caches[0])
	dhs := make([][]float64, T)
	dhs[T-1] = dLast
	for l := len(m.layers) - 1; l >= 0; l-- {
		dxs := m.layers[l].backward(tr.caches[l], dhs)
		if l == 0 {
			break
		}
		for t := range dxs {
			applyMask(dxs[t], tr.masks[l-1][t])
		}
		dhs = dxs
	}
}

// toSequences validates the batch and converts it to float64.
func (m *Model) toSequences(seqs [][][]float32) ([][][]float64, error) {
	if len(seqs) == 0 {
		return nil, errors.New("empty batch")
	}
	out := make([][][]float64, len(seqs))
	for b, seq := range seqs {
		if len(seq) == 0 {
			return nil, fmt.Errorf("example %d: empty sequence", b)
		}
		out[b] = make([][]float64, len(seq))
		for t, x := range seq {
			if len(x) != m.Config.InputDim {
				return nil, fmt.Errorf("example %d step %d: width %d, want %d", b, t, len(x), m.Config.InputDim)
			}
			v := make([]float64, len(x))
			for i, f := range x {
				v[i] = float64(f)
			}
			out[b][t] = v
		}
	}
	return out, nil
}

// ScoresSeq returns raw class scores, shape [batch][NumClasses], for a batch
// of sequences shaped [batch][time][InputDim].
func (m *Model) ScoresSeq(seqs [][][]float32) ([][]float64, error) {
	xs, err := m.toSequences(seqs)
	if err != nil {
		return nil, err
	}
	out := make([][]float64, len(xs))
	for b, seq := range xs {
		out[b], _ = m.forward(seq)
	}
	return out, nil
}

// Scores treats each input vector as a sequence of length 1.
func (m *Model) Scores(inputs [][]float32) ([][]float64, error) {
	return m.ScoresSeq(asSequences(inputs))
}

// PredictSeq returns the argmax class per sequence. Ties go to the lowest id.
func (m *Model) PredictSeq(seqs [][][]float32) ([]int, error) {
	scores, err := m.ScoresSeq(seqs)
	if err != nil {
		return nil, err
	}
	preds := make([]int, len(scores))
	for i, s := range scores {
		preds[i] = argmax(s)
	}
	return preds, nil
}

// Predict is PredictSeq for length-1 sequences.
func (m *Model) Predict(inputs [][]float32) ([]int, error) {
	return m.PredictSeq(asSequences(inputs))
}

// PredictTensor predicts from a float32 tensor shaped [batch][width] or
// [batch][time][width].
func (m *Model) PredictTensor(t *tensors.Tensor) ([]int, error) {
	seqs, err := SequencesFromTensor(t)
	if err != nil {
		return nil, err
	}
	return m.PredictSeq(seqs)
}

// SequencesFromTensor converts a 2D or 3D float32 tensor to sequences, 2D
// tensors becoming length-1 sequences.
func SequencesFromTensor(t *tensors.Tensor) ([][][]float32, error) {
	if t == nil {
		return nil, errors.New("nil tensor")
	}
	switch v := t.Value().(type) {
	case [][]float32:
		return asSequences(v), nil
	case [][][]float32:
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported input tensor %s: want float32 rank 2 or 3", t.Shape())
	}
}

// ForwardBackward runs the batch, accumulates the gradient of the mean loss
// into the parameters and returns that loss. Gradients are not cleared first.
func (m *Model) ForwardBackward(seqs [][][]float32, labels []int, loss *CrossEntropy) (float64, error) {
	if len(seqs) != len(labels) {
		return 0, fmt.Errorf("batch has %d sequences and %d labels", len(seqs), len(labels))
	}
	xs, err := m.toSequences(seqs)
	if err != nil {
		return 0, err
	}
	if loss == nil {
		loss = &CrossEntropy{}
	}
	scores := make([][]float64, len(xs))
	traces := make([]*trace, len(xs))
	for b, seq := range xs {
		scores[b], traces[b] = m.forward(seq)
	}
	value, grads, err := loss.Batch(scores, labels)
	if err != nil {
		return 0, err
	}
	for b := range traces {
		m.backward(traces[b], grads[b])
	}
	return value, nil
}

func asSequences(inputs [][]float32) [][][]float32 {
	seqs := make([][][]float32, len(inputs))
	for i, x := range inputs {
		seqs[i] = [][]float32{x}
	}
	return seqs
}

func argmax(s []float64) int {
	best := 0
	for i := 1; i < len(s); i++ {
		if s[i] > s[best] {
			best = i
		}
	}
	return best
}
