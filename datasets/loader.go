package datasets

import (
	"fmt"
	"io"
	"math/rand"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// LoaderOptions configures mini-batching.
type LoaderOptions struct {
	// BatchSize is the number of examples per batch (default 10).
	BatchSize int
	// Shuffle reorders examples on every Reset.
	Shuffle bool
	// Seed seeds the shuffle.
	Seed int64
	// Window > 1 turns each example into the window of rows ending at it.
	Window int
}

// Loader serves precomputed examples in mini-batches. One pass over the data
// runs from Reset until Next (or Yield) returns io.EOF. It has the
// Name/Yield/Reset shape of gomlx's train.Dataset.
type Loader struct {
	name     string
	examples []Example
	opts     LoaderOptions
	order    []int
	pos      int
	rand     *rand.Rand
}

// NewLoader creates a loader over examples and rewinds it.
func NewLoader(name string, examples []Example, opts LoaderOptions) (*Loader, error) {
	if len(examples) == 0 {
		return nil, fmt.Errorf("loader %s: no examples", name)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.Window <= 0 {
		opts.Window = 1
	}
	width := len(examples[0].Features)
	for i, ex := range examples {
		if len(ex.Features) != width {
			return nil, fmt.Errorf("loader %s: example %d has %d features, expected %d", name, i, len(ex.Features), width)
		}
	}

	l := &Loader{
		name:     name,
		examples: examples,
		opts:     opts,
		order:    make([]int, len(examples)),
		rand:     rand.New(rand.NewSource(opts.Seed)),
	}
	for i := range l.order {
		l.order[i] = i
	}
	l.Reset()
	return l, nil
}

// Name returns the loader name.
func (l *Loader) Name() string { return l.name }

// Len returns the number of examples.
func (l *Loader) Len() int { return len(l.examples) }

// Width returns the feature width.
func (l *Loader) Width() int { return len(l.examples[0].Features) }

// NumBatches returns the number of batches per pass.
func (l *Loader) NumBatches() int {
	return (len(l.examples) + l.opts.BatchSize - 1) / l.opts.BatchSize
}

// Labels returns every label in dataset order.
func (l *Loader) Labels() []int { return Labels(l.examples) }

// Reset rewinds the loader, reshuffling when enabled.
func (l *Loader) Reset() {
	l.pos = 0
	if l.opts.Shuffle {
		l.rand.Shuffle(len(l.order), func(i, j int) {
			l.order[i], l.order[j] = l.order[j], l.order[i]
		})
	}
}

// Next returns the next batch, or io.EOF when the pass is complete.
func (l *Loader) Next() (*Batch, error) {
	if l.pos >= len(l.order) {
		return nil, io.EOF
	}
	end := min(l.pos+l.opts.BatchSize, len(l.order))
	idxs := l.order[l.pos:end]
	l.pos = end

	b := &Batch{
		Frames: make([]int, len(idxs)),
		Inputs: make([][][]float32, len(idxs)),
		Labels: make([]int, len(idxs)),
	}
	for i, idx := range idxs {
		b.Frames[i] = l.examples[idx].Frame
		b.Inputs[i] = windowAt(l.examples, idx, l.opts.Window)
		b.Labels[i] = l.examples[idx].Label
	}
	return b, nil
}

// Yield returns the next batch as gomlx tensors: inputs are the features and
// the frame ids, labels the class ids. It returns io.EOF at the end of a pass.
func (l *Loader) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	b, err := l.Next()
	if err != nil {
		return nil, nil, nil, err
	}
	flat, err := MakeBatchFlat(b)
	if err != nil {
		return nil, nil, nil, err
	}
	inputs, labels, err = flat.ToGomlxTensors()
	if err != nil {
		return nil, nil, nil, err
	}
	return nil, inputs, labels, nil
}
