package datasets

import (
	"fmt"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// Batch is one mini-batch. Inputs[i] is the sequence for example i, shaped
// [time][width]; per-frame loaders produce length-1 sequences.
type Batch struct {
	Frames []int
	Inputs [][][]float32
	Labels []int
}

// Len returns the number of examples in the batch.
func (b *Batch) Len() int { return len(b.Labels) }

// BatchFlat stores a batch in flat contiguous buffers.
type BatchFlat struct {
	Inputs    []float32
	Labels    []int32
	Frames    []int64
	BatchSize int
	Time      int
	Width     int
}

// MakeBatchFlat flattens a batch into contiguous buffers, checking that every
// sequence has the same shape.
func MakeBatchFlat(b *Batch) (*BatchFlat, error) {
	if len(b.Inputs) != len(b.Labels) || len(b.Frames) != len(b.Labels) {
		return nil, fmt.Errorf("batch sizes don't match: inputs=%d labels=%d frames=%d",
			len(b.Inputs), len(b.Labels), len(b.Frames))
	}
	if len(b.Inputs) == 0 {
		return &BatchFlat{}, nil
	}
	if len(b.Inputs[0]) == 0 {
		return nil, fmt.Errorf("example 0 has an empty sequence")
	}

	batchSize := len(b.Inputs)
	timeSteps := len(b.Inputs[0])
	width := len(b.Inputs[0][0])

	flat := &BatchFlat{
		Inputs:    make([]float32, 0, batchSize*timeSteps*width),
		Labels:    make([]int32, batchSize),
		Frames:    make([]int64, batchSize),
		BatchSize: batchSize,
		Time:      timeSteps,
		Width:     width,
	}
	for i, seq := range b.Inputs {
		if len(seq) != timeSteps {
			return nil, fmt.Errorf("inconsistent sequence length at example %d: expected %d, got %d", i, timeSteps, len(seq))
		}
		for t, step := range seq {
			if len(step) != width {
				return nil, fmt.Errorf("inconsistent feature width at example %d step %d: expected %d, got %d", i, t, width, len(step))
			}
			flat.Inputs = append(flat.Inputs, step...)
		}
		flat.Labels[i] = int32(b.Labels[i])
		flat.Frames[i] = int64(b.Frames[i])
	}
	return flat, nil
}

// ToGomlxTensors converts the batch to gomlx tensors. inputs holds the
// features ([batch][width] for per-frame batches, [batch][time][width]
// otherwise) followed by the int64 frame ids; labels holds the int32 class ids.
func (b *BatchFlat) ToGomlxTensors() (inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	if b.BatchSize == 0 || b.Time == 0 || b.Width == 0 {
		return nil, nil, fmt.Errorf("cannot convert an empty batch to tensors")
	}
	var features *tensors.Tensor
	if b.Time == 1 {
		rows := make([][]float32, b.BatchSize)
		for i := range b.BatchSize {
			rows[i] = b.Inputs[i*b.Width : (i+1)*b.Width]
		}
		features = tensors.FromAnyValue(rows)
	} else {
		data := make([][][]float32, b.BatchSize)
		idx := 0
		for i := range b.BatchSize {
			data[i] = make([][]float32, b.Time)
			for t := range b.Time {
				data[i][t] = b.Inputs[idx : idx+b.Width]
				idx += b.Width
			}
		}
		features = tensors.FromAnyValue(data)
	}
	inputs = []*tensors.Tensor{features, tensors.FromAnyValue(b.Frames)}
	labels = []*tensors.Tensor{tensors.FromAnyValue(b.Labels)}
	return inputs, labels, nil
}
