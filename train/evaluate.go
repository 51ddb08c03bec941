package train

import (
	"errors"
	"fmt"
	"io"

	"github.com/Noofbiz/strikes/datasets"
	"github.com/Noofbiz/strikes/lstm"
	"github.com/Noofbiz/strikes/metrics"
)

// Evaluation holds per-frame predictions and their metrics.
type Evaluation struct {
	Frames    []int
	Predicted []int
	Actual    []int
	Result    metrics.Result
}

// Evaluate runs the model over one full pass of loader in eval mode and
// scores the predictions against the loader's labels. The model's previous
// mode is restored afterwards.
func Evaluate(m *lstm.Model, loader *datasets.Loader, numClasses int) (*Evaluation, error) {
	if m.Training() {
		m.Eval()
		defer m.Train()
	}

	ev := &Evaluation{}
	loader.Reset()
	for {
		_, inputs, labels, err := loader.Yield()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("evaluate %s: %w", loader.Name(), err)
		}
		preds, err := m.PredictTensor(inputs[0])
		if err != nil {
			return nil, fmt.Errorf("evaluate %s: %w", loader.Name(), err)
		}
		frames, ok := inputs[1].Value().([]int64)
		if !ok {
			return nil, fmt.Errorf("evaluate %s: unexpected frame tensor %s", loader.Name(), inputs[1].Shape())
		}
		actual, ok := labels[0].Value().([]int32)
		if !ok {
			return nil, fmt.Errorf("evaluate %s: unexpected label tensor %s", loader.Name(), labels[0].Shape())
		}
		for i := range preds {
			ev.Frames = append(ev.Frames, int(frames[i]))
			ev.Predicted = append(ev.Predicted, preds[i])
			ev.Actual = append(ev.Actual, int(actual[i]))
		}
	}

	res, err := metrics.Compute(ev.Actual, ev.Predicted, numClasses)
	if err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", loader.Name(), err)
	}
	ev.Result = res
	return ev, nil
}

// Rows pairs every frame with its prediction and label.
func (ev *Evaluation) Rows() []datasets.ComparisonRow {
	rows := make([]datasets.ComparisonRow, len(ev.Frames))
	for i := range rows {
		rows[i] = datasets.ComparisonRow{Frame: ev.Frames[i], Predicted: ev.Predicted[i], Actual: ev.Actual[i]}
	}
	return rows
}
