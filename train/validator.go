package train

import (
	"github.com/Noofbiz/strikes/datasets"
	"github.com/Noofbiz/strikes/lstm"
)

// Validator scores a model at the end of an epoch.
type Validator interface {
	// Accuracy returns the validation accuracy in [0, 1].
	Accuracy(m *lstm.Model) (float64, error)
	Name() string
}

// InferenceValidator runs the model over the validation keypoints.
type InferenceValidator struct {
	Loader     *datasets.Loader
	NumClasses int
}

func (v *InferenceValidator) Name() string { return ValidationInference }

func (v *InferenceValidator) Accuracy(m *lstm.Model) (float64, error) {
	ev, err := Evaluate(m, v.Loader, v.NumClasses)
	if err != nil {
		return 0, err
	}
	return ev.Result.Accuracy, nil
}

// LabelAgreementValidator reports how often the precomputed predicted and
// actual label columns agree. It ignores the model.
type LabelAgreementValidator struct {
	Dataset *datasets.ValidationComparisonDataset
}

func (v *LabelAgreementValidator) Name() string { return ValidationLabels }

func (v *LabelAgreementValidator) Accuracy(*lstm.Model) (float64, error) {
	return v.Dataset.LabelAgreement()
}
