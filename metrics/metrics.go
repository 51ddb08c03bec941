// Package metrics computes classification quality from true and predicted
// label ids.
package metrics

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/Noofbiz/strikes/strikes"
)

// Result summarizes one evaluation.
type Result struct {
	Accuracy float64

	// Macro averages over Classes, each class weighted equally.
	Precision float64
	Recall    float64
	F1        float64

	// Classes are the ids present in the truth or the predictions, ascending.
	Classes []int

	// Confusion[t][p] counts frames of true class t predicted as p, over all
	// numClasses ids.
	Confusion [][]int

	// Support[c] is the number of true instances of class c.
	Support []int
}

func validate(yTrue, yPred []int, numClasses int) error {
	if len(yTrue) != len(yPred) {
		return fmt.Errorf("%d true labels but %d predictions", len(yTrue), len(yPred))
	}
	if len(yTrue) == 0 {
		return errors.New("no labels to evaluate")
	}
	for i := range yTrue {
		if yTrue[i] < 0 || yTrue[i] >= numClasses || yPred[i] < 0 || yPred[i] >= numClasses {
			return fmt.Errorf("label pair (%d, %d) at %d outside [0, %d)", yTrue[i], yPred[i], i, numClasses)
		}
	}
	return nil
}

// Compute returns accuracy, macro precision/recall/F1 and the confusion
// matrix. Per-class ratios with a zero denominator count as 0.
func Compute(yTrue, yPred []int, numClasses int) (Result, error) {
	if err := validate(yTrue, yPred, numClasses); err != nil {
		return Result{}, err
	}
	res := Result{
		Confusion: make([][]int, numClasses),
		Support:   make([]int, numClasses),
	}
	for c := range res.Confusion {
		res.Confusion[c] = make([]int, numClasses)
	}
	predicted := make([]int, numClasses)
	correct := 0
	for i := range yTrue {
		res.Confusion[yTrue[i]][yPred[i]]++
		res.Support[yTrue[i]]++
		predicted[yPred[i]]++
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	res.Accuracy = float64(correct) / float64(len(yTrue))

	var precisions, recalls, f1s []float64
	for c := 0; c < numClasses; c++ {
		if res.Support[c] == 0 && predicted[c] == 0 {
			continue
		}
		res.Classes = append(res.Classes, c)
		tp := float64(res.Confusion[c][c])
		p := safeDiv(tp, float64(predicted[c]))
		r := safeDiv(tp, float64(res.Support[c]))
		precisions = append(precisions, p)
		recalls = append(recalls, r)
		f1s = append(f1s, safeDiv(2*p*r, p+r))
	}
	n := float64(len(res.Classes))
	res.Precision = floats.Sum(precisions) / n
	res.Recall = floats.Sum(recalls) / n
	res.F1 = floats.Sum(f1s) / n
	return res, nil
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

// PerClassAccuracy returns, for every class with at least one true instance,
// the binary accuracy of "predicted as this class" against "is this class",
// keyed by class name.
func PerClassAccuracy(yTrue, yPred []int, table *strikes.Table) (map[string]float64, error) {
	if err := validate(yTrue, yPred, table.Len()); err != nil {
		return nil, err
	}
	out := make(map[string]float64)
	for c := 0; c < table.Len(); c++ {
		support, agree := 0, 0
		for i := range yTrue {
			isC := yTrue[i] == c
			if isC {
				support++
			}
			if isC == (yPred[i] == c) {
				agree++
			}
		}
		if support == 0 {
			continue
		}
		name, err := table.Name(c)
		if err != nil {
			return nil, err
		}
		out[name] = float64(agree) / float64(len(yTrue))
	}
	return out, nil
}

// ClassWeights returns 1/count for each of the n classes, 0 for classes that
// never occur.
func ClassWeights(labels []int, n int) ([]float64, error) {
	counts := make([]float64, n)
	for i, l := range labels {
		if l < 0 || l >= n {
			return nil, fmt.Errorf("label %d at %d outside [0, %d)", l, i, n)
		}
		counts[l]++
	}
	weights := make([]float64, n)
	for c, cnt := range counts {
		if cnt > 0 {
			weights[c] = 1 / cnt
		}
	}
	return weights, nil
}
