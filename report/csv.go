// Package report writes evaluation results: per-frame CSVs joined back to the
// original frame numbers and training-history plots.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Noofbiz/strikes/datasets"
	"github.com/Noofbiz/strikes/strikes"
)

// ModelPredictionColumn is the prediction header used by CompareWithValidation.
const ModelPredictionColumn = "Model Prediction"

// ComparisonFileName is the name CompareWithValidation writes for an epoch.
func ComparisonFileName(epoch int) string {
	return fmt.Sprintf("validation_comparison_epoch_%d.csv", epoch)
}

// writeCSV creates path (and its directory) and writes header plus rows.
func writeCSV(path string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return fmt.Errorf("write header to %s: %w", path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("write rows to %s: %w", path, err)
	}
	return f.Close()
}

// WriteComparison writes "Frame Number, <header>, Actual Strike" rows using
// each row's original frame number. header is usually
// datasets.PredictedStrikeColumn or ModelPredictionColumn.
func WriteComparison(path string, rows []datasets.ComparisonRow, header string, table *strikes.Table) error {
	out := make([][]string, len(rows))
	for i, r := range rows {
		pred, err := table.Name(r.Predicted)
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		actual, err := table.Name(r.Actual)
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = []string{strconv.Itoa(r.Frame), pred, actual}
	}
	return writeCSV(path, []string{datasets.FrameNumberColumn, header, datasets.ActualStrikeColumn}, out)
}

// WritePredictions writes "Frame Number, Predicted Strike" rows. frames and
// preds are parallel.
func WritePredictions(path string, frames, preds []int, table *strikes.Table) error {
	if len(frames) != len(preds) {
		return fmt.Errorf("%d frames for %d predictions", len(frames), len(preds))
	}
	out := make([][]string, len(preds))
	for i, p := range preds {
		name, err := table.Name(p)
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = []string{strconv.Itoa(frames[i]), name}
	}
	return writeCSV(path, []string{datasets.FrameNumberColumn, datasets.PredictedStrikeColumn}, out)
}

// CompareWithValidation joins preds positionally against the rows of the
// validation CSV, carrying its "Frame Number" and "Actual Strike" values
// through unchanged, and writes dir/validation_comparison_epoch_<epoch>.csv.
// Predictions beyond the validation rows are dropped. It returns the path
// written.
func CompareWithValidation(validationCSV string, preds []int, dir string, epoch int, table *strikes.Table) (string, error) {
	cols, err := datasets.ReadColumns(validationCSV, datasets.FrameNumberColumn, datasets.ActualStrikeColumn)
	if err != nil {
		return "", err
	}
	n := min(len(preds), len(cols))
	out := make([][]string, n)
	for i := 0; i < n; i++ {
		name, err := table.Name(preds[i])
		if err != nil {
			return "", fmt.Errorf("prediction %d: %w", i, err)
		}
		out[i] = []string{cols[i][0], name, cols[i][1]}
	}
	path := filepath.Join(dir, ComparisonFileName(epoch))
	header := []string{datasets.FrameNumberColumn, ModelPredictionColumn, datasets.ActualStrikeColumn}
	if err := writeCSV(path, header, out); err != nil {
		return "", err
	}
	return path, nil
}
