package datasets

import (
	"errors"
	"fmt"

	"github.com/Noofbiz/strikes/strikes"
)

// ComparisonRow is one row of a validation comparison CSV.
type ComparisonRow struct {
	Frame     int
	Predicted int
	Actual    int
}

// ValidationComparisonDataset reads precomputed prediction/ground-truth label
// pairs. It never involves a model.
type ValidationComparisonDataset struct {
	path    string
	table   *strikes.Table
	schema  *Schema
	records [][]string
}

// NewValidationComparisonDataset loads a CSV with "Frame Number",
// "Predicted Strike" and "Actual Strike" columns.
func NewValidationComparisonDataset(path string, table *strikes.Table) (*ValidationComparisonDataset, error) {
	if table == nil {
		return nil, errors.New("nil strike table")
	}
	header, records, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	schema, err := newSchema(path, header, []string{FrameNumberColumn, PredictedStrikeColumn, ActualStrikeColumn}, nil, 0)
	if err != nil {
		return nil, err
	}
	return &ValidationComparisonDataset{path: path, table: table, schema: schema, records: records}, nil
}

// Len returns the number of rows.
func (d *ValidationComparisonDataset) Len() int { return len(d.records) }

// Row reads row idx, mapping both label names through the strike table. Names
// outside the table fail with strikes.ErrUnknownLabel.
func (d *ValidationComparisonDataset) Row(idx int) (ComparisonRow, error) {
	if idx < 0 || idx >= len(d.records) {
		return ComparisonRow{}, fmt.Errorf("index %d out of range [0, %d)", idx, len(d.records))
	}
	record := d.records[idx]
	frameCol, _ := d.schema.Column(FrameNumberColumn)
	predCol, _ := d.schema.Column(PredictedStrikeColumn)
	actualCol, _ := d.schema.Column(ActualStrikeColumn)

	frame, err := parseFrameID(record[frameCol])
	if err != nil {
		return ComparisonRow{}, fmt.Errorf("%s row %d: %w", d.path, idx, err)
	}
	pred, err := d.table.ID(record[predCol])
	if err != nil {
		return ComparisonRow{}, fmt.Errorf("%s row %d %s: %w", d.path, idx, PredictedStrikeColumn, err)
	}
	actual, err := d.table.ID(record[actualCol])
	if err != nil {
		return ComparisonRow{}, fmt.Errorf("%s row %d %s: %w", d.path, idx, ActualStrikeColumn, err)
	}
	return ComparisonRow{Frame: frame, Predicted: pred, Actual: actual}, nil
}

// Rows reads every row in order.
func (d *ValidationComparisonDataset) Rows() ([]ComparisonRow, error) {
	out := make([]ComparisonRow, len(d.records))
	for i := range d.records {
		row, err := d.Row(i)
		if err != nil {
			return nil, err
		}
		out[i] = row
	}
	return out, nil
}

// LabelAgreement is the fraction of rows whose predicted label equals the
// actual label. It only says whether the two precomputed label columns agree;
// it says nothing about a model being trained.
func (d *ValidationComparisonDataset) LabelAgreement() (float64, error) {
	if len(d.records) == 0 {
		return 0, fmt.Errorf("%s has no rows to compare", d.path)
	}
	correct := 0
	for i := range d.records {
		row, err := d.Row(i)
		if err != nil {
			return 0, err
		}
		if row.Predicted == row.Actual {
			correct++
		}
	}
	return float64(correct) / float64(len(d.records)), nil
}
