package datasets

import (
	"errors"
	"fmt"

	"github.com/Noofbiz/strikes/annotations"
)

// FrameOptions configures feature-column discovery for keypoint datasets.
type FrameOptions struct {
	// Columns selects the feature columns. The zero value uses the variant's
	// default selector.
	Columns FeatureColumns
	// Width, when positive, is the required number of feature columns.
	Width int
}

// keypointRows is the table shared by both keypoint dataset variants. Rows are
// held as raw CSV records and parsed on access; frame ids are parsed up front.
type keypointRows struct {
	path      string
	schema    *Schema
	records   [][]string
	frames    []int
	index     *annotations.Index
	actualCol int
}

func loadKeypointRows(path string, frameCol string, index *annotations.Index, cols FeatureColumns, width int) (*keypointRows, error) {
	if index == nil {
		return nil, errors.New("nil annotation index")
	}
	header, records, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	schema, err := newSchema(path, header, []string{frameCol}, &cols, width)
	if err != nil {
		return nil, err
	}

	rows := &keypointRows{
		path:      path,
		schema:    schema,
		records:   records,
		frames:    make([]int, len(records)),
		index:     index,
		actualCol: -1,
	}
	if i, ok := schema.Column(ActualStrikeColumn); ok {
		rows.actualCol = i
	}

	col, _ := schema.Column(frameCol)
	for i, record := range records {
		frame, err := parseFrameID(record[col])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i, err)
		}
		rows.frames[i] = frame
	}
	return rows, nil
}

// Len returns the number of rows.
func (r *keypointRows) Len() int { return len(r.records) }

// Schema returns the frozen column layout.
func (r *keypointRows) Schema() *Schema { return r.schema }

// Frames returns the frame ids in row order.
func (r *keypointRows) Frames() []int {
	return append([]int(nil), r.frames...)
}

// Example reads row idx and labels it through the annotation index.
func (r *keypointRows) Example(idx int) (Example, error) {
	if idx < 0 || idx >= len(r.records) {
		return Example{}, fmt.Errorf("index %d out of range [0, %d)", idx, len(r.records))
	}
	record := r.records[idx]
	features, err := r.schema.extract(record)
	if err != nil {
		return Example{}, fmt.Errorf("%s row %d: %w", r.path, idx, err)
	}
	ex := Example{
		Frame:    r.frames[idx],
		Features: features,
		Label:    r.index.Label(r.frames[idx]),
	}
	if r.actualCol >= 0 {
		ex.Actual = record[r.actualCol]
	}
	return ex, nil
}

// FrameDataset is the training dataset: keypoint rows keyed by "frame_id" and
// labeled from the video's annotation index.
type FrameDataset struct {
	*keypointRows
}

// NewFrameDataset loads a training CSV. The zero FrameOptions selects
// AxisKeypointColumns.
func NewFrameDataset(path string, index *annotations.Index, opts FrameOptions) (*FrameDataset, error) {
	cols := opts.Columns
	if cols.isZero() {
		cols = AxisKeypointColumns()
	}
	rows, err := loadKeypointRows(path, FrameIDColumn, index, cols, opts.Width)
	if err != nil {
		return nil, err
	}
	return &FrameDataset{keypointRows: rows}, nil
}

// ValidationKeypointDataset holds validation keypoint rows keyed by
// "Frame Number". It is consumed by model inference.
type ValidationKeypointDataset struct {
	*keypointRows
}

// NewValidationKeypointDataset loads a validation keypoint CSV. The zero
// FrameOptions selects KeypointColumns.
func NewValidationKeypointDataset(path string, index *annotations.Index, opts FrameOptions) (*ValidationKeypointDataset, error) {
	cols := opts.Columns
	if cols.isZero() {
		cols = KeypointColumns()
	}
	rows, err := loadKeypointRows(path, FrameNumberColumn, index, cols, opts.Width)
	if err != nil {
		return nil, err
	}
	return &ValidationKeypointDataset{keypointRows: rows}, nil
}

// HasActual reports whether the CSV carries an "Actual Strike" column.
func (v *ValidationKeypointDataset) HasActual() bool { return v.actualCol >= 0 }
