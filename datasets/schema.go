package datasets

import (
	"errors"
	"fmt"
	"strings"
)

// Column names the datasets key on.
const (
	FrameIDColumn         = "frame_id"
	FrameNumberColumn     = "Frame Number"
	PredictedStrikeColumn = "Predicted Strike"
	ActualStrikeColumn    = "Actual Strike"
)

var (
	// ErrSchema is matched by every *SchemaError.
	ErrSchema = errors.New("dataset schema error")
	// ErrMisaligned reports frame ids that cannot belong to the annotated video.
	ErrMisaligned = errors.New("frame ids not aligned with annotations")
)

// SchemaError reports a CSV whose header does not satisfy a dataset variant.
type SchemaError struct {
	Path string
	// Missing is the absent required column, empty for feature-width problems.
	Missing string
	// Found lists the columns actually present.
	Found  []string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Missing != "" {
		return fmt.Sprintf("%s: required column %q is missing (columns found: %s)",
			e.Path, e.Missing, strings.Join(e.Found, ", "))
	}
	return fmt.Sprintf("%s: %s (columns found: %s)", e.Path, e.Reason, strings.Join(e.Found, ", "))
}

// Is makes errors.Is(err, ErrSchema) true for schema errors.
func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

// FeatureColumns selects feature columns by name: the name must contain
// Marker and, when AxisSuffixes is non-empty, end with one of the suffixes.
type FeatureColumns struct {
	Marker       string
	AxisSuffixes []string
}

// KeypointColumns matches every column mentioning "keypoint".
func KeypointColumns() FeatureColumns {
	return FeatureColumns{Marker: "keypoint"}
}

// AxisKeypointColumns matches keypoint coordinate columns ending in _x or _y.
func AxisKeypointColumns() FeatureColumns {
	return FeatureColumns{Marker: "keypoint", AxisSuffixes: []string{"_x", "_y"}}
}

func (c FeatureColumns) isZero() bool {
	return c.Marker == "" && len(c.AxisSuffixes) == 0
}

func (c FeatureColumns) match(name string) bool {
	if c.Marker != "" && !strings.Contains(name, c.Marker) {
		return false
	}
	if len(c.AxisSuffixes) == 0 {
		return true
	}
	for _, suffix := range c.AxisSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

func (c FeatureColumns) String() string {
	if len(c.AxisSuffixes) == 0 {
		return fmt.Sprintf("columns containing %q", c.Marker)
	}
	return fmt.Sprintf("columns containing %q ending in %s", c.Marker, strings.Join(c.AxisSuffixes, "/"))
}

// Schema is the frozen column layout of one CSV: the position of every named
// column and the ordered feature columns. It never changes after construction.
type Schema struct {
	path         string
	header       []string
	colIndex     map[string]int
	featureNames []string
	features     []int
}

// newSchema validates header against the required columns and, when cols is
// non-nil, discovers the feature columns. width > 0 pins the feature count.
func newSchema(path string, header []string, required []string, cols *FeatureColumns, width int) (*Schema, error) {
	s := &Schema{
		path:     path,
		header:   append([]string(nil), header...),
		colIndex: make(map[string]int, len(header)),
	}
	for i, col := range header {
		if _, dup := s.colIndex[col]; !dup {
			s.colIndex[col] = i
		}
	}

	for _, col := range required {
		if _, ok := s.colIndex[col]; !ok {
			return nil, &SchemaError{Path: path, Missing: col, Found: s.header}
		}
	}

	if cols == nil {
		return s, nil
	}
	for i, col := range header {
		if cols.match(col) {
			s.features = append(s.features, i)
			s.featureNames = append(s.featureNames, col)
		}
	}
	if len(s.features) == 0 {
		return nil, &SchemaError{Path: path, Found: s.header, Reason: "no feature columns (" + cols.String() + ")"}
	}
	if width > 0 && len(s.features) != width {
		return nil, &SchemaError{
			Path:   path,
			Found:  s.header,
			Reason: fmt.Sprintf("found %d feature columns (%s), configured feature width is %d", len(s.features), cols.String(), width),
		}
	}
	return s, nil
}

// Width is the number of feature columns.
func (s *Schema) Width() int { return len(s.features) }

// FeatureNames returns the feature column names in CSV order.
func (s *Schema) FeatureNames() []string {
	return append([]string(nil), s.featureNames...)
}

// Column returns the position of a named column.
func (s *Schema) Column(name string) (int, bool) {
	i, ok := s.colIndex[name]
	return i, ok
}

// extract parses the feature vector from one CSV record.
func (s *Schema) extract(record []string) ([]float32, error) {
	out := make([]float32, len(s.features))
	for i, col := range s.features {
		v, err := parseFloat32(record[col])
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", s.featureNames[i], err)
		}
		out[i] = v
	}
	return out, nil
}
