package datasets

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Noofbiz/strikes/annotations"
	"github.com/Noofbiz/strikes/strikes"
)

// writeCSV writes a CSV file with the given header and rows to path.
func writeCSV(t *testing.T, path, header string, rows []string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create csv %s: %v", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(header + "\n"); err != nil {
		t.Fatalf("failed to write header: %v", err)
	}
	for _, r := range rows {
		if _, err := f.WriteString(r + "\n"); err != nil {
			t.Fatalf("failed to write row: %v", err)
		}
	}
}

// testIndex builds an index where frame 1 is a Jab and frame 2 a Hook.
func testIndex(t *testing.T) *annotations.Index {
	t.Helper()
	doc := `<annotations>
  <track label="Jab"><box frame="1"/></track>
  <track label="Hook"><box frame="2"/></track>
</annotations>`
	ix, err := annotations.Parse(strings.NewReader(doc), strikes.Default())
	if err != nil {
		t.Fatalf("annotations.Parse error: %v", err)
	}
	return ix
}

const trainHeader = "frame_id,keypoint_0_x,keypoint_0_y,keypoint_0_conf,keypoint_1_x,keypoint_1_y,person"

func TestFrameDataset_LoadAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.csv")
	writeCSV(t, path, trainHeader, []string{
		"0,1,2,0.9,3,4,a",
		"1,5,6,0.8,7,8,a",
		"2.0,9,10,0.7,11,12,a",
		"7,13,14,0.6,15,16,a",
	})

	ds, err := NewFrameDataset(path, testIndex(t), FrameOptions{Width: 4})
	if err != nil {
		t.Fatalf("NewFrameDataset failed: %v", err)
	}
	if got := ds.Len(); got != 4 {
		t.Fatalf("expected len 4, got %d", got)
	}
	names := ds.Schema().FeatureNames()
	want := []string{"keypoint_0_x", "keypoint_0_y", "keypoint_1_x", "keypoint_1_y"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected feature columns: %v", names)
	}

	ex1, err := ds.Example(1)
	if err != nil {
		t.Fatalf("Example(1) error: %v", err)
	}
	if ex1.Frame != 1 || ex1.Label != strikes.Jab {
		t.Fatalf("unexpected Example(1): %+v", ex1)
	}
	if len(ex1.Features) != 4 || ex1.Features[0] != 5 || ex1.Features[3] != 8 {
		t.Fatalf("unexpected features for Example(1): %v", ex1.Features)
	}

	ex2, err := ds.Example(2)
	if err != nil {
		t.Fatalf("Example(2) error: %v", err)
	}
	if ex2.Frame != 2 || ex2.Label != strikes.Hook {
		t.Fatalf("unexpected Example(2): %+v", ex2)
	}

	// frames absent from the annotations are background
	ex3, err := ds.Example(3)
	if err != nil {
		t.Fatalf("Example(3) error: %v", err)
	}
	if ex3.Label != strikes.NoStrike {
		t.Fatalf("unannotated frame should be NoStrike, got %d", ex3.Label)
	}

	if _, err := ds.Example(4); err == nil {
		t.Fatalf("expected out-of-range error")
	}
	if frames := ds.Frames(); len(frames) != 4 || frames[2] != 2 || frames[3] != 7 {
		t.Fatalf("unexpected frames: %v", frames)
	}
}

// TestFrameDataset_MissingFrameColumn ensures construction fails with a schema
// error that names the missing column and lists what was found.
func TestFrameDataset_MissingFrameColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	writeCSV(t, path, "frame,keypoint_0_x,keypoint_0_y", []string{"0,1,2"})

	_, err := NewFrameDataset(path, testIndex(t), FrameOptions{})
	if !errors.Is(err, ErrSchema) {
		t.Fatalf("expected ErrSchema, got %v", err)
	}
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("expected *SchemaError, got %T", err)
	}
	if se.Missing != FrameIDColumn {
		t.Fatalf("expected missing column %q, got %q", FrameIDColumn, se.Missing)
	}
	if !strings.Contains(err.Error(), "keypoint_0_x") {
		t.Fatalf("error should list found columns: %v", err)
	}
}

func TestFrameDataset_FeatureWidth(t *testing.T) {
	dir := t.TempDir()

	noFeatures := filepath.Join(dir, "none.csv")
	writeCSV(t, noFeatures, "frame_id,x,y", []string{"0,1,2"})
	if _, err := NewFrameDataset(noFeatures, testIndex(t), FrameOptions{}); !errors.Is(err, ErrSchema) {
		t.Fatalf("expected ErrSchema for missing feature columns, got %v", err)
	}

	path := filepath.Join(dir, "train.csv")
	writeCSV(t, path, trainHeader, []string{"0,1,2,0.9,3,4,a"})
	if _, err := NewFrameDataset(path, testIndex(t), FrameOptions{Width: 34}); !errors.Is(err, ErrSchema) {
		t.Fatalf("expected ErrSchema for width mismatch, got %v", err)
	}
}

func TestFrameDataset_BadRows(t *testing.T) {
	dir := t.TempDir()

	badFrame := filepath.Join(dir, "frame.csv")
	writeCSV(t, badFrame, "frame_id,keypoint_0_x,keypoint_0_y", []string{"0,1,2", "1.5,3,4"})
	if _, err := NewFrameDataset(badFrame, testIndex(t), FrameOptions{}); err == nil {
		t.Fatalf("expected error for fractional frame id")
	}

	badValue := filepath.Join(dir, "value.csv")
	writeCSV(t, badValue, "frame_id,keypoint_0_x,keypoint_0_y", []string{"0,1,", "1,3,4"})
	ds, err := NewFrameDataset(badValue, testIndex(t), FrameOptions{})
	if err != nil {
		t.Fatalf("NewFrameDataset failed: %v", err)
	}
	if _, err := ds.Example(0); err == nil {
		t.Fatalf("expected parse error for empty keypoint cell")
	}
	if _, err := Precompute(ds, 2); err == nil {
		t.Fatalf("expected Precompute to surface the row error")
	}
}

func TestValidationKeypointDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "val.csv")
	writeCSV(t, path, "Frame Number,keypoint_0_x,keypoint_0_y,Actual Strike", []string{
		"1,1,2,Jab",
		"2,3,4,Cross",
		"3,5,6,",
	})

	ds, err := NewValidationKeypointDataset(path, testIndex(t), FrameOptions{Width: 2})
	if err != nil {
		t.Fatalf("NewValidationKeypointDataset failed: %v", err)
	}
	if !ds.HasActual() {
		t.Fatalf("expected Actual Strike passthrough")
	}
	ex, err := ds.Example(0)
	if err != nil {
		t.Fatalf("Example(0) error: %v", err)
	}
	if ex.Frame != 1 || ex.Label != strikes.Jab || ex.Actual != "Jab" {
		t.Fatalf("unexpected Example(0): %+v", ex)
	}

	checked, disagreements := ActualAgreement(ds, strikes.Default())
	if checked != 2 || disagreements != 1 {
		t.Fatalf("ActualAgreement = (%d, %d), want (2, 1)", checked, disagreements)
	}

	// a training-style header is not a validation keypoint CSV
	bad := filepath.Join(t.TempDir(), "bad.csv")
	writeCSV(t, bad, "frame_id,keypoint_0_x,keypoint_0_y", []string{"1,1,2"})
	if _, err := NewValidationKeypointDataset(bad, testIndex(t), FrameOptions{}); !errors.Is(err, ErrSchema) {
		t.Fatalf("expected ErrSchema, got %v", err)
	}
}

func TestCheckAlignment(t *testing.T) {
	ix := testIndex(t) // annotated span [1, 2]

	if err := CheckAlignment([]int{0, 1, 2, 3}, ix); err != nil {
		t.Fatalf("overlapping frames should align: %v", err)
	}
	if err := CheckAlignment([]int{100, 101}, ix); !errors.Is(err, ErrMisaligned) {
		t.Fatalf("expected ErrMisaligned for disjoint spans, got %v", err)
	}
	if err := CheckAlignment([]int{-1, 1}, ix); !errors.Is(err, ErrMisaligned) {
		t.Fatalf("expected ErrMisaligned for negative frame, got %v", err)
	}
	empty, err := annotations.Parse(strings.NewReader("<annotations/>"), strikes.Default())
	if err != nil {
		t.Fatalf("annotations.Parse error: %v", err)
	}
	if err := CheckAlignment([]int{500}, empty); err != nil {
		t.Fatalf("an empty index constrains nothing: %v", err)
	}
}
