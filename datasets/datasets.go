package datasets

// This package turns the per-video CSV files produced by the keypoint
// extractor into labeled examples for the strike classifier.
//
// There are three dataset shapes:
//
// FrameDataset
//   - Training CSV keyed by a "frame_id" column.
//   - Features are the keypoint coordinate columns ("keypoint" in the name and
//     an "_x"/"_y" suffix), frozen once at construction into a Schema.
//   - Labels come from an annotations.Index (unannotated frames are No Strike).
//
// ValidationKeypointDataset
//   - Validation CSV keyed by "Frame Number" with the same kind of keypoint
//     columns, labeled through the annotation index like training data.
//   - An optional "Actual Strike" column is passed through untouched.
//
// ValidationComparisonDataset
//   - Validation CSV with "Frame Number", "Predicted Strike" and
//     "Actual Strike" name columns. No keypoints, no model involved.
//
// Keypoint datasets are precomputed into []Example and served in mini-batches
// by a Loader, which can also hand batches out as gomlx tensors.

// Dataset is the random-access view shared by the keypoint datasets.
type Dataset interface {
	Len() int
	Example(i int) (Example, error)
}

// Example is one labeled frame.
type Example struct {
	// Frame is the video-local frame identifier read from the CSV.
	Frame int
	// Features is the frozen-width keypoint vector.
	Features []float32
	// Label is the strike class id.
	Label int
	// Actual is the raw "Actual Strike" cell when the CSV carries one.
	Actual string
}
