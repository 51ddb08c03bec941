package train

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Noofbiz/strikes/datasets"
	"github.com/Noofbiz/strikes/lstm"
	"github.com/Noofbiz/strikes/report"
	"github.com/Noofbiz/strikes/strikes"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// keypoint row for frame i: Jab frames (0..9) sit at positive x, the rest at
// negative x.
func keypointRow(i int) string {
	x, y := 1+float64(i)*0.01, 0.5
	if i >= 10 {
		x, y = -x, -y
	}
	return fmt.Sprintf("%d,%.3f,%.3f", i, x, y)
}

// writeVideo writes a 20-frame training CSV, annotations marking frames 0..9
// as Jab, a validation keypoint CSV for frames 5..14 and a comparison CSV.
func writeVideo(t *testing.T, dir string) Video {
	t.Helper()
	var train, val strings.Builder
	train.WriteString("frame_id,keypoint_0_x,keypoint_0_y\n")
	val.WriteString("Frame Number,keypoint_0_x,keypoint_0_y,Actual Strike\n")
	for i := 0; i < 20; i++ {
		train.WriteString(keypointRow(i) + "\n")
		if i >= 5 && i < 15 {
			actual := "Jab"
			if i >= 10 {
				actual = "No Strike"
			}
			val.WriteString(keypointRow(i) + "," + actual + "\n")
		}
	}

	var xml strings.Builder
	xml.WriteString(`<annotations><track label="Jab">`)
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&xml, `<box frame="%d"/>`, i)
	}
	xml.WriteString(`</track></annotations>`)

	v := Video{
		Name:        "bout1",
		Keypoints:   filepath.Join(dir, "bout1.csv"),
		Annotations: filepath.Join(dir, "bout1.xml"),
		Validation:  filepath.Join(dir, "bout1_validation.csv"),
	}
	writeFile(t, v.Keypoints, train.String())
	writeFile(t, v.Annotations, xml.String())
	writeFile(t, v.Validation, val.String())
	return v
}

func testConfig(out string) Config {
	cfg := DefaultConfig()
	cfg.Model.InputSize = 2
	cfg.Model.HiddenSize = 8
	cfg.Model.NumLayers = 1
	cfg.Model.Dropout = 0
	cfg.Training.BatchSize = 5
	cfg.Training.LearningRate = 0.05
	cfg.Training.MaxEpochs = 30
	cfg.Training.Patience = 30
	cfg.Training.Seed = 1
	cfg.Precompute.Workers = 2
	cfg.Output.Dir = out
	return cfg
}

type fakeRecorder struct {
	starts   int
	epochs   []report.EpochStats
	finished *RunResult
}

func (f *fakeRecorder) StartRun(ctx context.Context, video Video, cfg Config) (int64, error) {
	f.starts++
	return 7, nil
}

func (f *fakeRecorder) RecordEpoch(ctx context.Context, runID int64, stats report.EpochStats) error {
	if runID != 7 {
		return errors.New("unexpected run id")
	}
	f.epochs = append(f.epochs, stats)
	return nil
}

func (f *fakeRecorder) FinishRun(ctx context.Context, runID int64, res *RunResult) error {
	f.finished = res
	return nil
}

// scriptedValidator returns a fixed sequence of accuracies.
type scriptedValidator struct {
	values []float64
	calls  int
}

func (v *scriptedValidator) Name() string { return "scripted" }

func (v *scriptedValidator) Accuracy(*lstm.Model) (float64, error) {
	acc := v.values[v.calls%len(v.values)]
	v.calls++
	return acc, nil
}

func TestCheckpointsOnlyOnStrictImprovement(t *testing.T) {
	dir := t.TempDir()
	v := writeVideo(t, dir)
	cfg := testConfig(filepath.Join(dir, "out"))
	cfg.Training.MaxEpochs = 4
	cfg.Training.Patience = 10

	s := NewSession(v, cfg, Deps{Table: strikes.Default()})
	if err := s.prepare(); err != nil {
		t.Fatalf("prepare error: %v", err)
	}
	s.validator = &scriptedValidator{values: []float64{0.5, 0.6, 0.55, 0.7}}
	res, err := s.loop(context.Background())
	if err != nil {
		t.Fatalf("loop error: %v", err)
	}

	want := []string{s.CheckpointPath(0), s.CheckpointPath(1), s.CheckpointPath(3)}
	if len(res.Checkpoints) != len(want) {
		t.Fatalf("expected %d checkpoints, got %v", len(want), res.Checkpoints)
	}
	for i, p := range want {
		if res.Checkpoints[i] != p {
			t.Fatalf("checkpoint %d: want %s, got %s", i, p, res.Checkpoints[i])
		}
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("checkpoint missing: %v", err)
		}
	}
	if _, err := os.Stat(s.CheckpointPath(2)); !os.IsNotExist(err) {
		t.Fatalf("epoch 2 (0.55) must not be checkpointed")
	}
	if res.StopReason != StopMaxEpochs || res.Epochs != 4 {
		t.Fatalf("expected 4 epochs ending at the cap, got %d (%s)", res.Epochs, res.StopReason)
	}
	if res.BestEpoch != 3 || res.BestAccuracy != 0.7 {
		t.Fatalf("expected best 0.7 at epoch 3, got %v at %d", res.BestAccuracy, res.BestEpoch)
	}
}

func TestRunTrainsAndEvaluates(t *testing.T) {
	dir := t.TempDir()
	v := writeVideo(t, dir)
	cfg := testConfig(filepath.Join(dir, "out"))
	cfg.Output.Plot = true
	cfg.Output.Predictions = true
	rec := &fakeRecorder{}
	table := strikes.Default()

	results, err := Run(context.Background(), []Video{v}, cfg, Deps{Table: table, Recorder: rec})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	res := results[0]
	if res.BestAccuracy < 0.9 {
		t.Fatalf("expected the separable video to be learned, best accuracy %v", res.BestAccuracy)
	}
	if res.Final == nil || res.Final.Result.Accuracy != res.BestAccuracy {
		t.Fatalf("final evaluation should reproduce the best checkpoint accuracy: %+v", res.Final)
	}
	if _, ok := res.PerClass["Jab"]; !ok {
		t.Fatalf("per-class report missing Jab: %v", res.PerClass)
	}

	// the comparison keeps the validation frame numbers (5..14)
	cds, err := datasets.NewValidationComparisonDataset(res.ComparisonCSV, table)
	if err != nil {
		t.Fatalf("reading comparison CSV: %v", err)
	}
	rows, err := cds.Rows()
	if err != nil {
		t.Fatalf("Rows error: %v", err)
	}
	if len(rows) != 10 || rows[0].Frame != 5 || rows[9].Frame != 14 {
		t.Fatalf("unexpected comparison rows %+v", rows)
	}
	if rows[0].Actual != strikes.Jab || rows[9].Actual != strikes.NoStrike {
		t.Fatalf("comparison labels should come from the annotations: %+v", rows)
	}

	outDir := filepath.Join(cfg.Output.Dir, v.Name)
	for _, name := range []string{"history.png", "predictions.csv"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
	}

	if rec.starts != 1 || len(rec.epochs) != res.Epochs || rec.finished != res {
		t.Fatalf("recorder saw starts=%d epochs=%d finished=%v", rec.starts, len(rec.epochs), rec.finished != nil)
	}
}

func TestRunWindowedSequences(t *testing.T) {
	dir := t.TempDir()
	v := writeVideo(t, dir)
	cfg := testConfig(filepath.Join(dir, "out"))
	cfg.Training.Window = 3
	cfg.Training.MaxEpochs = 2

	results, err := Run(context.Background(), []Video{v}, cfg, Deps{Table: strikes.Default()})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if results[0].Epochs != 2 || len(results[0].History) != 2 {
		t.Fatalf("expected 2 epochs, got %d", results[0].Epochs)
	}
}

func TestRunLabelAgreementMode(t *testing.T) {
	dir := t.TempDir()
	v := writeVideo(t, dir)
	v.Validation = filepath.Join(dir, "comparison.csv")
	writeFile(t, v.Validation, "Frame Number,Predicted Strike,Actual Strike\n5,Jab,Jab\n6,Jab,Hook\n7,Cross,Cross\n8,No Strike,Jab\n")

	cfg := testConfig(filepath.Join(dir, "out"))
	cfg.Validation.Mode = ValidationLabels
	cfg.Training.Patience = 2
	cfg.Training.MaxEpochs = 10

	results, err := Run(context.Background(), []Video{v}, cfg, Deps{Table: strikes.Default()})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	res := results[0]
	if res.StopReason != StopEarly || res.Epochs != 3 {
		t.Fatalf("expected early stop after 3 epochs, got %d (%s)", res.Epochs, res.StopReason)
	}
	if len(res.Checkpoints) != 1 || res.BestAccuracy != 0.5 {
		t.Fatalf("expected a single checkpoint at 0.5, got %v (%v)", res.Checkpoints, res.BestAccuracy)
	}
	if res.Final != nil {
		t.Fatalf("label agreement mode must not evaluate the model")
	}
}

func TestRunIsolatesVideos(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")

	// bout1 agrees on 2 of 4 rows, bout2 on 1 of 4. A monitor or best
	// accuracy carried over from bout1 would stop bout2 at its first epoch
	// and keep it from checkpointing.
	first := writeVideo(t, dir)
	first.Validation = filepath.Join(dir, "bout1_comparison.csv")
	writeFile(t, first.Validation, "Frame Number,Predicted Strike,Actual Strike\n5,Jab,Jab\n6,Jab,Hook\n7,Cross,Cross\n8,No Strike,Jab\n")

	dir2 := filepath.Join(dir, "second")
	if err := os.Mkdir(dir2, 0o755); err != nil {
		t.Fatal(err)
	}
	second := writeVideo(t, dir2)
	second.Name = "bout2"
	second.Validation = filepath.Join(dir2, "bout2_comparison.csv")
	writeFile(t, second.Validation, "Frame Number,Predicted Strike,Actual Strike\n5,Jab,Jab\n6,Jab,Hook\n7,Hook,Cross\n8,No Strike,Jab\n")

	cfg := testConfig(out)
	cfg.Validation.Mode = ValidationLabels
	cfg.Training.Patience = 2
	cfg.Training.MaxEpochs = 10

	results, err := Run(context.Background(), []Video{first, second}, cfg, Deps{Table: strikes.Default()})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for i, want := range []struct {
		name string
		best float64
	}{{"bout1", 0.5}, {"bout2", 0.25}} {
		res := results[i]
		if res.Video.Name != want.name {
			t.Fatalf("result %d is for %s, want %s", i, res.Video.Name, want.name)
		}
		if res.StopReason != StopEarly || res.Epochs != 3 {
			t.Fatalf("%s: expected early stop after 3 epochs, got %d (%s)", want.name, res.Epochs, res.StopReason)
		}
		if res.BestAccuracy != want.best || res.BestEpoch != 0 {
			t.Fatalf("%s: expected best %v at epoch 0, got %v at %d", want.name, want.best, res.BestAccuracy, res.BestEpoch)
		}
		ckpt := filepath.Join(out, want.name, "model_epoch_0.ckpt")
		if len(res.Checkpoints) != 1 || res.Checkpoints[0] != ckpt {
			t.Fatalf("%s: expected only %s, got %v", want.name, ckpt, res.Checkpoints)
		}
		if _, err := os.Stat(ckpt); err != nil {
			t.Fatalf("%s: checkpoint missing: %v", want.name, err)
		}
		if res.Steps == 0 {
			t.Fatalf("%s: expected optimizer steps to be counted", want.name)
		}
	}
	if results[1].Steps != results[0].Steps {
		t.Fatalf("each video should start a fresh optimizer: steps %d vs %d", results[0].Steps, results[1].Steps)
	}
}

func TestLoopCapsEpochs(t *testing.T) {
	dir := t.TempDir()
	v := writeVideo(t, dir)
	cfg := testConfig(filepath.Join(dir, "out"))
	cfg.Training.Patience = 1000

	s := NewSession(v, cfg, Deps{Table: strikes.Default()})
	if err := s.prepare(); err != nil {
		t.Fatalf("prepare error: %v", err)
	}
	// a config that skipped Validate still stops at the hard cap
	s.cfg.Training.MaxEpochs = MaxEpochLimit + 50
	s.validator = &scriptedValidator{values: []float64{0.5}}
	res, err := s.loop(context.Background())
	if err != nil {
		t.Fatalf("loop error: %v", err)
	}
	if res.Epochs != MaxEpochLimit || res.StopReason != StopMaxEpochs {
		t.Fatalf("expected %d epochs ending at the cap, got %d (%s)", MaxEpochLimit, res.Epochs, res.StopReason)
	}
}

func TestRunStopsOnFirstError(t *testing.T) {
	dir := t.TempDir()
	good := writeVideo(t, dir)
	bad := good
	bad.Name = "broken"
	bad.Annotations = filepath.Join(dir, "missing.xml")

	cfg := testConfig(filepath.Join(dir, "out"))
	cfg.Training.MaxEpochs = 1
	results, err := Run(context.Background(), []Video{good, bad, good}, cfg, Deps{Table: strikes.Default()})
	if err == nil {
		t.Fatalf("expected error for missing annotations")
	}
	if len(results) != 1 {
		t.Fatalf("expected the first video's result only, got %d", len(results))
	}
}

func TestRunRejectsMisalignedFrames(t *testing.T) {
	dir := t.TempDir()
	v := writeVideo(t, dir)
	writeFile(t, v.Annotations, `<annotations><track label="Jab"><box frame="500"/></track></annotations>`)
	_, err := Run(context.Background(), []Video{v}, testConfig(filepath.Join(dir, "out")), Deps{Table: strikes.Default()})
	if !errors.Is(err, datasets.ErrMisaligned) {
		t.Fatalf("expected ErrMisaligned, got %v", err)
	}
}

func TestRunHonoursCancellation(t *testing.T) {
	dir := t.TempDir()
	v := writeVideo(t, dir)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, []Video{v}, testConfig(filepath.Join(dir, "out")), Deps{Table: strikes.Default()})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewVideos(t *testing.T) {
	videos, err := NewVideos(
		[]string{"a/bout.csv", "b/bout.csv"},
		[]string{"a.xml", "b.xml"},
		[]string{"a_val.csv", "b_val.csv"},
	)
	if err != nil {
		t.Fatalf("NewVideos error: %v", err)
	}
	if videos[0].Name != "bout" || videos[1].Name != "bout_1" {
		t.Fatalf("unexpected names %q %q", videos[0].Name, videos[1].Name)
	}
	if _, err := NewVideos([]string{"a.csv"}, nil, []string{"v.csv"}); err == nil {
		t.Fatalf("expected error for mismatched lists")
	}
}
