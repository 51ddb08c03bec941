package lstm

import (
	"encoding/gob"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestCheckpointRoundTrip(t *testing.T) {
	m := newTestModel(t, Config{InputDim: 3, HiddenSize: 5, NumLayers: 2, DropoutRate: 0.5, Seed: 9})
	m.Eval()
	in := [][]float32{{0.2, -0.1, 0.4}, {1, 1, 1}}
	want, _ := m.Scores(in)

	path := filepath.Join(t.TempDir(), "video", "model_epoch_3.ckpt")
	if err := SaveCheckpoint(path, m, 3, 0.75, CheckpointOptions{}); err != nil {
		t.Fatalf("SaveCheckpoint error: %v", err)
	}
	loaded, ckpt, err := LoadCheckpoint(path)
	if err != nil {
		t.Fatalf("LoadCheckpoint error: %v", err)
	}
	if ckpt.Epoch != 3 || ckpt.ValAccuracy != 0.75 {
		t.Fatalf("unexpected metadata: epoch=%d acc=%v", ckpt.Epoch, ckpt.ValAccuracy)
	}
	if loaded.Training() {
		t.Fatalf("loaded model should be in eval mode")
	}
	got, _ := loaded.Scores(in)
	for i := range want {
		for k := range want[i] {
			if got[i][k] != want[i][k] {
				t.Fatalf("score [%d][%d]: want %v got %v", i, k, want[i][k], got[i][k])
			}
		}
	}

	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp.*"))
	if len(matches) != 0 {
		t.Fatalf("temp files left behind: %v", matches)
	}
}

func TestCheckpointHalfPrecision(t *testing.T) {
	m := newTestModel(t, Config{InputDim: 2, HiddenSize: 4, Seed: 2})
	m.Eval()
	in := [][]float32{{0.3, -0.7}}
	want, _ := m.Scores(in)

	dir := t.TempDir()
	full := filepath.Join(dir, "full.ckpt")
	half := filepath.Join(dir, "half.ckpt")
	if err := SaveCheckpoint(full, m, 1, 0.5, CheckpointOptions{}); err != nil {
		t.Fatalf("save full: %v", err)
	}
	if err := SaveCheckpoint(half, m, 1, 0.5, CheckpointOptions{Half: true}); err != nil {
		t.Fatalf("save half: %v", err)
	}
	fi, _ := os.Stat(full)
	hi, _ := os.Stat(half)
	if hi.Size() >= fi.Size() {
		t.Fatalf("half checkpoint (%d bytes) not smaller than full (%d bytes)", hi.Size(), fi.Size())
	}

	loaded, _, err := LoadCheckpoint(half)
	if err != nil {
		t.Fatalf("LoadCheckpoint error: %v", err)
	}
	got, _ := loaded.Scores(in)
	for k := range want[0] {
		if math.Abs(got[0][k]-want[0][k]) > 1e-2 {
			t.Fatalf("score %d: want %v got %v", k, want[0][k], got[0][k])
		}
	}
}

func TestLoadCheckpointErrors(t *testing.T) {
	dir := t.TempDir()
	if _, _, err := LoadCheckpoint(filepath.Join(dir, "missing.ckpt")); err == nil {
		t.Fatalf("expected error for missing file")
	}

	path := filepath.Join(dir, "old.ckpt")
	fh, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := gob.NewEncoder(fh).Encode(&Checkpoint{Version: 99}); err != nil {
		t.Fatal(err)
	}
	fh.Close()
	if _, _, err := LoadCheckpoint(path); !errors.Is(err, ErrCheckpoint) {
		t.Fatalf("expected ErrCheckpoint, got %v", err)
	}

	m := newTestModel(t, Config{InputDim: 2, HiddenSize: 3, Seed: 1})
	if err := SaveCheckpoint("", m, 1, 0, CheckpointOptions{}); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
