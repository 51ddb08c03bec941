package lstm

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/x448/float16"
	"k8s.io/klog/v2"
)

// CheckpointVersion is the gob layout written by SaveCheckpoint.
const CheckpointVersion = 1

// ErrCheckpoint is wrapped by LoadCheckpoint for files that decode but do not
// describe a usable model.
var ErrCheckpoint = errors.New("invalid checkpoint")

// Checkpoint is the on-disk model snapshot.
type Checkpoint struct {
	Version     int
	Epoch       int
	ValAccuracy float64
	CreatedAt   int64 // unix seconds
	Config      Config
	Params      []EncodedParam
}

// EncodedParam is one parameter tensor. Exactly one of Values and Half is set.
type EncodedParam struct {
	Name       string
	Rows, Cols int
	Values     []float64
	Half       []uint16 // IEEE 754 binary16 bits
}

// CheckpointOptions controls how parameters are stored.
type CheckpointOptions struct {
	// Half stores parameters as float16, roughly a quarter of the size.
	Half bool
}

// SaveCheckpoint writes the model to path with a temp file and rename, so a
// reader never observes a partial checkpoint.
func SaveCheckpoint(path string, m *Model, epoch int, acc float64, opts CheckpointOptions) error {
	if path == "" {
		return errors.New("empty checkpoint path")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	ckpt := Checkpoint{
		Version:     CheckpointVersion,
		Epoch:       epoch,
		ValAccuracy: acc,
		CreatedAt:   time.Now().Unix(),
		Config:      m.Config,
	}
	for _, p := range m.params {
		enc := EncodedParam{Name: p.Name, Rows: p.Rows, Cols: p.Cols}
		if opts.Half {
			enc.Half = make([]uint16, len(p.Value))
			for i, v := range p.Value {
				enc.Half[i] = float16.Fromfloat32(float32(v)).Bits()
			}
		} else {
			enc.Values = append([]float64(nil), p.Value...)
		}
		ckpt.Params = append(ckpt.Params, enc)
	}

	tmpFile, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp checkpoint: %w", err)
	}
	tmpName := tmpFile.Name()
	defer func() {
		tmpFile.Close()
		_ = os.Remove(tmpName)
	}()

	if err := gob.NewEncoder(tmpFile).Encode(&ckpt); err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		klog.Warningf("sync temp checkpoint %s: %v", tmpName, err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp checkpoint: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename checkpoint to %s: %w", path, err)
	}
	return nil
}

// LoadCheckpoint restores a model from path. The returned model is in eval
// mode and the checkpoint's Params are left populated.
func LoadCheckpoint(path string) (*Model, *Checkpoint, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open checkpoint %s: %w", path, err)
	}
	defer fh.Close()

	var ckpt Checkpoint
	if err := gob.NewDecoder(fh).Decode(&ckpt); err != nil {
		return nil, nil, fmt.Errorf("decode checkpoint %s: %w", path, err)
	}
	if ckpt.Version != CheckpointVersion {
		return nil, nil, fmt.Errorf("%w: version %d, expected %d", ErrCheckpoint, ckpt.Version, CheckpointVersion)
	}
	m, err := NewModel(ckpt.Config)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCheckpoint, err)
	}

	byName := make(map[string]EncodedParam, len(ckpt.Params))
	for _, p := range ckpt.Params {
		byName[p.Name] = p
	}
	for _, p := range m.params {
		enc, ok := byName[p.Name]
		if !ok {
			return nil, nil, fmt.Errorf("%w: missing parameter %q", ErrCheckpoint, p.Name)
		}
		if enc.Rows != p.Rows || enc.Cols != p.Cols {
			return nil, nil, fmt.Errorf("%w: parameter %q is %dx%d, expected %dx%d",
				ErrCheckpoint, p.Name, enc.Rows, enc.Cols, p.Rows, p.Cols)
		}
		switch {
		case len(enc.Half) == len(p.Value):
			for i, b := range enc.Half {
				p.Value[i] = float64(float16.Frombits(b).Float32())
			}
		case len(enc.Values) == len(p.Value):
			copy(p.Value, enc.Values)
		default:
			return nil, nil, fmt.Errorf("%w: parameter %q has no values", ErrCheckpoint, p.Name)
		}
	}
	m.Eval()
	return m, &ckpt, nil
}
