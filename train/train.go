// Package train runs the per-video training loop: it builds the datasets,
// trains a fresh classifier for each video, scores every epoch, keeps
// checkpoints of improving epochs and evaluates the best one.
package train

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"k8s.io/klog/v2"

	"github.com/Noofbiz/strikes/report"
	"github.com/Noofbiz/strikes/strikes"
)

// Stop reasons reported in RunResult.
const (
	StopEarly     = "early_stopping"
	StopMaxEpochs = "max_epochs"
)

// Video is one training unit: its keypoints, annotations and validation CSV.
type Video struct {
	Name        string `json:"name"`
	Keypoints   string `json:"keypoints"`
	Annotations string `json:"annotations"`
	Validation  string `json:"validation"`
}

// NewVideos zips the three parallel path lists. Videos are named after their
// keypoint file, with a numeric suffix on collisions.
func NewVideos(keypoints, annotations, validation []string) ([]Video, error) {
	if len(keypoints) != len(annotations) || len(keypoints) != len(validation) {
		return nil, fmt.Errorf("path lists differ in length: keypoints=%d annotations=%d validation=%d",
			len(keypoints), len(annotations), len(validation))
	}
	if len(keypoints) == 0 {
		return nil, errors.New("no videos given")
	}
	seen := make(map[string]bool, len(keypoints))
	videos := make([]Video, len(keypoints))
	for i := range keypoints {
		base := filepath.Base(keypoints[i])
		name := strings.TrimSuffix(base, filepath.Ext(base))
		if seen[name] {
			name = fmt.Sprintf("%s_%d", name, i)
		}
		seen[name] = true
		videos[i] = Video{
			Name:        name,
			Keypoints:   keypoints[i],
			Annotations: annotations[i],
			Validation:  validation[i],
		}
	}
	return videos, nil
}

// Recorder receives run events, e.g. to persist them in a database.
type Recorder interface {
	StartRun(ctx context.Context, video Video, cfg Config) (int64, error)
	RecordEpoch(ctx context.Context, runID int64, stats report.EpochStats) error
	FinishRun(ctx context.Context, runID int64, res *RunResult) error
}

// Deps are the collaborators shared by every session of a run.
type Deps struct {
	Table *strikes.Table
	// Recorder is optional.
	Recorder Recorder
}

// RunResult is the outcome of one video's session.
type RunResult struct {
	Video        Video
	Epochs       int
	StopReason   string
	BestAccuracy float64
	// BestEpoch is -1 when no epoch improved on 0 accuracy.
	BestEpoch   int
	Checkpoints []string
	History     []report.EpochStats
	// Steps is the number of optimizer updates applied.
	Steps int

	// Set after inference validation when a checkpoint exists.
	Final         *Evaluation
	PerClass      map[string]float64
	ComparisonCSV string
}

// Run trains one model per video, strictly in order. The first error stops
// the run; results of the videos completed before it are returned with it.
func Run(ctx context.Context, videos []Video, cfg Config, deps Deps) ([]*RunResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Table == nil {
		return nil, errors.New("nil strike table")
	}
	if cfg.Training.Device != "" && cfg.Training.Device != "cpu" {
		klog.Warningf("Device %q requested; training runs on the host CPU", cfg.Training.Device)
	}

	var results []*RunResult
	for _, v := range videos {
		klog.Infof("Training on %s", v.Keypoints)
		res, err := NewSession(v, cfg, deps).Run(ctx)
		if err != nil {
			return results, fmt.Errorf("video %s: %w", v.Name, err)
		}
		results = append(results, res)
	}
	return results, nil
}
