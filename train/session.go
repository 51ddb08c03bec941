package train

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"

	"github.com/Noofbiz/strikes/annotations"
	"github.com/Noofbiz/strikes/datasets"
	"github.com/Noofbiz/strikes/earlystop"
	"github.com/Noofbiz/strikes/lstm"
	"github.com/Noofbiz/strikes/metrics"
	"github.com/Noofbiz/strikes/report"
)

// Session owns everything trained for a single video. Nothing is shared
// between sessions.
type Session struct {
	video Video
	cfg   Config
	deps  Deps
	dir   string

	index      *annotations.Index
	loader     *datasets.Loader
	evalLoader *datasets.Loader
	validator  Validator

	model   *lstm.Model
	opt     *lstm.Adam
	loss    *lstm.CrossEntropy
	monitor *earlystop.Monitor

	runID     int64
	recording bool
}

// NewSession creates a session writing under cfg.Output.Dir/<video name>.
func NewSession(video Video, cfg Config, deps Deps) *Session {
	return &Session{
		video: video,
		cfg:   cfg,
		deps:  deps,
		dir:   filepath.Join(cfg.Output.Dir, video.Name),
	}
}

// CheckpointPath is where the checkpoint of epoch is written.
func (s *Session) CheckpointPath(epoch int) string {
	return filepath.Join(s.dir, fmt.Sprintf("model_epoch_%d.ckpt", epoch))
}

// Run prepares the session, trains until stopped and evaluates the best
// checkpoint.
func (s *Session) Run(ctx context.Context) (*RunResult, error) {
	if err := s.prepare(); err != nil {
		return nil, err
	}
	s.startRecording(ctx)
	res, err := s.loop(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.finish(res); err != nil {
		return nil, err
	}
	if s.recording {
		if err := s.deps.Recorder.FinishRun(ctx, s.runID, res); err != nil {
			klog.Warningf("%s: record run result: %v", s.video.Name, err)
		}
	}
	return res, nil
}

// prepare builds the datasets, validator and a freshly initialized model.
func (s *Session) prepare() error {
	table := s.deps.Table
	cfg := s.cfg
	index, err := annotations.ParseFile(s.video.Annotations, table)
	if err != nil {
		return err
	}
	s.index = index
	klog.Infof("%s: %d annotated frames", s.video.Name, index.Len())
	for id, n := range index.Counts(table.Len()) {
		if n > 0 {
			klog.V(1).Infof("%s: %d frames of %s", s.video.Name, n, table.Names()[id])
		}
	}

	frameOpts := datasets.FrameOptions{Columns: datasets.AxisKeypointColumns(), Width: cfg.Model.InputSize}
	trainDS, err := datasets.NewFrameDataset(s.video.Keypoints, index, frameOpts)
	if err != nil {
		return err
	}
	if cfg.Validation.CheckAlignment {
		if err := datasets.CheckAlignment(trainDS.Frames(), index); err != nil {
			return fmt.Errorf("%s: %w", s.video.Keypoints, err)
		}
	}
	examples, err := datasets.Precompute(trainDS, cfg.Precompute.Workers)
	if err != nil {
		return fmt.Errorf("%s: %w", s.video.Keypoints, err)
	}
	s.loader, err = datasets.NewLoader(s.video.Name, examples, datasets.LoaderOptions{
		BatchSize: cfg.Training.BatchSize,
		Shuffle:   true,
		Seed:      cfg.Training.Seed,
		Window:    cfg.Training.Window,
	})
	if err != nil {
		return err
	}

	if err := s.prepareValidator(frameOpts); err != nil {
		return err
	}

	s.model, err = lstm.NewModel(cfg.lstmConfig(s.loader.Width(), table.Len()))
	if err != nil {
		return err
	}
	s.opt, err = lstm.NewAdam(s.model.Parameters(), cfg.adamConfig())
	if err != nil {
		return err
	}
	s.loss = &lstm.CrossEntropy{}
	if cfg.Training.ClassWeights {
		w, err := metrics.ClassWeights(s.loader.Labels(), table.Len())
		if err != nil {
			return err
		}
		s.loss.Weights = w
	}
	s.monitor, err = earlystop.New(cfg.Training.Patience, cfg.Training.MinDelta, earlystop.Maximize)
	if err != nil {
		return err
	}
	klog.V(1).Infof("%s: early stopping will %s validation accuracy (patience %d, min delta %g)",
		s.video.Name, s.monitor.Mode(), cfg.Training.Patience, cfg.Training.MinDelta)
	return nil
}

func (s *Session) prepareValidator(frameOpts datasets.FrameOptions) error {
	table := s.deps.Table
	if s.cfg.Validation.Mode == ValidationLabels {
		cds, err := datasets.NewValidationComparisonDataset(s.video.Validation, table)
		if err != nil {
			return err
		}
		if s.cfg.Validation.CheckAlignment {
			rows, err := cds.Rows()
			if err != nil {
				return err
			}
			frames := make([]int, len(rows))
			for i, r := range rows {
				frames[i] = r.Frame
			}
			if err := datasets.CheckAlignment(frames, s.index); err != nil {
				return fmt.Errorf("%s: %w", s.video.Validation, err)
			}
		}
		klog.Warningf("%s: validation mode %q compares precomputed labels and does not run the model", s.video.Name, ValidationLabels)
		s.validator = &LabelAgreementValidator{Dataset: cds}
		return nil
	}

	vds, err := datasets.NewValidationKeypointDataset(s.video.Validation, s.index, frameOpts)
	if err != nil {
		return err
	}
	if s.cfg.Validation.CheckAlignment {
		if err := datasets.CheckAlignment(vds.Frames(), s.index); err != nil {
			return fmt.Errorf("%s: %w", s.video.Validation, err)
		}
	}
	if vds.HasActual() {
		if checked, diff := datasets.ActualAgreement(vds, table); diff > 0 {
			klog.Warningf("%s: %d of %d %q values disagree with the annotations", s.video.Validation, diff, checked, datasets.ActualStrikeColumn)
		}
	}
	examples, err := datasets.Precompute(vds, s.cfg.Precompute.Workers)
	if err != nil {
		return fmt.Errorf("%s: %w", s.video.Validation, err)
	}
	s.evalLoader, err = datasets.NewLoader(s.video.Name+"/validation", examples, datasets.LoaderOptions{
		BatchSize: s.cfg.Training.BatchSize,
		Window:    s.cfg.Training.Window,
	})
	if err != nil {
		return err
	}
	s.validator = &InferenceValidator{Loader: s.evalLoader, NumClasses: table.Len()}
	return nil
}

func (s *Session) startRecording(ctx context.Context) {
	if s.deps.Recorder == nil {
		return
	}
	id, err := s.deps.Recorder.StartRun(ctx, s.video, s.cfg)
	if err != nil {
		klog.Warningf("%s: run will not be recorded: %v", s.video.Name, err)
		return
	}
	s.runID, s.recording = id, true
}

// loop runs epochs until early stopping or the epoch cap.
func (s *Session) loop(ctx context.Context) (*RunResult, error) {
	res := &RunResult{Video: s.video, BestEpoch: -1}
	best := 0.0
	maxEpochs := min(s.cfg.Training.MaxEpochs, MaxEpochLimit)
	for epoch := 0; ; {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		avgLoss, err := s.trainEpoch(ctx, epoch)
		if err != nil {
			return nil, fmt.Errorf("epoch %d: %w", epoch, err)
		}
		acc, err := s.validator.Accuracy(s.model)
		if err != nil {
			return nil, fmt.Errorf("epoch %d validation: %w", epoch, err)
		}
		klog.Infof("%s epoch %d: Validation Accuracy: %.2f", s.video.Name, epoch, acc)

		stats := report.EpochStats{Epoch: epoch, Loss: avgLoss, ValAccuracy: acc}
		if acc > best {
			path := s.CheckpointPath(epoch)
			if err := lstm.SaveCheckpoint(path, s.model, epoch, acc, lstm.CheckpointOptions{Half: s.cfg.Output.HalfCheckpoints}); err != nil {
				return nil, err
			}
			best = acc
			res.BestAccuracy, res.BestEpoch = acc, epoch
			res.Checkpoints = append(res.Checkpoints, path)
			stats.Checkpoint = path
			size := "?"
			if fi, err := os.Stat(path); err == nil {
				size = humanize.Bytes(uint64(fi.Size()))
			}
			klog.Infof("Model saved at %s (%s)", path, size)
		}
		res.History = append(res.History, stats)
		if s.recording {
			if err := s.deps.Recorder.RecordEpoch(ctx, s.runID, stats); err != nil {
				klog.Warningf("%s: record epoch %d: %v", s.video.Name, epoch, err)
			}
		}

		s.monitor.Observe(acc)
		if monBest, ok := s.monitor.Best(); ok {
			klog.V(1).Infof("%s: early stopping %s (%d/%d), best %.4f", s.video.Name, s.monitor.State(), s.monitor.Counter(), s.cfg.Training.Patience, monBest)
		}
		if s.monitor.Stopped() {
			klog.Infof("%s: early stopping triggered after epoch %d", s.video.Name, epoch)
			res.StopReason = StopEarly
			break
		}
		epoch++
		if epoch >= maxEpochs {
			klog.Infof("%s: maximum of %d epochs reached", s.video.Name, maxEpochs)
			res.StopReason = StopMaxEpochs
			break
		}
		klog.Infof("%s epoch %d: Average Loss: %.4f", s.video.Name, epoch-1, avgLoss)
	}
	res.Epochs = len(res.History)
	res.Steps = s.opt.Steps()
	return res, nil
}

// trainEpoch runs one pass over the shuffled training data and returns the
// average batch loss.
func (s *Session) trainEpoch(ctx context.Context, epoch int) (float64, error) {
	s.model.Train()
	s.loader.Reset()

	var bar *progressbar.ProgressBar
	if s.cfg.Output.Progress {
		bar = progressbar.NewOptions(s.loader.NumBatches(),
			progressbar.OptionSetDescription(fmt.Sprintf("%s epoch %d", s.video.Name, epoch)),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	var total float64
	batches := 0
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		_, inputs, labels, err := s.loader.Yield()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, err
		}
		seqs, err := lstm.SequencesFromTensor(inputs[0])
		if err != nil {
			return 0, err
		}
		ids, ok := labels[0].Value().([]int32)
		if !ok {
			return 0, fmt.Errorf("unexpected label tensor %s", labels[0].Shape())
		}
		y := make([]int, len(ids))
		for i, id := range ids {
			y[i] = int(id)
		}

		s.opt.ZeroGrad()
		l, err := s.model.ForwardBackward(seqs, y, s.loss)
		if err != nil {
			return 0, err
		}
		s.opt.Step()
		total += l
		batches++
		klog.V(2).Infof("%s epoch %d batch %d: loss %.4f", s.video.Name, epoch, batches, l)
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}
	if batches == 0 {
		return 0, errors.New("no training batches")
	}
	return total / float64(batches), nil
}

// finish evaluates the best checkpoint and writes the reports.
func (s *Session) finish(res *RunResult) error {
	if s.cfg.Output.Plot && len(res.History) > 0 {
		path := filepath.Join(s.dir, "history.png")
		if err := report.PlotHistory(path, s.video.Name, res.History); err != nil {
			klog.Warningf("%s: plot history: %v", s.video.Name, err)
		}
	}

	if s.evalLoader == nil || res.BestEpoch < 0 {
		return nil
	}
	table := s.deps.Table
	best, ckpt, err := lstm.LoadCheckpoint(res.Checkpoints[len(res.Checkpoints)-1])
	if err != nil {
		return err
	}
	ev, err := Evaluate(best, s.evalLoader, table.Len())
	if err != nil {
		return err
	}
	perClass, err := metrics.PerClassAccuracy(ev.Actual, ev.Predicted, table)
	if err != nil {
		return err
	}
	res.Final, res.PerClass = ev, perClass

	r := ev.Result
	klog.Infof("%s best epoch %d: accuracy %.4f precision %.4f recall %.4f f1 %.4f",
		s.video.Name, ckpt.Epoch, r.Accuracy, r.Precision, r.Recall, r.F1)
	for _, name := range table.Names() {
		if acc, ok := perClass[name]; ok {
			klog.Infof("%s accuracy for %s: %.4f", s.video.Name, name, acc)
		}
	}
	for t, row := range r.Confusion {
		klog.V(1).Infof("%s confusion[%d]: %v", s.video.Name, t, row)
	}

	res.ComparisonCSV = filepath.Join(s.dir, report.ComparisonFileName(ckpt.Epoch))
	if err := report.WriteComparison(res.ComparisonCSV, ev.Rows(), datasets.PredictedStrikeColumn, table); err != nil {
		return err
	}
	if s.cfg.Output.Predictions {
		if err := report.WritePredictions(filepath.Join(s.dir, "predictions.csv"), ev.Frames, ev.Predicted, table); err != nil {
			return err
		}
	}
	return nil
}
