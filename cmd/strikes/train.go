package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Noofbiz/strikes/train"
)

type trainOptions struct {
	keypoints   []string
	annotations []string
	validation  []string

	configPath     string
	out            string
	device         string
	validationMode string
	inputSize      int
	layers         int
	hiddenSize     int
	dropout        float64
	batchSize      int
	learningRate   float64
	clipNorm       float64
	epochs         int
	patience       int
	minDelta       float64
	window         int
	workers        int
	seed           int64
	classWeights   bool
	half           bool
	plot           bool
	progress       bool
	predictions    bool
	noAlignCheck   bool
	printConfig    bool
}

var trainOpts trainOptions

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train one model per video and checkpoint improving epochs",
	Long: `Train a fresh classifier for each video. --keypoints, --annotations and
--validation are parallel lists: the i-th entries describe the same video.

Settings come from the defaults, then the --config JSON file, then any flag
given explicitly on the command line.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := effectiveConfig(cmd.Flags(), &trainOpts)
		if err != nil {
			return err
		}
		if trainOpts.printConfig {
			data, err := cfg.JSON()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}

		videos, err := train.NewVideos(trainOpts.keypoints, trainOpts.annotations, trainOpts.validation)
		if err != nil {
			return err
		}
		deps := train.Deps{Table: table}
		if DB != nil {
			deps.Recorder = DB
		}
		results, err := train.Run(cmd.Context(), videos, cfg, deps)
		for _, res := range results {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d epochs (%s), best validation accuracy %.4f at epoch %d\n",
				res.Video.Name, res.Epochs, res.StopReason, res.BestAccuracy, res.BestEpoch)
		}
		return err
	},
}

// effectiveConfig merges defaults, the JSON config file and explicitly set
// flags, in that order of precedence.
func effectiveConfig(flags *pflag.FlagSet, o *trainOptions) (train.Config, error) {
	cfg := train.DefaultConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = train.LoadConfig(o.configPath, cfg); err != nil {
			return cfg, err
		}
	}

	overrides := map[string]func(){
		"out":             func() { cfg.Output.Dir = o.out },
		"device":          func() { cfg.Training.Device = o.device },
		"validation-mode": func() { cfg.Validation.Mode = o.validationMode },
		"input-size":      func() { cfg.Model.InputSize = o.inputSize },
		"layers":          func() { cfg.Model.NumLayers = o.layers },
		"hidden-size":     func() { cfg.Model.HiddenSize = o.hiddenSize },
		"dropout":         func() { cfg.Model.Dropout = o.dropout },
		"batch-size":      func() { cfg.Training.BatchSize = o.batchSize },
		"learning-rate":   func() { cfg.Training.LearningRate = o.learningRate },
		"clip-norm":       func() { cfg.Training.ClipNorm = o.clipNorm },
		"epochs":          func() { cfg.Training.MaxEpochs = o.epochs },
		"patience":        func() { cfg.Training.Patience = o.patience },
		"min-delta":       func() { cfg.Training.MinDelta = o.minDelta },
		"window":          func() { cfg.Training.Window = o.window },
		"workers":         func() { cfg.Precompute.Workers = o.workers },
		"seed":            func() { cfg.Training.Seed = o.seed },
		"class-weights":   func() { cfg.Training.ClassWeights = o.classWeights },
		"half":            func() { cfg.Output.HalfCheckpoints = o.half },
		"plot":            func() { cfg.Output.Plot = o.plot },
		"progress":        func() { cfg.Output.Progress = o.progress },
		"predictions":     func() { cfg.Output.Predictions = o.predictions },
		"no-align-check":  func() { cfg.Validation.CheckAlignment = !o.noAlignCheck },
	}
	for name, apply := range overrides {
		if flags.Changed(name) {
			apply()
		}
	}
	return cfg, cfg.Validate()
}

func init() {
	rootCmd.AddCommand(trainCmd)
	def := train.DefaultConfig()
	f := trainCmd.Flags()

	f.StringSliceVar(&trainOpts.keypoints, "keypoints", nil, "training keypoint CSVs (frame_id + keypoint columns)")
	f.StringSliceVar(&trainOpts.annotations, "annotations", nil, "annotation XML files, one per keypoint CSV")
	f.StringSliceVar(&trainOpts.validation, "validation", nil, "validation CSVs, one per keypoint CSV")

	f.StringVar(&trainOpts.configPath, "config", "", "JSON configuration file")
	f.StringVarP(&trainOpts.out, "out", "o", def.Output.Dir, "directory for checkpoints and reports")
	f.StringVar(&trainOpts.device, "device", def.Training.Device, "compute device")
	f.StringVar(&trainOpts.validationMode, "validation-mode", def.Validation.Mode, `"inference" (run the model) or "labels" (compare precomputed label columns)`)
	f.IntVar(&trainOpts.inputSize, "input-size", def.Model.InputSize, "feature vector width")
	f.IntVar(&trainOpts.layers, "layers", def.Model.NumLayers, "number of stacked LSTM layers")
	f.IntVar(&trainOpts.hiddenSize, "hidden-size", def.Model.HiddenSize, "LSTM hidden size")
	f.Float64Var(&trainOpts.dropout, "dropout", def.Model.Dropout, "dropout rate")
	f.IntVar(&trainOpts.batchSize, "batch-size", def.Training.BatchSize, "mini-batch size")
	f.Float64Var(&trainOpts.learningRate, "learning-rate", def.Training.LearningRate, "Adam learning rate")
	f.Float64Var(&trainOpts.clipNorm, "clip-norm", def.Training.ClipNorm, "global gradient norm clip (0 disables)")
	f.IntVar(&trainOpts.epochs, "epochs", def.Training.MaxEpochs, "maximum epochs per video")
	f.IntVar(&trainOpts.patience, "patience", def.Training.Patience, "early stopping patience in epochs")
	f.Float64Var(&trainOpts.minDelta, "min-delta", def.Training.MinDelta, "minimum validation accuracy gain that counts as improvement")
	f.IntVar(&trainOpts.window, "window", def.Training.Window, "frames per input sequence")
	f.IntVar(&trainOpts.workers, "workers", def.Precompute.Workers, "CSV parsing workers (0 = NumCPU)")
	f.Int64Var(&trainOpts.seed, "seed", def.Training.Seed, "random seed (0 = time based)")
	f.BoolVar(&trainOpts.classWeights, "class-weights", false, "weight the loss by inverse class frequency")
	f.BoolVar(&trainOpts.half, "half", false, "store checkpoints as float16")
	f.BoolVar(&trainOpts.plot, "plot", false, "write a training history plot per video")
	f.BoolVar(&trainOpts.progress, "progress", false, "show a progress bar per epoch")
	f.BoolVar(&trainOpts.predictions, "predictions", false, "write predictions.csv for the best checkpoint")
	f.BoolVar(&trainOpts.noAlignCheck, "no-align-check", false, "skip the frame alignment check between CSVs and annotations")
	f.BoolVar(&trainOpts.printConfig, "print-config", false, "print the effective configuration and exit")
}
