package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/Noofbiz/strikes/annotations"
	"github.com/Noofbiz/strikes/datasets"
	"github.com/Noofbiz/strikes/lstm"
	"github.com/Noofbiz/strikes/metrics"
	"github.com/Noofbiz/strikes/report"
	"github.com/Noofbiz/strikes/train"
)

var evalOpts struct {
	checkpoint  string
	keypoints   string
	annotations string
	out         string
	predictions string
	window      int
	batchSize   int
	workers     int
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score a checkpoint on a validation keypoint CSV labeled by annotations",
	RunE: func(cmd *cobra.Command, args []string) error {
		model, ckpt, err := lstm.LoadCheckpoint(evalOpts.checkpoint)
		if err != nil {
			return err
		}
		klog.Infof("Loaded %s (epoch %d, validation accuracy %.4f)", evalOpts.checkpoint, ckpt.Epoch, ckpt.ValAccuracy)

		index, err := annotations.ParseFile(evalOpts.annotations, table)
		if err != nil {
			return err
		}
		loader, err := validationLoader(evalOpts.keypoints, index, ckpt.Config.InputDim, evalOpts.window, evalOpts.batchSize, evalOpts.workers)
		if err != nil {
			return err
		}
		ev, err := train.Evaluate(model, loader, table.Len())
		if err != nil {
			return err
		}
		perClass, err := metrics.PerClassAccuracy(ev.Actual, ev.Predicted, table)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		r := ev.Result
		fmt.Fprintf(w, "frames     %d\naccuracy   %.4f\nprecision  %.4f\nrecall     %.4f\nf1         %.4f\n",
			len(ev.Frames), r.Accuracy, r.Precision, r.Recall, r.F1)
		for _, name := range table.Names() {
			if acc, ok := perClass[name]; ok {
				fmt.Fprintf(w, "accuracy for %s: %.4f\n", name, acc)
			}
		}
		fmt.Fprintln(w, "confusion matrix (rows: actual, columns: predicted)")
		for _, row := range r.Confusion {
			fmt.Fprintln(w, row)
		}

		if evalOpts.out != "" {
			if err := report.WriteComparison(evalOpts.out, ev.Rows(), datasets.PredictedStrikeColumn, table); err != nil {
				return err
			}
		}
		if evalOpts.predictions != "" {
			if err := report.WritePredictions(evalOpts.predictions, ev.Frames, ev.Predicted, table); err != nil {
				return err
			}
		}
		return nil
	},
}

// validationLoader loads a validation keypoint CSV in file order.
func validationLoader(path string, index *annotations.Index, width, window, batchSize, workers int) (*datasets.Loader, error) {
	vds, err := datasets.NewValidationKeypointDataset(path, index, datasets.FrameOptions{
		Columns: datasets.AxisKeypointColumns(),
		Width:   width,
	})
	if err != nil {
		return nil, err
	}
	examples, err := datasets.Precompute(vds, workers)
	if err != nil {
		return nil, err
	}
	return datasets.NewLoader(path, examples, datasets.LoaderOptions{BatchSize: batchSize, Window: window})
}

func init() {
	rootCmd.AddCommand(evaluateCmd)
	f := evaluateCmd.Flags()
	f.StringVar(&evalOpts.checkpoint, "checkpoint", "", "checkpoint file")
	f.StringVar(&evalOpts.keypoints, "keypoints", "", `validation keypoint CSV ("Frame Number" + keypoint columns)`)
	f.StringVar(&evalOpts.annotations, "annotations", "", "annotation XML labeling the frames")
	f.StringVarP(&evalOpts.out, "out", "o", "", "write a comparison CSV here")
	f.StringVar(&evalOpts.predictions, "predictions", "", "write a predictions CSV here")
	f.IntVar(&evalOpts.window, "window", 1, "frames per input sequence (must match training)")
	f.IntVar(&evalOpts.batchSize, "batch-size", 10, "inference batch size")
	f.IntVar(&evalOpts.workers, "workers", 0, "CSV parsing workers (0 = NumCPU)")
	_ = evaluateCmd.MarkFlagRequired("checkpoint")
	_ = evaluateCmd.MarkFlagRequired("keypoints")
	_ = evaluateCmd.MarkFlagRequired("annotations")
}
