package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Noofbiz/strikes/annotations"
	"github.com/Noofbiz/strikes/datasets"
	"github.com/Noofbiz/strikes/lstm"
	"github.com/Noofbiz/strikes/report"
)

var compareOpts struct {
	checkpoint string
	validation string
	out        string
	epoch      int
	window     int
	batchSize  int
	workers    int
}

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Write a checkpoint's predictions next to a validation CSV's Actual Strike column",
	RunE: func(cmd *cobra.Command, args []string) error {
		model, ckpt, err := lstm.LoadCheckpoint(compareOpts.checkpoint)
		if err != nil {
			return err
		}
		loader, err := validationLoader(compareOpts.validation, annotations.Empty(), ckpt.Config.InputDim,
			compareOpts.window, compareOpts.batchSize, compareOpts.workers)
		if err != nil {
			return err
		}
		preds, err := predictAll(model, loader)
		if err != nil {
			return err
		}
		epoch := compareOpts.epoch
		if epoch < 0 {
			epoch = ckpt.Epoch
		}
		path, err := report.CompareWithValidation(compareOpts.validation, preds, compareOpts.out, epoch, table)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

// predictAll predicts every example of loader in order.
func predictAll(m *lstm.Model, loader *datasets.Loader) ([]int, error) {
	m.Eval()
	loader.Reset()
	var out []int
	for {
		b, err := loader.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		preds, err := m.PredictSeq(b.Inputs)
		if err != nil {
			return nil, err
		}
		out = append(out, preds...)
	}
}

var agreementCmd = &cobra.Command{
	Use:   "agreement <comparison.csv>...",
	Short: "Report how often the Predicted and Actual Strike columns of comparison CSVs agree",
	Long: `Report the label agreement of precomputed comparison CSVs. No model is run,
so the number only says whether two label columns are consistent.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, path := range args {
			ds, err := datasets.NewValidationComparisonDataset(path, table)
			if err != nil {
				return err
			}
			agree, err := ds.LabelAgreement()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rows, agreement %.4f\n", path, ds.Len(), agree)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(compareCmd, agreementCmd)
	f := compareCmd.Flags()
	f.StringVar(&compareOpts.checkpoint, "checkpoint", "", "checkpoint file")
	f.StringVar(&compareOpts.validation, "validation", "", `validation CSV with "Frame Number", keypoint and "Actual Strike" columns`)
	f.StringVarP(&compareOpts.out, "out", "o", ".", "output directory")
	f.IntVar(&compareOpts.epoch, "epoch", -1, "epoch used in the file name (default: the checkpoint's epoch)")
	f.IntVar(&compareOpts.window, "window", 1, "frames per input sequence (must match training)")
	f.IntVar(&compareOpts.batchSize, "batch-size", 10, "inference batch size")
	f.IntVar(&compareOpts.workers, "workers", 0, "CSV parsing workers (0 = NumCPU)")
	_ = compareCmd.MarkFlagRequired("checkpoint")
	_ = compareCmd.MarkFlagRequired("validation")
}
