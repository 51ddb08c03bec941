package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded training runs (requires --db)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if DB == nil {
			return errors.New("no run registry: pass --db or set STRIKES_DATABASE_URL")
		}
		runs, err := DB.ListRuns(cmd.Context(), runsLimit)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tVIDEO\tSTARTED\tEPOCHS\tSTOP\tBEST")
		for _, r := range runs {
			epochs, stop, best := "-", "-", "-"
			if r.Epochs != nil {
				epochs = fmt.Sprint(*r.Epochs)
			}
			if r.StopReason != nil {
				stop = *r.StopReason
			}
			if r.BestAccuracy != nil && r.BestEpoch != nil {
				best = fmt.Sprintf("%.4f@%d", *r.BestAccuracy, *r.BestEpoch)
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.Video, r.StartedAt.Format("2006-01-02 15:04"), epochs, stop, best)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "number of runs to show")
}
