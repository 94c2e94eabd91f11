package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/andresmejia3/eigensentinel/internal/evaluation"
	"github.com/andresmejia3/eigensentinel/internal/utils"
	"github.com/spf13/cobra"
)

var (
	runsCurve  int64
	runsDelete int64
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List saved evaluation reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runRuns(cmd.Context())
	},
}

func init() {
	runsCmd.Flags().Int64Var(&runsCurve, "curve", 0, "Print the ROC curve of this run as CSV")
	runsCmd.Flags().Int64Var(&runsDelete, "delete", 0, "Delete this run")
	runsCmd.MarkFlagsMutuallyExclusive("curve", "delete")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(ctx context.Context) error {
	db, err := openStore(ctx)
	if err != nil {
		utils.ShowError("Failed to open report store", err)
		return err
	}

	switch {
	case runsCurve > 0:
		curve, err := db.GetCurve(ctx, runsCurve)
		if err != nil {
			utils.ShowError(fmt.Sprintf("Failed to load curve of run %d", runsCurve), err)
			return err
		}
		return evaluation.WriteCSV(os.Stdout, curve)
	case runsDelete > 0:
		if err := db.DeleteRun(ctx, runsDelete); err != nil {
			utils.ShowError(fmt.Sprintf("Failed to delete run %d", runsDelete), err)
			return err
		}
		fmt.Printf("🗑️  Deleted run %d\n", runsDelete)
		return nil
	}

	runs, err := db.ListRuns(ctx)
	if err != nil {
		utils.ShowError("Failed to list runs", err)
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No evaluation runs found in database.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tTRAIN\tTEST\tK\tTHRESHOLD\tACCURACY\tF1\tAUC\tCREATED")
	fmt.Fprintln(w, "--\t-----\t----\t-\t---------\t--------\t--\t---\t-------")
	for _, r := range runs {
		fmt.Fprintf(w, "%d\t%s (%d)\t%s (%d)\t%d\t%.2f\t%s\t%s\t%.4f\t%s\n",
			r.ID, r.TrainDir, r.TrainSize, r.TestDir, r.TestSize, r.Components, r.Threshold,
			fmtRate(r.Metrics.Accuracy), fmtRate(r.Metrics.F1), r.AUC,
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
		)
	}
	w.Flush()
	return nil
}
