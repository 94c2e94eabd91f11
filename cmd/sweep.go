package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/andresmejia3/eigensentinel/internal/evaluation"
	"github.com/andresmejia3/eigensentinel/internal/utils"
	"github.com/spf13/cobra"
)

var sweepOpts Options

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Build a threshold-swept ROC curve without retraining",
	Long: `Classifies every test image once, then re-scores the whole test set at a
range of thresholds. By default the thresholds are evenly spaced from 0 to the
largest nearest-neighbor distance; use --max to fix the upper end.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateSweepFlags(&sweepOpts); err != nil {
			return err
		}
		cmd.SilenceUsage = true
		return runSweep(cmd.Context(), sweepOpts)
	},
}

func init() {
	addModelFlags(sweepCmd, &sweepOpts)
	addTestFlags(sweepCmd, &sweepOpts)
	sweepCmd.Flags().IntVar(&sweepOpts.Steps, "steps", 50, "Number of thresholds to evaluate")
	sweepCmd.Flags().Float64Var(&sweepOpts.MaxThreshold, "max", 0, "Largest threshold to evaluate (0 = largest observed distance)")
	rootCmd.AddCommand(sweepCmd)
}

func validateSweepFlags(opts *Options) error {
	if err := validateModelFlags(opts); err != nil {
		return err
	}
	if err := requireDir(opts.TestDir, "test"); err != nil {
		return err
	}
	if opts.Steps < 2 {
		return fmt.Errorf("steps must be >= 2, got %d", opts.Steps)
	}
	if err := validateThreshold(opts.MaxThreshold); err != nil {
		return fmt.Errorf("invalid max: %w", err)
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return nil
}

func runSweep(ctx context.Context, opts Options) error {
	model, _, err := trainModel(ctx, opts)
	if err != nil {
		utils.ShowError("Failed to train model", err)
		return err
	}
	testSet, err := loadCorpus(ctx, opts.TestDir, "📂 Loading test corpus")
	if err != nil {
		utils.ShowError("Failed to load test corpus", err)
		return err
	}

	var thresholds []float64
	if opts.MaxThreshold > 0 {
		thresholds = evaluation.DefaultThresholds(opts.MaxThreshold, opts.Steps)
	}

	bar := newBar(len(testSet), "🧪 Measuring distances")
	report, err := evaluation.Sweep(ctx, model, testSet, thresholds, opts.Steps, evaluation.Options{
		Workers:  opts.Workers,
		OnSample: func() { _ = bar.Add(1) },
		Logger:   log,
	})
	_ = bar.Finish()
	if err != nil {
		utils.ShowError("Sweep failed", err)
		return err
	}

	if err := writeROC(opts.ROCPath, func(f *os.File) error { return evaluation.WriteCSV(f, report.Curve()) }); err != nil {
		utils.ShowError("Failed to write ROC curve", err)
		return err
	}

	if opts.JSON {
		return evaluation.WriteJSON(os.Stdout, report)
	}
	printSweep(os.Stdout, report)
	return nil
}

func printSweep(w io.Writer, r *evaluation.SweepReport) {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "THRESHOLD\tTP\tFP\tTN\tFN\tACCURACY\tF1\tFPR\tTPR")
	fmt.Fprintln(tw, "---------\t--\t--\t--\t--\t--------\t--\t---\t---")
	for _, p := range r.Points {
		fmt.Fprintf(tw, "%.2f\t%d\t%d\t%d\t%d\t%s\t%s\t%.4f\t%.4f\n",
			p.Threshold, p.Counts.TP, p.Counts.FP, p.Counts.TN, p.Counts.FN,
			fmtRate(p.Metrics.Accuracy), fmtRate(p.Metrics.F1), p.Point.FPR, p.Point.TPR,
		)
	}
	tw.Flush()

	fmt.Fprintf(w, "\nAUC (threshold sweep): %.4f\n", r.AUC)
	if best, ok := r.Best(); ok {
		fmt.Fprintf(w, "Best F1 %s at threshold %.2f\n", fmtRate(best.Metrics.F1), best.Threshold)
	}
}
