package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"text/tabwriter"

	"github.com/andresmejia3/eigensentinel/internal/evaluation"
	"github.com/andresmejia3/eigensentinel/internal/store"
	"github.com/andresmejia3/eigensentinel/internal/types"
	"github.com/andresmejia3/eigensentinel/internal/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var evalOpts Options

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score a test corpus against a training corpus at a fixed threshold",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateEvalFlags(&evalOpts); err != nil {
			return err
		}
		cmd.SilenceUsage = true
		return runEvaluate(cmd.Context(), evalOpts)
	},
}

func init() {
	addModelFlags(evaluateCmd, &evalOpts)
	addTestFlags(evaluateCmd, &evalOpts)
	evaluateCmd.Flags().Float64VarP(&evalOpts.Threshold, "threshold", "t", defaultThreshold, "Maximum eigenspace distance for a match (lower is stricter)")
	evaluateCmd.Flags().BoolVar(&evalOpts.Save, "save", false, "Persist the report to PostgreSQL")
	rootCmd.AddCommand(evaluateCmd)
}

// addTestFlags registers the flags shared by evaluate and sweep.
func addTestFlags(cmd *cobra.Command, opts *Options) {
	cmd.Flags().StringVarP(&opts.TestDir, "test", "E", "", "Test corpus directory (one sub-directory per person)")
	cmd.Flags().IntVarP(&opts.Workers, "workers", "w", runtime.NumCPU(), "Number of parallel classification workers")
	cmd.Flags().StringVar(&opts.ROCPath, "roc-csv", "", "Write the ROC curve as CSV to this file")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Print the full report as JSON")
	cmd.MarkFlagRequired("test")
}

// validateEvalFlags ensures all CLI arguments are valid before loading any images.
func validateEvalFlags(opts *Options) error {
	if err := validateModelFlags(opts); err != nil {
		return err
	}
	if err := requireDir(opts.TestDir, "test"); err != nil {
		return err
	}
	if err := validateThreshold(opts.Threshold); err != nil {
		return err
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return nil
}

func runEvaluate(ctx context.Context, opts Options) error {
	model, trainSet, err := trainModel(ctx, opts)
	if err != nil {
		utils.ShowError("Failed to train model", err)
		return err
	}
	testSet, err := loadCorpus(ctx, opts.TestDir, "📂 Loading test corpus")
	if err != nil {
		utils.ShowError("Failed to load test corpus", err)
		return err
	}

	fmt.Fprintf(os.Stderr, "⚙️  Classifying with %d workers...\n", opts.Workers)
	bar := newBar(len(testSet), "🧪 Evaluating")
	report, err := evaluation.Evaluate(ctx, model, testSet, opts.Threshold, evaluation.Options{
		Workers:  opts.Workers,
		OnSample: func() { _ = bar.Add(1) },
		Logger:   log,
	})
	_ = bar.Finish()
	if err != nil {
		utils.ShowError("Evaluation failed", err)
		return err
	}
	log.Info("evaluation complete",
		zap.Float64("threshold", report.Threshold),
		zap.Float64("accuracy", report.Metrics.Accuracy),
		zap.Float64("auc", report.AUC),
	)

	if err := writeROC(opts.ROCPath, func(f *os.File) error { return evaluation.WriteCSV(f, report.Curve) }); err != nil {
		utils.ShowError("Failed to write ROC curve", err)
		return err
	}

	if opts.JSON {
		if err := evaluation.WriteJSON(os.Stdout, report); err != nil {
			return err
		}
	} else {
		printReport(os.Stdout, report)
	}

	if !opts.Save {
		return nil
	}
	id, err := saveReport(ctx, opts, model.Components(), trainSet, testSet, report)
	if err != nil {
		utils.ShowError("Failed to save report", err)
		return err
	}
	fmt.Fprintf(os.Stderr, "💾 Saved report as run %d\n", id)
	return nil
}

func saveReport(ctx context.Context, opts Options, components int, trainSet, testSet []types.LabeledSample, report *evaluation.Report) (int64, error) {
	paths := make([]string, len(trainSet))
	for i, s := range trainSet {
		paths[i] = s.Path
	}
	fingerprint, err := utils.Fingerprint(paths)
	if err != nil {
		return 0, fmt.Errorf("failed to fingerprint training corpus: %w", err)
	}

	db, err := openStore(ctx)
	if err != nil {
		return 0, err
	}
	return db.SaveReport(ctx, store.RunMeta{
		TrainDir:         absPath(opts.TrainDir),
		TestDir:          absPath(opts.TestDir),
		TrainFingerprint: fingerprint,
		TrainSize:        len(trainSet),
		TestSize:         len(testSet),
		Components:       components,
	}, report)
}

func printReport(w io.Writer, r *evaluation.Report) {
	fmt.Fprintf(w, "\n---------------------------------------------------------\n")
	fmt.Fprintf(w, "📊 EVALUATION SUMMARY (threshold %.2f)\n", r.Threshold)
	fmt.Fprintf(w, "---------------------------------------------------------\n")

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "TP\tFP\tTN\tFN\tTOTAL")
	fmt.Fprintln(tw, "--\t--\t--\t--\t-----")
	fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\n", r.Counts.TP, r.Counts.FP, r.Counts.TN, r.Counts.FN, r.Counts.Total())
	tw.Flush()

	fmt.Fprintln(w)
	printMetrics(w, r.Metrics)
	fmt.Fprintf(w, "AUC (per-sample ROC): %.4f\n", r.AUC)
	fmt.Fprintf(w, "---------------------------------------------------------\n")
}

func printMetrics(w io.Writer, m evaluation.Metrics) {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "Accuracy\t%s\n", fmtRate(m.Accuracy))
	fmt.Fprintf(tw, "Precision\t%s\n", fmtRate(m.Precision))
	fmt.Fprintf(tw, "Recall\t%s\n", fmtRate(m.Recall))
	fmt.Fprintf(tw, "Specificity\t%s\n", fmtRate(m.Specificity))
	fmt.Fprintf(tw, "F1\t%s\n", fmtRate(m.F1))
	fmt.Fprintf(tw, "False positive rate\t%s\n", fmtRate(m.FalsePositiveRate))
	tw.Flush()
}

// fmtRate renders a ratio in [0,1] as a percentage with two decimals.
func fmtRate(v float64) string {
	return fmt.Sprintf("%6.2f%%", 100*v)
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
