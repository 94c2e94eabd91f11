package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/andresmejia3/eigensentinel/internal/corpus"
	"github.com/andresmejia3/eigensentinel/internal/eigenface"
	"github.com/andresmejia3/eigensentinel/internal/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var trainOpts Options

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Build an eigenspace from a training corpus and summarize it",
	Long: `Loads every image under the training directory, computes the mean face and
the principal components, and prints a summary. Nothing is written to disk
unless --export-dir is given, in which case the mean face and the leading
eigenfaces are saved as PNG images.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateModelFlags(&trainOpts); err != nil {
			return err
		}
		if trainOpts.ExportCount < 0 {
			return fmt.Errorf("export count must be >= 0, got %d", trainOpts.ExportCount)
		}
		cmd.SilenceUsage = true
		return runTrain(cmd.Context(), trainOpts)
	},
}

func init() {
	addModelFlags(trainCmd, &trainOpts)
	trainCmd.Flags().StringVar(&trainOpts.ExportDir, "export-dir", "", "Write the mean face and eigenfaces as PNG images to this directory")
	trainCmd.Flags().IntVar(&trainOpts.ExportCount, "export-count", 10, "Number of leading eigenfaces to export")
	rootCmd.AddCommand(trainCmd)
}

// addModelFlags registers the flags that control training.
func addModelFlags(cmd *cobra.Command, opts *Options) {
	cmd.Flags().StringVarP(&opts.TrainDir, "train", "T", "", "Training corpus directory (one sub-directory per person)")
	cmd.Flags().IntVar(&opts.Components, "components", 0, "Keep at most this many eigenfaces (0 = all)")
	cmd.Flags().Float64Var(&opts.VarianceRatio, "variance", 0, "Keep the fewest eigenfaces explaining this fraction of variance (0 = all)")
	cmd.MarkFlagRequired("train")
}

func runTrain(ctx context.Context, opts Options) error {
	model, samples, err := trainModel(ctx, opts)
	if err != nil {
		utils.ShowError("Failed to train model", err)
		return err
	}

	people := make(map[string]struct{})
	for _, label := range model.Labels() {
		people[label] = struct{}{}
	}

	fmt.Printf("✅ Trained on %d images of %d people\n", model.Len(), len(people))
	fmt.Printf("   Pixels per image:   %d\n", model.Dim())
	fmt.Printf("   Eigenfaces kept:    %d\n", model.Components())
	fmt.Printf("   Variance explained: %.2f%%\n", 100*model.ExplainedVariance())

	if opts.ExportDir == "" {
		return nil
	}
	if err := exportEigenfaces(model, samples[0].Path, opts); err != nil {
		utils.ShowError("Failed to export eigenfaces", err)
		return err
	}
	return nil
}

func exportEigenfaces(model *eigenface.Model, samplePath string, opts Options) error {
	width, height, err := corpus.Size(samplePath, corpusOptions())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(opts.ExportDir, 0755); err != nil {
		return err
	}

	meanPath := filepath.Join(opts.ExportDir, "mean.png")
	if err := corpus.SaveVector(meanPath, model.Mean(), width, height); err != nil {
		return err
	}

	count := min(opts.ExportCount, model.Components())
	for i := 0; i < count; i++ {
		path := filepath.Join(opts.ExportDir, fmt.Sprintf("eigenface_%03d.png", i))
		if err := corpus.SaveVector(path, model.Eigenface(i), width, height); err != nil {
			return err
		}
	}
	log.Info("exported eigenfaces", zap.String("dir", opts.ExportDir), zap.Int("count", count))
	fmt.Fprintf(os.Stderr, "🖼️  Exported mean face and %d eigenfaces to %s\n", count, opts.ExportDir)
	return nil
}
