package cmd

import (
	"context"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/andresmejia3/eigensentinel/internal/corpus"
	"github.com/andresmejia3/eigensentinel/internal/eigenface"
	"github.com/andresmejia3/eigensentinel/internal/types"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

func corpusOptions() corpus.Options {
	return corpus.Options{Width: imgWidth, Height: imgHeight, Logger: log}
}

func newBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr), // Write bar to Stderr
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

// loadCorpus reads a labeled image directory with a progress bar.
func loadCorpus(ctx context.Context, dir, description string) ([]types.LabeledSample, error) {
	var bar *progressbar.ProgressBar
	opts := corpusOptions()
	opts.Progress = func(done, total int) {
		if bar == nil {
			bar = newBar(total, description)
		}
		_ = bar.Set(done)
	}

	samples, err := corpus.Load(ctx, dir, opts)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return nil, err
	}
	return samples, nil
}

// trainModel loads the training corpus and builds the eigenspace once.
func trainModel(ctx context.Context, opts Options) (*eigenface.Model, []types.LabeledSample, error) {
	samples, err := loadCorpus(ctx, opts.TrainDir, "📚 Loading training corpus")
	if err != nil {
		return nil, nil, err
	}

	start := time.Now()
	fmt.Fprintf(os.Stderr, "🧮 Training eigenspace on %d images...\n", len(samples))
	model, err := eigenface.Train(samples, eigenface.Options{
		VarianceRatio: opts.VarianceRatio,
		MaxComponents: opts.Components,
		Logger:        log,
	})
	if err != nil {
		return nil, nil, err
	}
	log.Info("model trained",
		zap.String("train_dir", opts.TrainDir),
		zap.Int("samples", model.Len()),
		zap.Int("components", model.Components()),
		zap.Duration("took", time.Since(start)),
	)
	return model, samples, nil
}

// validateModelFlags checks the flags every training-based command shares.
func validateModelFlags(opts *Options) error {
	if err := requireDir(opts.TrainDir, "training"); err != nil {
		return err
	}
	if opts.Components < 0 {
		return fmt.Errorf("components must be >= 0, got %d", opts.Components)
	}
	if opts.VarianceRatio < 0 || opts.VarianceRatio > 1 {
		return fmt.Errorf("variance ratio must be between 0.0 and 1.0, got %f", opts.VarianceRatio)
	}
	return nil
}

func validateThreshold(threshold float64) error {
	if threshold < 0 || math.IsNaN(threshold) {
		return fmt.Errorf("threshold must be >= 0, got %f", threshold)
	}
	return nil
}

func requireDir(path, role string) error {
	if path == "" {
		return fmt.Errorf("%s directory is required", role)
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s directory %s does not exist", role, path)
		}
		return fmt.Errorf("unable to access %s directory: %w", role, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s path %s is not a directory", role, path)
	}
	return nil
}

// writeROC writes points as CSV to path, or does nothing when path is empty.
func writeROC(path string, write func(f *os.File) error) error {
	if path == "" {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "📈 ROC curve written to %s\n", path)
	return nil
}
