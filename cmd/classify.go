package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/andresmejia3/eigensentinel/internal/corpus"
	"github.com/andresmejia3/eigensentinel/internal/evaluation"
	"github.com/andresmejia3/eigensentinel/internal/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var classifyOpts Options

var classifyCmd = &cobra.Command{
	Use:   "classify <image_path>",
	Short: "Find the closest training face to a probe image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateModelFlags(&classifyOpts); err != nil {
			return err
		}
		if err := validateThreshold(classifyOpts.Threshold); err != nil {
			return err
		}
		cmd.SilenceUsage = true
		return runClassify(cmd.Context(), args[0], classifyOpts)
	},
}

func init() {
	addModelFlags(classifyCmd, &classifyOpts)
	classifyCmd.Flags().Float64VarP(&classifyOpts.Threshold, "threshold", "t", defaultThreshold, "Maximum eigenspace distance for a match (lower is stricter)")
	classifyCmd.Flags().BoolVar(&classifyOpts.JSON, "json", false, "Print the result as JSON")
	rootCmd.AddCommand(classifyCmd)
}

// classification is the JSON shape of a single classify result.
type classification struct {
	Probe      string  `json:"probe"`
	Recognized bool    `json:"recognized"`
	Label      string  `json:"label,omitempty"`
	Path       string  `json:"path,omitempty"`
	Distance   float64 `json:"distance"`
	Threshold  float64 `json:"threshold"`
}

func runClassify(ctx context.Context, imagePath string, opts Options) error {
	if _, err := os.Stat(imagePath); os.IsNotExist(err) {
		utils.ShowError("Input file does not exist", err)
		return err
	}

	probe, err := corpus.LoadImage(imagePath, corpusOptions())
	if err != nil {
		utils.ShowError("Failed to read probe image", err)
		return err
	}

	model, _, err := trainModel(ctx, opts)
	if err != nil {
		utils.ShowError("Failed to train model", err)
		return err
	}

	fmt.Fprintln(os.Stderr, "🔍 Searching eigenspace...")
	res, err := model.Classify(probe, opts.Threshold)
	if err != nil {
		utils.ShowError("Classification failed", err)
		return err
	}
	log.Debug("probe classified",
		zap.String("probe", imagePath),
		zap.Int("nearest", res.Nearest),
		zap.Float64("distance", res.Distance),
	)

	out := classification{Probe: imagePath, Recognized: res.Recognized(), Distance: res.Distance, Threshold: opts.Threshold}
	if res.Recognized() {
		out.Label = model.Label(res.Index)
		out.Path = model.Path(res.Index)
	}
	if opts.JSON {
		return evaluation.WriteJSON(os.Stdout, out)
	}

	if !out.Recognized {
		fmt.Printf("❌ Face not recognized (closest distance %.2f > threshold %.2f)\n", res.Distance, opts.Threshold)
		return nil
	}
	fmt.Printf("✅ Found Match: %s\n", out.Label)
	fmt.Printf("   Training image: %s\n", out.Path)
	fmt.Printf("   Distance:       %.2f\n", out.Distance)
	return nil
}
