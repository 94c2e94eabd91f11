package cmd

import (
	"bufio"
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andresmejia3/eigensentinel/internal/evaluation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFace writes a small gray PNG whose pixels follow pattern.
func writeFace(t *testing.T, path string, pattern func(x, y int) uint8) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetGray(x, y, color.Gray{Y: pattern(x, y)})
		}
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

// faceCorpus builds a training and a test directory with two known people
// and one stranger in the test set.
func faceCorpus(t *testing.T) (train, test string) {
	t.Helper()
	root := t.TempDir()
	train = filepath.Join(root, "train")
	test = filepath.Join(root, "test")

	alice := func(x, y int) uint8 { return uint8(20 * x) }
	bob := func(x, y int) uint8 { return uint8(20 * y) }
	writeFace(t, filepath.Join(train, "alice", "1.png"), alice)
	writeFace(t, filepath.Join(train, "alice", "2.png"), func(x, y int) uint8 { return alice(x, y) + 5 })
	writeFace(t, filepath.Join(train, "bob", "1.png"), bob)
	writeFace(t, filepath.Join(train, "bob", "2.png"), func(x, y int) uint8 { return bob(x, y) + 5 })

	writeFace(t, filepath.Join(test, "alice", "3.png"), func(x, y int) uint8 { return alice(x, y) + 2 })
	writeFace(t, filepath.Join(test, "bob", "3.png"), func(x, y int) uint8 { return bob(x, y) + 2 })
	writeFace(t, filepath.Join(test, "carol", "1.png"), func(x, y int) uint8 { return uint8(200 - 10*(x+y)) })
	return train, test
}

func TestValidateThreshold(t *testing.T) {
	assert.NoError(t, validateThreshold(0))
	assert.NoError(t, validateThreshold(2500))
	assert.Error(t, validateThreshold(-1))
	assert.Error(t, validateThreshold(math.NaN()))
}

func TestValidateEvalFlags(t *testing.T) {
	train, test := faceCorpus(t)
	file := filepath.Join(train, "alice", "1.png")

	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"Valid", Options{TrainDir: train, TestDir: test, Threshold: 10, Workers: 2}, false},
		{"Missing train", Options{TestDir: test}, true},
		{"Train is a file", Options{TrainDir: file, TestDir: test}, true},
		{"Nonexistent test", Options{TrainDir: train, TestDir: filepath.Join(test, "nope")}, true},
		{"Negative threshold", Options{TrainDir: train, TestDir: test, Threshold: -1}, true},
		{"Negative components", Options{TrainDir: train, TestDir: test, Components: -3}, true},
		{"Variance above one", Options{TrainDir: train, TestDir: test, VarianceRatio: 1.5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.opts
			err := validateEvalFlags(&opts)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateEvalFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	opts := Options{TrainDir: train, TestDir: test, Workers: 0}
	require.NoError(t, validateEvalFlags(&opts))
	assert.Equal(t, 1, opts.Workers, "workers are clamped to at least one")
}

func TestValidateSweepFlags(t *testing.T) {
	train, test := faceCorpus(t)
	assert.NoError(t, validateSweepFlags(&Options{TrainDir: train, TestDir: test, Steps: 10}))
	assert.Error(t, validateSweepFlags(&Options{TrainDir: train, TestDir: test, Steps: 1}))
	assert.Error(t, validateSweepFlags(&Options{TrainDir: train, TestDir: test, Steps: 10, MaxThreshold: -5}))
}

func TestFmtRate(t *testing.T) {
	tests := []struct {
		v    float64
		want string
	}{
		{0, "  0.00%"},
		{0.5, " 50.00%"},
		{1, "100.00%"},
		{2.0 / 3, " 66.67%"},
	}
	for _, tt := range tests {
		if got := fmtRate(tt.v); got != tt.want {
			t.Errorf("fmtRate(%v) = %q, want %q", tt.v, got, tt.want)
		}
	}
}

func TestConfirm(t *testing.T) {
	for input, want := range map[string]bool{"y\n": true, "YES\n": true, "n\n": false, "\n": false, "": false} {
		var out bytes.Buffer
		got := confirm(bufio.NewReader(strings.NewReader(input)), &out, "Drop?")
		assert.Equal(t, want, got, "input %q", input)
		assert.Equal(t, "Drop? [y/N]: ", out.String())
	}
}

func TestPrintReport(t *testing.T) {
	counts := evaluation.ConfusionCounts{TP: 2, FP: 1, TN: 1, FN: 1}
	var buf bytes.Buffer
	printReport(&buf, &evaluation.Report{
		Threshold: 2500,
		Counts:    counts,
		Metrics:   evaluation.Compute(counts),
		AUC:       0.9167,
	})
	out := buf.String()
	assert.Contains(t, out, "threshold 2500.00")
	assert.Contains(t, out, " 60.00%", "accuracy of 3/5")
	assert.Contains(t, out, "AUC (per-sample ROC): 0.9167")
}

func TestRunEvaluate(t *testing.T) {
	train, test := faceCorpus(t)
	rocPath := filepath.Join(t.TempDir(), "roc.csv")

	err := runEvaluate(context.Background(), Options{
		TrainDir:  train,
		TestDir:   test,
		Threshold: defaultThreshold,
		Workers:   2,
		ROCPath:   rocPath,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(rocPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, "fpr,tpr", lines[0])
	assert.Len(t, lines, 4, "one ROC point per test image")
}

func TestRunSweep(t *testing.T) {
	train, test := faceCorpus(t)
	rocPath := filepath.Join(t.TempDir(), "sweep.csv")

	err := runSweep(context.Background(), Options{TrainDir: train, TestDir: test, Steps: 5, Workers: 1, ROCPath: rocPath})
	require.NoError(t, err)

	data, err := os.ReadFile(rocPath)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 6, "header plus one point per threshold")
}

func TestRunTrainExport(t *testing.T) {
	train, _ := faceCorpus(t)
	out := filepath.Join(t.TempDir(), "faces")

	err := runTrain(context.Background(), Options{TrainDir: train, ExportDir: out, ExportCount: 10})
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(out, "mean.png"))
	assert.FileExists(t, filepath.Join(out, "eigenface_000.png"))
	// Four training images span at most three eigenfaces.
	assert.NoFileExists(t, filepath.Join(out, "eigenface_003.png"))
}

func TestRunClassify(t *testing.T) {
	train, test := faceCorpus(t)
	probe := filepath.Join(test, "alice", "3.png")

	require.NoError(t, runClassify(context.Background(), probe, Options{TrainDir: train, Threshold: defaultThreshold}))
	require.NoError(t, runClassify(context.Background(), probe, Options{TrainDir: train, Threshold: 0, JSON: true}))
	assert.Error(t, runClassify(context.Background(), probe+".missing", Options{TrainDir: train}))
}

func TestRootReportsErrorsOnce(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"evaluate", "-T", missing, "-E", missing})
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
	assert.NotContains(t, out.String(), "Error:")
}
