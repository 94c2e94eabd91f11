package evaluation

import (
	"context"
	"fmt"
	"math"

	"github.com/andresmejia3/eigensentinel/internal/eigenface"
	"github.com/andresmejia3/eigensentinel/internal/types"
	"github.com/andresmejia3/eigensentinel/internal/worker"
	"go.uber.org/zap"
)

// Classifier is the part of a trained model the evaluation drives.
type Classifier interface {
	LabelSource
	Classify(probe types.ImageVector, threshold float64) (eigenface.Result, error)
}

// Options tunes how test samples are processed. Results never depend on Workers.
type Options struct {
	Workers  int
	OnSample func() // called once per classified test sample
	Logger   *zap.Logger
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// Prediction records what happened to one test sample.
type Prediction struct {
	Path      string  `json:"path"`
	Label     string  `json:"label"`
	Index     int     `json:"index"`
	Predicted string  `json:"predicted,omitempty"`
	Distance  float64 `json:"distance"`
	Outcome   Outcome `json:"outcome"`
}

// Report is the result of one evaluation run at a fixed threshold.
type Report struct {
	Threshold   float64         `json:"threshold"`
	Counts      ConfusionCounts `json:"counts"`
	Metrics     Metrics         `json:"metrics"`
	Curve       []ROCPoint      `json:"roc"`
	AUC         float64         `json:"auc"`
	Predictions []Prediction    `json:"predictions"`
}

// Evaluate classifies every test sample at threshold and scores the results.
// The ROC curve holds one point per test sample, computed from the cumulative
// counts after that sample, in test-set order.
func Evaluate(ctx context.Context, model Classifier, testSet []types.LabeledSample, threshold float64, opts Options) (*Report, error) {
	results, err := classifyAll(ctx, model, testSet, threshold, opts)
	if err != nil {
		return nil, err
	}
	return Score(model, testSet, results, threshold), nil
}

// Score accumulates already computed results, in order, into a Report.
func Score(model LabelSource, testSet []types.LabeledSample, results []eigenface.Result, threshold float64) *Report {
	r := &Report{
		Threshold:   threshold,
		Curve:       make([]ROCPoint, 0, len(results)),
		Predictions: make([]Prediction, 0, len(results)),
	}
	for i, res := range results {
		sample := testSet[i]
		outcome := Judge(res.Index, sample.Label, model)
		r.Counts.Add(outcome)
		r.Curve = append(r.Curve, r.Counts.Point())

		p := Prediction{
			Path:     sample.Path,
			Label:    sample.Label,
			Index:    res.Index,
			Distance: res.Distance,
			Outcome:  outcome,
		}
		if res.Recognized() {
			p.Predicted = model.Label(res.Index)
		}
		r.Predictions = append(r.Predictions, p)
	}
	r.Metrics = Compute(r.Counts)
	r.AUC = AUC(r.Curve)
	return r
}

func classifyAll(ctx context.Context, model Classifier, testSet []types.LabeledSample, threshold float64, opts Options) ([]eigenface.Result, error) {
	if len(testSet) == 0 {
		return nil, fmt.Errorf("%w: test set is empty", types.ErrEmptyCorpus)
	}
	log := opts.logger()
	pool := worker.Pool{Workers: opts.Workers, OnDone: opts.OnSample}
	return worker.Map(ctx, pool, testSet, func(ctx context.Context, i int, s types.LabeledSample) (eigenface.Result, error) {
		res, err := model.Classify(s.Vector, threshold)
		if err != nil {
			return res, fmt.Errorf("failed to classify %s: %w", s.Path, err)
		}
		log.Debug("classified test sample",
			zap.String("path", s.Path),
			zap.Int("nearest", res.Nearest),
			zap.Float64("distance", res.Distance),
			zap.Bool("recognized", res.Recognized()),
		)
		return res, nil
	})
}

// SweepPoint is the summary of the whole test set at one threshold.
type SweepPoint struct {
	Threshold float64         `json:"threshold"`
	Counts    ConfusionCounts `json:"counts"`
	Metrics   Metrics         `json:"metrics"`
	Point     ROCPoint        `json:"roc"`
}

// SweepReport is a conventional ROC built by varying the threshold.
type SweepReport struct {
	Points []SweepPoint `json:"points"`
	AUC    float64      `json:"auc"`
}

// Curve returns the ROC points of the sweep in threshold order.
func (s *SweepReport) Curve() []ROCPoint {
	out := make([]ROCPoint, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Point
	}
	return out
}

// Best returns the sweep point with the highest F1, preferring the lower
// threshold on ties. ok is false for an empty sweep.
func (s *SweepReport) Best() (best SweepPoint, ok bool) {
	for i, p := range s.Points {
		if i == 0 || p.Metrics.F1 > best.Metrics.F1 {
			best = p
		}
	}
	return best, len(s.Points) > 0
}

// Sweep classifies each test sample once and re-applies the decision rule for
// every threshold; the model is never retrained. With no thresholds given,
// steps evenly spaced values from 0 to the largest nearest-neighbor distance
// are used.
func Sweep(ctx context.Context, model Classifier, testSet []types.LabeledSample, thresholds []float64, steps int, opts Options) (*SweepReport, error) {
	nearest, err := classifyAll(ctx, model, testSet, math.Inf(1), opts)
	if err != nil {
		return nil, err
	}
	if len(thresholds) == 0 {
		var maxDist float64
		for _, r := range nearest {
			if !math.IsInf(r.Distance, 0) && r.Distance > maxDist {
				maxDist = r.Distance
			}
		}
		thresholds = DefaultThresholds(maxDist, steps)
	}

	report := &SweepReport{Points: make([]SweepPoint, 0, len(thresholds))}
	decided := make([]eigenface.Result, len(nearest))
	for _, t := range thresholds {
		for i, r := range nearest {
			decided[i] = r.At(t)
		}
		scored := Score(model, testSet, decided, t)
		report.Points = append(report.Points, SweepPoint{
			Threshold: t,
			Counts:    scored.Counts,
			Metrics:   scored.Metrics,
			Point:     scored.Counts.Point(),
		})
	}
	report.AUC = AUC(report.Curve())
	return report, nil
}

// DefaultThresholds returns steps evenly spaced thresholds from 0 to maxDistance inclusive.
func DefaultThresholds(maxDistance float64, steps int) []float64 {
	if steps < 2 {
		return []float64{maxDistance}
	}
	out := make([]float64, steps)
	for i := range out {
		out[i] = maxDistance * float64(i) / float64(steps-1)
	}
	return out
}
