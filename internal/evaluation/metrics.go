// Package evaluation scores a trained eigenspace against a labeled test set:
// confusion counts, summary metrics, ROC curves and their area.
//
// Every ratio in this package is zero-guarded: a zero denominator yields 0,
// never NaN or a panic.
package evaluation

import (
	"sort"
)

// Outcome is the confusion-matrix cell a single classification falls into.
type Outcome int

const (
	TruePositive Outcome = iota
	FalsePositive
	TrueNegative
	FalseNegative
)

func (o Outcome) String() string {
	switch o {
	case TruePositive:
		return "TP"
	case FalsePositive:
		return "FP"
	case TrueNegative:
		return "TN"
	case FalseNegative:
		return "FN"
	}
	return "unknown"
}

// MarshalText lets outcomes appear by name in JSON reports.
func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// LabelSource is what Judge needs to know about the training side.
type LabelSource interface {
	Label(i int) string
	HasLabel(label string) bool
}

// Judge classifies one prediction. index is the matched training sample or a
// negative value for "not recognized".
func Judge(index int, trueLabel string, model LabelSource) Outcome {
	switch {
	case index >= 0 && model.Label(index) == trueLabel:
		return TruePositive
	case index >= 0:
		return FalsePositive
	case model.HasLabel(trueLabel):
		return FalseNegative
	default:
		return TrueNegative
	}
}

// ConfusionCounts is the running four-way tally of outcomes.
type ConfusionCounts struct {
	TP int `json:"tp"`
	FP int `json:"fp"`
	TN int `json:"tn"`
	FN int `json:"fn"`
}

// Add records one outcome.
func (c *ConfusionCounts) Add(o Outcome) {
	switch o {
	case TruePositive:
		c.TP++
	case FalsePositive:
		c.FP++
	case TrueNegative:
		c.TN++
	case FalseNegative:
		c.FN++
	}
}

// Total is the number of recorded outcomes.
func (c ConfusionCounts) Total() int { return c.TP + c.FP + c.TN + c.FN }

// Point is the ROC coordinate of the counts so far.
func (c ConfusionCounts) Point() ROCPoint {
	return ROCPoint{
		FPR: ratio(c.FP, c.FP+c.TN),
		TPR: ratio(c.TP, c.TP+c.FN),
	}
}

// Metrics are the scalar summaries derived from ConfusionCounts.
type Metrics struct {
	Accuracy          float64 `json:"accuracy"`
	Precision         float64 `json:"precision"`
	Recall            float64 `json:"recall"`
	Specificity       float64 `json:"specificity"`
	F1                float64 `json:"f1"`
	FalsePositiveRate float64 `json:"false_positive_rate"`
}

// Compute derives all metrics from c.
func Compute(c ConfusionCounts) Metrics {
	m := Metrics{
		Accuracy:          ratio(c.TP+c.TN, c.Total()),
		Precision:         ratio(c.TP, c.TP+c.FP),
		Recall:            ratio(c.TP, c.TP+c.FN),
		Specificity:       ratio(c.TN, c.TN+c.FP),
		FalsePositiveRate: ratio(c.FP, c.FP+c.TN),
	}
	if sum := m.Precision + m.Recall; sum != 0 {
		m.F1 = 2 * m.Precision * m.Recall / sum
	}
	return m
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// ROCPoint is one (false-positive rate, true-positive rate) pair.
type ROCPoint struct {
	FPR float64 `json:"fpr"`
	TPR float64 `json:"tpr"`
}

// AUC integrates TPR over FPR with the trapezoidal rule, after a stable sort
// by ascending FPR and starting from an implicit (0,0).
func AUC(points []ROCPoint) float64 {
	sorted := append([]ROCPoint(nil), points...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].FPR < sorted[j].FPR })

	var area float64
	prev := ROCPoint{}
	for _, p := range sorted {
		area += 0.5 * (p.FPR - prev.FPR) * (p.TPR + prev.TPR)
		prev = p
	}
	return area
}
