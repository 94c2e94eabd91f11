package eigenface

import (
	"math"

	"github.com/andresmejia3/eigensentinel/internal/types"
	"gonum.org/v1/gonum/floats"
)

// Unknown is the Result index reported when no training sample is close enough.
const Unknown = -1

// Result is the outcome of a nearest-neighbor lookup.
type Result struct {
	Index    int     // matched training sample, or Unknown
	Nearest  int     // closest training sample regardless of the threshold
	Distance float64 // eigenspace distance to Nearest
}

// Recognized reports whether the probe was accepted.
func (r Result) Recognized() bool { return r.Index != Unknown }

// At re-applies the decision rule for another threshold without searching again.
func (r Result) At(threshold float64) Result {
	if r.Nearest != Unknown && r.Distance <= threshold {
		r.Index = r.Nearest
	} else {
		r.Index = Unknown
	}
	return r
}

// Classify projects probe and returns the first training sample at minimal
// Euclidean distance if that distance is <= threshold, Unknown otherwise.
func (m *Model) Classify(probe types.ImageVector, threshold float64) (Result, error) {
	coord, err := m.Project(probe)
	if err != nil {
		return Result{Index: Unknown, Nearest: Unknown}, err
	}
	return m.ClassifyProjection(coord, threshold), nil
}

// ClassifyProjection is Classify for a probe that is already in eigenspace coordinates.
// A coordinate of the wrong length matches nothing.
func (m *Model) ClassifyProjection(coord []float64, threshold float64) Result {
	res := Result{Index: Unknown, Nearest: Unknown, Distance: math.Inf(1)}
	if len(coord) != m.Components() {
		return res
	}
	for i, p := range m.projections {
		// Strict comparison keeps the earliest index on ties.
		if d := floats.Distance(coord, p, 2); d < res.Distance {
			res.Nearest = i
			res.Distance = d
		}
	}
	return res.At(threshold)
}
