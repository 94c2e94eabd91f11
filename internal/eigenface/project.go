package eigenface

import (
	"fmt"

	"github.com/andresmejia3/eigensentinel/internal/types"
	"gonum.org/v1/gonum/floats"
)

// Project maps x into the eigenspace: (x - mean) · uⱼ for every retained eigenface uⱼ.
// A model without components projects everything to the empty coordinate.
func (m *Model) Project(x types.ImageVector) ([]float64, error) {
	if len(x) != len(m.mean) {
		return nil, fmt.Errorf("%w: probe has %d values, model expects %d", ErrDimensionMismatch, len(x), len(m.mean))
	}
	k := m.Components()
	coord := make([]float64, k)
	if k == 0 {
		return coord, nil
	}
	centered := make([]float64, len(x))
	floats.SubTo(centered, x, m.mean)
	for j := 0; j < k; j++ {
		coord[j] = floats.Dot(centered, m.basis.RawRowView(j))
	}
	return coord, nil
}

// Reconstruct maps an eigenspace coordinate back to image space: mean + Σ cⱼ·uⱼ.
// Passing a prefix of a coordinate reconstructs with the leading components only.
func (m *Model) Reconstruct(coord []float64) ([]float64, error) {
	if len(coord) > m.Components() {
		return nil, fmt.Errorf("%w: coordinate has %d components, model has %d", ErrDimensionMismatch, len(coord), m.Components())
	}
	out := m.Mean()
	for j, c := range coord {
		floats.AddScaled(out, c, m.basis.RawRowView(j))
	}
	return out, nil
}
