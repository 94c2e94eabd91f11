// Package eigenface builds an eigenspace from a labeled face corpus and
// classifies probe images by nearest-neighbor distance inside it.
//
// Training runs PCA through the N×N Gram matrix of the centered samples
// instead of the D×D covariance matrix, since image dimensionality D is far
// larger than the corpus size N. The resulting Model is immutable: every
// accessor returns a copy, so a single Model can be shared by any number of
// concurrent Classify calls.
package eigenface

import (
	"github.com/andresmejia3/eigensentinel/internal/types"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrEmptyCorpus       = types.ErrEmptyCorpus
	ErrDimensionMismatch = types.ErrDimensionMismatch
)

// Model is a trained eigenspace. It is created once by Train and is read-only afterwards.
type Model struct {
	mean          []float64
	basis         *mat.Dense // k×D, one eigenface per row; nil when k == 0
	eigenvalues   []float64  // retained eigenvalues, descending
	totalVariance float64    // sum of all non-negative Gram eigenvalues
	projections   [][]float64
	labels        []string
	paths         []string
	labelSet      map[string]struct{}
	opts          Options
}

// Dim is the image vector length D the model was trained on.
func (m *Model) Dim() int { return len(m.mean) }

// Components is the number k of retained eigenfaces.
func (m *Model) Components() int { return len(m.eigenvalues) }

// Len is the number of training samples N.
func (m *Model) Len() int { return len(m.labels) }

// Label returns the label of training sample i.
func (m *Model) Label(i int) string { return m.labels[i] }

// Path returns the source path of training sample i.
func (m *Model) Path(i int) string { return m.paths[i] }

// HasLabel reports whether any training sample carries label.
func (m *Model) HasLabel(label string) bool {
	_, ok := m.labelSet[label]
	return ok
}

// Labels returns a copy of the training labels in corpus order.
func (m *Model) Labels() []string { return append([]string(nil), m.labels...) }

// Options returns the retention options the model was trained with.
func (m *Model) Options() Options { return m.opts }

// Mean returns a copy of the mean face.
func (m *Model) Mean() []float64 { return append([]float64(nil), m.mean...) }

// Eigenvalues returns a copy of the retained eigenvalues in descending order.
func (m *Model) Eigenvalues() []float64 { return append([]float64(nil), m.eigenvalues...) }

// Eigenface returns a copy of the i-th basis vector.
func (m *Model) Eigenface(i int) []float64 {
	return append([]float64(nil), m.basis.RawRowView(i)...)
}

// Projection returns a copy of the eigenspace coordinate of training sample i.
func (m *Model) Projection(i int) []float64 {
	return append([]float64(nil), m.projections[i]...)
}

// ExplainedVariance is the share of total variance captured by the retained components.
func (m *Model) ExplainedVariance() float64 {
	if m.totalVariance <= 0 {
		return 0
	}
	return floats.Sum(m.eigenvalues) / m.totalVariance
}
