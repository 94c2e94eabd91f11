package eigenface

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/andresmejia3/eigensentinel/internal/types"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// DefaultNoiseFloor is the eigenvalue cut-off relative to the largest eigenvalue.
const DefaultNoiseFloor = 1e-10

// roundoff is the float64 machine epsilon. Gram entries carry rounding error
// of about roundoff·Σ‖xᵢ‖², so eigenvalues below that are not variance.
const roundoff = 0x1p-52

// Options controls how many components Train retains.
//
// The policy is applied in order: components at or below NoiseFloor·λmax, or
// at rounding-error level, are dropped (and never more than N-1 are kept), then VarianceRatio trims to the
// smallest prefix reaching that share of variance, then MaxComponents caps k.
type Options struct {
	NoiseFloor    float64 // relative to the largest eigenvalue; 0 selects DefaultNoiseFloor
	VarianceRatio float64 // in (0,1); 0 keeps every non-noise component
	MaxComponents int     // 0 means no cap

	Logger *zap.Logger `json:"-"`
}

func (o Options) withDefaults() Options {
	if o.NoiseFloor <= 0 {
		o.NoiseFloor = DefaultNoiseFloor
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// ErrDecomposition is returned when the Gram matrix eigen-decomposition does not converge.
var ErrDecomposition = errors.New("eigenface: eigen-decomposition failed")

// Train computes the mean face, the eigenbasis and the projection of every
// sample. The result depends only on the sample order and opts.
func Train(samples []types.LabeledSample, opts Options) (*Model, error) {
	n := len(samples)
	if n == 0 {
		return nil, ErrEmptyCorpus
	}
	d := len(samples[0].Vector)
	if d == 0 {
		return nil, fmt.Errorf("%w: %s has no pixels", ErrDimensionMismatch, samples[0].Path)
	}
	for _, s := range samples[1:] {
		if len(s.Vector) != d {
			return nil, fmt.Errorf("%w: %s has %d values, expected %d", ErrDimensionMismatch, s.Path, len(s.Vector), d)
		}
	}
	opts = opts.withDefaults()

	mean := make([]float64, d)
	var energy float64
	for _, s := range samples {
		floats.Add(mean, s.Vector)
		energy += floats.Dot(s.Vector, s.Vector)
	}
	floats.Scale(1/float64(n), mean)

	// Rows of centered are the mean-subtracted samples (N×D).
	centered := mat.NewDense(n, d, nil)
	for i, s := range samples {
		floats.SubTo(centered.RawRowView(i), s.Vector, mean)
	}

	gram := mat.NewSymDense(n, nil)
	gram.SymOuterK(1, centered)

	var eig mat.EigenSym
	if ok := eig.Factorize(gram, true); !ok {
		return nil, ErrDecomposition
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	// EigenSym yields ascending values; a stable sort keeps computation order on ties.
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return values[order[a]] > values[order[b]] })

	sorted := make([]float64, n)
	var total float64
	for i, idx := range order {
		sorted[i] = values[idx]
		if sorted[i] > 0 {
			total += sorted[i]
		}
	}

	// When every image is identical λmax is 0 and nothing is kept.
	floor := math.Max(opts.NoiseFloor*sorted[0], roundoff*energy)
	k := retain(sorted, n, floor, opts)

	m := &Model{
		mean:          mean,
		eigenvalues:   append([]float64(nil), sorted[:k]...),
		totalVariance: total,
		projections:   make([][]float64, n),
		labels:        types.Labels(samples),
		paths:         make([]string, n),
		labelSet:      make(map[string]struct{}),
		opts:          opts,
	}

	if k > 0 {
		kept := mat.NewDense(n, k, nil)
		for j := 0; j < k; j++ {
			kept.SetCol(j, mat.Col(nil, order[j], &vectors))
		}
		// Each image-space eigenface is Aᵀv; as rows: Vₖᵀ·A (k×D).
		basis := mat.NewDense(k, d, nil)
		basis.Mul(kept.T(), centered)
		for j := 0; j < k; j++ {
			normalize(basis.RawRowView(j))
		}
		m.basis = basis
	}

	for i, s := range samples {
		coord, err := m.Project(s.Vector)
		if err != nil {
			return nil, err
		}
		m.projections[i] = coord
		m.paths[i] = s.Path
		m.labelSet[s.Label] = struct{}{}
	}

	opts.Logger.Debug("trained eigenspace",
		zap.Int("samples", n),
		zap.Int("dim", d),
		zap.Int("components", k),
		zap.Float64("explained_variance", m.ExplainedVariance()),
	)
	return m, nil
}

// retain applies the component retention policy to eigenvalues sorted in descending order.
func retain(values []float64, n int, floor float64, opts Options) int {
	k := 0
	for _, v := range values {
		if v <= floor || v <= 0 {
			break
		}
		k++
	}
	if k > n-1 {
		k = n - 1
	}

	if opts.VarianceRatio > 0 && opts.VarianceRatio < 1 && k > 0 {
		target := opts.VarianceRatio * floats.Sum(values[:k])
		var acc float64
		for i := 0; i < k; i++ {
			acc += values[i]
			if acc >= target {
				k = i + 1
				break
			}
		}
	}

	if opts.MaxComponents > 0 && k > opts.MaxComponents {
		k = opts.MaxComponents
	}
	return k
}

// normalize scales v to unit length and flips it so its largest-magnitude entry is positive.
func normalize(v []float64) {
	norm := floats.Norm(v, 2)
	if norm == 0 {
		return
	}
	pivot := 0
	for i := range v {
		if math.Abs(v[i]) > math.Abs(v[pivot]) {
			pivot = i
		}
	}
	if v[pivot] < 0 {
		norm = -norm
	}
	floats.Scale(1/norm, v)
}
