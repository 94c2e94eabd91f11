package eigenface

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/andresmejia3/eigensentinel/internal/types"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

const epsilon = 1e-8

// randomCorpus builds n samples of dimension d with pixel values in [0,255).
// Labels cycle through "p0".."p{labels-1}".
func randomCorpus(seed int64, n, d, labels int) []types.LabeledSample {
	rng := rand.New(rand.NewSource(seed))
	out := make([]types.LabeledSample, n)
	for i := range out {
		vec := make(types.ImageVector, d)
		for j := range vec {
			vec[j] = rng.Float64() * 255
		}
		out[i] = types.LabeledSample{
			Vector: vec,
			Label:  fmt.Sprintf("p%d", i%labels),
			Path:   fmt.Sprintf("p%d/%d.pgm", i%labels, i),
		}
	}
	return out
}

func TestTrainErrors(t *testing.T) {
	_, err := Train(nil, Options{})
	if !errors.Is(err, ErrEmptyCorpus) {
		t.Errorf("Train(nil) error = %v, want ErrEmptyCorpus", err)
	}

	samples := randomCorpus(1, 3, 10, 3)
	samples[2].Vector = samples[2].Vector[:9]
	_, err = Train(samples, Options{})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Train(mismatched) error = %v, want ErrDimensionMismatch", err)
	}

	_, err = Train([]types.LabeledSample{{Label: "a"}}, Options{})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Train(zero-length) error = %v, want ErrDimensionMismatch", err)
	}
}

func TestTrainBasisIsOrthonormal(t *testing.T) {
	samples := randomCorpus(7, 8, 60, 4)
	m, err := Train(samples, Options{})
	require.NoError(t, err)

	require.Equal(t, 60, m.Dim())
	require.Equal(t, 8, m.Len())
	require.Equal(t, 7, m.Components(), "random data should have rank N-1")

	for i := 0; i < m.Components(); i++ {
		ui := m.Eigenface(i)
		for j := 0; j < m.Components(); j++ {
			dot := floats.Dot(ui, m.Eigenface(j))
			if i == j {
				require.InDelta(t, 1.0, dot, epsilon, "eigenface %d is not unit length", i)
			} else {
				require.InDelta(t, 0.0, dot, epsilon, "eigenfaces %d and %d are not orthogonal", i, j)
			}
		}
	}
}

func TestTrainEigenvaluesDescending(t *testing.T) {
	m, err := Train(randomCorpus(3, 10, 40, 5), Options{})
	require.NoError(t, err)

	values := m.Eigenvalues()
	require.NotEmpty(t, values)
	for i := 1; i < len(values); i++ {
		require.GreaterOrEqual(t, values[i-1], values[i])
	}
	require.InDelta(t, 1.0, m.ExplainedVariance(), 1e-9)
}

func TestTrainMeanFace(t *testing.T) {
	samples := []types.LabeledSample{
		{Vector: types.ImageVector{0, 2, 4}, Label: "a"},
		{Vector: types.ImageVector{2, 4, 8}, Label: "b"},
	}
	m, err := Train(samples, Options{})
	require.NoError(t, err)
	require.InDeltaSlice(t, []float64{1, 3, 6}, m.Mean(), epsilon)
	require.Equal(t, 1, m.Components())
}

func TestTrainIsDeterministic(t *testing.T) {
	samples := randomCorpus(11, 6, 30, 3)
	a, err := Train(samples, Options{})
	require.NoError(t, err)
	b, err := Train(samples, Options{})
	require.NoError(t, err)

	require.Equal(t, a.Eigenvalues(), b.Eigenvalues())
	for i := 0; i < a.Components(); i++ {
		require.Equal(t, a.Eigenface(i), b.Eigenface(i))
	}
	for i := 0; i < a.Len(); i++ {
		require.Equal(t, a.Projection(i), b.Projection(i))
	}
}

func TestReconstructionErrorShrinks(t *testing.T) {
	samples := randomCorpus(5, 7, 50, 7)
	m, err := Train(samples, Options{})
	require.NoError(t, err)

	for i, s := range samples {
		coord := m.Projection(i)
		prev := math.Inf(1)
		for k := 0; k <= len(coord); k++ {
			rec, err := m.Reconstruct(coord[:k])
			require.NoError(t, err)
			errNorm := floats.Distance(rec, s.Vector, 2)
			require.LessOrEqual(t, errNorm, prev+1e-9, "sample %d: error grew at k=%d", i, k)
			prev = errNorm
		}
		// Training samples lie in the span of the full basis.
		require.InDelta(t, 0.0, prev, 1e-6, "sample %d not reconstructed exactly", i)
	}

	_, err = m.Reconstruct(make([]float64, m.Components()+1))
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestProjectDimensionMismatch(t *testing.T) {
	m, err := Train(randomCorpus(2, 4, 16, 2), Options{})
	require.NoError(t, err)

	_, err = m.Project(make(types.ImageVector, 15))
	require.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = m.Classify(make(types.ImageVector, 17), 1e9)
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestClassifyExactMatchAtZeroThreshold(t *testing.T) {
	samples := randomCorpus(9, 6, 25, 3)
	m, err := Train(samples, Options{})
	require.NoError(t, err)

	for k, s := range samples {
		res, err := m.Classify(s.Vector, 0)
		require.NoError(t, err)
		require.Equal(t, k, res.Index)
		require.True(t, res.Recognized())
		require.Equal(t, 0.0, res.Distance)
	}
}

func TestClassifyDuplicatesPreferFirst(t *testing.T) {
	samples := randomCorpus(4, 4, 20, 4)
	dup := samples[1]
	dup.Label = "copy"
	samples = append(samples, dup)

	m, err := Train(samples, Options{})
	require.NoError(t, err)

	res, err := m.Classify(dup.Vector, 0)
	require.NoError(t, err)
	require.Equal(t, 1, res.Index)
}

func TestClassifyUnknownAtZeroThreshold(t *testing.T) {
	samples := randomCorpus(6, 5, 20, 5)
	m, err := Train(samples, Options{})
	require.NoError(t, err)

	probe := randomCorpus(99, 1, 20, 1)[0].Vector
	res, err := m.Classify(probe, 0)
	require.NoError(t, err)
	require.Equal(t, Unknown, res.Index)
	require.False(t, res.Recognized())
	require.NotEqual(t, Unknown, res.Nearest)

	// A generous threshold accepts the same nearest neighbour.
	accepted, err := m.Classify(probe, res.Distance)
	require.NoError(t, err)
	require.Equal(t, res.Nearest, accepted.Index)
}

func TestClassifyProjectionTieBreak(t *testing.T) {
	// Distances from the origin are [5, 2, 2].
	m := &Model{
		eigenvalues: []float64{1},
		projections: [][]float64{{5}, {2}, {-2}},
	}

	tests := []struct {
		name      string
		threshold float64
		want      int
	}{
		{"at threshold", 2.0, 1},
		{"above threshold", 10, 1},
		{"below threshold", 1.999, Unknown},
		{"negative threshold", -1, Unknown},
		{"nan threshold", math.NaN(), Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.ClassifyProjection([]float64{0}, tt.threshold)
			if got.Index != tt.want {
				t.Errorf("ClassifyProjection() index = %d, want %d", got.Index, tt.want)
			}
			if got.Nearest != 1 || got.Distance != 2 {
				t.Errorf("ClassifyProjection() nearest = %d (%.2f), want 1 (2.00)", got.Nearest, got.Distance)
			}
		})
	}

	if got := m.ClassifyProjection([]float64{0, 0}, 100); got.Index != Unknown {
		t.Errorf("wrong-length coordinate matched index %d", got.Index)
	}
}

func TestSingleSampleModel(t *testing.T) {
	samples := randomCorpus(8, 1, 12, 1)
	m, err := Train(samples, Options{})
	require.NoError(t, err)
	require.Equal(t, 0, m.Components())
	require.Equal(t, 0.0, m.ExplainedVariance())

	res, err := m.Classify(randomCorpus(1, 1, 12, 1)[0].Vector, 0)
	require.NoError(t, err)
	require.Equal(t, 0, res.Index, "an empty eigenspace puts every probe at distance 0")
}

// TestTrainBrightLowContrastCorpus uses 40 bright 112×92 images that differ
// from each other by a single grey level in a single pixel.
func TestTrainBrightLowContrastCorpus(t *testing.T) {
	const n, d = 40, 112 * 92
	samples := make([]types.LabeledSample, n)
	for i := range samples {
		vec := make(types.ImageVector, d)
		for j := range vec {
			vec[j] = 230
		}
		vec[i*97] = 231
		samples[i] = types.LabeledSample{Vector: vec, Label: fmt.Sprintf("s%d", i), Path: fmt.Sprintf("s%d/1.pgm", i)}
	}

	m, err := Train(samples, Options{})
	require.NoError(t, err)
	require.Equal(t, n-1, m.Components())

	for i, s := range samples {
		res, err := m.Classify(s.Vector, 0)
		require.NoError(t, err)
		require.Equal(t, i, res.Index, "training image %d must match itself", i)
	}
}

func TestTrainIdenticalImages(t *testing.T) {
	for _, value := range []float64{200, 0.1} {
		samples := make([]types.LabeledSample, 3)
		for i := range samples {
			vec := make(types.ImageVector, 50)
			for j := range vec {
				vec[j] = value
			}
			samples[i] = types.LabeledSample{Vector: vec, Label: "a"}
		}

		m, err := Train(samples, Options{})
		require.NoError(t, err)
		require.Equal(t, 0, m.Components(), "pixel value %v", value)
	}
}

func TestRetain(t *testing.T) {
	values := []float64{50, 30, 15, 5, 1e-12, 0}

	tests := []struct {
		name string
		n    int
		opts Options
		want int
	}{
		{"noise floor", 6, Options{}, 4},
		{"rank cap", 3, Options{}, 2},
		{"variance ratio", 6, Options{VarianceRatio: 0.8}, 2},
		{"variance ratio exact", 6, Options{VarianceRatio: 0.95}, 3},
		{"max components", 6, Options{MaxComponents: 1}, 1},
		{"ratio then cap", 6, Options{VarianceRatio: 0.95, MaxComponents: 2}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retain(values, tt.n, 1e-9, tt.opts); got != tt.want {
				t.Errorf("retain() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestTrainRetentionOptions(t *testing.T) {
	samples := randomCorpus(12, 9, 40, 3)

	capped, err := Train(samples, Options{MaxComponents: 3})
	require.NoError(t, err)
	require.Equal(t, 3, capped.Components())
	require.Len(t, capped.Projection(0), 3)
	require.Equal(t, 3, capped.Options().MaxComponents)

	ratio, err := Train(samples, Options{VarianceRatio: 0.5})
	require.NoError(t, err)
	require.Less(t, ratio.Components(), 8)
	require.GreaterOrEqual(t, ratio.ExplainedVariance(), 0.5)
}

func TestModelLabels(t *testing.T) {
	samples := randomCorpus(3, 5, 16, 2)
	m, err := Train(samples, Options{})
	require.NoError(t, err)

	labels := m.Labels()
	require.Equal(t, []string{"p0", "p1", "p0", "p1", "p0"}, labels)
	require.True(t, m.HasLabel("p1"))
	require.False(t, m.HasLabel("p2"))

	labels[0] = "changed"
	require.Equal(t, "p0", m.Label(0), "Labels returns a copy")
}
