package sketch

import (
	"math"
	"math/rand"
	"testing"

	"github.com/hupe1980/latsieve/lattice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func randomVector(rng *rand.Rand, dim int, bound int64) *lattice.Vector {
	coords := make([]int64, dim)
	for i := range coords {
		coords[i] = rng.Int63n(2*bound+1) - bound
	}
	return lattice.New(coords...)
}

func TestNew_Geometry(t *testing.T) {
	e, err := New(50, 1)
	require.NoError(t, err)
	assert.Equal(t, 32, e.FastLen())
	assert.Equal(t, 3, e.Units()) // ceil(128/50)
	assert.Equal(t, 128, e.Width())

	e, err = New(64, 1, func(o *Options) {
		o.Bits = 64
		o.Blocks = 4
	})
	require.NoError(t, err)
	assert.Equal(t, 64, e.FastLen())
	assert.Equal(t, 4, e.Units())

	e, err = New(200, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, e.Units())
	assert.Equal(t, 128, e.FastLen())
}

func TestNew_InvalidOptions(t *testing.T) {
	_, err := New(0, 1)
	assert.ErrorIs(t, err, ErrInvalidOptions)

	_, err = New(10, 1, func(o *Options) { o.Bits = 0 })
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestCompute_Deterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	e1, err := New(40, 99)
	require.NoError(t, err)
	e2, err := New(40, 99)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		v := randomVector(rng, 40, 50)
		s1 := e1.Compute(v)
		assert.True(t, s1.Equal(e1.Compute(v)))
		assert.True(t, s1.Equal(e2.Compute(v)), "same seed must give same sketch")
	}
}

func TestCompute_SeedMatters(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	v := randomVector(rng, 64, 1000)
	a, _ := New(64, 1)
	b, _ := New(64, 2)
	assert.False(t, a.Compute(v).Equal(b.Compute(v)))
}

func TestCompute_Negation(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	e, err := New(64, 5)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		v := randomVector(rng, 64, 1000)
		s := e.Compute(v)
		n := e.Compute(lattice.Neg(v))
		assert.GreaterOrEqual(t, Hamming(s, n, 0), 120)
		assert.Equal(t, 0, Hamming(s, e.Compute(v), 0))
	}
}

func TestCompute_ScaleInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	e, _ := New(32, 8)
	v := randomVector(rng, 32, 100)
	w := lattice.Add(v, v)
	assert.True(t, e.Compute(v).Equal(e.Compute(w)))
}

func TestComputeChecked(t *testing.T) {
	e, _ := New(4, 1)
	_, err := e.ComputeChecked(lattice.New(1, 2, 3))
	var dm *lattice.DimensionMismatchError
	assert.ErrorAs(t, err, &dm)

	s, err := e.ComputeChecked(lattice.New(1, 2, 3, 4))
	require.NoError(t, err)
	assert.Equal(t, 1, s.Blocks())
}

func TestCompute_SimilarityCorrelation(t *testing.T) {
	const (
		dim   = 64
		pairs = 400
	)
	rng := rand.New(rand.NewSource(11))
	e, err := New(dim, 2024)
	require.NoError(t, err)

	cosines := make([]float64, 0, pairs)
	similarity := make([]float64, 0, pairs)
	for i := 0; i < pairs; i++ {
		a := randomVector(rng, dim, 100)
		noise := randomVector(rng, dim, 100)
		tw := 2*rng.Float64() - 1
		af, nf := a.Float64s(nil), noise.Float64s(nil)
		coords := make([]int64, dim)
		for j := range coords {
			coords[j] = int64(math.Round(tw*af[j] + (1-math.Abs(tw))*nf[j]))
		}
		b := lattice.New(coords...)
		if b.IsZero() {
			continue
		}
		cos := lattice.Float(lattice.Dot(a, b)) / math.Sqrt(a.Norm2Float()*b.Norm2Float())
		h := Hamming(e.Compute(a), e.Compute(b), 0)
		cosines = append(cosines, cos)
		similarity = append(similarity, 1-2*float64(h)/float64(e.Width()))
	}

	corr := stat.Correlation(cosines, similarity, nil)
	assert.Greater(t, corr, 0.8, "sketch similarity must track the normalized scalar product")
}

func TestFWHT_NormPreserving(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	x := make([]float64, 16)
	var before float64
	for i := range x {
		x[i] = rng.NormFloat64()
		before += x[i] * x[i]
	}
	fwht(x)
	var after float64
	for i := range x {
		after += x[i] * x[i]
	}
	assert.InDelta(t, before, after/16, 1e-9)
}

func TestFWHT_Known(t *testing.T) {
	x := []float64{1, 0, 1, 0}
	fwht(x)
	assert.Equal(t, []float64{2, 2, 0, 0}, x)
}
