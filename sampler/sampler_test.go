package sampler

import (
	"testing"

	"github.com/hupe1980/latsieve/lattice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identity(d int) []*lattice.Vector {
	basis := make([]*lattice.Vector, d)
	for i := range basis {
		c := make([]int64, d)
		c[i] = 1
		basis[i] = lattice.New(c...)
	}
	return basis
}

func TestBasisSampler_Deterministic(t *testing.T) {
	a, err := NewBasisSampler(identity(8), 42)
	require.NoError(t, err)
	b, err := NewBasisSampler(identity(8), 42)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		va, vb := a.Sample(), b.Sample()
		assert.True(t, va.Equal(vb))
		assert.False(t, va.IsZero())
	}
	assert.Equal(t, a.Counter(), b.Counter())
}

func TestBasisSampler_SeedMatters(t *testing.T) {
	a, _ := NewBasisSampler(identity(16), 1)
	b, _ := NewBasisSampler(identity(16), 2)
	same := 0
	for i := 0; i < 20; i++ {
		if a.Sample().Equal(b.Sample()) {
			same++
		}
	}
	assert.Less(t, same, 5)
}

func TestBasisSampler_ResumeFromCounter(t *testing.T) {
	a, _ := NewBasisSampler(identity(6), 7)
	for i := 0; i < 10; i++ {
		a.Sample()
	}
	saved := a.Counter()
	want := []*lattice.Vector{a.Sample(), a.Sample(), a.Sample()}

	b, _ := NewBasisSampler(identity(6), 7)
	b.SetCounter(saved)
	for _, w := range want {
		assert.True(t, w.Equal(b.Sample()))
	}
}

func TestBasisSampler_CoefficientRange(t *testing.T) {
	for _, eta := range []int{1, 3} {
		s, err := NewBasisSampler(identity(10), 3, func(o *Options) { o.Eta = eta })
		require.NoError(t, err)
		for i := 0; i < 100; i++ {
			v := s.Sample()
			for j := 0; j < v.Dim(); j++ {
				c := v.Coord(j).Int64()
				assert.LessOrEqual(t, c, int64(eta))
				assert.GreaterOrEqual(t, c, int64(-eta))
			}
		}
	}
}

func TestNewBasisSampler_Errors(t *testing.T) {
	_, err := NewBasisSampler(nil, 0)
	assert.ErrorIs(t, err, lattice.ErrEmptyBasis)

	_, err = NewBasisSampler(identity(2), 0, func(o *Options) { o.Eta = 0 })
	assert.ErrorIs(t, err, ErrInvalidOptions)

	_, err = NewBasisSampler(identity(2), 0, func(o *Options) { o.MaxAttempts = 0 })
	assert.ErrorIs(t, err, ErrInvalidOptions)

	_, err = NewBasisSampler([]*lattice.Vector{lattice.New(1, 0), lattice.New(1)}, 0)
	var dim *lattice.DimensionMismatchError
	assert.ErrorAs(t, err, &dim)
}

func TestFuncAndFactory(t *testing.T) {
	v := lattice.New(3, 4)
	f := Func(func() *lattice.Vector { return v })
	assert.Same(t, v, f.Sample())

	factory := BasisFactory(identity(4))
	s0, err := factory(0, WorkerSeed(9, 0))
	require.NoError(t, err)
	s1, err := factory(1, WorkerSeed(9, 1))
	require.NoError(t, err)
	assert.NotEqual(t, s0.(*BasisSampler).Seed(), s1.(*BasisSampler).Seed())
}

func TestCenteredBinomial(t *testing.T) {
	assert.Equal(t, 0, centeredBinomial(0, 0, 1))
	assert.Equal(t, 1, centeredBinomial(1, 0, 1))
	assert.Equal(t, -1, centeredBinomial(0xFE, 0xFF, 1))
	assert.Equal(t, 8, centeredBinomial(0xFF, 0, 8))
	assert.Equal(t, 2, centeredBinomial(0x07, 0x01, 3))
}
