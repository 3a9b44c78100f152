package testutil

import (
	"math/rand"
	"sync"

	"github.com/hupe1980/latsieve/lattice"
	"gonum.org/v1/gonum/stat"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Uint64 returns a pseudo-random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

// IntVector returns a vector with coordinates uniform in [-bound, bound].
func (r *RNG) IntVector(dim int, bound int64) *lattice.Vector {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.intVectorLocked(dim, bound)
}

func (r *RNG) intVectorLocked(dim int, bound int64) *lattice.Vector {
	c := make([]int64, dim)
	for i := range c {
		c[i] = r.rand.Int63n(2*bound+1) - bound
	}
	return lattice.New(c...)
}

// NonZeroIntVectors returns num non-zero vectors with coordinates uniform in
// [-bound, bound].
func (r *RNG) NonZeroIntVectors(num, dim int, bound int64) []*lattice.Vector {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*lattice.Vector, 0, num)
	for len(out) < num {
		if v := r.intVectorLocked(dim, bound); !v.IsZero() {
			out = append(out, v)
		}
	}
	return out
}

// GaussianFloats returns dim standard normal samples.
func (r *RNG) GaussianFloats(dim int) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]float64, dim)
	for i := range out {
		out[i] = r.rand.NormFloat64()
	}
	return out
}

// ScrambledIdentity returns a basis of the integer lattice Z^dim disguised by
// steps random unimodular row operations b_i ← b_i ± b_j. Its shortest
// vectors have squared norm 1.
func (r *RNG) ScrambledIdentity(dim, steps int) []*lattice.Vector {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows := make([][]int64, dim)
	for i := range rows {
		rows[i] = make([]int64, dim)
		rows[i][i] = 1
	}
	for s := 0; s < steps && dim > 1; s++ {
		i := r.rand.Intn(dim)
		j := r.rand.Intn(dim - 1)
		if j >= i {
			j++
		}
		sign := int64(1)
		if r.rand.Intn(2) == 0 {
			sign = -1
		}
		for k := range rows[i] {
			rows[i][k] += sign * rows[j][k]
		}
	}
	basis := make([]*lattice.Vector, dim)
	for i, row := range rows {
		basis[i] = lattice.New(row...)
	}
	return basis
}

// Norms returns the approximate squared norms of vs.
func Norms(vs []*lattice.Vector) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = v.Norm2Float()
	}
	return out
}

// MeanNorm returns the mean approximate squared norm of vs.
func MeanNorm(vs []*lattice.Vector) float64 {
	if len(vs) == 0 {
		return 0
	}
	return stat.Mean(Norms(vs), nil)
}
