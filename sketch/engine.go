package sketch

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"sync"

	"github.com/hupe1980/latsieve/internal/seed"
	"github.com/hupe1980/latsieve/lattice"
	"github.com/viterin/vek"
)

// ErrInvalidOptions is returned for unusable engine options.
var ErrInvalidOptions = errors.New("sketch: invalid options")

const (
	// DefaultBits is the default number of bits per block (sim_hash_len).
	DefaultBits = 128
	// DefaultBlocks is the default number of blocks (sim_hash_num).
	DefaultBlocks = 1
	// DefaultTransforms is the default number of transform rounds per unit.
	DefaultTransforms = 2
)

// Options configures an Engine.
type Options struct {
	Bits       int
	Blocks     int
	Transforms int
}

// DefaultOptions contains the default engine options.
var DefaultOptions = Options{
	Bits:       DefaultBits,
	Blocks:     DefaultBlocks,
	Transforms: DefaultTransforms,
}

type round struct {
	perm  []int
	signs []float64 // ±1
}

type unit struct {
	rounds []round
}

type scratch struct {
	in, a, b []float64
}

// Engine computes sketches. It is immutable after construction and safe for
// concurrent use.
type Engine struct {
	dimension  int
	seed       uint64
	opts       Options
	fastLen    int
	scale      float64
	blockWords int
	units      []unit
	pool       sync.Pool
}

// New creates an Engine for vectors of the given dimension.
func New(dimension int, seedValue uint64, optFns ...func(o *Options)) (*Engine, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension %d", ErrInvalidOptions, dimension)
	}
	if opts.Bits <= 0 || opts.Blocks <= 0 || opts.Transforms <= 0 {
		return nil, fmt.Errorf("%w: bits=%d blocks=%d transforms=%d", ErrInvalidOptions, opts.Bits, opts.Blocks, opts.Transforms)
	}

	fastLen := 1 << (bits.Len(uint(dimension)) - 1)
	numUnits := (opts.Bits*opts.Blocks + dimension - 1) / dimension

	e := &Engine{
		dimension:  dimension,
		seed:       seedValue,
		opts:       opts,
		fastLen:    fastLen,
		scale:      1 / math.Sqrt(float64(fastLen)),
		blockWords: (opts.Bits + 63) / 64,
		units:      make([]unit, numUnits),
	}

	src := seed.NewSource(seed.Stream(seedValue, "sketch", 0))
	for u := range e.units {
		e.units[u].rounds = make([]round, opts.Transforms)
		for r := range e.units[u].rounds {
			e.units[u].rounds[r] = newRound(src, dimension)
		}
	}

	e.pool.New = func() any {
		return &scratch{
			in: make([]float64, dimension),
			a:  make([]float64, dimension),
			b:  make([]float64, dimension),
		}
	}
	return e, nil
}

func newRound(src *seed.Source, dimension int) round {
	perm := make([]int, dimension)
	for i := range perm {
		perm[i] = i
	}
	// Fisher–Yates
	for i := dimension - 1; i > 0; i-- {
		j := int(src.Uint64n(uint64(i + 1)))
		perm[i], perm[j] = perm[j], perm[i]
	}
	signs := make([]float64, dimension)
	for i := range signs {
		if src.Bit() {
			signs[i] = 1
		} else {
			signs[i] = -1
		}
	}
	return round{perm: perm, signs: signs}
}

// Dimension returns the ambient dimension.
func (e *Engine) Dimension() int { return e.dimension }

// Seed returns the seed the engine was derived from.
func (e *Engine) Seed() uint64 { return e.seed }

// Options returns the engine options.
func (e *Engine) Options() Options { return e.opts }

// Width returns the number of bits per block.
func (e *Engine) Width() int { return e.opts.Bits }

// Units returns the number of repetition units.
func (e *Engine) Units() int { return len(e.units) }

// FastLen returns the size of the transformed power-of-two prefix.
func (e *Engine) FastLen() int { return e.fastLen }

// Compute returns the sketch of v. v must have the engine's dimension; use
// ComputeChecked at API boundaries.
func (e *Engine) Compute(v *lattice.Vector) Sketch {
	sc := e.pool.Get().(*scratch)
	defer e.pool.Put(sc)

	sc.in = v.Float64s(sc.in)
	out := Sketch{
		words:      make([]uint64, e.opts.Blocks*e.blockWords),
		blockWords: e.blockWords,
	}

	total := e.opts.Blocks * e.opts.Bits
	g := 0
	for _, u := range e.units {
		res := e.mix(sc, u)
		for i := 0; i < e.dimension && g < total; i++ {
			if res[i] > 0 {
				block, pos := g/e.opts.Bits, g%e.opts.Bits
				out.words[block*e.blockWords+pos/64] |= 1 << (uint(pos) % 64)
			}
			g++
		}
	}
	return out
}

// ComputeChecked validates the dimension before computing the sketch.
func (e *Engine) ComputeChecked(v *lattice.Vector) (Sketch, error) {
	if err := lattice.CheckDim(v, e.dimension); err != nil {
		return Sketch{}, err
	}
	return e.Compute(v), nil
}

// mix runs one repetition unit over sc.in and returns the transformed buffer.
func (e *Engine) mix(sc *scratch, u unit) []float64 {
	copy(sc.a, sc.in)
	last := len(u.rounds) - 1
	for r, rd := range u.rounds {
		for i, j := range rd.perm {
			sc.b[i] = sc.a[j]
		}
		vek.Mul_Inplace(sc.b, rd.signs)
		if r != last {
			prefix := sc.b[:e.fastLen]
			fwht(prefix)
			vek.MulNumber_Inplace(prefix, e.scale)
		}
		sc.a, sc.b = sc.b, sc.a
	}
	return sc.a
}

// fwht applies the unnormalized fast Walsh–Hadamard transform in place.
// len(x) must be a power of two.
func fwht(x []float64) {
	n := len(x)
	for h := 1; h < n; h <<= 1 {
		for i := 0; i < n; i += h << 1 {
			for j := i; j < i+h; j++ {
				a, b := x[j], x[j+h]
				x[j], x[j+h] = a+b, a-b
			}
		}
	}
}
