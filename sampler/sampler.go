// Package sampler provides the vector sources that feed the sieve queue when
// it runs dry.
package sampler

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"math/bits"

	"github.com/hupe1980/latsieve/internal/seed"
	"github.com/hupe1980/latsieve/lattice"
	"github.com/tuneinsight/lattigo/v4/utils"
)

// ErrInvalidOptions is returned for invalid sampler options.
var ErrInvalidOptions = errors.New("sampler: invalid options")

// Sampler produces fresh lattice vectors. Implementations are used by one
// goroutine at a time.
type Sampler interface {
	Sample() *lattice.Vector
}

// Stateful is a Sampler whose position in its random stream can be saved and
// restored, so that a resumed run draws the same vectors.
type Stateful interface {
	Sampler
	Counter() uint64
	SetCounter(c uint64)
}

// Factory builds the sampler of one worker. workerSeed is derived from the
// master seed and the worker index.
type Factory func(worker int, workerSeed uint64) (Sampler, error)

// Func adapts a plain function to the Sampler interface.
type Func func() *lattice.Vector

// Sample calls f.
func (f Func) Sample() *lattice.Vector { return f() }

// WorkerSeed returns the seed of worker's sampler.
func WorkerSeed(master uint64, worker int) uint64 {
	return seed.Derive(master, "sampler", uint64(worker))
}

// Options configures a BasisSampler.
type Options struct {
	// Eta is the centered binomial parameter: each basis vector enters the
	// combination with a coefficient in [-Eta, Eta].
	Eta int

	// MaxAttempts bounds the number of draws to avoid returning the zero
	// vector.
	MaxAttempts int
}

// DefaultOptions contains the default BasisSampler options.
var DefaultOptions = Options{
	Eta:         1,
	MaxAttempts: 64,
}

// BasisSampler draws random small integer combinations of a basis. The i-th
// draw is a pure function of (seed, i), so the whole sampler state is its
// counter.
type BasisSampler struct {
	basis   []*lattice.Vector
	seed    uint64
	counter uint64
	opts    Options
	key     [16]byte
}

var _ Stateful = (*BasisSampler)(nil)

// NewBasisSampler creates a BasisSampler over basis.
func NewBasisSampler(basis []*lattice.Vector, seedValue uint64, optFns ...func(o *Options)) (*BasisSampler, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Eta < 1 || opts.Eta > 8 {
		return nil, fmt.Errorf("%w: eta %d out of range [1,8]", ErrInvalidOptions, opts.Eta)
	}
	if opts.MaxAttempts < 1 {
		return nil, fmt.Errorf("%w: max attempts must be positive", ErrInvalidOptions)
	}
	if len(basis) == 0 {
		return nil, lattice.ErrEmptyBasis
	}
	d := basis[0].Dim()
	for _, b := range basis[1:] {
		if err := lattice.CheckDim(b, d); err != nil {
			return nil, err
		}
	}
	return &BasisSampler{
		basis: basis,
		seed:  seedValue,
		opts:  opts,
	}, nil
}

// BasisFactory returns a Factory building BasisSamplers over basis.
func BasisFactory(basis []*lattice.Vector, optFns ...func(o *Options)) Factory {
	return func(_ int, workerSeed uint64) (Sampler, error) {
		return NewBasisSampler(basis, workerSeed, optFns...)
	}
}

// Seed returns the sampler seed.
func (s *BasisSampler) Seed() uint64 { return s.seed }

// Counter returns the number of draws so far.
func (s *BasisSampler) Counter() uint64 { return s.counter }

// SetCounter repositions the sampler.
func (s *BasisSampler) SetCounter(c uint64) { s.counter = c }

// Sample returns the next non-zero combination. If MaxAttempts consecutive
// draws cancel out, the shortest basis vector is returned instead.
func (s *BasisSampler) Sample() *lattice.Vector {
	for i := 0; i < s.opts.MaxAttempts; i++ {
		v := s.draw(s.counter)
		s.counter++
		if !v.IsZero() {
			return v
		}
	}
	return s.shortest()
}

func (s *BasisSampler) draw(counter uint64) *lattice.Vector {
	binary.LittleEndian.PutUint64(s.key[:8], s.seed)
	binary.LittleEndian.PutUint64(s.key[8:], counter)
	prng, err := utils.NewKeyedPRNG(s.key[:])
	if err != nil {
		// blake2b only rejects keys longer than 64 bytes.
		panic(err)
	}

	// Two bytes per coefficient, the low Eta bits of each.
	buf := make([]byte, 2*len(s.basis))
	if _, err := prng.Read(buf); err != nil {
		panic(err)
	}

	acc := lattice.Zero(s.basis[0].Dim())
	var c big.Int
	for i, b := range s.basis {
		k := centeredBinomial(buf[2*i], buf[2*i+1], s.opts.Eta)
		if k == 0 {
			continue
		}
		c.SetInt64(int64(-k))
		acc = lattice.SubScaled(acc, b, &c)
	}
	return acc
}

func (s *BasisSampler) shortest() *lattice.Vector {
	best := s.basis[0]
	for _, b := range s.basis[1:] {
		if !b.IsZero() && (best.IsZero() || b.CmpNorm(best) < 0) {
			best = b
		}
	}
	return best
}

// centeredBinomial returns popcount(a) − popcount(b) over the low eta bits.
func centeredBinomial(a, b byte, eta int) int {
	mask := byte(1<<eta - 1)
	return bits.OnesCount8(a&mask) - bits.OnesCount8(b&mask)
}
