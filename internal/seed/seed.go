// Package seed derives independent pseudo-random seeds and streams from a
// single master seed.
//
// Derivation is domain separated by a label and an index, so that the
// sampler of worker 3 and the sketch permutations never share a stream even
// when they are derived from the same master seed.
package seed

import (
	"encoding/binary"
	"io"

	"golang.org/x/crypto/sha3"
)

func absorb(master uint64, label string, index uint64) sha3.ShakeHash {
	h := sha3.NewShake256()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], master)
	_, _ = h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(len(label)))
	_, _ = h.Write(buf[:])
	_, _ = h.Write([]byte(label))
	binary.LittleEndian.PutUint64(buf[:], index)
	_, _ = h.Write(buf[:])
	return h
}

// Derive returns a 64-bit seed for (label, index).
func Derive(master uint64, label string, index uint64) uint64 {
	var out [8]byte
	_, _ = absorb(master, label, index).Read(out[:])
	return binary.LittleEndian.Uint64(out[:])
}

// Stream returns an unbounded deterministic byte stream for (label, index).
func Stream(master uint64, label string, index uint64) io.Reader {
	return absorb(master, label, index)
}

// Source is a deterministic random source reading from a byte stream.
type Source struct {
	r   io.Reader
	buf [8]byte
}

// NewSource wraps r.
func NewSource(r io.Reader) *Source { return &Source{r: r} }

// Uint64 returns the next 64 random bits.
func (s *Source) Uint64() uint64 {
	if _, err := io.ReadFull(s.r, s.buf[:]); err != nil {
		// The streams used here are unbounded XOFs.
		panic(err)
	}
	return binary.LittleEndian.Uint64(s.buf[:])
}

// Uint64n returns a uniform value in [0, n) using rejection sampling.
func (s *Source) Uint64n(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	limit := ^uint64(0) - (^uint64(0)%n+1)%n
	for {
		x := s.Uint64()
		if x <= limit {
			return x % n
		}
	}
}

// Bit returns a uniform random bit.
func (s *Source) Bit() bool { return s.Uint64()&1 == 1 }
