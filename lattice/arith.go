package lattice

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	// ErrEmptyBasis is returned when a basis contains no vectors.
	ErrEmptyBasis = errors.New("lattice: empty basis")
	// ErrZeroVector is returned when a zero vector is used where a non-zero one is required.
	ErrZeroVector = errors.New("lattice: zero vector")
)

// DimensionMismatchError indicates that two vectors, or a vector and a
// configured dimension, disagree.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("lattice: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// CheckDim returns a *DimensionMismatchError if v does not have dimension d.
func CheckDim(v *Vector, d int) error {
	if v.Dim() != d {
		return &DimensionMismatchError{Expected: d, Actual: v.Dim()}
	}
	return nil
}

// mustMatch panics when the operands disagree. Arithmetic is on the hot path
// and callers validate dimensions at the API boundary.
func mustMatch(a, b *Vector) {
	if len(a.coords) != len(b.coords) {
		panic(&DimensionMismatchError{Expected: len(a.coords), Actual: len(b.coords)})
	}
}

// Dot returns the exact inner product <a, b>.
func Dot(a, b *Vector) *big.Int {
	mustMatch(a, b)
	var prod big.Int
	sum := new(big.Int)
	for i := range a.coords {
		prod.Mul(&a.coords[i], &b.coords[i])
		sum.Add(sum, &prod)
	}
	return sum
}

// Add returns a + b.
func Add(a, b *Vector) *Vector {
	mustMatch(a, b)
	out := newDim(len(a.coords))
	for i := range a.coords {
		out.coords[i].Add(&a.coords[i], &b.coords[i])
	}
	out.refresh()
	return out
}

// Sub returns a − b.
func Sub(a, b *Vector) *Vector {
	mustMatch(a, b)
	out := newDim(len(a.coords))
	for i := range a.coords {
		out.coords[i].Sub(&a.coords[i], &b.coords[i])
	}
	out.refresh()
	return out
}

// Neg returns −a.
func Neg(a *Vector) *Vector {
	out := newDim(len(a.coords))
	for i := range a.coords {
		out.coords[i].Neg(&a.coords[i])
	}
	out.refresh()
	return out
}

// SubScaled returns a − m·b.
func SubScaled(a, b *Vector, m *big.Int) *Vector {
	mustMatch(a, b)
	out := newDim(len(a.coords))
	var t big.Int
	for i := range a.coords {
		t.Mul(m, &b.coords[i])
		out.coords[i].Sub(&a.coords[i], &t)
	}
	out.refresh()
	return out
}

// Combine3 returns a + sb·b + sc·c where sb and sc are ±1.
func Combine3(a *Vector, sb int, b *Vector, sc int, c *Vector) *Vector {
	mustMatch(a, b)
	mustMatch(a, c)
	out := newDim(len(a.coords))
	for i := range a.coords {
		x := &out.coords[i]
		x.Set(&a.coords[i])
		if sb < 0 {
			x.Sub(x, &b.coords[i])
		} else {
			x.Add(x, &b.coords[i])
		}
		if sc < 0 {
			x.Sub(x, &c.coords[i])
		} else {
			x.Add(x, &c.coords[i])
		}
	}
	out.refresh()
	return out
}

// RoundQuo returns the integer nearest to s/n, rounding halves away from
// zero. n must be positive.
func RoundQuo(s, n *big.Int) *big.Int {
	// m = sign(s) · floor((2|s| + n) / 2n)
	num := new(big.Int).Abs(s)
	num.Lsh(num, 1)
	num.Add(num, n)
	den := new(big.Int).Lsh(n, 1)
	m := num.Quo(num, den)
	if s.Sign() < 0 {
		m.Neg(m)
	}
	return m
}

// Reduces reports whether a vector with inner product s against a vector of
// squared norm n can be shortened by it, i.e. |2s| > n.
func Reduces(s, n *big.Int) bool {
	twice := new(big.Int).Abs(s)
	twice.Lsh(twice, 1)
	return twice.Cmp(n) > 0
}
