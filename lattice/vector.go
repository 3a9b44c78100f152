package lattice

import (
	"math/big"
	"strings"
)

// Vector is an immutable integer vector with a cached squared norm.
type Vector struct {
	coords []big.Int
	norm2  big.Int
	approx float64 // float64 approximation of norm2
}

// New creates a vector from int64 coordinates.
func New(coords ...int64) *Vector {
	v := &Vector{coords: make([]big.Int, len(coords))}
	for i, c := range coords {
		v.coords[i].SetInt64(c)
	}
	v.refresh()
	return v
}

// FromBig creates a vector from big integer coordinates. The inputs are copied.
func FromBig(coords []*big.Int) *Vector {
	v := &Vector{coords: make([]big.Int, len(coords))}
	for i, c := range coords {
		v.coords[i].Set(c)
	}
	v.refresh()
	return v
}

// Zero returns the zero vector of dimension d.
func Zero(d int) *Vector {
	return &Vector{coords: make([]big.Int, d)}
}

func newDim(d int) *Vector {
	return &Vector{coords: make([]big.Int, d)}
}

// refresh recomputes the cached norm. It must be called exactly once, before
// the vector is published.
func (v *Vector) refresh() {
	var sq big.Int
	v.norm2.SetInt64(0)
	for i := range v.coords {
		sq.Mul(&v.coords[i], &v.coords[i])
		v.norm2.Add(&v.norm2, &sq)
	}
	v.approx = toFloat(&v.norm2)
}

// Dim returns the dimension.
func (v *Vector) Dim() int { return len(v.coords) }

// Coord returns a copy of the i-th coordinate.
func (v *Vector) Coord(i int) *big.Int {
	return new(big.Int).Set(&v.coords[i])
}

// Norm2 returns a copy of the exact squared norm.
func (v *Vector) Norm2() *big.Int {
	return new(big.Int).Set(&v.norm2)
}

// Norm2Float returns the cached float64 approximation of the squared norm.
func (v *Vector) Norm2Float() float64 { return v.approx }

// CmpNorm compares the exact squared norms of v and w.
func (v *Vector) CmpNorm(w *Vector) int {
	return v.norm2.Cmp(&w.norm2)
}

// CmpNorm2 compares the squared norm of v with n.
func (v *Vector) CmpNorm2(n *big.Int) int {
	return v.norm2.Cmp(n)
}

// IsZero reports whether v is the zero vector.
func (v *Vector) IsZero() bool { return v.norm2.Sign() == 0 }

// Equal reports whether v and w have identical coordinates.
func (v *Vector) Equal(w *Vector) bool {
	if len(v.coords) != len(w.coords) || v.norm2.Cmp(&w.norm2) != 0 {
		return false
	}
	for i := range v.coords {
		if v.coords[i].Cmp(&w.coords[i]) != 0 {
			return false
		}
	}
	return true
}

// Float64s writes float64 approximations of the coordinates into dst, growing
// it if needed, and returns it.
func (v *Vector) Float64s(dst []float64) []float64 {
	if cap(dst) < len(v.coords) {
		dst = make([]float64, len(v.coords))
	}
	dst = dst[:len(v.coords)]
	for i := range v.coords {
		dst[i] = toFloat(&v.coords[i])
	}
	return dst
}

// String formats v as "[c0 c1 ...]".
func (v *Vector) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i := range v.coords {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(v.coords[i].String())
	}
	sb.WriteByte(']')
	return sb.String()
}

func toFloat(x *big.Int) float64 {
	if x.IsInt64() {
		return float64(x.Int64())
	}
	// Float64 saturates to ±Inf for out-of-range values.
	f, _ := new(big.Float).SetInt(x).Float64()
	return f
}

// Float returns a float64 approximation of x.
func Float(x *big.Int) float64 { return toFloat(x) }
