// Package lattice provides exact integer lattice vectors.
//
// A Vector holds arbitrary-precision integer coordinates together with its
// cached squared Euclidean norm. Vectors are immutable once built: every
// arithmetic helper returns a fresh Vector. This is what allows a vector that
// was just removed from a shared candidate list to be handed to another worker
// while concurrent readers may still be computing inner products against it.
//
// # Reductions
//
//	s := lattice.Dot(a, b)
//	if lattice.Reduces(s, b.Norm2()) {
//	    m := lattice.RoundQuo(s, b.Norm2())
//	    a = lattice.SubScaled(a, b, m) // ‖a − m·b‖² < ‖a‖²
//	}
//
// # Text format
//
// Vectors are written as "[c0 c1 ... cd-1]" and bases as "[[...] [...]]",
// the format used by common lattice reduction tools.
package lattice
