// Package sketch implements the similarity sketches (SimHash) used to prune
// exact inner product computations in the sieve.
//
// A sketch compresses a lattice vector into Blocks blocks of Bits bits. The
// Hamming distance between two sketches estimates the angle θ between the
// underlying vectors (E[h] = Bits·θ/π), so a distance near 0 indicates a
// vector close to the other one and a distance near Bits a vector close to its
// negation. Both cases are interesting for a reduction.
//
// # Pipeline
//
// For each repetition unit the coordinates are pushed through Transforms
// rounds of {permutation, random sign flips, normalized fast Walsh–Hadamard
// transform}, skipping the Walsh–Hadamard step on the last round. The
// transform only covers the largest power-of-two prefix of the coordinates;
// the remaining high-order coordinates are permuted and sign flipped but not
// mixed. Output bit i is set iff the i-th transformed coordinate is positive.
//
// All randomness is derived from a single seed, so an Engine is a pure
// function of (dimension, seed, Options).
//
// # Filtering
//
//	if sketch.Promising(sp, sx, bands) {
//	    // compute the exact inner product
//	}
package sketch
