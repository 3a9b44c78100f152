// Package testutil provides testing utilities for latsieve.
//
// This package is intended for use in tests and benchmarks only.
// It provides a deterministic, thread-safe RNG with helpers for random
// integer vectors and disguised lattice bases.
//
//	rng := testutil.NewRNG(seed)
//	basis := rng.ScrambledIdentity(10, 40) // Z^10, shortest norm² = 1
//	vs := rng.NonZeroIntVectors(100, 10, 5)
package testutil
