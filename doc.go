// Package latsieve implements a Gauss sieve for finding short vectors in
// integer lattices.
//
// A Sieve keeps a list of pairwise reduced lattice vectors sorted by norm and
// a queue of pending candidates. Each candidate is reduced against the list
// entries not longer than itself, then used to reduce the longer entries,
// and finally inserted at its sorted position. Longer entries that shrink are
// taken out of the list and queued again. A candidate that reduces to the
// zero vector is a collision.
//
// # Quick Start
//
//	basis, _ := lattice.ParseBasis(f)
//	s, err := latsieve.New(basis, func(o *latsieve.Options) {
//		o.Workers = 4
//		o.TargetNorm2 = 1
//	})
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//
//	if err := s.Run(ctx); err != nil {
//		return err
//	}
//	v, _ := s.Shortest()
//
// # Reductions
//
// A pair (p, x) is 2-reducible when |2<p,x>| exceeds the squared norm of
// the shorter vector; the longer one is then replaced by its difference with
// the rounded multiple of the shorter one. With Arity 3 the sieve also keeps
// entries whose normalized inner product with the candidate is large and
// looks for a second such entry so that a signed combination of all three is
// shorter than the longest.
//
// # Sketches
//
// Before an exact inner product is computed, the SimHash sketches of both
// vectors are compared. Only pairs whose Hamming distance falls outside the
// configured bands are tested exactly. ExactOnly disables this filter.
//
// # Concurrency
//
// Run starts Options.Workers goroutines that share the list and the queue.
// List entries are never freed while a worker may still be reading them;
// each worker holds an epoch pin while it processes a candidate.
//
// # Checkpoints
//
// Export and Restore capture and replace the whole mutable state. The
// checkpoint package serializes snapshots, optionally compressed, to any
// blobstore.Store.
package latsieve
