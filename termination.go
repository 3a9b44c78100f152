package latsieve

import (
	"fmt"

	"github.com/hupe1980/latsieve/lattice"
)

// Progress is the view of a run that termination conditions inspect.
type Progress struct {
	Stats
	// Shortest is the shortest vector inserted so far, or nil.
	Shortest *lattice.Vector
}

// TerminationCondition decides when a run is finished. It is evaluated once
// per candidate, between candidates, and must be safe for concurrent use.
type TerminationCondition interface {
	// Reached reports whether the run should stop, with a human readable
	// reason.
	Reached(p Progress) (reason string, done bool)
}

// TerminationFunc adapts a function to TerminationCondition.
type TerminationFunc func(p Progress) (string, bool)

// Reached calls f.
func (f TerminationFunc) Reached(p Progress) (string, bool) { return f(p) }

// TargetNorm stops once a vector of squared norm at most norm2 was found.
func TargetNorm(norm2 float64) TerminationCondition {
	return TerminationFunc(func(p Progress) (string, bool) {
		if p.Shortest != nil && p.Shortest.Norm2Float() <= norm2 {
			return fmt.Sprintf("target norm %g reached", norm2), true
		}
		return "", false
	})
}

// CollisionBudget stops after n collisions.
func CollisionBudget(n uint64) TerminationCondition {
	return TerminationFunc(func(p Progress) (string, bool) {
		if p.Collisions >= n {
			return fmt.Sprintf("collision budget %d exhausted", n), true
		}
		return "", false
	})
}

// ListSizeBudget stops once the list holds n entries.
func ListSizeBudget(n int) TerminationCondition {
	return TerminationFunc(func(p Progress) (string, bool) {
		if p.ListLen >= n {
			return fmt.Sprintf("list size budget %d exhausted", n), true
		}
		return "", false
	})
}

// CandidateBudget stops after n processed candidates.
func CandidateBudget(n uint64) TerminationCondition {
	return TerminationFunc(func(p Progress) (string, bool) {
		if p.Candidates >= n {
			return fmt.Sprintf("candidate budget %d exhausted", n), true
		}
		return "", false
	})
}

// HeuristicCollisions stops once collisions > ratio·maxListLen + slack, the
// usual Gauss sieve stopping rule.
func HeuristicCollisions(ratio float64, slack uint64) TerminationCondition {
	return TerminationFunc(func(p Progress) (string, bool) {
		limit := ratio*float64(p.MaxListLen) + float64(slack)
		if float64(p.Collisions) > limit {
			return fmt.Sprintf("collisions %d exceed %.0f", p.Collisions, limit), true
		}
		return "", false
	})
}

// AnyOf stops as soon as one of conds is reached.
func AnyOf(conds ...TerminationCondition) TerminationCondition {
	return TerminationFunc(func(p Progress) (string, bool) {
		for _, c := range conds {
			if reason, done := c.Reached(p); done {
				return reason, true
			}
		}
		return "", false
	})
}
