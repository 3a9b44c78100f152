package latsieve

import (
	"sync/atomic"
)

// MetricsCollector defines an interface for collecting sieve metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
// Hooks are called from worker goroutines and must be safe for concurrent use.
type MetricsCollector interface {
	// RecordCollision is called when a candidate reduces to the zero vector.
	RecordCollision()

	// RecordScalarProducts is called with the number of exact inner products
	// computed while processing one candidate.
	RecordScalarProducts(n int)

	// RecordSketchComparisons is called with the number of sketch comparisons
	// performed while processing one candidate.
	RecordSketchComparisons(n int)

	// RecordReduction is called for every applied reduction. arity is 2 or 3;
	// longer is true when a list entry (rather than the candidate) shrank.
	RecordReduction(arity int, longer bool)

	// RecordInsert is called after a candidate was inserted into the list.
	RecordInsert(listLen int)

	// RecordRequeue is called when a shrunken list entry goes back to the
	// queue.
	RecordRequeue()
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordCollision()            {}
func (NoopMetricsCollector) RecordScalarProducts(int)    {}
func (NoopMetricsCollector) RecordSketchComparisons(int) {}
func (NoopMetricsCollector) RecordReduction(int, bool)   {}
func (NoopMetricsCollector) RecordInsert(int)            {}
func (NoopMetricsCollector) RecordRequeue()              {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	Collisions        atomic.Int64
	ScalarProducts    atomic.Int64
	SketchComparisons atomic.Int64
	Reductions2       atomic.Int64
	Reductions3       atomic.Int64
	LongerReductions  atomic.Int64
	Inserts           atomic.Int64
	Requeues          atomic.Int64
	MaxListLen        atomic.Int64
}

// RecordCollision implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCollision() { b.Collisions.Add(1) }

// RecordScalarProducts implements MetricsCollector.
func (b *BasicMetricsCollector) RecordScalarProducts(n int) { b.ScalarProducts.Add(int64(n)) }

// RecordSketchComparisons implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSketchComparisons(n int) {
	b.SketchComparisons.Add(int64(n))
}

// RecordReduction implements MetricsCollector.
func (b *BasicMetricsCollector) RecordReduction(arity int, longer bool) {
	if arity == 3 {
		b.Reductions3.Add(1)
	} else {
		b.Reductions2.Add(1)
	}
	if longer {
		b.LongerReductions.Add(1)
	}
}

// RecordInsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordInsert(listLen int) {
	b.Inserts.Add(1)
	n := int64(listLen)
	for {
		cur := b.MaxListLen.Load()
		if n <= cur || b.MaxListLen.CompareAndSwap(cur, n) {
			return
		}
	}
}

// RecordRequeue implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRequeue() { b.Requeues.Add(1) }

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		Collisions:        b.Collisions.Load(),
		ScalarProducts:    b.ScalarProducts.Load(),
		SketchComparisons: b.SketchComparisons.Load(),
		Reductions2:       b.Reductions2.Load(),
		Reductions3:       b.Reductions3.Load(),
		LongerReductions:  b.LongerReductions.Load(),
		Inserts:           b.Inserts.Load(),
		Requeues:          b.Requeues.Load(),
		MaxListLen:        b.MaxListLen.Load(),
	}
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	Collisions        int64
	ScalarProducts    int64
	SketchComparisons int64
	Reductions2       int64
	Reductions3       int64
	LongerReductions  int64
	Inserts           int64
	Requeues          int64
	MaxListLen        int64
}
