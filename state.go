package latsieve

import (
	"errors"
	"fmt"

	"github.com/hupe1980/latsieve/internal/candidate"
	"github.com/hupe1980/latsieve/lattice"
	"github.com/hupe1980/latsieve/sampler"
	"github.com/hupe1980/latsieve/sketch"
)

// Counter names used in snapshots.
const (
	CounterCandidates        = "candidates"
	CounterCollisions        = "collisions"
	CounterScalarProducts    = "scalar_products"
	CounterSketchComparisons = "sketch_comparisons"
	CounterReductions2       = "reductions2"
	CounterReductions3       = "reductions3"
	CounterLongerReductions  = "longer_reductions"
	CounterRequeues          = "requeues"
	CounterInserts           = "inserts"
	CounterMaxListLen        = "max_list_len"
)

// ErrInvalidSnapshot is returned by Restore for inconsistent snapshots.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// Snapshot is the complete mutable state of a sieve: enough to resume a
// suspended run with the same subsequent behavior.
type Snapshot struct {
	Dimension int
	Seed      uint64
	State     State
	Reason    string
	// Counters maps counter names to values.
	Counters map[string]uint64
	// SamplerCounters maps worker indexes to stateful sampler positions.
	SamplerCounters map[int]uint64
	Shortest        *lattice.Vector
	// List holds the list vectors in storage order.
	List []*lattice.Vector
	// Queue holds the pending vectors in pop order.
	Queue []*lattice.Vector
}

func (c *counters) fields() map[string]func() uint64 {
	return map[string]func() uint64{
		CounterCandidates:        c.candidates.Load,
		CounterCollisions:        c.collisions.Load,
		CounterScalarProducts:    c.scalarProducts.Load,
		CounterSketchComparisons: c.sketchComparisons.Load,
		CounterReductions2:       c.reductions2.Load,
		CounterReductions3:       c.reductions3.Load,
		CounterLongerReductions:  c.longerReductions.Load,
		CounterRequeues:          c.requeues.Load,
		CounterInserts:           c.inserts.Load,
		CounterMaxListLen:        func() uint64 { return uint64(c.maxListLen.Load()) },
	}
}

func (c *counters) set(name string, v uint64) bool {
	switch name {
	case CounterCandidates:
		c.candidates.Store(v)
	case CounterCollisions:
		c.collisions.Store(v)
	case CounterScalarProducts:
		c.scalarProducts.Store(v)
	case CounterSketchComparisons:
		c.sketchComparisons.Store(v)
	case CounterReductions2:
		c.reductions2.Store(v)
	case CounterReductions3:
		c.reductions3.Store(v)
	case CounterLongerReductions:
		c.longerReductions.Store(v)
	case CounterRequeues:
		c.requeues.Store(v)
	case CounterInserts:
		c.inserts.Store(v)
	case CounterMaxListLen:
		c.maxListLen.Store(int64(v))
	default:
		return false
	}
	return true
}

// Export captures the sieve state. It fails while a run is in progress.
func (s *Sieve) Export() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.state == StateRunning {
		return nil, ErrRunning
	}

	snap := &Snapshot{
		Dimension:       s.dim,
		Seed:            s.opts.Seed,
		State:           s.state,
		Reason:          s.reason,
		Counters:        make(map[string]uint64),
		SamplerCounters: make(map[int]uint64),
		List:            s.list.Vectors(),
		Queue:           s.queue.Snapshot(),
	}
	for name, load := range s.c.fields() {
		snap.Counters[name] = load()
	}
	for w, smp := range s.samplers {
		if st, ok := smp.(sampler.Stateful); ok {
			snap.SamplerCounters[w] = st.Counter()
		}
	}
	snap.Shortest, _ = s.Shortest()
	return snap, nil
}

// Restore replaces the sieve state with snap. The snapshot is validated
// completely before anything is replaced. A restored run is suspended unless
// the snapshot was taken before the first run or after the run finished.
func (s *Sieve) Restore(snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.state == StateRunning {
		return ErrRunning
	}

	if snap.Dimension != s.dim {
		return &lattice.DimensionMismatchError{Expected: s.dim, Actual: snap.Dimension}
	}
	for _, vs := range [][]*lattice.Vector{snap.List, snap.Queue} {
		for _, v := range vs {
			if err := lattice.CheckDim(v, s.dim); err != nil {
				return err
			}
			if v.IsZero() {
				return fmt.Errorf("%w: %w", ErrInvalidSnapshot, lattice.ErrZeroVector)
			}
		}
	}
	if snap.Shortest != nil {
		if err := lattice.CheckDim(snap.Shortest, s.dim); err != nil {
			return err
		}
	}
	var probe counters
	for name, v := range snap.Counters {
		if !probe.set(name, v) {
			return fmt.Errorf("%w: unknown counter %q", ErrInvalidSnapshot, name)
		}
	}

	engine, samplers := s.engine, s.samplers
	if snap.Seed != s.opts.Seed {
		var err error
		if engine, samplers, err = s.build(snap.Seed); err != nil {
			return err
		}
	}
	for w, c := range snap.SamplerCounters {
		if w < 0 || w >= len(samplers) {
			continue
		}
		if st, ok := samplers[w].(sampler.Stateful); ok {
			st.SetCounter(c)
		}
	}

	list := candidate.New()
	for _, v := range snap.List {
		if _, err := list.InsertBefore(list.End(), candidate.NewEntry(v, engine.Compute(v))); err != nil {
			return err
		}
	}

	s.engine, s.samplers, s.opts.Seed = engine, samplers, snap.Seed
	s.list = list
	s.queue = s.newQueue()
	for _, v := range snap.Queue {
		s.queue.Push(v)
	}
	for name := range s.c.fields() {
		s.c.set(name, 0)
	}
	for name, v := range snap.Counters {
		s.c.set(name, v)
	}
	s.shortestMu.Lock()
	s.shortest = snap.Shortest
	s.shortestMu.Unlock()

	s.err = nil
	s.stop.Store(false)
	switch snap.State {
	case StateInit:
		s.state, s.reason = StateInit, ""
	case StateFinished:
		s.state, s.reason = StateFinished, snap.Reason
	default:
		s.state, s.reason = StateSuspended, ""
	}
	s.logger = s.opts.Logger.WithDimension(s.dim).WithSeed(s.opts.Seed)
	return nil
}

// SketchEngine returns the sketch engine in use.
func (s *Sieve) SketchEngine() *sketch.Engine { return s.engine }
