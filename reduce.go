package latsieve

import (
	"context"
	"math/big"
	"slices"

	"github.com/hupe1980/latsieve/internal/candidate"
	"github.com/hupe1980/latsieve/lattice"
	"github.com/hupe1980/latsieve/sampler"
	"github.com/hupe1980/latsieve/sketch"
)

// filtered is a list entry that looked close enough to the candidate to be
// paired with later entries in a 3-reduction.
type filtered struct {
	h      candidate.Handle
	vec    *lattice.Vector
	sketch sketch.Sketch
	// sign of <p, vec>
	sign int
	// longer is true when vec is longer than p.
	longer bool
	// cond is 2|<p, vec>| − min(‖p‖², ‖vec‖²).
	cond *big.Int
}

// worker holds the per-goroutine state of a run.
type worker struct {
	id       int
	sess     *candidate.Session
	sampler  sampler.Sampler
	filtered []filtered

	scalar  int
	sketchs int
}

func (s *Sieve) newWorker(id int) *worker {
	return &worker{
		id:      id,
		sess:    s.list.NewSession(),
		sampler: s.samplers[id],
	}
}

func (w *worker) close() { w.sess.Close() }

// process runs the reduction algorithm for one candidate taken from the
// queue.
func (s *Sieve) process(ctx context.Context, w *worker) error {
	p := s.queue.PopWith(w.sampler)
	if err := lattice.CheckDim(p, s.dim); err != nil {
		return err
	}
	s.c.candidates.Add(1)
	defer s.flushWorkCounters(w)
	if p.IsZero() {
		return nil
	}

	w.sess.Pin()
	defer w.sess.Unpin()
	defer func() { w.filtered = w.filtered[:0] }()

	ps := s.engine.Compute(p)
	var boundary candidate.Handle
	for {
		w.filtered = w.filtered[:0]
		pos, reduced, arity := s.scanShorter(w, p, ps)
		if reduced == nil {
			boundary = pos
			break
		}
		s.countReduction(arity, false)
		if reduced.IsZero() {
			s.collision()
			return nil
		}
		p = reduced
		ps = s.engine.Compute(p)
	}

	s.scanLonger(w, p, ps, boundary)

	if _, err := s.list.InsertBefore(boundary, candidate.NewEntry(p, ps)); err != nil {
		return err
	}
	n := s.list.Len()
	s.c.inserts.Add(1)
	s.c.observeListLen(n)
	s.metrics.RecordInsert(n)
	if s.offerShortest(p) {
		s.logger.LogNewShortest(ctx, p.Norm2Float(), s.c.candidates.Load())
	}
	return nil
}

// scanShorter walks the entries not longer than p. It stops at the first
// longer entry, returning its position, or when p can be reduced, returning
// the reduced vector.
func (s *Sieve) scanShorter(w *worker, p *lattice.Vector, ps sketch.Sketch) (candidate.Handle, *lattice.Vector, int) {
	l := s.list
	pf := p.Norm2Float()
	for h := l.First(); h != l.End(); h = l.Next(h) {
		e := l.Entry(h)
		if longer(e, p, pf) {
			return h, nil, 0
		}
		if !s.promising(w, ps, e.Sketch, s.opts.OuterBands) {
			continue
		}
		x := e.Vector
		dot := lattice.Dot(p, x)
		w.scalar++
		xn := x.Norm2()
		if lattice.Reduces(dot, xn) {
			return h, lattice.SubScaled(p, x, lattice.RoundQuo(dot, xn)), 2
		}
		if s.opts.Arity < 3 || !s.threeCandidate(dot, pf, e.Norm) {
			continue
		}
		f := filtered{h: h, vec: x, sketch: e.Sketch, sign: dot.Sign(), cond: condition(dot, xn)}
		if y := s.matchShorter(w, p, f); y != nil {
			return h, y, 3
		}
		w.filtered = append(w.filtered, f)
	}
	return l.End(), nil, 0
}

// scanLonger walks the entries from boundary on. Entries longer than p that p
// reduces are taken out of the list and their reduced versions are queued.
func (s *Sieve) scanLonger(w *worker, p *lattice.Vector, ps sketch.Sketch, boundary candidate.Handle) {
	l := s.list
	pf := p.Norm2Float()
	pn := p.Norm2()
	for h := boundary; h != l.End(); {
		if l.Removed(h) {
			h = l.Next(h)
			continue
		}
		e := l.Entry(h)
		if !longer(e, p, pf) || !s.promising(w, ps, e.Sketch, s.opts.OuterBands) {
			h = l.Next(h)
			continue
		}

		x := e.Vector
		dot := lattice.Dot(p, x)
		w.scalar++
		var (
			y      *lattice.Vector
			arity  int
			target = h
		)
		switch {
		case lattice.Reduces(dot, pn):
			y, arity = lattice.SubScaled(x, p, lattice.RoundQuo(dot, pn)), 2
		case s.opts.Arity == 3 && s.threeCandidate(dot, pf, e.Norm):
			f := filtered{h: h, vec: x, sketch: e.Sketch, sign: dot.Sign(), longer: true, cond: condition(dot, pn)}
			var i int
			if y, i = s.matchLonger(w, p, f); y == nil {
				w.filtered = append(w.filtered, f)
			} else {
				arity = 3
				if i >= 0 {
					// x2 was the longest of the triple; x1 stays.
					target = w.filtered[i].h
					w.filtered = slices.Delete(w.filtered, i, i+1)
					w.filtered = append(w.filtered, f)
				}
			}
		}
		if y == nil {
			h = l.Next(h)
			continue
		}

		var ok bool
		if target == h {
			_, h, ok = w.sess.Erase(h)
		} else {
			_, _, ok = w.sess.Erase(target)
			h = l.Next(h)
		}
		if !ok {
			// Another worker took the entry first.
			continue
		}
		s.countReduction(arity, true)
		if y.IsZero() {
			s.collision()
			continue
		}
		s.queue.Push(y)
		s.c.requeues.Add(1)
		s.metrics.RecordRequeue()
	}
}

// matchShorter looks for a filtered entry x2 such that p − s1·x1 − s2·x2 is
// shorter than p, where x1 is f.
func (s *Sieve) matchShorter(w *worker, p *lattice.Vector, f filtered) *lattice.Vector {
	for _, g := range w.filtered {
		if !s.matches(w, f, g) {
			continue
		}
		y := lattice.Combine3(p, -f.sign, f.vec, -g.sign, g.vec)
		if y.CmpNorm(p) < 0 {
			return y
		}
	}
	return nil
}

// matchLonger looks for a filtered entry x2 such that x1 − s1·p + s1·s2·x2 is
// shorter than the longer of x1 and x2, where x1 is f. It returns the
// combination and the index of x2 in w.filtered when x2 is the one replaced,
// or -1 when x1 is.
func (s *Sieve) matchLonger(w *worker, p *lattice.Vector, f filtered) (*lattice.Vector, int) {
	for i, g := range w.filtered {
		if !s.matches(w, f, g) {
			continue
		}
		y := lattice.Combine3(f.vec, -f.sign, p, f.sign*g.sign, g.vec)
		if g.longer && g.vec.CmpNorm(f.vec) > 0 {
			if y.CmpNorm(g.vec) < 0 {
				return y, i
			}
			continue
		}
		if y.CmpNorm(f.vec) < 0 {
			return y, -1
		}
	}
	return nil, -1
}

// matches tests 2·s1·s2·<x1, x2> < cond1 + cond2 for the filtered entries
// f = x1 and g = x2.
func (s *Sieve) matches(w *worker, f, g filtered) bool {
	if g.vec == f.vec || !s.promising(w, f.sketch, g.sketch, s.opts.InnerBands) {
		return false
	}
	lhs := lattice.Dot(f.vec, g.vec)
	w.scalar++
	lhs.Lsh(lhs, 1)
	if f.sign*g.sign < 0 {
		lhs.Neg(lhs)
	}
	rhs := new(big.Int).Add(f.cond, g.cond)
	return lhs.Cmp(rhs) < 0
}

func (s *Sieve) promising(w *worker, a, b sketch.Sketch, bands []sketch.Band) bool {
	if s.opts.ExactOnly {
		return true
	}
	w.sketchs++
	return sketch.Promising(a, b, bands)
}

// threeCandidate reports whether <p,x>²/(‖p‖²·‖x‖²) reaches the configured
// threshold. Orthogonal pairs never qualify.
func (s *Sieve) threeCandidate(dot *big.Int, pNorm, xNorm float64) bool {
	if dot.Sign() == 0 {
		return false
	}
	d := lattice.Float(dot)
	return d*d >= s.opts.ThreeReductionCosine*pNorm*xNorm
}

// condition returns 2|dot| − minNorm.
func condition(dot, minNorm *big.Int) *big.Int {
	c := new(big.Int).Abs(dot)
	c.Lsh(c, 1)
	return c.Sub(c, minNorm)
}

// longer reports whether the entry is strictly longer than p.
func longer(e *candidate.Entry, p *lattice.Vector, pNorm float64) bool {
	if e.Norm != pNorm {
		return e.Norm > pNorm
	}
	return e.Vector.CmpNorm(p) > 0
}

func (s *Sieve) countReduction(arity int, listEntry bool) {
	if arity == 3 {
		s.c.reductions3.Add(1)
	} else {
		s.c.reductions2.Add(1)
	}
	if listEntry {
		s.c.longerReductions.Add(1)
	}
	s.metrics.RecordReduction(arity, listEntry)
}

func (s *Sieve) collision() {
	s.c.collisions.Add(1)
	s.metrics.RecordCollision()
}

func (s *Sieve) flushWorkCounters(w *worker) {
	if w.scalar > 0 {
		s.c.scalarProducts.Add(uint64(w.scalar))
		s.metrics.RecordScalarProducts(w.scalar)
		w.scalar = 0
	}
	if w.sketchs > 0 {
		s.c.sketchComparisons.Add(uint64(w.sketchs))
		s.metrics.RecordSketchComparisons(w.sketchs)
		w.sketchs = 0
	}
}
