// Package queue implements the sieve's queue of pending candidates.
package queue

import (
	"slices"
	"sync"

	"github.com/hupe1980/latsieve/lattice"
	"github.com/hupe1980/latsieve/sampler"
)

// Options configures a Queue.
type Options struct {
	// Priority pops the shortest pending vector first instead of the oldest.
	Priority bool
}

// DefaultOptions contains the default queue options.
var DefaultOptions = Options{}

// item is a pending vector. seq breaks norm ties in arrival order.
type item struct {
	vec  *lattice.Vector
	norm float64
	seq  uint64
}

// Queue holds pending vectors. When it is empty, Pop falls back to a sampler,
// so from the caller's point of view it never runs dry. All operations are
// serialized by one mutex.
type Queue struct {
	mu       sync.Mutex
	priority bool
	fallback sampler.Sampler
	items    []item
	head     int // FIFO read position
	seq      uint64
}

// New creates a Queue. fallback may be nil if every consumer uses PopWith.
func New(fallback sampler.Sampler, optFns ...func(o *Options)) *Queue {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Queue{
		priority: opts.Priority,
		fallback: fallback,
	}
}

// Priority reports whether the queue pops shortest-first.
func (q *Queue) Priority() bool { return q.priority }

// Push enqueues v. Pushing the zero vector is a programming error and panics.
func (q *Queue) Push(v *lattice.Vector) {
	if v.IsZero() {
		panic(lattice.ErrZeroVector)
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	it := item{vec: v, norm: v.Norm2Float(), seq: q.seq}
	q.seq++
	q.items = append(q.items, it)
	if q.priority {
		q.siftUp(len(q.items) - 1)
	}
}

// Pop removes and returns the next pending vector, or samples a fresh one
// from the fallback sampler when the queue is empty. The fallback is invoked
// under the queue lock.
func (q *Queue) Pop() *lattice.Vector {
	q.mu.Lock()
	defer q.mu.Unlock()
	if v, ok := q.popLocked(); ok {
		return v
	}
	return q.fallback.Sample()
}

// PopWith is Pop with a caller-owned fallback sampler, which is invoked
// without holding the queue lock.
func (q *Queue) PopWith(s sampler.Sampler) *lattice.Vector {
	q.mu.Lock()
	v, ok := q.popLocked()
	q.mu.Unlock()
	if ok {
		return v
	}
	return s.Sample()
}

// TryPop removes and returns the next pending vector without sampling.
func (q *Queue) TryPop() (*lattice.Vector, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked()
}

func (q *Queue) popLocked() (*lattice.Vector, bool) {
	if q.priority {
		return q.popHeap()
	}
	if q.head == len(q.items) {
		return nil, false
	}
	v := q.items[q.head].vec
	q.items[q.head] = item{}
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head >= 1024 && q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return v, true
}

// Len returns the number of pending vectors.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// Empty reports whether no vector is pending.
func (q *Queue) Empty() bool { return q.Len() == 0 }

// Snapshot returns the pending vectors in pop order without removing them.
func (q *Queue) Snapshot() []*lattice.Vector {
	q.mu.Lock()
	pending := slices.Clone(q.items[q.head:])
	q.mu.Unlock()

	if q.priority {
		slices.SortFunc(pending, func(a, b item) int {
			if less(a, b) {
				return -1
			}
			if less(b, a) {
				return 1
			}
			return 0
		})
	}
	out := make([]*lattice.Vector, len(pending))
	for i, it := range pending {
		out[i] = it.vec
	}
	return out
}

func less(a, b item) bool {
	if a.norm != b.norm {
		return a.norm < b.norm
	}
	return a.seq < b.seq
}

func (q *Queue) popHeap() (*lattice.Vector, bool) {
	n := len(q.items)
	if n == 0 {
		return nil, false
	}
	root := q.items[0]
	last := q.items[n-1]
	q.items[n-1] = item{}
	q.items = q.items[:n-1]
	if n-1 > 0 {
		q.items[0] = last
		q.siftDown(0)
	}
	return root.vec, true
}

func (q *Queue) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !less(q.items[i], q.items[p]) {
			return
		}
		q.items[i], q.items[p] = q.items[p], q.items[i]
		i = p
	}
}

func (q *Queue) siftDown(i int) {
	n := len(q.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		r := l + 1
		if r < n && less(q.items[r], q.items[l]) {
			best = r
		}
		if !less(q.items[best], q.items[i]) {
			return
		}
		q.items[i], q.items[best] = q.items[best], q.items[i]
		i = best
	}
}
