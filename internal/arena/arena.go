package arena

import (
	"errors"
	"sync"
	"sync/atomic"
)

var (
	// ErrMaxSegmentsExceeded is returned when the arena cannot grow further.
	ErrMaxSegmentsExceeded = errors.New("arena: max segments exceeded")
	// ErrInvalidHandle is returned when freeing a handle that was never allocated.
	ErrInvalidHandle = errors.New("arena: invalid handle")
)

const (
	// segmentBits is the log2 of the number of slots per segment (4096).
	segmentBits = 12
	segmentSize = 1 << segmentBits
	segmentMask = segmentSize - 1

	// MaxSegments limits the arena to 2^32 slots.
	MaxSegments = 1 << (32 - segmentBits)
)

// Handle addresses a slot in an Arena.
type Handle uint32

// Nil is the reserved invalid handle.
const Nil Handle = 0

// Stats tracks arena usage.
type Stats struct {
	Segments    uint64 // Current: allocated segments
	Capacity    uint64 // Current: slots backed by segments
	Live        uint64 // Current: allocated, not yet freed slots
	Free        uint64 // Current: slots waiting on the free list
	TotalAllocs uint64 // Historical: total allocations
	TotalFrees  uint64 // Historical: total frees
}

type segment[T any] [segmentSize]T

// Arena is a segmented slot allocator.
type Arena[T any] struct {
	segments atomic.Pointer[[]*segment[T]]

	mu   sync.Mutex
	next uint64   // next never-used slot (protected by mu)
	free []Handle // recycled slots (protected by mu)

	live        atomic.Int64
	totalAllocs atomic.Uint64
	totalFrees  atomic.Uint64
}

// New creates an empty Arena.
func New[T any]() *Arena[T] {
	a := &Arena[T]{}
	segs := []*segment[T]{new(segment[T])}
	a.segments.Store(&segs)
	// Reserve slot 0 as Nil
	a.next = 1
	return a
}

// Alloc returns a handle to a slot and a pointer to it. Recycled slots keep
// whatever content the previous owner left; callers initialize every field.
func (a *Arena[T]) Alloc() (Handle, *T, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var h Handle
	if n := len(a.free); n > 0 {
		h = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		if err := a.ensureLocked(a.next); err != nil {
			return Nil, nil, err
		}
		h = Handle(a.next)
		a.next++
	}

	a.live.Add(1)
	a.totalAllocs.Add(1)
	return h, a.Get(h), nil
}

func (a *Arena[T]) ensureLocked(slot uint64) error {
	segIdx := slot >> segmentBits
	segs := *a.segments.Load()
	if segIdx < uint64(len(segs)) {
		return nil
	}
	if segIdx >= MaxSegments {
		return ErrMaxSegmentsExceeded
	}
	grown := make([]*segment[T], len(segs), 2*len(segs))
	copy(grown, segs)
	for uint64(len(grown)) <= segIdx {
		grown = append(grown, new(segment[T]))
	}
	a.segments.Store(&grown)
	return nil
}

// Get returns a pointer to the slot addressed by h. It is lock-free.
// Get panics on Nil or handles outside the allocated range.
func (a *Arena[T]) Get(h Handle) *T {
	segs := *a.segments.Load()
	return &segs[uint32(h)>>segmentBits][uint32(h)&segmentMask]
}

// Free returns h to the free list.
func (a *Arena[T]) Free(h Handle) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if h == Nil || uint64(h) >= a.next {
		return ErrInvalidHandle
	}
	a.free = append(a.free, h)
	a.live.Add(-1)
	a.totalFrees.Add(1)
	return nil
}

// Len returns the number of live slots.
func (a *Arena[T]) Len() int { return int(a.live.Load()) }

// Stats returns a snapshot of arena usage.
func (a *Arena[T]) Stats() Stats {
	a.mu.Lock()
	free := uint64(len(a.free))
	a.mu.Unlock()

	segs := uint64(len(*a.segments.Load()))
	return Stats{
		Segments:    segs,
		Capacity:    segs * segmentSize,
		Live:        uint64(a.live.Load()),
		Free:        free,
		TotalAllocs: a.totalAllocs.Load(),
		TotalFrees:  a.totalFrees.Load(),
	}
}
