package candidate

import (
	"errors"
	"iter"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/latsieve/internal/arena"
	"github.com/hupe1980/latsieve/internal/epoch"
	"github.com/hupe1980/latsieve/lattice"
	"github.com/hupe1980/latsieve/sketch"
)

// ErrEmpty is returned by Front and Back on an empty list.
var ErrEmpty = errors.New("candidate: list is empty")

// Handle is the position of an entry.
type Handle = arena.Handle

// Entry is a list entry: a vector with its cached sketch and approximate norm.
type Entry struct {
	Vector *lattice.Vector
	Sketch sketch.Sketch
	Norm   float64
}

// NewEntry builds an entry for v.
func NewEntry(v *lattice.Vector, s sketch.Sketch) Entry {
	return Entry{Vector: v, Sketch: s, Norm: v.Norm2Float()}
}

type node struct {
	entry   Entry
	next    atomic.Uint32
	prev    Handle // protected by List.mu
	removed atomic.Bool
}

// Stats describes the list.
type Stats struct {
	Len       int
	Slots     arena.Stats
	Epoch     uint64
	Reclaimed uint64
}

// List is an approximately norm-ordered candidate list.
type List struct {
	mu     sync.Mutex
	slots  *arena.Arena[node]
	head   Handle
	tail   Handle
	length atomic.Int64
	domain *epoch.Domain
}

// New creates an empty List.
func New() *List {
	l := &List{slots: arena.New[node]()}
	// The first two slots of a fresh arena always fit in the first segment.
	l.head, _, _ = l.slots.Alloc()
	l.tail, _, _ = l.slots.Alloc()
	l.node(l.head).next.Store(uint32(l.tail))
	l.node(l.tail).prev = l.head
	l.domain = epoch.NewDomain(l.recycle)
	return l
}

func (l *List) node(h Handle) *node { return l.slots.Get(h) }

// End returns the position after the last entry.
func (l *List) End() Handle { return l.tail }

// Len returns the number of live entries.
func (l *List) Len() int { return int(l.length.Load()) }

// skip advances h past tombstoned entries.
func (l *List) skip(h Handle) Handle {
	for h != l.tail && l.node(h).removed.Load() {
		h = Handle(l.node(h).next.Load())
	}
	return h
}

// First returns the position of the first live entry, or End. The caller
// must be pinned.
func (l *List) First() Handle {
	return l.skip(Handle(l.node(l.head).next.Load()))
}

// Next returns the position of the first live entry after h, or End. The
// caller must be pinned.
func (l *List) Next(h Handle) Handle {
	return l.skip(Handle(l.node(h).next.Load()))
}

// Entry returns the entry at h. The pointer is valid while the caller stays
// pinned.
func (l *List) Entry(h Handle) *Entry { return &l.node(h).entry }

// Removed reports whether the entry at h has been tombstoned.
func (l *List) Removed(h Handle) bool { return l.node(h).removed.Load() }

// InsertBefore links e immediately before pos and returns its position. If
// pos has been removed concurrently the entry goes before the next live
// entry. The caller must be pinned when pos came from a traversal.
func (l *List) InsertBefore(pos Handle, e Entry) (Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.insertLocked(l.skip(pos), e)
}

func (l *List) insertLocked(pos Handle, e Entry) (Handle, error) {
	h, n, err := l.slots.Alloc()
	if err != nil {
		return arena.Nil, err
	}
	at := l.node(pos)
	prev := at.prev

	n.entry = e
	n.prev = prev
	n.removed.Store(false)
	n.next.Store(uint32(pos))

	at.prev = h
	// Publishing store: readers see a fully initialized node.
	l.node(prev).next.Store(uint32(h))
	l.length.Add(1)
	return h, nil
}

// InsertSorted inserts e before the first entry with a larger norm.
func (l *List) InsertSorted(e Entry) (Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos := Handle(l.node(l.head).next.Load())
	for pos != l.tail {
		cur := l.node(pos).entry.Vector
		if cur.CmpNorm(e.Vector) > 0 {
			break
		}
		pos = Handle(l.node(pos).next.Load())
	}
	return l.insertLocked(pos, e)
}

// Front returns the shortest vector (the first entry).
func (l *List) Front() (*lattice.Vector, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	h := Handle(l.node(l.head).next.Load())
	if h == l.tail {
		return nil, ErrEmpty
	}
	return l.node(h).entry.Vector, nil
}

// Back returns the longest vector (the last entry).
func (l *List) Back() (*lattice.Vector, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	h := l.node(l.tail).prev
	if h == l.head {
		return nil, ErrEmpty
	}
	return l.node(h).entry.Vector, nil
}

// Vectors returns the live vectors in storage order.
func (l *List) Vectors() []*lattice.Vector {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*lattice.Vector, 0, l.Len())
	for h := Handle(l.node(l.head).next.Load()); h != l.tail; h = Handle(l.node(h).next.Load()) {
		out = append(out, l.node(h).entry.Vector)
	}
	return out
}

// Stats returns a snapshot of list statistics.
func (l *List) Stats() Stats {
	return Stats{
		Len:       l.Len(),
		Slots:     l.slots.Stats(),
		Epoch:     l.domain.Epoch(),
		Reclaimed: l.domain.Reclaimed(),
	}
}

// recycle returns expired slots to the arena.
func (l *List) recycle(handles *roaring.Bitmap) {
	l.mu.Lock()
	defer l.mu.Unlock()
	it := handles.Iterator()
	for it.HasNext() {
		h := Handle(it.Next())
		n := l.node(h)
		n.entry = Entry{}
		n.prev = arena.Nil
		_ = l.slots.Free(h)
	}
}

// Session is a goroutine's handle on the list.
type Session struct {
	l *List
	p *epoch.Participant
}

// NewSession registers a new reader/writer session.
func (l *List) NewSession() *Session {
	return &Session{l: l, p: l.domain.Register()}
}

// Pin starts a read section. Positions and entries obtained while pinned stay
// valid until the matching Unpin.
func (s *Session) Pin() { s.p.Pin() }

// Unpin ends a read section.
func (s *Session) Unpin() { s.p.Unpin() }

// All iterates over the live entries in storage order while pinned. The
// sequence is single pass and may be restarted by calling All again.
func (s *Session) All() iter.Seq2[Handle, *Entry] {
	return func(yield func(Handle, *Entry) bool) {
		s.p.Pin()
		defer s.p.Unpin()
		for h := s.l.First(); h != s.l.tail; h = s.l.Next(h) {
			if !yield(h, s.l.Entry(h)) {
				return
			}
		}
	}
}

// Erase tombstones and unlinks the entry at h and hands its vector to the
// caller, together with the position of the next live entry. ok is false if
// another session removed the entry first. The caller must be pinned.
func (s *Session) Erase(h Handle) (v *lattice.Vector, next Handle, ok bool) {
	l := s.l
	l.mu.Lock()
	n := l.node(h)
	if n.removed.Load() {
		l.mu.Unlock()
		return nil, l.Next(h), false
	}
	n.removed.Store(true)
	succ := Handle(n.next.Load())
	l.node(n.prev).next.Store(uint32(succ))
	l.node(succ).prev = n.prev
	l.length.Add(-1)
	v = n.entry.Vector
	l.mu.Unlock()

	s.p.Retire(uint32(h))
	return v, l.skip(succ), true
}

// Pending returns the number of slots retired by this session and not yet
// reclaimed.
func (s *Session) Pending() uint64 { return s.p.Pending() }

// Collect attempts to reclaim expired slots.
func (s *Session) Collect() { s.p.Collect() }

// Close releases the session. Retired slots that have not expired yet are
// reclaimed by Drain.
func (s *Session) Close() { s.p.Close() }

// Drain reclaims every slot retired by this session. Only call it when no
// other session is pinned.
func (s *Session) Drain() { s.p.Drain() }
