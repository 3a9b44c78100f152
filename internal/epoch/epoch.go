// Package epoch implements epoch-based deferred reclamation.
//
// Readers Pin a Participant before traversing a shared structure and Unpin
// when done. Writers that unlink a slot Retire its handle into their own
// participant's bin, tagged with the global epoch at retirement. The global
// epoch only advances once every pinned participant has observed it, so a
// handle retired in epoch e cannot be reached by any reader once the global
// epoch reaches e+2. Such handles are passed to the domain's reclaim
// function.
//
// Bins are per participant and never shared, which keeps retirement free of
// synchronization. Each participant must be used by one goroutine at a time.
package epoch

import (
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
)

const (
	// numBins is the number of epochs a bin can lag behind the global epoch.
	numBins = 3

	// advanceEvery is the number of retirements between advance attempts.
	advanceEvery = 64

	pinnedBit = 1
)

// ReclaimFunc receives handles that no reader can observe any more.
type ReclaimFunc func(handles *roaring.Bitmap)

// Domain is a set of participants sharing one global epoch.
type Domain struct {
	global  atomic.Uint64
	reclaim ReclaimFunc

	mu           sync.RWMutex
	participants []*Participant

	reclaimed atomic.Uint64
}

// NewDomain creates a Domain calling reclaim for expired handles.
func NewDomain(reclaim ReclaimFunc) *Domain {
	d := &Domain{reclaim: reclaim}
	d.global.Store(1)
	return d
}

// Epoch returns the current global epoch.
func (d *Domain) Epoch() uint64 { return d.global.Load() }

// Reclaimed returns the total number of handles passed to the reclaim function.
func (d *Domain) Reclaimed() uint64 { return d.reclaimed.Load() }

// Register adds a participant.
func (d *Domain) Register() *Participant {
	p := &Participant{domain: d}
	for i := range p.bins {
		p.bins[i] = roaring.New()
	}
	d.mu.Lock()
	d.participants = append(d.participants, p)
	d.mu.Unlock()
	return p
}

// unregister removes p from the advance checks.
func (d *Domain) unregister(p *Participant) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, q := range d.participants {
		if q == p {
			d.participants = append(d.participants[:i], d.participants[i+1:]...)
			return
		}
	}
}

// tryAdvance moves the global epoch forward if every pinned participant has
// observed it.
func (d *Domain) tryAdvance() uint64 {
	g := d.global.Load()
	d.mu.RLock()
	for _, p := range d.participants {
		s := p.state.Load()
		if s&pinnedBit != 0 && s>>1 != g {
			d.mu.RUnlock()
			return g
		}
	}
	d.mu.RUnlock()
	if d.global.CompareAndSwap(g, g+1) {
		return g + 1
	}
	return d.global.Load()
}

// Participant is one goroutine's view of a Domain.
type Participant struct {
	domain *Domain

	// state is epoch<<1 | pinned.
	state atomic.Uint64

	bins     [numBins]*roaring.Bitmap
	binEpoch [numBins]uint64
	retired  int
	depth    int
}

// Pin announces that the caller is about to read shared slots. Pins nest.
func (p *Participant) Pin() {
	p.depth++
	if p.depth > 1 {
		return
	}
	for {
		g := p.domain.global.Load()
		p.state.Store(g<<1 | pinnedBit)
		if p.domain.global.Load() == g {
			return
		}
	}
}

// Unpin ends the read section started by the matching Pin.
func (p *Participant) Unpin() {
	p.depth--
	if p.depth > 0 {
		return
	}
	p.state.Store(0)
}

// Pinned reports whether the participant is inside a read section.
func (p *Participant) Pinned() bool { return p.depth > 0 }

// Retire schedules h for reclamation once no reader can observe it.
func (p *Participant) Retire(h uint32) {
	g := p.domain.global.Load()
	i := int(g % numBins)
	if p.binEpoch[i] != g {
		// The bin holds handles from epoch g-3 or older: safe.
		p.flush(i)
		p.binEpoch[i] = g
	}
	p.bins[i].Add(h)

	p.retired++
	if p.retired%advanceEvery == 0 {
		p.Collect()
	}
}

// Collect tries to advance the global epoch and reclaims expired bins.
func (p *Participant) Collect() {
	g := p.domain.tryAdvance()
	for i := range p.bins {
		if p.binEpoch[i]+2 <= g {
			p.flush(i)
		}
	}
}

// Pending returns the number of retired handles not yet reclaimed.
func (p *Participant) Pending() uint64 {
	var n uint64
	for _, b := range p.bins {
		n += b.GetCardinality()
	}
	return n
}

func (p *Participant) flush(i int) {
	b := p.bins[i]
	if b.IsEmpty() {
		return
	}
	p.domain.reclaimed.Add(b.GetCardinality())
	if p.domain.reclaim != nil {
		p.domain.reclaim(b)
	}
	b.Clear()
}

// Close unregisters the participant. Bins still holding handles are
// reclaimed only if they have expired; call Drain once all readers stopped.
func (p *Participant) Close() {
	p.Collect()
	p.domain.unregister(p)
}

// Drain reclaims every retired handle regardless of epoch. It must only be
// called when no participant of the domain is pinned.
func (p *Participant) Drain() {
	for i := range p.bins {
		p.flush(i)
	}
}
