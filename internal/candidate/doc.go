// Package candidate implements the sieve's candidate list.
//
// The list keeps entries approximately sorted by squared norm. It is a doubly
// linked list of arena slots with head and tail sentinels:
//
//   - Insertions and removals are serialized by a single mutex.
//   - Readers walk the forward links without locking. A removed entry is only
//     tombstoned and unlinked; its slot keeps its forward link and payload
//     until the epoch domain proves that no reader can still be standing on
//     it, after which the slot returns to the arena free list.
//   - Readers skip tombstoned entries.
//
// Every goroutine that reads or removes entries owns a Session, which is its
// epoch participant.
package candidate
