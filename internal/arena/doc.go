// Package arena provides a slot allocator addressed by stable handles.
//
// Slots live in fixed-size segments that never move, so a Handle stays valid
// (and Get stays lock-free) while the arena grows. Handles replace raw owning
// pointers in linked structures shared between goroutines: ownership of a
// slot is transferred explicitly through Alloc and Free.
//
// # Concurrency Model
//
// Get is lock-free and may run concurrently with Alloc and Free. Alloc and
// Free are serialized internally. Free does not zero the slot; callers must
// only free a handle once no reader can still observe it (see package epoch).
//
// # Handles
//
// Handle 0 is reserved as Nil and is never returned by Alloc.
package arena
