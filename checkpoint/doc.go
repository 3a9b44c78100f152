// Package checkpoint serializes sieve snapshots.
//
// # Format
//
// A checkpoint is line-oriented UTF-8 text:
//
//	latsieve-checkpoint 1
//	dimension 3
//	seed 42
//	state suspended
//	reason ""
//	counter candidates 1200
//	sampler 0 1187
//	shortest [1 0 -1]
//	list 2
//	[1 0 -1]
//	[2 1 1]
//	queue 1
//	[0 3 1]
//	checksum 9f1c0e5b2a6d4c31
//
// Counter lines are sorted by name and sampler lines by worker. A missing
// shortest vector is written as "shortest -". The checksum is the xxhash64 of
// every byte before the checksum line.
//
// # Compression
//
// Save optionally wraps the text in a container holding a zstd or lz4
// compressed payload. Load detects the container by its magic bytes and also
// accepts plain text.
package checkpoint
