// Package mmap maps files read-only into memory.
//
//	f, err := mmap.Open("run.ckpt")
//	if err != nil { ... }
//	defer f.Close()
//	data := f.Bytes()
//
// On Unix the mapping is advised for sequential access. Empty files are
// never mapped; Bytes returns nil for them.
package mmap
