// Package mapped provides a file-like API over memory-mapped files together
// with a within-file chunk allocator.
//
// A File keeps the whole backing file mapped read-write and tracks three
// positions: the seek position, the logical end of file and the mapped size.
// The mapped size grows geometrically as writes extend past it, so the file
// on disk is usually larger than its logical contents; callers that care
// truncate to EOF on close.
//
// Chunks are length-prefixed regions of the file body:
//
//	{size: 8 bytes, payload: size - 8 bytes}
//
// where size includes the prefix itself. Freed chunks are remembered in an
// in-memory tree ordered by size and reused by later allocations of a
// matching size. The tree is not persisted; a reopened file starts with an
// empty free list.
//
// All offsets and sizes are little-endian 64-bit words. Only 64-bit hosts
// are supported.
package mapped

// Word is the on-disk word size in bytes. Offsets, sizes and chunk headers
// all occupy one word.
const Word = 8

// Magic identifies files written by this package's containers
// ("EMD\0HDR\0" little-endian).
const Magic uint64 = 0x0052444800444d45

// Align rounds n up to the next multiple of the word size.
func Align(n uint64) uint64 {
	return (n + Word - 1) &^ (Word - 1)
}

// HoleSize returns the total footprint of a chunk holding n payload bytes:
// the aligned payload plus the size prefix.
func HoleSize(n uint64) uint64 {
	return Align(n) + Word
}
