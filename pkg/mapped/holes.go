package mapped

import "github.com/google/btree"

// hole is a free chunk in the mapped buffer.
type hole struct {
	pos  uint64 // offset of the chunk's size prefix
	size uint64 // total chunk size including the prefix
}

// holeLess orders holes by size, then position. Ordering by size first makes
// the tree answer "smallest hole at least this large" directly; the position
// tie-break keeps duplicate sizes as distinct items.
func holeLess(a, b hole) bool {
	if a.size != b.size {
		return a.size < b.size
	}
	return a.pos < b.pos
}

// holeTree is the in-memory free list. It is rebuilt empty on every open.
type holeTree struct {
	t *btree.BTreeG[hole]
}

func newHoleTree() *holeTree {
	return &holeTree{t: btree.NewG(2, holeLess)}
}

func (ht *holeTree) insert(h hole) {
	ht.t.ReplaceOrInsert(h)
}

// takeAtLeast removes and returns the smallest hole whose size is at least s.
// Requests are rounded through HoleSize before lookup, so an exact fit is the
// common case; a larger hole is consumed whole when no exact fit exists.
func (ht *holeTree) takeAtLeast(s uint64) (hole, bool) {
	var (
		found hole
		ok    bool
	)
	ht.t.AscendGreaterOrEqual(hole{size: s}, func(h hole) bool {
		found, ok = h, true
		return false
	})
	if ok {
		ht.t.Delete(found)
	}
	return found, ok
}

func (ht *holeTree) len() int {
	return ht.t.Len()
}
