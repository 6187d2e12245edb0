package emseq

// Iterator walks the sequence front to back over the elements present at
// construction time. Iterators borrow their parent sequence, which must
// stay open while they are used.
type Iterator struct {
	s      *Seq
	pos    uint64
	maxPos uint64

	value any
	err   error
}

// Iter returns an iterator over the sequence.
func (s *Seq) Iter() *Iterator {
	it := &Iterator{s: s}
	used, err := s.used()
	if err != nil {
		it.err = err
		return it
	}
	it.maxPos = used
	return it
}

// Next advances to the next element. It returns false when the sequence is
// exhausted or an error occurred; check Err afterwards.
func (it *Iterator) Next() bool {
	if it.err != nil || !it.s.isOpen {
		return false
	}
	if it.pos >= it.maxPos {
		return false
	}

	v, err := it.s.Get(int64(it.pos))
	if err != nil {
		it.err = err
		return false
	}
	it.pos++
	it.value = v
	return true
}

// Value returns the element at the current position; nil for unassigned
// slots.
func (it *Iterator) Value() any {
	return it.value
}

// Err returns the first error encountered while iterating.
func (it *Iterator) Err() error {
	return it.err
}
