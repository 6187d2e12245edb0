package emseq

import (
	"fmt"
	"time"
)

// Get returns the element at index i, which must lie in [0, Len()). An
// unassigned slot reads back as nil.
func (s *Seq) Get(i int64) (any, error) {
	if !s.isOpen {
		return nil, ErrNotOpen
	}
	start := time.Now()

	used, err := s.used()
	if err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}
	if i < 0 || uint64(i) >= used {
		return nil, ErrIndexOutOfRange
	}

	valuePos, err := s.readSlot(uint64(i))
	if err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}
	if valuePos == 0 {
		return nil, nil
	}

	raw, err := s.values.ReadChunk(valuePos)
	if err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}
	v, err := s.codec.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}

	if s.metrics != nil {
		s.metrics.ObserveGet(time.Since(start))
	}
	return v, nil
}

// Set replaces the element at index i. Negative indices wrap once, so -1
// is the last element; anything outside [-Len(), Len()) fails with
// ErrIndexOutOfRange. The previous value chunk, if any, is freed once the
// new one is in place.
func (s *Seq) Set(i int64, v any) error {
	if !s.isOpen {
		return ErrNotOpen
	}
	start := time.Now()

	used, err := s.used()
	if err != nil {
		return fmt.Errorf("set: %w", err)
	}
	if i < 0 {
		i += int64(used)
	}
	if i < 0 || uint64(i) >= used {
		return ErrIndexOutOfRange
	}

	if err := s.setSlot(uint64(i), v); err != nil {
		return fmt.Errorf("set: %w", err)
	}

	if s.metrics != nil {
		s.metrics.ObserveSet(time.Since(start))
	}
	return nil
}

// setSlot encodes v into the values file and points slot i at it. The
// slot's previous chunk becomes a hole only after the slot is rewritten,
// so a failure leaves the previous state intact.
func (s *Seq) setSlot(i uint64, v any) error {
	oldPos, err := s.readSlot(i)
	if err != nil {
		return err
	}

	b, err := s.codec.Encode(v)
	if err != nil {
		return err
	}
	valuePos, err := s.values.WriteChunk(b)
	if err != nil {
		return err
	}

	if err := s.writeSlot(i, valuePos); err != nil {
		return err
	}
	if oldPos != 0 {
		s.values.FreeChunk(oldPos)
	}
	return nil
}

// Append adds v at the end, growing the index when it is full. The element
// count is bumped only after the slot is fully written.
func (s *Seq) Append(v any) error {
	if !s.isOpen {
		return ErrNotOpen
	}
	start := time.Now()

	used, err := s.used()
	if err != nil {
		return fmt.Errorf("append: %w", err)
	}
	capacity, err := s.capacity()
	if err != nil {
		return fmt.Errorf("append: %w", err)
	}

	if used >= capacity {
		if err := s.grow(); err != nil {
			return fmt.Errorf("append: %w", err)
		}
	}

	if err := s.setSlot(used, v); err != nil {
		return fmt.Errorf("append: %w", err)
	}
	if err := s.index.PutWordAt(offUsed, used+1); err != nil {
		return fmt.Errorf("append: %w", err)
	}

	if s.metrics != nil {
		s.metrics.ObserveAppend(time.Since(start))
	}
	return nil
}
