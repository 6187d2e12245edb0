package emmap

import (
	"fmt"
	"time"
)

// lookup probes for key.
//
// On a hit, found is true and slot is the matching entry. On a miss, found
// is false and slot is the first free slot on the probe path, which is
// where an insert must go. Hash or codec failures surface as err.
//
// The probe sequence is the perturbed walk used by CPython's dict:
// i' = (5i + perturb + 1) & mask with perturb starting at the hash and
// shifting right by 5 each step. It terminates only while the resize
// invariant 3*used < 2*(mask+1) holds, which every insert maintains.
func (m *Map) lookup(key any) (slot uint64, found bool, err error) {
	hash, err := m.hasher.Hash(key)
	if err != nil {
		return 0, false, err
	}
	mask, err := m.mask()
	if err != nil {
		return 0, false, err
	}

	i := uint64(hash) & mask
	ent, err := readEntry(m.index, i)
	if err != nil {
		return 0, false, err
	}

	// A stored hash may legitimately be zero, so freeness is decided by
	// the whole entry, never by the hash alone.
	if ent.isFree() {
		return i, false, nil
	}
	ok, err := m.slotMatches(ent, key, hash)
	if err != nil {
		return 0, false, err
	}
	if ok {
		return i, true, nil
	}

	for perturb := uint64(hash); ; perturb >>= perturbShift {
		i = (i*5 + perturb + 1) & mask

		ent, err = readEntry(m.index, i)
		if err != nil {
			return 0, false, err
		}
		if ent.isFree() {
			return i, false, nil
		}
		ok, err = m.slotMatches(ent, key, hash)
		if err != nil {
			return 0, false, err
		}
		if ok {
			return i, true, nil
		}
	}
}

// slotMatches reports whether the occupied entry holds key: the stored
// hash must match and the decoded stored key must compare equal.
func (m *Map) slotMatches(ent entry, key any, hash int64) (bool, error) {
	if ent.hash != hash {
		return false, nil
	}
	raw, err := m.keys.ReadChunk(ent.keyPos)
	if err != nil {
		return false, err
	}
	stored, err := m.keyCodec.Decode(raw)
	if err != nil {
		return false, err
	}
	return m.hasher.Equal(key, stored)
}

// Get returns the value stored under key, or ErrKeyNotFound.
func (m *Map) Get(key any) (any, error) {
	if !m.isOpen {
		return nil, ErrNotOpen
	}
	start := time.Now()

	slot, found, err := m.lookup(key)
	if err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}
	if !found {
		return nil, ErrKeyNotFound
	}

	ent, err := readEntry(m.index, slot)
	if err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}
	raw, err := m.values.ReadChunk(ent.valuePos)
	if err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}
	v, err := m.valueCodec.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}

	if m.metrics != nil {
		m.metrics.ObserveGet(time.Since(start))
	}
	return v, nil
}

// Set stores value under key, replacing any previous value. Replacing
// frees the previous value chunk (after the new one is in place) and
// reuses the stored key chunk. Inserting bumps the entry count last, and
// triggers a rehash when the load factor reaches two thirds.
func (m *Map) Set(key, value any) error {
	if !m.isOpen {
		return ErrNotOpen
	}
	start := time.Now()

	slot, found, err := m.lookup(key)
	if err != nil {
		return fmt.Errorf("set: %w", err)
	}
	hash, err := m.hasher.Hash(key)
	if err != nil {
		return fmt.Errorf("set: %w", err)
	}

	var keyPos, oldValuePos uint64
	if found {
		ent, err := readEntry(m.index, slot)
		if err != nil {
			return fmt.Errorf("set: %w", err)
		}
		keyPos = ent.keyPos
		oldValuePos = ent.valuePos
	}

	// The key chunk is written only once per key.
	if keyPos == 0 {
		kb, err := m.keyCodec.Encode(key)
		if err != nil {
			return fmt.Errorf("set: %w", err)
		}
		keyPos, err = m.keys.WriteChunk(kb)
		if err != nil {
			return fmt.Errorf("set: %w", err)
		}
	}

	vb, err := m.valueCodec.Encode(value)
	if err != nil {
		return fmt.Errorf("set: %w", err)
	}
	valuePos, err := m.values.WriteChunk(vb)
	if err != nil {
		return fmt.Errorf("set: %w", err)
	}

	if err := writeEntry(m.index, slot, entry{hash: hash, keyPos: keyPos, valuePos: valuePos}); err != nil {
		return fmt.Errorf("set: %w", err)
	}

	// The old value becomes a hole only once the slot points at the new
	// one, so a failure above leaves the previous state intact.
	if oldValuePos != 0 {
		m.values.FreeChunk(oldValuePos)
	}

	used, err := m.used()
	if err != nil {
		return fmt.Errorf("set: %w", err)
	}
	if !found {
		used++
		if err := m.index.PutWordAt(offUsed, used); err != nil {
			return fmt.Errorf("set: %w", err)
		}
	}

	mask, err := m.mask()
	if err != nil {
		return fmt.Errorf("set: %w", err)
	}
	if used*3 >= (mask+1)*2 {
		if err := m.rehash(); err != nil {
			return fmt.Errorf("set: %w", err)
		}
	}

	if m.metrics != nil {
		m.metrics.ObserveSet(time.Since(start))
	}
	return nil
}
