package emmap

import (
	"encoding/binary"

	"github.com/marmos91/emstore/pkg/mapped"
)

const (
	// index.bin layout: {magic, used, mask} header followed by
	// {hash, key_pos, value_pos} entries.
	hdrSize = 3 * mapped.Word
	entSize = 3 * mapped.Word

	// Header field offsets.
	offMagic = 0
	offUsed  = 1 * mapped.Word
	offMask  = 2 * mapped.Word

	perturbShift = 5

	// A fresh map is sized for 65,536 slots; the data files start at
	// 64 KiB holding only their magic header.
	initialSlots    = 65536
	dataInitialSize = 65536
)

// indexSize returns the byte size of an index file with n slots.
func indexSize(n uint64) uint64 {
	return hdrSize + n*entSize
}

// entryOffset returns the file offset of slot i.
func entryOffset(i uint64) uint64 {
	return hdrSize + i*entSize
}

// entry is one index.bin slot.
type entry struct {
	hash     int64  // stored hash of the key
	keyPos   uint64 // offset of the key chunk in keys.bin
	valuePos uint64 // offset of the value chunk in values.bin
}

// isFree reports whether the slot is unoccupied. Stored hashes may
// legitimately be zero, so freeness is the whole triple being zero.
func (e entry) isFree() bool {
	return e.hash == 0 && e.keyPos == 0 && e.valuePos == 0
}

// readEntry loads slot i from the index file.
func readEntry(f *mapped.File, i uint64) (entry, error) {
	var buf [entSize]byte
	if err := f.ReadAt(buf[:], entryOffset(i)); err != nil {
		return entry{}, err
	}
	return entry{
		hash:     int64(binary.LittleEndian.Uint64(buf[0:])),
		keyPos:   binary.LittleEndian.Uint64(buf[8:]),
		valuePos: binary.LittleEndian.Uint64(buf[16:]),
	}, nil
}

// writeEntry stores e into slot i of the index file.
func writeEntry(f *mapped.File, i uint64, e entry) error {
	var buf [entSize]byte
	binary.LittleEndian.PutUint64(buf[0:], uint64(e.hash))
	binary.LittleEndian.PutUint64(buf[8:], e.keyPos)
	binary.LittleEndian.PutUint64(buf[16:], e.valuePos)
	return f.WriteAt(buf[:], entryOffset(i))
}
