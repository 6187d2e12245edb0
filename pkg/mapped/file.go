package mapped

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// File is a memory-mapped file with file-like positioning.
//
// A File is not safe for concurrent use; containers built on top of it are
// documented as single-owner and serialize access themselves.
type File struct {
	path    string
	f       *os.File
	data    []byte // mapped region, len == size
	size    uint64 // mapped size in bytes
	pos     uint64 // current seek position, 0 <= pos <= size
	eof     uint64 // logical end of file, 0 <= eof <= size
	holes   *holeTree
	metrics Metrics
}

// Path returns the current path of the backing file.
func (f *File) Path() string {
	return f.path
}

// Size returns the mapped size in bytes. The file on disk has the same size
// except transiently during a failed truncate.
func (f *File) Size() uint64 {
	return f.size
}

// EOF returns the logical end of file: the highest position ever written.
func (f *File) EOF() uint64 {
	return f.eof
}

// Tell returns the current seek position.
func (f *File) Tell() uint64 {
	return f.pos
}

// SetMetrics attaches allocator metrics. A nil value disables collection.
func (f *File) SetMetrics(m Metrics) {
	f.metrics = m
}

// checkRange reports whether size bytes starting at pos lie inside the
// mapped region.
func (f *File) checkRange(pos, size uint64) bool {
	return size <= math.MaxInt64 && pos <= math.MaxInt64 && pos+size <= f.size
}

// ensureRange grows the mapping until size bytes at pos fit. Growth is
// geometric: the mapped size is multiplied by 1.5 until the write fits.
func (f *File) ensureRange(pos, size uint64) error {
	if size > math.MaxInt64 || pos > math.MaxInt64 {
		return ErrRange
	}

	newSize := f.size
	if newSize >= pos+size {
		return nil
	}
	for newSize < pos+size {
		if newSize+(newSize>>1) < newSize {
			return ErrOverflow
		}
		newSize += newSize >> 1
	}
	if err := f.Truncate(newSize); err != nil {
		return err
	}
	if f.metrics != nil {
		f.metrics.RecordGrow(f.path, newSize)
	}
	return nil
}

// Read copies len(p) bytes from the current position into p and advances
// the position. Reading past the mapped size fails with ErrRange.
func (f *File) Read(p []byte) error {
	if f.data == nil {
		return ErrClosed
	}
	n := uint64(len(p))
	if !f.checkRange(f.pos, n) {
		return ErrRange
	}
	copy(p, f.data[f.pos:f.pos+n])
	f.pos += n
	return nil
}

// Write copies p into the file at the current position, growing the mapping
// as needed, and advances both the position and the logical EOF.
func (f *File) Write(p []byte) error {
	if f.data == nil {
		return ErrClosed
	}
	n := uint64(len(p))
	if err := f.ensureRange(f.pos, n); err != nil {
		return err
	}
	copy(f.data[f.pos:f.pos+n], p)

	f.pos += n
	if f.pos > f.eof {
		f.eof = f.pos
	}
	return nil
}

// Memset writes n copies of c at the current position, with the same growth
// and EOF semantics as Write.
func (f *File) Memset(c byte, n uint64) error {
	if f.data == nil {
		return ErrClosed
	}
	if err := f.ensureRange(f.pos, n); err != nil {
		return err
	}
	region := f.data[f.pos : f.pos+n]
	if c == 0 {
		clear(region)
	} else {
		for i := range region {
			region[i] = c
		}
	}

	f.pos += n
	if f.pos > f.eof {
		f.eof = f.pos
	}
	return nil
}

// Seek sets the position. whence is io.SeekStart, io.SeekCurrent or
// io.SeekEnd; io.SeekEnd is relative to the mapped size, not the logical
// EOF. Positions outside [0, Size()] fail with ErrRange.
func (f *File) Seek(off int64, whence int) error {
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		off += int64(f.pos)
	case io.SeekEnd:
		off += int64(f.size)
	default:
		return fmt.Errorf("seek %s: invalid whence %d", f.path, whence)
	}

	if off < 0 || uint64(off) > f.size {
		return ErrRange
	}
	f.pos = uint64(off)
	return nil
}

// ReadAt reads len(p) bytes starting at off.
func (f *File) ReadAt(p []byte, off uint64) error {
	if err := f.Seek(int64(off), io.SeekStart); err != nil {
		return err
	}
	return f.Read(p)
}

// WriteAt writes p starting at off, growing the mapping as needed.
func (f *File) WriteAt(p []byte, off uint64) error {
	if off > f.size {
		// Seek cannot reach past the mapped size; grow first so that
		// sparse writes behave like their pwrite counterpart.
		if err := f.ensureRange(off, uint64(len(p))); err != nil {
			return err
		}
	}
	if err := f.Seek(int64(off), io.SeekStart); err != nil {
		return err
	}
	return f.Write(p)
}

// readWord reads one little-endian word at the current position.
func (f *File) readWord() (uint64, error) {
	var b [Word]byte
	if err := f.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// writeWord writes one little-endian word at the current position.
func (f *File) writeWord(v uint64) error {
	var b [Word]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return f.Write(b[:])
}

// WordAt reads the little-endian word stored at off.
func (f *File) WordAt(off uint64) (uint64, error) {
	if err := f.Seek(int64(off), io.SeekStart); err != nil {
		return 0, err
	}
	return f.readWord()
}

// PutWordAt stores v as a little-endian word at off.
func (f *File) PutWordAt(off uint64, v uint64) error {
	if err := f.Seek(int64(off), io.SeekStart); err != nil {
		return err
	}
	return f.writeWord(v)
}

// Rename moves the backing file to path. The mapping stays valid across the
// rename; only the recorded path changes.
func (f *File) Rename(path string) error {
	if err := os.Rename(f.path, path); err != nil {
		return fmt.Errorf("rename %s: %w", f.path, err)
	}
	f.path = path
	return nil
}

// Holes returns the number of free chunks currently tracked in memory.
func (f *File) Holes() int {
	return f.holes.len()
}
