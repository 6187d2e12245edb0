package mapped

import (
	"io"
	"math"
)

// AllocateChunk returns the position of a chunk that can hold n payload
// bytes. The returned position is one word past the chunk's size prefix;
// it is safe to seek there and write n bytes.
//
// The free list is consulted first; when it has no hole of at least the
// rounded size, the chunk is carved off the end of the file and its payload
// is zero-filled.
func (f *File) AllocateChunk(n uint64) (uint64, error) {
	if f.data == nil {
		return 0, ErrClosed
	}
	if n > math.MaxInt64 {
		return 0, ErrOverflow
	}

	s := HoleSize(n)

	if h, ok := f.holes.takeAtLeast(s); ok {
		// The hole keeps its original size prefix; a larger-than-exact
		// hole is consumed whole rather than split.
		if f.metrics != nil {
			f.metrics.RecordAlloc(h.size, true)
		}
		return h.pos + Word, nil
	}

	pos := f.eof
	if err := f.Seek(int64(pos), io.SeekStart); err != nil {
		return 0, err
	}
	if err := f.writeWord(s); err != nil {
		return 0, err
	}
	if err := f.Memset(0, s-Word); err != nil {
		return 0, err
	}
	if f.metrics != nil {
		f.metrics.RecordAlloc(s, false)
	}
	return pos + Word, nil
}

// FreeChunk marks the chunk at position pos as free. pos must have been
// returned by AllocateChunk. The payload is left in place and the file is
// never shrunk; the hole only becomes reusable within this session.
func (f *File) FreeChunk(pos uint64) {
	if f.data == nil || pos < Word {
		return
	}
	start := pos - Word

	s, err := f.WordAt(start)
	if err != nil {
		return
	}
	if !f.checkRange(start, s) || s < 2*Word {
		return
	}

	f.holes.insert(hole{pos: start, size: s})
	if f.metrics != nil {
		f.metrics.RecordFree(s)
	}
}

// ChunkSize returns the payload capacity of the chunk at pos and leaves the
// seek position at pos, ready for a payload read.
func (f *File) ChunkSize(pos uint64) (uint64, error) {
	if pos < Word {
		return 0, ErrRange
	}
	s, err := f.WordAt(pos - Word)
	if err != nil {
		return 0, err
	}
	if s < Word {
		return 0, ErrRange
	}
	return s - Word, nil
}

// WriteChunk allocates a chunk for b, writes b into it and returns the
// chunk's payload position. On write failure the chunk is freed again.
func (f *File) WriteChunk(b []byte) (uint64, error) {
	pos, err := f.AllocateChunk(uint64(len(b)))
	if err != nil {
		return 0, err
	}

	if pos != f.Tell() {
		if err := f.Seek(int64(pos), io.SeekStart); err != nil {
			f.FreeChunk(pos)
			return 0, err
		}
	}
	if err := f.Write(b); err != nil {
		f.FreeChunk(pos)
		return 0, err
	}
	return pos, nil
}

// ReadChunk returns a copy of the payload of the chunk at pos. The returned
// slice spans the chunk's full payload capacity, which may be longer than
// the bytes originally written because of word alignment; codecs are
// expected to be self-delimiting.
func (f *File) ReadChunk(pos uint64) ([]byte, error) {
	size, err := f.ChunkSize(pos)
	if err != nil {
		return nil, err
	}
	if !f.checkRange(pos, size) {
		return nil, ErrRange
	}
	buf := make([]byte, size)
	copy(buf, f.data[pos:pos+size])
	return buf, nil
}
