//go:build !windows

package mapped

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Access hints for Advise.
const (
	AccessNormal     = unix.MADV_NORMAL
	AccessRandom     = unix.MADV_RANDOM
	AccessSequential = unix.MADV_SEQUENTIAL
)

// mapFile truncates fd to size and maps it read-write. On mmap failure the
// file's original on-disk size is restored.
func mapFile(f *os.File, size uint64) ([]byte, error) {
	if size > maxMapSize {
		return nil, ErrRange
	}

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", f.Name(), err)
	}

	// ftruncate zero-fills the extended region on POSIX systems.
	if err := f.Truncate(int64(size)); err != nil {
		return nil, fmt.Errorf("truncate %s: %w", f.Name(), err)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		// Restore the original size to avoid a file larger than any
		// mapping that will ever be established over it.
		_ = f.Truncate(st.Size())
		return nil, fmt.Errorf("mmap %s: %w", f.Name(), err)
	}
	return data, nil
}

// Open maps an existing file read-write. The logical EOF starts at the
// on-disk size.
func Open(path string) (*File, error) {
	osf, err := os.OpenFile(path, os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	st, err := osf.Stat()
	if err != nil {
		osf.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	size := uint64(st.Size())

	data, err := mapFile(osf, size)
	if err != nil {
		osf.Close()
		return nil, err
	}

	return &File{
		path:  path,
		f:     osf,
		data:  data,
		size:  size,
		eof:   size,
		holes: newHoleTree(),
	}, nil
}

// Create creates (or truncates) a file of the given size, zero-filled, and
// maps it read-write. The logical EOF starts at zero.
func Create(path string, size uint64) (*File, error) {
	osf, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}

	data, err := mapFile(osf, size)
	if err != nil {
		osf.Close()
		os.Remove(path)
		return nil, err
	}

	return &File{
		path:  path,
		f:     osf,
		data:  data,
		size:  size,
		holes: newHoleTree(),
	}, nil
}

// Truncate resizes the file and its mapping. Shrinking and growing both
// remap (in place where the platform allows it). On remap
// failure the original on-disk size is restored. The seek position and the
// logical EOF are clamped to the new size.
func (f *File) Truncate(size uint64) error {
	if f.data == nil {
		return ErrClosed
	}
	if size > maxMapSize {
		return ErrRange
	}
	if size == f.size {
		return nil
	}

	// Resize the file first; if adjusting the mapping fails, the original
	// size can be restored with a second ftruncate.
	if err := f.f.Truncate(int64(size)); err != nil {
		return fmt.Errorf("truncate %s: %w", f.path, err)
	}

	// Both directions go through remap: unix.Munmap only releases whole
	// mappings, so the mapping is resized rather than cut short in place.
	data, err := f.remap(size)
	if err != nil {
		_ = f.f.Truncate(int64(f.size))
		return err
	}
	f.data = data

	f.size = size
	if f.pos > size {
		f.pos = size
	}
	if f.eof > size {
		f.eof = size
	}
	return nil
}

// unmapTail releases the pages of the mapping beyond size. Both boundaries
// are rounded up to the page size; munmap drops any page overlapping the
// given range.
func (f *File) unmapTail(size uint64) error {
	pagesize := uint64(os.Getpagesize())
	lo := (size + pagesize - 1) &^ (pagesize - 1)
	hi := (f.size + pagesize - 1) &^ (pagesize - 1)
	if lo >= hi {
		return nil
	}

	base := unsafe.Pointer(unsafe.SliceData(f.data))
	tail := unsafe.Slice((*byte)(unsafe.Add(base, lo)), hi-lo)
	if err := unix.Munmap(tail); err != nil {
		return fmt.Errorf("munmap %s: %w", f.path, err)
	}
	return nil
}

// Sync flushes size bytes starting at pos to disk, best effort. No ordering
// is guaranteed across files.
func (f *File) Sync(pos, size uint64) error {
	if f.data == nil {
		return ErrClosed
	}
	if !f.checkRange(pos, size) {
		return ErrRange
	}
	if size == 0 {
		return nil
	}

	// msync requires a page-aligned start address.
	pagesize := uint64(os.Getpagesize())
	start := pos &^ (pagesize - 1)
	if err := unix.Msync(f.data[start:pos+size], unix.MS_SYNC); err != nil {
		return fmt.Errorf("msync %s: %w", f.path, err)
	}
	return nil
}

// Advise hints the kernel about the expected access pattern. advice is one
// of AccessNormal, AccessRandom or AccessSequential.
func (f *File) Advise(advice int) error {
	if f.data == nil {
		return ErrClosed
	}
	if advice != AccessNormal && advice != AccessRandom && advice != AccessSequential {
		return fmt.Errorf("madvise %s: invalid advice %d", f.path, advice)
	}
	if err := unix.Madvise(f.data, advice); err != nil {
		return fmt.Errorf("madvise %s: %w", f.path, err)
	}
	return nil
}

// Unlink deletes the backing file. The mapping stays usable until Close;
// callers are expected to close promptly.
func (f *File) Unlink() error {
	if err := os.Remove(f.path); err != nil {
		return fmt.Errorf("unlink %s: %w", f.path, err)
	}
	return nil
}

// Close unmaps and closes the file. Close is idempotent.
func (f *File) Close() error {
	if f.data == nil {
		return nil
	}

	data := f.data
	f.data = nil

	if err := unix.Munmap(data); err != nil {
		f.f.Close()
		return fmt.Errorf("munmap %s: %w", f.path, err)
	}
	if err := f.f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", f.path, err)
	}
	return nil
}
