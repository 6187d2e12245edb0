//go:build linux

package mapped

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// maxMapSize bounds a single mapping. Linux maps the full file in one
// region; the practical bound is the positive int64 range.
const maxMapSize = 1 << 62

// remap resizes the mapping to size using mremap, which shrinks in place
// and moves the region if it cannot be extended in place.
func (f *File) remap(size uint64) ([]byte, error) {
	data, err := unix.Mremap(f.data, int(size), unix.MREMAP_MAYMOVE)
	if err != nil {
		return nil, fmt.Errorf("mremap %s: %w", f.path, err)
	}
	return data, nil
}
