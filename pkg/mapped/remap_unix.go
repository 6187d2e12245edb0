//go:build !linux && !windows

package mapped

import (
	"fmt"

	"golang.org/x/sys/unix"
)

const maxMapSize = 1 << 62

// remap resizes the mapping to size. Without an mremap primitive the new
// mapping is established from the same descriptor before the old one is
// dropped, so the window where both exist is as short as possible.
func (f *File) remap(size uint64) ([]byte, error) {
	data, err := unix.Mmap(int(f.f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", f.path, err)
	}
	if err := unix.Munmap(f.data); err != nil {
		_ = unix.Munmap(data)
		return nil, fmt.Errorf("munmap %s: %w", f.path, err)
	}
	return data, nil
}
