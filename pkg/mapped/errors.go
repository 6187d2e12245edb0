package mapped

import "errors"

var (
	// ErrRange indicates an access outside the mapped region: a read past
	// the mapped size, or a seek past the end or before the start.
	ErrRange = errors.New("access outside mapped region")

	// ErrOverflow indicates that size arithmetic would wrap around.
	ErrOverflow = errors.New("size arithmetic overflow")

	// ErrClosed indicates an operation on a closed mapped file.
	ErrClosed = errors.New("mapped file is closed")

	// ErrUnsupportedPlatform indicates mmap backing is not available.
	ErrUnsupportedPlatform = errors.New("memory-mapped files are not supported on this platform")
)
