package emmap

import "errors"

var (
	// ErrAlreadyOpen indicates Open was called on an open map.
	ErrAlreadyOpen = errors.New("map already open")

	// ErrNotOpen indicates an operation on a map that is not open.
	ErrNotOpen = errors.New("map not open")

	// ErrBadMagic indicates a container file with an unexpected magic word.
	ErrBadMagic = errors.New("bad magic")

	// ErrKeyNotFound indicates a Get miss.
	ErrKeyNotFound = errors.New("key not found")
)
