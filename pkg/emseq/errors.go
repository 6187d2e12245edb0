package emseq

import "errors"

var (
	// ErrAlreadyOpen indicates Open was called on an open sequence.
	ErrAlreadyOpen = errors.New("sequence already open")

	// ErrNotOpen indicates an operation on a sequence that is not open.
	ErrNotOpen = errors.New("sequence not open")

	// ErrBadMagic indicates a container file with an unexpected magic word.
	ErrBadMagic = errors.New("bad magic")

	// ErrIndexOutOfRange indicates an index outside [-Len(), Len()).
	ErrIndexOutOfRange = errors.New("index out of range")
)
