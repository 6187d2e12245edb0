package codec

import (
	"bytes"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// XXHasher is the default Hasher for byte-vector and string keys. It hashes
// with xxHash64, which is stable across process lifetimes as required for
// stored hashes.
type XXHasher struct{}

// Hash returns the xxHash64 of the key's bytes as a signed word.
func (XXHasher) Hash(k any) (int64, error) {
	b, err := keyBytes(k)
	if err != nil {
		return 0, err
	}
	return int64(xxhash.Sum64(b)), nil
}

// Equal compares two keys by their byte content. A string and a []byte with
// the same content are equal.
func (XXHasher) Equal(a, b any) (bool, error) {
	ab, err := keyBytes(a)
	if err != nil {
		return false, err
	}
	bb, err := keyBytes(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal(ab, bb), nil
}

func keyBytes(k any) ([]byte, error) {
	switch t := k.(type) {
	case []byte:
		return t, nil
	case string:
		return []byte(t), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, k)
	}
}
