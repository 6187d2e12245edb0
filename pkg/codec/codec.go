// Package codec defines the boundary between the storage layer and the
// host's value representation.
//
// The containers in pkg/emmap and pkg/emseq treat keys and values as opaque:
// a Codec turns them into byte strings and back, and a Hasher supplies hash
// and equality for map keys. The storage layer never inspects values beyond
// these two interfaces.
//
// Encoded forms must be self-delimiting: chunk payloads are padded to the
// word size and reused chunks are neither zeroed nor split, so Decode
// receives the originally encoded bytes possibly followed by trailing
// padding (zeros or leftover bytes of an earlier value) and must know where
// its data ends.
package codec

import "errors"

var (
	// ErrCodec indicates an encode or decode failure.
	ErrCodec = errors.New("codec failure")

	// ErrUnsupportedType indicates a value the codec cannot represent.
	ErrUnsupportedType = errors.New("unsupported value type")
)

// Codec converts opaque values to and from byte strings.
//
// The contract is round-trip: Decode(Encode(v)) must be equivalent to v for
// every supported value. Determinism is not required; encoded forms of equal
// values may differ, since map key comparison goes through Hasher rather
// than byte equality.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(b []byte) (any, error)
}

// Hasher supplies hashing and equality for map keys.
//
// Hash must be deterministic across process lifetimes: stored hashes are
// reused verbatim during rehash and compared against recomputed ones during
// lookup.
type Hasher interface {
	Hash(k any) (int64, error)
	Equal(a, b any) (bool, error)
}
