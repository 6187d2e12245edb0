package codec

import (
	"encoding/binary"
	"fmt"
)

// Bytes is the default Codec: values are byte vectors (or strings), encoded
// with a uvarint length prefix so the payload is self-delimiting.
//
// Decode always returns []byte; hosts that store strings convert at the
// boundary.
type Bytes struct{}

// Encode accepts []byte or string.
func (Bytes) Encode(v any) ([]byte, error) {
	var raw []byte
	switch t := v.(type) {
	case []byte:
		raw = t
	case string:
		raw = []byte(t)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}

	buf := make([]byte, 0, binary.MaxVarintLen64+len(raw))
	buf = binary.AppendUvarint(buf, uint64(len(raw)))
	return append(buf, raw...), nil
}

// Decode returns the encoded byte vector, ignoring any trailing padding.
func (Bytes) Decode(b []byte) (any, error) {
	n, read := binary.Uvarint(b)
	if read <= 0 {
		return nil, fmt.Errorf("%w: bad length prefix", ErrCodec)
	}
	if n > uint64(len(b)-read) {
		return nil, fmt.Errorf("%w: length %d exceeds payload", ErrCodec, n)
	}
	out := make([]byte, n)
	copy(out, b[read:uint64(read)+n])
	return out, nil
}
