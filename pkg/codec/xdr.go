package codec

import (
	"bytes"
	"fmt"

	xdr "github.com/rasky/go-xdr/xdr2"
)

// XDRString encodes string values as XDR strings (RFC 4506): a big-endian
// length word followed by the bytes, padded to four. XDR is self-delimiting,
// which makes it a drop-in Codec for chunked storage.
type XDRString struct{}

// Encode accepts string or []byte and produces the XDR wire form.
func (XDRString) Encode(v any) ([]byte, error) {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case []byte:
		s = string(t)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}

	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	return buf.Bytes(), nil
}

// Decode returns the string encoded in b.
func (XDRString) Decode(b []byte) (any, error) {
	var s string
	if _, err := xdr.Unmarshal(bytes.NewReader(b), &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	return s, nil
}
