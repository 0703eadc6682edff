// Package codec converts cache values to and from the bytes a store holds.
//
// Every codec reports a Format. The cache records it in each stored entry, so
// entries written with a different codec read as corrupt and are dropped
// instead of being misdecoded.
package codec

import "errors"

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// Format identifies a payload encoding. 0 means unknown/unspecified.
type Format byte

const (
	FormatUnknown Format = iota
	FormatBytes
	FormatString
	FormatJSON
	FormatCBOR
	FormatMsgpack
	FormatProtobuf
)

// Cloner is implemented by codecs whose values can alias a buffer, such as
// Bytes. The cache copies such values on their way into and out of memory so
// callers never share a backing array with the memory tier.
type Cloner[V any] interface {
	Clone(V) V
}

// Formatter is implemented by codecs that declare their payload encoding.
type Formatter interface {
	Format() Format
}

// FormatOf returns c's Format, or FormatUnknown if c does not declare one.
func FormatOf(c any) Format {
	if f, ok := c.(Formatter); ok {
		return f.Format()
	}
	return FormatUnknown
}

func (f Format) String() string {
	switch f {
	case FormatBytes:
		return "bytes"
	case FormatString:
		return "string"
	case FormatJSON:
		return "json"
	case FormatCBOR:
		return "cbor"
	case FormatMsgpack:
		return "msgpack"
	case FormatProtobuf:
		return "protobuf"
	default:
		return "unknown"
	}
}

// ErrTooLarge is returned by Limit when a payload exceeds its bound.
var ErrTooLarge = errors.New("codec: payload too large")
