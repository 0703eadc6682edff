package codec

import "bytes"

// Bytes is an identity codec for []byte values, used for audio blobs.
// Decode returns the store's slice unchanged; Encode returns the caller's.
// Clone gives the cache its own copy.
type Bytes struct{}

var (
	_ Codec[[]byte]  = Bytes{}
	_ Cloner[[]byte] = Bytes{}
)

func (Bytes) Encode(b []byte) ([]byte, error) { return b, nil }
func (Bytes) Decode(b []byte) ([]byte, error) { return b, nil }
func (Bytes) Format() Format                  { return FormatBytes }
func (Bytes) Clone(b []byte) []byte           { return bytes.Clone(b) }

// String stores Go strings as their UTF-8 bytes. No validation is done.
type String struct{}

var _ Codec[string] = String{}

func (String) Encode(s string) ([]byte, error) { return []byte(s), nil }
func (String) Decode(b []byte) (string, error) { return string(b), nil }
func (String) Format() Format                  { return FormatString }
