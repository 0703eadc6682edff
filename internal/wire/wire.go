// Package wire frames cache entries before they reach a store.
//
//	magic(4)="TCEN" | ver(1) | format(1) | storedAt(i64 be, unix nanos) | vlen(u32 be) | payload(vlen)
//
// Decoding is strict: anything that does not match exactly is ErrCorrupt.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"time"
)

const (
	version byte = 1
	hdrLen       = 4 + 1 + 1 + 8 + 4
)

var (
	ErrCorrupt = errors.New("tiercache: corrupt entry")
	magic4     = [...]byte{'T', 'C', 'E', 'N'}
)

// Entry is a decoded frame. Payload aliases the input buffer.
type Entry struct {
	Format   byte
	StoredAt time.Time
	Payload  []byte
}

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Encode frames payload. A zero storedAt is recorded as 0 and decodes to the
// zero time.
func Encode(format byte, storedAt time.Time, payload []byte) ([]byte, error) {
	if uint64(len(payload)) > math.MaxUint32 {
		return nil, errors.New("tiercache: payload too large to frame")
	}
	var buf bytes.Buffer
	buf.Grow(hdrLen + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(format)

	var u8 [8]byte
	var u4 [4]byte

	var nanos int64
	if !storedAt.IsZero() {
		nanos = storedAt.UnixNano()
	}
	binary.BigEndian.PutUint64(u8[:], uint64(nanos))
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes(), nil
}

func Decode(b []byte) (Entry, error) {
	if len(b) < hdrLen || !hasMagic(b) || b[4] != version {
		return Entry{}, ErrCorrupt
	}
	e := Entry{Format: b[5]}
	off := 6

	if nanos := int64(binary.BigEndian.Uint64(b[off : off+8])); nanos != 0 {
		e.StoredAt = time.Unix(0, nanos)
	}
	off += 8

	vlen := uint64(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	// exact length: no truncation, no trailing bytes
	if vlen != uint64(len(b)-off) {
		return Entry{}, ErrCorrupt
	}
	e.Payload = b[off:]
	return e, nil
}
