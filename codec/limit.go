package codec

import "fmt"

// Limit wraps another codec and bounds payload sizes on both paths.
// A bound <= 0 disables that check.
//
// Decode limits protect against oversized entries in a shared store; Encode
// limits keep a single huge value from being written at all.
type Limit[V any] struct {
	Inner     Codec[V]
	MaxEncode int
	MaxDecode int
}

func (c Limit[V]) Encode(v V) ([]byte, error) {
	b, err := c.Inner.Encode(v)
	if err != nil {
		return nil, err
	}
	if c.MaxEncode > 0 && len(b) > c.MaxEncode {
		return nil, fmt.Errorf("%w: encoded %d > %d", ErrTooLarge, len(b), c.MaxEncode)
	}
	return b, nil
}

func (c Limit[V]) Decode(b []byte) (V, error) {
	if c.MaxDecode > 0 && len(b) > c.MaxDecode {
		var zero V
		return zero, fmt.Errorf("%w: %d > %d", ErrTooLarge, len(b), c.MaxDecode)
	}
	return c.Inner.Decode(b)
}

// Format is the inner codec's format; the limit does not change the bytes.
func (c Limit[V]) Format() Format { return FormatOf(c.Inner) }

// Clone defers to the inner codec when it copies values.
func (c Limit[V]) Clone(v V) V {
	if cl, ok := c.Inner.(Cloner[V]); ok {
		return cl.Clone(v)
	}
	return v
}
