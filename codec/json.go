package codec

import "encoding/json"

// JSON encodes values with encoding/json. The zero value is ready to use.
// User profiles are stored this way so their field names ("_id", "avatar_url")
// stay readable in the store.
type JSON[V any] struct{}

func (JSON[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }
func (JSON[V]) Decode(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}
func (JSON[V]) Format() Format { return FormatJSON }
