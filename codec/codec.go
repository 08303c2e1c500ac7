// Package codec centralizes dump serialization.
//
// The wire format produced by ToWire is self-describing: it records the
// codec name in its header, so bytes written with one codec are always
// readable later regardless of the process-wide default. Codec selection is
// therefore a compatibility boundary only for consumers that bypass the
// wire framing.
package codec

import "fmt"

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns a built-in codec by its stable name.
//
// Wire-framed dumps store the codec name in their header; FromWire uses
// this registry to select the decoder.
func ByName(name string) (Codec, bool) {
	switch name {
	case "cbor":
		return CBOR{}, true
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	default:
		return nil, false
	}
}

// MustMarshal is a helper for internal tests/benchmarks.
func MustMarshal(c Codec, v any) []byte {
	if c == nil {
		c = Default
	}
	b, err := c.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("codec %s marshal failed: %w", c.Name(), err))
	}
	return b
}
