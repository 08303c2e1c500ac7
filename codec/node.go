package codec

import (
	"fmt"

	"github.com/posterior/distributions/dump"
)

// node is the codec-facing form of a dump.Value. The explicit kind byte
// disambiguates empty lists from empty maps, and the typed pointer fields
// keep int64/float64 exact through every codec (JSON decodes straight into
// int64, never through float64).
type node struct {
	Kind  uint8           `json:"k" cbor:"1,keyasint"`
	Int   *int64          `json:"i,omitempty" cbor:"2,keyasint,omitempty"`
	Float *float64        `json:"f,omitempty" cbor:"3,keyasint,omitempty"`
	List  []node          `json:"l,omitempty" cbor:"4,keyasint,omitempty"`
	Map   map[string]node `json:"m,omitempty" cbor:"5,keyasint,omitempty"`
}

func encodeNode(d dump.Value) (node, error) {
	switch d.Kind() {
	case dump.KindInt:
		v, err := d.AsInt()
		if err != nil {
			return node{}, err
		}
		return node{Kind: uint8(dump.KindInt), Int: &v}, nil
	case dump.KindFloat:
		v, err := d.AsFloat()
		if err != nil {
			return node{}, err
		}
		return node{Kind: uint8(dump.KindFloat), Float: &v}, nil
	case dump.KindList:
		items, err := d.AsList()
		if err != nil {
			return node{}, err
		}
		list := make([]node, len(items))
		for i, item := range items {
			n, err := encodeNode(item)
			if err != nil {
				return node{}, err
			}
			list[i] = n
		}
		return node{Kind: uint8(dump.KindList), List: list}, nil
	case dump.KindMap:
		m := make(map[string]node, d.Len())
		for _, k := range d.Keys() {
			item, _ := d.Field(k)
			n, err := encodeNode(item)
			if err != nil {
				return node{}, err
			}
			m[k] = n
		}
		return node{Kind: uint8(dump.KindMap), Map: m}, nil
	default:
		return node{}, fmt.Errorf("codec: cannot encode %s dump value", d.Kind())
	}
}

func decodeNode(n node) (dump.Value, error) {
	switch dump.Kind(n.Kind) {
	case dump.KindInt:
		if n.Int == nil {
			return dump.Value{}, fmt.Errorf("codec: int node missing value")
		}
		return dump.Int(*n.Int), nil
	case dump.KindFloat:
		if n.Float == nil {
			return dump.Value{}, fmt.Errorf("codec: float node missing value")
		}
		return dump.Float(*n.Float), nil
	case dump.KindList:
		items := make([]dump.Value, len(n.List))
		for i, child := range n.List {
			item, err := decodeNode(child)
			if err != nil {
				return dump.Value{}, err
			}
			items[i] = item
		}
		return dump.List(items...), nil
	case dump.KindMap:
		entries := make(map[string]dump.Value, len(n.Map))
		for k, child := range n.Map {
			item, err := decodeNode(child)
			if err != nil {
				return dump.Value{}, err
			}
			entries[k] = item
		}
		return dump.Map(entries), nil
	default:
		return dump.Value{}, fmt.Errorf("codec: unknown node kind %d", n.Kind)
	}
}

// MarshalDump encodes a dump with the given codec (Default if nil), without
// wire framing. The bytes are only decodable by a caller that already knows
// the codec; most callers want ToWire.
func MarshalDump(c Codec, d dump.Value) ([]byte, error) {
	if c == nil {
		c = Default
	}
	n, err := encodeNode(d)
	if err != nil {
		return nil, err
	}
	return c.Marshal(n)
}

// UnmarshalDump decodes bytes produced by MarshalDump with the same codec.
func UnmarshalDump(c Codec, data []byte) (dump.Value, error) {
	if c == nil {
		c = Default
	}
	var n node
	if err := c.Unmarshal(data, &n); err != nil {
		return dump.Value{}, err
	}
	return decodeNode(n)
}
