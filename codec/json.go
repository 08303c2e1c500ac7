package codec

import (
	"encoding/json"
)

// JSON is the standard-library JSON codec.
//
// Numbers round-trip exactly through the tagged node encoding: integers are
// decoded into typed int64 fields (no float64 intermediate), and Go emits
// floats in shortest round-trip form.
type JSON struct{}

// Marshal encodes the value to JSON.
func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal decodes the JSON data into v.
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name returns the unique name of the codec ("json").
func (JSON) Name() string { return "json" }
