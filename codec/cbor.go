package codec

import "github.com/fxamacker/cbor/v2"

// CBOR is a binary codec backed by github.com/fxamacker/cbor/v2.
//
// CBOR distinguishes integers from floats natively and encodes the tagged
// node structure more compactly than JSON, so it is the default wire codec.
type CBOR struct{}

// Marshal encodes the value to CBOR.
func (CBOR) Marshal(v any) ([]byte, error) { return cbor.Marshal(v) }

// Unmarshal decodes the CBOR data into v.
func (CBOR) Unmarshal(data []byte, v any) error { return cbor.Unmarshal(data, v) }

// Name returns the unique name of the codec ("cbor").
func (CBOR) Name() string { return "cbor" }

// Default is the codec used when none is specified.
//
// This affects newly written bytes only: wire-framed dumps are
// self-describing and are decoded by the codec named in their header.
var Default Codec = CBOR{}
