package codec

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/pierrec/lz4/v4"

	"github.com/posterior/distributions/dump"
)

// Wire framing for dumps.
//
// Layout (little-endian):
//
//	[0:4]   magic "PDWD"
//	[4]     version
//	[5]     flags (bit 0: lz4 block compression)
//	[6]     codec name length n
//	[7:7+n] codec name
//	[..:+4] raw (uncompressed) payload length
//	[..:+4] stored payload length
//	[...]   payload
//	[-4:]   CRC32 (IEEE) over everything before the checksum
//
// The header names the codec, so FromWire never depends on the process-wide
// Default. CRC32 catches accidental corruption only; it is not tamper
// detection.

const (
	wireMagic   = "PDWD"
	wireVersion = 1

	flagLZ4 = 1 << 0

	// compressThreshold is the payload size below which compression is not
	// attempted. Tiny dumps expand under lz4 framing overhead.
	compressThreshold = 128
)

var crcTable = crc32.MakeTable(crc32.IEEE)

// WireOption adjusts wire framing.
type WireOption func(*wireOptions)

type wireOptions struct {
	compress bool
}

// WithCompression enables lz4 block compression of the payload. Incompressible
// payloads are stored raw; the flag byte records what happened.
func WithCompression() WireOption {
	return func(o *wireOptions) { o.compress = true }
}

// ToWire serializes a dump to self-describing bytes using the given codec
// (Default if nil). The result round-trips exactly through FromWire.
func ToWire(c Codec, d dump.Value, optFns ...WireOption) ([]byte, error) {
	if c == nil {
		c = Default
	}
	var opts wireOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	payload, err := MarshalDump(c, d)
	if err != nil {
		return nil, fmt.Errorf("codec: wire marshal: %w", err)
	}

	rawLen := len(payload)
	var flags byte
	if opts.compress && rawLen >= compressThreshold {
		compressed := make([]byte, lz4.CompressBlockBound(rawLen))
		n, err := lz4.CompressBlock(payload, compressed, nil)
		if err != nil {
			return nil, fmt.Errorf("codec: lz4 compress: %w", err)
		}
		// n == 0 means incompressible; keep the raw payload.
		if n > 0 && n < rawLen {
			payload = compressed[:n]
			flags |= flagLZ4
		}
	}

	name := c.Name()
	if len(name) > 255 {
		return nil, fmt.Errorf("codec: name too long: %q", name)
	}

	buf := make([]byte, 0, 7+len(name)+8+len(payload)+4)
	buf = append(buf, wireMagic...)
	buf = append(buf, wireVersion, flags, byte(len(name)))
	buf = append(buf, name...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(rawLen))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(payload)))
	buf = append(buf, payload...)
	buf = binary.LittleEndian.AppendUint32(buf, crc32.Checksum(buf, crcTable))
	return buf, nil
}

// FromWire decodes bytes produced by ToWire, selecting the codec named in
// the header.
func FromWire(data []byte) (dump.Value, error) {
	if len(data) < 7+8+4 {
		return dump.Value{}, fmt.Errorf("codec: wire data truncated (%d bytes)", len(data))
	}
	if string(data[:4]) != wireMagic {
		return dump.Value{}, fmt.Errorf("codec: bad wire magic %q", data[:4])
	}
	if data[4] != wireVersion {
		return dump.Value{}, fmt.Errorf("codec: unsupported wire version %d", data[4])
	}

	body, sum := data[:len(data)-4], binary.LittleEndian.Uint32(data[len(data)-4:])
	if got := crc32.Checksum(body, crcTable); got != sum {
		return dump.Value{}, fmt.Errorf("codec: wire checksum mismatch: got %08x, want %08x", got, sum)
	}

	flags := data[5]
	nameLen := int(data[6])
	rest := body[7:]
	if len(rest) < nameLen+8 {
		return dump.Value{}, fmt.Errorf("codec: wire header truncated")
	}
	name := string(rest[:nameLen])
	rawLen := binary.LittleEndian.Uint32(rest[nameLen : nameLen+4])
	storedLen := binary.LittleEndian.Uint32(rest[nameLen+4 : nameLen+8])
	payload := rest[nameLen+8:]
	if len(payload) != int(storedLen) {
		return dump.Value{}, fmt.Errorf("codec: wire payload length %d, header says %d", len(payload), storedLen)
	}

	c, ok := ByName(name)
	if !ok {
		return dump.Value{}, fmt.Errorf("codec: unknown codec %q in wire header", name)
	}

	if flags&flagLZ4 != 0 {
		raw := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(payload, raw)
		if err != nil {
			return dump.Value{}, fmt.Errorf("codec: lz4 uncompress: %w", err)
		}
		if n != int(rawLen) {
			return dump.Value{}, fmt.Errorf("codec: lz4 uncompressed %d bytes, header says %d", n, rawLen)
		}
		payload = raw
	}

	return UnmarshalDump(c, payload)
}
