// Package persist saves and restores model snapshots through a blob store.
//
// A snapshot is one model dump plus the dumps of its groups. Snapshots are
// stored in a self-describing binary container: sections are encoded with a
// named codec, optionally zstd-compressed, and protected by a CRC32
// checksum. Containers written by older versions stay readable as long as
// the version byte is understood.
package persist

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"runtime"
	"time"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"

	"github.com/posterior/distributions/blobstore"
	"github.com/posterior/distributions/codec"
	"github.com/posterior/distributions/dump"
)

var (
	// ErrBadContainer is returned when a stored snapshot cannot be parsed.
	ErrBadContainer = errors.New("persist: malformed snapshot container")

	// ErrChecksum is returned when a stored snapshot fails checksum
	// verification.
	ErrChecksum = errors.New("persist: snapshot checksum mismatch")
)

const (
	containerMagic   = "PDSN"
	containerVersion = 1

	flagZstd = 1 << 0
)

// Snapshot is the persisted state of one model: its hyperparameter dump and
// the sufficient-statistic dumps of its groups.
type Snapshot struct {
	Family string
	Model  dump.Value
	Groups []dump.Value
}

// Option configures a Manager.
type Option func(*Manager)

// WithCodec sets the section codec. Defaults to codec.Default.
func WithCodec(c codec.Codec) Option {
	return func(m *Manager) { m.codec = c }
}

// WithCompression toggles zstd compression of the section payload.
// Defaults to on.
func WithCompression(enabled bool) Option {
	return func(m *Manager) { m.compress = enabled }
}

// WithLogger sets the logger. Defaults to NoopLogger.
func WithLogger(l *Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithMetrics sets the metrics collector. Defaults to
// NoopMetricsCollector.
func WithMetrics(mc MetricsCollector) Option {
	return func(m *Manager) { m.metrics = mc }
}

// Manager writes snapshots to and reads snapshots from a blob store.
// Thread-safe: all state is set at construction.
type Manager struct {
	store    blobstore.Store
	codec    codec.Codec
	compress bool
	logger   *Logger
	metrics  MetricsCollector
}

// NewManager creates a snapshot manager on top of the given store.
func NewManager(store blobstore.Store, optFns ...Option) *Manager {
	m := &Manager{
		store:    store,
		codec:    codec.Default,
		compress: true,
		logger:   NoopLogger(),
		metrics:  NoopMetricsCollector{},
	}
	for _, fn := range optFns {
		fn(m)
	}
	return m
}

// Save encodes the snapshot and writes it to the store under name.
func (m *Manager) Save(ctx context.Context, name string, snap Snapshot) error {
	start := time.Now()
	data, err := m.encode(ctx, snap)
	if err == nil {
		err = m.store.Put(ctx, name, data)
	}
	m.metrics.RecordSave(len(data), time.Since(start), err)
	m.logger.LogSave(ctx, name, len(snap.Groups), err)
	return err
}

// Load reads the snapshot stored under name.
func (m *Manager) Load(ctx context.Context, name string) (Snapshot, error) {
	start := time.Now()
	data, err := m.store.Get(ctx, name)
	var snap Snapshot
	if err == nil {
		snap, err = decode(data)
	}
	m.metrics.RecordLoad(len(data), time.Since(start), err)
	m.logger.LogLoad(ctx, name, len(snap.Groups), err)
	return snap, err
}

// Delete removes the snapshot stored under name.
func (m *Manager) Delete(ctx context.Context, name string) error {
	start := time.Now()
	err := m.store.Delete(ctx, name)
	m.metrics.RecordDelete(time.Since(start), err)
	m.logger.LogDelete(ctx, name, err)
	return err
}

// List returns the names of stored snapshots with the given prefix.
func (m *Manager) List(ctx context.Context, prefix string) ([]string, error) {
	return m.store.List(ctx, prefix)
}

// encode builds the container. Sections are marshaled in parallel since
// group dumps are independent.
func (m *Manager) encode(ctx context.Context, snap Snapshot) ([]byte, error) {
	sections := make([][]byte, 1+len(snap.Groups))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	g.Go(func() error {
		data, err := codec.MarshalDump(m.codec, snap.Model)
		sections[0] = data
		return err
	})
	for i, gd := range snap.Groups {
		g.Go(func() error {
			data, err := codec.MarshalDump(m.codec, gd)
			sections[1+i] = data
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var payload bytes.Buffer
	writeString16(&payload, snap.Family)
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(sections)))
	payload.Write(n[:])
	for _, s := range sections {
		binary.BigEndian.PutUint32(n[:], uint32(len(s)))
		payload.Write(n[:])
		payload.Write(s)
	}

	flags := byte(0)
	body := payload.Bytes()
	if m.compress {
		flags |= flagZstd
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		body = enc.EncodeAll(body, nil)
		enc.Close()
	}

	var out bytes.Buffer
	out.WriteString(containerMagic)
	out.WriteByte(containerVersion)
	out.WriteByte(flags)
	codecName := m.codec.Name()
	if len(codecName) > 255 {
		return nil, fmt.Errorf("%w: codec name too long", ErrBadContainer)
	}
	out.WriteByte(byte(len(codecName)))
	out.WriteString(codecName)
	out.Write(body)

	var crc [4]byte
	binary.BigEndian.PutUint32(crc[:], crc32.ChecksumIEEE(out.Bytes()))
	out.Write(crc[:])
	return out.Bytes(), nil
}

func decode(data []byte) (Snapshot, error) {
	var snap Snapshot
	if len(data) < len(containerMagic)+3+4 {
		return snap, fmt.Errorf("%w: truncated", ErrBadContainer)
	}
	body, trailer := data[:len(data)-4], data[len(data)-4:]
	if crc32.ChecksumIEEE(body) != binary.BigEndian.Uint32(trailer) {
		return snap, ErrChecksum
	}
	if string(body[:4]) != containerMagic {
		return snap, fmt.Errorf("%w: bad magic", ErrBadContainer)
	}
	if body[4] != containerVersion {
		return snap, fmt.Errorf("%w: unsupported version %d", ErrBadContainer, body[4])
	}
	flags := body[5]
	nameLen := int(body[6])
	rest := body[7:]
	if len(rest) < nameLen {
		return snap, fmt.Errorf("%w: truncated codec name", ErrBadContainer)
	}
	c, ok := codec.ByName(string(rest[:nameLen]))
	if !ok {
		return snap, fmt.Errorf("%w: unknown codec %q", ErrBadContainer, rest[:nameLen])
	}
	payload := rest[nameLen:]

	if flags&flagZstd != 0 {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return snap, err
		}
		payload, err = dec.DecodeAll(payload, nil)
		dec.Close()
		if err != nil {
			return snap, fmt.Errorf("%w: %v", ErrBadContainer, err)
		}
	}

	family, payload, err := readString16(payload)
	if err != nil {
		return snap, err
	}
	snap.Family = family
	if len(payload) < 4 {
		return snap, fmt.Errorf("%w: truncated section count", ErrBadContainer)
	}
	count := binary.BigEndian.Uint32(payload)
	payload = payload[4:]
	if count == 0 {
		return snap, fmt.Errorf("%w: no sections", ErrBadContainer)
	}

	sections := make([][]byte, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(payload) < 4 {
			return snap, fmt.Errorf("%w: truncated section header", ErrBadContainer)
		}
		n := binary.BigEndian.Uint32(payload)
		payload = payload[4:]
		if uint32(len(payload)) < n {
			return snap, fmt.Errorf("%w: truncated section", ErrBadContainer)
		}
		sections = append(sections, payload[:n])
		payload = payload[n:]
	}
	if len(payload) != 0 {
		return snap, fmt.Errorf("%w: trailing bytes", ErrBadContainer)
	}

	snap.Model, err = codec.UnmarshalDump(c, sections[0])
	if err != nil {
		return snap, err
	}
	snap.Groups = make([]dump.Value, len(sections)-1)
	for i, s := range sections[1:] {
		snap.Groups[i], err = codec.UnmarshalDump(c, s)
		if err != nil {
			return snap, err
		}
	}
	return snap, nil
}

func writeString16(buf *bytes.Buffer, s string) {
	var n [2]byte
	binary.BigEndian.PutUint16(n[:], uint16(len(s)))
	buf.Write(n[:])
	buf.WriteString(s)
}

func readString16(data []byte) (string, []byte, error) {
	if len(data) < 2 {
		return "", nil, fmt.Errorf("%w: truncated string", ErrBadContainer)
	}
	n := int(binary.BigEndian.Uint16(data))
	data = data[2:]
	if len(data) < n {
		return "", nil, fmt.Errorf("%w: truncated string", ErrBadContainer)
	}
	return string(data[:n]), data[n:], nil
}
