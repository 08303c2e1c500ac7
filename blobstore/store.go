// Package blobstore abstracts the storage of serialized snapshots. Snapshots
// are small, immutable, whole-blob reads and writes, so the interface deals
// in complete byte slices rather than streams.
package blobstore

import (
	"context"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// errors.Is(err, ErrNotFound). The default maps to os.ErrNotExist.
var ErrNotFound = os.ErrNotExist

// Store is an abstraction for reading and writing immutable blobs.
type Store interface {
	// Get reads a whole blob.
	Get(ctx context.Context, name string) ([]byte, error)

	// Put writes a whole blob atomically, replacing any existing blob of
	// the same name.
	Put(ctx context.Context, name string, data []byte) error

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns all blob names with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}
