// Package store defines the key-value store contract the sharding codec
// consumes (spec §6 "Store contract (consumed from external collaborator)").
// The codec treats the store as opaque; this package only states the
// interface. The local-disk reference implementation used by tests and
// cmd/shardctl lives in store/localstore.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key does not exist. Per spec §7
// it is not a codec-level error: the sharding codec interprets it as an
// all-empty shard on read and a fresh shard on partial write.
var ErrNotFound = errors.New("store: key not found")

// Range selects a byte range of a stored object. Following spec §6, it
// accepts both head and tail forms:
//   - Head(n): bytes [0, n)
//   - Tail(n): the last n bytes
//
// Only a Range with Full set (see FullRange) means "the whole object"; a
// zero-value Range is a head range of length 0.
type Range struct {
	// Offset is the start of a head range. Ignored when Tail is set.
	Offset int64
	// Length is the number of bytes to read. For a head range it is the
	// count from Offset; for a tail range it is the count from the end.
	Length int64
	// Tail selects the last Length bytes of the object instead of
	// [Offset, Offset+Length).
	Tail bool
	// Full, when true, means "read the whole object"; Offset/Length/Tail
	// are ignored.
	Full bool
}

// FullRange reads an entire object.
func FullRange() Range { return Range{Full: true} }

// HeadRange reads the first n bytes of an object.
func HeadRange(n int64) Range { return Range{Offset: 0, Length: n} }

// TailRange reads the last n bytes of an object.
func TailRange(n int64) Range { return Range{Length: n, Tail: true} }

// Store is the asynchronous key-value store the sharding codec requires
// (spec §6). A single shard operation targets a single key; the store is
// assumed thread-safe for concurrent operations on distinct keys (spec §5
// "Shared resources"), and concurrent operations on the same key are not
// required to be serialized by the store — callers serialize writes to a
// key themselves (spec §4.3 encode_partial's load-merge-write protocol).
type Store interface {
	// Get fetches rng of key. It returns ErrNotFound if the key is
	// absent. A full Get (rng.Full) must return the entire object.
	Get(ctx context.Context, key string, rng Range) ([]byte, error)
	// Set writes the full contents of key, replacing any prior value.
	Set(ctx context.Context, key string, data []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)
}
