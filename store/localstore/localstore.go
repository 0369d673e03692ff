// Package localstore is a local-disk reference implementation of
// store.Store, used by tests and cmd/shardctl. Keys map to files under a
// root directory; writes are staged to a uuid-named temp file and renamed
// into place, the way compactindexsized.Builder stages bucket data in a
// scratch directory before sealing the final index file.
package localstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/faithful-data/shardcodec/store"
)

// Store writes shard objects as plain files under root.
type Store struct {
	root string
}

var _ store.Store = (*Store)(nil)

// New returns a Store rooted at dir. dir is created if it does not exist.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("localstore: create root: %w", err)
	}
	return &Store{root: dir}, nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.root, key)
}

func (s *Store) Get(_ context.Context, key string, rng store.Range) ([]byte, error) {
	f, err := os.Open(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("localstore: open %q: %w", key, err)
	}
	defer f.Close()

	if rng.Full {
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("localstore: read %q: %w", key, err)
		}
		return data, nil
	}

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("localstore: stat %q: %w", key, err)
	}
	size := info.Size()

	offset, length := rng.Offset, rng.Length
	if rng.Tail {
		offset = size - rng.Length
		if offset < 0 {
			offset = 0
			length = size
		}
	}
	if offset > size {
		return nil, fmt.Errorf("localstore: range start %d past end %d of %q", offset, size, key)
	}
	if offset+length > size {
		length = size - offset
	}

	buf := make([]byte, length)
	if _, err := f.ReadAt(buf, offset); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("localstore: read range %q: %w", key, err)
	}
	return buf, nil
}

func (s *Store) Set(_ context.Context, key string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(s.path(key)), 0o755); err != nil {
		return fmt.Errorf("localstore: mkdir for %q: %w", key, err)
	}
	tmp := filepath.Join(s.root, ".tmp-"+uuid.NewString())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("localstore: stage %q: %w", key, err)
	}
	if err := os.Rename(tmp, s.path(key)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("localstore: commit %q: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("localstore: delete %q: %w", key, err)
	}
	return nil
}

func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(s.path(key))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("localstore: stat %q: %w", key, err)
}
