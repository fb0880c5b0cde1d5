package chunk

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FSStore is a plain local-directory Store implementation: one file per
// key, grounded on pkg/archive.FsArchive's "one file per record" layout
// (there, meta.json/data.json under a job's directory; here, one flat
// file per chunk key, since a chunk has no further internal structure to
// split across files).
type FSStore struct {
	dir string
}

// OpenFSStore opens (creating if absent) a directory-backed store rooted
// at dir.
func OpenFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o777); err != nil {
		return nil, fmt.Errorf("chunk: creating fs store dir %q: %w", dir, err)
	}
	return &FSStore{dir: dir}, nil
}

func (s *FSStore) path(key string) string {
	return filepath.Join(s.dir, key)
}

func (s *FSStore) TryGet(_ context.Context, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("chunk: reading %q: %w", key, err)
	}
	return data, true, nil
}

func (s *FSStore) Put(_ context.Context, key string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(s.path(key)), 0o777); err != nil {
		return fmt.Errorf("chunk: preparing directory for %q: %w", key, err)
	}
	if err := os.WriteFile(s.path(key), data, 0o666); err != nil {
		return fmt.Errorf("chunk: writing %q: %w", key, err)
	}
	return nil
}

func (s *FSStore) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("chunk: statting %q: %w", key, err)
	}
	return true, nil
}
