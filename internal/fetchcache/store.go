package fetchcache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Store persists cached image bytes by content key.
type Store interface {
	// Get returns the bytes stored under key and whether they were found.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Put stores data under key. A reader never observes a partial write.
	Put(ctx context.Context, key string, data []byte) error
}

// FSStore keeps one file per key in a directory.
type FSStore struct {
	dir string
}

// NewFSStore creates the cache directory if needed.
func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FSStore{dir: dir}, nil
}

// Dir returns the directory backing the store.
func (s *FSStore) Dir() string { return s.dir }

func (s *FSStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Put writes to a temporary file in the same directory and renames it into
// place, so concurrent writers to distinct keys never see each other's data.
func (s *FSStore) Put(_ context.Context, key string, data []byte) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, "."+key+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p)
}

func (s *FSStore) path(key string) (string, error) {
	if key == "" || filepath.Base(key) != key || key == "." || key == ".." {
		return "", fmt.Errorf("fetchcache: invalid key %q", key)
	}
	return filepath.Join(s.dir, key), nil
}
