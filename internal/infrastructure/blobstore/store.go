// Package blobstore keeps fetched payloads on the local filesystem, one file
// per digest.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"BirbFetcher/internal/domain"
	"BirbFetcher/internal/ports"
)

// Store is a flat directory of blobs named by their uppercase hex digest.
type Store struct {
	root string
}

var _ ports.ContentStore = (*Store)(nil)

// Open creates root if it does not exist yet.
func Open(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("blob directory is empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, domain.Wrap(domain.ErrStorageIO, "create blob directory", err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, domain.Wrap(domain.ErrStorageIO, "resolve blob directory", err)
	}
	return &Store{root: abs}, nil
}

// Root returns the absolute blob directory.
func (s *Store) Root() string {
	return s.root
}

// Path returns where the blob for digest lives.
func (s *Store) Path(digest domain.Digest) string {
	return filepath.Join(s.root, digest.Hex())
}

func (s *Store) Exists(_ context.Context, digest domain.Digest) (bool, error) {
	_, err := os.Stat(s.Path(digest))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, domain.Wrap(domain.ErrStorageIO, "stat "+digest.Hex(), err)
	}
}

// Write stores payload under digest without ever exposing a partial file.
// The payload is staged in a temp file and hard-linked into place, so a
// concurrent writer of the same digest gets domain.ErrAlreadyExists instead
// of clobbering the first copy.
func (s *Store) Write(_ context.Context, digest domain.Digest, payload []byte) error {
	target := s.Path(digest)
	op := "write " + digest.Hex()

	tmp, err := os.CreateTemp(s.root, ".incoming-*")
	if err != nil {
		return domain.Wrap(domain.ErrStorageIO, op, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return domain.Wrap(domain.ErrStorageIO, op, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return domain.Wrap(domain.ErrStorageIO, op, err)
	}
	if err := tmp.Close(); err != nil {
		return domain.Wrap(domain.ErrStorageIO, op, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return domain.Wrap(domain.ErrStorageIO, op, err)
	}

	if err := os.Link(tmpPath, target); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return domain.Wrap(domain.ErrAlreadyExists, op, nil)
		}
		return domain.Wrap(domain.ErrStorageIO, op, err)
	}
	return nil
}

func (s *Store) Read(_ context.Context, digest domain.Digest) ([]byte, error) {
	payload, err := os.ReadFile(s.Path(digest))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.Wrap(domain.ErrNotFound, "read "+digest.Hex(), nil)
		}
		return nil, domain.Wrap(domain.ErrStorageIO, "read "+digest.Hex(), err)
	}
	return payload, nil
}
