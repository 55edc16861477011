package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
)

// FileStore keeps each blob as <dir>/<name>.json on an afero filesystem
type FileStore struct {
	fs  afero.Fs
	dir string
	mu  sync.Mutex
}

// NewFileStore creates a FileStore rooted at dir, creating it if needed
func NewFileStore(fs afero.Fs, dir string) (*FileStore, error) {
	if dir == "" {
		dir = "."
	}
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileStore{fs: fs, dir: dir}, nil
}

// NewOsFileStore creates a FileStore on the host filesystem
func NewOsFileStore(dir string) (*FileStore, error) {
	return NewFileStore(afero.NewOsFs(), dir)
}

func (f *FileStore) path(name string) string {
	return filepath.Join(f.dir, name+".json")
}

// Load reads the blob file
func (f *FileStore) Load(ctx context.Context, name string) ([]byte, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	payload, err := afero.ReadFile(f.fs, f.path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("failed to read blob %s: %w", name, err)
	}
	return payload, nil
}

// Save writes to a temp file and renames it over the blob file
func (f *FileStore) Save(ctx context.Context, name string, payload []byte) error {
	if err := validateName(name); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	target := f.path(name)
	tmp := target + ".tmp"

	if err := afero.WriteFile(f.fs, tmp, payload, 0644); err != nil {
		return fmt.Errorf("failed to write blob %s: %w", name, err)
	}
	if err := f.fs.Rename(tmp, target); err != nil {
		_ = f.fs.Remove(tmp)
		return fmt.Errorf("failed to replace blob %s: %w", name, err)
	}
	return nil
}

// Close is a no-op
func (f *FileStore) Close() error {
	return nil
}
