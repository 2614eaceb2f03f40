// ABOUTME: File-backed storage slot: one JSON file per key under a directory.
// ABOUTME: Writes go through temp file, fsync and rename so readers never see partial data.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStorage stores each key as <dir>/<key>.json.
type FileStorage struct {
	dir string
}

// NewFileStorage returns a FileStorage rooted at dir. The directory is
// created on first write.
func NewFileStorage(dir string) *FileStorage {
	return &FileStorage{dir: dir}
}

func (f *FileStorage) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(f.dir, key+".json"), nil
}

// Get reads the value stored under key.
func (f *FileStorage) Get(key string) (string, bool, error) {
	p, err := f.path(key)
	if err != nil {
		return "", false, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read slot %s: %w", key, err)
	}
	return string(data), true, nil
}

// Set atomically replaces the value stored under key.
func (f *FileStorage) Set(key, value string) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}

	tmpPath := p + ".tmp"
	tmpFile, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp slot: %w", err)
	}
	if _, err := tmpFile.WriteString(value); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write slot data: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("fsync slot: %w", err)
	}
	_ = tmpFile.Close()

	if err := os.Rename(tmpPath, p); err != nil {
		return fmt.Errorf("rename slot: %w", err)
	}
	return nil
}
