package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// JSONFile stores a single value as indented JSON. Writes go through a
// temporary file and a rename so readers never see a partial document.
type JSONFile[T any] struct {
	path string
	mu   sync.Mutex
}

// NewJSONFile returns a handle for path. The file is not touched until Load
// or Save is called.
func NewJSONFile[T any](path string) *JSONFile[T] {
	return &JSONFile[T]{path: path}
}

// Path returns the backing file path.
func (f *JSONFile[T]) Path() string { return f.path }

// Load decodes the file. A missing file returns an error wrapping
// os.ErrNotExist so callers can fall back to a default value.
func (f *JSONFile[T]) Load() (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var value T
	data, err := os.ReadFile(f.path)
	if err != nil {
		return value, fmt.Errorf("read %s: %w", f.path, err)
	}
	if err := json.Unmarshal(data, &value); err != nil {
		return value, fmt.Errorf("decode %s: %w", f.path, err)
	}
	return value, nil
}

// Save replaces the file contents with value.
func (f *JSONFile[T]) Save(value T) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", f.path, err)
	}
	return nil
}

// Exists reports whether the backing file is present.
func (f *JSONFile[T]) Exists() bool {
	_, err := os.Stat(f.path)
	return !errors.Is(err, os.ErrNotExist)
}
