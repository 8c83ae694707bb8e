package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/bytedance/sonic"
)

// File persists entries as one JSON object on disk
type File struct {
	mu   sync.Mutex
	path string
}

// NewFile creates a file store at path. The parent directory is created on first write.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the backing file path
func (f *File) Path() string {
	return f.path
}

// Get returns the value for key
func (f *File) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.read()
	if err != nil {
		return "", false, err
	}
	v, ok := data[key]
	return v, ok, nil
}

// SetMany merges entries and rewrites the file atomically
func (f *File) SetMany(ctx context.Context, entries map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.read()
	if err != nil {
		// A corrupt document is replaced rather than merged
		data = make(map[string]string)
	}
	maps.Copy(data, entries)
	return f.write(data)
}

// Delete removes keys and rewrites the file atomically
func (f *File) Delete(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.read()
	if err != nil {
		data = make(map[string]string)
	}
	for _, k := range keys {
		delete(data, k)
	}
	return f.write(data)
}

func (f *File) read() (map[string]string, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}
	if len(raw) == 0 {
		return make(map[string]string), nil
	}

	data := make(map[string]string)
	if err := sonic.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode store: %w", err)
	}
	return data, nil
}

func (f *File) write(data map[string]string) error {
	encoded, err := sonic.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".preload-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(encoded); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replace store: %w", err)
	}
	return nil
}
