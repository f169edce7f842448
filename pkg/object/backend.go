package object

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Backend is the storage layer underneath a Store. Keys are
// slash-separated relative paths derived from object hashes (for loose
// objects) or pack file names. Implementations must make Write atomic:
// a concurrent Read of the same key sees either nothing or the complete
// value, never a partial write.
type Backend interface {
	// Read returns the value for key, or an error wrapping fs.ErrNotExist
	// when the key is absent.
	Read(key string) ([]byte, error)
	// Write stores the value for key, creating parent directories as
	// needed.
	// Writing the same key twice is permitted; content-addressed keys
	// always carry identical values so last-writer-wins is safe.
	Write(key string, data []byte) error
	// Exists reports whether key is present without reading its value.
	Exists(key string) bool
	// List returns all keys with the given slash-separated prefix, in
	// lexicographic order.
	List(prefix string) ([]string, error)
}

// ---------------------------------------------------------------------------
// Filesystem backend
// ---------------------------------------------------------------------------

// FSBackend stores values as files under a root directory. Writes go
// through a temp file and rename so readers never observe partial
// content.
type FSBackend struct {
	root string
}

// NewFSBackend creates a filesystem backend rooted at dir. Directories
// are created lazily on first write.
func NewFSBackend(dir string) *FSBackend {
	return &FSBackend{root: dir}
}

func (b *FSBackend) keyPath(key string) string {
	return filepath.Join(b.root, filepath.FromSlash(key))
}

// Read returns the file contents for key.
func (b *FSBackend) Read(key string) ([]byte, error) {
	data, err := os.ReadFile(b.keyPath(key))
	if err != nil {
		return nil, fmt.Errorf("backend read %s: %w", key, err)
	}
	return data, nil
}

// Write stores data under key atomically via temp + rename.
func (b *FSBackend) Write(key string, data []byte) error {
	dest := b.keyPath(key)
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("backend write mkdir %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("backend write tmpfile %s: %w", key, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("backend write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("backend write close %s: %w", key, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("backend write rename %s: %w", key, err)
	}
	return nil
}

// Exists reports whether key is present.
func (b *FSBackend) Exists(key string) bool {
	st, err := os.Stat(b.keyPath(key))
	return err == nil && !st.IsDir()
}

// List walks the directory tree under prefix and returns all file keys.
func (b *FSBackend) List(prefix string) ([]string, error) {
	dir := b.keyPath(prefix)
	var keys []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(b.root, path)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("backend list %s: %w", prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

// ---------------------------------------------------------------------------
// In-memory backend
// ---------------------------------------------------------------------------

// MemBackend stores values in a map guarded by a RWMutex. Intended for
// tests and ephemeral stores.
type MemBackend struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemBackend creates an empty in-memory backend.
func NewMemBackend() *MemBackend {
	return &MemBackend{data: make(map[string][]byte)}
}

// Read returns a copy of the value for key.
func (b *MemBackend) Read(key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.data[key]
	if !ok {
		return nil, fmt.Errorf("backend read %s: %w", key, fs.ErrNotExist)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Write stores a copy of data under key.
func (b *MemBackend) Write(key string, data []byte) error {
	val := make([]byte, len(data))
	copy(val, data)
	b.mu.Lock()
	b.data[key] = val
	b.mu.Unlock()
	return nil
}

// Exists reports whether key is present.
func (b *MemBackend) Exists(key string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.data[key]
	return ok
}

// List returns all keys with the given prefix in sorted order.
func (b *MemBackend) List(prefix string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var keys []string
	for k := range b.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
