// Package session holds the authenticated identity and token between
// invocations and exposes login, register and logout operations.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Storage is a small persisted key-value store, the analogue of the browser
// localStorage the admin UI keeps its session under.
type Storage interface {
	Get(key string) (string, bool)
	// SetAll stores every pair as a single atomic replace, so related keys
	// (token and user) are never observed half-updated.
	SetAll(kv map[string]string) error
	Delete(keys ...string) error
}

// FileStorage persists keys as a JSON object in a single file. Writes
// replace the whole file atomically (temp file + rename), so the token and
// user keys are never observed half-updated.
type FileStorage struct {
	mu   sync.Mutex
	path string
	data map[string]string
}

// NewFileStorage opens (or lazily creates) the storage file at path.
// A corrupt file is treated as empty rather than failing startup.
func NewFileStorage(path string) (*FileStorage, error) {
	fs := &FileStorage{path: path, data: map[string]string{}}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return fs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &fs.data); err != nil {
			fs.data = map[string]string{}
		}
	}
	return fs, nil
}

func (fs *FileStorage) Get(key string) (string, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	v, ok := fs.data[key]
	return v, ok
}

func (fs *FileStorage) SetAll(kv map[string]string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for k, v := range kv {
		fs.data[k] = v
	}
	return fs.flushLocked()
}

func (fs *FileStorage) Delete(keys ...string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, k := range keys {
		delete(fs.data, k)
	}
	return fs.flushLocked()
}

func (fs *FileStorage) flushLocked() error {
	raw, err := json.MarshalIndent(fs.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session state: %w", err)
	}

	dir := filepath.Dir(fs.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("failed to create temp session file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()          //nolint:errcheck
		os.Remove(tmpName)   //nolint:errcheck
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName) //nolint:errcheck
		return fmt.Errorf("failed to close session file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName) //nolint:errcheck
		return fmt.Errorf("failed to set session file mode: %w", err)
	}
	if err := os.Rename(tmpName, fs.path); err != nil {
		os.Remove(tmpName) //nolint:errcheck
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

// MemStorage is an in-memory Storage for tests.
type MemStorage struct {
	mu   sync.Mutex
	data map[string]string
}

func NewMemStorage() *MemStorage {
	return &MemStorage{data: map[string]string{}}
}

func (ms *MemStorage) Get(key string) (string, bool) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	v, ok := ms.data[key]
	return v, ok
}

func (ms *MemStorage) SetAll(kv map[string]string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	for k, v := range kv {
		ms.data[k] = v
	}
	return nil
}

func (ms *MemStorage) Delete(keys ...string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	for _, k := range keys {
		delete(ms.data, k)
	}
	return nil
}
