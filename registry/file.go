package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/hupe1980/debatemesh/core"
)

// FileHandleStore persists handles as a JSON object in a single file so
// sessions survive process restarts. The whole file is rewritten on every
// mutation; handle maps are small, so this stays cheap.
type FileHandleStore struct {
	mu      sync.Mutex
	path    string
	handles map[string]string
}

// NewFileHandleStore loads (or lazily creates) the store at path. An
// unreadable or malformed file is treated as empty: prior sessions are
// dropped and recreated on demand.
func NewFileHandleStore(path string) (*FileHandleStore, error) {
	if path == "" {
		return nil, fmt.Errorf("handle store path must not be empty")
	}
	s := &FileHandleStore{path: path, handles: make(map[string]string)}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read handle store %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, &s.handles); err != nil {
		// Malformed file: start over rather than refusing to run.
		s.handles = make(map[string]string)
	}
	return s, nil
}

// Get returns the stored handle for a key.
func (s *FileHandleStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.handles[key]
	return h, ok
}

// Put stores a handle and rewrites the file.
func (s *FileHandleStore) Put(key, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handles[key] = handle
	return s.saveLocked()
}

// Delete removes a key and rewrites the file.
func (s *FileHandleStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handles, key)
	return s.saveLocked()
}

func (s *FileHandleStore) saveLocked() error {
	raw, err := json.MarshalIndent(s.handles, "", "  ")
	if err != nil {
		return fmt.Errorf("encode handle store: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		return fmt.Errorf("write handle store %s: %w", s.path, err)
	}
	return nil
}

var _ core.HandleStore = (*FileHandleStore)(nil)
