package kv

import (
	"fmt"
	"os"
	"sync"
)

// --------------------------------------------------------------------------
// Store
// --------------------------------------------------------------------------

// Store couples an engine with an on-disk snapshot file. All key-value
// operations delegate to the engine; the store only adds the snapshot
// lifecycle (seeding from disk on startup, atomic persistence on demand).
//
// Thread-safety: all methods are safe for concurrent use. Concurrent
// SaveSnapshot calls are serialized so they never race on the temp file.
type Store struct {
	engine Engine
	path   string
	saveMu sync.Mutex
}

// NewStore creates a store backed by a fresh engine from the factory and
// seeds it from the snapshot file at path. A missing file is not an error,
// the store simply starts empty; that is the normal first start. An empty
// path disables persistence entirely.
func NewStore(factory EngineFactory, path string) (*Store, error) {
	s := &Store{
		engine: factory(),
		path:   path,
	}

	if path == "" {
		return s, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to open snapshot file %s: %w", path, err)
	}
	defer f.Close()

	if err := s.engine.Load(f); err != nil {
		return nil, fmt.Errorf("failed to load snapshot file %s: %w", path, err)
	}
	return s, nil
}

// --------------------------------------------------------------------------
// Key-Value Operations
// --------------------------------------------------------------------------

// Set inserts or updates the entry for the given key.
func (s *Store) Set(key string, value []byte) {
	s.engine.Set(key, value)
}

// Get retrieves the value for an exact key.
func (s *Store) Get(key string) (value []byte, loaded bool) {
	return s.engine.Get(key)
}

// Delete removes the entry with the specified key and reports whether it
// existed.
func (s *Store) Delete(key string) (existed bool) {
	return s.engine.Delete(key)
}

// Len returns the number of entries currently stored.
func (s *Store) Len() int {
	return s.engine.Len()
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// SaveSnapshot writes the full current mapping to the snapshot file. The
// snapshot goes to a temporary file first and is renamed over the target
// after a successful sync, so a crash mid-save leaves the previous snapshot
// intact instead of a torn file. For a store without a path this is a no-op.
func (s *Store) SaveSnapshot() error {
	if s.path == "" {
		return nil
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create snapshot temp file: %w", err)
	}

	if err := s.engine.Save(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close snapshot temp file: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace snapshot file: %w", err)
	}
	return nil
}
