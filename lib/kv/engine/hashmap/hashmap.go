// Package hashmap implements the default key-value engine: one map guarded
// by a single reader/writer lock. Reads run concurrently under the shared
// lock, a write briefly excludes everything. The simplicity makes the
// consistency story easy to reason about, and for read-heavy workloads the
// shared lock is rarely the bottleneck.
package hashmap

import (
	"bufio"
	"io"
	"sync"

	"kvasir/lib/kv"
)

// snapshotBufferSize is the bufio buffer used for Save and Load.
const snapshotBufferSize = 1024 * 1024 // 1 MB

type hashmapImpl struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewHashmapEngine creates a new engine backed by a single locked map.
func NewHashmapEngine() kv.Engine {
	return &hashmapImpl{
		data: make(map[string][]byte),
	}
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

// Set inserts or updates the entry for the given key.
//
// Thread-safety: takes the exclusive lock for the duration of the map write.
// The value is copied before the lock is taken, so the caller's buffer is
// never retained.
func (h *hashmapImpl) Set(key string, value []byte) {
	// Copy value to prevent memory corruption through the caller's buffer
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	h.mu.Lock()
	h.data[key] = valueCopy
	h.mu.Unlock()
}

// Delete removes the entry with the specified key and reports whether it
// existed.
//
// Thread-safety: takes the exclusive lock for the duration of the map write.
func (h *hashmapImpl) Delete(key string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	_, existed := h.data[key]
	if existed {
		delete(h.data, key)
	}
	return existed
}

// --------------------------------------------------------------------------
// Query Operations
// --------------------------------------------------------------------------

// Get retrieves the value for an exact key.
//
// Thread-safety: takes the shared lock, so any number of reads can run
// concurrently. The returned slice is a copy made under the lock.
func (h *hashmapImpl) Get(key string) ([]byte, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	value, loaded := h.data[key]
	if !loaded {
		return nil, false
	}

	// Copy value so the caller never aliases the stored slice
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)
	return valueCopy, true
}

// Len returns the number of entries currently stored.
func (h *hashmapImpl) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.data)
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save writes every entry to w as a snapshot record stream.
//
// Thread-safety: the scan holds the shared lock for its full duration, so
// the snapshot is a point-in-time view; writers queue up behind it. The
// actual disk I/O happens after the lock is released.
func (h *hashmapImpl) Save(w io.Writer) error {
	type entry struct {
		key   string
		value []byte
	}

	// Collect a consistent snapshot under the read lock
	h.mu.RLock()
	entries := make([]entry, 0, len(h.data))
	for key, value := range h.data {
		valueCopy := make([]byte, len(value))
		copy(valueCopy, value)
		entries = append(entries, entry{key: key, value: valueCopy})
	}
	h.mu.RUnlock()

	// Write the records outside the lock
	bw := bufio.NewWriterSize(w, snapshotBufferSize)
	for _, e := range entries {
		if err := kv.WriteRecord(bw, e.key, e.value); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Load replaces the engine contents with the record stream from r.
//
// Thread-safety: the replacement map is built without any lock and swapped
// in under the exclusive lock, so concurrent readers see either the old or
// the new state.
func (h *hashmapImpl) Load(r io.Reader) error {
	br := bufio.NewReaderSize(r, snapshotBufferSize)

	fresh := make(map[string][]byte)
	for {
		key, value, err := kv.ReadRecord(br)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		fresh[key] = value
	}

	h.mu.Lock()
	h.data = fresh
	h.mu.Unlock()
	return nil
}
