// Package sharded implements a key-value engine on top of a lock-striped
// concurrent map (puzpuzpuz/xsync). Writes to different keys proceed in
// parallel instead of queueing on one global lock, which helps write-heavy
// workloads on many cores. The trade-off sits in the snapshot scan: it is
// only weakly consistent with respect to concurrent writes, whereas the
// hashmap engine scans under its read lock.
package sharded

import (
	"bufio"
	"io"

	"github.com/puzpuzpuz/xsync/v3"

	"kvasir/lib/kv"
)

// snapshotBufferSize is the bufio buffer used for Save and Load.
const snapshotBufferSize = 1024 * 1024 // 1 MB

type shardedImpl struct {
	data *xsync.MapOf[string, []byte]
}

// NewShardedEngine creates a new engine backed by a lock-striped map.
func NewShardedEngine() kv.Engine {
	return &shardedImpl{
		data: xsync.NewMapOf[string, []byte](),
	}
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

// Set inserts or updates the entry for the given key.
//
// Thread-safety: only the bucket holding the key is locked, writes to other
// keys proceed in parallel. The value is copied first, the caller's buffer
// is never retained.
func (s *shardedImpl) Set(key string, value []byte) {
	// Copy value to prevent memory corruption through the caller's buffer
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	s.data.Store(key, valueCopy)
}

// Delete removes the entry with the specified key and reports whether it
// existed.
func (s *shardedImpl) Delete(key string) bool {
	_, existed := s.data.LoadAndDelete(key)
	return existed
}

// --------------------------------------------------------------------------
// Query Operations
// --------------------------------------------------------------------------

// Get retrieves the value for an exact key. The returned slice is a copy.
func (s *shardedImpl) Get(key string) ([]byte, bool) {
	value, loaded := s.data.Load(key)
	if !loaded {
		return nil, false
	}

	// Copy value so the caller never aliases the stored slice
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)
	return valueCopy, true
}

// Len returns the number of entries currently stored.
func (s *shardedImpl) Len() int {
	return s.data.Size()
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save writes every entry to w as a snapshot record stream.
//
// The scan uses Range, which is weakly consistent: entries stored or deleted
// while the scan runs may or may not appear in the snapshot. Every record
// that does appear is internally intact, values are never torn.
func (s *shardedImpl) Save(w io.Writer) error {
	type entry struct {
		key   string
		value []byte
	}

	// Collect the entries first so slow disk I/O never blocks a bucket
	entries := make([]entry, 0, s.data.Size())
	s.data.Range(func(key string, value []byte) bool {
		valueCopy := make([]byte, len(value))
		copy(valueCopy, value)
		entries = append(entries, entry{key: key, value: valueCopy})
		return true
	})

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
// Load is not atomic with respect to concurrent readers: the map is cleared
// and then refilled record by record. It is meant for startup, before the
// engine is shared.
func (s *shardedImpl) Load(r io.Reader) error {
	br := bufio.NewReaderSize(r, snapshotBufferSize)

	s.data.Clear()
	for {
		key, value, err := kv.ReadRecord(br)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		// Records come from our own allocation, no extra copy needed
		s.data.Store(key, value)
	}
}
