package kv

import "io"

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

// Implementation is an enum for the different engine implementations
type Implementation string

const (
	ImplHashmap Implementation = "hashmap"
	ImplSharded Implementation = "sharded"
)

// EngineFactory creates a new engine instance. It decouples engine
// construction from the packages that consume engines, so the store, the
// server and the test harness never import a concrete implementation.
type EngineFactory func() Engine

// --------------------------------------------------------------------------
// Engine Interface
// --------------------------------------------------------------------------

// Engine defines an interface for in-memory key-value engine implementations.
// Keys are arbitrary strings, values are arbitrary byte slices; neither is
// interpreted by the engine.
// All operations are thread-safe. An engine must copy values on Set and on
// Get so that callers never share a buffer with the engine, and a concurrent
// read during a write observes either the old or the new value, never a mix.
type Engine interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Set inserts or updates the entry for the given key.
	// If the key already exists, the old value is overwritten.
	// The engine stores a private copy of value, the caller may reuse the
	// buffer afterwards.
	Set(key string, value []byte)

	// Delete removes the entry with the specified key.
	// The boolean return value indicates whether the key existed; deleting
	// an absent key is a no-op that returns false.
	Delete(key string) (existed bool)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get retrieves the value for an exact key.
	// The boolean return value indicates whether a value for the key was
	// found. The returned slice is a copy, the caller may mutate it freely.
	Get(key string) (value []byte, loaded bool)

	// Len returns the number of entries currently stored.
	Len() (n int)

	// --------------------------------------------------------------------------
	// Persistence Operations
	// --------------------------------------------------------------------------

	// Save writes every entry to the provided io.Writer as a stream of
	// snapshot records (see WriteRecord). The scan is best-effort with
	// respect to concurrent writes and non-transactional across keys.
	Save(w io.Writer) (err error)

	// Load replaces the engine contents with the record stream provided by
	// the io.Reader. Entries present before the call are discarded.
	Load(r io.Reader) (err error)
}
