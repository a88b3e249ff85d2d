// Package kv provides the in-memory key-value layer of the server: the
// Engine interface its engines implement, and the Store type that couples an
// engine with an on-disk snapshot file.
//
// Two engine implementations exist:
//
//   - hashmap: a single map guarded by one reader/writer lock. Reads share
//     the lock, a write excludes all readers and writers for its duration.
//     This is the default engine; it is simple, correct and fast enough for
//     most workloads. Available in "kvasir/lib/kv/engine/hashmap".
//
//   - sharded: a lock-striped concurrent map (puzpuzpuz/xsync) for
//     write-heavy workloads where the single lock becomes a contention
//     point. The external contract is identical; only the snapshot scan is
//     weaker (see below). Available in "kvasir/lib/kv/engine/sharded".
//
// Both engines copy values on Set and on Get, so callers may reuse their
// buffers and may mutate returned slices freely, and no reader ever observes
// a half-written value.
//
// # Snapshot format
//
// A snapshot is a flat binary file of repeated records:
//
//	key length   uint64, little endian
//	key bytes
//	value length uint64, little endian
//	value bytes
//
// Records repeat until end of file. There is no magic number, no version
// field, no checksum and no record count, so the format is not
// self-describing; any change to it is a breaking change that cannot be
// detected from the file itself.
//
// Snapshots are best-effort and non-transactional: the hashmap engine scans
// under its read lock (writers wait for the scan), the sharded engine scans
// without any global lock, so entries written or deleted during the scan may
// or may not appear. Store.SaveSnapshot writes to a temporary file and
// renames it over the target, so an interrupted save never corrupts a
// previously valid snapshot.
package kv
