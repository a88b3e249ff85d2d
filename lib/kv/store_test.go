package kv_test

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"kvasir/lib/kv"
	"kvasir/lib/kv/engine/hashmap"
)

func newTestStore(t *testing.T, path string) *kv.Store {
	t.Helper()

	store, err := kv.NewStore(hashmap.NewHashmapEngine, path)
	if err != nil {
		t.Fatalf("Unexpected error creating store: %v", err)
	}
	return store
}

func TestStoreStartsEmptyWithoutSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kvstore.dat")

	// A missing snapshot file is the normal first start, not an error
	store := newTestStore(t, path)

	if n := store.Len(); n != 0 {
		t.Errorf("Expected a fresh store to be empty, got %d entries", n)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Expected no snapshot file to be created on startup")
	}
}

func TestStoreSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kvstore.dat")

	store := newTestStore(t, path)
	store.Set("foo", []byte("bar"))
	store.Set("empty-value-key", []byte{})
	store.Set("binary\r\nkey", []byte("binary\r\nvalue\x00"))

	if err := store.SaveSnapshot(); err != nil {
		t.Fatalf("Unexpected error during SaveSnapshot: %v", err)
	}

	// The temp file must not linger after a successful save
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("Expected the snapshot temp file to be renamed away")
	}

	restored := newTestStore(t, path)

	if restored.Len() != store.Len() {
		t.Errorf("Expected restored store to hold %d entries, got %d", store.Len(), restored.Len())
	}

	value, exists := restored.Get("foo")
	if !exists || !bytes.Equal(value, []byte("bar")) {
		t.Errorf("Expected key foo to restore to bar, got %q (exists=%v)", value, exists)
	}

	value, exists = restored.Get("empty-value-key")
	if !exists || len(value) != 0 {
		t.Errorf("Expected empty value to survive the round trip, got %q (exists=%v)", value, exists)
	}

	value, exists = restored.Get("binary\r\nkey")
	if !exists || !bytes.Equal(value, []byte("binary\r\nvalue\x00")) {
		t.Errorf("Expected binary key to survive the round trip, got %q (exists=%v)", value, exists)
	}
}

func TestStoreSaveReplacesSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kvstore.dat")

	store := newTestStore(t, path)
	store.Set("generation", []byte("first"))
	if err := store.SaveSnapshot(); err != nil {
		t.Fatalf("Unexpected error during SaveSnapshot: %v", err)
	}

	store.Set("generation", []byte("second"))
	store.Delete("generation-old")
	if err := store.SaveSnapshot(); err != nil {
		t.Fatalf("Unexpected error during SaveSnapshot: %v", err)
	}

	restored := newTestStore(t, path)

	value, exists := restored.Get("generation")
	if !exists || !bytes.Equal(value, []byte("second")) {
		t.Errorf("Expected the later snapshot to win, got %q (exists=%v)", value, exists)
	}
}

func TestStoreWithoutPath(t *testing.T) {
	store := newTestStore(t, "")

	store.Set("foo", []byte("bar"))

	// Persistence is disabled, SaveSnapshot must be a silent no-op
	if err := store.SaveSnapshot(); err != nil {
		t.Errorf("Expected SaveSnapshot without a path to be a no-op, got %v", err)
	}

	value, exists := store.Get("foo")
	if !exists || !bytes.Equal(value, []byte("bar")) {
		t.Errorf("Expected store without persistence to still serve reads")
	}
}

func TestStoreRejectsTornSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kvstore.dat")

	// Build a valid snapshot, then cut it mid-record
	store := newTestStore(t, path)
	store.Set("foo", []byte("a value long enough to cut"))
	if err := store.SaveSnapshot(); err != nil {
		t.Fatalf("Unexpected error during SaveSnapshot: %v", err)
	}

	encoded, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Unexpected error reading snapshot: %v", err)
	}
	if err := os.WriteFile(path, encoded[:len(encoded)-5], 0644); err != nil {
		t.Fatalf("Unexpected error truncating snapshot: %v", err)
	}

	_, err = kv.NewStore(hashmap.NewHashmapEngine, path)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Expected a torn snapshot to fail the load, got %v", err)
	}
}

func TestStoreLoadsEmptySnapshotFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kvstore.dat")

	// An empty file is a snapshot of an empty store
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatalf("Unexpected error creating empty snapshot: %v", err)
	}

	store := newTestStore(t, path)
	if n := store.Len(); n != 0 {
		t.Errorf("Expected an empty snapshot to load as an empty store, got %d entries", n)
	}
}
