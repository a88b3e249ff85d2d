package testing

import (
	"bytes"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"kvasir/lib/kv"
)

// RunEngineTests runs the conformance test suite for an engine implementation.
func RunEngineTests(t *testing.T, name string, factory kv.EngineFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("Len", func(t *testing.T) {
			testLen(t, factory())
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory())
		})

		t.Run("ConcurrentReadWrite", func(t *testing.T) {
			testConcurrentReadWrite(t, factory())
		})

		t.Run("ParallelUsage", func(t *testing.T) {
			testParallelUsage(t, factory())
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("LoadReplaces", func(t *testing.T) {
			testLoadReplaces(t, factory)
		})
	})
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, engine kv.Engine) {
	testKey := "test-key"
	testValue1 := []byte("test-value1")
	testValue2 := []byte("test-value2")

	engine.Set(testKey, testValue1)

	result, exists := engine.Get(testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}

	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}

	engine.Set(testKey, testValue2)

	result, exists = engine.Get(testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}

	if !bytes.Equal(result, testValue2) {
		t.Errorf("Expected value %s, got %s", testValue2, result)
	}

	_, exists = engine.Get("nonexistent-key")
	if exists {
		t.Errorf("Expected nonexistent key to return exists=false")
	}

	// Get must hand out a copy, not a reference to the stored value
	retrievedValue, _ := engine.Get(testKey)
	retrievedValue[0] = 'X'

	originalValue, _ := engine.Get(testKey)
	if bytes.Equal(retrievedValue, originalValue) {
		t.Errorf("Get should return a copy, not a reference to the stored value")
	}

	// Set must copy the value, not retain the caller's buffer
	buffer := []byte("buffered-value")
	engine.Set(testKey, buffer)
	buffer[0] = 'X'

	result, _ = engine.Get(testKey)
	if !bytes.Equal(result, []byte("buffered-value")) {
		t.Errorf("Set should store a copy, mutating the caller's buffer changed the stored value to %s", result)
	}
}

func testDelete(t *testing.T, engine kv.Engine) {
	testKey := "delete-test-key"
	testValue := []byte("delete-test-value")

	engine.Set(testKey, testValue)

	_, exists := engine.Get(testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}

	if !engine.Delete(testKey) {
		t.Errorf("Expected Delete to report true for an existing key")
	}

	_, exists = engine.Get(testKey)
	if exists {
		t.Errorf("Expected key %s to not exist after Delete", testKey)
	}

	if engine.Delete(testKey) {
		t.Errorf("Expected Delete to report false for an already deleted key")
	}

	if engine.Delete("nonexistent-key") {
		t.Errorf("Expected Delete to report false for a nonexistent key")
	}
}

func testLen(t *testing.T, engine kv.Engine) {
	if n := engine.Len(); n != 0 {
		t.Errorf("Expected empty engine to have length 0, got %d", n)
	}

	numKeys := 100
	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("len-test-key-%d", i)
		engine.Set(key, []byte("len-test-value"))
	}

	if n := engine.Len(); n != numKeys {
		t.Errorf("Expected length %d after inserts, got %d", numKeys, n)
	}

	// Overwriting must not grow the engine
	engine.Set("len-test-key-0", []byte("other-value"))
	if n := engine.Len(); n != numKeys {
		t.Errorf("Expected length %d after overwrite, got %d", numKeys, n)
	}

	engine.Delete("len-test-key-1")
	if n := engine.Len(); n != numKeys-1 {
		t.Errorf("Expected length %d after delete, got %d", numKeys-1, n)
	}
}

func testEdgeCases(t *testing.T, engine kv.Engine) {
	emptyKey := ""
	emptyKeyValue := []byte("value for empty key")

	engine.Set(emptyKey, emptyKeyValue)

	result, exists := engine.Get(emptyKey)
	if !exists {
		t.Errorf("Empty key not found after Set")
	} else if !bytes.Equal(result, emptyKeyValue) {
		t.Errorf("Value mismatch for empty key")
	}

	emptyValueKey := "empty-value-key"
	engine.Set(emptyValueKey, []byte{})

	result, exists = engine.Get(emptyValueKey)
	if !exists {
		t.Errorf("Key for empty value not found after Set")
	} else if len(result) != 0 {
		t.Errorf("Empty value resulted in non-empty value: %v", result)
	}

	nilValueKey := "nil-value-key"
	engine.Set(nilValueKey, nil)

	result, exists = engine.Get(nilValueKey)
	if !exists {
		t.Errorf("Key for nil value not found after Set")
	} else if len(result) != 0 {
		t.Errorf("Nil value resulted in non-empty value: %v", result)
	}

	// Keys and values are raw bytes, including CRLF and NUL
	binaryKey := "binary\r\nkey\x00"
	binaryValue := []byte("binary\r\nvalue\x00with\x00nulls")

	engine.Set(binaryKey, binaryValue)

	result, exists = engine.Get(binaryKey)
	if !exists {
		t.Errorf("Binary key not found after Set")
	} else if !bytes.Equal(result, binaryValue) {
		t.Errorf("Value mismatch for binary key")
	}

	largeValueKey := "large-value-key"
	largeValue := make([]byte, 1024*1024)
	for i := range largeValue {
		largeValue[i] = byte(i % 256)
	}

	engine.Set(largeValueKey, largeValue)

	result, exists = engine.Get(largeValueKey)
	if !exists {
		t.Errorf("Key for large value not found after Set")
	} else if !bytes.Equal(result, largeValue) {
		t.Errorf("Value mismatch for large value")
	}
}

func testConcurrentReadWrite(t *testing.T, engine kv.Engine) {
	const key = "contended-key"
	valueA := bytes.Repeat([]byte("a"), 128)
	valueB := bytes.Repeat([]byte("b"), 128)

	engine.Set(key, valueA)

	var (
		wg         sync.WaitGroup
		errorCount int32
	)
	stop := make(chan struct{})

	// Readers must observe either value in full, never a mix of the two
	numReaders := 4
	wg.Add(numReaders)
	for r := 0; r < numReaders; r++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}

				value, exists := engine.Get(key)
				if !exists {
					atomic.AddInt32(&errorCount, 1)
					continue
				}
				if !bytes.Equal(value, valueA) && !bytes.Equal(value, valueB) {
					atomic.AddInt32(&errorCount, 1)
				}
			}
		}()
	}

	numWrites := 10_000
	for i := 0; i < numWrites; i++ {
		if i%2 == 0 {
			engine.Set(key, valueB)
		} else {
			engine.Set(key, valueA)
		}
	}

	close(stop)
	wg.Wait()

	if n := atomic.LoadInt32(&errorCount); n > 0 {
		t.Errorf("Observed %d torn or missing reads during concurrent writes", n)
	}
}

func testParallelUsage(t *testing.T, engine kv.Engine) {
	numWorkers := 8
	keysPerWorker := 500

	var wg sync.WaitGroup
	wg.Add(numWorkers)

	// Each worker owns a private key range, so the final state is
	// deterministic while the engine still sees concurrent writes
	for w := 0; w < numWorkers; w++ {
		go func(workerId int) {
			defer wg.Done()

			for i := 0; i < keysPerWorker; i++ {
				key := fmt.Sprintf("worker-%d-key-%d", workerId, i)

				engine.Set(key, []byte(fmt.Sprintf("value-%d", i)))
				engine.Set(key, []byte(fmt.Sprintf("final-value-%d", i)))
				if i%3 == 0 {
					engine.Delete(key)
				}
			}
		}(w)
	}

	wg.Wait()

	for w := 0; w < numWorkers; w++ {
		for i := 0; i < keysPerWorker; i++ {
			key := fmt.Sprintf("worker-%d-key-%d", w, i)
			value, exists := engine.Get(key)

			if i%3 == 0 {
				if exists {
					t.Errorf("Key %s should have been deleted", key)
				}
				continue
			}

			if !exists {
				t.Errorf("Key %s not found after parallel usage", key)
				continue
			}

			expectedValue := []byte(fmt.Sprintf("final-value-%d", i))
			if !bytes.Equal(value, expectedValue) {
				t.Errorf("Value mismatch for key %s: expected %s, got %s", key, expectedValue, value)
			}
		}
	}
}

func testSaveLoad(t *testing.T, factory kv.EngineFactory) {
	engine := factory()
	engine2 := factory()

	numEntries := 1000
	originalKeys := make([]string, numEntries)
	originalValues := make([][]byte, numEntries)

	for i := 0; i < numEntries; i++ {
		key := fmt.Sprintf("save-load-test-key-%d", i)
		value := []byte(fmt.Sprintf("save-load-test-value-%d", i))
		originalKeys[i] = key
		originalValues[i] = value

		engine.Set(key, value)
	}

	// Entries the record format has to be careful with
	engine.Set("", []byte("value for empty key"))
	engine.Set("empty-value-key", []byte{})
	engine.Set("binary\r\nkey", []byte("binary\r\nvalue\x00"))

	var buf bytes.Buffer
	if err := engine.Save(&buf); err != nil {
		t.Errorf("Unexpected error during Save: %v", err)
	}

	if err := engine2.Load(&buf); err != nil {
		t.Errorf("Unexpected error during Load: %v", err)
	}

	if engine.Len() != engine2.Len() {
		t.Errorf("Expected loaded engine to hold %d entries, got %d", engine.Len(), engine2.Len())
	}

	for i := 0; i < numEntries; i++ {
		key := originalKeys[i]
		expectedValue := originalValues[i]

		actualValue, exists := engine2.Get(key)
		if !exists {
			t.Errorf("Key %s not found after Load", key)
			continue
		}

		if !bytes.Equal(actualValue, expectedValue) {
			t.Errorf("Value mismatch for key %s: expected %s, got %s", key, expectedValue, actualValue)
		}
	}

	value, exists := engine2.Get("")
	if !exists || !bytes.Equal(value, []byte("value for empty key")) {
		t.Errorf("Empty key did not survive the save/load round trip")
	}

	value, exists = engine2.Get("empty-value-key")
	if !exists || len(value) != 0 {
		t.Errorf("Empty value did not survive the save/load round trip")
	}

	value, exists = engine2.Get("binary\r\nkey")
	if !exists || !bytes.Equal(value, []byte("binary\r\nvalue\x00")) {
		t.Errorf("Binary key did not survive the save/load round trip")
	}

	// The source engine must be unchanged by Save
	for i := 0; i < numEntries; i++ {
		key := originalKeys[i]
		expectedValue := originalValues[i]

		actualValue, exists := engine.Get(key)
		if !exists {
			t.Errorf("Key %s not found in original engine", key)
			continue
		}

		if !bytes.Equal(actualValue, expectedValue) {
			t.Errorf("Value mismatch in original engine for key %s", key)
		}
	}
}

func testLoadReplaces(t *testing.T, factory kv.EngineFactory) {
	source := factory()
	target := factory()

	source.Set("replacement-key", []byte("replacement-value"))
	target.Set("stale-key", []byte("stale-value"))

	var buf bytes.Buffer
	if err := source.Save(&buf); err != nil {
		t.Errorf("Unexpected error during Save: %v", err)
	}

	if err := target.Load(&buf); err != nil {
		t.Errorf("Unexpected error during Load: %v", err)
	}

	if _, exists := target.Get("stale-key"); exists {
		t.Errorf("Expected Load to discard entries present before the call")
	}

	value, exists := target.Get("replacement-key")
	if !exists {
		t.Errorf("Expected loaded key to exist")
	} else if !bytes.Equal(value, []byte("replacement-value")) {
		t.Errorf("Expected value %s, got %s", "replacement-value", value)
	}

	if n := target.Len(); n != 1 {
		t.Errorf("Expected exactly 1 entry after Load, got %d", n)
	}
}
