package testing

import (
	"bytes"
	"fmt"
	"io"
	"sync/atomic"
	"testing"

	"kvasir/lib/kv"
)

// RunEngineBenchmarks runs all benchmarks for an engine implementation.
func RunEngineBenchmarks(b *testing.B, name string, factory kv.EngineFactory) {
	b.Run(name, func(b *testing.B) {
		b.Run("Set", func(b *testing.B) {
			benchmarkSet(b, factory())
		})

		b.Run("SetExisting", func(b *testing.B) {
			benchmarkSetExisting(b, factory())
		})

		b.Run("SetLargeValue", func(b *testing.B) {
			benchmarkSetLargeValue(b, factory())
		})

		b.Run("Get", func(b *testing.B) {
			benchmarkGet(b, factory())
		})

		b.Run("Delete", func(b *testing.B) {
			benchmarkDelete(b, factory())
		})

		b.Run("MixedUsage", func(b *testing.B) {
			benchmarkMixedUsage(b, factory())
		})

		b.Run("SaveLoad", func(b *testing.B) {
			benchmarkSaveLoad(b, factory)
		})
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// Benchmark for Set operation with fresh keys
func benchmarkSet(b *testing.B, engine kv.Engine) {
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := fmt.Sprintf("test-key-%d", counter)
			value := []byte(fmt.Sprintf("test-value-%d", counter))
			engine.Set(key, value)
			counter++
		}
	})
}

// Benchmark for Set operation overwriting existing keys
func benchmarkSetExisting(b *testing.B, engine kv.Engine) {
	// Prepare data
	numKeys := 10000
	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("test-key-%d", i)
		value := []byte(fmt.Sprintf("test-value-%d", i))
		engine.Set(key, value)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := fmt.Sprintf("test-key-%d", counter%numKeys)
			value := []byte(fmt.Sprintf("test-value-%d", counter))
			engine.Set(key, value)
			counter++
		}
	})
}

// Benchmark for Set operation with large values
func benchmarkSetLargeValue(b *testing.B, engine kv.Engine) {
	largeValue := make([]byte, 1024*1024) // 1MB

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := fmt.Sprintf("test-key-%d", counter%100)
			engine.Set(key, largeValue)
			counter++
		}
	})
}

// Parallel benchmarking for Get operation
func benchmarkGet(b *testing.B, engine kv.Engine) {
	// Prepare data
	numKeys := 10000
	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("test-key-%d", i)
		value := []byte(fmt.Sprintf("test-value-%d", i))
		engine.Set(key, value)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := fmt.Sprintf("test-key-%d", counter%numKeys)
			engine.Get(key)
			counter++
		}
	})
}

// Parallel benchmarking for Delete operation
func benchmarkDelete(b *testing.B, engine kv.Engine) {
	numKeys := 100000
	if b.N < numKeys {
		numKeys = b.N
	}

	// Prepare data
	keys := make([]string, numKeys)
	for i := 0; i < numKeys; i++ {
		keys[i] = fmt.Sprintf("test-key-%d", i)
		value := []byte(fmt.Sprintf("test-value-%d", i))
		engine.Set(keys[i], value)
	}

	// Counter for atomic access
	var counter int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			idx := int(atomic.AddInt64(&counter, 1)-1) % numKeys
			engine.Delete(keys[idx])
		}
	})
}

// Benchmark for mixed usage patterns (70% get, 20% set, 10% delete)
func benchmarkMixedUsage(b *testing.B, engine kv.Engine) {
	// Prepare initial data
	numKeys := 10000
	keys := make([]string, numKeys)
	for i := 0; i < numKeys; i++ {
		keys[i] = fmt.Sprintf("test-key-%d", i)
		value := []byte(fmt.Sprintf("test-value-%d", i))
		engine.Set(keys[i], value)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := keys[counter%numKeys]

			switch counter % 10 {
			case 0, 1, 2, 3, 4, 5, 6:
				engine.Get(key)
			case 7, 8:
				value := []byte(fmt.Sprintf("mixed-value-%d", counter))
				engine.Set(key, value)
			case 9:
				engine.Delete(key)
			}

			counter++
		}
	})
}

// Benchmark for Save and Load operations. Parallelization is not meaningful
// here, a snapshot scans the entire engine.
func benchmarkSaveLoad(b *testing.B, factory kv.EngineFactory) {
	engine := factory()

	// Create an engine with some data
	numEntries := 10000
	for i := 0; i < numEntries; i++ {
		key := fmt.Sprintf("test-key-%d", i)
		value := []byte(fmt.Sprintf("test-value-%d", i))
		engine.Set(key, value)
	}

	b.Run("Save", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			engine.Save(io.Discard)
		}
	})

	// Prepare a data buffer for the Load benchmark
	var loadBuf bytes.Buffer
	engine.Save(&loadBuf)
	data := loadBuf.Bytes()

	b.Run("Load", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			loadEngine := factory()
			loadEngine.Load(bytes.NewReader(data))
		}
	})
}
