package sharded

import (
	"testing"

	"kvasir/lib/kv"
	kvtesting "kvasir/lib/kv/testing"
)

// Test runs the standardised engine conformance suite.
func Test(t *testing.T) {
	kvtesting.RunEngineTests(t, "Sharded", func() kv.Engine {
		return NewShardedEngine()
	})
}

// Benchmark runs the standardised engine benchmarks.
func Benchmark(b *testing.B) {
	kvtesting.RunEngineBenchmarks(b, "Sharded", func() kv.Engine {
		return NewShardedEngine()
	})
}
