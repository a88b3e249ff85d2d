// Package testing provides standardised tests and benchmarks for engine
// implementations that satisfy the kv.Engine interface.
//
// The package contains:
//   - testing: A conformance suite validating the kv.Engine interface contract,
//     including the copy semantics and the snapshot record format
//   - benchmark: Performance tests for measuring throughput of common engine operations
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func() kv.Engine {
//		return NewMyEngine()
//	}
//
//	// Running the standard test suite
//	kvtesting.RunEngineTests(t, "MyEngine", factory)
//
//	// Running performance benchmarks
//	kvtesting.RunEngineBenchmarks(b, "MyEngine", factory)
package testing
