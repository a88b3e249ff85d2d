// Package cmd implements the command-line interface for the kvasir
// key-value server. It provides a hierarchical command structure with
// operations for running the server and interacting with it as a client.
//
// The package is organized into several subpackages:
//
//   - kv: Commands for key-value operations (set, get, del) and benchmarking
//   - serve: Commands for starting and configuring the kvasir server
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See kvasir -help for a list of all commands.
package cmd
