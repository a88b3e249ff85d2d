// Package common provides the configuration and logging shared by the server
// and the client.
package common

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters for the key-value server.
type ServerConfig struct {
	// Addr is the TCP address the worker listeners bind to
	Addr string

	// Workers is the number of event loop workers, 0 means one per CPU
	Workers int

	// ReadBufferSize caps a single request in bytes
	ReadBufferSize int

	// PollTimeout bounds how long a worker blocks in the poller before it
	// rechecks the stop flag
	PollTimeout time.Duration

	// PinWorkers pins each worker thread to a CPU core (best effort)
	PinWorkers bool

	// Engine selects the store engine implementation
	Engine string

	// Snapshot parameters
	DataFile     string
	SaveInterval time.Duration

	// MetricsAddr is the listen address for /metrics and pprof, empty
	// disables the listener
	MetricsAddr string

	// Logging configuration
	LogLevel string
}

// EffectiveWorkers resolves the configured worker count, mapping the
// 0 = auto default to one worker per CPU.
func (c *ServerConfig) EffectiveWorkers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return max(runtime.NumCPU(), 1)
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// Network settings
	addSection("KV Server")
	addField("Endpoint", c.Addr)
	if c.Workers > 0 {
		addField("Workers", strconv.Itoa(c.Workers))
	} else {
		addField("Workers", fmt.Sprintf("auto (%d)", c.EffectiveWorkers()))
	}
	addField("Read Buffer", fmt.Sprintf("%d bytes", c.ReadBufferSize))
	addField("Poll Timeout", c.PollTimeout.String())
	addField("Pin Workers", fmt.Sprintf("%t", c.PinWorkers))

	// Engine
	addSection("Engine")
	addField("Implementation", c.Engine)

	// Persistence
	addSection("Persistence")
	if c.DataFile == "" {
		addField("Data File", "disabled")
	} else {
		addField("Data File", c.DataFile)
		if c.SaveInterval > 0 {
			addField("Save Interval", c.SaveInterval.String())
		} else {
			addField("Save Interval", "disabled (save on shutdown only)")
		}
	}

	// Observability
	addSection("Observability")
	if c.MetricsAddr == "" {
		addField("Metrics Endpoint", "disabled")
	} else {
		addField("Metrics Endpoint", c.MetricsAddr)
	}

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// Client configuration struct
// --------------------------------------------------------------------------

// ClientConfig holds all configuration parameters for the key-value client.
type ClientConfig struct {
	Endpoint      string
	TimeoutSecond int
	Connections   int
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Endpoint", c.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Connections", strconv.Itoa(max(c.Connections, 1)))

	return sb.String()
}
