package netpoll

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/lni/dragonboat/v4/logger"
)

// Logger is the logger for this package
var Logger = logger.GetLogger("netpoll")

// Defaults for the zero values of Config.
const (
	DefaultReadBufferSize = 64 * 1024
	DefaultPollTimeout    = 100 * time.Millisecond
)

// --------------------------------------------------------------------------
// Handler Interface
// --------------------------------------------------------------------------

// Handler services requests. One Handler instance is shared by all workers,
// implementations must be safe for concurrent use.
type Handler interface {
	// Handle receives the raw bytes of one request and returns the reply to
	// send back. The request slice aliases the worker's read buffer and is
	// overwritten by the next read, implementations must copy whatever they
	// keep. An empty reply sends nothing.
	Handle(req []byte) []byte
}

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// Config holds the multiplexer parameters.
type Config struct {
	// Addr is the IPv4 TCP address all worker listeners bind to
	Addr string

	// Workers is the number of event loops, 0 means one per CPU
	Workers int

	// ReadBufferSize caps a single request in bytes, 0 selects the default
	ReadBufferSize int

	// PollTimeout bounds the poll wait so workers observe a stop request
	// within this duration, 0 selects the default
	PollTimeout time.Duration

	// PinWorkers pins each worker thread to a CPU core, best effort
	PinWorkers bool
}

// withDefaults resolves the zero values of the optional fields.
func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = max(runtime.NumCPU(), 1)
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = DefaultReadBufferSize
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = DefaultPollTimeout
	}
	return c
}

// --------------------------------------------------------------------------
// Counters
// --------------------------------------------------------------------------

// Stats is a point-in-time snapshot of the multiplexer counters, aggregated
// over all workers.
type Stats struct {
	AcceptedConns uint64
	ClosedConns   uint64
	ActiveConns   uint64
	Requests      uint64
	BytesRead     uint64
	BytesWritten  uint64
}

// counters holds the shared atomic counters the workers update.
type counters struct {
	accepted     atomic.Uint64
	closed       atomic.Uint64
	requests     atomic.Uint64
	bytesRead    atomic.Uint64
	bytesWritten atomic.Uint64
}

func (c *counters) snapshot() Stats {
	accepted := c.accepted.Load()
	closed := c.closed.Load()
	return Stats{
		AcceptedConns: accepted,
		ClosedConns:   closed,
		ActiveConns:   accepted - closed,
		Requests:      c.requests.Load(),
		BytesRead:     c.bytesRead.Load(),
		BytesWritten:  c.bytesWritten.Load(),
	}
}
