//go:build linux

package netpoll

import (
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
)

// Server lifecycle states
const (
	stateIdle int32 = iota
	stateRunning
	stateStopped
)

// Server runs the worker group. New binds every listener and poller before
// returning, so a Server in hand is fully initialized and Start only has to
// launch the threads.
//
// Thread-safety: Start, Stop and Stats may be called from any goroutine.
type Server struct {
	cfg     Config
	workers []*worker
	stats   counters

	state atomic.Int32
	wg    sync.WaitGroup
}

// New creates a server for the given config with the handler injected into
// every worker. Any setup failure releases whatever was already opened and
// fails construction, a partially initialized server never exists.
func New(cfg Config, handler Handler) (*Server, error) {
	if handler == nil {
		return nil, fmt.Errorf("handler must not be nil")
	}
	host, _, err := net.SplitHostPort(cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("invalid listen address %q: %w", cfg.Addr, err)
	}
	cfg = cfg.withDefaults()

	s := &Server{cfg: cfg}
	for i := 0; i < cfg.Workers; i++ {
		w, err := newWorker(i, s.cfg, handler, &s.stats)
		if err != nil {
			for _, opened := range s.workers {
				opened.cleanup()
			}
			return nil, fmt.Errorf("failed to set up worker %d: %w", i, err)
		}
		s.workers = append(s.workers, w)

		// Port 0 is resolved by the first bind; the rest of the listener
		// group must join that port rather than pick their own
		if i == 0 {
			port, err := w.listener.port()
			if err != nil {
				w.cleanup()
				return nil, err
			}
			s.cfg.Addr = net.JoinHostPort(host, strconv.Itoa(port))
		}
	}
	return s, nil
}

// Addr returns the address the listener group is bound to. It carries the
// actual port even when the configured one was 0.
func (s *Server) Addr() string {
	return s.cfg.Addr
}

// Start launches one OS thread per worker. Calling Start again, or after
// Stop, has no effect.
func (s *Server) Start() {
	if !s.state.CompareAndSwap(stateIdle, stateRunning) {
		return
	}

	Logger.Infof("starting %d workers on %s", len(s.workers), s.cfg.Addr)
	for _, w := range s.workers {
		s.wg.Add(1)
		go func(w *worker) {
			defer s.wg.Done()
			w.run()
		}(w)
	}
}

// Stop signals every worker to exit and joins them; the workers notice
// within one poll timeout. Stop is idempotent, and on a server that never
// started it just releases the bound sockets. A stopped server cannot be
// started again.
func (s *Server) Stop() {
	if s.state.CompareAndSwap(stateRunning, stateStopped) {
		for _, w := range s.workers {
			w.signalStop()
		}
		s.wg.Wait()
		Logger.Infof("all workers stopped")
		return
	}

	// Never started, release the descriptors New bound
	if s.state.CompareAndSwap(stateIdle, stateStopped) {
		for _, w := range s.workers {
			w.cleanup()
		}
	}
}

// Stats returns a snapshot of the aggregated worker counters.
func (s *Server) Stats() Stats {
	return s.stats.snapshot()
}
