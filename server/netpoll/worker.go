//go:build linux

package netpoll

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// maxEvents caps how many readiness events one poll wait delivers.
const maxEvents = 128

// worker is one event loop: an OS thread owning a listener, an epoll
// instance and every client socket it has accepted.
type worker struct {
	id      int
	cfg     Config
	handler Handler
	stats   *counters

	poller   *poller
	listener *listener
	conns    map[int]*conn
	buf      []byte

	stop atomic.Bool
}

// newWorker binds the worker's listener and poller. On failure everything
// already opened is released again.
func newWorker(id int, cfg Config, handler Handler, stats *counters) (*worker, error) {
	l, err := newListener(cfg.Addr)
	if err != nil {
		return nil, err
	}

	p, err := newPoller()
	if err != nil {
		l.Close()
		return nil, err
	}

	// The listener stays level-triggered so pending connections keep firing
	// until the accept loop has drained them
	if err := p.Add(l.fd, false); err != nil {
		p.Close()
		l.Close()
		return nil, fmt.Errorf("failed to register listener: %w", err)
	}

	return &worker{
		id:       id,
		cfg:      cfg,
		handler:  handler,
		stats:    stats,
		poller:   p,
		listener: l,
		conns:    make(map[int]*conn),
		buf:      make([]byte, cfg.ReadBufferSize),
	}, nil
}

// signalStop asks the loop to exit. The worker observes it within one poll
// timeout.
func (w *worker) signalStop() {
	w.stop.Store(true)
}

// run is the worker loop. It occupies the calling goroutine's OS thread
// until the stop flag trips, then releases every descriptor it still owns.
func (w *worker) run() {
	defer w.cleanup()

	// Readiness state and core affinity are per OS thread
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if w.cfg.PinWorkers {
		w.pin()
	}

	events := make([]unix.EpollEvent, maxEvents)
	timeoutMs := max(int(w.cfg.PollTimeout/time.Millisecond), 1)

	for !w.stop.Load() {
		n, err := w.poller.Wait(events, timeoutMs)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			Logger.Errorf("worker %d: poll failed: %v", w.id, err)
			return
		}

		for i := 0; i < n; i++ {
			if fd := int(events[i].Fd); fd == w.listener.fd {
				w.acceptPending()
			} else {
				w.serveConn(fd)
			}
		}
	}
}

// acceptPending accepts until the listener has no connection immediately
// available. Accepted sockets are non-blocking, low-latency and registered
// edge-triggered with this worker's poller.
func (w *worker) acceptPending() {
	for {
		fd, _, err := unix.Accept4(w.listener.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err == unix.EINTR || err == unix.ECONNABORTED {
			continue
		}
		if err == unix.EAGAIN {
			return // drained
		}
		if err != nil {
			Logger.Errorf("worker %d: accept failed: %v", w.id, err)
			return
		}

		// Request/reply traffic wants latency, not coalescing
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)

		c := &conn{fd: fd}
		if err := w.poller.Add(fd, true); err != nil {
			Logger.Errorf("worker %d: failed to register connection: %v", w.id, err)
			c.Close()
			continue
		}

		w.conns[fd] = c
		w.stats.accepted.Add(1)
	}
}

// serveConn performs one bounded read on a ready client socket, hands the
// bytes to the handler as one request and sends the reply in one write.
func (w *worker) serveConn(fd int) {
	c, ok := w.conns[fd]
	if !ok {
		// Closed earlier in this event batch
		return
	}

	var (
		n   int
		err error
	)
	for {
		n, err = unix.Read(fd, w.buf)
		if err != unix.EINTR {
			break
		}
	}
	if err == unix.EAGAIN {
		return // spurious readiness, nothing to read
	}
	if err != nil || n == 0 {
		// Peer closed or the socket failed hard
		w.closeConn(c)
		return
	}

	w.stats.requests.Add(1)
	w.stats.bytesRead.Add(uint64(n))

	reply := w.handler.Handle(w.buf[:n])
	if len(reply) == 0 {
		return
	}

	var sent int
	for {
		sent, err = unix.Write(fd, reply)
		if err != unix.EINTR {
			break
		}
	}
	if err != nil || sent < len(reply) {
		// A vanished or stalled peer forfeits the connection, replies are
		// never queued or truncated
		w.closeConn(c)
		return
	}
	w.stats.bytesWritten.Add(uint64(sent))
}

// closeConn deregisters and closes a client socket, in that order, exactly
// once.
func (w *worker) closeConn(c *conn) {
	delete(w.conns, c.fd)
	w.poller.Remove(c.fd)
	c.Close()
	w.stats.closed.Add(1)
}

// cleanup releases every descriptor the worker owns. It runs on the worker
// thread when the loop exits, or from Stop if the server never started.
func (w *worker) cleanup() {
	for _, c := range w.conns {
		w.poller.Remove(c.fd)
		c.Close()
		w.stats.closed.Add(1)
	}
	clear(w.conns)

	w.listener.Close()
	w.poller.Close()
}

// pin binds the worker thread to one logical core, purely best effort.
func (w *worker) pin() {
	core := w.id % runtime.NumCPU()

	var set unix.CPUSet
	set.Zero()
	set.Set(core)

	if err := unix.SchedSetaffinity(0, &set); err != nil {
		Logger.Warningf("worker %d: failed to pin to core %d: %v", w.id, core, err)
		return
	}
	Logger.Debugf("worker %d: pinned to core %d", w.id, core)
}
