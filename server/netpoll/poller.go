//go:build linux

package netpoll

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// poller wraps one epoll instance. Each worker owns exactly one.
type poller struct {
	fd     int
	closed bool
}

func newPoller() (*poller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("failed to create epoll instance: %w", err)
	}
	return &poller{fd: fd}, nil
}

// Add registers fd for input readiness. Level-triggered registration fires
// as long as input is pending, edge-triggered delivers one event per
// readiness transition.
func (p *poller) Add(fd int, edgeTriggered bool) error {
	event := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if edgeTriggered {
		event.Events |= unix.EPOLLET
	}
	return unix.EpollCtl(p.fd, unix.EPOLL_CTL_ADD, fd, &event)
}

// Remove deregisters fd. The error is discarded, removal only precedes the
// close of the descriptor.
func (p *poller) Remove(fd int) {
	_ = unix.EpollCtl(p.fd, unix.EPOLL_CTL_DEL, fd, nil)
}

// Wait fills events with ready descriptors, blocking at most timeoutMs.
func (p *poller) Wait(events []unix.EpollEvent, timeoutMs int) (int, error) {
	return unix.EpollWait(p.fd, events, timeoutMs)
}

// Close releases the epoll instance. Safe to call once per poller, the
// owning worker is the only caller.
func (p *poller) Close() {
	if p.closed {
		return
	}
	p.closed = true
	_ = unix.Close(p.fd)
}
