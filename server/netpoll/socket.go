//go:build linux

package netpoll

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// --------------------------------------------------------------------------
// Listening Socket
// --------------------------------------------------------------------------

// listener owns one SO_REUSEPORT listening socket. Every worker creates its
// own listener for the same address; the kernel balances incoming
// connections across the group.
type listener struct {
	fd     int
	closed bool
}

func newListener(addr string) (*listener, error) {
	sa, err := resolveInet4(addr)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to create socket: %w", err)
	}

	// SO_REUSEADDR for fast restarts, SO_REUSEPORT for the per-worker
	// listener group; both must precede bind
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("failed to set SO_REUSEADDR: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("failed to set SO_REUSEPORT: %w", err)
	}

	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("failed to bind %s: %w", addr, err)
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	return &listener{fd: fd}, nil
}

// Close releases the listening socket exactly once.
func (l *listener) Close() {
	if l.closed {
		return
	}
	l.closed = true
	_ = unix.Close(l.fd)
}

// port returns the locally bound port, which differs from the requested one
// when the listener was bound to port 0.
func (l *listener) port() (int, error) {
	sa, err := unix.Getsockname(l.fd)
	if err != nil {
		return 0, fmt.Errorf("failed to read bound address: %w", err)
	}
	inet4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return 0, fmt.Errorf("unexpected socket address family %T", sa)
	}
	return inet4.Port, nil
}

// --------------------------------------------------------------------------
// Client Socket
// --------------------------------------------------------------------------

// conn owns one accepted client descriptor. A conn belongs to a single
// worker, so the close-once flag needs no synchronization.
type conn struct {
	fd     int
	closed bool
}

// Close releases the client socket exactly once.
func (c *conn) Close() {
	if c.closed {
		return
	}
	c.closed = true
	_ = unix.Close(c.fd)
}

// --------------------------------------------------------------------------
// Helper Functions
// --------------------------------------------------------------------------

// resolveInet4 parses addr into an IPv4 socket address. The listeners bind
// AF_INET sockets, IPv6 endpoints are rejected here.
func resolveInet4(addr string) (*unix.SockaddrInet4, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp4", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", addr, err)
	}

	sa := &unix.SockaddrInet4{Port: tcpAddr.Port}
	if ip := tcpAddr.IP.To4(); ip != nil {
		copy(sa.Addr[:], ip)
	}
	return sa, nil
}
