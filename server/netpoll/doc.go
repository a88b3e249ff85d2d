// Package netpoll implements the connection multiplexer of the server: a
// fixed set of event loop workers, each an OS thread that owns its own
// listening socket and its own epoll instance.
//
// Every worker binds a separate listener to the same address using
// SO_REUSEPORT, so the kernel spreads incoming connections across the
// workers without any user-space coordination. A client socket belongs to
// the worker that accepted it for its whole lifetime; descriptors are never
// shared between workers, which keeps every loop free of locking.
//
// The request pipeline is deliberately simple: a readable client socket gets
// one bounded read, the bytes are handed to the injected Handler as one
// complete request, and the returned reply is written back in one send.
// There is no reassembly of requests across reads; a request larger than the
// read buffer or split across packets is rejected by the protocol layer as
// malformed rather than buffered. Peers that disappear, stall on send, or
// fail hard lose their connection; a malformed request never does.
//
// The package is Linux only, it builds directly on epoll and SO_REUSEPORT.
package netpoll
