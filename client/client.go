package client

import (
	"fmt"
	"net"
	"time"

	"github.com/lni/dragonboat/v4/logger"

	"kvasir/lib/resp"
)

// Logger is the logger for this package
var Logger = logger.GetLogger("client")

// --------------------------------------------------------------------------
// Single connection client
// --------------------------------------------------------------------------

// Conn executes commands over a single connection. The protocol allows one
// request in flight per connection, so a Conn must not be shared between
// goroutines. Use Client for pooled concurrent access.
type Conn struct {
	conn    net.Conn
	reader  *resp.Reader
	timeout time.Duration
}

// DialConn opens a connection to the server at endpoint. A timeout of zero
// disables both the dial timeout and the per-request I/O deadlines.
func DialConn(endpoint string, timeout time.Duration) (*Conn, error) {
	nc, err := net.DialTimeout("tcp", endpoint, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", endpoint, err)
	}

	if tcp, ok := nc.(*net.TCPConn); ok {
		// One small request per round trip, latency matters more than
		// segment count
		tcp.SetNoDelay(true)
	}

	return &Conn{conn: nc, reader: resp.NewReader(nc), timeout: timeout}, nil
}

// Do sends one command and returns the decoded reply. Error replies from the
// server are returned as values, the error return covers transport and
// protocol failures only. After such a failure the stream state is unknown
// and the Conn must be closed.
func (c *Conn) Do(args ...[]byte) (resp.Value, error) {
	if c.timeout > 0 {
		if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
			return resp.Value{}, err
		}
	}

	if _, err := c.conn.Write(resp.EncodeCommand(args...)); err != nil {
		return resp.Value{}, fmt.Errorf("failed to send command: %w", err)
	}

	reply, err := c.reader.ReadValue()
	if err != nil {
		return resp.Value{}, fmt.Errorf("failed to read reply: %w", err)
	}
	return reply, nil
}

// Set stores the value under key.
func (c *Conn) Set(key string, value []byte) error {
	reply, err := c.Do([]byte("SET"), []byte(key), value)
	if err != nil {
		return err
	}
	return checkSetReply(reply)
}

// Get retrieves the value stored under key. The loaded flag reports whether
// the key existed.
func (c *Conn) Get(key string) (value []byte, loaded bool, err error) {
	reply, err := c.Do([]byte("GET"), []byte(key))
	if err != nil {
		return nil, false, err
	}
	return checkGetReply(reply)
}

// Delete removes the key and reports whether it existed.
func (c *Conn) Delete(key string) (existed bool, err error) {
	reply, err := c.Do([]byte("DEL"), []byte(key))
	if err != nil {
		return false, err
	}
	return checkDelReply(reply)
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// --------------------------------------------------------------------------
// Reply interpretation, shared by Conn and Client
// --------------------------------------------------------------------------

// serverError converts an error reply into a Go error.
func serverError(reply resp.Value) error {
	if reply.Kind == resp.KindError {
		return fmt.Errorf("server: %s", reply.Str)
	}
	return nil
}

func checkSetReply(reply resp.Value) error {
	if err := serverError(reply); err != nil {
		return err
	}
	if reply.Kind != resp.KindStatus || reply.Str != "OK" {
		return fmt.Errorf("unexpected reply to SET: %s", reply.Kind)
	}
	return nil
}

func checkGetReply(reply resp.Value) ([]byte, bool, error) {
	if err := serverError(reply); err != nil {
		return nil, false, err
	}
	if reply.Kind != resp.KindBulk {
		return nil, false, fmt.Errorf("unexpected reply to GET: %s", reply.Kind)
	}
	if reply.Null {
		return nil, false, nil
	}
	return reply.Bulk, true, nil
}

func checkDelReply(reply resp.Value) (bool, error) {
	if err := serverError(reply); err != nil {
		return false, err
	}
	if reply.Kind != resp.KindInteger {
		return false, fmt.Errorf("unexpected reply to DEL: %s", reply.Kind)
	}
	return reply.Int == 1, nil
}
