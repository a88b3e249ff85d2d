package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	pool "github.com/jolestar/go-commons-pool/v2"

	"kvasir/lib/resp"
	"kvasir/server/common"
)

// --------------------------------------------------------------------------
// Connection factory for the pool
// --------------------------------------------------------------------------

// connectionFactory creates pool-managed connections to one endpoint.
type connectionFactory struct {
	endpoint string
	timeout  time.Duration
}

func (f *connectionFactory) MakeObject(ctx context.Context) (*pool.PooledObject, error) {
	c, err := DialConn(f.endpoint, f.timeout)
	if err != nil {
		return nil, err
	}
	return pool.NewPooledObject(c), nil
}

func (f *connectionFactory) DestroyObject(ctx context.Context, object *pool.PooledObject) error {
	c, ok := object.Object.(*Conn)
	if !ok {
		return errors.New("connection pool holds wrong type")
	}
	return c.Close()
}

func (f *connectionFactory) ValidateObject(ctx context.Context, object *pool.PooledObject) bool {
	return true
}

func (f *connectionFactory) ActivateObject(ctx context.Context, object *pool.PooledObject) error {
	return nil
}

func (f *connectionFactory) PassivateObject(ctx context.Context, object *pool.PooledObject) error {
	return nil
}

// --------------------------------------------------------------------------
// Pooled client
// --------------------------------------------------------------------------

// Client is a connection-pooled client, safe for concurrent use. Each
// request borrows a dedicated connection for its full round trip, so replies
// can never interleave between goroutines.
type Client struct {
	config common.ClientConfig
	pool   *pool.ObjectPool
}

// NewClient creates a pooled client for the given configuration and verifies
// that the endpoint is reachable.
func NewClient(config common.ClientConfig) (*Client, error) {
	if config.Endpoint == "" {
		return nil, errors.New("no endpoint provided")
	}

	factory := &connectionFactory{
		endpoint: config.Endpoint,
		timeout:  time.Duration(config.TimeoutSecond) * time.Second,
	}

	ctx := context.Background()
	p := pool.NewObjectPoolWithDefaultConfig(ctx, factory)
	p.Config.MaxTotal = max(config.Connections, 1)
	p.Config.MaxIdle = p.Config.MaxTotal

	// Fail fast on unreachable endpoints instead of on first use
	probe, err := p.BorrowObject(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", config.Endpoint, err)
	}
	if err := p.ReturnObject(ctx, probe); err != nil {
		return nil, err
	}

	Logger.Infof("connected to %s (max %d connections)", config.Endpoint, p.Config.MaxTotal)
	return &Client{config: config, pool: p}, nil
}

// Do executes one command on a borrowed connection. Error replies from the
// server are returned as values, exactly as with Conn.Do.
func (c *Client) Do(args ...[]byte) (resp.Value, error) {
	ctx, cancel := c.requestContext()
	defer cancel()

	raw, err := c.pool.BorrowObject(ctx)
	if err != nil {
		return resp.Value{}, fmt.Errorf("no connection available: %w", err)
	}
	conn, ok := raw.(*Conn)
	if !ok {
		return resp.Value{}, errors.New("connection pool holds wrong type")
	}

	reply, err := conn.Do(args...)
	if err != nil {
		// The stream state after a transport failure is unknown, drop the
		// connection instead of returning it poisoned
		if invErr := c.pool.InvalidateObject(ctx, raw); invErr != nil {
			Logger.Warningf("Failed to invalidate connection: %v", invErr)
		}
		return resp.Value{}, err
	}

	if err := c.pool.ReturnObject(ctx, raw); err != nil {
		Logger.Warningf("Failed to return connection to pool: %v", err)
	}
	return reply, nil
}

// Set stores the value under key.
func (c *Client) Set(key string, value []byte) error {
	reply, err := c.Do([]byte("SET"), []byte(key), value)
	if err != nil {
		return err
	}
	return checkSetReply(reply)
}

// Get retrieves the value stored under key. The loaded flag reports whether
// the key existed.
func (c *Client) Get(key string) (value []byte, loaded bool, err error) {
	reply, err := c.Do([]byte("GET"), []byte(key))
	if err != nil {
		return nil, false, err
	}
	return checkGetReply(reply)
}

// Delete removes the key and reports whether it existed.
func (c *Client) Delete(key string) (existed bool, err error) {
	reply, err := c.Do([]byte("DEL"), []byte(key))
	if err != nil {
		return false, err
	}
	return checkDelReply(reply)
}

// Close closes all pooled connections.
func (c *Client) Close() {
	c.pool.Close(context.Background())
}

// requestContext bounds a request including the wait for a free connection.
func (c *Client) requestContext() (context.Context, context.CancelFunc) {
	if c.config.TimeoutSecond > 0 {
		return context.WithTimeout(context.Background(), time.Duration(c.config.TimeoutSecond)*time.Second)
	}
	return context.Background(), func() {}
}
