// Package client implements clients for the key-value server's wire
// protocol. It provides typed Set/Get/Delete operations on top of raw
// command execution.
//
// The package focuses on:
//   - Strict request/reply usage of the wire protocol (one command in
//     flight per connection)
//   - Connection pooling for concurrent callers
//   - Conversion of server error replies into Go errors
//
// Key Components:
//
//   - DialConn: Opens a single connection. A Conn is cheap and fast but must
//     not be shared between goroutines.
//
//   - NewClient: Creates a pooled client. Every request borrows a dedicated
//     connection for its full round trip, so the client is safe for
//     concurrent use from multiple goroutines.
//
// Usage Example:
//
//	// Configure the client
//	config := common.ClientConfig{
//	  Endpoint:      "localhost:9001",
//	  TimeoutSecond: 5,
//	  Connections:   4,
//	}
//
//	// Create the pooled client
//	c, _ := client.NewClient(config)
//	defer c.Close()
//
//	// Use the store
//	c.Set("mykey", []byte("myvalue"))
//	value, loaded, _ := c.Get("mykey")
//	existed, _ := c.Delete("mykey")
//
// Thread Safety:
//
//	Client is safe for concurrent use. Conn is not, it owns exactly one
//	connection and the protocol allows only one request in flight on it.
package client
