package server

import (
	"context"
	"net"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"kvasir/server/common"
)

// testConfig returns a config suitable for tests: ephemeral port, two
// workers, fast poll timeout so Stop joins quickly.
func testConfig(dataFile string) common.ServerConfig {
	return common.ServerConfig{
		Addr:         "127.0.0.1:0",
		Workers:      2,
		PollTimeout:  20 * time.Millisecond,
		Engine:       "hashmap",
		DataFile:     dataFile,
		SaveInterval: time.Hour,
	}
}

// startServer boots a server and returns it together with a stop function
// that cancels Run and reports its error.
func startServer(t *testing.T, cfg common.ServerConfig) (*Server, func() error) {
	t.Helper()

	srv, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	stop := func() error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(5 * time.Second):
			t.Fatal("Expected Run to return after cancel")
			return nil
		}
	}
	return srv, stop
}

// command sends one raw request on a fresh connection and returns the reply.
func command(t *testing.T, addr, req string) string {
	t.Helper()

	conn, err := net.DialTimeout("tcp4", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("Failed to dial %s: %v", addr, err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(req)); err != nil {
		t.Fatalf("Failed to write request: %v", err)
	}
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}

	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("Failed to read reply: %v", err)
	}
	return string(buf[:n])
}

func TestServerEndToEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kvstore.dat")
	srv, stop := startServer(t, testConfig(path))
	addr := srv.Addr()

	if got := command(t, addr, "*3\r\n$3\r\nSET\r\n$3\r\nfoo\r\n$3\r\nbar\r\n"); got != "+OK\r\n" {
		t.Errorf("Expected +OK for SET, got %q", got)
	}
	if got := command(t, addr, "*2\r\n$3\r\nGET\r\n$3\r\nfoo\r\n"); got != "$3\r\nbar\r\n" {
		t.Errorf("Expected bulk reply for GET, got %q", got)
	}
	if got := command(t, addr, "*2\r\n$3\r\nDEL\r\n$3\r\nfoo\r\n"); got != ":1\r\n" {
		t.Errorf("Expected :1 for DEL of existing key, got %q", got)
	}
	if got := command(t, addr, "*2\r\n$3\r\nDEL\r\n$3\r\nfoo\r\n"); got != ":0\r\n" {
		t.Errorf("Expected :0 for repeated DEL, got %q", got)
	}
	if got := command(t, addr, "*2\r\n$3\r\nGET\r\n$3\r\nfoo\r\n"); got != "$-1\r\n" {
		t.Errorf("Expected null reply after DEL, got %q", got)
	}
	if got := command(t, addr, "*1\r\n$4\r\nPING\r\n"); !strings.HasPrefix(got, "-ERR ") {
		t.Errorf("Expected error reply for PING, got %q", got)
	}

	if err := stop(); err != nil {
		t.Errorf("Expected clean shutdown, got: %v", err)
	}
}

func TestServerPersistsAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kvstore.dat")

	srv, stop := startServer(t, testConfig(path))
	addr := srv.Addr()
	if got := command(t, addr, "*3\r\n$3\r\nSET\r\n$3\r\nfoo\r\n$3\r\nbar\r\n"); got != "+OK\r\n" {
		t.Fatalf("Expected +OK for SET, got %q", got)
	}
	// A value containing CRLF must survive the snapshot unchanged
	if got := command(t, addr, "*3\r\n$3\r\nSET\r\n$3\r\nraw\r\n$4\r\nv\r\nx\r\n"); got != "+OK\r\n" {
		t.Fatalf("Expected +OK for binary SET, got %q", got)
	}
	if err := stop(); err != nil {
		t.Fatalf("Expected clean shutdown, got: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Expected snapshot file after shutdown: %v", err)
	}

	srv, stop = startServer(t, testConfig(path))
	addr = srv.Addr()
	if got := command(t, addr, "*2\r\n$3\r\nGET\r\n$3\r\nfoo\r\n"); got != "$3\r\nbar\r\n" {
		t.Errorf("Expected persisted value after restart, got %q", got)
	}
	if got := command(t, addr, "*2\r\n$3\r\nGET\r\n$3\r\nraw\r\n"); got != "$4\r\nv\r\nx\r\n" {
		t.Errorf("Expected persisted binary value after restart, got %q", got)
	}
	if err := stop(); err != nil {
		t.Errorf("Expected clean shutdown, got: %v", err)
	}
}

func TestServerPeriodicSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kvstore.dat")
	cfg := testConfig(path)
	cfg.SaveInterval = 50 * time.Millisecond

	srv, stop := startServer(t, cfg)
	if got := command(t, srv.Addr(), "*3\r\n$3\r\nSET\r\n$3\r\nfoo\r\n$3\r\nbar\r\n"); got != "+OK\r\n" {
		t.Fatalf("Expected +OK for SET, got %q", got)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(path); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Expected the periodic saver to write a snapshot")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := stop(); err != nil {
		t.Errorf("Expected clean shutdown, got: %v", err)
	}
}

func TestServerWithoutPersistence(t *testing.T) {
	srv, stop := startServer(t, testConfig(""))
	addr := srv.Addr()

	if got := command(t, addr, "*3\r\n$3\r\nSET\r\n$3\r\nfoo\r\n$3\r\nbar\r\n"); got != "+OK\r\n" {
		t.Errorf("Expected +OK for SET, got %q", got)
	}
	if got := command(t, addr, "*2\r\n$3\r\nGET\r\n$3\r\nfoo\r\n"); got != "$3\r\nbar\r\n" {
		t.Errorf("Expected bulk reply for GET, got %q", got)
	}
	if err := stop(); err != nil {
		t.Errorf("Expected clean shutdown without persistence, got: %v", err)
	}
}

func TestNewServerRejectsUnknownEngine(t *testing.T) {
	cfg := testConfig("")
	cfg.Engine = "btree"

	if _, err := NewServer(cfg); err == nil {
		t.Error("Expected error for unknown engine")
	}
}

func TestServerSelectsShardedEngine(t *testing.T) {
	cfg := testConfig("")
	cfg.Engine = "sharded"

	srv, stop := startServer(t, cfg)
	addr := srv.Addr()
	if got := command(t, addr, "*3\r\n$3\r\nSET\r\n$3\r\nfoo\r\n$3\r\nbar\r\n"); got != "+OK\r\n" {
		t.Errorf("Expected +OK for SET on sharded engine, got %q", got)
	}
	if got := command(t, addr, "*2\r\n$3\r\nGET\r\n$3\r\nfoo\r\n"); got != "$3\r\nbar\r\n" {
		t.Errorf("Expected bulk reply for GET on sharded engine, got %q", got)
	}
	if err := stop(); err != nil {
		t.Errorf("Expected clean shutdown, got: %v", err)
	}
}

func TestObservabilityEndpoint(t *testing.T) {
	srv, err := NewServer(testConfig(""))
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	defer srv.poll.Stop()

	rec := httptest.NewRecorder()
	srv.observabilityMux().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, metric := range []string{
		"kvasir_store_keys",
		"kvasir_connections_active",
		"kvasir_requests_total",
	} {
		if !strings.Contains(body, metric) {
			t.Errorf("Expected /metrics output to contain %q", metric)
		}
	}
}
