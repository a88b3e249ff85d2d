package handler

import (
	"bytes"
	"testing"

	"kvasir/lib/kv"
	"kvasir/lib/kv/engine/hashmap"
	"kvasir/lib/resp"
)

func newTestHandler(t *testing.T) (*Handler, *kv.Store) {
	t.Helper()

	store, err := kv.NewStore(hashmap.NewHashmapEngine, "")
	if err != nil {
		t.Fatalf("Unexpected error creating store: %v", err)
	}
	return NewHandler(store), store
}

// TestHandleScenarios walks the canonical client session, request for
// request, against the literal wire bytes.
func TestHandleScenarios(t *testing.T) {
	h, _ := newTestHandler(t)

	steps := []struct {
		name    string
		request string
		reply   string
	}{
		{
			name:    "set foo bar",
			request: "*3\r\n$3\r\nSET\r\n$3\r\nfoo\r\n$3\r\nbar\r\n",
			reply:   "+OK\r\n",
		},
		{
			name:    "get foo",
			request: "*2\r\n$3\r\nGET\r\n$3\r\nfoo\r\n",
			reply:   "$3\r\nbar\r\n",
		},
		{
			name:    "get missing",
			request: "*2\r\n$3\r\nGET\r\n$7\r\nmissing\r\n",
			reply:   "$-1\r\n",
		},
		{
			name:    "del foo",
			request: "*2\r\n$3\r\nDEL\r\n$3\r\nfoo\r\n",
			reply:   ":1\r\n",
		},
		{
			name:    "del foo again",
			request: "*2\r\n$3\r\nDEL\r\n$3\r\nfoo\r\n",
			reply:   ":0\r\n",
		},
	}

	for _, step := range steps {
		reply := h.Handle([]byte(step.request))
		if !bytes.Equal(reply, []byte(step.reply)) {
			t.Errorf("%s: expected reply %q, got %q", step.name, step.reply, reply)
		}
	}

	// Unsupported verbs get an error reply, not silence
	reply := h.Handle([]byte("*1\r\n$4\r\nPING\r\n"))
	if !bytes.HasPrefix(reply, []byte("-ERR")) {
		t.Errorf("Expected PING to produce an error reply, got %q", reply)
	}
}

// TestHandleRejections feeds every malformed shape through the dispatcher and
// verifies the error reply and that the store stays untouched.
func TestHandleRejections(t *testing.T) {
	h, store := newTestHandler(t)

	// Seed one entry, nothing below may change the mapping
	store.Set("sentinel", []byte("untouched"))

	tests := []struct {
		name    string
		request string
		reply   string
	}{
		{"empty array", "*0\r\n", "-ERR invalid command\r\n"},
		{"null array", "*-1\r\n", "-ERR invalid command\r\n"},
		{"top level not an array", "+SET\r\n", "-ERR invalid command\r\n"},
		{"integer verb", "*1\r\n:1\r\n", "-ERR invalid command\r\n"},
		{"null bulk verb", "*1\r\n$-1\r\n", "-ERR invalid command\r\n"},
		{"non-textual key", "*2\r\n$3\r\nGET\r\n:5\r\n", "-ERR invalid command\r\n"},
		{"non-textual value", "*3\r\n$3\r\nSET\r\n$3\r\nfoo\r\n:1\r\n", "-ERR invalid command\r\n"},
		{"unknown verb", "*1\r\n$5\r\nHELLO\r\n", "-ERR unknown command\r\n"},
		{"lowercase verb", "*3\r\n$3\r\nset\r\n$3\r\nfoo\r\n$3\r\nbar\r\n", "-ERR unknown command\r\n"},
		{"mixed case verb", "*2\r\n$3\r\nGet\r\n$3\r\nfoo\r\n", "-ERR unknown command\r\n"},
		{"get missing arity", "*1\r\n$3\r\nGET\r\n", "-ERR unknown command\r\n"},
		{"get excess arity", "*3\r\n$3\r\nGET\r\n$3\r\nfoo\r\n$3\r\nbar\r\n", "-ERR unknown command\r\n"},
		{"set missing arity", "*2\r\n$3\r\nSET\r\n$3\r\nfoo\r\n", "-ERR unknown command\r\n"},
		{"set excess arity", "*4\r\n$3\r\nSET\r\n$3\r\nfoo\r\n$3\r\nbar\r\n$3\r\nbaz\r\n", "-ERR unknown command\r\n"},
		{"del excess arity", "*3\r\n$3\r\nDEL\r\n$3\r\nfoo\r\n$3\r\nbar\r\n", "-ERR unknown command\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := h.Handle([]byte(tt.request))
			if !bytes.Equal(reply, []byte(tt.reply)) {
				t.Errorf("Expected reply %q, got %q", tt.reply, reply)
			}
		})
	}

	// Undecodable bytes produce an error reply carrying the parse failure
	undecodable := []string{
		"",
		"x",
		"*2\r\n$3\r\nGET\r\n",
		"$5\r\nab\r\n",
		"*1\r\n$3\r\nGET",
	}
	for _, request := range undecodable {
		reply := h.Handle([]byte(request))
		if !bytes.HasPrefix(reply, []byte("-ERR ")) {
			t.Errorf("Expected an error reply for %q, got %q", request, reply)
		}
		if !bytes.HasSuffix(reply, []byte("\r\n")) {
			t.Errorf("Expected a terminated reply for %q, got %q", request, reply)
		}
	}

	if n := store.Len(); n != 1 {
		t.Errorf("Expected rejected requests to leave the store untouched, got %d entries", n)
	}
	if value, _ := store.Get("sentinel"); !bytes.Equal(value, []byte("untouched")) {
		t.Errorf("Expected the seeded entry to survive, got %q", value)
	}
}

// TestHandleStatusTokens verifies that simple-string tokens work wherever
// bulk tokens do, the command layer only requires textual elements.
func TestHandleStatusTokens(t *testing.T) {
	h, _ := newTestHandler(t)

	reply := h.Handle([]byte("*3\r\n+SET\r\n+foo\r\n+bar\r\n"))
	if !bytes.Equal(reply, []byte("+OK\r\n")) {
		t.Errorf("Expected +OK for status-token SET, got %q", reply)
	}

	reply = h.Handle([]byte("*2\r\n+GET\r\n+foo\r\n"))
	if !bytes.Equal(reply, []byte("$3\r\nbar\r\n")) {
		t.Errorf("Expected bar for status-token GET, got %q", reply)
	}
}

func TestHandleBinaryValues(t *testing.T) {
	h, _ := newTestHandler(t)

	value := []byte("binary\r\nvalue\x00with\x00nulls")

	reply := h.Handle(resp.EncodeCommand([]byte("SET"), []byte("bin"), value))
	if !bytes.Equal(reply, []byte("+OK\r\n")) {
		t.Errorf("Expected +OK for binary SET, got %q", reply)
	}

	reply = h.Handle(resp.EncodeCommand([]byte("GET"), []byte("bin")))
	if !bytes.Equal(reply, resp.EncodeBulk(value)) {
		t.Errorf("Expected the binary value back, got %q", reply)
	}
}

func TestHandleSetOverwrites(t *testing.T) {
	h, _ := newTestHandler(t)

	h.Handle(resp.EncodeCommand([]byte("SET"), []byte("key"), []byte("first")))
	h.Handle(resp.EncodeCommand([]byte("SET"), []byte("key"), []byte("second")))

	reply := h.Handle(resp.EncodeCommand([]byte("GET"), []byte("key")))
	if !bytes.Equal(reply, resp.EncodeBulk([]byte("second"))) {
		t.Errorf("Expected the overwritten value, got %q", reply)
	}

	// Repeated identical SET is stable
	for i := 0; i < 3; i++ {
		reply = h.Handle(resp.EncodeCommand([]byte("SET"), []byte("key"), []byte("second")))
		if !bytes.Equal(reply, []byte("+OK\r\n")) {
			t.Errorf("Expected +OK for repeated SET, got %q", reply)
		}
	}
	reply = h.Handle(resp.EncodeCommand([]byte("GET"), []byte("key")))
	if !bytes.Equal(reply, resp.EncodeBulk([]byte("second"))) {
		t.Errorf("Expected a stable value after repeated SET, got %q", reply)
	}
}

// TestHandleTrailingBytes documents the one-request-per-read contract: bytes
// after the first complete value are ignored, not treated as a second
// request.
func TestHandleTrailingBytes(t *testing.T) {
	h, store := newTestHandler(t)

	request := append(
		resp.EncodeCommand([]byte("SET"), []byte("foo"), []byte("bar")),
		[]byte("*2\r\n$3\r\nDEL\r\n$3\r\nfoo\r\n")...,
	)

	reply := h.Handle(request)
	if !bytes.Equal(reply, []byte("+OK\r\n")) {
		t.Errorf("Expected only the first request to be serviced, got %q", reply)
	}

	if value, exists := store.Get("foo"); !exists || !bytes.Equal(value, []byte("bar")) {
		t.Errorf("Expected the trailing request to be ignored, store holds %q (exists=%v)", value, exists)
	}
}
