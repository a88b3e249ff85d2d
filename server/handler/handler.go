// Package handler implements the command layer of the server: one raw
// request in, one encoded reply out.
package handler

import (
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"

	"kvasir/lib/kv"
	"kvasir/lib/resp"
)

// Logger is the logger for this package
var Logger = logger.GetLogger("handler")

// Command verbs. Matching is case-sensitive and exact.
const (
	verbGet = "GET"
	verbSet = "SET"
	verbDel = "DEL"
)

// Shared literal replies. The slices are handed to the socket writers but
// never mutated, so all requests can share one backing array.
var (
	replyOK             = resp.EncodeOK()
	replyNull           = resp.EncodeNull()
	replyInvalidCommand = resp.EncodeError("ERR invalid command")
	replyUnknownCommand = resp.EncodeError("ERR unknown command")
)

// Command execution counters
var (
	getTotal    = metrics.NewCounter(`kvasir_commands_total{command="get"}`)
	setTotal    = metrics.NewCounter(`kvasir_commands_total{command="set"}`)
	delTotal    = metrics.NewCounter(`kvasir_commands_total{command="del"}`)
	errorsTotal = metrics.NewCounter(`kvasir_command_errors_total`)
	hitsTotal   = metrics.NewCounter(`kvasir_keyspace_hits_total`)
	missesTotal = metrics.NewCounter(`kvasir_keyspace_misses_total`)
)

// --------------------------------------------------------------------------
// Handler
// --------------------------------------------------------------------------

// Handler dispatches decoded commands against a store.
//
// Thread-safety: a Handler is stateless per request, all event loop workers
// share one instance.
type Handler struct {
	store *kv.Store
}

// NewHandler creates the command dispatcher for the given store.
func NewHandler(store *kv.Store) *Handler {
	return &Handler{store: store}
}

// Handle services one raw request and returns the encoded reply.
//
// Every request gets a well-formed reply: undecodable bytes or invalid
// commands produce an error reply instead of dropping the connection, and
// nothing that fails validation touches the store. Bytes after the first
// complete value are ignored, a read is one request.
func (h *Handler) Handle(req []byte) []byte {
	value, _, err := resp.Decode(req, 0)
	if err != nil {
		Logger.Debugf("rejected undecodable request: %v", err)
		errorsTotal.Inc()
		return resp.EncodeError("ERR " + err.Error())
	}

	// A command is a non-empty array with a textual verb first
	if value.Kind != resp.KindArray || value.Null || len(value.Array) == 0 {
		errorsTotal.Inc()
		return replyInvalidCommand
	}
	verb, ok := value.Array[0].Text()
	if !ok {
		errorsTotal.Inc()
		return replyInvalidCommand
	}

	switch string(verb) {
	case verbGet:
		if len(value.Array) != 2 {
			errorsTotal.Inc()
			return replyUnknownCommand
		}
		key, ok := value.Array[1].Text()
		if !ok {
			errorsTotal.Inc()
			return replyInvalidCommand
		}

		getTotal.Inc()
		stored, loaded := h.store.Get(string(key))
		if !loaded {
			missesTotal.Inc()
			return replyNull
		}
		hitsTotal.Inc()
		return resp.EncodeBulk(stored)

	case verbSet:
		if len(value.Array) != 3 {
			errorsTotal.Inc()
			return replyUnknownCommand
		}
		key, ok := value.Array[1].Text()
		if !ok {
			errorsTotal.Inc()
			return replyInvalidCommand
		}
		val, ok := value.Array[2].Text()
		if !ok {
			errorsTotal.Inc()
			return replyInvalidCommand
		}

		setTotal.Inc()
		h.store.Set(string(key), val)
		return replyOK

	case verbDel:
		if len(value.Array) != 2 {
			errorsTotal.Inc()
			return replyUnknownCommand
		}
		key, ok := value.Array[1].Text()
		if !ok {
			errorsTotal.Inc()
			return replyInvalidCommand
		}

		delTotal.Inc()
		if h.store.Delete(string(key)) {
			return resp.EncodeInteger(1)
		}
		return resp.EncodeInteger(0)

	default:
		errorsTotal.Inc()
		return replyUnknownCommand
	}
}
