// Package resp implements the Redis serialization protocol (RESP), the wire
// format spoken between clients and the server. It is a pure codec: decoding
// is a function of an input buffer and a cursor, encoding produces reply
// bytes, and neither touches any shared state.
//
// The protocol is a recursive, length-prefixed format. Every value starts
// with a single type byte and ends with a CRLF terminator:
//
//   - '+' Simple Status (e.g. "+OK\r\n")
//   - '-' Error (e.g. "-ERR unknown command\r\n")
//   - ':' Integer (e.g. ":1\r\n")
//   - '$' Bulk payload, length-prefixed raw bytes (e.g. "$3\r\nfoo\r\n")
//   - '*' Array, count-prefixed sequence of further values
//
// A declared length of exactly -1 denotes the null variant of a bulk payload
// ("$-1\r\n") or an array ("*-1\r\n"), which is distinct from an empty one.
//
// The package provides three entry points:
//
//   - Decode: parses one value out of a byte buffer, returning the value,
//     the new cursor position and a typed error on malformed input.
//   - Encode and the Encode* reply helpers: serialize values back to their
//     wire form.
//   - Reader: an incremental frame reader for connections, used by clients
//     that consume replies from a stream instead of a single buffer.
package resp
