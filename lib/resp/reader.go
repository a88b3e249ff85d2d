package resp

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// --------------------------------------------------------------------------
// Stream Reader
// --------------------------------------------------------------------------

// Reader decodes values incrementally from a byte stream. It is used on the
// client side, where replies arrive on a connection rather than in a single
// buffer. Unlike Decode it blocks until a full value (or an error) has been
// read from the underlying reader.
//
// Thread-safety: a Reader is not safe for concurrent use.
type Reader struct {
	br *bufio.Reader
}

// NewReader creates a Reader on top of r.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r)}
}

// ReadValue reads and decodes the next value from the stream.
// I/O errors from the underlying reader (including io.EOF on a cleanly
// closed connection) are returned as-is; malformed input yields the same
// typed errors as Decode.
func (r *Reader) ReadValue() (Value, error) {
	prefix, err := r.br.ReadByte()
	if err != nil {
		return Value{}, err
	}

	switch Kind(prefix) {
	case KindStatus:
		line, err := r.readLine()
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindStatus, Str: string(line)}, nil

	case KindError:
		line, err := r.readLine()
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindError, Str: string(line)}, nil

	case KindInteger:
		line, err := r.readLine()
		if err != nil {
			return Value{}, err
		}
		n, err := strconv.ParseInt(string(line), 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w %q", ErrBadInteger, line)
		}
		return Value{Kind: KindInteger, Int: n}, nil

	case KindBulk:
		return r.readBulk()

	case KindArray:
		return r.readArray()

	default:
		return Value{}, fmt.Errorf("%w %q", ErrUnknownPrefix, prefix)
	}
}

// readBulk reads a bulk payload body after its '$' prefix byte.
func (r *Reader) readBulk() (Value, error) {
	line, err := r.readLine()
	if err != nil {
		return Value{}, err
	}
	length, err := parseLength(line)
	if err != nil {
		return Value{}, err
	}
	if length == -1 {
		return Value{Kind: KindBulk, Null: true}, nil
	}

	// Read the payload plus its trailing terminator in one go
	body := make([]byte, length+2)
	if _, err := io.ReadFull(r.br, body); err != nil {
		return Value{}, err
	}
	if body[length] != '\r' || body[length+1] != '\n' {
		return Value{}, fmt.Errorf("bulk payload: %w", ErrBadTerminator)
	}

	return Value{Kind: KindBulk, Bulk: body[:length:length]}, nil
}

// readArray reads an array's elements after its '*' prefix byte.
func (r *Reader) readArray() (Value, error) {
	line, err := r.readLine()
	if err != nil {
		return Value{}, err
	}
	count, err := parseLength(line)
	if err != nil {
		return Value{}, err
	}
	if count == -1 {
		return Value{Kind: KindArray, Null: true}, nil
	}

	elems := make([]Value, 0, min(count, 32))
	for i := 0; i < count; i++ {
		elem, err := r.ReadValue()
		if err != nil {
			return Value{}, err
		}
		elems = append(elems, elem)
	}

	return Value{Kind: KindArray, Array: elems}, nil
}

// readLine reads up to the next LF and strips the CRLF terminator.
func (r *Reader) readLine() ([]byte, error) {
	line, err := r.br.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	if len(line) < 2 || line[len(line)-2] != '\r' {
		return nil, ErrBadTerminator
	}
	return line[:len(line)-2], nil
}
