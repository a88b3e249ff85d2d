package resp

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// --------------------------------------------------------------------------
// Decode Errors
// --------------------------------------------------------------------------

// Sentinel errors for the decode failure categories. Errors returned by
// Decode wrap one of these, so callers can classify with errors.Is while the
// error text stays descriptive enough to be sent back to a client verbatim.
var (
	ErrUnexpectedEnd = errors.New("unexpected end of input")
	ErrUnknownPrefix = errors.New("unknown type prefix")
	ErrBadInteger    = errors.New("invalid integer")
	ErrBadLength     = errors.New("invalid length")
	ErrBadTerminator = errors.New("invalid terminator")
)

// --------------------------------------------------------------------------
// Decoder
// --------------------------------------------------------------------------

// Decode parses a single value from buf starting at pos.
// It returns the decoded value and the cursor position of the first byte
// after it. Decoding is purely a function of (buf, pos): on error the
// returned Value is the zero value and nothing is partially constructed.
// Bulk payloads are copied out of buf, so a Value stays valid after the
// caller reuses its read buffer.
//
// Bytes after the first complete value are not consumed; callers that expect
// exactly one value can compare the returned position against len(buf).
func Decode(buf []byte, pos int) (Value, int, error) {
	if pos < 0 || pos >= len(buf) {
		return Value{}, pos, ErrUnexpectedEnd
	}

	prefix := buf[pos]
	pos++

	switch Kind(prefix) {
	case KindStatus:
		line, next, err := readLine(buf, pos)
		if err != nil {
			return Value{}, pos, err
		}
		return Value{Kind: KindStatus, Str: string(line)}, next, nil

	case KindError:
		line, next, err := readLine(buf, pos)
		if err != nil {
			return Value{}, pos, err
		}
		return Value{Kind: KindError, Str: string(line)}, next, nil

	case KindInteger:
		line, next, err := readLine(buf, pos)
		if err != nil {
			return Value{}, pos, err
		}
		n, err := strconv.ParseInt(string(line), 10, 64)
		if err != nil {
			return Value{}, pos, fmt.Errorf("%w %q", ErrBadInteger, line)
		}
		return Value{Kind: KindInteger, Int: n}, next, nil

	case KindBulk:
		return decodeBulk(buf, pos)

	case KindArray:
		return decodeArray(buf, pos)

	default:
		return Value{}, pos, fmt.Errorf("%w %q", ErrUnknownPrefix, prefix)
	}
}

// decodeBulk parses a bulk payload. pos points at the first length byte.
func decodeBulk(buf []byte, pos int) (Value, int, error) {
	line, next, err := readLine(buf, pos)
	if err != nil {
		return Value{}, pos, err
	}

	length, err := parseLength(line)
	if err != nil {
		return Value{}, pos, err
	}

	// Case null bulk ($-1): no body follows the length line
	if length == -1 {
		return Value{Kind: KindBulk, Null: true}, next, nil
	}

	// The declared length must fit the remaining input plus its terminator
	if length > len(buf) || next+length+2 > len(buf) {
		return Value{}, pos, fmt.Errorf("bulk payload: %w", ErrUnexpectedEnd)
	}
	if buf[next+length] != '\r' || buf[next+length+1] != '\n' {
		return Value{}, pos, fmt.Errorf("bulk payload: %w", ErrBadTerminator)
	}

	// Copy the payload so the value does not alias the read buffer
	payload := make([]byte, length)
	copy(payload, buf[next:next+length])

	return Value{Kind: KindBulk, Bulk: payload}, next + length + 2, nil
}

// decodeArray parses an array and its elements recursively.
// pos points at the first count byte.
func decodeArray(buf []byte, pos int) (Value, int, error) {
	line, next, err := readLine(buf, pos)
	if err != nil {
		return Value{}, pos, err
	}

	count, err := parseLength(line)
	if err != nil {
		return Value{}, pos, err
	}

	// Case null array (*-1): no elements follow the count line
	if count == -1 {
		return Value{Kind: KindArray, Null: true}, next, nil
	}

	// Cap the preallocation, the element loop bounds the real count
	elems := make([]Value, 0, min(count, 32))
	for i := 0; i < count; i++ {
		elem, n, err := Decode(buf, next)
		if err != nil {
			return Value{}, pos, err
		}
		elems = append(elems, elem)
		next = n
	}

	return Value{Kind: KindArray, Array: elems}, next, nil
}

// --------------------------------------------------------------------------
// Helper Functions
// --------------------------------------------------------------------------

// readLine returns the bytes between pos and the next CRLF, and the position
// of the first byte after the terminator.
func readLine(buf []byte, pos int) ([]byte, int, error) {
	idx := bytes.Index(buf[pos:], crlf)
	if idx < 0 {
		return nil, pos, ErrUnexpectedEnd
	}
	return buf[pos : pos+idx], pos + idx + 2, nil
}

// parseLength parses a bulk length or array count line.
// -1 is the only valid negative value (the null marker).
func parseLength(line []byte) (int, error) {
	n, err := strconv.ParseInt(string(line), 10, 64)
	if err != nil || n < -1 || n > math.MaxInt32 {
		return 0, fmt.Errorf("%w %q", ErrBadLength, line)
	}
	return int(n), nil
}
