package resp

import "strconv"

// --------------------------------------------------------------------------
// Reply Helpers
// --------------------------------------------------------------------------

// The helpers below produce the handful of reply shapes the server sends.
// They are pure functions returning freshly allocated byte slices, safe to
// hand to a socket write without further copying.

// EncodeOK returns the fixed status reply "+OK\r\n".
func EncodeOK() []byte {
	return []byte("+OK\r\n")
}

// EncodeError returns an error reply "-<msg>\r\n".
func EncodeError(msg string) []byte {
	b := make([]byte, 0, 1+len(msg)+2)
	b = append(b, '-')
	b = append(b, msg...)
	return append(b, crlf...)
}

// EncodeInteger returns an integer reply ":<n>\r\n".
func EncodeInteger(n int64) []byte {
	b := make([]byte, 0, 16)
	b = append(b, ':')
	b = strconv.AppendInt(b, n, 10)
	return append(b, crlf...)
}

// EncodeBulk returns a bulk payload reply "$<len>\r\n<p>\r\n".
// An empty payload encodes as "$0\r\n\r\n", which is distinct from the null
// reply produced by EncodeNull.
func EncodeBulk(p []byte) []byte {
	b := make([]byte, 0, len(p)+16)
	b = append(b, '$')
	b = strconv.AppendInt(b, int64(len(p)), 10)
	b = append(b, crlf...)
	b = append(b, p...)
	return append(b, crlf...)
}

// EncodeNull returns the fixed null bulk reply "$-1\r\n".
func EncodeNull() []byte {
	return []byte("$-1\r\n")
}

// EncodeCommand encodes a client command as an array of bulk payloads,
// e.g. EncodeCommand([]byte("GET"), []byte("foo")).
func EncodeCommand(args ...[]byte) []byte {
	b := make([]byte, 0, 32)
	b = append(b, '*')
	b = strconv.AppendInt(b, int64(len(args)), 10)
	b = append(b, crlf...)
	for _, arg := range args {
		b = append(b, '$')
		b = strconv.AppendInt(b, int64(len(arg)), 10)
		b = append(b, crlf...)
		b = append(b, arg...)
		b = append(b, crlf...)
	}
	return b
}

// --------------------------------------------------------------------------
// General Encoder
// --------------------------------------------------------------------------

// Encode serializes a value to its wire form. It is the round-trip partner
// of Decode: Decode(Encode(v), 0) reconstructs an equal value, including
// nested arrays and the null variants.
func Encode(v Value) []byte {
	return appendValue(nil, v)
}

func appendValue(b []byte, v Value) []byte {
	switch v.Kind {
	case KindStatus:
		b = append(b, '+')
		b = append(b, v.Str...)
		b = append(b, crlf...)

	case KindError:
		b = append(b, '-')
		b = append(b, v.Str...)
		b = append(b, crlf...)

	case KindInteger:
		b = append(b, ':')
		b = strconv.AppendInt(b, v.Int, 10)
		b = append(b, crlf...)

	case KindBulk:
		if v.Null {
			return append(b, "$-1\r\n"...)
		}
		b = append(b, '$')
		b = strconv.AppendInt(b, int64(len(v.Bulk)), 10)
		b = append(b, crlf...)
		b = append(b, v.Bulk...)
		b = append(b, crlf...)

	case KindArray:
		if v.Null {
			return append(b, "*-1\r\n"...)
		}
		b = append(b, '*')
		b = strconv.AppendInt(b, int64(len(v.Array)), 10)
		b = append(b, crlf...)
		for _, elem := range v.Array {
			b = appendValue(b, elem)
		}
	}

	return b
}
