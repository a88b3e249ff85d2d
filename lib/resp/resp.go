package resp

// --------------------------------------------------------------------------
// Value Kinds
// --------------------------------------------------------------------------

// Kind identifies the wire type of a Value. The constant values are the
// protocol's leading type bytes.
type Kind byte

const (
	KindStatus  Kind = '+'
	KindError   Kind = '-'
	KindInteger Kind = ':'
	KindBulk    Kind = '$'
	KindArray   Kind = '*'
)

func (k Kind) String() string {
	switch k {
	case KindStatus:
		return "Status"
	case KindError:
		return "Error"
	case KindInteger:
		return "Integer"
	case KindBulk:
		return "Bulk"
	case KindArray:
		return "Array"
	default:
		return "Unknown"
	}
}

// crlf is the protocol terminator, shared by the decoder and the encoders.
var crlf = []byte("\r\n")

// --------------------------------------------------------------------------
// Value Structure
// --------------------------------------------------------------------------

// Value represents a single protocol value. Which fields are used depends on
// the Kind. A Value is an immutable tree once constructed: arrays own their
// child values and bulk payloads are copies, never aliases of a read buffer.
type Value struct {
	// Kind of value
	Kind Kind

	Str   string  // Used for: Status, Error
	Int   int64   // Used for: Integer
	Bulk  []byte  // Used for: Bulk (nil for the null bulk)
	Array []Value // Used for: Array (nil for the null array)

	// Null marks the explicit absent variants ($-1 and *-1).
	// A null bulk is distinct from an empty one ($0).
	Null bool
}

// Text returns the value's token bytes if it is a textual element (a bulk
// payload or a simple status), which is what command names and arguments
// must be. The boolean reports whether the value qualifies.
func (v Value) Text() ([]byte, bool) {
	if v.Null {
		return nil, false
	}
	switch v.Kind {
	case KindBulk:
		return v.Bulk, true
	case KindStatus:
		return []byte(v.Str), true
	default:
		return nil, false
	}
}

// --------------------------------------------------------------------------
// Value Factory Functions
// --------------------------------------------------------------------------

// NewStatus creates a simple status value
func NewStatus(s string) Value {
	return Value{Kind: KindStatus, Str: s}
}

// NewError creates an error value
func NewError(msg string) Value {
	return Value{Kind: KindError, Str: msg}
}

// NewInteger creates an integer value
func NewInteger(n int64) Value {
	return Value{Kind: KindInteger, Int: n}
}

// NewBulk creates a bulk payload value
func NewBulk(p []byte) Value {
	return Value{Kind: KindBulk, Bulk: p}
}

// NewNullBulk creates the absent bulk payload value ($-1)
func NewNullBulk() Value {
	return Value{Kind: KindBulk, Null: true}
}

// NewArray creates an array value from the given elements
func NewArray(elems ...Value) Value {
	if elems == nil {
		elems = []Value{}
	}
	return Value{Kind: KindArray, Array: elems}
}

// NewNullArray creates the absent array value (*-1)
func NewNullArray() Value {
	return Value{Kind: KindArray, Null: true}
}
