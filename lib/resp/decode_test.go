package resp

import (
	"errors"
	"reflect"
	"testing"
)

// TestDecodeWellFormed tests that every value kind decodes to the expected
// typed value and cursor position
func TestDecodeWellFormed(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Value
		wantPos int
	}{
		{"status", "+OK\r\n", NewStatus("OK"), 5},
		{"empty status", "+\r\n", NewStatus(""), 3},
		{"error", "-ERR unknown command\r\n", NewError("ERR unknown command"), 22},
		{"integer", ":1000\r\n", NewInteger(1000), 7},
		{"zero integer", ":0\r\n", NewInteger(0), 4},
		{"negative integer", ":-42\r\n", NewInteger(-42), 6},
		{"signed integer", ":+7\r\n", NewInteger(7), 5},
		{"bulk", "$3\r\nfoo\r\n", NewBulk([]byte("foo")), 9},
		{"empty bulk", "$0\r\n\r\n", NewBulk([]byte{}), 6},
		{"bulk with embedded terminator", "$4\r\na\r\nb\r\n", NewBulk([]byte("a\r\nb")), 10},
		{"null bulk", "$-1\r\n", NewNullBulk(), 5},
		{"empty array", "*0\r\n", NewArray(), 4},
		{"null array", "*-1\r\n", NewNullArray(), 5},
		{
			"command array",
			"*3\r\n$3\r\nSET\r\n$3\r\nfoo\r\n$3\r\nbar\r\n",
			NewArray(NewBulk([]byte("SET")), NewBulk([]byte("foo")), NewBulk([]byte("bar"))),
			31,
		},
		{
			"mixed array",
			"*4\r\n+OK\r\n:-1\r\n$-1\r\n*-1\r\n",
			NewArray(NewStatus("OK"), NewInteger(-1), NewNullBulk(), NewNullArray()),
			24,
		},
		{
			"nested array",
			"*2\r\n*2\r\n:1\r\n:2\r\n*1\r\n$1\r\nx\r\n",
			NewArray(
				NewArray(NewInteger(1), NewInteger(2)),
				NewArray(NewBulk([]byte("x"))),
			),
			27,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, pos, err := Decode([]byte(tt.input), 0)
			if err != nil {
				t.Fatalf("Decode(%q) failed: %v", tt.input, err)
			}
			if pos != tt.wantPos {
				t.Errorf("Decode(%q) position = %d, expected %d", tt.input, pos, tt.wantPos)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Decode(%q) = %+v, expected %+v", tt.input, got, tt.want)
			}
		})
	}
}

// TestDecodeMalformed tests that malformed input yields the right decode
// error category and never a panic
func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"empty input", "", ErrUnexpectedEnd},
		{"unknown prefix", "xfoo\r\n", ErrUnknownPrefix},
		{"status without terminator", "+OK", ErrUnexpectedEnd},
		{"status with bare LF", "+OK\n", ErrUnexpectedEnd},
		{"integer not a number", ":abc\r\n", ErrBadInteger},
		{"integer empty span", ":\r\n", ErrBadInteger},
		{"integer trailing garbage", ":12x\r\n", ErrBadInteger},
		{"bulk length not a number", "$abc\r\nfoo\r\n", ErrBadLength},
		{"bulk length below -1", "$-2\r\n", ErrBadLength},
		{"bulk length past end", "$10\r\nfoo\r\n", ErrUnexpectedEnd},
		{"bulk truncated body", "$3\r\nfo", ErrUnexpectedEnd},
		{"bulk wrong terminator", "$3\r\nfooXY", ErrBadTerminator},
		{"bulk missing length line", "$", ErrUnexpectedEnd},
		{"array count not a number", "*x\r\n", ErrBadLength},
		{"array count below -1", "*-2\r\n", ErrBadLength},
		{"array missing elements", "*2\r\n+OK\r\n", ErrUnexpectedEnd},
		{"array bad element", "*1\r\n:nope\r\n", ErrBadInteger},
		{"array huge count", "*1000000\r\n+OK\r\n", ErrUnexpectedEnd},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode([]byte(tt.input), 0)
			if err == nil {
				t.Fatalf("Decode(%q) succeeded, expected error %v", tt.input, tt.wantErr)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Decode(%q) error = %v, expected %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

// TestDecodeCursor tests decoding from a non-zero cursor and that trailing
// bytes after a complete value are left unconsumed
func TestDecodeCursor(t *testing.T) {
	buf := []byte("+first\r\n:2\r\ntrailing")

	v, pos, err := Decode(buf, 0)
	if err != nil {
		t.Fatalf("Decode at 0 failed: %v", err)
	}
	if !reflect.DeepEqual(v, NewStatus("first")) {
		t.Errorf("Decode at 0 = %+v, expected status 'first'", v)
	}
	if pos != 8 {
		t.Fatalf("Decode at 0 position = %d, expected 8", pos)
	}

	v, pos, err = Decode(buf, pos)
	if err != nil {
		t.Fatalf("Decode at 8 failed: %v", err)
	}
	if !reflect.DeepEqual(v, NewInteger(2)) {
		t.Errorf("Decode at 8 = %+v, expected integer 2", v)
	}
	if pos != 12 {
		t.Errorf("Decode at 8 position = %d, expected 12", pos)
	}
}

// TestDecodeCopiesPayload tests that a decoded bulk payload does not alias
// the input buffer
func TestDecodeCopiesPayload(t *testing.T) {
	buf := []byte("$3\r\nfoo\r\n")

	v, _, err := Decode(buf, 0)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	buf[4] = 'X'
	if string(v.Bulk) != "foo" {
		t.Errorf("payload changed to %q after the input buffer was reused", v.Bulk)
	}
}

func BenchmarkDecodeCommand(b *testing.B) {
	buf := []byte("*3\r\n$3\r\nSET\r\n$3\r\nfoo\r\n$3\r\nbar\r\n")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := Decode(buf, 0); err != nil {
			b.Fatal(err)
		}
	}
}
