package kv

import (
	"encoding/binary"
	"fmt"
	"io"
)

// maxRecordLen bounds the length fields of a snapshot record. The format has
// no checksum, so an absurd length is the only way to notice a corrupt or
// truncated length field before trying to allocate it.
const maxRecordLen = 1 << 32

// --------------------------------------------------------------------------
// Snapshot Record Codec
// --------------------------------------------------------------------------

// WriteRecord writes a single key-value record to w:
//
//	key length   uint64, little endian
//	key bytes
//	value length uint64, little endian
//	value bytes
//
// A snapshot is a plain concatenation of such records with no header or
// trailer, so records can only be read back in sequence.
func WriteRecord(w io.Writer, key string, value []byte) error {
	// Write key length and key
	if err := binary.Write(w, binary.LittleEndian, uint64(len(key))); err != nil {
		return err
	}
	if _, err := io.WriteString(w, key); err != nil {
		return err
	}

	// Write value length and value
	if err := binary.Write(w, binary.LittleEndian, uint64(len(value))); err != nil {
		return err
	}
	_, err := w.Write(value)
	return err
}

// ReadRecord reads the next key-value record from r.
//
// It returns io.EOF only when the stream ends exactly on a record boundary,
// which is the normal end of a snapshot. A stream that ends inside a record
// yields io.ErrUnexpectedEOF instead, so a torn or truncated snapshot is
// never silently loaded as a shorter one.
func ReadRecord(r io.Reader) (string, []byte, error) {
	// Read key length; io.EOF here is the clean end of the stream
	keyLen, err := readLength(r)
	if err != nil {
		return "", nil, err
	}

	// Read key bytes
	key := make([]byte, keyLen)
	if _, err := io.ReadFull(r, key); err != nil {
		return "", nil, noEOF(err)
	}

	// Read value length
	valueLen, err := readLength(r)
	if err != nil {
		return "", nil, noEOF(err)
	}

	// Read value bytes
	value := make([]byte, valueLen)
	if _, err := io.ReadFull(r, value); err != nil {
		return "", nil, noEOF(err)
	}

	return string(key), value, nil
}

// readLength reads one fixed-width length field. binary.Read consumes all
// eight bytes or fails, a partial field surfaces as io.ErrUnexpectedEOF.
func readLength(r io.Reader) (uint64, error) {
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return 0, err
	}
	if n > maxRecordLen {
		return 0, fmt.Errorf("snapshot record length %d exceeds limit, file is corrupt", n)
	}
	return n, nil
}

// noEOF converts io.EOF into io.ErrUnexpectedEOF for reads that sit in the
// middle of a record, where running out of input is never a clean end.
func noEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
