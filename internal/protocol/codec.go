package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// MaxStringLen bounds every length-prefixed string on the wire.
const MaxStringLen = 64 * 1024

// Writer appends little-endian fields to a growing buffer. The first
// failure is sticky and reported by Err; later writes are ignored.
type Writer struct {
	buf []byte
	err error
}

// NewWriter creates a Writer with room for sizeHint bytes.
func NewWriter(sizeHint int) *Writer {
	return &Writer{buf: make([]byte, 0, sizeHint)}
}

func (w *Writer) Uint8(v uint8) {
	if w.err == nil {
		w.buf = append(w.buf, v)
	}
}

func (w *Writer) Bool(v bool) {
	if v {
		w.Uint8(1)
	} else {
		w.Uint8(0)
	}
}

func (w *Writer) Uint16(v uint16) {
	if w.err == nil {
		w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
	}
}

func (w *Writer) Uint32(v uint32) {
	if w.err == nil {
		w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
	}
}

func (w *Writer) Uint64(v uint64) {
	if w.err == nil {
		w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
	}
}

func (w *Writer) Float32(v float32) {
	w.Uint32(math.Float32bits(v))
}

// String writes a uint32 length prefix followed by the raw bytes.
func (w *Writer) String(s string) {
	if w.err != nil {
		return
	}
	if len(s) > MaxStringLen {
		w.err = fmt.Errorf("%w: string of %d bytes exceeds %d", ErrInvalidField, len(s), MaxStringLen)
		return
	}
	w.Uint32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

// Blob writes a uint32 length prefix followed by b.
func (w *Writer) Blob(b []byte) {
	if w.err != nil {
		return
	}
	w.Uint32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// Raw appends b with no prefix.
func (w *Writer) Raw(b []byte) {
	if w.err == nil {
		w.buf = append(w.buf, b...)
	}
}

// Fail records err unless an earlier error is already set.
func (w *Writer) Fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

func (w *Writer) Err() error { return w.err }

// Bytes returns the encoded frame, or the first error.
func (w *Writer) Bytes() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	return w.buf, nil
}

// Reader consumes little-endian fields from a frame. Reads past the end set
// a sticky ErrShortBuffer and return zero values.
type Reader struct {
	buf []byte
	off int
	err error
}

func NewReader(data []byte) *Reader {
	return &Reader{buf: data}
}

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.buf)-r.off < n {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrShortBuffer, n, r.off, len(r.buf)-r.off)
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *Reader) Uint8() uint8 {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *Reader) Bool() bool { return r.Uint8() != 0 }

func (r *Reader) Uint16() uint16 {
	if b := r.take(2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

func (r *Reader) Uint32() uint32 {
	if b := r.take(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (r *Reader) Uint64() uint64 {
	if b := r.take(8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

func (r *Reader) Float32() float32 {
	return math.Float32frombits(r.Uint32())
}

func (r *Reader) String() string {
	n := r.Uint32()
	if r.err == nil && n > MaxStringLen {
		r.err = fmt.Errorf("%w: string length %d exceeds %d", ErrInvalidField, n, MaxStringLen)
		return ""
	}
	return string(r.take(int(n)))
}

// Blob reads a uint32 length-prefixed byte slice. The result is a copy.
func (r *Reader) Blob() []byte {
	n := r.Uint32()
	b := r.take(int(n))
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Rest returns a copy of every unread byte.
func (r *Reader) Rest() []byte {
	b := r.take(len(r.buf) - r.off)
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Remaining reports how many bytes are left unread.
func (r *Reader) Remaining() int { return len(r.buf) - r.off }

func (r *Reader) Err() error { return r.err }
