package codec

import "encoding/binary"

// Writer builds a byte buffer using the same wire encoding Reader consumes:
// LEB128 varints, little-endian fixed-width integers, length-prefixed
// blobs. Used to encode the two request frames this pipeline sends
// upstream (get_blocks_request_v0, get_blocks_ack_request_v0); decode-side
// production code never needs a Writer, only tests building fixtures do,
// which is why those use their own package-private helper instead.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the buffer built so far. The caller must not retain it
// across further writes.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Byte appends a single byte.
func (w *Writer) Byte(b byte) {
	w.buf = append(w.buf, b)
}

// Bool appends a one-byte boolean.
func (w *Writer) Bool(b bool) {
	if b {
		w.Byte(1)
	} else {
		w.Byte(0)
	}
}

// RawBytes appends raw bytes with no length prefix.
func (w *Writer) RawBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// VarUint32 appends an unsigned LEB128-encoded 32-bit integer.
func (w *Writer) VarUint32(v uint32) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		w.Byte(b)
		if v == 0 {
			break
		}
	}
}

// VarBytes appends a varuint32 length prefix followed by b.
func (w *Writer) VarBytes(b []byte) {
	w.VarUint32(uint32(len(b)))
	w.RawBytes(b)
}

// String appends a length-prefixed UTF-8 string.
func (w *Writer) String(s string) {
	w.VarBytes([]byte(s))
}

// Uint32LE appends a fixed-width little-endian uint32.
func (w *Writer) Uint32LE(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.RawBytes(b[:])
}
