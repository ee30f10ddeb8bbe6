package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/telosevm/shipcore/shiperr"
)

// Reader walks a byte slice using the node's wire encoding: LEB128 varints
// for lengths/ordinals, little-endian fixed-width integers, and
// length-prefixed blobs for variable data.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf for sequential decode. The returned Reader does not
// copy buf.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Remaining reports how many bytes are left to read.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.pos
}

// Byte reads a single byte.
func (r *Reader) Byte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, fmt.Errorf("codec: read byte past end of buffer")
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

// Bool reads a one-byte boolean, non-zero meaning true.
func (r *Reader) Bool() (bool, error) {
	b, err := r.Byte()
	return b != 0, err
}

// Bytes reads n raw bytes.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, fmt.Errorf("codec: read %d bytes past end of buffer", n)
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

// VarUint32 reads an unsigned LEB128-encoded 32-bit integer.
func (r *Reader) VarUint32() (uint32, error) {
	var result uint32
	var shift uint
	for {
		b, err := r.Byte()
		if err != nil {
			return 0, err
		}
		result |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
		if shift > 35 {
			return 0, fmt.Errorf("codec: varuint32 overflow")
		}
	}
	return result, nil
}

// VarUint64 reads an unsigned LEB128-encoded 64-bit integer.
func (r *Reader) VarUint64() (uint64, error) {
	var result uint64
	var shift uint
	for {
		b, err := r.Byte()
		if err != nil {
			return 0, err
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
		if shift > 63 {
			return 0, fmt.Errorf("codec: varuint64 overflow")
		}
	}
	return result, nil
}

// VarBytes reads a varuint32 length prefix followed by that many bytes.
func (r *Reader) VarBytes() ([]byte, error) {
	n, err := r.VarUint32()
	if err != nil {
		return nil, err
	}
	return r.Bytes(int(n))
}

// String reads a length-prefixed UTF-8 string.
func (r *Reader) String() (string, error) {
	b, err := r.VarBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Uint16LE reads a fixed-width little-endian uint16.
func (r *Reader) Uint16LE() (uint16, error) {
	b, err := r.Bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// Uint32LE reads a fixed-width little-endian uint32.
func (r *Reader) Uint32LE() (uint32, error) {
	b, err := r.Bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// Uint64LE reads a fixed-width little-endian uint64.
func (r *Reader) Uint64LE() (uint64, error) {
	b, err := r.Bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// Optional reads the one-byte presence flag and, if set, decodes the value
// with fn.
func Optional[T any](r *Reader, fn func(*Reader) (T, error)) (T, bool, error) {
	var zero T
	present, err := r.Bool()
	if err != nil || !present {
		return zero, false, err
	}
	v, err := fn(r)
	return v, err == nil, err
}

// DecodeMode selects whether a top-level decode must consume the entire
// buffer.
type DecodeMode int

const (
	// Relaxed allows trailing bytes (used for nested/partial decodes).
	Relaxed DecodeMode = iota
	// CheckLength requires the buffer to be fully consumed.
	CheckLength
)

// Decode runs fn over data under mode, enforcing CheckLength's
// full-consumption requirement. Every top-level decode in this package uses
// CheckLength per §4.1.
func Decode[T any](data []byte, mode DecodeMode, fn func(*Reader) (T, error)) (T, error) {
	r := NewReader(data)
	v, err := fn(r)
	if err != nil {
		var zero T
		return zero, err
	}
	if mode == CheckLength && r.Remaining() != 0 {
		var zero T
		return zero, fmt.Errorf("%w: %d bytes left", shiperr.ErrTrailingBytes, r.Remaining())
	}
	return v, nil
}
