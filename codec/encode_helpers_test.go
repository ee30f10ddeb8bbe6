package codec

// This file provides minimal hand-rolled encoders for the wire shapes
// package codec decodes. Production sessions never encode these (the node
// is always the producer), but tests need a way to build valid fixtures
// without duplicating the binary layout by hand in every test file.

import "encoding/binary"

type writer struct {
	buf []byte
}

func (w *writer) byte(b byte) { w.buf = append(w.buf, b) }

func (w *writer) bytes(b []byte) { w.buf = append(w.buf, b...) }

func (w *writer) bool(v bool) {
	if v {
		w.byte(1)
	} else {
		w.byte(0)
	}
}

func (w *writer) varuint32(v uint32) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		w.byte(b)
		if v == 0 {
			break
		}
	}
}

func (w *writer) varuint64(v uint64) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		w.byte(b)
		if v == 0 {
			break
		}
	}
}

func (w *writer) varBytes(b []byte) {
	w.varuint32(uint32(len(b)))
	w.bytes(b)
}

func (w *writer) string(s string) { w.varBytes([]byte(s)) }

func (w *writer) uint16le(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.bytes(b[:])
}

func (w *writer) uint32le(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.bytes(b[:])
}

func (w *writer) uint64le(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.bytes(b[:])
}

func (w *writer) position(blockNum uint32, id [32]byte) {
	w.uint32le(blockNum)
	w.bytes(id[:])
}
