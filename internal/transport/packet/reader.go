// Package packet implements fixed-width wire encoding/decoding for the
// zone's binary client protocol (§6); the opcode-dispatch registry that
// gates handlers by session state lives in package transport. Grounded on
// the teacher's own
// internal/net/packet: the same fixed-offset encoding/binary reader/writer
// shape, narrowed from the teacher's MS950/Big5 string fields (this
// protocol's player/arena names are ASCII-only per §3's sanitization
// rules, so no client-side text encoding concern survives) down to plain
// ASCII.
package packet

import "encoding/binary"

// Reader reads little-endian fields from an inbound payload (datagrams
// arrive in the clear; there is no decryption step).
// Byte 0 is always the packet type.
type Reader struct {
	data []byte
	off  int
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data, off: 1} // skip the type byte
}

func (r *Reader) Type() byte {
	if len(r.data) == 0 {
		return 0
	}
	return r.data[0]
}

// ReadByte reads 1 unsigned byte.
func (r *Reader) ReadByte() byte {
	if r.off >= len(r.data) {
		return 0
	}
	v := r.data[r.off]
	r.off++
	return v
}

// ReadUint16 reads 2 bytes little-endian.
func (r *Reader) ReadUint16() uint16 {
	if r.off+2 > len(r.data) {
		return 0
	}
	v := binary.LittleEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v
}

// ReadInt16 reads 2 bytes little-endian, signed.
func (r *Reader) ReadInt16() int16 {
	return int16(r.ReadUint16())
}

// ReadUint32 reads 4 bytes little-endian.
func (r *Reader) ReadUint32() uint32 {
	if r.off+4 > len(r.data) {
		return 0
	}
	v := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v
}

// ReadInt32 reads 4 bytes little-endian, signed.
func (r *Reader) ReadInt32() int32 {
	return int32(r.ReadUint32())
}

// ReadString reads a null-terminated ASCII string.
func (r *Reader) ReadString() string {
	start := r.off
	for r.off < len(r.data) {
		if r.data[r.off] == 0 {
			s := string(r.data[start:r.off])
			r.off++
			return s
		}
		r.off++
	}
	return string(r.data[start:r.off])
}

// ReadBytes reads n raw bytes.
func (r *Reader) ReadBytes(n int) []byte {
	if r.off+n > len(r.data) {
		remaining := r.data[r.off:]
		r.off = len(r.data)
		return remaining
	}
	b := make([]byte, n)
	copy(b, r.data[r.off:r.off+n])
	r.off += n
	return b
}

// Len reports the total payload size (including the type byte).
func (r *Reader) Len() int { return len(r.data) }

// Remaining reports the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.off }

// Raw returns the full undecoded payload, type byte included. Handlers for
// fixed-layout packets owned by another package's own codec (the position
// packet's §4.7 fan-out layout) read from this instead of field-by-field.
func (r *Reader) Raw() []byte { return r.data }
