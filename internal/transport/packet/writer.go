package packet

import "encoding/binary"

// Writer builds an outbound packet. All multi-byte writes are little-endian.
type Writer struct {
	buf []byte
}

func NewWriter(packetType byte) *Writer {
	w := &Writer{buf: make([]byte, 0, 64)}
	w.WriteByte(packetType)
	return w
}

func (w *Writer) WriteByte(v byte) {
	w.buf = append(w.buf, v)
}

func (w *Writer) WriteUint16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) WriteInt16(v int16) { w.WriteUint16(uint16(v)) }

func (w *Writer) WriteUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) WriteInt32(v int32) { w.WriteUint32(uint32(v)) }

// WriteString writes a null-terminated ASCII string.
func (w *Writer) WriteString(s string) {
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
}

func (w *Writer) WriteBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// Bytes returns the built packet.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the current length.
func (w *Writer) Len() int { return len(w.buf) }
