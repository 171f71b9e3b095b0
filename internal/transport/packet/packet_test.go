package packet

import (
	"bytes"
	"testing"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	w := NewWriter(CPosition)
	w.WriteInt16(-5)
	w.WriteUint16(65000)
	w.WriteInt32(-100000)
	w.WriteUint32(4000000000)
	w.WriteString("alice")
	w.WriteBytes([]byte{1, 2, 3})

	r := NewReader(w.Bytes())
	if r.Type() != CPosition {
		t.Fatalf("Type() = %d, want %d", r.Type(), CPosition)
	}
	if v := r.ReadInt16(); v != -5 {
		t.Errorf("ReadInt16() = %d, want -5", v)
	}
	if v := r.ReadUint16(); v != 65000 {
		t.Errorf("ReadUint16() = %d, want 65000", v)
	}
	if v := r.ReadInt32(); v != -100000 {
		t.Errorf("ReadInt32() = %d, want -100000", v)
	}
	if v := r.ReadUint32(); v != 4000000000 {
		t.Errorf("ReadUint32() = %d, want 4000000000", v)
	}
	if v := r.ReadString(); v != "alice" {
		t.Errorf("ReadString() = %q, want %q", v, "alice")
	}
	if v := r.ReadBytes(3); !bytes.Equal(v, []byte{1, 2, 3}) {
		t.Errorf("ReadBytes(3) = %v, want [1 2 3]", v)
	}
}

func TestReaderShortPayloadZeroesRatherThanPanics(t *testing.T) {
	r := NewReader([]byte{CLogin, 0x01})
	if v := r.ReadUint32(); v != 0 {
		t.Errorf("ReadUint32() on short payload = %d, want 0", v)
	}
	if got := r.ReadBytes(10); len(got) != 1 || got[0] != 0x01 {
		t.Errorf("ReadBytes(10) on short payload = %v, want [1]", got)
	}
	if r.Remaining() != 0 {
		t.Errorf("Remaining() after exhausting short payload = %d, want 0", r.Remaining())
	}
}

func TestReaderEmptyPayloadTypeIsZero(t *testing.T) {
	r := NewReader(nil)
	if r.Type() != 0 {
		t.Errorf("Type() on empty payload = %d, want 0", r.Type())
	}
}

func TestWriterLenMatchesBytes(t *testing.T) {
	w := NewWriter(CDropFlags)
	w.WriteByte(7)
	if w.Len() != len(w.Bytes()) {
		t.Errorf("Len() = %d, len(Bytes()) = %d", w.Len(), len(w.Bytes()))
	}
}
