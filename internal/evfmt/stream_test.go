package evfmt

import (
	"bytes"
	"errors"
	"testing"
)

func TestReadLittleEndian(t *testing.T) {
	s := NewStream([]byte{0x34, 0x12, 0x78, 0x56, 0x34, 0x12, 0xff, 0xff})
	u16, err := s.ReadUint16()
	if err != nil {
		t.Fatalf("ReadUint16: %v", err)
	}
	if u16 != 0x1234 {
		t.Errorf("ReadUint16 = 0x%x, want 0x1234", u16)
	}
	u32, err := s.ReadUint32()
	if err != nil {
		t.Fatalf("ReadUint32: %v", err)
	}
	if u32 != 0x12345678 {
		t.Errorf("ReadUint32 = 0x%x, want 0x12345678", u32)
	}
	i16, err := s.ReadInt16()
	if err != nil {
		t.Fatalf("ReadInt16: %v", err)
	}
	if i16 != -1 {
		t.Errorf("ReadInt16 = %d, want -1", i16)
	}
}

func TestReadInt32_Negative(t *testing.T) {
	// Two's complement little-endian -1.
	s := NewStream([]byte{0xff, 0xff, 0xff, 0xff})
	v, err := s.ReadInt32()
	if err != nil {
		t.Fatalf("ReadInt32: %v", err)
	}
	if v != -1 {
		t.Errorf("ReadInt32 = %d, want -1", v)
	}
}

func TestReadUint32BE(t *testing.T) {
	s := NewStream([]byte{0x12, 0x34, 0x56, 0x78})
	v, err := s.ReadUint32BE()
	if err != nil {
		t.Fatalf("ReadUint32BE: %v", err)
	}
	if v != 0x12345678 {
		t.Errorf("ReadUint32BE = 0x%x, want 0x12345678", v)
	}
}

func TestReadTruncated(t *testing.T) {
	s := NewStream([]byte{1, 2})
	if _, err := s.ReadUint32(); !errors.Is(err, ErrTruncated) {
		t.Errorf("ReadUint32 on 2 bytes: err = %v, want ErrTruncated", err)
	}
	// Position must be unchanged after a failed read.
	if s.Position() != 0 {
		t.Errorf("position = %d, want 0", s.Position())
	}
}

func TestReadCBytes(t *testing.T) {
	s := NewStream([]byte("hello\x00world\x00"))
	got, err := s.ReadCBytes()
	if err != nil {
		t.Fatalf("ReadCBytes: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}
	got, err = s.ReadCBytes()
	if err != nil {
		t.Fatalf("ReadCBytes: %v", err)
	}
	if string(got) != "world" {
		t.Errorf("got %q, want %q", got, "world")
	}
}

func TestReadCBytes_Unterminated(t *testing.T) {
	s := NewStream([]byte("oops"))
	if _, err := s.ReadCBytes(); !errors.Is(err, ErrUnterminated) {
		t.Errorf("err = %v, want ErrUnterminated", err)
	}
	if s.Position() != 0 {
		t.Errorf("position = %d, want 0", s.Position())
	}
}

func TestStreamPosition(t *testing.T) {
	s := NewStreamAt([]byte{0, 0, 0, 5}, 3)
	if s.Position() != 3 {
		t.Errorf("position = %d, want 3", s.Position())
	}
	if s.Remaining() != 1 {
		t.Errorf("remaining = %d, want 1", s.Remaining())
	}
	b, err := s.ReadByte()
	if err != nil {
		t.Fatal(err)
	}
	if b != 5 {
		t.Errorf("ReadByte = %d, want 5", b)
	}
}

func TestPeekByte(t *testing.T) {
	s := NewStream([]byte{7, 8})
	b, err := s.PeekByte()
	if err != nil {
		t.Fatal(err)
	}
	if b != 7 {
		t.Errorf("PeekByte = %d, want 7", b)
	}
	if s.Position() != 0 {
		t.Errorf("position = %d after peek, want 0", s.Position())
	}
}

func TestWriterRoundTrip(t *testing.T) {
	w := NewWriter()
	w.WriteByte(0x01)
	w.WriteInt16(-2)
	w.WriteInt32(-1)
	w.WriteUint32BE(0x11223344)
	w.WriteCBytes([]byte("abc"))
	want := []byte{0x01, 0xfe, 0xff, 0xff, 0xff, 0xff, 0xff, 0x11, 0x22, 0x33, 0x44, 'a', 'b', 'c', 0}
	if !bytes.Equal(w.Bytes(), want) {
		t.Errorf("Bytes() = % x, want % x", w.Bytes(), want)
	}
}

func TestWriterPatch(t *testing.T) {
	w := NewWriter()
	w.WriteUint32(0)
	w.WriteByte(0xaa)
	if err := w.PatchUint32(0, 0xdeadbeef); err != nil {
		t.Fatalf("PatchUint32: %v", err)
	}
	want := []byte{0xef, 0xbe, 0xad, 0xde, 0xaa}
	if !bytes.Equal(w.Bytes(), want) {
		t.Errorf("Bytes() = % x, want % x", w.Bytes(), want)
	}
	if err := w.PatchUint32(2, 0); err == nil {
		t.Error("PatchUint32 past end: expected error")
	}
}
