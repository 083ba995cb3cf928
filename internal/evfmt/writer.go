package evfmt

import (
	"encoding/binary"
	"fmt"
)

// Writer builds an event-binary byte buffer. Writes always append;
// previously written positions can be patched once their final values
// are known.
type Writer struct {
	buf []byte
}

// NewWriter creates an empty writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

// Bytes returns the written buffer. The slice is owned by the writer.
func (w *Writer) Bytes() []byte { return w.buf }

// WriteByte appends a single byte. The error is always nil.
func (w *Writer) WriteByte(b byte) error {
	w.buf = append(w.buf, b)
	return nil
}

// WriteBytes appends raw bytes.
func (w *Writer) WriteBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// WriteInt8 appends a signed byte.
func (w *Writer) WriteInt8(v int8) {
	w.buf = append(w.buf, byte(v))
}

// WriteUint16 appends a little-endian uint16.
func (w *Writer) WriteUint16(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

// WriteInt16 appends a little-endian int16.
func (w *Writer) WriteInt16(v int16) {
	w.WriteUint16(uint16(v))
}

// WriteUint32 appends a little-endian uint32.
func (w *Writer) WriteUint32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

// WriteInt32 appends a little-endian int32.
func (w *Writer) WriteInt32(v int32) {
	w.WriteUint32(uint32(v))
}

// WriteUint32BE appends a big-endian uint32.
func (w *Writer) WriteUint32BE(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

// WriteCBytes appends raw bytes followed by a zero terminator.
func (w *Writer) WriteCBytes(b []byte) {
	w.buf = append(w.buf, b...)
	w.buf = append(w.buf, 0)
}

// PatchUint16 overwrites a previously written little-endian uint16.
func (w *Writer) PatchUint16(at int, v uint16) error {
	if at < 0 || at+2 > len(w.buf) {
		return fmt.Errorf("evfmt: patch at %d outside buffer of %d bytes", at, len(w.buf))
	}
	binary.LittleEndian.PutUint16(w.buf[at:], v)
	return nil
}

// PatchUint32 overwrites a previously written little-endian uint32.
func (w *Writer) PatchUint32(at int, v uint32) error {
	if at < 0 || at+4 > len(w.buf) {
		return fmt.Errorf("evfmt: patch at %d outside buffer of %d bytes", at, len(w.buf))
	}
	binary.LittleEndian.PutUint32(w.buf[at:], v)
	return nil
}
