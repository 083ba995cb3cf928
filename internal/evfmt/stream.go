// Event-binary stream reader.
// All multi-byte values are little-endian except where a BE variant is named.
package evfmt

import (
	"encoding/binary"
	"errors"
)

var (
	// ErrTruncated reports a read past the end of the data.
	ErrTruncated = errors.New("evfmt: unexpected end of data")
	// ErrUnterminated reports text with no terminator before end of data.
	ErrUnterminated = errors.New("evfmt: unterminated text")
)

// Stream reads event-script data from an in-memory byte source.
type Stream struct {
	data []byte
	pos  int
}

// NewStream creates a stream over the given data.
func NewStream(data []byte) *Stream {
	return &Stream{data: data}
}

// NewStreamAt creates a stream positioned at offset within data.
func NewStreamAt(data []byte, offset int) *Stream {
	if offset > len(data) {
		offset = len(data)
	}
	return &Stream{data: data, pos: offset}
}

// Position returns the current read position.
func (s *Stream) Position() int { return s.pos }

// SetPosition sets the read position.
func (s *Stream) SetPosition(pos int) {
	if pos > len(s.data) {
		pos = len(s.data)
	}
	s.pos = pos
}

// Remaining returns bytes left to read.
func (s *Stream) Remaining() int { return len(s.data) - s.pos }

// Len returns the total length of the underlying data.
func (s *Stream) Len() int { return len(s.data) }

// ReadByte reads a single byte.
func (s *Stream) ReadByte() (byte, error) {
	if s.pos >= len(s.data) {
		return 0, ErrTruncated
	}
	b := s.data[s.pos]
	s.pos++
	return b, nil
}

// PeekByte returns the next byte without consuming it.
func (s *Stream) PeekByte() (byte, error) {
	if s.pos >= len(s.data) {
		return 0, ErrTruncated
	}
	return s.data[s.pos], nil
}

// ReadBytes reads n bytes into a new slice.
func (s *Stream) ReadBytes(n int) ([]byte, error) {
	if n < 0 || s.pos+n > len(s.data) {
		return nil, ErrTruncated
	}
	out := make([]byte, n)
	copy(out, s.data[s.pos:s.pos+n])
	s.pos += n
	return out, nil
}

// ReadInt8 reads a signed byte.
func (s *Stream) ReadInt8() (int8, error) {
	b, err := s.ReadByte()
	return int8(b), err
}

// ReadUint16 reads a little-endian uint16.
func (s *Stream) ReadUint16() (uint16, error) {
	if s.pos+2 > len(s.data) {
		return 0, ErrTruncated
	}
	v := binary.LittleEndian.Uint16(s.data[s.pos:])
	s.pos += 2
	return v, nil
}

// ReadInt16 reads a little-endian int16.
func (s *Stream) ReadInt16() (int16, error) {
	v, err := s.ReadUint16()
	return int16(v), err
}

// ReadUint32 reads a little-endian uint32.
func (s *Stream) ReadUint32() (uint32, error) {
	if s.pos+4 > len(s.data) {
		return 0, ErrTruncated
	}
	v := binary.LittleEndian.Uint32(s.data[s.pos:])
	s.pos += 4
	return v, nil
}

// ReadInt32 reads a little-endian int32.
func (s *Stream) ReadInt32() (int32, error) {
	v, err := s.ReadUint32()
	return int32(v), err
}

// ReadUint32BE reads a big-endian uint32. Only RGBA color payloads use this.
func (s *Stream) ReadUint32BE() (uint32, error) {
	if s.pos+4 > len(s.data) {
		return 0, ErrTruncated
	}
	v := binary.BigEndian.Uint32(s.data[s.pos:])
	s.pos += 4
	return v, nil
}

// ReadCBytes reads zero-terminated raw bytes, consuming the terminator.
// The returned slice does not include the terminator.
func (s *Stream) ReadCBytes() ([]byte, error) {
	start := s.pos
	for s.pos < len(s.data) {
		if s.data[s.pos] == 0 {
			out := make([]byte, s.pos-start)
			copy(out, s.data[start:s.pos])
			s.pos++
			return out, nil
		}
		s.pos++
	}
	s.pos = start
	return nil, ErrUnterminated
}

// Skip advances the position by n bytes.
func (s *Stream) Skip(n int) error {
	if s.pos+n > len(s.data) {
		return ErrTruncated
	}
	s.pos += n
	return nil
}
