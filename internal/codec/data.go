package codec

import (
	"fmt"

	"unstage/internal/evfmt"
	"unstage/internal/ir"
)

// DecodeData reads one data block payload at the stream position. For the
// array kinds, size is the extent in bytes, which is kept verbatim; the
// self-sized kinds (strings, object records) read their own length and the
// caller checks they stay inside their extent. Pointer arrays read 32-bit
// entries until a value of zero or less, which is dropped.
func DecodeData(s *evfmt.Stream, kind ir.DataKind, size int) (*ir.Data, error) {
	pos := s.Position()
	d := &ir.Data{Kind: kind}
	switch kind {
	case ir.DataString:
		raw, err := s.ReadCBytes()
		if err != nil {
			return nil, fmt.Errorf("codec: string data at 0x%x: %w", pos, err)
		}
		d.Raw = raw

	case ir.DataPtr:
		end := pos + size
		for s.Position() < end {
			v, err := s.ReadInt32()
			if err != nil {
				return nil, fmt.Errorf("codec: pointer data at 0x%x: %w", pos, err)
			}
			if v <= 0 {
				break
			}
			d.Ptrs = append(d.Ptrs, ir.ToOffset(uint32(v)))
		}

	case ir.DataObjBone:
		obj, err := s.ReadInt16()
		if err != nil {
			return nil, fmt.Errorf("codec: bone data at 0x%x: %w", pos, err)
		}
		count, err := s.ReadInt16()
		if err != nil {
			return nil, fmt.Errorf("codec: bone data at 0x%x: %w", pos, err)
		}
		if count < 0 {
			return nil, fmt.Errorf("codec: bone data at 0x%x has count %d: %w", pos, count, ErrMalformed)
		}
		bone := &ir.ObjBone{Obj: obj, Path: make([]int16, count)}
		for i := range bone.Path {
			if bone.Path[i], err = s.ReadInt16(); err != nil {
				return nil, fmt.Errorf("codec: bone data at 0x%x: %w", pos, err)
			}
		}
		d.Bone = bone

	case ir.DataObjPair:
		first, err := s.ReadInt16()
		if err != nil {
			return nil, fmt.Errorf("codec: pair data at 0x%x: %w", pos, err)
		}
		second, err := s.ReadInt16()
		if err != nil {
			return nil, fmt.Errorf("codec: pair data at 0x%x: %w", pos, err)
		}
		d.Pair = &ir.ObjPair{First: first, Second: second}

	default:
		raw, err := s.ReadBytes(size)
		if err != nil {
			return nil, fmt.Errorf("codec: %v data at 0x%x: %w", kind, pos, err)
		}
		d.Raw = raw
	}
	return d, nil
}

// EncodeData writes one data block payload, reporting pointer-array label
// entries to the fix-up sink and appending their zero terminator.
func EncodeData(w *evfmt.Writer, d *ir.Data, fx Fixups) error {
	switch d.Kind {
	case ir.DataString:
		w.WriteCBytes(d.Raw)

	case ir.DataPtr:
		for _, p := range d.Ptrs {
			if label, ok := p.Label(); ok {
				fx.Label(w.Len(), label)
				w.WriteUint32(0)
				continue
			}
			off, _ := p.Offset()
			w.WriteUint32(off)
		}
		w.WriteUint32(0)

	case ir.DataObjBone:
		if d.Bone == nil {
			return fmt.Errorf("%w: bone data has no record", ErrBadOperands)
		}
		w.WriteInt16(d.Bone.Obj)
		if len(d.Bone.Path) > 0x7fff {
			return fmt.Errorf("%w: bone path has %d entries", ErrTooLarge, len(d.Bone.Path))
		}
		w.WriteInt16(int16(len(d.Bone.Path)))
		for _, p := range d.Bone.Path {
			w.WriteInt16(p)
		}

	case ir.DataObjPair:
		if d.Pair == nil {
			return fmt.Errorf("%w: pair data has no record", ErrBadOperands)
		}
		w.WriteInt16(d.Pair.First)
		w.WriteInt16(d.Pair.Second)

	default:
		w.WriteBytes(d.Raw)
	}
	return nil
}
