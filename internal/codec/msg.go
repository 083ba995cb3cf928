package codec

import (
	"bytes"
	"fmt"

	"unstage/internal/evfmt"
	"unstage/internal/ir"
	"unstage/internal/opcode"
)

// Limits imposed by the game's message buffer.
const (
	maxMsgSize  = 2048
	maxMsgChars = 400
)

// decodeMsg reads a message command list: a 4-byte absolute end offset,
// then commands and characters until END. Consecutive characters coalesce
// into one text operand; '$' decodes as '"'. The end offset must match
// where the stream actually ends.
func decodeMsg(s *evfmt.Stream, cmd *ir.Command) error {
	pos := s.Position()
	end, err := s.ReadUint32()
	if err != nil {
		return fmt.Errorf("codec: %v at 0x%x: %w", cmd.Opcode, pos, err)
	}
	for {
		bpos := s.Position()
		b, err := s.ReadByte()
		if err != nil {
			return fmt.Errorf("codec: %v at 0x%x: %w", cmd.Opcode, bpos, err)
		}
		if opcode.MsgIsChar(b) {
			text := []byte{unescapeChar(b)}
			for {
				nb, err := s.PeekByte()
				if err != nil || !opcode.MsgIsChar(nb) {
					break
				}
				s.Skip(1)
				text = append(text, unescapeChar(nb))
			}
			mc := &ir.MsgCmd{Opcode: opcode.MsgText, Operands: []ir.Operand{ir.Text(text)}}
			cmd.Operands = append(cmd.Operands, mc)
			continue
		}
		op := opcode.Msg(b)
		if op == opcode.MsgEnd {
			break
		}
		mc, err := decodeMsgCmd(s, op, bpos)
		if err != nil {
			return err
		}
		cmd.Operands = append(cmd.Operands, mc)
	}
	if s.Position() != int(end) {
		return fmt.Errorf("codec: %v at 0x%x ends at 0x%x but declares 0x%x: %w",
			cmd.Opcode, pos, s.Position(), end, ErrMalformed)
	}
	return nil
}

func decodeMsgCmd(s *evfmt.Stream, op opcode.Msg, pos int) (*ir.MsgCmd, error) {
	mc := &ir.MsgCmd{Opcode: op}
	fail := func(err error) (*ir.MsgCmd, error) {
		return nil, fmt.Errorf("codec: message %v at 0x%x: %w", op, pos, err)
	}
	switch op {
	case opcode.MsgSpeed, opcode.MsgWait, opcode.MsgVoice, opcode.MsgSize,
		opcode.MsgColor, opcode.MsgProportional, opcode.MsgIcon, opcode.MsgCenter:
		v, err := s.ReadByte()
		if err != nil {
			return fail(err)
		}
		mc.Operands = []ir.Operand{ir.U8(v)}

	case opcode.MsgAnim:
		flags, err := s.ReadByte()
		if err != nil {
			return fail(err)
		}
		obj, err := s.ReadInt16()
		if err != nil {
			return fail(err)
		}
		anim, err := s.ReadInt32()
		if err != nil {
			return fail(err)
		}
		mc.Operands = []ir.Operand{ir.U8(flags), ir.I16(obj), ir.I32(anim)}

	case opcode.MsgSfx:
		id, err := s.ReadUint32()
		if err != nil {
			return fail(err)
		}
		sub, err := s.ReadInt8()
		if err != nil {
			return fail(err)
		}
		mc.Operands = []ir.Operand{ir.U32(id), ir.I8(sub)}
		switch sub {
		case -1, 0, 1, 5, 6:
		case 2, 3:
			d, err := s.ReadUint16()
			if err != nil {
				return fail(err)
			}
			mc.Operands = append(mc.Operands, ir.U16(d))
		case 4:
			d, err := s.ReadUint16()
			if err != nil {
				return fail(err)
			}
			vol, err := s.ReadByte()
			if err != nil {
				return fail(err)
			}
			mc.Operands = append(mc.Operands, ir.U16(d), ir.U8(vol))
		default:
			return fail(fmt.Errorf("unrecognized sfx sub-command %d: %w", sub, ErrMalformed))
		}

	case opcode.MsgDefault:
		flags, err := s.ReadByte()
		if err != nil {
			return fail(err)
		}
		index, err := s.ReadInt32()
		if err != nil {
			return fail(err)
		}
		mc.Operands = []ir.Operand{ir.U8(flags), ir.I32(index)}

	case opcode.MsgFormat:
		// Raw bytes through to the closing format byte, kept verbatim.
		var raw []byte
		for {
			b, err := s.ReadByte()
			if err != nil {
				return fail(err)
			}
			if b == byte(opcode.MsgFormat) {
				break
			}
			raw = append(raw, b)
		}
		mc.Operands = []ir.Operand{ir.Text(raw)}

	case opcode.MsgRgba:
		// The one big-endian field in the whole format.
		v, err := s.ReadUint32BE()
		if err != nil {
			return fail(err)
		}
		mc.Operands = []ir.Operand{ir.U32(v)}

	case opcode.MsgShake:
		flags, err := s.ReadByte()
		if err != nil {
			return fail(err)
		}
		strength, err := s.ReadByte()
		if err != nil {
			return fail(err)
		}
		speed, err := s.ReadByte()
		if err != nil {
			return fail(err)
		}
		mc.Operands = []ir.Operand{ir.U8(flags), ir.U8(strength), ir.U8(speed)}

	case opcode.MsgRotate:
		v, err := s.ReadInt16()
		if err != nil {
			return fail(err)
		}
		mc.Operands = []ir.Operand{ir.I16(v)}

	case opcode.MsgScale:
		x, err := s.ReadInt16()
		if err != nil {
			return fail(err)
		}
		y, err := s.ReadInt16()
		if err != nil {
			return fail(err)
		}
		mc.Operands = []ir.Operand{ir.I16(x), ir.I16(y)}

	case opcode.MsgNumInput:
		digits, err := s.ReadByte()
		if err != nil {
			return fail(err)
		}
		editable, err := s.ReadByte()
		if err != nil {
			return fail(err)
		}
		selected, err := s.ReadByte()
		if err != nil {
			return fail(err)
		}
		mc.Operands = []ir.Operand{ir.U8(digits), ir.U8(editable), ir.U8(selected)}

	case opcode.MsgQuestion:
		flags, err := s.ReadByte()
		if err != nil {
			return fail(err)
		}
		def, err := s.ReadByte()
		if err != nil {
			return fail(err)
		}
		mc.Operands = []ir.Operand{ir.U8(flags), ir.U8(def)}

	case opcode.MsgNewline, opcode.MsgNewlineVt, opcode.MsgStay:
	}
	return mc, nil
}

// encodeMsg writes a message command list with a zero end-offset
// placeholder reported to the fix-up sink, and enforces the game's buffer
// limits.
func encodeMsg(w *evfmt.Writer, cmd *ir.Command, i *int, fx Fixups) error {
	fieldPos := w.Len()
	w.WriteUint32(0)
	chars := 0
	for ; *i < len(cmd.Operands); *i++ {
		mc, ok := cmd.Operands[*i].(*ir.MsgCmd)
		if !ok {
			return fmt.Errorf("%w: %v operand %d is %T", ErrBadOperands,
				cmd.Opcode, *i, cmd.Operands[*i])
		}
		n, err := encodeMsgCmd(w, mc)
		if err != nil {
			return err
		}
		chars += n
	}
	// Format strings are not counted; they expand at run time.
	if chars > maxMsgChars {
		return fmt.Errorf("%w: %d, limit %d", ErrTooManyChars, chars, maxMsgChars)
	}
	w.WriteByte(byte(opcode.MsgEnd))
	end := w.Len()
	if end-fieldPos > maxMsgSize {
		return fmt.Errorf("%w: message is %d bytes, limit %d", ErrTooLarge, end-fieldPos, maxMsgSize)
	}
	fx.End(fieldPos, end)
	return nil
}

// encodeMsgCmd writes one message command and returns how many characters
// it contributes to the message length limit.
func encodeMsgCmd(w *evfmt.Writer, mc *ir.MsgCmd) (int, error) {
	bad := func() (int, error) {
		return 0, fmt.Errorf("%w: message %v", ErrBadOperands, mc.Opcode)
	}
	if mc.Opcode == opcode.MsgText {
		text, ok := single[ir.Text](mc)
		if !ok {
			return bad()
		}
		for _, b := range text {
			if !opcode.MsgIsChar(b) && b != '"' {
				return 0, fmt.Errorf("%w: byte 0x%02x in message text", ErrBadChar, b)
			}
			w.WriteByte(escapeChar(b))
		}
		return len(text), nil
	}

	w.WriteByte(byte(mc.Opcode))
	switch mc.Opcode {
	case opcode.MsgSpeed, opcode.MsgWait, opcode.MsgVoice, opcode.MsgSize,
		opcode.MsgColor, opcode.MsgProportional, opcode.MsgIcon, opcode.MsgCenter:
		v, ok := single[ir.U8](mc)
		if !ok {
			return bad()
		}
		w.WriteByte(byte(v))

	case opcode.MsgAnim:
		if len(mc.Operands) != 3 {
			return bad()
		}
		flags, ok1 := mc.Operands[0].(ir.U8)
		obj, ok2 := mc.Operands[1].(ir.I16)
		anim, ok3 := mc.Operands[2].(ir.I32)
		if !ok1 || !ok2 || !ok3 {
			return bad()
		}
		w.WriteByte(byte(flags))
		w.WriteInt16(int16(obj))
		w.WriteInt32(int32(anim))

	case opcode.MsgSfx:
		if len(mc.Operands) < 2 {
			return bad()
		}
		id, ok1 := mc.Operands[0].(ir.U32)
		sub, ok2 := mc.Operands[1].(ir.I8)
		if !ok1 || !ok2 {
			return bad()
		}
		w.WriteUint32(uint32(id))
		w.WriteInt8(int8(sub))
		switch sub {
		case -1, 0, 1, 5, 6:
			if len(mc.Operands) != 2 {
				return bad()
			}
		case 2, 3:
			if len(mc.Operands) != 3 {
				return bad()
			}
			d, ok := mc.Operands[2].(ir.U16)
			if !ok {
				return bad()
			}
			w.WriteUint16(uint16(d))
		case 4:
			if len(mc.Operands) != 4 {
				return bad()
			}
			d, ok1 := mc.Operands[2].(ir.U16)
			vol, ok2 := mc.Operands[3].(ir.U8)
			if !ok1 || !ok2 {
				return bad()
			}
			w.WriteUint16(uint16(d))
			w.WriteByte(byte(vol))
		default:
			return bad()
		}

	case opcode.MsgDefault:
		if len(mc.Operands) != 2 {
			return bad()
		}
		flags, ok1 := mc.Operands[0].(ir.U8)
		index, ok2 := mc.Operands[1].(ir.I32)
		if !ok1 || !ok2 {
			return bad()
		}
		w.WriteByte(byte(flags))
		w.WriteInt32(int32(index))

	case opcode.MsgFormat:
		text, ok := single[ir.Text](mc)
		if !ok {
			return bad()
		}
		if bytes.IndexByte(text, byte(opcode.MsgFormat)) >= 0 {
			return 0, fmt.Errorf("%w: format byte inside format text", ErrBadChar)
		}
		w.WriteBytes(text)
		w.WriteByte(byte(opcode.MsgFormat))

	case opcode.MsgRgba:
		v, ok := single[ir.U32](mc)
		if !ok {
			return bad()
		}
		w.WriteUint32BE(uint32(v))

	case opcode.MsgShake, opcode.MsgNumInput:
		if len(mc.Operands) != 3 {
			return bad()
		}
		for _, o := range mc.Operands {
			v, ok := o.(ir.U8)
			if !ok {
				return bad()
			}
			w.WriteByte(byte(v))
		}

	case opcode.MsgRotate:
		v, ok := single[ir.I16](mc)
		if !ok {
			return bad()
		}
		w.WriteInt16(int16(v))

	case opcode.MsgScale:
		if len(mc.Operands) != 2 {
			return bad()
		}
		x, ok1 := mc.Operands[0].(ir.I16)
		y, ok2 := mc.Operands[1].(ir.I16)
		if !ok1 || !ok2 {
			return bad()
		}
		w.WriteInt16(int16(x))
		w.WriteInt16(int16(y))

	case opcode.MsgQuestion:
		if len(mc.Operands) != 2 {
			return bad()
		}
		flags, ok1 := mc.Operands[0].(ir.U8)
		def, ok2 := mc.Operands[1].(ir.U8)
		if !ok1 || !ok2 {
			return bad()
		}
		w.WriteByte(byte(flags))
		w.WriteByte(byte(def))

	case opcode.MsgNewline, opcode.MsgNewlineVt, opcode.MsgStay:
		if len(mc.Operands) != 0 {
			return bad()
		}

	default:
		return bad()
	}
	return 0, nil
}

func unescapeChar(b byte) byte {
	if b == '$' {
		return '"'
	}
	return b
}

func escapeChar(b byte) byte {
	if b == '"' {
		return '$'
	}
	return b
}
