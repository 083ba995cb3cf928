package codec

import (
	"fmt"

	"unstage/internal/evfmt"
	"unstage/internal/ir"
	"unstage/internal/opcode"
)

// decodeExprRun appends the flat nodes of one complete expression to out.
// Expressions are prefix-encoded and self-delimiting: starting from a
// pending count of one, each opcode consumes a slot and adds its child
// count. Every node carries only its immediate payload; nesting is
// recovered later by value recovery.
func decodeExprRun(s *evfmt.Stream, out []ir.Operand) ([]ir.Operand, error) {
	for pending := 1; pending > 0; {
		pos := s.Position()
		b, err := s.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("codec: expression at 0x%x: %w", pos, err)
		}
		op := opcode.Expr(b)
		if !op.Valid() {
			return nil, fmt.Errorf("codec: unrecognized expression opcode 0x%02x at 0x%x: %w",
				b, pos, ErrUnknownOpcode)
		}
		node := &ir.Expr{Opcode: op}
		switch op {
		case opcode.ExprImm16:
			v, err := s.ReadInt16()
			if err != nil {
				return nil, fmt.Errorf("codec: expression at 0x%x: %w", pos, err)
			}
			node.Operands = []ir.Operand{ir.I16(v)}
		case opcode.ExprImm32:
			v, err := s.ReadInt32()
			if err != nil {
				return nil, fmt.Errorf("codec: expression at 0x%x: %w", pos, err)
			}
			node.Operands = []ir.Operand{ir.I32(v)}
		case opcode.ExprAddressOf:
			v, err := s.ReadUint32()
			if err != nil {
				return nil, fmt.Errorf("codec: expression at 0x%x: %w", pos, err)
			}
			node.Operands = []ir.Operand{ir.Offset(v)}
		case opcode.ExprStack, opcode.ExprParentStack:
			v, err := s.ReadByte()
			if err != nil {
				return nil, fmt.Errorf("codec: expression at 0x%x: %w", pos, err)
			}
			node.Operands = []ir.Operand{ir.U8(v)}
		}
		out = append(out, node)
		pending += op.Children() - 1
	}
	return out, nil
}

// decodeConst reads one expression that must be a bare constant and
// returns its node and value.
func decodeConst(s *evfmt.Stream) (*ir.Expr, int32, error) {
	pos := s.Position()
	run, err := decodeExprRun(s, nil)
	if err != nil {
		return nil, 0, err
	}
	if len(run) != 1 {
		return nil, 0, fmt.Errorf("codec: expected constant expression at 0x%x: %w", pos, ErrMalformed)
	}
	node := run[0].(*ir.Expr)
	v, ok := ir.ConstValue(node)
	if !ok {
		return nil, 0, fmt.Errorf("codec: expected constant expression at 0x%x, got %v: %w",
			pos, node.Opcode, ErrMalformed)
	}
	return node, v, nil
}

// encodeExpr writes one recovered expression tree in prefix order. Binary
// operators store their right child first; object accessors store their
// atom as a 32-bit constant.
func encodeExpr(w *evfmt.Writer, e *ir.Expr, fx Fixups) error {
	op := e.Opcode
	if !op.Valid() {
		return fmt.Errorf("%w: expression opcode %v", ErrBadOperands, op)
	}
	w.WriteByte(byte(op))
	switch op {
	case opcode.ExprImm16:
		v, ok := single[ir.I16](e)
		if !ok {
			return fmt.Errorf("%w: %v payload", ErrBadOperands, op)
		}
		w.WriteInt16(int16(v))
		return nil
	case opcode.ExprImm32:
		v, ok := single[ir.I32](e)
		if !ok {
			return fmt.Errorf("%w: %v payload", ErrBadOperands, op)
		}
		w.WriteInt32(int32(v))
		return nil
	case opcode.ExprAddressOf:
		if len(e.Operands) != 1 {
			return fmt.Errorf("%w: %v payload", ErrBadOperands, op)
		}
		return encodePointer(w, e.Operands[0], fx)
	case opcode.ExprStack, opcode.ExprParentStack:
		v, ok := single[ir.U8](e)
		if !ok {
			return fmt.Errorf("%w: %v payload", ErrBadOperands, op)
		}
		w.WriteByte(byte(v))
		return nil
	case opcode.ExprObj:
		if len(e.Operands) != 2 {
			return fmt.Errorf("%w: obj accessor takes an atom and a child", ErrBadOperands)
		}
		tag, ok := e.Operands[0].(ir.TypeTag)
		if !ok {
			return fmt.Errorf("%w: obj accessor atom is %T", ErrBadOperands, e.Operands[0])
		}
		writeAtom(w, opcode.Atom(tag))
		return encodeChild(w, e.Operands[1], fx)
	}

	n := op.Children()
	if len(e.Operands) != n {
		return fmt.Errorf("%w: %v takes %d children, got %d", ErrBadOperands, op, n, len(e.Operands))
	}
	if op.IsBinary() {
		if err := encodeChild(w, e.Operands[1], fx); err != nil {
			return err
		}
		return encodeChild(w, e.Operands[0], fx)
	}
	for _, o := range e.Operands {
		if err := encodeChild(w, o, fx); err != nil {
			return err
		}
	}
	return nil
}

func encodeChild(w *evfmt.Writer, o ir.Operand, fx Fixups) error {
	child, ok := o.(*ir.Expr)
	if !ok {
		return fmt.Errorf("%w: expression child is %T", ErrBadOperands, o)
	}
	return encodeExpr(w, child, fx)
}

// encodePointer writes a 4-byte pointer operand: raw offsets verbatim,
// label references as placeholders reported to the fix-up sink.
func encodePointer(w *evfmt.Writer, o ir.Operand, fx Fixups) error {
	switch v := o.(type) {
	case ir.Offset:
		w.WriteUint32(uint32(v))
	case ir.LabelRef:
		fx.Label(w.Len(), ir.LabelID(v))
		w.WriteUint32(0)
	case ir.ElseRef:
		fx.Label(w.Len(), ir.LabelID(v))
		w.WriteUint32(0)
	default:
		return fmt.Errorf("%w: pointer operand is %T", ErrBadOperands, o)
	}
	return nil
}

// writeAtom emits a type atom. Atoms decode from 16- or 32-bit constants
// and always encode as 32-bit.
func writeAtom(w *evfmt.Writer, a opcode.Atom) {
	w.WriteByte(byte(opcode.ExprImm32))
	w.WriteInt32(int32(a))
}

// single extracts the sole operand of an operation when it has the given
// type.
func single[T ir.Operand, V opcode.Code](e *ir.Operation[V]) (T, bool) {
	var zero T
	if len(e.Operands) != 1 {
		return zero, false
	}
	v, ok := e.Operands[0].(T)
	if !ok {
		return zero, false
	}
	return v, true
}
