// Package ir is the intermediate representation shared by the analysis
// pipeline and the assembler: operands, generic operations, blocks keyed by
// id in an arena, labels, and the program shape the assembler consumes.
// Analysis output feeds the assembler unmodified.
package ir

import "unstage/internal/opcode"

// Operand is one datum carried by an operation. The variant set is closed:
// fixed-width integers, raw text, label references, raw file offsets, type
// tags, and nested expression or message-command trees. Nested variants own
// their children exclusively.
type Operand interface {
	isOperand()
}

type (
	I8  int8
	U8  uint8
	I16 int16
	U16 uint16
	I32 int32
	U32 uint32

	// Text is raw uninterpreted text, stored without its terminator.
	Text []byte

	// LabelRef refers to a branch or call target by label. ElseRef is the
	// same reference minted for the condition-false target of a conditional
	// branch; it resolves identically but renders differently.
	LabelRef LabelID
	ElseRef  LabelID

	// Offset is a raw absolute file offset that is not a block reference,
	// such as a pointer into the container header. It round-trips verbatim.
	Offset uint32

	// TypeTag is a type atom lifted out of the constant expression that
	// carried it on the wire.
	TypeTag opcode.Atom
)

func (I8) isOperand()      {}
func (U8) isOperand()      {}
func (I16) isOperand()     {}
func (U16) isOperand()     {}
func (I32) isOperand()     {}
func (U32) isOperand()     {}
func (Text) isOperand()    {}
func (LabelRef) isOperand() {}
func (ElseRef) isOperand() {}
func (Offset) isOperand()  {}
func (TypeTag) isOperand() {}

// Operation is one instruction: an opcode from one of the three
// vocabularies plus its ordered operands.
type Operation[T opcode.Code] struct {
	Opcode   T
	Operands []Operand
}

func (*Operation[T]) isOperand() {}

// The three vocabulary instantiations.
type (
	Command = Operation[opcode.Cmd]
	Expr    = Operation[opcode.Expr]
	MsgCmd  = Operation[opcode.Msg]
)

// Imm16 builds a 16-bit constant expression.
func Imm16(v int16) *Expr {
	return &Expr{Opcode: opcode.ExprImm16, Operands: []Operand{I16(v)}}
}

// Imm32 builds a 32-bit constant expression.
func Imm32(v int32) *Expr {
	return &Expr{Opcode: opcode.ExprImm32, Operands: []Operand{I32(v)}}
}

// ConstValue extracts the value of a constant expression operand. It
// reports false for any operand that is not a 16- or 32-bit constant.
func ConstValue(o Operand) (int32, bool) {
	e, ok := o.(*Expr)
	if !ok || !e.Opcode.IsConst() || len(e.Operands) != 1 {
		return 0, false
	}
	switch v := e.Operands[0].(type) {
	case I16:
		return int32(v), true
	case I32:
		return int32(v), true
	}
	return 0, false
}
