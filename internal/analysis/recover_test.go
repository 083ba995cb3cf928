package analysis

import (
	"errors"
	"testing"

	"unstage/internal/ir"
	"unstage/internal/opcode"
)

func TestRecoverBinary(t *testing.T) {
	// eq(var[0], 5) with the right side first, as decoded.
	cmd := &ir.Command{Opcode: opcode.CmdIf, Operands: []ir.Operand{
		&ir.Expr{Opcode: opcode.ExprEqual},
		ir.Imm16(5),
		&ir.Expr{Opcode: opcode.ExprVariable},
		ir.Imm16(0),
		ir.Offset(0x20),
	}}
	if err := Recover(cmd); err != nil {
		t.Fatalf("Recover() = %v", err)
	}
	if len(cmd.Operands) != 2 {
		t.Fatalf("operands = %d, want 2", len(cmd.Operands))
	}
	eq := cmd.Operands[0].(*ir.Expr)
	if eq.Opcode != opcode.ExprEqual || len(eq.Operands) != 2 {
		t.Fatalf("root = %v with %d children, want eq with 2", eq.Opcode, len(eq.Operands))
	}
	lhs := eq.Operands[0].(*ir.Expr)
	if lhs.Opcode != opcode.ExprVariable {
		t.Errorf("left side = %v, want var", lhs.Opcode)
	}
	if v, ok := ir.ConstValue(eq.Operands[1]); !ok || v != 5 {
		t.Errorf("right side = %v, want 5", eq.Operands[1])
	}
	if cmd.Operands[1] != ir.Offset(0x20) {
		t.Errorf("else target = %v, want 0x20", cmd.Operands[1])
	}
}

func TestRecoverSetOrder(t *testing.T) {
	// set decodes value first; recovery swaps to target first.
	cmd := &ir.Command{Opcode: opcode.CmdSet, Operands: []ir.Operand{
		ir.Imm16(1),
		&ir.Expr{Opcode: opcode.ExprVariable},
		ir.Imm16(0),
	}}
	if err := Recover(cmd); err != nil {
		t.Fatalf("Recover() = %v", err)
	}
	if len(cmd.Operands) != 2 {
		t.Fatalf("operands = %d, want 2", len(cmd.Operands))
	}
	if e := cmd.Operands[0].(*ir.Expr); e.Opcode != opcode.ExprVariable {
		t.Errorf("target = %v, want var", e.Opcode)
	}
	if v, ok := ir.ConstValue(cmd.Operands[1]); !ok || v != 1 {
		t.Errorf("value = %v, want 1", cmd.Operands[1])
	}
}

func TestRecoverObjAtom(t *testing.T) {
	cmd := &ir.Command{Opcode: opcode.CmdSet, Operands: []ir.Operand{
		&ir.Expr{Opcode: opcode.ExprObj},
		ir.Imm32(int32(opcode.AtomDirTo)),
		&ir.Expr{Opcode: opcode.ExprStack, Operands: []ir.Operand{ir.U8(0)}},
	}}
	if err := Recover(cmd); err != nil {
		t.Fatalf("Recover() = %v", err)
	}
	obj := cmd.Operands[0].(*ir.Expr)
	if tag, ok := obj.Operands[0].(ir.TypeTag); !ok || opcode.Atom(tag) != opcode.AtomDirTo {
		t.Errorf("atom = %v, want dirto", obj.Operands[0])
	}

	bad := &ir.Command{Opcode: opcode.CmdSet, Operands: []ir.Operand{
		&ir.Expr{Opcode: opcode.ExprObj},
		ir.Imm32(77),
		ir.Imm16(0),
	}}
	if err := Recover(bad); !errors.Is(err, ErrBadExpr) {
		t.Errorf("Recover() with atom 77 = %v, want ErrBadExpr", err)
	}
}

func TestRecoverArrayElementOrder(t *testing.T) {
	cmd := &ir.Command{Opcode: opcode.CmdSetSp, Operands: []ir.Operand{
		&ir.Expr{Opcode: opcode.ExprArrayElement},
		ir.Imm16(2),
		ir.Imm16(3),
		&ir.Expr{Opcode: opcode.ExprStack, Operands: []ir.Operand{ir.U8(1)}},
	}}
	if err := Recover(cmd); err != nil {
		t.Fatalf("Recover() = %v", err)
	}
	elem := cmd.Operands[0].(*ir.Expr)
	if len(elem.Operands) != 3 {
		t.Fatalf("children = %d, want 3", len(elem.Operands))
	}
	if v, _ := ir.ConstValue(elem.Operands[0]); v != 2 {
		t.Errorf("width = %v, want 2", elem.Operands[0])
	}
	if v, _ := ir.ConstValue(elem.Operands[1]); v != 3 {
		t.Errorf("index = %v, want 3", elem.Operands[1])
	}
	if e := elem.Operands[2].(*ir.Expr); e.Opcode != opcode.ExprStack {
		t.Errorf("base = %v, want stack", e.Opcode)
	}
}

func TestRecoverUnderflow(t *testing.T) {
	cmd := &ir.Command{Opcode: opcode.CmdSetSp, Operands: []ir.Operand{
		&ir.Expr{Opcode: opcode.ExprAdd},
		ir.Imm16(1),
	}}
	if err := Recover(cmd); !errors.Is(err, ErrBadExpr) {
		t.Fatalf("Recover() = %v, want ErrBadExpr", err)
	}
}
