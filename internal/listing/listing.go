// Package listing renders recovered programs for people and tools: a
// label-prefixed text listing, JSON and CBOR dump structures, and string
// extraction.
package listing

import (
	"encoding/binary"
	"fmt"
	"strings"

	"unstage/internal/ir"
	"unstage/internal/opcode"
)

// Format renders a program as a text listing. Subroutines come first in
// partition order, each block under its label with commands indented one
// tab; data blocks follow in arena order. Expressions print as nested
// calls, type atoms as @name, and the condition-false target of a branch
// as "else name".
func Format(prog *ir.Program) string {
	var b strings.Builder
	for i, sub := range prog.Subs {
		if i > 0 {
			b.WriteByte('\n')
		}
		writeSub(&b, prog, sub)
	}
	data := prog.DataBlocks()
	if len(data) > 0 && len(prog.Subs) > 0 {
		b.WriteByte('\n')
	}
	for _, id := range data {
		writeData(&b, prog, prog.Block(id))
	}
	return b.String()
}

func writeSub(b *strings.Builder, prog *ir.Program, sub *ir.Subroutine) {
	for _, id := range sub.Blocks {
		blk := prog.Block(id)
		if blk == nil || blk.Code == nil {
			continue
		}
		writeLabel(b, prog, id)
		for _, cmd := range blk.Code.Commands {
			b.WriteByte('\t')
			writeCommand(b, prog, cmd)
			b.WriteByte('\n')
		}
	}
}

func writeLabel(b *strings.Builder, prog *ir.Program, id ir.BlockID) {
	if l, ok := prog.Labels.ByBlock(id); ok {
		fmt.Fprintf(b, "%s:\n", prog.Labels.Name(l))
	}
}

func writeCommand(b *strings.Builder, prog *ir.Program, cmd *ir.Command) {
	b.WriteString(cmd.Opcode.String())
	for i, op := range cmd.Operands {
		if i == 0 {
			b.WriteByte(' ')
		} else {
			b.WriteString(", ")
		}
		writeOperand(b, prog, op)
	}
}

// commandText renders one command on its own, for the dump structures.
func commandText(prog *ir.Program, cmd *ir.Command) string {
	var b strings.Builder
	writeCommand(&b, prog, cmd)
	return b.String()
}

func writeOperand(b *strings.Builder, prog *ir.Program, op ir.Operand) {
	switch v := op.(type) {
	case *ir.Expr:
		writeExpr(b, prog, v)
	case *ir.MsgCmd:
		writeMsgCmd(b, prog, v)
	case ir.Text:
		fmt.Fprintf(b, "%q", string(v))
	case ir.LabelRef:
		b.WriteString(prog.Labels.Name(ir.LabelID(v)))
	case ir.ElseRef:
		fmt.Fprintf(b, "else %s", prog.Labels.Name(ir.LabelID(v)))
	case ir.Offset:
		fmt.Fprintf(b, "0x%x", uint32(v))
	case ir.TypeTag:
		fmt.Fprintf(b, "@%s", opcode.Atom(v))
	case ir.I8:
		fmt.Fprintf(b, "%d", int8(v))
	case ir.U8:
		fmt.Fprintf(b, "%d", uint8(v))
	case ir.I16:
		fmt.Fprintf(b, "%d", int16(v))
	case ir.U16:
		fmt.Fprintf(b, "%d", uint16(v))
	case ir.I32:
		fmt.Fprintf(b, "%d", int32(v))
	case ir.U32:
		fmt.Fprintf(b, "%d", uint32(v))
	default:
		fmt.Fprintf(b, "?%T", op)
	}
}

// writeExpr prints an expression tree as a nested call. Constants print
// bare; leaf operators with no payload print as their mnemonic alone.
func writeExpr(b *strings.Builder, prog *ir.Program, e *ir.Expr) {
	if v, ok := ir.ConstValue(e); ok {
		fmt.Fprintf(b, "%d", v)
		return
	}
	b.WriteString(e.Opcode.String())
	if len(e.Operands) == 0 {
		return
	}
	b.WriteByte('(')
	for i, op := range e.Operands {
		if i > 0 {
			b.WriteString(", ")
		}
		writeOperand(b, prog, op)
	}
	b.WriteByte(')')
}

func writeMsgCmd(b *strings.Builder, prog *ir.Program, mc *ir.MsgCmd) {
	if mc.Opcode == opcode.MsgText && len(mc.Operands) == 1 {
		if t, ok := mc.Operands[0].(ir.Text); ok {
			fmt.Fprintf(b, "%q", string(t))
			return
		}
	}
	b.WriteString(mc.Opcode.String())
	if len(mc.Operands) == 0 {
		return
	}
	b.WriteByte('(')
	for i, op := range mc.Operands {
		if i > 0 {
			b.WriteString(", ")
		}
		writeOperand(b, prog, op)
	}
	b.WriteByte(')')
}

// writeData renders one data block under its label as a directive line.
func writeData(b *strings.Builder, prog *ir.Program, blk *ir.AsmBlock) {
	writeLabel(b, prog, blk.ID)
	d := blk.Data
	switch d.Kind {
	case ir.DataString:
		fmt.Fprintf(b, "\t.string %q\n", string(d.Raw))
	case ir.DataPtr:
		b.WriteString("\t.ptr")
		for i, p := range d.Ptrs {
			if i == 0 {
				b.WriteByte(' ')
			} else {
				b.WriteString(", ")
			}
			b.WriteString(pointerText(prog, p))
		}
		b.WriteByte('\n')
	case ir.DataObjBone:
		fmt.Fprintf(b, "\t.bone %d", d.Bone.Obj)
		for _, seg := range d.Bone.Path {
			fmt.Fprintf(b, ", %d", seg)
		}
		b.WriteByte('\n')
	case ir.DataObjPair:
		fmt.Fprintf(b, "\t.pair %d, %d\n", d.Pair.First, d.Pair.Second)
	default:
		writeArray(b, d)
	}
}

func pointerText(prog *ir.Program, p ir.Pointer) string {
	if l, ok := p.Label(); ok {
		return prog.Labels.Name(l)
	}
	off, _ := p.Offset()
	return fmt.Sprintf("0x%x", off)
}

// writeArray renders a scalar array as one directive line, decoding
// little-endian elements at the kind's width. A tail shorter than one
// element prints as trailing bytes.
func writeArray(b *strings.Builder, d *ir.Data) {
	width := d.Kind.ElemSize()
	if width == 0 {
		width = 1
	}
	fmt.Fprintf(b, "\t.%s", d.Kind)
	n := len(d.Raw) / width * width
	for i := 0; i < n; i += width {
		if i == 0 {
			b.WriteByte(' ')
		} else {
			b.WriteString(", ")
		}
		fmt.Fprintf(b, "%d", elemValue(d.Kind, d.Raw[i:i+width]))
	}
	b.WriteByte('\n')
	if n == len(d.Raw) {
		return
	}
	b.WriteString("\t.u8")
	for i, v := range d.Raw[n:] {
		if i == 0 {
			b.WriteByte(' ')
		} else {
			b.WriteString(", ")
		}
		fmt.Fprintf(b, "%d", v)
	}
	b.WriteByte('\n')
}

func elemValue(k ir.DataKind, raw []byte) int64 {
	switch k {
	case ir.DataI8:
		return int64(int8(raw[0]))
	case ir.DataI16:
		return int64(int16(binary.LittleEndian.Uint16(raw)))
	case ir.DataU16:
		return int64(binary.LittleEndian.Uint16(raw))
	case ir.DataI32:
		return int64(int32(binary.LittleEndian.Uint32(raw)))
	case ir.DataU32:
		return int64(binary.LittleEndian.Uint32(raw))
	}
	return int64(raw[0])
}
