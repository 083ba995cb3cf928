package codec

import (
	"bytes"
	"errors"
	"testing"

	"unstage/internal/evfmt"
	"unstage/internal/ir"
	"unstage/internal/opcode"
)

type labelFix struct {
	pos   int
	label ir.LabelID
}

type endFix struct {
	pos, end int
}

// fixupRec records fix-ups the way the assembler would.
type fixupRec struct {
	labels []labelFix
	ends   []endFix
}

func (f *fixupRec) Label(pos int, label ir.LabelID) {
	f.labels = append(f.labels, labelFix{pos, label})
}

func (f *fixupRec) End(pos, end int) {
	f.ends = append(f.ends, endFix{pos, end})
}

func decodeOne(t *testing.T, data []byte) *ir.Command {
	t.Helper()
	s := evfmt.NewStream(data)
	cmd, err := DecodeCommand(s)
	if err != nil {
		t.Fatalf("DecodeCommand() failed: %v", err)
	}
	if s.Remaining() != 0 {
		t.Fatalf("DecodeCommand() left %d bytes unread", s.Remaining())
	}
	return cmd
}

func flatOpcodes(t *testing.T, ops []ir.Operand) []opcode.Expr {
	t.Helper()
	var out []opcode.Expr
	for _, o := range ops {
		e, ok := o.(*ir.Expr)
		if !ok {
			t.Fatalf("operand %T is not an expression", o)
		}
		out = append(out, e.Opcode)
	}
	return out
}

func TestDecodeGoto(t *testing.T) {
	cmd := decodeOne(t, []byte{byte(opcode.CmdGoto), 0x10, 0, 0, 0})
	if cmd.Opcode != opcode.CmdGoto {
		t.Fatalf("opcode = %v, want goto", cmd.Opcode)
	}
	if len(cmd.Operands) != 1 {
		t.Fatalf("operands = %d, want 1", len(cmd.Operands))
	}
	if off, ok := cmd.Operands[0].(ir.Offset); !ok || off != 0x10 {
		t.Errorf("target = %v, want Offset(0x10)", cmd.Operands[0])
	}
}

func TestDecodeIfFlat(t *testing.T) {
	// if eq(var(0), 5) else 0x20. The condition decodes as a flat prefix
	// run with the right operand stored first.
	data := []byte{
		byte(opcode.CmdIf),
		byte(opcode.ExprEqual),
		byte(opcode.ExprImm16), 5, 0,
		byte(opcode.ExprVariable), byte(opcode.ExprImm16), 0, 0,
		0x20, 0, 0, 0,
	}
	cmd := decodeOne(t, data)
	if len(cmd.Operands) != 5 {
		t.Fatalf("operands = %d, want 5", len(cmd.Operands))
	}
	got := flatOpcodes(t, cmd.Operands[:4])
	want := []opcode.Expr{opcode.ExprEqual, opcode.ExprImm16, opcode.ExprVariable, opcode.ExprImm16}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("flat[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if v, ok := ir.ConstValue(cmd.Operands[1]); !ok || v != 5 {
		t.Errorf("rhs constant = %d, want 5", v)
	}
	if off, ok := cmd.Operands[4].(ir.Offset); !ok || off != 0x20 {
		t.Errorf("else target = %v, want Offset(0x20)", cmd.Operands[4])
	}
}

func TestDecodeUnknownOpcodes(t *testing.T) {
	for _, data := range [][]byte{{0}, {50}} {
		_, err := DecodeCommand(evfmt.NewStream(data))
		if !errors.Is(err, ErrUnknownOpcode) {
			t.Errorf("command byte %d: err = %v, want ErrUnknownOpcode", data[0], err)
		}
	}

	// Unknown expression opcode inside a command, error names the offset.
	data := []byte{byte(opcode.CmdSetSp), 99}
	_, err := DecodeCommand(evfmt.NewStream(data))
	if !errors.Is(err, ErrUnknownOpcode) {
		t.Fatalf("err = %v, want ErrUnknownOpcode", err)
	}
	if want := "0x1"; !bytes.Contains([]byte(err.Error()), []byte(want)) {
		t.Errorf("err %q does not name offset %s", err, want)
	}
}

func TestDecodeTruncated(t *testing.T) {
	for _, data := range [][]byte{
		{byte(opcode.CmdGoto), 0x10, 0},
		{byte(opcode.CmdSetSp), byte(opcode.ExprImm16), 5},
		{byte(opcode.CmdSetSp), byte(opcode.ExprAdd), byte(opcode.ExprImm16), 1, 0},
	} {
		_, err := DecodeCommand(evfmt.NewStream(data))
		if !errors.Is(err, evfmt.ErrTruncated) {
			t.Errorf("data %v: err = %v, want ErrTruncated", data, err)
		}
	}
}

func TestDecodeSetShapes(t *testing.T) {
	// Two-operand form: the wire stores the value first, the target second.
	data := []byte{
		byte(opcode.CmdSet),
		byte(opcode.ExprImm16), 1, 0,
		byte(opcode.ExprVariable), byte(opcode.ExprImm16), 0, 0,
	}
	cmd := decodeOne(t, data)
	got := flatOpcodes(t, cmd.Operands)
	want := []opcode.Expr{opcode.ExprImm16, opcode.ExprVariable, opcode.ExprImm16}
	if len(got) != len(want) {
		t.Fatalf("flat run = %v, want %v", got, want)
	}

	// In-place form: no target follows an assignment operator.
	data = []byte{
		byte(opcode.CmdSet),
		byte(opcode.ExprAddAssign),
		byte(opcode.ExprImm16), 1, 0,
		byte(opcode.ExprVariable), byte(opcode.ExprImm16), 0, 0,
	}
	cmd = decodeOne(t, data)
	if root := cmd.Operands[0].(*ir.Expr); root.Opcode != opcode.ExprAddAssign {
		t.Errorf("in-place root = %v, want adda", root.Opcode)
	}
	if len(cmd.Operands) != 4 {
		t.Errorf("in-place operands = %d, want 4", len(cmd.Operands))
	}
}

func TestDecodeAnimTerminator(t *testing.T) {
	data := []byte{
		byte(opcode.CmdAnim),
		byte(opcode.ExprImm16), 0, 0,
		byte(opcode.ExprImm16), 3, 0,
		byte(opcode.ExprImm16), 0xff, 0xff,
	}
	cmd := decodeOne(t, data)
	if len(cmd.Operands) != 3 {
		t.Fatalf("operands = %d, want 3", len(cmd.Operands))
	}
	if v, ok := ir.ConstValue(cmd.Operands[2]); !ok || v != -1 {
		t.Errorf("terminator = %d, want -1", v)
	}
}

func TestDecodeCallSize(t *testing.T) {
	data := []byte{
		byte(opcode.CmdCall), 8, 0,
		byte(opcode.ExprImm16), 100, 0,
		byte(opcode.ExprImm16), 1, 0,
	}
	cmd := decodeOne(t, data)
	if len(cmd.Operands) != 2 {
		t.Fatalf("operands = %d, want 2", len(cmd.Operands))
	}

	// A size that lands mid-expression is a format error.
	bad := append([]byte{}, data...)
	bad[1] = 7
	_, err := DecodeCommand(evfmt.NewStream(bad))
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("bad size err = %v, want ErrMalformed", err)
	}
}

func TestDecodeAtomDispatch(t *testing.T) {
	// wait @cam takes no arguments. The atom may arrive as a 16- or
	// 32-bit constant.
	wide := []byte{byte(opcode.CmdWait), byte(opcode.ExprImm32), 0xe1, 0, 0, 0}
	narrow := []byte{byte(opcode.CmdWait), byte(opcode.ExprImm16), 0xe1, 0}
	for _, data := range [][]byte{wide, narrow} {
		cmd := decodeOne(t, data)
		if len(cmd.Operands) != 1 {
			t.Fatalf("operands = %d, want 1", len(cmd.Operands))
		}
		if tag, ok := cmd.Operands[0].(ir.TypeTag); !ok || opcode.Atom(tag) != opcode.AtomCam {
			t.Errorf("tag = %v, want @cam", cmd.Operands[0])
		}
	}

	// An atom the command has no case for is a format error.
	bad := []byte{byte(opcode.CmdWait), byte(opcode.ExprImm32), 0xcf, 0, 0, 0}
	if _, err := DecodeCommand(evfmt.NewStream(bad)); !errors.Is(err, ErrMalformed) {
		t.Errorf("unknown atom err = %v, want ErrMalformed", err)
	}
}

func TestDecodeNestedLiteral(t *testing.T) {
	// scrn @unk226 #4 #-3 takes one more expression; the selector
	// constants keep their wire widths.
	data := []byte{
		byte(opcode.CmdScrn),
		byte(opcode.ExprImm32), 0xe2, 0, 0, 0,
		byte(opcode.ExprImm16), 4, 0,
		byte(opcode.ExprImm16), 0xfd, 0xff,
		byte(opcode.ExprImm16), 7, 0,
	}
	cmd := decodeOne(t, data)
	if len(cmd.Operands) != 4 {
		t.Fatalf("operands = %d, want 4", len(cmd.Operands))
	}
	if tag := cmd.Operands[0].(ir.TypeTag); opcode.Atom(tag) != opcode.AtomUnk226 {
		t.Errorf("tag = %v, want @unk226", tag)
	}
	if v, _ := ir.ConstValue(cmd.Operands[2]); v != -3 {
		t.Errorf("inner selector = %d, want -3", v)
	}
}

func TestDecodePtclCounted(t *testing.T) {
	data := []byte{
		byte(opcode.CmdPtcl),
		byte(opcode.ExprImm16), 1, 0,
		byte(opcode.ExprImm32), 0xdc, 0, 0, 0,
		byte(opcode.ExprImm16), 2, 0,
		byte(opcode.ExprImm16), 2, 0,
		byte(opcode.ExprImm16), 3, 0,
		byte(opcode.ExprImm16), 4, 0,
	}
	cmd := decodeOne(t, data)
	if len(cmd.Operands) != 6 {
		t.Fatalf("operands = %d, want 6", len(cmd.Operands))
	}

	// Re-encoding must reject a count that disagrees with the arguments.
	trimmed := &ir.Command{Opcode: cmd.Opcode, Operands: cmd.Operands[:5]}
	var fx fixupRec
	if err := EncodeCommand(evfmt.NewWriter(), trimmed, &fx); !errors.Is(err, ErrBadOperands) {
		t.Errorf("count mismatch err = %v, want ErrBadOperands", err)
	}
}

func TestDecodeMsgStream(t *testing.T) {
	data := []byte{
		byte(opcode.CmdMsg),
		13, 0, 0, 0,
		'H', 'i', '$',
		byte(opcode.MsgNewline),
		byte(opcode.MsgSize), 22,
		'!',
		byte(opcode.MsgEnd),
	}
	cmd := decodeOne(t, data)
	if len(cmd.Operands) != 4 {
		t.Fatalf("operands = %d, want 4", len(cmd.Operands))
	}
	text := cmd.Operands[0].(*ir.MsgCmd)
	if text.Opcode != opcode.MsgText || !bytes.Equal([]byte(text.Operands[0].(ir.Text)), []byte(`Hi"`)) {
		t.Errorf("text run = %v %q, want coalesced Hi\" with unescaped quote",
			text.Opcode, text.Operands[0])
	}
	if nl := cmd.Operands[1].(*ir.MsgCmd); nl.Opcode != opcode.MsgNewline {
		t.Errorf("operand 1 = %v, want newline", nl.Opcode)
	}
	if size := cmd.Operands[2].(*ir.MsgCmd); size.Opcode != opcode.MsgSize {
		t.Errorf("operand 2 = %v, want size", size.Opcode)
	}
}

func TestDecodeMsgEndMismatch(t *testing.T) {
	data := []byte{
		byte(opcode.CmdMsg),
		9, 0, 0, 0,
		'H',
		byte(opcode.MsgEnd),
	}
	_, err := DecodeCommand(evfmt.NewStream(data))
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
}

// TestRoundTripSimple re-encodes decoded commands whose expressions are
// all single constants, where the flat and recovered forms coincide, and
// checks for byte identity.
func TestRoundTripSimple(t *testing.T) {
	tests := [][]byte{
		{byte(opcode.CmdAbort)},
		{byte(opcode.CmdReturn)},
		{byte(opcode.CmdGoto), 0x44, 0x01, 0, 0},
		{byte(opcode.CmdLib), 12, 0},
		{byte(opcode.CmdWarp), byte(opcode.ExprImm16), 1, 0, byte(opcode.ExprImm16), 2, 0},
		{byte(opcode.CmdWait), byte(opcode.ExprImm32), 0xe1, 0, 0, 0},
		{byte(opcode.CmdPrintF), 'd', 'e', 'b', 'u', 'g', 0},
		{byte(opcode.CmdSfx),
			byte(opcode.ExprImm32), 57, 0, 0, 0,
			byte(opcode.ExprImm16), 4, 0,
			byte(opcode.ExprImm16), 10, 0,
			byte(opcode.ExprImm16), 100, 0},
		{byte(opcode.CmdMenu), byte(opcode.ExprImm16), 0xe8, 3, byte(opcode.ExprImm16), 1, 0},
		{byte(opcode.CmdCall), 8, 0,
			byte(opcode.ExprImm16), 100, 0,
			byte(opcode.ExprImm16), 1, 0},
		{byte(opcode.CmdMsg), 8, 0, 0, 0, 'H', 'i', byte(opcode.MsgEnd)},
	}
	for _, data := range tests {
		cmd := decodeOne(t, data)
		w := evfmt.NewWriter()
		var fx fixupRec
		if err := EncodeCommand(w, cmd, &fx); err != nil {
			t.Errorf("encode %v failed: %v", cmd.Opcode, err)
			continue
		}
		for _, e := range fx.ends {
			if err := w.PatchUint32(e.pos, uint32(e.end)); err != nil {
				t.Fatalf("patch failed: %v", err)
			}
		}
		if !bytes.Equal(w.Bytes(), data) {
			t.Errorf("%v round trip = % x, want % x", cmd.Opcode, w.Bytes(), data)
		}
	}
}

func TestEncodeInt32MinusOne(t *testing.T) {
	w := evfmt.NewWriter()
	cmd := &ir.Command{Opcode: opcode.CmdSetSp, Operands: []ir.Operand{ir.Imm32(-1)}}
	var fx fixupRec
	if err := EncodeCommand(w, cmd, &fx); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	want := []byte{byte(opcode.CmdSetSp), byte(opcode.ExprImm32), 0xff, 0xff, 0xff, 0xff}
	if !bytes.Equal(w.Bytes(), want) {
		t.Fatalf("bytes = % x, want % x", w.Bytes(), want)
	}

	back := decodeOne(t, want)
	if v, ok := ir.ConstValue(back.Operands[0]); !ok || v != -1 {
		t.Errorf("decoded value = %d, want -1", v)
	}
}

func TestEncodeLabelPlaceholder(t *testing.T) {
	cond := &ir.Expr{
		Opcode:   opcode.ExprNot,
		Operands: []ir.Operand{&ir.Expr{Opcode: opcode.ExprFlag, Operands: []ir.Operand{ir.Imm16(3)}}},
	}
	cmd := &ir.Command{Opcode: opcode.CmdIf, Operands: []ir.Operand{cond, ir.ElseRef(7)}}
	w := evfmt.NewWriter()
	var fx fixupRec
	if err := EncodeCommand(w, cmd, &fx); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if len(fx.labels) != 1 {
		t.Fatalf("label fixups = %d, want 1", len(fx.labels))
	}
	if fx.labels[0].pos != w.Len()-4 || fx.labels[0].label != 7 {
		t.Errorf("fixup = %+v, want pos %d label 7", fx.labels[0], w.Len()-4)
	}
	if !bytes.Equal(w.Bytes()[w.Len()-4:], []byte{0, 0, 0, 0}) {
		t.Errorf("placeholder bytes = % x, want zeros", w.Bytes()[w.Len()-4:])
	}
}

func TestEncodeNestedTree(t *testing.T) {
	// set var(0) = add(var(0), 1): the value is written first and the
	// add's right child precedes its left on the wire.
	variable := func() *ir.Expr {
		return &ir.Expr{Opcode: opcode.ExprVariable, Operands: []ir.Operand{ir.Imm16(0)}}
	}
	cmd := &ir.Command{Opcode: opcode.CmdSet, Operands: []ir.Operand{
		variable(),
		&ir.Expr{Opcode: opcode.ExprAdd, Operands: []ir.Operand{variable(), ir.Imm16(1)}},
	}}
	w := evfmt.NewWriter()
	var fx fixupRec
	if err := EncodeCommand(w, cmd, &fx); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	want := []byte{
		byte(opcode.CmdSet),
		byte(opcode.ExprAdd),
		byte(opcode.ExprImm16), 1, 0,
		byte(opcode.ExprVariable), byte(opcode.ExprImm16), 0, 0,
		byte(opcode.ExprVariable), byte(opcode.ExprImm16), 0, 0,
	}
	if !bytes.Equal(w.Bytes(), want) {
		t.Fatalf("bytes = % x, want % x", w.Bytes(), want)
	}
}

func TestEncodeSetContract(t *testing.T) {
	var fx fixupRec

	// One operand that is not an in-place operator.
	cmd := &ir.Command{Opcode: opcode.CmdSet, Operands: []ir.Operand{ir.Imm16(1)}}
	if err := EncodeCommand(evfmt.NewWriter(), cmd, &fx); !errors.Is(err, ErrBadOperands) {
		t.Errorf("one-operand err = %v, want ErrBadOperands", err)
	}

	// Two operands with an in-place value.
	cmd = &ir.Command{Opcode: opcode.CmdSet, Operands: []ir.Operand{
		&ir.Expr{Opcode: opcode.ExprVariable, Operands: []ir.Operand{ir.Imm16(0)}},
		&ir.Expr{Opcode: opcode.ExprAddAssign, Operands: []ir.Operand{
			&ir.Expr{Opcode: opcode.ExprVariable, Operands: []ir.Operand{ir.Imm16(0)}},
			ir.Imm16(1),
		}},
	}}
	if err := EncodeCommand(evfmt.NewWriter(), cmd, &fx); !errors.Is(err, ErrBadOperands) {
		t.Errorf("in-place with target err = %v, want ErrBadOperands", err)
	}
}

func TestEncodeMsgLimits(t *testing.T) {
	var fx fixupRec

	long := bytes.Repeat([]byte{'a'}, maxMsgChars+1)
	cmd := &ir.Command{Opcode: opcode.CmdMsg, Operands: []ir.Operand{
		&ir.MsgCmd{Opcode: opcode.MsgText, Operands: []ir.Operand{ir.Text(long)}},
	}}
	if err := EncodeCommand(evfmt.NewWriter(), cmd, &fx); !errors.Is(err, ErrTooManyChars) {
		t.Errorf("char limit err = %v, want ErrTooManyChars", err)
	}

	cmd = &ir.Command{Opcode: opcode.CmdMsg, Operands: []ir.Operand{
		&ir.MsgCmd{Opcode: opcode.MsgText, Operands: []ir.Operand{ir.Text([]byte{1, 2})}},
	}}
	if err := EncodeCommand(evfmt.NewWriter(), cmd, &fx); !errors.Is(err, ErrBadChar) {
		t.Errorf("command byte err = %v, want ErrBadChar", err)
	}
}

func TestDataPointerArray(t *testing.T) {
	// Entries end at a terminator of zero or less, which is dropped.
	data := []byte{
		0x10, 0, 0, 0,
		0x20, 0, 0, 0,
		0, 0, 0, 0,
	}
	d, err := DecodeData(evfmt.NewStream(data), ir.DataPtr, len(data))
	if err != nil {
		t.Fatalf("DecodeData() failed: %v", err)
	}
	if len(d.Ptrs) != 2 {
		t.Fatalf("entries = %d, want 2", len(d.Ptrs))
	}
	if off, _ := d.Ptrs[1].Offset(); off != 0x20 {
		t.Errorf("entry 1 = %v, want 0x20", d.Ptrs[1])
	}

	w := evfmt.NewWriter()
	var fx fixupRec
	if err := EncodeData(w, d, &fx); err != nil {
		t.Fatalf("EncodeData() failed: %v", err)
	}
	if !bytes.Equal(w.Bytes(), data) {
		t.Errorf("round trip = % x, want % x", w.Bytes(), data)
	}
}

func TestDataRecords(t *testing.T) {
	bone := []byte{5, 0, 2, 0, 1, 0, 3, 0}
	d, err := DecodeData(evfmt.NewStream(bone), ir.DataObjBone, len(bone))
	if err != nil {
		t.Fatalf("bone decode failed: %v", err)
	}
	if d.Bone.Obj != 5 || len(d.Bone.Path) != 2 || d.Bone.Path[1] != 3 {
		t.Errorf("bone = %+v, want obj 5 path [1 3]", d.Bone)
	}
	w := evfmt.NewWriter()
	var fx fixupRec
	if err := EncodeData(w, d, &fx); err != nil {
		t.Fatalf("bone encode failed: %v", err)
	}
	if !bytes.Equal(w.Bytes(), bone) {
		t.Errorf("bone round trip = % x, want % x", w.Bytes(), bone)
	}

	str := []byte{'h', 'i', 0}
	d, err = DecodeData(evfmt.NewStream(str), ir.DataString, len(str))
	if err != nil {
		t.Fatalf("string decode failed: %v", err)
	}
	if string(d.Raw) != "hi" {
		t.Errorf("string = %q, want %q", d.Raw, "hi")
	}
}
