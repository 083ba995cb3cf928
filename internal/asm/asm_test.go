package asm

import (
	"bytes"
	"errors"
	"testing"

	"unstage/internal/analysis"
	"unstage/internal/ir"
	"unstage/internal/opcode"
)

// pad returns a printf command long enough to push everything after it
// past the container header region.
func pad() []byte {
	data := []byte{37}
	data = append(data, bytes.Repeat([]byte{'a'}, 70)...)
	return append(data, 0)
}

func TestRoundTrip(t *testing.T) {
	diamond := append(pad(),
		5, 23, 1, 0, 0x55, 0, 0, 0, // if 1 else 0x55
		3, 0x5d, 0, 0, 0, // goto 0x5d
		4, 23, 1, 0, 29, 23, 0, 0, // set var[0] = 1
		2, // return
	)

	// Branch targets below 0x48 are header references and must
	// reassemble verbatim without label resolution.
	header := []byte{
		5, 23, 1, 0, 13, 0, 0, 0,
		3, 21, 0, 0, 0,
		4, 23, 1, 0, 29, 23, 0, 0,
		2,
	}

	message := []byte{
		35, 8, 0, 0, 0, 'h', 'i', 0, // msg "hi"
		2,
	}

	strData := append(pad(),
		49, 25, 0x5e, 0, 0, 0, // movie with a path at 0x5e
		23, 0, 0, 23, 0, 0, 23, 0, 0, 23, 0, 0, 23, 0, 0,
		2,
	)
	strData = append(strData, 'o', 'k', 0)

	ptrTable := append(pad(),
		4, 7, 25, 0, 0, 0, 0, 25, 0x61, 0, 0, 0, 29, 23, 0, 0, // set var[0] = table[0]
		20, 23, 0, 0, 29, 23, 0, 0, // attach obj 0, var[0]
		2, // return
	)
	ptrTable = append(ptrTable, 0x69, 0, 0, 0, 0, 0, 0, 0) // table at 0x61
	ptrTable = append(ptrTable, 2)                         // event at 0x69

	cases := []struct {
		name string
		data []byte
	}{
		{"diamond", diamond},
		{"header pointers", header},
		{"message", message},
		{"string data", strData},
		{"pointer table", ptrTable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			prog, _, err := analysis.Analyze(tc.data, []uint32{0}, analysis.Options{})
			if err != nil {
				t.Fatalf("Analyze() = %v", err)
			}
			im, err := Assemble(prog)
			if err != nil {
				t.Fatalf("Assemble() = %v", err)
			}
			if !bytes.Equal(im.Bytes, tc.data) {
				t.Errorf("reassembled % x\nwant        % x", im.Bytes, tc.data)
			}
		})
	}
}

func TestAssembleAuthored(t *testing.T) {
	prog := ir.NewProgram()
	b0 := prog.AddBlock(&ir.AsmBlock{Code: &ir.Code{Next: ir.NoBlock, Else: ir.NoBlock}})
	b1 := prog.AddBlock(&ir.AsmBlock{Code: &ir.Code{Next: ir.NoBlock, Else: ir.NoBlock}})
	b2 := prog.AddBlock(&ir.AsmBlock{Data: &ir.Data{Kind: ir.DataString, Raw: []byte("hi")}})
	tail, err := prog.Labels.Define("tail", b1)
	if err != nil {
		t.Fatalf("Define() = %v", err)
	}
	text, err := prog.Labels.Define("text", b2)
	if err != nil {
		t.Fatalf("Define() = %v", err)
	}
	prog.Block(b0).Code.Commands = []*ir.Command{
		{Opcode: opcode.CmdGoto, Operands: []ir.Operand{ir.LabelRef(tail)}},
	}
	prog.Block(b1).Code.Commands = []*ir.Command{{Opcode: opcode.CmdReturn}}
	prog.Subs = []*ir.Subroutine{
		{Entry: b0, Blocks: []ir.BlockID{b0}},
		{Entry: b1, Blocks: []ir.BlockID{b1}},
	}

	im, err := Assemble(prog)
	if err != nil {
		t.Fatalf("Assemble() = %v", err)
	}
	want := []byte{3, 5, 0, 0, 0, 2, 'h', 'i', 0}
	if !bytes.Equal(im.Bytes, want) {
		t.Fatalf("bytes = % x, want % x", im.Bytes, want)
	}
	if im.Labels[tail] != 5 || im.Labels[text] != 6 {
		t.Errorf("labels = %v, want tail at 5 and text at 6", im.Labels)
	}

	prog.Base = 0x20
	im, err = Assemble(prog)
	if err != nil {
		t.Fatalf("Assemble() with base = %v", err)
	}
	want = []byte{3, 0x25, 0, 0, 0, 2, 'h', 'i', 0}
	if !bytes.Equal(im.Bytes, want) {
		t.Fatalf("based bytes = % x, want % x", im.Bytes, want)
	}
	if im.Labels[tail] != 0x25 {
		t.Errorf("based tail = 0x%x, want 0x25", im.Labels[tail])
	}
}

func TestAssembleUnresolvedLabel(t *testing.T) {
	prog := ir.NewProgram()
	b0 := prog.AddBlock(&ir.AsmBlock{Code: &ir.Code{Next: ir.NoBlock, Else: ir.NoBlock}})
	prog.Block(b0).Code.Commands = []*ir.Command{
		{Opcode: opcode.CmdGoto, Operands: []ir.Operand{ir.LabelRef(7)}},
	}
	prog.Subs = []*ir.Subroutine{{Entry: b0, Blocks: []ir.BlockID{b0}}}

	im, err := Assemble(prog)
	if !errors.Is(err, ErrUnresolved) {
		t.Fatalf("Assemble() = %v, want ErrUnresolved", err)
	}
	if im != nil {
		t.Errorf("image = %v, want nil", im)
	}
}

func TestAssembleFallthroughOrder(t *testing.T) {
	build := func() (*ir.Program, ir.BlockID, ir.BlockID) {
		prog := ir.NewProgram()
		b0 := prog.AddBlock(&ir.AsmBlock{Code: &ir.Code{Next: ir.NoBlock, Else: ir.NoBlock}})
		b1 := prog.AddBlock(&ir.AsmBlock{Code: &ir.Code{Next: ir.NoBlock, Else: ir.NoBlock}})
		prog.Block(b0).Code.Commands = []*ir.Command{
			{Opcode: opcode.CmdSetSp, Operands: []ir.Operand{ir.Imm16(1)}},
		}
		prog.Block(b0).Code.Next = b1
		prog.Block(b1).Code.Commands = []*ir.Command{{Opcode: opcode.CmdReturn}}
		return prog, b0, b1
	}

	prog, b0, b1 := build()
	prog.Subs = []*ir.Subroutine{{Entry: b0, Blocks: []ir.BlockID{b0, b1}}}
	im, err := Assemble(prog)
	if err != nil {
		t.Fatalf("Assemble() = %v", err)
	}
	want := []byte{16, 23, 1, 0, 2}
	if !bytes.Equal(im.Bytes, want) {
		t.Fatalf("bytes = % x, want % x", im.Bytes, want)
	}

	prog, b0, b1 = build()
	prog.Subs = []*ir.Subroutine{
		{Entry: b1, Blocks: []ir.BlockID{b1}},
		{Entry: b0, Blocks: []ir.BlockID{b0}},
	}
	if _, err := Assemble(prog); !errors.Is(err, ErrLayout) {
		t.Fatalf("Assemble() with split fallthrough = %v, want ErrLayout", err)
	}
}

func TestAssembleUnplacedBlock(t *testing.T) {
	prog := ir.NewProgram()
	b0 := prog.AddBlock(&ir.AsmBlock{Code: &ir.Code{Next: ir.NoBlock, Else: ir.NoBlock}})
	prog.AddBlock(&ir.AsmBlock{Code: &ir.Code{Next: ir.NoBlock, Else: ir.NoBlock}})
	prog.Block(b0).Code.Commands = []*ir.Command{{Opcode: opcode.CmdReturn}}
	prog.Subs = []*ir.Subroutine{{Entry: b0, Blocks: []ir.BlockID{b0}}}

	if _, err := Assemble(prog); !errors.Is(err, ErrLayout) {
		t.Fatalf("Assemble() = %v, want ErrLayout", err)
	}
}
