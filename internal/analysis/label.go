package analysis

import (
	"fmt"

	"unstage/internal/ir"
	"unstage/internal/script"
)

// nameProgram labels every block and swaps raw pointer operands for
// label references. Entry blocks are named prefix_N by table ordinal,
// remaining region heads sub_N and all other blocks loc_N by block id.
// Pointers into the container header and pointers at no known block
// keep their raw offsets.
func nameProgram(prog *ir.Program, prefix string) error {
	if prefix == "" {
		prefix = "evt"
	}
	for i := range prog.Entries {
		e := &prog.Entries[i]
		l, err := prog.Labels.Define(fmt.Sprintf("%s_%d", prefix, e.Index), e.Block)
		if err != nil {
			return err
		}
		e.Label = l
	}
	isHead := make(map[ir.BlockID]bool, len(prog.Subs))
	for _, sub := range prog.Subs {
		isHead[sub.Entry] = true
	}
	for _, b := range prog.Blocks {
		if _, ok := prog.Labels.ByBlock(b.ID); ok {
			continue
		}
		name := fmt.Sprintf("loc_%d", b.ID)
		if isHead[b.ID] {
			name = fmt.Sprintf("sub_%d", b.ID)
		}
		if _, err := prog.Labels.Define(name, b.ID); err != nil {
			return err
		}
	}

	byOff := make(map[uint32]ir.BlockID, len(prog.Blocks))
	for _, b := range prog.Blocks {
		byOff[b.SrcOffset] = b.ID
	}
	for _, b := range prog.Blocks {
		switch {
		case b.Code != nil:
			for _, cmd := range b.Code.Commands {
				isIf := cmd.Opcode.IsIf()
				last := len(cmd.Operands) - 1
				for i, op := range cmd.Operands {
					cmd.Operands[i] = relabel(prog, byOff, op, isIf && i == last)
				}
			}
		case b.Data != nil:
			for i, p := range b.Data.Ptrs {
				off, ok := p.Offset()
				if !ok || off <= script.HeaderEnd {
					continue
				}
				if l, ok := labelAt(prog, byOff, off); ok {
					b.Data.Ptrs[i] = ir.ToLabel(l)
				}
			}
		}
	}
	return nil
}

// relabel swaps one operand's raw offset for a label reference,
// recursing through expression trees for address-of payloads.
func relabel(prog *ir.Program, byOff map[uint32]ir.BlockID, op ir.Operand, asElse bool) ir.Operand {
	switch v := op.(type) {
	case ir.Offset:
		if uint32(v) <= script.HeaderEnd {
			return op
		}
		l, ok := labelAt(prog, byOff, uint32(v))
		if !ok {
			return op
		}
		if asElse {
			return ir.ElseRef(l)
		}
		return ir.LabelRef(l)
	case *ir.Expr:
		for i, ch := range v.Operands {
			v.Operands[i] = relabel(prog, byOff, ch, false)
		}
		return v
	default:
		return op
	}
}

func labelAt(prog *ir.Program, byOff map[uint32]ir.BlockID, off uint32) (ir.LabelID, bool) {
	id, ok := byOff[off]
	if !ok {
		return ir.NoLabel, false
	}
	return prog.Labels.ByBlock(id)
}
