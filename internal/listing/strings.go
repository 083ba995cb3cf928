package listing

import "unstage/internal/ir"

// A StringRef is one piece of text recovered from a program: the label of
// the subroutine or data block holding it, the source offset of its block,
// and the text itself.
type StringRef struct {
	Scope  string `json:"scope" cbor:"1,keyasint"`
	Offset uint32 `json:"offset" cbor:"2,keyasint"`
	Text   string `json:"text" cbor:"3,keyasint"`
}

// Strings extracts every text operand and message text run in subroutine
// order, then every string data block in arena order.
func Strings(prog *ir.Program) []StringRef {
	var refs []StringRef
	for _, sub := range prog.Subs {
		scope := blockLabel(prog, sub.Entry)
		for _, id := range sub.Blocks {
			blk := prog.Block(id)
			if blk == nil || blk.Code == nil {
				continue
			}
			for _, cmd := range blk.Code.Commands {
				refs = collectText(refs, scope, blk.SrcOffset, cmd.Operands)
			}
		}
	}
	for _, id := range prog.DataBlocks() {
		blk := prog.Block(id)
		if blk.Data.Kind != ir.DataString {
			continue
		}
		refs = append(refs, StringRef{
			Scope:  blockLabel(prog, id),
			Offset: blk.SrcOffset,
			Text:   string(blk.Data.Raw),
		})
	}
	return refs
}

// collectText walks an operand tree and appends every text it holds.
func collectText(refs []StringRef, scope string, off uint32, ops []ir.Operand) []StringRef {
	for _, op := range ops {
		switch v := op.(type) {
		case ir.Text:
			refs = append(refs, StringRef{Scope: scope, Offset: off, Text: string(v)})
		case *ir.Expr:
			refs = collectText(refs, scope, off, v.Operands)
		case *ir.MsgCmd:
			refs = collectText(refs, scope, off, v.Operands)
		}
	}
	return refs
}
