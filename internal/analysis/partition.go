package analysis

import (
	"fmt"

	"unstage/internal/ir"
)

// partition assigns every code block to a region. Heads are visited in
// ascending address order; each unclaimed head claims everything it can
// reach through fallthrough and branch edges without crossing another
// region's claim. A head whose block was already claimed records no
// region of its own.
func partition(prog *ir.Program, heads []uint32) error {
	byOff := make(map[uint32]ir.BlockID, len(prog.Blocks))
	for _, b := range prog.Blocks {
		byOff[b.SrcOffset] = b.ID
	}
	claimed := make([]bool, len(prog.Blocks))
	for _, off := range heads {
		id, ok := byOff[off]
		if !ok {
			return fmt.Errorf("analysis: region head at 0x%x has no block", off)
		}
		if b := prog.Block(id); b == nil || b.Code == nil {
			return fmt.Errorf("analysis: region head at 0x%x is not code", off)
		}
		if claimed[id] {
			continue
		}
		order := postorder(prog, id, claimed)
		for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
			order[i], order[j] = order[j], order[i]
		}
		prog.Subs = append(prog.Subs, &ir.Subroutine{Entry: id, Blocks: order})
	}
	return nil
}

// postorder claims and orders the region rooted at id. The else branch
// is visited before the fallthrough, so the reversed order emits the
// condition-true path first.
func postorder(prog *ir.Program, id ir.BlockID, claimed []bool) []ir.BlockID {
	var order []ir.BlockID
	var visit func(ir.BlockID)
	visit = func(v ir.BlockID) {
		if v == ir.NoBlock || claimed[v] {
			return
		}
		b := prog.Block(v)
		if b == nil || b.Code == nil {
			return
		}
		claimed[v] = true
		visit(b.Code.Else)
		visit(b.Code.Next)
		order = append(order, v)
	}
	visit(id)
	return order
}
