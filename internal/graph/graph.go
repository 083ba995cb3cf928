// Package graph projects recovered programs onto lattice graph
// structures: a subroutine call graph and per-subroutine control flow
// graphs, both renderable to DOT.
package graph

import (
	"fmt"

	"github.com/zboralski/lattice"

	"unstage/internal/ir"
	"unstage/internal/opcode"
)

// BuildCallGraph builds the subroutine call graph. Each subroutine is a
// node named by its entry label; each run command whose target resolves
// to a label adds an edge to the subroutine it starts.
func BuildCallGraph(prog *ir.Program) *lattice.Graph {
	names := subNames(prog)
	g := &lattice.Graph{}
	for _, sub := range prog.Subs {
		name := names[sub.Entry]
		g.Nodes = append(g.Nodes, name)
		for _, id := range sub.Blocks {
			blk := prog.Block(id)
			if blk == nil || blk.Code == nil {
				continue
			}
			for _, cmd := range blk.Code.Commands {
				callee, ok := runTarget(prog, names, cmd)
				if !ok {
					continue
				}
				g.Edges = append(g.Edges, lattice.Edge{Caller: name, Callee: callee})
			}
		}
	}
	g.Dedup()
	return g
}

// BuildCFG builds the control flow graph of every subroutine.
func BuildCFG(prog *ir.Program) *lattice.CFGGraph {
	cg := &lattice.CFGGraph{}
	for _, sub := range prog.Subs {
		cg.Funcs = append(cg.Funcs, BuildSubCFG(prog, sub))
	}
	return cg
}

// BuildSubCFG builds one subroutine's control flow graph. Block ids are
// arena ids; Start and End index into the subroutine's flattened command
// list. The fallthrough edge of a conditional is its true path, marked
// "T", and the else edge is marked "F". Run commands become call sites
// at their command index.
func BuildSubCFG(prog *ir.Program, sub *ir.Subroutine) *lattice.FuncCFG {
	names := subNames(prog)
	lcfg := &lattice.FuncCFG{Name: names[sub.Entry]}
	pos := 0
	for _, id := range sub.Blocks {
		blk := prog.Block(id)
		if blk == nil || blk.Code == nil {
			continue
		}
		code := blk.Code
		lb := &lattice.BasicBlock{
			ID:    int(id),
			Start: pos,
			End:   pos + len(code.Commands),
		}
		for i, cmd := range code.Commands {
			callee, ok := runTarget(prog, names, cmd)
			if !ok {
				continue
			}
			lb.Calls = append(lb.Calls, lattice.CallSite{Offset: pos + i, Callee: callee})
		}
		switch {
		case code.Else != ir.NoBlock:
			if code.Next != ir.NoBlock {
				lb.Succs = append(lb.Succs, lattice.Successor{BlockID: int(code.Next), Cond: "T"})
			}
			lb.Succs = append(lb.Succs, lattice.Successor{BlockID: int(code.Else), Cond: "F"})
		case code.Next != ir.NoBlock:
			lb.Succs = append(lb.Succs, lattice.Successor{BlockID: int(code.Next)})
		}
		lb.Term = len(lb.Succs) == 0
		pos += len(code.Commands)
		lcfg.Blocks = append(lcfg.Blocks, lb)
	}
	return lcfg
}

// FindSub looks a subroutine up by its entry label.
func FindSub(prog *ir.Program, name string) (*ir.Subroutine, bool) {
	l, ok := prog.Labels.ByName(name)
	if !ok {
		return nil, false
	}
	block := prog.Labels.Block(l)
	for _, sub := range prog.Subs {
		if sub.Entry == block {
			return sub, true
		}
	}
	return nil, false
}

// subNames maps each subroutine entry block to its label name.
func subNames(prog *ir.Program) map[ir.BlockID]string {
	names := make(map[ir.BlockID]string, len(prog.Subs))
	for _, sub := range prog.Subs {
		if l, ok := prog.Labels.ByBlock(sub.Entry); ok {
			names[sub.Entry] = prog.Labels.Name(l)
		} else {
			names[sub.Entry] = fmt.Sprintf("block_%d", sub.Entry)
		}
	}
	return names
}

// runTarget resolves a run command to the name of the subroutine it
// starts. A target that is not another subroutine's entry keeps its own
// label name; raw header offsets are skipped.
func runTarget(prog *ir.Program, names map[ir.BlockID]string, cmd *ir.Command) (string, bool) {
	if cmd.Opcode != opcode.CmdRun || len(cmd.Operands) != 1 {
		return "", false
	}
	ref, ok := cmd.Operands[0].(ir.LabelRef)
	if !ok {
		return "", false
	}
	if name, ok := names[prog.Labels.Block(ir.LabelID(ref))]; ok {
		return name, true
	}
	return prog.Labels.Name(ir.LabelID(ref)), true
}
