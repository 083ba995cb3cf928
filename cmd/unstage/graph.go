package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/zboralski/lattice"
	"github.com/zboralski/lattice/render"

	"unstage/internal/graph"
)

func cmdGraph(args []string) error {
	fs := flag.NewFlagSet("graph", flag.ExitOnError)
	in := addInputFlags(fs)
	outPath := fs.String("out", "", "write the DOT graph here instead of stdout")
	cfgSub := fs.String("cfg", "", "emit one subroutine's control flow graph instead of the call graph")

	if err := fs.Parse(args); err != nil {
		return err
	}
	src, err := in.resolve()
	if err != nil {
		return err
	}
	prog, diags, _, err := src.load()
	if err != nil {
		return err
	}
	reportDiags(diags)

	var dot string
	if *cfgSub != "" {
		sub, ok := graph.FindSub(prog, *cfgSub)
		if !ok {
			return fmt.Errorf("no subroutine named %q", *cfgSub)
		}
		lcfg := graph.BuildSubCFG(prog, sub)
		dot = render.DOTCFG(&lattice.CFGGraph{Funcs: []*lattice.FuncCFG{lcfg}}, *cfgSub)
	} else {
		cg := graph.BuildCallGraph(prog)
		if src.verbose {
			fmt.Fprintf(os.Stderr, "call graph: %d nodes, %d edges\n", len(cg.Nodes), len(cg.Edges))
		}
		dot = render.DOT(cg, "callgraph")
	}
	return writeOut(*outPath, []byte(dot))
}
