package main

import (
	"flag"
	"fmt"

	"unstage/internal/ir"
)

func cmdInfo(args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	in := addInputFlags(fs)

	if err := fs.Parse(args); err != nil {
		return err
	}
	src, err := in.resolve()
	if err != nil {
		return err
	}
	prog, diags, data, err := src.load()
	if err != nil {
		return err
	}

	var code, dataBlocks, commands int
	kindCounts := make(map[ir.DataKind]int)
	for _, b := range prog.Blocks {
		switch {
		case b.Code != nil:
			code++
			commands += len(b.Code.Commands)
		case b.Data != nil:
			dataBlocks++
			kindCounts[b.Data.Kind]++
		}
	}

	fmt.Printf("input:       %d bytes\n", len(data))
	if prog.Base > 0 {
		fmt.Printf("script base: 0x%x\n", prog.Base)
	}
	fmt.Printf("entries:     %d\n", len(prog.Entries))
	fmt.Printf("subroutines: %d\n", len(prog.Subs))
	fmt.Printf("code blocks: %d (%d commands)\n", code, commands)
	fmt.Printf("data blocks: %d\n", dataBlocks)
	for k := ir.DataI8; k <= ir.DataObjPair; k++ {
		if n := kindCounts[k]; n > 0 {
			fmt.Printf("  %-9s  %d\n", k, n)
		}
	}
	fmt.Printf("labels:      %d\n", prog.Labels.Len())

	if diags != nil && diags.Len() > 0 {
		fmt.Printf("\nDiagnostics (%d):\n", diags.Len())
		for _, d := range diags.Items() {
			fmt.Printf("  %s\n", d)
		}
	}
	return nil
}
