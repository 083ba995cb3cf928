package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "disasm":
		err = cmdDisasm(os.Args[2:])
	case "rebuild":
		err = cmdRebuild(os.Args[2:])
	case "info":
		err = cmdInfo(os.Args[2:])
	case "graph":
		err = cmdGraph(os.Args[2:])
	case "strings":
		err = cmdStrings(os.Args[2:])
	case "dump":
		err = cmdDump(os.Args[2:])
	case "help", "-h", "--help":
		usage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `unstage - event script toolchain for GGTE01

Usage:
  unstage disasm  --libs <file> [--out <file>] [--json]     Disassemble to a labeled listing
  unstage rebuild --libs <file> [--out <file>] [--no-verify] Reassemble, verifying byte identity
  unstage info    --libs <file>                             Summarize the recovered program
  unstage graph   --libs <file> [--cfg <sub>] [--out <file>] Call graph, or one subroutine's CFG, as DOT
  unstage strings --libs <file> [--json]                    Extract string literals
  unstage dump    --libs <file> [--format json|cbor] [--out <file>] Dump the full program structure

Every command also takes:
  --raw <file> --entry <offsets>  Analyze a raw event blob at the given entry offsets
  --project <file>                Read inputs and decode settings from unstage.toml
  --strict                        Fail on the first structural error (default)
  --best-effort                   Record diagnostics and continue where patched
  --patch <offsets>               Decode the commands at these offsets as data
  -v                              Log progress to stderr

Offset lists are comma-separated, decimal or 0x-prefixed hex.
`)
}
