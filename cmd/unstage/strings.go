package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"unstage/internal/listing"
)

func cmdStrings(args []string) error {
	fs := flag.NewFlagSet("strings", flag.ExitOnError)
	in := addInputFlags(fs)
	jsonOut := fs.Bool("json", false, "output JSONL instead of text")

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

	refs := listing.Strings(prog)
	if src.verbose {
		fmt.Fprintf(os.Stderr, "%d string references\n", len(refs))
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetEscapeHTML(false)
		for _, r := range refs {
			if err := enc.Encode(r); err != nil {
				return fmt.Errorf("write json: %w", err)
			}
		}
		return nil
	}
	for _, r := range refs {
		fmt.Printf("0x%x\t%s\t%q\n", r.Offset, r.Scope, r.Text)
	}
	return nil
}
