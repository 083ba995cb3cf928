package main

import (
	"bytes"
	"flag"

	"unstage/internal/listing"
)

func cmdDisasm(args []string) error {
	fs := flag.NewFlagSet("disasm", flag.ExitOnError)
	in := addInputFlags(fs)
	outPath := fs.String("out", "", "write the listing here instead of stdout")
	jsonOut := fs.Bool("json", false, "emit the structured dump as JSON instead of text")

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

	if *jsonOut {
		var buf bytes.Buffer
		if err := listing.WriteJSON(&buf, listing.NewDump(prog)); err != nil {
			return err
		}
		return writeOut(*outPath, buf.Bytes())
	}
	return writeOut(*outPath, []byte(listing.Format(prog)))
}
