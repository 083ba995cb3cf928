package main

import (
	"bytes"
	"flag"
	"fmt"

	"unstage/internal/listing"
)

func cmdDump(args []string) error {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	in := addInputFlags(fs)
	outPath := fs.String("out", "", "write the dump here instead of stdout")
	format := fs.String("format", "json", "dump format: json or cbor")

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

	d := listing.NewDump(prog)
	var buf bytes.Buffer
	switch *format {
	case "json":
		err = listing.WriteJSON(&buf, d)
	case "cbor":
		err = listing.WriteCBOR(&buf, d)
	default:
		return fmt.Errorf("unknown format %q, want json or cbor", *format)
	}
	if err != nil {
		return err
	}
	return writeOut(*outPath, buf.Bytes())
}
