package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"

	"unstage/internal/asm"
	"unstage/internal/bank"
)

func cmdRebuild(args []string) error {
	fs := flag.NewFlagSet("rebuild", flag.ExitOnError)
	in := addInputFlags(fs)
	outPath := fs.String("out", "", "write the rebuilt file here; omit to only verify")
	noVerify := fs.Bool("no-verify", false, "skip the byte identity check")

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
	reportDiags(diags)

	var out []byte
	if src.libs != "" {
		out, err = bank.WriteLibs(prog)
	} else {
		im, aerr := asm.Assemble(prog)
		if aerr != nil {
			return aerr
		}
		out = im.Bytes
	}
	if err != nil {
		return err
	}

	if !*noVerify {
		if err := verifyIdentical(out, data); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "verified: %d bytes identical\n", len(out))
	}
	if *outPath == "" {
		return nil
	}
	if err := os.WriteFile(*outPath, out, 0644); err != nil {
		return fmt.Errorf("write %s: %w", *outPath, err)
	}
	fmt.Fprintf(os.Stderr, "wrote %s (%d bytes)\n", *outPath, len(out))
	return nil
}

// verifyIdentical reports the first difference between the rebuilt image
// and the source file.
func verifyIdentical(out, data []byte) error {
	if bytes.Equal(out, data) {
		return nil
	}
	if len(out) != len(data) {
		return fmt.Errorf("rebuild: output is %d bytes, input is %d", len(out), len(data))
	}
	for i := range out {
		if out[i] != data[i] {
			return fmt.Errorf("rebuild: output differs at 0x%x: 0x%02x, want 0x%02x",
				i, out[i], data[i])
		}
	}
	return nil
}
