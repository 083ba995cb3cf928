// Package analysis turns a raw event buffer into a labeled program: it
// drives block discovery to a fixpoint, rebuilds expression trees,
// collects typed data references, partitions code into subroutine
// regions, and names every block. The output program feeds the
// assembler and the listing writers unmodified.
package analysis

import (
	"errors"
	"fmt"

	"unstage/internal/evfmt"
	"unstage/internal/ir"
	"unstage/internal/script"
)

var (
	// ErrBadExpr reports an expression tree or flat sequence that does
	// not follow the operator arities.
	ErrBadExpr = errors.New("analysis: malformed expression")

	// ErrBadCommand reports command operands that do not match the
	// command's shape.
	ErrBadCommand = errors.New("analysis: malformed command operands")
)

// Options configures the pipeline.
type Options struct {
	Format  evfmt.Options // decode strictness and limits
	Patches []uint32      // known-bad command offsets, substituted in best-effort mode
	Prefix  string        // entry label prefix; "evt" when empty
	Base    uint32        // container base offset recorded on the program
}

// Analyze disassembles one event buffer. Discovery, expression
// recovery, and reference collection repeat until no new blocks appear;
// the frozen arena is then partitioned into regions and labeled.
// Offsets in entries are buffer-absolute, and the entry index is its
// position in the slice. The returned diagnostics are valid even when
// analysis fails.
func Analyze(data []byte, entries []uint32, opts Options) (*ir.Program, *evfmt.Diags, error) {
	a := script.NewArena(data, opts.Format)
	diags := a.Diags()
	for _, off := range opts.Patches {
		a.Patch(off)
	}
	for i, off := range entries {
		a.AddEntry(i, off)
	}
	for {
		if err := a.Discover(); err != nil {
			return nil, diags, err
		}
		recovered := 0
		for _, off := range a.Offsets() {
			b := a.Block(off)
			if b.Kind != script.Code || b.Recovered {
				continue
			}
			refs, err := recoverBlock(b, diags)
			if err != nil {
				return nil, diags, err
			}
			b.Recovered = true
			recovered++
			for _, r := range refs {
				if err := a.Reference(r); err != nil {
					return nil, diags, err
				}
			}
		}
		expanded, err := a.ExpandArrays()
		if err != nil {
			return nil, diags, err
		}
		if recovered == 0 && expanded == 0 {
			break
		}
	}
	prog, err := a.Freeze()
	if err != nil {
		return nil, diags, err
	}
	prog.Base = opts.Base
	if err := partition(prog, a.Heads()); err != nil {
		return nil, diags, err
	}
	if err := nameProgram(prog, opts.Prefix); err != nil {
		return nil, diags, err
	}
	return prog, diags, nil
}

// recoverBlock rebuilds the block's expression trees and collects its
// references.
func recoverBlock(b *script.Block, diags *evfmt.Diags) ([]script.Ref, error) {
	for i, cmd := range b.Cmds {
		if err := Recover(cmd); err != nil {
			return nil, fmt.Errorf("analysis: command at 0x%x: %w", b.CmdOffs[i], err)
		}
	}
	return CollectRefs(b, diags)
}
