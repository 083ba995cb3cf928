// Package asm lays out a recovered program and assembles it back into
// event-binary bytes. Regions are placed in source-offset order so a
// program read from a file reassembles byte-identically; pointer fields
// are written as zero placeholders and back-patched once every block's
// final position is known.
package asm

import (
	"errors"
	"fmt"
	"sort"

	"unstage/internal/codec"
	"unstage/internal/evfmt"
	"unstage/internal/ir"
	"unstage/internal/opcode"
)

var (
	// ErrLayout marks a program whose recorded block order cannot be
	// laid out, such as a fallthrough into a non-adjacent block.
	ErrLayout = errors.New("asm: inconsistent layout")

	// ErrUnresolved marks a pointer field whose label has no emitted
	// block. No bytes are handed back when any pointer is unresolved.
	ErrUnresolved = errors.New("asm: unresolved label")
)

// Image is an assembled program: the raw bytes and the absolute offset
// every label resolved to. Base is the file position of Bytes[0] inside
// the surrounding container and is already added to the label offsets
// and every patched pointer.
type Image struct {
	Bytes  []byte
	Base   uint32
	Labels map[ir.LabelID]uint32
}

// fixups collects the pointer fields the codec cannot finalize while
// encoding: label references and message end offsets.
type fixups struct {
	labels []labelSite
	ends   []endSite
}

type labelSite struct {
	pos   int
	label ir.LabelID
}

type endSite struct {
	pos, end int
}

func (f *fixups) Label(pos int, label ir.LabelID) {
	f.labels = append(f.labels, labelSite{pos: pos, label: label})
}

func (f *fixups) End(pos, end int) {
	f.ends = append(f.ends, endSite{pos: pos, end: end})
}

// Assemble encodes prog into a single byte image. Every subroutine is
// one contiguous region in its recorded block order and every data
// block is its own region; regions are placed by ascending source
// offset, with authored regions that have no offsets keeping program
// order, code before data. A block that continues into its successor
// must be immediately followed by it.
func Assemble(prog *ir.Program) (*Image, error) {
	seq, err := layout(prog)
	if err != nil {
		return nil, err
	}
	w := evfmt.NewWriter()
	fx := &fixups{}
	pos := make(map[ir.BlockID]int, len(seq))
	for i, id := range seq {
		b := prog.Block(id)
		pos[id] = w.Len()
		switch {
		case b.Code != nil:
			for _, cmd := range b.Code.Commands {
				if err := codec.EncodeCommand(w, cmd, fx); err != nil {
					return nil, fmt.Errorf("asm: %s: %w", blockName(prog, id), err)
				}
			}
			if err := checkFallthrough(prog, b, seq, i); err != nil {
				return nil, err
			}
		case b.Data != nil:
			if err := codec.EncodeData(w, b.Data, fx); err != nil {
				return nil, fmt.Errorf("asm: %s: %w", blockName(prog, id), err)
			}
		default:
			return nil, fmt.Errorf("asm: %s has no payload: %w", blockName(prog, id), ErrLayout)
		}
	}

	for _, f := range fx.labels {
		blk := prog.Labels.Block(f.label)
		p, ok := pos[blk]
		if blk == ir.NoBlock || !ok {
			return nil, fmt.Errorf("asm: pointer to %s: %w", labelName(prog, f.label), ErrUnresolved)
		}
		if err := w.PatchUint32(f.pos, prog.Base+uint32(p)); err != nil {
			return nil, err
		}
	}
	for _, f := range fx.ends {
		if err := w.PatchUint32(f.pos, prog.Base+uint32(f.end)); err != nil {
			return nil, err
		}
	}

	im := &Image{Bytes: w.Bytes(), Base: prog.Base, Labels: make(map[ir.LabelID]uint32)}
	for id := ir.LabelID(0); int(id) < prog.Labels.Len(); id++ {
		if p, ok := pos[prog.Labels.Block(id)]; ok {
			im.Labels[id] = prog.Base + uint32(p)
		}
	}
	return im, nil
}

// layout flattens the program into one emission sequence. Every block
// must land in exactly one region.
func layout(prog *ir.Program) ([]ir.BlockID, error) {
	type region struct {
		src    uint32
		blocks []ir.BlockID
	}
	var regions []region
	for _, sub := range prog.Subs {
		if len(sub.Blocks) == 0 {
			continue
		}
		first := prog.Block(sub.Blocks[0])
		if first == nil {
			return nil, fmt.Errorf("asm: subroutine entry block %d missing: %w", sub.Blocks[0], ErrLayout)
		}
		regions = append(regions, region{src: first.SrcOffset, blocks: sub.Blocks})
	}
	for _, b := range prog.Blocks {
		if b.Data != nil {
			regions = append(regions, region{src: b.SrcOffset, blocks: []ir.BlockID{b.ID}})
		}
	}
	sort.SliceStable(regions, func(i, j int) bool { return regions[i].src < regions[j].src })

	seq := make([]ir.BlockID, 0, len(prog.Blocks))
	seen := make(map[ir.BlockID]bool, len(prog.Blocks))
	for _, r := range regions {
		for _, id := range r.blocks {
			if prog.Block(id) == nil {
				return nil, fmt.Errorf("asm: block %d missing: %w", id, ErrLayout)
			}
			if seen[id] {
				return nil, fmt.Errorf("asm: %s placed twice: %w", blockName(prog, id), ErrLayout)
			}
			seen[id] = true
			seq = append(seq, id)
		}
	}
	for _, b := range prog.Blocks {
		if !seen[b.ID] {
			return nil, fmt.Errorf("asm: %s is not in any region: %w", blockName(prog, b.ID), ErrLayout)
		}
	}
	return seq, nil
}

// checkFallthrough verifies that a block whose last command is not an
// unconditional transfer is immediately followed by its successor.
// Conditionals count: they fall through on the true path.
func checkFallthrough(prog *ir.Program, b *ir.AsmBlock, seq []ir.BlockID, i int) error {
	if n := len(b.Code.Commands); n > 0 {
		op := b.Code.Commands[n-1].Opcode
		if op.IsGoto() || op == opcode.CmdAbort || op == opcode.CmdReturn {
			return nil
		}
	}
	next := b.Code.Next
	if next == ir.NoBlock {
		return fmt.Errorf("asm: %s has no fallthrough successor: %w", blockName(prog, b.ID), ErrLayout)
	}
	if i+1 >= len(seq) || seq[i+1] != next {
		return fmt.Errorf("asm: %s must fall through to %s: %w",
			blockName(prog, b.ID), blockName(prog, next), ErrLayout)
	}
	return nil
}

// blockName names a block for error messages, preferring its label.
func blockName(prog *ir.Program, id ir.BlockID) string {
	if l, ok := prog.Labels.ByBlock(id); ok {
		return prog.Labels.Name(l)
	}
	return fmt.Sprintf("block %d", id)
}

func labelName(prog *ir.Program, id ir.LabelID) string {
	if name := prog.Labels.Name(id); name != "" {
		return name
	}
	return fmt.Sprintf("label %d", id)
}
