// Package bank reads and writes the globals script bank, the container
// holding the game's shared library events: a fixed table of entry-point
// offsets followed by the script bytes the offsets point into.
package bank

import (
	"encoding/binary"
	"errors"
	"fmt"

	"unstage/internal/analysis"
	"unstage/internal/asm"
	"unstage/internal/evfmt"
	"unstage/internal/ir"
)

const (
	// LibCount is the number of entry points in the bank table.
	LibCount = 376

	// TableSize is the byte size of the entry table, which is also the
	// file offset of the first script byte. Table offsets are absolute,
	// so they all point past the table itself.
	TableSize = LibCount * 4
)

// ErrBadTable marks a bank whose entry table cannot be used: the file is
// shorter than the table, or an entry points outside the script region.
var ErrBadTable = errors.New("bank: malformed entry table")

// ReadLibs analyzes a bank file and returns the recovered program. Every
// table entry becomes a program entry point labeled lib_N by table index;
// block offsets stay file-absolute. The program's base is the table size,
// so reassembly places the script region where the source had it.
func ReadLibs(data []byte, opts evfmt.Options, patches []uint32) (*ir.Program, *evfmt.Diags, error) {
	entries, err := readTable(data)
	if err != nil {
		return nil, nil, err
	}
	return analysis.Analyze(data, entries, analysis.Options{
		Format:  opts,
		Patches: patches,
		Prefix:  "lib",
		Base:    TableSize,
	})
}

func readTable(data []byte) ([]uint32, error) {
	if len(data) < TableSize {
		return nil, fmt.Errorf("bank: file is %d bytes, the table needs %d: %w",
			len(data), TableSize, ErrBadTable)
	}
	s := evfmt.NewStream(data)
	entries := make([]uint32, LibCount)
	for i := range entries {
		v, err := s.ReadUint32()
		if err != nil {
			return nil, err
		}
		if v < TableSize || v >= uint32(len(data)) {
			return nil, fmt.Errorf("bank: entry %d points at 0x%x: %w", i, v, ErrBadTable)
		}
		entries[i] = v
	}
	return entries, nil
}

// WriteLibs assembles prog and rebuilds the bank file: the entry table
// regenerated from the assembled label offsets, then the script image.
func WriteLibs(prog *ir.Program) ([]byte, error) {
	if len(prog.Entries) != LibCount {
		return nil, fmt.Errorf("bank: program has %d entries, the table needs %d: %w",
			len(prog.Entries), LibCount, ErrBadTable)
	}
	if prog.Base != TableSize {
		return nil, fmt.Errorf("bank: program base is 0x%x, want 0x%x: %w",
			prog.Base, TableSize, ErrBadTable)
	}
	im, err := asm.Assemble(prog)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, TableSize+len(im.Bytes))
	for i, e := range prog.Entries {
		off, ok := im.Labels[e.Label]
		if !ok {
			return nil, fmt.Errorf("bank: entry %d has no assembled offset: %w", i, ErrBadTable)
		}
		out = binary.LittleEndian.AppendUint32(out, off)
	}
	return append(out, im.Bytes...), nil
}
