package script

import (
	"fmt"
	"sort"

	"unstage/internal/codec"
	"unstage/internal/evfmt"
	"unstage/internal/ir"
	"unstage/internal/opcode"
)

// Arena accumulates blocks during discovery.
type Arena struct {
	data  []byte
	opts  evfmt.Options
	diags evfmt.Diags

	blocks  map[uint32]*Block
	starts  []uint32
	queue   []uint32
	queued  map[uint32]bool
	heads   map[uint32]bool
	patches map[uint32]bool
	entries []ir.Entry
	steps   int
}

// NewArena returns an empty arena over data.
func NewArena(data []byte, opts evfmt.Options) *Arena {
	return &Arena{
		data:    data,
		opts:    opts,
		blocks:  make(map[uint32]*Block),
		queued:  make(map[uint32]bool),
		heads:   make(map[uint32]bool),
		patches: make(map[uint32]bool),
	}
}

// Diags returns the diagnostics recorded so far.
func (a *Arena) Diags() *evfmt.Diags { return &a.diags }

// Patch registers a known-bad command offset. In best-effort mode a
// decode failure exactly at a patched offset is replaced with an abort
// terminator instead of failing the run.
func (a *Arena) Patch(offset uint32) { a.patches[offset] = true }

// AddEntry seeds a declared entry point. Entries are also region heads
// for the later partition.
func (a *Arena) AddEntry(index int, offset uint32) {
	a.entries = append(a.entries, ir.Entry{
		Index:  index,
		Offset: offset,
		Block:  ir.NoBlock,
		Label:  ir.NoLabel,
	})
	a.seedHead(offset)
}

// Reference processes one discovered reference. Event targets seed code
// discovery and everything else registers a data sighting. Header
// offsets are left alone.
func (a *Arena) Reference(r Ref) error {
	if r.Offset <= HeaderEnd {
		return nil
	}
	if r.Kind.Class == RefEvent {
		a.seedHead(r.Offset)
		return nil
	}
	return a.sightData(r.Offset, r.Kind)
}

// Offsets returns every block start in ascending order.
func (a *Arena) Offsets() []uint32 {
	return append([]uint32(nil), a.starts...)
}

// Block returns the block starting at offset, or nil.
func (a *Arena) Block(offset uint32) *Block { return a.blocks[offset] }

// Heads returns every region head offset in ascending order.
func (a *Arena) Heads() []uint32 {
	out := make([]uint32, 0, len(a.heads))
	for off := range a.heads {
		out = append(out, off)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (a *Arena) seedHead(offset uint32) {
	a.heads[offset] = true
	a.enqueue(offset)
}

func (a *Arena) enqueue(offset uint32) {
	if a.queued[offset] {
		return
	}
	a.queued[offset] = true
	a.queue = append(a.queue, offset)
}

func (a *Arena) insert(b *Block) {
	a.blocks[b.Start] = b
	i := sort.Search(len(a.starts), func(i int) bool { return a.starts[i] >= b.Start })
	a.starts = append(a.starts, 0)
	copy(a.starts[i+1:], a.starts[i:])
	a.starts[i] = b.Start
}

// before returns the block with the greatest start below offset, or nil.
func (a *Arena) before(offset uint32) *Block {
	i := sort.Search(len(a.starts), func(i int) bool { return a.starts[i] >= offset })
	if i == 0 {
		return nil
	}
	return a.blocks[a.starts[i-1]]
}

// boundAfter returns the start of the first block past offset.
func (a *Arena) boundAfter(offset uint32) (uint32, bool) {
	i := sort.Search(len(a.starts), func(i int) bool { return a.starts[i] > offset })
	if i == len(a.starts) {
		return 0, false
	}
	return a.starts[i], true
}

// Discover drains the code worklist.
func (a *Arena) Discover() error {
	for len(a.queue) > 0 {
		off := a.queue[0]
		a.queue = a.queue[1:]
		if err := a.ensureCode(off); err != nil {
			return err
		}
	}
	return nil
}

// ensureCode makes sure a code block starts at offset, splitting an
// existing block or decoding a new one as needed.
func (a *Arena) ensureCode(offset uint32) error {
	if b := a.blocks[offset]; b != nil {
		if b.Kind != Code {
			return fmt.Errorf("script: block at 0x%x read as %v but branched to as code: %w",
				offset, b.DataKind, ErrInconsistent)
		}
		return nil
	}
	if prev := a.before(offset); prev != nil && prev.Kind == Code && offset < prev.End {
		_, err := a.split(prev, offset)
		return err
	}
	return a.readCode(offset)
}

// split cuts a code block at offset, which must land on a command
// boundary. The head keeps the commands before the cut and falls
// through to the new tail, which inherits the old successors.
func (a *Arena) split(b *Block, offset uint32) (*Block, error) {
	i := sort.Search(len(b.CmdOffs), func(i int) bool { return b.CmdOffs[i] >= offset })
	if i >= len(b.CmdOffs) || b.CmdOffs[i] != offset {
		return nil, fmt.Errorf("script: branch into the middle of a command at 0x%x: %w", offset, ErrSplit)
	}
	tail := &Block{
		Start:     offset,
		Kind:      Code,
		End:       b.End,
		Cmds:      b.Cmds[i:],
		CmdOffs:   b.CmdOffs[i:],
		NextOff:   b.NextOff,
		ElseOff:   b.ElseOff,
		Recovered: b.Recovered,
	}
	b.End = offset
	b.Cmds = b.Cmds[:i:i]
	b.CmdOffs = b.CmdOffs[:i:i]
	b.NextOff = offset
	b.ElseOff = NoTarget
	a.insert(tail)
	return tail, nil
}

// readCode decodes a new block until a control transfer or until it
// reaches an already known block, which becomes its fallthrough.
func (a *Arena) readCode(start uint32) error {
	bound, bounded := a.boundAfter(start)
	blk := &Block{Start: start, Kind: Code, End: start, NextOff: NoTarget, ElseOff: NoTarget}
	a.insert(blk)
	s := evfmt.NewStreamAt(a.data, int(start))
	max := a.opts.EffectiveMaxSteps()
read:
	for {
		pos := uint32(s.Position())
		if bounded && pos >= bound {
			blk.NextOff = bound
			break
		}
		if a.steps++; a.steps > max {
			return fmt.Errorf("script: command at 0x%x: %w", pos, ErrTooManySteps)
		}
		cmd, err := codec.DecodeCommand(s)
		if err != nil {
			if !a.patches[pos] || a.opts.Mode != evfmt.ModeBestEffort {
				return fmt.Errorf("script: command at 0x%x: %w", pos, err)
			}
			a.diags.Addf(pos, evfmt.DiagPatched, "bad command replaced with abort: %v", err)
			cmd = &ir.Command{Opcode: opcode.CmdAbort}
		}
		blk.Cmds = append(blk.Cmds, cmd)
		blk.CmdOffs = append(blk.CmdOffs, pos)
		cur := uint32(s.Position())
		if bounded && cur > bound {
			return fmt.Errorf("script: command at 0x%x overlaps the block at 0x%x: %w", pos, bound, ErrSplit)
		}
		blk.End = cur
		switch op := cmd.Opcode; {
		case op.IsGoto():
			t, err := ptrOperand(cmd, 0)
			if err != nil {
				return err
			}
			blk.NextOff = t
			a.enqueue(t)
			break read
		case op.IsIf():
			t, err := ptrOperand(cmd, len(cmd.Operands)-1)
			if err != nil {
				return err
			}
			blk.NextOff = cur
			blk.ElseOff = t
			a.enqueue(cur)
			a.enqueue(t)
			break read
		case op == opcode.CmdRun:
			t, err := ptrOperand(cmd, 0)
			if err != nil {
				return err
			}
			a.seedHead(t)
		case op.IsTerminator():
			break read
		}
	}
	return nil
}

func ptrOperand(cmd *ir.Command, i int) (uint32, error) {
	if i < 0 || i >= len(cmd.Operands) {
		return 0, fmt.Errorf("script: %v command has no target operand", cmd.Opcode)
	}
	off, ok := cmd.Operands[i].(ir.Offset)
	if !ok {
		return 0, fmt.Errorf("script: %v target is %T, not an offset", cmd.Opcode, cmd.Operands[i])
	}
	return uint32(off), nil
}

// sightData records that offset is referenced as data of the given
// kind. Conflicting sightings of the same block follow one rule: a
// 4-byte scalar array may be upgraded to a pointer array, a pointer
// array is never downgraded, and any other mismatch is an error.
func (a *Arena) sightData(offset uint32, kind ValueKind) error {
	want := kind.dataKind()
	b := a.blocks[offset]
	if b == nil {
		nb := &Block{Start: offset, Kind: Data, DataKind: want, NextOff: NoTarget, ElseOff: NoTarget}
		if want == ir.DataPtr {
			nb.Elem = kind.Ptr
		}
		a.insert(nb)
		return nil
	}
	if b.Kind == Code {
		return fmt.Errorf("script: block at 0x%x read as code but referenced as %v: %w",
			offset, kind, ErrInconsistent)
	}
	switch {
	case b.DataKind == want:
		if want == ir.DataPtr && kind.Ptr != nil {
			b.Elem = kind.Ptr
		}
	case fourByte(b.DataKind) && want == ir.DataPtr:
		b.DataKind = ir.DataPtr
		b.Elem = kind.Ptr
	case b.DataKind == ir.DataPtr && fourByte(want):
		// Keep the pointer array.
	default:
		return fmt.Errorf("script: data at 0x%x read as %v but referenced as %v: %w",
			offset, b.DataKind, kind, ErrInconsistent)
	}
	return nil
}

func fourByte(k ir.DataKind) bool {
	return k == ir.DataI32 || k == ir.DataU32
}

// ExpandArrays reads the entries of pointer arrays sighted since the
// last call and processes each entry as a reference of the array's
// pointee kind. It reports how many arrays were expanded.
func (a *Arena) ExpandArrays() (int, error) {
	var pending []*Block
	for _, start := range a.starts {
		b := a.blocks[start]
		if b.Kind == Data && b.DataKind == ir.DataPtr && b.Payload == nil {
			pending = append(pending, b)
		}
	}
	for _, b := range pending {
		end, ok := a.boundAfter(b.Start)
		if !ok {
			end = uint32(len(a.data))
		}
		s := evfmt.NewStreamAt(a.data, int(b.Start))
		d, err := codec.DecodeData(s, ir.DataPtr, int(end-b.Start))
		if err != nil {
			return 0, fmt.Errorf("script: pointer array at 0x%x: %w", b.Start, err)
		}
		b.Payload = d
		elem := EventValue()
		if b.Elem != nil {
			elem = *b.Elem
		}
		for _, p := range d.Ptrs {
			off, ok := p.Offset()
			if !ok {
				continue
			}
			if err := a.Reference(Ref{Kind: elem, Offset: off}); err != nil {
				return 0, err
			}
		}
	}
	return len(pending), nil
}

// Freeze cuts remaining data payloads at the now known block extents,
// assigns block ids in ascending offset order, and builds the program.
func (a *Arena) Freeze() (*ir.Program, error) {
	prog := ir.NewProgram()
	ids := make(map[uint32]ir.BlockID, len(a.starts))
	for _, start := range a.starts {
		ids[start] = prog.AddBlock(&ir.AsmBlock{SrcOffset: start})
	}
	for i, start := range a.starts {
		b := a.blocks[start]
		end := uint32(len(a.data))
		if i+1 < len(a.starts) {
			end = a.starts[i+1]
		}
		if b.Kind == Code {
			if b.End > end {
				return nil, fmt.Errorf("script: block at 0x%x overlaps 0x%x: %w", b.Start, end, ErrSplit)
			}
			code := &ir.Code{Commands: b.Cmds, Next: ir.NoBlock, Else: ir.NoBlock}
			var err error
			if code.Next, err = a.edge(ids, b.Start, b.NextOff); err != nil {
				return nil, err
			}
			if code.Else, err = a.edge(ids, b.Start, b.ElseOff); err != nil {
				return nil, err
			}
			prog.Blocks[i].Code = code
			continue
		}
		d := b.Payload
		if d == nil {
			s := evfmt.NewStreamAt(a.data, int(b.Start))
			var err error
			d, err = codec.DecodeData(s, b.DataKind, int(end-b.Start))
			if err != nil {
				return nil, fmt.Errorf("script: data at 0x%x: %w", b.Start, err)
			}
		}
		prog.Blocks[i].Data = d
	}
	for i := range a.entries {
		e := &a.entries[i]
		id, ok := ids[e.Offset]
		if !ok {
			return nil, fmt.Errorf("script: entry %d at 0x%x has no block: %w", e.Index, e.Offset, ErrInconsistent)
		}
		e.Block = id
	}
	prog.Entries = append(prog.Entries, a.entries...)
	return prog, nil
}

func (a *Arena) edge(ids map[uint32]ir.BlockID, from, to uint32) (ir.BlockID, error) {
	if to == NoTarget {
		return ir.NoBlock, nil
	}
	id, ok := ids[to]
	if !ok {
		return ir.NoBlock, fmt.Errorf("script: unresolved edge from 0x%x to 0x%x: %w", from, to, ErrInconsistent)
	}
	return id, nil
}
