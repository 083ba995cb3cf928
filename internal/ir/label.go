package ir

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateLabel = errors.New("ir: duplicate label")
	ErrUndefinedLabel = errors.New("ir: undefined label")
)

// BlockID indexes a block in its program's arena. Blocks reference each
// other only by id, never by embedding.
type BlockID int32

const NoBlock BlockID = -1

// LabelID indexes a label definition in a program's label map.
type LabelID int32

const NoLabel LabelID = -1

// Pointer is a branch, call, or data reference: a symbolic label before
// assembly, or a concrete absolute file offset after disassembly or layout.
// Exactly one of the two is meaningful.
type Pointer struct {
	label    LabelID
	offset   uint32
	hasLabel bool
}

// ToLabel returns a pointer to a label.
func ToLabel(l LabelID) Pointer {
	return Pointer{label: l, hasLabel: true}
}

// ToOffset returns a pointer to an absolute file offset.
func ToOffset(off uint32) Pointer {
	return Pointer{offset: off}
}

// Label returns the label the pointer refers to, if it is unresolved.
func (p Pointer) Label() (LabelID, bool) {
	return p.label, p.hasLabel
}

// Offset returns the file offset the pointer refers to, if it is resolved.
func (p Pointer) Offset() (uint32, bool) {
	if p.hasLabel {
		return 0, false
	}
	return p.offset, true
}

func (p Pointer) String() string {
	if p.hasLabel {
		return fmt.Sprintf("label#%d", p.label)
	}
	return fmt.Sprintf("0x%x", p.offset)
}

// LabelDef is one label: its unique name and the block it marks.
type LabelDef struct {
	Name  string
	Block BlockID
}

// LabelMap mints and resolves labels. Names are unique; defining the same
// name twice is an error. Ids are assigned in definition order, which the
// analysis pipeline keeps deterministic.
type LabelMap struct {
	defs    []LabelDef
	byName  map[string]LabelID
	byBlock map[BlockID]LabelID
}

func NewLabelMap() *LabelMap {
	return &LabelMap{
		byName:  make(map[string]LabelID),
		byBlock: make(map[BlockID]LabelID),
	}
}

// Define mints a label for a block. The first label defined for a block
// becomes its canonical label.
func (m *LabelMap) Define(name string, block BlockID) (LabelID, error) {
	if _, ok := m.byName[name]; ok {
		return NoLabel, fmt.Errorf("%w: %q", ErrDuplicateLabel, name)
	}
	id := LabelID(len(m.defs))
	m.defs = append(m.defs, LabelDef{Name: name, Block: block})
	m.byName[name] = id
	if _, ok := m.byBlock[block]; !ok {
		m.byBlock[block] = id
	}
	return id, nil
}

// ByName resolves a label name.
func (m *LabelMap) ByName(name string) (LabelID, bool) {
	id, ok := m.byName[name]
	return id, ok
}

// ByBlock returns the canonical label of a block, if it has one.
func (m *LabelMap) ByBlock(block BlockID) (LabelID, bool) {
	id, ok := m.byBlock[block]
	return id, ok
}

// Name returns the name of a label.
func (m *LabelMap) Name(id LabelID) string {
	if id < 0 || int(id) >= len(m.defs) {
		return fmt.Sprintf("label#%d", id)
	}
	return m.defs[id].Name
}

// Block returns the block a label marks.
func (m *LabelMap) Block(id LabelID) BlockID {
	if id < 0 || int(id) >= len(m.defs) {
		return NoBlock
	}
	return m.defs[id].Block
}

// Len returns the number of defined labels.
func (m *LabelMap) Len() int {
	return len(m.defs)
}
