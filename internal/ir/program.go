package ir

// Code is a code block payload: ordered commands ending in a control
// transfer or falling through. Next is the successor on fallthrough or
// unconditional jump; Else is the condition-false target of a conditional
// branch. Both are arena ids, NoBlock when absent.
type Code struct {
	Commands []*Command
	Next     BlockID
	Else     BlockID
}

// DataKind classifies a data block payload.
type DataKind uint8

const (
	DataI8 DataKind = iota
	DataU8
	DataI16
	DataU16
	DataI32
	DataU32
	DataPtr
	DataString
	DataObjBone
	DataObjPair
)

var dataKindNames = [...]string{
	DataI8: "i8", DataU8: "u8", DataI16: "i16", DataU16: "u16",
	DataI32: "i32", DataU32: "u32", DataPtr: "ptr", DataString: "string",
	DataObjBone: "objbone", DataObjPair: "objpair",
}

func (k DataKind) String() string {
	if int(k) < len(dataKindNames) {
		return dataKindNames[k]
	}
	return "data"
}

// ElemSize returns the element width of an array kind, or 0 for the
// self-sized kinds.
func (k DataKind) ElemSize() int {
	switch k {
	case DataI8, DataU8:
		return 1
	case DataI16, DataU16:
		return 2
	case DataI32, DataU32, DataPtr:
		return 4
	}
	return 0
}

// ObjBone addresses a bone within an object's model: the object id and an
// index path through the bone tree.
type ObjBone struct {
	Obj  int16
	Path []int16
}

// ObjPair is a pair of object ids, used by distance and direction lookups.
type ObjPair struct {
	First  int16
	Second int16
}

// Data is a data block payload. Raw holds the verbatim extent for scalar
// array kinds and the terminator-stripped bytes for strings; Ptrs holds
// pointer-array entries in table order with the terminator dropped; Bone
// and Pair hold the typed record kinds.
type Data struct {
	Kind DataKind
	Raw  []byte
	Ptrs []Pointer
	Bone *ObjBone
	Pair *ObjPair
}

// EncodedSize returns the number of bytes the payload occupies on the wire.
func (d *Data) EncodedSize() int {
	switch d.Kind {
	case DataString:
		return len(d.Raw) + 1
	case DataPtr:
		return 4 * (len(d.Ptrs) + 1)
	case DataObjBone:
		return 4 + 2*len(d.Bone.Path)
	case DataObjPair:
		return 4
	}
	return len(d.Raw)
}

// AsmBlock is one arena block: a source offset (zero for authored
// programs) and either a code or a data payload, never both.
type AsmBlock struct {
	ID        BlockID
	SrcOffset uint32
	Code      *Code
	Data      *Data
}

// Subroutine is a maximal region of code blocks claimed by one entry.
// Blocks are in emission order: reverse postorder from the entry.
type Subroutine struct {
	Entry  BlockID
	Blocks []BlockID
}

// Entry is one declared entry point of a program.
type Entry struct {
	Index  int
	Offset uint32
	Block  BlockID
	Label  LabelID
}

// Program is the analysis output and the assembler input: the frozen block
// arena, the subroutine partition, declared entry points, and the label
// map. Base positions the program within its container.
type Program struct {
	Blocks  []*AsmBlock
	Subs    []*Subroutine
	Entries []Entry
	Labels  *LabelMap
	Base    uint32
}

func NewProgram() *Program {
	return &Program{Labels: NewLabelMap()}
}

// AddBlock appends a block to the arena and assigns its id.
func (p *Program) AddBlock(b *AsmBlock) BlockID {
	b.ID = BlockID(len(p.Blocks))
	p.Blocks = append(p.Blocks, b)
	return b.ID
}

// Block returns the block with the given arena id, or nil.
func (p *Program) Block(id BlockID) *AsmBlock {
	if id < 0 || int(id) >= len(p.Blocks) {
		return nil
	}
	return p.Blocks[id]
}

// DataBlocks returns the ids of all data blocks in arena order.
func (p *Program) DataBlocks() []BlockID {
	var ids []BlockID
	for _, b := range p.Blocks {
		if b.Data != nil {
			ids = append(ids, b.ID)
		}
	}
	return ids
}
