package listing

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"

	"unstage/internal/ir"
)

// cborEncMode is canonical so dumps of the same program are byte-stable.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("listing: cbor enc mode: %v", err))
	}
	cborEncMode = em
}

// Dump is the serializable image of a program. One struct drives both the
// JSON and the CBOR encodings.
type Dump struct {
	Base    uint32      `json:"base" cbor:"1,keyasint"`
	Entries []EntryDump `json:"entries" cbor:"2,keyasint"`
	Subs    []SubDump   `json:"subs" cbor:"3,keyasint"`
	Blocks  []BlockDump `json:"blocks" cbor:"4,keyasint"`
}

// EntryDump is one declared entry point.
type EntryDump struct {
	Index  int    `json:"index" cbor:"1,keyasint"`
	Offset uint32 `json:"offset" cbor:"2,keyasint"`
	Label  string `json:"label" cbor:"3,keyasint"`
}

// SubDump is one subroutine: its entry label and block ids in emission
// order.
type SubDump struct {
	Name   string  `json:"name" cbor:"1,keyasint"`
	Blocks []int32 `json:"blocks" cbor:"2,keyasint"`
}

// BlockDump is one arena block. Exactly one of Code and Data is set.
type BlockDump struct {
	ID     int32     `json:"id" cbor:"1,keyasint"`
	Label  string    `json:"label,omitempty" cbor:"2,keyasint,omitempty"`
	Offset uint32    `json:"offset" cbor:"3,keyasint"`
	Code   *CodeDump `json:"code,omitempty" cbor:"4,keyasint,omitempty"`
	Data   *DataDump `json:"data,omitempty" cbor:"5,keyasint,omitempty"`
}

// CodeDump is a code payload: commands as listing text plus successor
// block ids, -1 when absent.
type CodeDump struct {
	Commands []string `json:"commands" cbor:"1,keyasint"`
	Next     int32    `json:"next" cbor:"2,keyasint"`
	Else     int32    `json:"else" cbor:"3,keyasint"`
}

// DataDump is a data payload. Strings carry their text, pointer arrays
// their rendered targets, scalar arrays their raw bytes.
type DataDump struct {
	Kind string    `json:"kind" cbor:"1,keyasint"`
	Text string    `json:"text,omitempty" cbor:"2,keyasint,omitempty"`
	Ptrs []string  `json:"ptrs,omitempty" cbor:"3,keyasint,omitempty"`
	Raw  []byte    `json:"raw,omitempty" cbor:"4,keyasint,omitempty"`
	Bone *BoneDump `json:"bone,omitempty" cbor:"5,keyasint,omitempty"`
	Pair *PairDump `json:"pair,omitempty" cbor:"6,keyasint,omitempty"`
}

// BoneDump is an object-bone record.
type BoneDump struct {
	Obj  int16   `json:"obj" cbor:"1,keyasint"`
	Path []int16 `json:"path" cbor:"2,keyasint"`
}

// PairDump is an object-pair record.
type PairDump struct {
	First  int16 `json:"first" cbor:"1,keyasint"`
	Second int16 `json:"second" cbor:"2,keyasint"`
}

// NewDump flattens a program into its serializable image. Commands render
// as listing text and label references become names.
func NewDump(prog *ir.Program) *Dump {
	d := &Dump{Base: prog.Base}
	for _, e := range prog.Entries {
		d.Entries = append(d.Entries, EntryDump{
			Index:  e.Index,
			Offset: e.Offset,
			Label:  prog.Labels.Name(e.Label),
		})
	}
	for _, sub := range prog.Subs {
		sd := SubDump{Name: blockLabel(prog, sub.Entry)}
		for _, id := range sub.Blocks {
			sd.Blocks = append(sd.Blocks, int32(id))
		}
		d.Subs = append(d.Subs, sd)
	}
	for _, blk := range prog.Blocks {
		bd := BlockDump{
			ID:     int32(blk.ID),
			Label:  blockLabel(prog, blk.ID),
			Offset: blk.SrcOffset,
		}
		switch {
		case blk.Code != nil:
			cd := &CodeDump{Next: int32(blk.Code.Next), Else: int32(blk.Code.Else)}
			for _, cmd := range blk.Code.Commands {
				cd.Commands = append(cd.Commands, commandText(prog, cmd))
			}
			bd.Code = cd
		case blk.Data != nil:
			bd.Data = dataDump(prog, blk.Data)
		}
		d.Blocks = append(d.Blocks, bd)
	}
	return d
}

func blockLabel(prog *ir.Program, id ir.BlockID) string {
	if l, ok := prog.Labels.ByBlock(id); ok {
		return prog.Labels.Name(l)
	}
	return ""
}

func dataDump(prog *ir.Program, data *ir.Data) *DataDump {
	dd := &DataDump{Kind: data.Kind.String()}
	switch data.Kind {
	case ir.DataString:
		dd.Text = string(data.Raw)
	case ir.DataPtr:
		for _, p := range data.Ptrs {
			dd.Ptrs = append(dd.Ptrs, pointerText(prog, p))
		}
	case ir.DataObjBone:
		dd.Bone = &BoneDump{Obj: data.Bone.Obj, Path: data.Bone.Path}
	case ir.DataObjPair:
		dd.Pair = &PairDump{First: data.Pair.First, Second: data.Pair.Second}
	default:
		dd.Raw = data.Raw
	}
	return dd
}

// WriteJSON writes an indented JSON dump.
func WriteJSON(w io.Writer, d *Dump) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("listing: encode json: %w", err)
	}
	return nil
}

// WriteCBOR writes a canonical CBOR dump.
func WriteCBOR(w io.Writer, d *Dump) error {
	out, err := cborEncMode.Marshal(d)
	if err != nil {
		return fmt.Errorf("listing: encode cbor: %w", err)
	}
	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("listing: write cbor: %w", err)
	}
	return nil
}
