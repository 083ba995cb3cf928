// Package script builds the working block graph for one event buffer.
//
// Discovery is a worklist over seeded entry points. Code decodes forward
// until a control transfer, transfer targets seed more blocks, and typed
// data references register sightings that are materialized once every
// boundary is known. The arena is append-only: blocks are added or
// split, never removed, and Freeze converts the final state into an
// ir.Program.
package script

import (
	"errors"

	"unstage/internal/ir"
)

// HeaderEnd is the last offset of the stage header. References at or
// below it read engine state rather than script blocks and are kept as
// raw offsets everywhere.
const HeaderEnd = 0x48

// NoTarget marks an absent successor edge.
const NoTarget = ^uint32(0)

var (
	// ErrInconsistent reports an offset used as two incompatible things,
	// such as a block read as code and later referenced as data.
	ErrInconsistent = errors.New("script: inconsistent block type")

	// ErrSplit reports an offset that does not land on a command
	// boundary of the block containing it.
	ErrSplit = errors.New("script: offset splits a command")

	// ErrTooManySteps reports that discovery decoded more commands than
	// the configured limit allows.
	ErrTooManySteps = errors.New("script: step limit exceeded")
)

// Kind discriminates code blocks from data blocks.
type Kind uint8

const (
	Code Kind = iota
	Data
)

// Block is the working state for one discovered region. Code blocks
// carry decoded commands and explicit successor offsets. Data blocks
// carry a type sighting and, once expanded, a pointer array payload;
// every other payload is cut at Freeze when the block extents are known.
type Block struct {
	Start uint32
	Kind  Kind

	// Code state.
	End       uint32
	Cmds      []*ir.Command
	CmdOffs   []uint32
	NextOff   uint32
	ElseOff   uint32
	Recovered bool

	// Data state.
	DataKind ir.DataKind
	Elem     *ValueKind
	Payload  *ir.Data
}

// RefClass names what a referenced address points at.
type RefClass uint8

const (
	RefEvent RefClass = iota
	RefString
	RefBone
	RefPair
	RefArray
)

// ValueKind classifies a discovered reference. Array kinds carry their
// element kind, and pointer arrays additionally carry the kind their
// entries point at.
type ValueKind struct {
	Class RefClass
	Elem  ir.DataKind
	Ptr   *ValueKind
}

// EventValue is a reference to executable code.
func EventValue() ValueKind { return ValueKind{Class: RefEvent} }

// StringValue is a reference to a NUL-terminated string.
func StringValue() ValueKind { return ValueKind{Class: RefString} }

// BoneValue is a reference to an object bone record.
func BoneValue() ValueKind { return ValueKind{Class: RefBone} }

// PairValue is a reference to an object pair record.
func PairValue() ValueKind { return ValueKind{Class: RefPair} }

// ArrayValue is a reference to an array of scalar elements.
func ArrayValue(elem ir.DataKind) ValueKind {
	return ValueKind{Class: RefArray, Elem: elem}
}

// PointerValue is a reference to an array whose elements point at
// pointee.
func PointerValue(pointee ValueKind) ValueKind {
	p := pointee
	return ValueKind{Class: RefArray, Elem: ir.DataPtr, Ptr: &p}
}

func (k ValueKind) String() string {
	switch k.Class {
	case RefEvent:
		return "event"
	case RefString:
		return "string"
	case RefBone:
		return "bone"
	case RefPair:
		return "pair"
	}
	if k.Elem == ir.DataPtr {
		if k.Ptr != nil {
			return "pointer array of " + k.Ptr.String()
		}
		return "pointer array"
	}
	return k.Elem.String() + " array"
}

// dataKind maps a reference kind to the data kind it registers.
func (k ValueKind) dataKind() ir.DataKind {
	switch k.Class {
	case RefString:
		return ir.DataString
	case RefBone:
		return ir.DataObjBone
	case RefPair:
		return ir.DataObjPair
	default:
		return k.Elem
	}
}

// Ref is one typed reference discovered by value analysis.
type Ref struct {
	Kind   ValueKind
	Offset uint32
}
