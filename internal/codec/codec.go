// Package codec reads and writes the wire encoding of single operations:
// one command, expression, or message command at a time, driven by
// per-opcode operand-shape tables. Decoding produces flat expression
// sequences in wire order; encoding consumes recovered trees and reports
// pointer fields that need patching once final layout is known.
package codec

import (
	"errors"

	"unstage/internal/ir"
)

var (
	// ErrUnknownOpcode marks a byte that is not a known opcode of the
	// vocabulary being decoded.
	ErrUnknownOpcode = errors.New("codec: unrecognized opcode")

	// ErrMalformed marks a command whose operand bytes violate its shape,
	// such as a call size mismatch or a missing constant.
	ErrMalformed = errors.New("codec: malformed command")

	// ErrBadOperands marks an operation handed to the encoder whose
	// operands do not match its opcode's descriptor. This is a contract
	// violation by the caller, not a data error.
	ErrBadOperands = errors.New("codec: operands do not match opcode")

	// ErrTooLarge marks an encoded command that exceeds a wire size limit.
	ErrTooLarge = errors.New("codec: encoded command too large")

	// ErrTooManyChars marks a message with more text than the game's
	// message buffer holds.
	ErrTooManyChars = errors.New("codec: too many message characters")

	// ErrBadChar marks a text byte that cannot be written because the
	// game would read it back as a message command.
	ErrBadChar = errors.New("codec: character is not encodable")
)

// Fixups receives the buffer positions of pointer fields the encoder could
// not finalize. The assembler patches them once block offsets are known.
type Fixups interface {
	// Label records a 4-byte zero placeholder at pos that must become the
	// resolved absolute offset of the label's block.
	Label(pos int, label ir.LabelID)

	// End records a 4-byte zero placeholder at pos that must become the
	// absolute offset of buffer position end.
	End(pos, end int)
}
