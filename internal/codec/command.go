package codec

import (
	"bytes"
	"fmt"

	"unstage/internal/evfmt"
	"unstage/internal/ir"
	"unstage/internal/opcode"
)

// kind selects the decode/encode strategy for a command.
type kind uint8

const (
	kindNone  kind = iota // no operands
	kindPtr               // single branch or call target
	kindCond              // condition expression + else target
	kindSet               // value-first wire order, optional target
	kindLib               // raw 16-bit library index
	kindExprs             // fixed number of expressions
	kindAnim              // object + expressions until a negative constant
	kindCall              // size-prefixed object call
	kindAtom              // leading expressions, atom dispatch, trailing
	kindLit               // leading expressions, literal dispatch
	kindMsg               // end offset + message stream
	kindText              // zero-terminated text
)

// shape is one dispatch case: a fixed expression count, a nested literal
// dispatch, or the counted particle form.
type shape struct {
	n     int
	lits  litTable
	count bool // object, constant count, then count expressions
}

type litTable map[int32]shape

type atomTable map[opcode.Atom]shape

type desc struct {
	kind  kind
	n     int // expression count for kindExprs
	pre   int // expressions before the dispatch constant
	post  int // expressions after the dispatch case
	atoms atomTable
	lits  litTable
}

var cmdDescs = map[opcode.Cmd]desc{
	opcode.CmdAbort:  {kind: kindNone},
	opcode.CmdReturn: {kind: kindNone},
	opcode.CmdGoto:   {kind: kindPtr},
	opcode.CmdSet:    {kind: kindSet},
	opcode.CmdIf:     {kind: kindCond},
	opcode.CmdElif:   {kind: kindCond},
	opcode.CmdEndIf:  {kind: kindPtr},
	opcode.CmdCase:   {kind: kindCond},
	opcode.CmdExpr:   {kind: kindCond},
	opcode.CmdWhile:  {kind: kindCond},
	opcode.CmdBreak:  {kind: kindPtr},
	opcode.CmdRun:    {kind: kindPtr},
	opcode.CmdLib:    {kind: kindLib},
	opcode.CmdPushBp: {kind: kindNone},
	opcode.CmdPopBp:  {kind: kindNone},
	opcode.CmdSetSp:  {kind: kindExprs, n: 1},
	opcode.CmdAnim:   {kind: kindAnim},
	opcode.CmdAnim1:  {kind: kindAnim},
	opcode.CmdAnim2:  {kind: kindAnim},
	opcode.CmdAttach: {kind: kindExprs, n: 2},
	opcode.CmdBorn:   {kind: kindExprs, n: 10},
	opcode.CmdCall:   {kind: kindCall},
	opcode.CmdCamera: {kind: kindAtom, atoms: atomTable{
		opcode.AtomAnim:     {n: 3},
		opcode.AtomPos:      {n: 5},
		opcode.AtomObj:      {n: 3},
		opcode.AtomUnk209:   {n: 2},
		opcode.AtomUnk211:   {n: 4},
		opcode.AtomLead:     {n: 1},
		opcode.AtomUnk227:   {n: 5},
		opcode.AtomDistance: {n: 3},
		opcode.AtomUnk229:   {n: 3},
		opcode.AtomUnk230:   {n: 0},
		opcode.AtomUnk232: {lits: litTable{
			-2: {}, -1: {}, 0: {}, 1: {},
			2: {n: 1}, 3: {n: 1}, 4: {n: 1},
		}},
		opcode.AtomUnk236: {n: 1},
		opcode.AtomUnk237: {n: 1},
		opcode.AtomUnk238: {n: 1},
		opcode.AtomUnk240: {n: 4},
		opcode.AtomUnk243: {n: 4},
		opcode.AtomUnk251: {n: 4},
		opcode.AtomUnk252: {n: 4},
	}},
	opcode.CmdCheck: {kind: kindAtom, atoms: checkAtoms},
	opcode.CmdColor: {kind: kindAtom, pre: 1, atoms: atomTable{
		opcode.AtomModulate: {n: 4},
		opcode.AtomBlend:    {n: 4},
	}},
	opcode.CmdDetach: {kind: kindExprs, n: 1},
	opcode.CmdDir:    {kind: kindExprs, n: 2},
	opcode.CmdMDir: {kind: kindAtom, pre: 1, post: 2, atoms: atomTable{
		opcode.AtomDir: {n: 1},
		opcode.AtomPos: {n: 2},
		opcode.AtomObj: {n: 1},
		opcode.AtomCam: {n: 0},
	}},
	opcode.CmdDisp: {kind: kindExprs, n: 2},
	opcode.CmdKill: {kind: kindExprs, n: 1},
	opcode.CmdLight: {kind: kindAtom, pre: 1, atoms: atomTable{
		opcode.AtomPos:    {n: 3},
		opcode.AtomColor:  {n: 3},
		opcode.AtomUnk227: {n: 3},
	}},
	opcode.CmdMenu: {kind: kindLit, lits: litTable{
		0: {}, 1: {}, 2: {}, 3: {}, 4: {}, 5: {}, 6: {}, 7: {},
		1000: {n: 1},
		1001: {n: 2},
	}},
	opcode.CmdMove:   {kind: kindExprs, n: 5},
	opcode.CmdMoveTo: {kind: kindExprs, n: 7},
	opcode.CmdMsg:    {kind: kindMsg},
	opcode.CmdPos:    {kind: kindExprs, n: 4},
	opcode.CmdPrintF: {kind: kindText},
	opcode.CmdPtcl: {kind: kindAtom, pre: 1, atoms: atomTable{
		opcode.AtomPos:    {n: 7},
		opcode.AtomObj:    {n: 8},
		opcode.AtomUnk210: {n: 0},
		opcode.AtomLead:   {count: true},
	}},
	opcode.CmdRead: {kind: kindAtom, atoms: atomTable{
		opcode.AtomAnim: {n: 2},
		opcode.AtomSfx:  {n: 2},
	}},
	opcode.CmdScale:  {kind: kindExprs, n: 4},
	opcode.CmdMScale: {kind: kindExprs, n: 5},
	opcode.CmdScrn: {kind: kindAtom, atoms: atomTable{
		opcode.AtomUnk201: {n: 9},
		opcode.AtomWipe:   {n: 17},
		opcode.AtomUnk226: {lits: litTable{
			0: {n: 1}, 1: {n: 1}, 2: {n: 1},
			3: {n: 4},
			4: {lits: litTable{
				-4: {}, -2: {}, -1: {}, 0: {}, 1: {}, 2: {}, 3: {},
				-3: {n: 1},
			}},
		}},
		opcode.AtomUnk234: {n: 5},
		opcode.AtomUnk239: {n: 10},
		opcode.AtomUnk241: {n: 7},
		opcode.AtomUnk242: {n: 9},
	}},
	opcode.CmdSelect: {kind: kindMsg},
	opcode.CmdSfx: {kind: kindLit, pre: 1, lits: litTable{
		0: {}, 1: {}, 5: {}, 6: {}, 245: {},
		2: {n: 1}, 3: {n: 1},
		4: {n: 2},
	}},
	opcode.CmdTimer: {kind: kindExprs, n: 2},
	opcode.CmdWait:  {kind: kindAtom, atoms: checkAtoms},
	opcode.CmdWarp:  {kind: kindExprs, n: 2},
	opcode.CmdWin: {kind: kindAtom, atoms: atomTable{
		opcode.AtomPos:    {n: 2},
		opcode.AtomObj:    {n: 4},
		opcode.AtomUnk209: {n: 0},
		opcode.AtomColor:  {n: 4},
		opcode.AtomUnk239: {n: 0},
	}},
	opcode.CmdMovie: {kind: kindExprs, n: 6},
}

// checkAtoms is shared by the check and wait commands, which test the same
// conditions.
var checkAtoms = atomTable{
	opcode.AtomTime:   {n: 1},
	opcode.AtomUnk201: {n: 0},
	opcode.AtomWipe:   {n: 0},
	opcode.AtomUnk203: {n: 0},
	opcode.AtomAnim:   {n: 2},
	opcode.AtomDir:    {n: 1},
	opcode.AtomMove:   {n: 1},
	opcode.AtomColor:  {n: 1},
	opcode.AtomSfx:    {n: 1},
	opcode.AtomReal:   {n: 1},
	opcode.AtomCam:    {n: 0},
	opcode.AtomRead:   {n: 1},
	opcode.AtomUnk234: {n: 0},
	opcode.AtomUnk239: {n: 0},
	opcode.AtomUnk241: {n: 0},
	opcode.AtomUnk242: {n: 0},
	opcode.AtomScale:  {n: 1},
	opcode.AtomCue:    {n: 0},
	opcode.AtomUnk246: {n: 1},
}

// DecodeCommand decodes one command at the stream position. Expressions
// come back as flat prefix sequences; message streams come back as
// structured message commands. The number of bytes consumed is the cursor
// delta.
func DecodeCommand(s *evfmt.Stream) (*ir.Command, error) {
	pos := s.Position()
	b, err := s.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("codec: command at 0x%x: %w", pos, err)
	}
	op := opcode.Cmd(b)
	if !op.Valid() {
		return nil, fmt.Errorf("codec: unrecognized command opcode 0x%02x at 0x%x: %w",
			b, pos, ErrUnknownOpcode)
	}
	cmd := &ir.Command{Opcode: op}
	d := cmdDescs[op]
	switch d.kind {
	case kindNone:

	case kindPtr:
		v, err := s.ReadUint32()
		if err != nil {
			return nil, fmt.Errorf("codec: %v at 0x%x: %w", op, pos, err)
		}
		cmd.Operands = append(cmd.Operands, ir.Offset(v))

	case kindCond:
		if cmd.Operands, err = decodeExprRun(s, cmd.Operands); err != nil {
			return nil, err
		}
		v, err := s.ReadUint32()
		if err != nil {
			return nil, fmt.Errorf("codec: %v at 0x%x: %w", op, pos, err)
		}
		cmd.Operands = append(cmd.Operands, ir.Offset(v))

	case kindSet:
		if err := decodeSet(s, cmd); err != nil {
			return nil, err
		}

	case kindLib:
		v, err := s.ReadInt16()
		if err != nil {
			return nil, fmt.Errorf("codec: %v at 0x%x: %w", op, pos, err)
		}
		cmd.Operands = append(cmd.Operands, ir.I16(v))

	case kindExprs:
		for i := 0; i < d.n; i++ {
			if cmd.Operands, err = decodeExprRun(s, cmd.Operands); err != nil {
				return nil, err
			}
		}

	case kindAnim:
		if err := decodeAnim(s, cmd); err != nil {
			return nil, err
		}

	case kindCall:
		if err := decodeCall(s, cmd); err != nil {
			return nil, err
		}

	case kindAtom, kindLit:
		if err := decodeDispatch(s, cmd, d, pos); err != nil {
			return nil, err
		}

	case kindMsg:
		if err := decodeMsg(s, cmd); err != nil {
			return nil, err
		}

	case kindText:
		text, err := s.ReadCBytes()
		if err != nil {
			return nil, fmt.Errorf("codec: %v at 0x%x: %w", op, pos, err)
		}
		cmd.Operands = append(cmd.Operands, ir.Text(text))
	}
	return cmd, nil
}

// decodeSet reads the set command. The wire stores the value expression
// first and omits the target entirely when the value is an in-place
// operator.
func decodeSet(s *evfmt.Stream, cmd *ir.Command) error {
	var err error
	if cmd.Operands, err = decodeExprRun(s, cmd.Operands); err != nil {
		return err
	}
	root := cmd.Operands[0].(*ir.Expr)
	if root.Opcode.IsAssign() {
		return nil
	}
	cmd.Operands, err = decodeExprRun(s, cmd.Operands)
	return err
}

// decodeAnim reads an object expression, then animation arguments until
// one is a constant with a negative value. The terminator is kept as the
// final operand.
func decodeAnim(s *evfmt.Stream, cmd *ir.Command) error {
	var err error
	if cmd.Operands, err = decodeExprRun(s, cmd.Operands); err != nil {
		return err
	}
	for {
		start := len(cmd.Operands)
		if cmd.Operands, err = decodeExprRun(s, cmd.Operands); err != nil {
			return err
		}
		if len(cmd.Operands)-start != 1 {
			continue
		}
		if v, ok := ir.ConstValue(cmd.Operands[start]); ok && v < 0 {
			return nil
		}
	}
}

// decodeCall reads the size-prefixed call command. The size counts its own
// two bytes; it is dropped here and derived again on encode.
func decodeCall(s *evfmt.Stream, cmd *ir.Command) error {
	sizePos := s.Position()
	size, err := s.ReadInt16()
	if err != nil {
		return fmt.Errorf("codec: call at 0x%x: %w", sizePos, err)
	}
	if size < 2 {
		return fmt.Errorf("codec: call at 0x%x has size %d: %w", sizePos, size, ErrMalformed)
	}
	end := sizePos + int(size)
	if cmd.Operands, err = decodeExprRun(s, cmd.Operands); err != nil {
		return err
	}
	for s.Position() < end {
		if cmd.Operands, err = decodeExprRun(s, cmd.Operands); err != nil {
			return err
		}
	}
	if s.Position() != end {
		return fmt.Errorf("codec: call at 0x%x decoded past its size: %w", sizePos, ErrMalformed)
	}
	return nil
}

// decodeDispatch reads an atom- or literal-dispatched command: leading
// expressions, the dispatch constant, the selected case, then trailing
// expressions. Atom constants become type tags; literal constants stay as
// the expressions that carried them.
func decodeDispatch(s *evfmt.Stream, cmd *ir.Command, d desc, pos int) error {
	var err error
	for i := 0; i < d.pre; i++ {
		if cmd.Operands, err = decodeExprRun(s, cmd.Operands); err != nil {
			return err
		}
	}
	var sh shape
	if d.kind == kindAtom {
		_, v, err := decodeConst(s)
		if err != nil {
			return err
		}
		var ok bool
		if sh, ok = d.atoms[opcode.Atom(v)]; !ok {
			return fmt.Errorf("codec: %v at 0x%x does not accept atom %v: %w",
				cmd.Opcode, pos, opcode.Atom(v), ErrMalformed)
		}
		cmd.Operands = append(cmd.Operands, ir.TypeTag(v))
	} else {
		node, v, err := decodeConst(s)
		if err != nil {
			return err
		}
		var ok bool
		if sh, ok = d.lits[v]; !ok {
			return fmt.Errorf("codec: %v at 0x%x does not accept selector %d: %w",
				cmd.Opcode, pos, v, ErrMalformed)
		}
		cmd.Operands = append(cmd.Operands, node)
	}
	if err := decodeShape(s, cmd, sh, pos); err != nil {
		return err
	}
	for i := 0; i < d.post; i++ {
		if cmd.Operands, err = decodeExprRun(s, cmd.Operands); err != nil {
			return err
		}
	}
	return nil
}

func decodeShape(s *evfmt.Stream, cmd *ir.Command, sh shape, pos int) error {
	var err error
	if sh.lits != nil {
		node, v, err := decodeConst(s)
		if err != nil {
			return err
		}
		inner, ok := sh.lits[v]
		if !ok {
			return fmt.Errorf("codec: %v at 0x%x does not accept selector %d: %w",
				cmd.Opcode, pos, v, ErrMalformed)
		}
		cmd.Operands = append(cmd.Operands, node)
		return decodeShape(s, cmd, inner, pos)
	}
	if sh.count {
		if cmd.Operands, err = decodeExprRun(s, cmd.Operands); err != nil {
			return err
		}
		node, v, err := decodeConst(s)
		if err != nil {
			return err
		}
		if v < 0 {
			return fmt.Errorf("codec: %v at 0x%x has negative argument count %d: %w",
				cmd.Opcode, pos, v, ErrMalformed)
		}
		cmd.Operands = append(cmd.Operands, node)
		for i := int32(0); i < v; i++ {
			if cmd.Operands, err = decodeExprRun(s, cmd.Operands); err != nil {
				return err
			}
		}
		return nil
	}
	for i := 0; i < sh.n; i++ {
		if cmd.Operands, err = decodeExprRun(s, cmd.Operands); err != nil {
			return err
		}
	}
	return nil
}

// EncodeCommand encodes one recovered command. Pointer operands that refer
// to labels are written as zero placeholders and reported to fx; raw
// offsets are written verbatim. Operands that do not fit the opcode's
// descriptor are a caller bug reported as ErrBadOperands.
func EncodeCommand(w *evfmt.Writer, cmd *ir.Command, fx Fixups) error {
	op := cmd.Opcode
	if !op.Valid() {
		return fmt.Errorf("%w: command opcode %v", ErrBadOperands, op)
	}
	w.WriteByte(byte(op))
	d := cmdDescs[op]
	i := 0
	var err error
	switch d.kind {
	case kindNone:

	case kindPtr:
		if err = takePtr(w, cmd, &i, fx); err != nil {
			return err
		}

	case kindCond:
		if err = takeExprs(w, cmd, &i, 1, fx); err != nil {
			return err
		}
		if err = takePtr(w, cmd, &i, fx); err != nil {
			return err
		}

	case kindSet:
		if err = encodeSet(w, cmd, &i, fx); err != nil {
			return err
		}

	case kindLib:
		if i >= len(cmd.Operands) {
			return fmt.Errorf("%w: %v missing index", ErrBadOperands, op)
		}
		v, ok := cmd.Operands[i].(ir.I16)
		if !ok {
			return fmt.Errorf("%w: %v index is %T", ErrBadOperands, op, cmd.Operands[i])
		}
		w.WriteInt16(int16(v))
		i++

	case kindExprs:
		if err = takeExprs(w, cmd, &i, d.n, fx); err != nil {
			return err
		}

	case kindAnim:
		if err = encodeAnim(w, cmd, &i, fx); err != nil {
			return err
		}

	case kindCall:
		if err = encodeCall(w, cmd, &i, fx); err != nil {
			return err
		}

	case kindAtom, kindLit:
		if err = encodeDispatch(w, cmd, d, &i, fx); err != nil {
			return err
		}

	case kindMsg:
		if err = encodeMsg(w, cmd, &i, fx); err != nil {
			return err
		}

	case kindText:
		if i >= len(cmd.Operands) {
			return fmt.Errorf("%w: %v missing text", ErrBadOperands, op)
		}
		text, ok := cmd.Operands[i].(ir.Text)
		if !ok {
			return fmt.Errorf("%w: %v text is %T", ErrBadOperands, op, cmd.Operands[i])
		}
		if bytes.IndexByte(text, 0) >= 0 {
			return fmt.Errorf("%w: %v text contains a terminator byte", ErrBadOperands, op)
		}
		w.WriteCBytes(text)
		i++
	}
	if i != len(cmd.Operands) {
		return fmt.Errorf("%w: %v has %d extra operands", ErrBadOperands, op, len(cmd.Operands)-i)
	}
	return nil
}

func encodeSet(w *evfmt.Writer, cmd *ir.Command, i *int, fx Fixups) error {
	switch len(cmd.Operands) {
	case 1:
		e, err := takeExpr(cmd, i)
		if err != nil {
			return err
		}
		if !e.Opcode.IsAssign() {
			return fmt.Errorf("%w: one-operand set must be an in-place operator, got %v",
				ErrBadOperands, e.Opcode)
		}
		return encodeExpr(w, e, fx)
	case 2:
		target, err := takeExpr(cmd, i)
		if err != nil {
			return err
		}
		value, err := takeExpr(cmd, i)
		if err != nil {
			return err
		}
		if value.Opcode.IsAssign() {
			return fmt.Errorf("%w: in-place set cannot carry a target", ErrBadOperands)
		}
		// Value first on the wire.
		if err := encodeExpr(w, value, fx); err != nil {
			return err
		}
		return encodeExpr(w, target, fx)
	}
	return fmt.Errorf("%w: set takes 1 or 2 operands, got %d", ErrBadOperands, len(cmd.Operands))
}

func encodeAnim(w *evfmt.Writer, cmd *ir.Command, i *int, fx Fixups) error {
	if len(cmd.Operands) < 2 {
		return fmt.Errorf("%w: %v takes an object and a terminated argument list",
			ErrBadOperands, cmd.Opcode)
	}
	last := cmd.Operands[len(cmd.Operands)-1]
	if v, ok := ir.ConstValue(last); !ok || v >= 0 {
		return fmt.Errorf("%w: %v arguments must end with a negative constant",
			ErrBadOperands, cmd.Opcode)
	}
	return takeExprs(w, cmd, i, len(cmd.Operands), fx)
}

func encodeCall(w *evfmt.Writer, cmd *ir.Command, i *int, fx Fixups) error {
	if len(cmd.Operands) == 0 {
		return fmt.Errorf("%w: call takes an object", ErrBadOperands)
	}
	sizePos := w.Len()
	w.WriteInt16(0)
	if err := takeExprs(w, cmd, i, len(cmd.Operands), fx); err != nil {
		return err
	}
	size := w.Len() - sizePos
	if size > 0x7fff {
		return fmt.Errorf("%w: call body is %d bytes", ErrTooLarge, size)
	}
	return w.PatchUint16(sizePos, uint16(size))
}

func encodeDispatch(w *evfmt.Writer, cmd *ir.Command, d desc, i *int, fx Fixups) error {
	if err := takeExprs(w, cmd, i, d.pre, fx); err != nil {
		return err
	}
	var sh shape
	if d.kind == kindAtom {
		if *i >= len(cmd.Operands) {
			return fmt.Errorf("%w: %v missing dispatch atom", ErrBadOperands, cmd.Opcode)
		}
		tag, ok := cmd.Operands[*i].(ir.TypeTag)
		if !ok {
			return fmt.Errorf("%w: %v dispatch operand is %T", ErrBadOperands, cmd.Opcode, cmd.Operands[*i])
		}
		if sh, ok = d.atoms[opcode.Atom(tag)]; !ok {
			return fmt.Errorf("%w: %v does not accept atom %v", ErrBadOperands, cmd.Opcode, opcode.Atom(tag))
		}
		writeAtom(w, opcode.Atom(tag))
		*i++
	} else {
		node, v, err := takeConst(cmd, i)
		if err != nil {
			return err
		}
		var ok bool
		if sh, ok = d.lits[v]; !ok {
			return fmt.Errorf("%w: %v does not accept selector %d", ErrBadOperands, cmd.Opcode, v)
		}
		if err := encodeExpr(w, node, fx); err != nil {
			return err
		}
	}
	if err := encodeShape(w, cmd, sh, i, fx); err != nil {
		return err
	}
	return takeExprs(w, cmd, i, d.post, fx)
}

func encodeShape(w *evfmt.Writer, cmd *ir.Command, sh shape, i *int, fx Fixups) error {
	if sh.lits != nil {
		node, v, err := takeConst(cmd, i)
		if err != nil {
			return err
		}
		inner, ok := sh.lits[v]
		if !ok {
			return fmt.Errorf("%w: %v does not accept selector %d", ErrBadOperands, cmd.Opcode, v)
		}
		if err := encodeExpr(w, node, fx); err != nil {
			return err
		}
		return encodeShape(w, cmd, inner, i, fx)
	}
	if sh.count {
		if err := takeExprs(w, cmd, i, 1, fx); err != nil {
			return err
		}
		node, v, err := takeConst(cmd, i)
		if err != nil {
			return err
		}
		if rest := len(cmd.Operands) - *i; int32(rest) != v {
			return fmt.Errorf("%w: %v count %d does not match %d arguments",
				ErrBadOperands, cmd.Opcode, v, rest)
		}
		if err := encodeExpr(w, node, fx); err != nil {
			return err
		}
		return takeExprs(w, cmd, i, len(cmd.Operands)-*i, fx)
	}
	return takeExprs(w, cmd, i, sh.n, fx)
}

// takeExpr consumes the next operand, which must be an expression.
func takeExpr(cmd *ir.Command, i *int) (*ir.Expr, error) {
	if *i >= len(cmd.Operands) {
		return nil, fmt.Errorf("%w: %v missing expression operand", ErrBadOperands, cmd.Opcode)
	}
	e, ok := cmd.Operands[*i].(*ir.Expr)
	if !ok {
		return nil, fmt.Errorf("%w: %v operand %d is %T", ErrBadOperands, cmd.Opcode, *i, cmd.Operands[*i])
	}
	*i++
	return e, nil
}

// takeExprs encodes the next n expression operands in order.
func takeExprs(w *evfmt.Writer, cmd *ir.Command, i *int, n int, fx Fixups) error {
	for ; n > 0; n-- {
		e, err := takeExpr(cmd, i)
		if err != nil {
			return err
		}
		if err := encodeExpr(w, e, fx); err != nil {
			return err
		}
	}
	return nil
}

// takeConst consumes the next operand, which must be a constant expression.
func takeConst(cmd *ir.Command, i *int) (*ir.Expr, int32, error) {
	e, err := takeExpr(cmd, i)
	if err != nil {
		return nil, 0, err
	}
	v, ok := ir.ConstValue(e)
	if !ok {
		return nil, 0, fmt.Errorf("%w: %v needs a constant, got %v", ErrBadOperands, cmd.Opcode, e.Opcode)
	}
	return e, v, nil
}

// takePtr consumes and writes the next operand, which must be a pointer.
func takePtr(w *evfmt.Writer, cmd *ir.Command, i *int, fx Fixups) error {
	if *i >= len(cmd.Operands) {
		return fmt.Errorf("%w: %v missing pointer operand", ErrBadOperands, cmd.Opcode)
	}
	if err := encodePointer(w, cmd.Operands[*i], fx); err != nil {
		return fmt.Errorf("%v: %w", cmd.Opcode, err)
	}
	*i++
	return nil
}
