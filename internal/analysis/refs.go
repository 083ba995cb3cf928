package analysis

import (
	"fmt"
	"sort"

	"unstage/internal/evfmt"
	"unstage/internal/ir"
	"unstage/internal/opcode"
	"unstage/internal/script"
)

// collector scans one block's commands in order, tracking address
// values through storage and collecting the typed references the
// commands imply.
type collector struct {
	st    state
	refs  []script.Ref
	diags *evfmt.Diags
	off   uint32
}

// CollectRefs walks a block's recovered commands and returns the typed
// references they imply, sorted by offset. Addresses still held on the
// engine stack when the block ends are referenced as events, the
// calling convention for spawned scripts.
func CollectRefs(b *script.Block, diags *evfmt.Diags) ([]script.Ref, error) {
	c := &collector{st: newState(), diags: diags}
	for i, cmd := range b.Cmds {
		if i < len(b.CmdOffs) {
			c.off = b.CmdOffs[i]
		}
		if err := c.command(cmd); err != nil {
			return nil, fmt.Errorf("analysis: command at 0x%x: %w", c.off, err)
		}
	}
	for _, i := range c.st.allSlots() {
		c.addRef(c.st.slots[i], script.EventValue())
	}
	sort.SliceStable(c.refs, func(i, j int) bool {
		return c.refs[i].Offset < c.refs[j].Offset
	})
	return c.refs, nil
}

// addRef records a typed reference for every address a value can hold.
// Reading through a pointer marks the pointed-at block as an array of
// pointers to the referenced kind; an array element passes an array
// reference through to its base.
func (c *collector) addRef(v *value, kind script.ValueKind) {
	switch {
	case v == nil:
	case v.class == valOffset:
		c.refs = append(c.refs, script.Ref{Kind: kind, Offset: v.off})
	case v.class == valUnion:
		for _, p := range v.parts {
			c.addRef(p, kind)
		}
	case v.class == valDeref:
		c.addRef(v.parts[0], script.PointerValue(kind))
	case v.class == valElem:
		if kind.Class == script.RefArray {
			c.addRef(v.parts[0], kind)
		}
	}
}

func (c *collector) warn(format string, args ...any) {
	if c.diags != nil {
		c.diags.Addf(c.off, evfmt.DiagInvalid, format, args...)
	}
}

func (c *collector) command(cmd *ir.Command) error {
	switch cmd.Opcode {
	case opcode.CmdSet:
		return c.set(cmd)
	case opcode.CmdSetSp:
		if len(cmd.Operands) != 1 {
			return badCmd(cmd)
		}
		v, err := c.evalOperand(cmd.Operands[0])
		if err != nil {
			return err
		}
		c.st.push(v)
	case opcode.CmdPushBp:
		c.st.pushFrame()
	case opcode.CmdPopBp:
		for _, i := range c.st.frameSlots() {
			c.addRef(c.st.slots[i], script.EventValue())
			delete(c.st.slots, i)
		}
		c.st.popFrame()
	case opcode.CmdAttach, opcode.CmdBorn, opcode.CmdTimer:
		// The last operand is the spawned event.
		vals, err := c.evalAll(cmd.Operands)
		if err != nil {
			return err
		}
		if len(vals) == 0 {
			return badCmd(cmd)
		}
		c.addRef(vals[len(vals)-1], script.EventValue())
	case opcode.CmdMovie, opcode.CmdRead:
		// Address arguments name asset files.
		vals, err := c.evalAll(cmd.Operands)
		if err != nil {
			return err
		}
		for _, v := range vals {
			c.addRef(v, script.StringValue())
		}
	case opcode.CmdCall:
		return c.call(cmd)
	case opcode.CmdLib, opcode.CmdRun:
		c.st.res1, c.st.res2 = nil, nil
	case opcode.CmdMsg, opcode.CmdSelect:
		for _, op := range cmd.Operands {
			mc, ok := op.(*ir.MsgCmd)
			if !ok {
				continue
			}
			if mc.Opcode == opcode.MsgNumInput || mc.Opcode == opcode.MsgQuestion {
				c.st.res1 = nil
			}
		}
	default:
		_, err := c.evalAll(cmd.Operands)
		return err
	}
	return nil
}

func (c *collector) set(cmd *ir.Command) error {
	ops := cmd.Operands
	switch len(ops) {
	case 1:
		// In-place update: the target is the operator's left side.
		e, ok := ops[0].(*ir.Expr)
		if !ok || !e.Opcode.IsAssign() || len(e.Operands) != 2 {
			return badCmd(cmd)
		}
		lv, err := c.evalOperand(e.Operands[0])
		if err != nil {
			return err
		}
		rv, err := c.evalOperand(e.Operands[1])
		if err != nil {
			return err
		}
		return c.assign(e.Operands[0], combine(lv, rv))
	case 2:
		v, err := c.evalOperand(ops[1])
		if err != nil {
			return err
		}
		return c.assign(ops[0], v)
	default:
		return badCmd(cmd)
	}
}

func (c *collector) assign(target ir.Operand, v *value) error {
	e, ok := target.(*ir.Expr)
	if !ok {
		return fmt.Errorf("%w: set target is %T", ErrBadCommand, target)
	}
	switch e.Opcode {
	case opcode.ExprVariable:
		if len(e.Operands) == 1 {
			if idx, ok := ir.ConstValue(e.Operands[0]); ok {
				c.st.vars[int16(idx)] = v
				return nil
			}
		}
		_, err := c.eval(e)
		return err
	case opcode.ExprStack:
		n, ok := slotIndex(e)
		if !ok {
			return fmt.Errorf("%w: stack target payload", ErrBadExpr)
		}
		c.st.slots[c.st.bp+n] = v
	case opcode.ExprParentStack:
		n, ok := slotIndex(e)
		if !ok {
			return fmt.Errorf("%w: stack target payload", ErrBadExpr)
		}
		if base, ok := c.st.parentBase(); ok {
			c.st.slots[base+n] = v
		}
	case opcode.ExprResult1:
		c.st.res1 = v
	case opcode.ExprResult2:
		c.st.res2 = v
	case opcode.ExprPad:
		// The rumble slot holds a pointer to an i16 wave pattern.
		c.addRef(v, script.ArrayValue(ir.DataI16))
		_, err := c.eval(e)
		return err
	default:
		// Flags, meters, and element stores only consume their indexes.
		_, err := c.eval(e)
		return err
	}
	return nil
}

func (c *collector) call(cmd *ir.Command) error {
	ops := cmd.Operands
	if len(ops) == 0 {
		return badCmd(cmd)
	}
	if v, ok := ir.ConstValue(ops[0]); ok && v == -200 {
		// call(-200, message, event) spawns an event with a debug string.
		vals, err := c.evalAll(ops[1:])
		if err != nil {
			return err
		}
		if len(vals) > 0 {
			c.addRef(vals[0], script.StringValue())
		}
		if len(vals) > 1 {
			c.addRef(vals[1], script.EventValue())
		}
		c.st.res1 = nil
		return nil
	}
	if _, err := c.evalOperand(ops[0]); err != nil {
		return err
	}
	vals, err := c.evalAll(ops[1:])
	if err != nil {
		return err
	}
	for _, v := range vals {
		// Address arguments to object methods are byte buffers.
		c.addRef(v, script.ArrayValue(ir.DataU8))
	}
	c.st.res1 = nil
	return nil
}

func (c *collector) evalAll(ops []ir.Operand) ([]*value, error) {
	vals := make([]*value, 0, len(ops))
	for _, op := range ops {
		v, err := c.evalOperand(op)
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	return vals, nil
}

func (c *collector) evalOperand(op ir.Operand) (*value, error) {
	if e, ok := op.(*ir.Expr); ok {
		return c.eval(e)
	}
	return nil, nil
}

func (c *collector) eval(e *ir.Expr) (*value, error) {
	op := e.Opcode
	switch {
	case op.IsConst():
		return nil, nil
	case op == opcode.ExprAddressOf:
		if len(e.Operands) != 1 {
			return nil, fmt.Errorf("%w: addr payload", ErrBadExpr)
		}
		if off, ok := e.Operands[0].(ir.Offset); ok {
			return offsetVal(uint32(off)), nil
		}
		return nil, nil
	case op == opcode.ExprStack:
		n, ok := slotIndex(e)
		if !ok {
			return nil, fmt.Errorf("%w: stack payload", ErrBadExpr)
		}
		return c.st.slots[c.st.bp+n], nil
	case op == opcode.ExprParentStack:
		n, ok := slotIndex(e)
		if !ok {
			return nil, fmt.Errorf("%w: stack payload", ErrBadExpr)
		}
		base, ok := c.st.parentBase()
		if !ok {
			return nil, nil
		}
		return c.st.slots[base+n], nil
	case op == opcode.ExprResult1:
		return c.st.res1, nil
	case op == opcode.ExprResult2:
		return c.st.res2, nil
	case op == opcode.ExprVariable:
		if len(e.Operands) == 1 {
			if idx, ok := ir.ConstValue(e.Operands[0]); ok {
				return c.st.vars[int16(idx)], nil
			}
			_, err := c.evalOperand(e.Operands[0])
			return nil, err
		}
		return nil, nil
	case op == opcode.ExprObj:
		return c.obj(e)
	case op == opcode.ExprArrayElement:
		return c.arrayElem(e)
	case op.IsBinary():
		if len(e.Operands) != 2 {
			return nil, fmt.Errorf("%w: %v children", ErrBadExpr, op)
		}
		lv, err := c.evalOperand(e.Operands[0])
		if err != nil {
			return nil, err
		}
		rv, err := c.evalOperand(e.Operands[1])
		if err != nil {
			return nil, err
		}
		return combine(lv, rv), nil
	default:
		for _, ch := range e.Operands {
			if _, err := c.evalOperand(ch); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}
}

// obj classifies an object accessor by its atom: direction and distance
// accessors take a pair address, bone accessors a bone address, and the
// rest take a plain object id.
func (c *collector) obj(e *ir.Expr) (*value, error) {
	if len(e.Operands) != 2 {
		return nil, fmt.Errorf("%w: object accessor operands", ErrBadExpr)
	}
	tag, ok := e.Operands[0].(ir.TypeTag)
	if !ok {
		return nil, fmt.Errorf("%w: object accessor atom is %T", ErrBadExpr, e.Operands[0])
	}
	v, err := c.evalOperand(e.Operands[1])
	if err != nil {
		return nil, err
	}
	switch opcode.Atom(tag) {
	case opcode.AtomDirTo, opcode.AtomDistance:
		c.addRef(v, script.PairValue())
	case opcode.AtomBoneX, opcode.AtomBoneY, opcode.AtomBoneZ,
		opcode.AtomUnk249, opcode.AtomUnk250:
		c.addRef(v, script.BoneValue())
	}
	return nil, nil
}

func (c *collector) arrayElem(e *ir.Expr) (*value, error) {
	if len(e.Operands) != 3 {
		return nil, fmt.Errorf("%w: array element operands", ErrBadExpr)
	}
	kind := ir.DataU8
	if t, ok := ir.ConstValue(e.Operands[0]); ok {
		if k, known := elemKind(t); known {
			kind = k
		} else {
			c.warn("array element width %d read as u8", t)
		}
	} else {
		c.warn("array element width is not constant, read as u8")
	}
	if _, err := c.evalOperand(e.Operands[1]); err != nil {
		return nil, err
	}
	base, err := c.evalOperand(e.Operands[2])
	if err != nil {
		return nil, err
	}
	c.addRef(base, script.ArrayValue(kind))
	return elemVal(base), nil
}

// elemKind maps an array element width discriminator to a data kind.
// Negative widths are signed.
func elemKind(v int32) (ir.DataKind, bool) {
	switch v {
	case -4:
		return ir.DataI32, true
	case -2:
		return ir.DataI16, true
	case -1:
		return ir.DataI8, true
	case 1:
		return ir.DataU8, true
	case 2:
		return ir.DataU16, true
	case 4:
		return ir.DataU32, true
	}
	return 0, false
}

func slotIndex(e *ir.Expr) (int, bool) {
	if len(e.Operands) != 1 {
		return 0, false
	}
	v, ok := e.Operands[0].(ir.U8)
	return int(v), ok
}

func badCmd(cmd *ir.Command) error {
	return fmt.Errorf("%w: %v operands", ErrBadCommand, cmd.Opcode)
}
