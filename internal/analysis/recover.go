package analysis

import (
	"fmt"

	"unstage/internal/ir"
	"unstage/internal/opcode"
)

// Recover rebuilds a command's expression trees from the flat prefix
// sequence the decoder produced. The walk runs back to front with an
// explicit stack: each operator pops its children, which arrive in wire
// order, so binary operators swap theirs back to left-then-right and
// object accessors lift their leading constant into a type tag. The set
// command's operands come off the wire value first and are swapped into
// target-first order.
func Recover(cmd *ir.Command) error {
	ops := cmd.Operands
	stack := make([]ir.Operand, 0, len(ops))
	for i := len(ops) - 1; i >= 0; i-- {
		e, ok := ops[i].(*ir.Expr)
		if !ok {
			stack = append(stack, ops[i])
			continue
		}
		n := e.Opcode.Children()
		if n > 0 {
			if len(stack) < n {
				return fmt.Errorf("%w: %v wants %d children in %v",
					ErrBadExpr, e.Opcode, n, cmd.Opcode)
			}
			children := make([]ir.Operand, n)
			for j := range children {
				children[j] = stack[len(stack)-1]
				stack = stack[:len(stack)-1]
			}
			if e.Opcode.IsBinary() {
				children[0], children[1] = children[1], children[0]
			}
			if e.Opcode == opcode.ExprObj {
				tag, err := accessorAtom(children[0])
				if err != nil {
					return err
				}
				children[0] = tag
			}
			e.Operands = children
		}
		stack = append(stack, e)
	}
	out := make([]ir.Operand, len(stack))
	for i := range out {
		out[i] = stack[len(stack)-1-i]
	}
	if cmd.Opcode == opcode.CmdSet && len(out) == 2 {
		out[0], out[1] = out[1], out[0]
	}
	cmd.Operands = out
	return nil
}

func accessorAtom(op ir.Operand) (ir.TypeTag, error) {
	v, ok := ir.ConstValue(op)
	if !ok {
		return 0, fmt.Errorf("%w: object accessor atom is %T", ErrBadExpr, op)
	}
	if !opcode.Atom(v).Valid() {
		return 0, fmt.Errorf("%w: unknown accessor atom %d", ErrBadExpr, v)
	}
	return ir.TypeTag(v), nil
}
