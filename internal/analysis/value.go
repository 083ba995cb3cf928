package analysis

import "sort"

// value is the abstract content of one storage slot while scanning a
// single block. Only addresses and things derived from them are
// tracked; a nil value means the slot holds nothing of interest.
type value struct {
	class valClass
	off   uint32
	parts []*value
}

type valClass uint8

const (
	valOffset valClass = iota // address constant; off holds it
	valDeref                  // read through the address in parts[0]
	valElem                   // element of the array at parts[0]
	valUnion                  // any of parts
)

func offsetVal(off uint32) *value {
	return &value{class: valOffset, off: off}
}

func derefVal(v *value) *value {
	if v == nil {
		return nil
	}
	return &value{class: valDeref, parts: []*value{v}}
}

func elemVal(base *value) *value {
	if base == nil {
		return nil
	}
	return &value{class: valElem, parts: []*value{base}}
}

func isZeroOffset(v *value) bool {
	return v != nil && v.class == valOffset && v.off == 0
}

// combine folds the two sides of a binary operator. Summing with an
// address-of-zero is how the engine spells a pointer read, so that form
// becomes a dereference of the other side; otherwise addresses pass
// through arithmetic untouched.
func combine(lhs, rhs *value) *value {
	switch {
	case isZeroOffset(rhs):
		return derefVal(lhs)
	case isZeroOffset(lhs):
		return derefVal(rhs)
	case lhs == nil:
		return rhs
	case rhs == nil:
		return lhs
	default:
		return &value{class: valUnion, parts: []*value{lhs, rhs}}
	}
}

// state tracks storage across one block: script variables, the engine
// value stack with its frame pointers, and the two result registers.
type state struct {
	vars   map[int16]*value
	slots  map[int]*value
	frames []int
	bp     int
	sp     int
	res1   *value
	res2   *value
}

func newState() state {
	return state{
		vars:  make(map[int16]*value),
		slots: make(map[int]*value),
	}
}

func (st *state) push(v *value) {
	st.slots[st.sp] = v
	st.sp++
}

func (st *state) pushFrame() {
	st.frames = append(st.frames, st.bp)
	st.bp = st.sp
}

// frameSlots returns the occupied slot indexes of the current frame in
// ascending order.
func (st *state) frameSlots() []int {
	var idx []int
	for i := range st.slots {
		if i >= st.bp {
			idx = append(idx, i)
		}
	}
	sort.Ints(idx)
	return idx
}

// allSlots returns every occupied slot index in ascending order.
func (st *state) allSlots() []int {
	idx := make([]int, 0, len(st.slots))
	for i := range st.slots {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}

func (st *state) popFrame() {
	st.sp = st.bp
	if n := len(st.frames); n > 0 {
		st.bp = st.frames[n-1]
		st.frames = st.frames[:n-1]
	} else {
		st.bp = 0
	}
}

// parentBase returns the base pointer of the calling frame.
func (st *state) parentBase() (int, bool) {
	if len(st.frames) == 0 {
		return 0, false
	}
	return st.frames[len(st.frames)-1], true
}
