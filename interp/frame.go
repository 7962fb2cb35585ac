package interp

import "github.com/egalli/clifcore/clif"

// Frame holds one activation of CallByName: the function being
// interpreted, the SSA values bound so far, and a link to the caller's
// frame so a call instruction can return into it.
//
// Modeled after a conventional interpreter activation record (a
// function reference, a data slice, and an ancestor link), generalized
// from Go-reflect-value storage to SSA-value-keyed DataValue storage.
type Frame struct {
	Function *clif.Function
	values   map[clif.ValueRef]clif.DataValue
	Caller   *Frame
}

// NewFrame starts a fresh activation of fn with no bindings.
func NewFrame(fn *clif.Function, caller *Frame) *Frame {
	return &Frame{
		Function: fn,
		values:   make(map[clif.ValueRef]clif.DataValue),
		Caller:   caller,
	}
}

// Bind records the value produced for v.
func (f *Frame) Bind(v clif.ValueRef, val clif.DataValue) {
	f.values[v] = val
}

// Value looks up v's bound value. Missing values are a programming
// error in the interpreter (every value must be bound before use by
// construction of the dominance-respecting traversal), so callers index
// this directly rather than checking ok.
func (f *Frame) Value(v clif.ValueRef) clif.DataValue {
	return f.values[v]
}

// BindAll is a convenience for populating a set of block parameters (or
// a callee's incoming arguments) at once.
func (f *Frame) BindAll(vs []clif.ValueRef, vals []clif.DataValue) {
	for i, v := range vs {
		f.Bind(v, vals[i])
	}
}
