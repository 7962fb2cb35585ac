package interp

import "github.com/egalli/clifcore/clif"

// ReconstructMode selects how FunctionReconstructor handles the return
// value of a reconstructed trace function, an explicit choice in place
// of the source material's unspecified behavior (see DESIGN.md).
type ReconstructMode uint8

const (
	// ReturnEmpty reconstructs a function that always returns no
	// values, regardless of what the trace computed. This is the
	// zero value and default.
	ReturnEmpty ReconstructMode = iota
	// ReturnLastValue reconstructs a function that returns the single
	// value still live (produced but not yet consumed by a later
	// instruction in the trace) at the point trace_end was reached,
	// when exactly one such value exists. If zero or more than one
	// value is live, it falls back to ReturnEmpty's behavior.
	ReturnLastValue
)

// scope renumbers one activation's original ValueRefs to the
// reconstructed function's ValueRefs. A fresh scope is pushed on
// EnterFunction and popped on ExitFunction so identically-numbered
// values from distinct activations never collide.
type scope struct {
	renaming map[clif.ValueRef]clif.ValueRef
}

func newScope() *scope { return &scope{renaming: make(map[clif.ValueRef]clif.ValueRef)} }

// FunctionReconstructor turns a completed Trace into a single
// straight-line clif.Function: every instruction the trace observed,
// across whatever calls and jumps it crossed, renumbered into one
// block. Values referenced but never defined within the trace window
// become the reconstructed function's parameters (its "lifted free
// input signature").
//
// cranelift/interpreter/src/tracing.rs marks this operation with a bare
// "TODO add reconstruct()" and supplies no implementation to adapt, so
// the renumbering and free-input lifting here are original to this
// package.
type FunctionReconstructor struct {
	Mode ReconstructMode
}

// NewFunctionReconstructor returns a reconstructor using mode.
func NewFunctionReconstructor(mode ReconstructMode) *FunctionReconstructor {
	return &FunctionReconstructor{Mode: mode}
}

// Reconstruct builds name from t. t must no longer be recording (its
// matching trace_end must have been stepped over).
func (r *FunctionReconstructor) Reconstruct(name string, t *Trace) (*clif.Function, error) {
	if t.Tracing() {
		return nil, newTrap(TraceError, nil, "trace %d has not reached its trace_end", t.ID)
	}

	fn := clif.NewFunction(name, clif.Signature{})
	entry := fn.DFG.CreateBlock()
	fn.Layout.AppendBlock(entry)

	stack := []*scope{newScope()}
	var freeInputs []clif.ValueRef
	var unconsumed []clif.ValueRef

	markConsumed := func(v clif.ValueRef) {
		for i, u := range unconsumed {
			if u == v {
				unconsumed = append(unconsumed[:i], unconsumed[i+1:]...)
				return
			}
		}
	}

	rename := func(old clif.ValueRef, observedType clif.Type) clif.ValueRef {
		cur := stack[len(stack)-1]
		if nv, ok := cur.renaming[old]; ok {
			markConsumed(nv)
			return nv
		}
		// A value this activation never defined: lift it as a free
		// input of the reconstructed function, typed per the value
		// actually observed flowing through it at trace time.
		nv := fn.DFG.AppendBlockParam(entry, observedType)
		cur.renaming[old] = nv
		freeInputs = append(freeInputs, nv)
		return nv
	}

	for _, item := range t.Items {
		switch item.Kind {
		case ItemStartInFunction:
			// Informational only: records where the window began.
		case ItemEnterFunction:
			stack = append(stack, newScope())
		case ItemExitFunction:
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		case ItemGuard:
			return nil, newTrap(Unimplemented, ErrGuardUnsupported, "inst %v", item.Inst)
		case ItemInstruction:
			newArgs := make([]clif.ValueRef, len(item.Data.Args))
			for i, a := range item.Data.Args {
				argType := clif.I64
				if i < len(item.Args) {
					argType = item.Args[i].Type()
				}
				newArgs[i] = rename(a, argType)
			}
			newData := item.Data
			newData.Args = newArgs

			resultTypes := make([]clif.Type, len(item.ResultRefs))
			for i := range item.ResultRefs {
				if i < len(item.Results) {
					resultTypes[i] = item.Results[i].Type()
				}
			}

			newInst, newResults := fn.DFG.BuildInst(newData, resultTypes...)
			fn.Layout.AppendInst(entry, newInst)

			cur := stack[len(stack)-1]
			for i, old := range item.ResultRefs {
				cur.renaming[old] = newResults[i]
				unconsumed = append(unconsumed, newResults[i])
			}
		}
	}

	var returns []clif.ValueRef
	if r.Mode == ReturnLastValue && len(unconsumed) == 1 {
		returns = unconsumed
	}

	retTypes := make([]clif.Type, len(returns))
	for i, v := range returns {
		retTypes[i] = fn.DFG.ValueType(v)
	}
	fn.Signature.Returns = retTypes

	retInst, _ := fn.DFG.BuildInst(clif.InstructionData{Opcode: clif.OpReturn, Args: returns})
	fn.Layout.AppendInst(entry, retInst)

	paramTypes := make([]clif.Type, len(freeInputs))
	for i, v := range freeInputs {
		paramTypes[i] = fn.DFG.ValueType(v)
	}
	fn.Signature.Params = paramTypes

	return fn, nil
}
