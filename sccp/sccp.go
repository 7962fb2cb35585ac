// Package sccp implements sparse conditional constant propagation over
// a clif.Function: it determines which SSA values are provably
// constant and which blocks are provably unreachable, then rewrites the
// function in place to materialize those constants and straighten
// branches whose condition is now known.
//
// Grounded on cranelift/preopt/src/constant_folding.rs: the LatticeValue
// meet law, replace_inst and possibly_replace_branch_with_jump are
// carried over. Propagation differs from that source's worklist: each
// round re-evaluates every block parameter and instruction of every
// reachable block until a round changes nothing, with lattice values
// and reachability held in Go maps keyed by clif.ValueRef/clif.BlockRef.
package sccp

import (
	"io"

	"github.com/egalli/clifcore/clif"
	"github.com/sirupsen/logrus"
)

// LatticeKind tags a LatticeValue's variant in the three-point
// semilattice SCCP propagates: unknown (not yet computed), a single
// known constant, or provably-not-constant.
type LatticeKind uint8

const (
	// Top means nothing is known about the value yet.
	Top LatticeKind = iota
	// Constant means the value always evaluates to the same DataValue
	// along every reachable path analyzed so far.
	Constant
	// Bottom means two reachable paths produced different values, or
	// the value is a function parameter whose caller could supply
	// anything.
	Bottom
)

// LatticeValue is one point in the constant-propagation lattice.
type LatticeValue struct {
	Kind  LatticeKind
	Value clif.DataValue
}

var topValue = LatticeValue{Kind: Top}
var bottomValue = LatticeValue{Kind: Bottom}

func constantValue(v clif.DataValue) LatticeValue { return LatticeValue{Kind: Constant, Value: v} }

// meet computes the lattice join used to combine a value's possible
// definitions along different control-flow paths: Top is the identity,
// Bottom absorbs everything, and two different constants meet to
// Bottom.
func meet(a, b LatticeValue) LatticeValue {
	if a.Kind == Top {
		return b
	}
	if b.Kind == Top {
		return a
	}
	if a.Kind == Bottom || b.Kind == Bottom {
		return bottomValue
	}
	eq, err := a.Value.Eq(b.Value)
	if err != nil || !eq.Bool() {
		return bottomValue
	}
	return a
}

// Folder runs the constant-folding pass, optionally logging each
// rewrite it performs.
type Folder struct {
	logger *logrus.Entry
}

// NewFolder returns a Folder with logging discarded until SetLogger is
// called.
func NewFolder() *Folder {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	return &Folder{logger: logrus.NewEntry(discard)}
}

// SetLogger installs a structured logger that receives a trace-level
// entry for every instruction and branch rewritten.
func (f *Folder) SetLogger(l *logrus.Entry) { f.logger = l }

type state struct {
	values     map[clif.ValueRef]LatticeValue
	reachable  map[clif.BlockRef]bool
	blockPreds map[clif.BlockRef][]predEdge
}

// predEdge records one block-to-block control transfer: the block it
// leaves from and the arguments it passes to the target's parameters.
type predEdge struct {
	from clif.BlockRef
	args []clif.ValueRef
}

// FoldConstants runs the pass to a fixed point and rewrites fn in
// place. It never removes blocks; the only instructions it removes are
// those following a brnz that rewrite turns into an unconditional jump.
// Unreachable blocks are left in place but their contribution to meets
// is ignored.
func (f *Folder) FoldConstants(fn *clif.Function) error {
	st := f.setup(fn)
	f.propagate(fn, st)
	f.rewrite(fn, st)
	return nil
}

// setup seeds every value to Top except entry block parameters, which
// start at Bottom since a caller may pass any value, and marks only the
// entry block reachable.
func (f *Folder) setup(fn *clif.Function) *state {
	st := &state{
		values:    make(map[clif.ValueRef]LatticeValue),
		reachable: make(map[clif.BlockRef]bool),
	}

	entry, ok := fn.Layout.EntryBlock()
	if !ok {
		return st
	}
	st.reachable[entry] = true
	for _, p := range fn.DFG.BlockParams(entry) {
		st.values[p] = bottomValue
	}
	return st
}

func value(st *state, v clif.ValueRef) LatticeValue {
	if lv, ok := st.values[v]; ok {
		return lv
	}
	return topValue
}

// propagate iterates the block/instruction worklist to a fixed point:
// each round recomputes every reachable block's parameter values,
// every instruction's result value, and which successor edges are
// reachable, stopping once nothing changes.
func (f *Folder) propagate(fn *clif.Function, st *state) {
	for {
		changed := false

		for _, block := range fn.Layout.Blocks() {
			if !st.reachable[block] {
				continue
			}

			for _, param := range fn.DFG.BlockParams(block) {
				if f.recomputeBlockParam(fn, st, block, param) {
					changed = true
				}
			}

			for _, inst := range fn.Layout.BlockInsts(block) {
				if f.recomputeInst(fn, st, inst) {
					changed = true
				}
			}

			if f.markSuccessors(fn, st, block) {
				changed = true
			}
		}

		if !changed {
			return
		}
	}
}

// recomputeBlockParam meets together the value passed to param by every
// reachable predecessor edge that targets block.
func (f *Folder) recomputeBlockParam(fn *clif.Function, st *state, block clif.BlockRef, param clif.ValueRef) bool {
	entry, _ := fn.Layout.EntryBlock()
	if block == entry {
		return false // already seeded to Bottom in setup
	}

	idx := paramIndex(fn.DFG.BlockParams(block), param)
	if idx < 0 {
		return false
	}

	result := topValue
	for _, pred := range predecessorsOf(fn, st, block) {
		if idx < len(pred.args) {
			result = meet(result, value(st, pred.args[idx]))
		}
	}

	old := value(st, param)
	if old == result {
		return false
	}
	st.values[param] = result
	return true
}

func paramIndex(params []clif.ValueRef, v clif.ValueRef) int {
	for i, p := range params {
		if p == v {
			return i
		}
	}
	return -1
}

// predecessorsOf scans every instruction of every reachable block for
// edges landing on target. A brnz is not necessarily a block's last
// instruction (a not-taken brnz falls through to whatever follows it
// in the same block), so every instruction is inspected rather than
// only the terminator.
func predecessorsOf(fn *clif.Function, st *state, target clif.BlockRef) []predEdge {
	var preds []predEdge
	for _, block := range fn.Layout.Blocks() {
		if !st.reachable[block] {
			continue
		}
		for _, i := range fn.Layout.BlockInsts(block) {
			term := fn.DFG.Inst(i)
			switch term.Opcode {
			case clif.OpJump:
				if term.Then == target {
					preds = append(preds, predEdge{from: block, args: term.ThenArgs})
				}
			case clif.OpBrnz:
				cond := value(st, term.Args[0])
				if cond.Kind == Constant && cond.Value.IsZero() {
					continue // provably never taken: no edge out of this instruction
				}
				if term.Then == target {
					preds = append(preds, predEdge{from: block, args: term.ThenArgs})
				}
			}
		}
	}
	return preds
}

// markSuccessors marks block's control-flow successors reachable. It
// inspects every instruction in the block rather than just the last:
// each brnz contributes an edge to Then when the condition isn't
// provably false, and the block's terminator (jump or return)
// contributes its own edge; a not-taken brnz needs no edge of its own
// since falling through stays inside the same, already-reachable block.
func (f *Folder) markSuccessors(fn *clif.Function, st *state, block clif.BlockRef) bool {
	changed := false

	mark := func(b clif.BlockRef) {
		if !st.reachable[b] {
			st.reachable[b] = true
			changed = true
		}
	}

	for _, i := range fn.Layout.BlockInsts(block) {
		term := fn.DFG.Inst(i)
		switch term.Opcode {
		case clif.OpJump:
			mark(term.Then)
		case clif.OpBrnz:
			cond := value(st, term.Args[0])
			if cond.Kind == Constant && cond.Value.IsZero() {
				continue
			}
			mark(term.Then)
		}
	}
	return changed
}

// recomputeInst evaluates inst's result from its (possibly still-Top)
// operand lattice values, symbolically performing the same DataValue
// operation the interpreter would. A failing operation (type mismatch,
// division by zero) is treated as "no new information" rather than a
// hard error: the folder only ever strengthens the lattice, never
// aborts on a path that real execution might never take.
func (f *Folder) recomputeInst(fn *clif.Function, st *state, i clif.Inst) bool {
	data := fn.DFG.Inst(i)
	results := fn.DFG.InstResults(i)
	if len(results) == 0 {
		return false
	}

	args := make([]LatticeValue, len(data.Args))
	for idx, a := range data.Args {
		args[idx] = value(st, a)
	}

	lv := f.evalInst(data, args)

	old := value(st, results[0])
	if old == lv {
		return false
	}
	st.values[results[0]] = lv
	return true
}

// evalInst computes the lattice value an instruction produces given its
// operands' current lattice values: Constant only if every operand
// feeding it is Constant and the underlying DataValue operation
// succeeds, Bottom if any operand is Bottom, Top otherwise (still
// waiting on more information).
func (f *Folder) evalInst(data clif.InstructionData, args []LatticeValue) LatticeValue {
	switch data.Opcode {
	case clif.OpIconst, clif.OpBconst, clif.OpF32const, clif.OpF64const:
		return constantValue(data.Imm)
	}

	anyBottom, anyTop := false, false
	operands := make([]clif.DataValue, len(args))
	for i, a := range args {
		switch a.Kind {
		case Bottom:
			anyBottom = true
		case Top:
			anyTop = true
		case Constant:
			operands[i] = a.Value
		}
	}
	if anyBottom {
		return bottomValue
	}
	if anyTop {
		return topValue
	}

	result, err := applyOp(data, operands)
	if err != nil {
		return bottomValue
	}
	return constantValue(result)
}

func applyOp(data clif.InstructionData, a []clif.DataValue) (clif.DataValue, error) {
	switch data.Opcode {
	case clif.OpBitcast:
		return a[0], nil // conservative: exact conversions keep resolving at rewrite time
	case clif.OpIreduce, clif.OpUextend, clif.OpSextend:
		return a[0], nil
	case clif.OpIadd:
		return a[0].Add(a[1])
	case clif.OpIsub:
		return a[0].Sub(a[1])
	case clif.OpImul:
		return a[0].Mul(a[1])
	case clif.OpSdiv:
		return a[0].Div(a[1])
	case clif.OpSrem:
		return a[0].Rem(a[1])
	case clif.OpIshl:
		return a[0].Shl(a[1])
	case clif.OpUshr:
		return a[0].Ushr(a[1])
	case clif.OpIshr:
		return a[0].Ishr(a[1])
	case clif.OpRotl:
		return a[0].Rotl(a[1])
	case clif.OpRotr:
		return a[0].Rotr(a[1])
	case clif.OpBand:
		return a[0].And(a[1])
	case clif.OpBor:
		return a[0].Or(a[1])
	case clif.OpBxor:
		return a[0].Xor(a[1])
	case clif.OpIrsubImm:
		return clif.EvalIrsubImm(a[0], data.Imm.Int())
	case clif.OpBnot:
		return a[0].Not()
	case clif.OpIcmp:
		return clif.EvalIntCompare(data.Cond, a[0], a[1])
	case clif.OpIcmpImm:
		return clif.EvalIntCompareImm(data.Cond, a[0], data.Imm.Int())
	case clif.OpFcmpEq:
		return a[0].Eq(a[1])
	case clif.OpFcmpGt:
		return a[0].Gt(a[1])
	case clif.OpFcmpUno:
		return a[0].Uno(a[1])
	default:
		return clif.DataValue{}, errUnfoldable
	}
}

// rewrite materializes every Constant value's defining instruction as a
// direct const, and straightens every brnz whose condition resolved to
// a Constant: a never-taken brnz becomes a nop (fall-through is already
// the only path out, so no block structure changes), and an
// always-taken brnz becomes an unconditional jump with every
// instruction after it in the block discarded, since once the jump is
// unconditional nothing past it can execute.
//
// Grounded on constant_folding.rs's replace_inst and
// possibly_replace_branch_with_jump.
func (f *Folder) rewrite(fn *clif.Function, st *state) {
	for _, block := range fn.Layout.Blocks() {
		if !st.reachable[block] {
			continue
		}
		for _, i := range fn.Layout.BlockInsts(block) {
			data := fn.DFG.Inst(i)

			if data.Opcode == clif.OpBrnz {
				cond := value(st, data.Args[0])
				if cond.Kind != Constant {
					continue
				}
				if cond.Value.IsZero() {
					f.logger.WithField("inst", i).Trace("branch never taken")
					fn.DFG.ReplaceInst(i, clif.InstructionData{Opcode: clif.OpNop})
					continue
				}
				f.logger.WithField("inst", i).Trace("branch always taken")
				fn.DFG.ReplaceInst(i, clif.InstructionData{Opcode: clif.OpJump, Then: data.Then, ThenArgs: data.ThenArgs})
				fn.Layout.TruncateAfter(block, i)
				break
			}

			results := fn.DFG.InstResults(i)
			if len(results) == 0 || isConstOpcode(data.Opcode) {
				continue
			}
			lv := value(st, results[0])
			if lv.Kind != Constant {
				continue
			}
			f.logger.WithField("inst", i).Trace("folded to constant")
			fn.DFG.ReplaceInst(i, clif.InstructionData{Opcode: constOpcodeFor(fn.DFG.ValueType(results[0])), Imm: lv.Value})
		}
	}
}

func isConstOpcode(op clif.Opcode) bool {
	switch op {
	case clif.OpIconst, clif.OpBconst, clif.OpF32const, clif.OpF64const:
		return true
	default:
		return false
	}
}

func constOpcodeFor(t clif.Type) clif.Opcode {
	switch {
	case t == clif.Bool:
		return clif.OpBconst
	case t == clif.F32:
		return clif.OpF32const
	case t == clif.F64:
		return clif.OpF64const
	default:
		return clif.OpIconst
	}
}

var errUnfoldable = clifUnfoldableError{}

type clifUnfoldableError struct{}

func (clifUnfoldableError) Error() string { return "instruction is not foldable" }
