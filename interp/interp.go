package interp

import (
	"fmt"
	"io"

	"github.com/egalli/clifcore/clif"
	"github.com/sirupsen/logrus"
)

// controlFlowKind tags what should happen after a block finishes
// executing its non-terminator instructions.
//
// Grounded on cranelift/interpreter/src/interpreter.rs's ControlFlow
// enum (Continue, ContinueAt, Return). Continue itself never escapes
// runBlock: a not-taken brnz simply falls through within the same loop
// iteration, so only the latter two are modeled here.
type controlFlowKind uint8

const (
	cfContinueAt controlFlowKind = iota
	cfReturn
)

type controlFlow struct {
	kind    controlFlowKind
	block   clif.BlockRef
	args    []clif.DataValue
	results []clif.DataValue
}

// Interpreter walks a clif.Function's blocks and instructions one at a
// time, dispatching on Opcode, and records any trace windows bounded by
// trace_start/trace_end markers it steps over. On trace_end it
// reconstructs and compiles the recorded window through Runner and
// caches the result; a later trace_start over the same id dispatches
// the cached code and then carries on with the next instruction, so the
// window's instructions are still interpreted after the dispatch, and
// the matching trace_end neither records nor recompiles.
//
// An injected environment and injected diagnostic sink replace package
// globals, carried here as Env and logger. Runner (and therefore its
// TraceStore and externally supplied Codegen) is a field of the
// Interpreter, not the reverse, so the interpreter owns the whole
// trace_start/trace_end lifecycle.
type Interpreter struct {
	Env           *Environment
	Reconstructor *FunctionReconstructor
	Runner        *NativeRunner

	logger *logrus.Entry
	traces map[int64]*Trace

	// traceSignature records the signature compiled for each trace id,
	// so a later trace_start hit knows how to type the native runner's
	// result without re-deriving it from the original trace.
	traceSignature map[int64]clif.Signature

	tracingActive bool
	activeTraceID int64
}

// NewInterpreter returns an Interpreter bound to env, compiling
// recorded traces through gen, with logging discarded until SetLogger
// is called.
func NewInterpreter(env *Environment, gen Codegen) *Interpreter {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	return &Interpreter{
		Env:            env,
		Reconstructor:  NewFunctionReconstructor(ReturnEmpty),
		Runner:         NewNativeRunner(gen, NewTraceStore()),
		logger:         logrus.NewEntry(discard),
		traces:         make(map[int64]*Trace),
		traceSignature: make(map[int64]clif.Signature),
	}
}

// SetLogger installs a structured logger that receives a trace-level
// entry for every function call, block transition and instruction
// dispatched, mirroring interpreter.rs's log::debug! call sites.
func (it *Interpreter) SetLogger(l *logrus.Entry) { it.logger = l }

// Trace returns the recorder for id, if trace_start id has been stepped
// over at least once.
func (it *Interpreter) Trace(id int64) (*Trace, bool) {
	t, ok := it.traces[id]
	return t, ok
}

// CallByName resolves name against the Interpreter's Environment and
// interprets it with args, returning its declared return values.
func (it *Interpreter) CallByName(name string, args []clif.DataValue) ([]clif.DataValue, error) {
	fn, ok := it.Env.Lookup(name)
	if !ok {
		return nil, newTrap(UnknownFunction, nil, "%s", name)
	}
	return it.call(fn, args, nil)
}

func (it *Interpreter) call(fn *clif.Function, args []clif.DataValue, caller *Frame) ([]clif.DataValue, error) {
	if len(args) != len(fn.Signature.Params) {
		return nil, newTrap(ArityMismatch, nil, "%s expects %d argument(s), got %d",
			fn.Name, len(fn.Signature.Params), len(args))
	}

	it.logger.WithField("function", fn.Name).Trace("call")

	frame := NewFrame(fn, caller)
	entry, ok := fn.Layout.EntryBlock()
	if !ok {
		return nil, newTrap(InvalidControlFlow, nil, "%s has no blocks", fn.Name)
	}
	frame.BindAll(fn.DFG.BlockParams(entry), args)

	block := entry
	for {
		it.logger.WithFields(logrus.Fields{"function": fn.Name, "block": block}).Trace("block")

		cf, err := it.runBlock(fn, frame, block)
		if err != nil {
			return nil, err
		}
		switch cf.kind {
		case cfReturn:
			return cf.results, nil
		case cfContinueAt:
			frame.BindAll(fn.DFG.BlockParams(cf.block), cf.args)
			block = cf.block
		}
	}
}

// runBlock executes every instruction in block in layout order and
// returns the control transfer its terminator produces. A not-taken
// brnz does not terminate the block: the loop simply advances to the
// next instruction, which is how fall-through is modeled.
func (it *Interpreter) runBlock(fn *clif.Function, frame *Frame, block clif.BlockRef) (controlFlow, error) {
	for _, i := range fn.Layout.BlockInsts(block) {
		data := fn.DFG.Inst(i)
		it.logger.WithField("inst", data.Opcode).Trace("inst")

		switch data.Opcode {
		case clif.OpTraceStart:
			if err := it.traceStart(fn, frame, i, data); err != nil {
				return controlFlow{}, err
			}
			continue
		case clif.OpTraceEnd:
			if err := it.traceEnd(data); err != nil {
				return controlFlow{}, err
			}
			continue
		case clif.OpJump:
			return controlFlow{kind: cfContinueAt, block: data.Then, args: it.evalArgs(frame, data.ThenArgs)}, nil
		case clif.OpBrnz:
			if cf, taken := it.evalBrnz(frame, data); taken {
				return cf, nil
			}
			continue
		case clif.OpReturn:
			return controlFlow{kind: cfReturn, results: it.evalArgs(frame, data.Args)}, nil
		case clif.OpCall:
			if err := it.evalCall(frame, i, data); err != nil {
				return controlFlow{}, err
			}
			continue
		default:
			if err := it.evalValue(frame, i, data); err != nil {
				return controlFlow{}, err
			}
			continue
		}
	}
	return controlFlow{}, newTrap(InvalidControlFlow, nil, "block %v falls through without a terminator", block)
}

func (it *Interpreter) evalArgs(frame *Frame, vs []clif.ValueRef) []clif.DataValue {
	out := make([]clif.DataValue, len(vs))
	for i, v := range vs {
		out[i] = frame.Value(v)
	}
	return out
}

// evalBrnz evaluates a brnz: taken reports true alongside the
// ContinueAt transfer when the condition is nonzero; not taken reports
// false, meaning "fall through to the next instruction in this block".
func (it *Interpreter) evalBrnz(frame *Frame, data clif.InstructionData) (controlFlow, bool) {
	cond := frame.Value(data.Args[0])
	if cond.IsZero() {
		return controlFlow{}, false
	}
	return controlFlow{kind: cfContinueAt, block: data.Then, args: it.evalArgs(frame, data.ThenArgs)}, true
}

func (it *Interpreter) evalCall(frame *Frame, i clif.Inst, data clif.InstructionData) error {
	fn := frame.Function
	callee, ok := fn.DFG.ExtFuncData(data.Callee)
	if !ok {
		return newTrap(UnknownFunction, nil, "func ref %v", data.Callee)
	}
	args := it.evalArgs(frame, data.Args)
	it.activeTrace().EnterFunction(callee.Name)
	results, err := it.call(mustLookup(it, callee.Name), args, frame)
	it.activeTrace().ExitFunction(callee.Name)
	if err != nil {
		return err
	}
	resultVals := fn.DFG.InstResults(i)
	if len(resultVals) > 0 {
		frame.Bind(resultVals[0], results[0])
	}
	it.activeTrace().Instruction(i, data, resultVals, args, results)
	return nil
}

func mustLookup(it *Interpreter, name string) *clif.Function {
	fn, _ := it.Env.Lookup(name)
	return fn
}

// evalValue dispatches a non-control-flow instruction: it evaluates
// operands, performs the clif.DataValue operation, and binds the
// result.
func (it *Interpreter) evalValue(frame *Frame, i clif.Inst, data clif.InstructionData) error {
	fn := frame.Function
	results := fn.DFG.InstResults(i)
	args := it.evalArgs(frame, data.Args)

	var out clif.DataValue
	var err error

	switch data.Opcode {
	case clif.OpNop:
		// No effect; still recorded below so a traced window can
		// reconstruct it faithfully.
	case clif.OpIconst, clif.OpBconst, clif.OpF32const, clif.OpF64const:
		out = data.Imm
	case clif.OpBitcast:
		out, err = args[0].Convert(clif.Exact, fn.DFG.ValueType(results[0]))
	case clif.OpIreduce:
		out, err = args[0].Convert(clif.Truncate, fn.DFG.ValueType(results[0]))
	case clif.OpUextend:
		out, err = args[0].Convert(clif.ZeroExtend, fn.DFG.ValueType(results[0]))
	case clif.OpSextend:
		out, err = args[0].Convert(clif.SignExtend, fn.DFG.ValueType(results[0]))
	case clif.OpIadd:
		out, err = args[0].Add(args[1])
	case clif.OpIsub:
		out, err = args[0].Sub(args[1])
	case clif.OpImul:
		out, err = args[0].Mul(args[1])
	case clif.OpSdiv:
		out, err = args[0].Div(args[1])
	case clif.OpSrem:
		out, err = args[0].Rem(args[1])
	case clif.OpIshl:
		out, err = args[0].Shl(args[1])
	case clif.OpUshr:
		out, err = args[0].Ushr(args[1])
	case clif.OpIshr:
		out, err = args[0].Ishr(args[1])
	case clif.OpRotl:
		out, err = args[0].Rotl(args[1])
	case clif.OpRotr:
		out, err = args[0].Rotr(args[1])
	case clif.OpBand:
		out, err = args[0].And(args[1])
	case clif.OpBor:
		out, err = args[0].Or(args[1])
	case clif.OpBxor:
		out, err = args[0].Xor(args[1])
	case clif.OpIrsubImm:
		out, err = clif.EvalIrsubImm(args[0], data.Imm.Int())
	case clif.OpBnot:
		out, err = args[0].Not()
	case clif.OpIcmp:
		out, err = clif.EvalIntCompare(data.Cond, args[0], args[1])
	case clif.OpIcmpImm:
		out, err = clif.EvalIntCompareImm(data.Cond, args[0], data.Imm.Int())
	case clif.OpFcmpEq:
		out, err = args[0].Eq(args[1])
	case clif.OpFcmpGt:
		out, err = args[0].Gt(args[1])
	case clif.OpFcmpUno:
		out, err = args[0].Uno(args[1])
	default:
		return newTrap(Unimplemented, nil, "opcode %s", data.Opcode)
	}
	if err != nil {
		return newTrap(ValueError, err, "%s", data.Opcode)
	}

	if len(results) > 0 {
		frame.Bind(results[0], out)
	}
	it.activeTrace().Instruction(i, data, results, args, []clif.DataValue{out})
	return nil
}

// traceStart implements trace_start's two modes. If id already has
// compiled code cached from a prior trace_end over this window,
// dispatch that code with the current live-in argument list and bind
// its result; runBlock then goes on with the instruction after the
// marker, so the window itself is interpreted again without being
// recorded. Otherwise it begins recording a fresh window starting here.
//
// Dispatch-on-reentry is only reachable with an empty argument list:
// since non-empty trace_start live-ins are rejected below (see
// DESIGN.md's resolution of the lifted free-input open question), a
// reconstructed function can only ever be dispatched here when it
// closed over zero free inputs.
func (it *Interpreter) traceStart(fn *clif.Function, frame *Frame, i clif.Inst, data clif.InstructionData) error {
	if len(data.Args) > 0 {
		return newTrap(TraceError, ErrLiveInsUnsupported, "trace_start %d", data.TraceID)
	}

	if sig, ok := it.traceSignature[data.TraceID]; ok {
		hasReturn := len(sig.Returns) == 1
		var returnType clif.Type
		if hasReturn {
			returnType = sig.Returns[0]
		}
		result, dispatched, err := it.Runner.DispatchStored(data.TraceID, nil, hasReturn, returnType)
		if err != nil {
			return newTrap(TraceError, err, "dispatch compiled trace %d", data.TraceID)
		}
		if dispatched {
			if hasReturn {
				if results := fn.DFG.InstResults(i); len(results) > 0 {
					frame.Bind(results[0], result)
				}
			}
			return nil
		}
	}

	t, ok := it.traces[data.TraceID]
	if !ok {
		t = NewTrace(data.TraceID)
		it.traces[data.TraceID] = t
	}
	block, _ := fn.Layout.BlockOf(i)
	t.Start(fn.Name, block)
	it.activeTraceID = data.TraceID
	it.tracingActive = true
	return nil
}

// traceEnd ends the active trace, drops the trailing trace_end record
// the per-step recording would otherwise leave behind, reconstructs a
// straight-line function from the window, compiles it, and caches it
// under data.TraceID for a future trace_start to dispatch. A trace_end
// whose trace is not recording does nothing.
func (it *Interpreter) traceEnd(data clif.InstructionData) error {
	t, ok := it.traces[data.TraceID]
	if !ok || !t.Tracing() {
		return nil
	}

	t.Record(TracedInstruction{Kind: ItemInstruction, Data: data})
	t.RemoveLast()
	t.Stop()
	if it.activeTraceID == data.TraceID {
		it.tracingActive = false
	}

	reconstructed, err := it.Reconstructor.Reconstruct(fmt.Sprintf("trace_%d", data.TraceID), t)
	if err != nil {
		return err
	}
	if err := it.Runner.CompileAndStore(data.TraceID, reconstructed); err != nil {
		return err
	}
	it.traceSignature[data.TraceID] = reconstructed.Signature
	return nil
}

// activeTrace returns the currently recording trace, or a stopped
// sentinel so callers can unconditionally record into it.
func (it *Interpreter) activeTrace() *Trace {
	if it.tracingActive {
		if t, ok := it.traces[it.activeTraceID]; ok {
			return t
		}
	}
	return &Trace{}
}
