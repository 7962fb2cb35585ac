package interp

import "github.com/egalli/clifcore/clif"

// TraceItemKind tags the variant a TracedInstruction carries.
//
// Grounded on cranelift/interpreter/src/tracing.rs's TracedInstruction
// enum (EnterFunction, ExitFunction, Instruction, Guard), with
// StartInFunction added so a trace window that begins mid-function
// (rather than at a call boundary) still records which function and
// block it started in.
type TraceItemKind uint8

const (
	ItemStartInFunction TraceItemKind = iota
	ItemEnterFunction
	ItemExitFunction
	ItemInstruction
	ItemGuard
)

func (k TraceItemKind) String() string {
	switch k {
	case ItemStartInFunction:
		return "start_in_function"
	case ItemEnterFunction:
		return "enter_function"
	case ItemExitFunction:
		return "exit_function"
	case ItemInstruction:
		return "instruction"
	case ItemGuard:
		return "guard"
	default:
		return "unknown"
	}
}

// TracedInstruction is one observed event within a recorded trace
// window: either a function boundary crossing or a concrete instruction
// execution with its operand and result values captured.
type TracedInstruction struct {
	Kind         TraceItemKind
	FunctionName string
	Block        clif.BlockRef
	Inst         clif.Inst
	Data         clif.InstructionData
	ResultRefs   []clif.ValueRef
	Args         []clif.DataValue
	Results      []clif.DataValue
	GuardReason  string
}

// Trace is a recorded window of interpretation bounded by a trace_start
// and a matching trace_end of the same id.
//
// Grounded on tracing.rs's Trace{tracing, observed}, with an ID field
// (matching the marker instructions' TraceID) and explicit Start/Stop
// state transitions since this package supports multiple distinct
// trace ids rather than a single global recorder.
type Trace struct {
	ID      int64
	tracing bool
	Items   []TracedInstruction
}

// NewTrace begins an empty, not-yet-started trace for id.
func NewTrace(id int64) *Trace {
	return &Trace{ID: id}
}

// Tracing reports whether the trace is currently accepting items.
func (t *Trace) Tracing() bool { return t.tracing }

// Start marks the trace as actively recording, appending the
// StartInFunction marker that records where recording began.
func (t *Trace) Start(functionName string, block clif.BlockRef) {
	t.tracing = true
	t.Items = append(t.Items, TracedInstruction{
		Kind:         ItemStartInFunction,
		FunctionName: functionName,
		Block:        block,
	})
}

// Stop ends recording; later events are silently ignored rather than
// appended, matching trace_end's role as a hard boundary.
func (t *Trace) Stop() {
	t.tracing = false
}

// Record appends an item while the trace is active. It is a no-op once
// Stop has been called.
func (t *Trace) Record(item TracedInstruction) {
	if !t.tracing {
		return
	}
	t.Items = append(t.Items, item)
}

// EnterFunction records a call boundary crossing into calleeName.
func (t *Trace) EnterFunction(calleeName string) {
	t.Record(TracedInstruction{Kind: ItemEnterFunction, FunctionName: calleeName})
}

// ExitFunction records a return boundary crossing back out of
// calleeName.
func (t *Trace) ExitFunction(calleeName string) {
	t.Record(TracedInstruction{Kind: ItemExitFunction, FunctionName: calleeName})
}

// Instruction records a concrete instruction execution: the original
// SSA structure (Data, and the result values it defined via
// resultRefs) needed to renumber it into a reconstructed function, plus
// the concrete operand and result values actually observed.
func (t *Trace) Instruction(inst clif.Inst, data clif.InstructionData, resultRefs []clif.ValueRef, args, results []clif.DataValue) {
	t.Record(TracedInstruction{Kind: ItemInstruction, Inst: inst, Data: data, ResultRefs: resultRefs, Args: args, Results: results})
}

// Guard records a guard check the reconstructor cannot yet lower.
func (t *Trace) Guard(inst clif.Inst, reason string) {
	t.Record(TracedInstruction{Kind: ItemGuard, Inst: inst, GuardReason: reason})
}

// RemoveLast drops the most recently appended item, if any. Used to
// strip the trace_end marker itself once it has served its purpose of
// bounding the window, so the reconstructor never sees it.
func (t *Trace) RemoveLast() {
	if len(t.Items) == 0 {
		return
	}
	t.Items = t.Items[:len(t.Items)-1]
}
