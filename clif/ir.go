package clif

import "fmt"

// ValueRef names an SSA value: either an instruction result or a block
// parameter. Distinct from FuncRef and Inst so the compiler catches
// accidental mixing of the three handle kinds.
type ValueRef uint32

func (v ValueRef) String() string { return fmt.Sprintf("v%d", uint32(v)) }

// FuncRef names a callee, resolved through a Function's ExtFuncData table.
type FuncRef uint32

func (f FuncRef) String() string { return fmt.Sprintf("fn%d", uint32(f)) }

// Inst names an instruction within a Function's DataFlowGraph.
type Inst uint32

func (i Inst) String() string { return fmt.Sprintf("inst%d", uint32(i)) }

// BlockRef names a basic block within a Function's Layout.
type BlockRef uint32

func (b BlockRef) String() string { return fmt.Sprintf("block%d", uint32(b)) }

// IntCC enumerates the integer comparison kinds carried by icmp-family
// instructions. Covers the signed conditions icmp needs plus the
// unsigned condition icmp_imm requires at minimum (UnsignedLessThanOrEqual,
// alongside the already-modeled Equal); anything else is InvalidValue at
// interpretation time.
type IntCC uint8

const (
	CondEqual IntCC = iota
	CondNotEqual
	CondSignedGreaterThan
	CondSignedGreaterThanOrEqual
	CondSignedLessThan
	CondSignedLessThanOrEqual
	CondUnsignedLessThanOrEqual
)

// InstructionData is a tagged union over every instruction shape the
// interpreter, tracer and folder need to dispatch on. Rather than a
// closed Rust-style enum, family membership is recovered via
// opcodeFamily(Opcode) and only the fields that family uses are
// populated; the rest are left zero.
//
// Grounded on cranelift_codegen::ir::InstructionData, flattened per the
// REDESIGN FLAGS note calling for "a flat instruction-family enum"
// instead of per-family Go types.
type InstructionData struct {
	Opcode Opcode

	// Unary / UnaryImm / Binary / BinaryImm operands.
	Args []ValueRef
	Imm  DataValue

	// IntCompare / FloatCompare condition code.
	Cond IntCC

	// Call callee.
	Callee FuncRef

	// Jump / Branch targets. Jump always transfers to Then/ThenArgs.
	// Brnz transfers to Then/ThenArgs only when Args[0] is nonzero;
	// otherwise it falls through to the next instruction in the block.
	Then     BlockRef
	ThenArgs []ValueRef

	// trace_start / trace_end marker id. Matches Trace.ID in trace.go.
	TraceID int64
}
