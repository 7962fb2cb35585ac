package clif

import "fmt"

// Opcode names a single CLIF instruction kind: DataValue arithmetic,
// conversion and comparison, the control flow needed to drive the
// interpreter and reconstructor, calls, and the trace_start/trace_end
// markers that bound a recorded trace window.
type Opcode uint16

const (
	OpInvalid Opcode = iota

	// Constant materialization.
	OpIconst
	OpBconst
	OpF32const
	OpF64const

	// Conversions.
	OpBitcast // Exact
	OpIreduce // Truncate
	OpUextend // ZeroExtend
	OpSextend // SignExtend

	// Binary arithmetic.
	OpIadd
	OpIsub
	OpImul
	OpSdiv
	OpSrem
	OpIshl
	OpUshr
	OpIshr
	OpRotl
	OpRotr
	OpBand
	OpBor
	OpBxor

	// BinaryImm: reverse-subtract an immediate cast to the controlling type.
	OpIrsubImm

	// Unary.
	OpBnot

	// NullAry: no effect, present only to keep the block's layout shape.
	OpNop

	// Comparisons.
	OpIcmp
	OpFcmpEq
	OpFcmpGt
	OpFcmpUno

	// IntCompareImm: integer argument vs. an immediate.
	OpIcmpImm

	// Control flow.
	OpJump // unconditional, also covers "fallthrough"
	OpBrnz // conditional: taken transfers to Then, not-taken falls through
	OpReturn
	OpCall

	// Trace markers.
	OpTraceStart
	OpTraceEnd
)

func (op Opcode) String() string {
	names := [...]string{
		"invalid",
		"iconst", "bconst", "f32const", "f64const",
		"bitcast", "ireduce", "uextend", "sextend",
		"iadd", "isub", "imul", "sdiv", "srem", "ishl", "ushr", "ishr", "rotl", "rotr", "band", "bor", "bxor",
		"irsub_imm",
		"bnot",
		"nop",
		"icmp", "fcmp_eq", "fcmp_gt", "fcmp_uno",
		"icmp_imm",
		"jump", "brnz", "return", "call",
		"trace_start", "trace_end",
	}
	if int(op) < len(names) {
		return names[op]
	}
	return fmt.Sprintf("opcode(%d)", uint16(op))
}

// family classifies an Opcode by the InstructionData fields it populates.
// It backs IsTraceMarker and IsTerminator; the interpreter and folder
// switch on Opcode directly.
type family uint8

const (
	familyConst family = iota
	familyConvert
	familyBinary
	familyBinaryImm
	familyUnary
	familyNullary
	familyCompare
	familyCompareImm
	familyJump
	familyBranch
	familyReturn
	familyCall
	familyTraceMarker
	familyUnknown
)

var opcodeFamilyTable = map[Opcode]family{
	OpIconst:   familyConst,
	OpBconst:   familyConst,
	OpF32const: familyConst,
	OpF64const: familyConst,

	OpBitcast: familyConvert,
	OpIreduce: familyConvert,
	OpUextend: familyConvert,
	OpSextend: familyConvert,

	OpIadd: familyBinary,
	OpIsub: familyBinary,
	OpImul: familyBinary,
	OpSdiv: familyBinary,
	OpSrem: familyBinary,
	OpIshl: familyBinary,
	OpUshr: familyBinary,
	OpIshr: familyBinary,
	OpRotl: familyBinary,
	OpRotr: familyBinary,
	OpBand: familyBinary,
	OpBor:  familyBinary,
	OpBxor: familyBinary,

	OpIrsubImm: familyBinaryImm,

	OpBnot: familyUnary,

	OpNop: familyNullary,

	OpIcmp:    familyCompare,
	OpFcmpEq:  familyCompare,
	OpFcmpGt:  familyCompare,
	OpFcmpUno: familyCompare,

	OpIcmpImm: familyCompareImm,

	OpJump:   familyJump,
	OpBrnz:   familyBranch,
	OpReturn: familyReturn,
	OpCall:   familyCall,

	OpTraceStart: familyTraceMarker,
	OpTraceEnd:   familyTraceMarker,
}

func opcodeFamily(op Opcode) family {
	if f, ok := opcodeFamilyTable[op]; ok {
		return f
	}
	return familyUnknown
}

// IsTraceMarker reports whether op is trace_start or trace_end, the
// markers the trace recorder watches for.
func (op Opcode) IsTraceMarker() bool { return opcodeFamily(op) == familyTraceMarker }

// IsTerminator reports whether op unconditionally ends a block. brnz is
// deliberately excluded: a not-taken brnz falls through to the next
// instruction in the same block rather than ending it.
func (op Opcode) IsTerminator() bool {
	switch opcodeFamily(op) {
	case familyJump, familyReturn:
		return true
	default:
		return false
	}
}
