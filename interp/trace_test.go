package interp

import (
	"testing"

	"github.com/egalli/clifcore/clif"
	"github.com/stretchr/testify/require"
)

func TestTraceRemoveLastDropsTrailingItem(t *testing.T) {
	tr := NewTrace(3)
	tr.Start("f", 0)
	tr.Instruction(clif.Inst(0), clif.InstructionData{Opcode: clif.OpNop}, nil, nil, nil)
	tr.Record(TracedInstruction{Kind: ItemInstruction, Data: clif.InstructionData{Opcode: clif.OpTraceEnd, TraceID: 3}})

	require.Len(t, tr.Items, 3) // start marker + nop + trace_end marker
	tr.RemoveLast()
	require.Len(t, tr.Items, 2)
	require.Equal(t, clif.OpNop, tr.Items[1].Data.Opcode)
}

func TestTraceRemoveLastOnEmptyTraceIsNoop(t *testing.T) {
	tr := NewTrace(4)
	tr.RemoveLast()
	require.Empty(t, tr.Items)
}
