package interp

import (
	"testing"

	"github.com/egalli/clifcore/clif"
	"github.com/stretchr/testify/require"
)

// buildTracedNoop builds `function %loop() { block0: trace_start 1; v0 =
// iconst.i32 7; trace_end 1; return }`: a traced window with zero free
// inputs and zero results, so a second call can be dispatched straight
// from the compiled cache rather than re-interpreted.
func buildTracedNoop() *clif.Function {
	fn := clif.NewFunction("loop", clif.Signature{})
	entry := fn.DFG.CreateBlock()
	fn.Layout.AppendBlock(entry)

	startInst, _ := fn.DFG.BuildInst(clif.InstructionData{Opcode: clif.OpTraceStart, TraceID: 1})
	fn.Layout.AppendInst(entry, startInst)

	seven, _ := clif.NewInt(7, clif.I32)
	constInst, _ := fn.DFG.BuildInst(clif.InstructionData{Opcode: clif.OpIconst, Imm: seven}, clif.I32)
	fn.Layout.AppendInst(entry, constInst)

	endInst, _ := fn.DFG.BuildInst(clif.InstructionData{Opcode: clif.OpTraceEnd, TraceID: 1})
	fn.Layout.AppendInst(entry, endInst)

	retInst, _ := fn.DFG.BuildInst(clif.InstructionData{Opcode: clif.OpReturn})
	fn.Layout.AppendInst(entry, retInst)
	return fn
}

// TestTraceEndCompilesAndTraceStartDispatchesOnReentry exercises the
// full trace_start -> record -> trace_end -> reconstruct -> compile ->
// store -> trace_start-hit -> dispatch pipeline over one real traced
// function, calling it twice: the first call records and compiles, the
// second dispatches the cached code and does not compile again.
func TestTraceEndCompilesAndTraceStartDispatchesOnReentry(t *testing.T) {
	env := NewEnvironment()
	env.Define(buildTracedNoop())
	gen := &stubCodegen{code: []byte{0xC3}} // a bare ret, enough to dispatch into
	it := NewInterpreter(env, gen)

	_, err := it.CallByName("loop", nil)
	require.NoError(t, err)
	require.Equal(t, 1, gen.calls, "trace_end should compile the window exactly once")

	tr, ok := it.Trace(1)
	require.True(t, ok)
	require.False(t, tr.Tracing())
	for _, item := range tr.Items {
		require.NotEqual(t, clif.OpTraceEnd, item.Data.Opcode, "the trailing trace_end record must be removed")
	}

	sig, ok := it.traceSignature[1]
	require.True(t, ok)
	require.Empty(t, sig.Params)
	require.Empty(t, sig.Returns)

	_, err = it.CallByName("loop", nil)
	require.NoError(t, err)
	require.Equal(t, 1, gen.calls, "a second call over the same trace id must dispatch the cached code, not recompile")
}
