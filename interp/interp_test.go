package interp

import (
	"testing"

	"github.com/egalli/clifcore/clif"
	"github.com/stretchr/testify/require"
)

// buildAdd builds `function %add(i32, i32) -> i32 { block0(v0, v1): v2 =
// iadd v0, v1; return v2 }`.
func buildAdd() *clif.Function {
	fn := clif.NewFunction("add", clif.Signature{Params: []clif.Type{clif.I32, clif.I32}, Returns: []clif.Type{clif.I32}})
	entry := fn.DFG.CreateBlock()
	fn.Layout.AppendBlock(entry)
	v0 := fn.DFG.AppendBlockParam(entry, clif.I32)
	v1 := fn.DFG.AppendBlockParam(entry, clif.I32)

	addInst, addResults := fn.DFG.BuildInst(clif.InstructionData{Opcode: clif.OpIadd, Args: []clif.ValueRef{v0, v1}}, clif.I32)
	fn.Layout.AppendInst(entry, addInst)

	retInst, _ := fn.DFG.BuildInst(clif.InstructionData{Opcode: clif.OpReturn, Args: addResults})
	fn.Layout.AppendInst(entry, retInst)
	return fn
}

func TestCallByNameAdd(t *testing.T) {
	env := NewEnvironment()
	env.Define(buildAdd())
	it := NewInterpreter(env, &stubCodegen{code: []byte{0xC3}})

	a, _ := clif.NewInt(20, clif.I32)
	b, _ := clif.NewInt(22, clif.I32)
	results, err := it.CallByName("add", []clif.DataValue{a, b})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, int64(42), results[0].Int())
}

func TestCallByNameUnknownFunction(t *testing.T) {
	env := NewEnvironment()
	it := NewInterpreter(env, &stubCodegen{code: []byte{0xC3}})

	_, err := it.CallByName("missing", nil)
	require.Error(t, err)
	var trap *Trap
	require.ErrorAs(t, err, &trap)
	require.Equal(t, UnknownFunction, trap.Kind)
}

func TestCallByNameArityMismatch(t *testing.T) {
	env := NewEnvironment()
	env.Define(buildAdd())
	it := NewInterpreter(env, &stubCodegen{code: []byte{0xC3}})

	a, _ := clif.NewInt(1, clif.I32)
	_, err := it.CallByName("add", []clif.DataValue{a})
	require.Error(t, err)
	var trap *Trap
	require.ErrorAs(t, err, &trap)
	require.Equal(t, ArityMismatch, trap.Kind)
}

// buildAbs builds a two-block function: block0(v0, flag) falls through
// to an unconditional jump straight to done(v0) unless flag is nonzero,
// in which case brnz diverts to negate(v0) instead (this test's
// encoding of "negative").
func buildAbs() *clif.Function {
	fn := clif.NewFunction("abs_or_self", clif.Signature{Params: []clif.Type{clif.I32, clif.I32}, Returns: []clif.Type{clif.I32}})

	entry := fn.DFG.CreateBlock()
	negate := fn.DFG.CreateBlock()
	done := fn.DFG.CreateBlock()
	fn.Layout.AppendBlock(entry)
	fn.Layout.AppendBlock(negate)
	fn.Layout.AppendBlock(done)

	v0 := fn.DFG.AppendBlockParam(entry, clif.I32)
	flag := fn.DFG.AppendBlockParam(entry, clif.I32)

	brnzData := clif.InstructionData{
		Opcode:   clif.OpBrnz,
		Args:     []clif.ValueRef{flag},
		Then:     negate,
		ThenArgs: []clif.ValueRef{v0},
	}
	brnzInst, _ := fn.DFG.BuildInst(brnzData)
	fn.Layout.AppendInst(entry, brnzInst)

	fallThroughJump, _ := fn.DFG.BuildInst(clif.InstructionData{Opcode: clif.OpJump, Then: done, ThenArgs: []clif.ValueRef{v0}})
	fn.Layout.AppendInst(entry, fallThroughJump)

	negParam := fn.DFG.AppendBlockParam(negate, clif.I32)
	zero, _ := clif.NewInt(0, clif.I32)
	zeroInst, zeroResults := fn.DFG.BuildInst(clif.InstructionData{Opcode: clif.OpIconst, Imm: zero}, clif.I32)
	fn.Layout.AppendInst(negate, zeroInst)
	subInst, subResults := fn.DFG.BuildInst(clif.InstructionData{Opcode: clif.OpIsub, Args: []clif.ValueRef{zeroResults[0], negParam}}, clif.I32)
	fn.Layout.AppendInst(negate, subInst)
	jumpToDone, _ := fn.DFG.BuildInst(clif.InstructionData{Opcode: clif.OpJump, Then: done, ThenArgs: subResults})
	fn.Layout.AppendInst(negate, jumpToDone)

	doneParam := fn.DFG.AppendBlockParam(done, clif.I32)
	retInst, _ := fn.DFG.BuildInst(clif.InstructionData{Opcode: clif.OpReturn, Args: []clif.ValueRef{doneParam}})
	fn.Layout.AppendInst(done, retInst)

	return fn
}

func TestInterpreterBranching(t *testing.T) {
	env := NewEnvironment()
	env.Define(buildAbs())
	it := NewInterpreter(env, &stubCodegen{code: []byte{0xC3}})

	v, _ := clif.NewInt(-5, clif.I32)
	flag, _ := clif.NewInt(1, clif.I32)
	results, err := it.CallByName("abs_or_self", []clif.DataValue{v, flag})
	require.NoError(t, err)
	require.Equal(t, int64(5), results[0].Int())

	v2, _ := clif.NewInt(7, clif.I32)
	noFlag, _ := clif.NewInt(0, clif.I32)
	results2, err := it.CallByName("abs_or_self", []clif.DataValue{v2, noFlag})
	require.NoError(t, err)
	require.Equal(t, int64(7), results2[0].Int())
}
