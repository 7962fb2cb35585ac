package sccp

import (
	"testing"

	"github.com/egalli/clifcore/clif"
	"github.com/stretchr/testify/require"
)

// buildConstantAdd builds `function %f() -> i32 { block0: v0 = iconst
// 2; v1 = iconst 3; v2 = iadd v0, v1; return v2 }`.
func buildConstantAdd() (*clif.Function, clif.Inst) {
	fn := clif.NewFunction("f", clif.Signature{Returns: []clif.Type{clif.I32}})
	entry := fn.DFG.CreateBlock()
	fn.Layout.AppendBlock(entry)

	two, _ := clif.NewInt(2, clif.I32)
	three, _ := clif.NewInt(3, clif.I32)

	i0, r0 := fn.DFG.BuildInst(clif.InstructionData{Opcode: clif.OpIconst, Imm: two}, clif.I32)
	fn.Layout.AppendInst(entry, i0)
	i1, r1 := fn.DFG.BuildInst(clif.InstructionData{Opcode: clif.OpIconst, Imm: three}, clif.I32)
	fn.Layout.AppendInst(entry, i1)
	i2, r2 := fn.DFG.BuildInst(clif.InstructionData{Opcode: clif.OpIadd, Args: []clif.ValueRef{r0[0], r1[0]}}, clif.I32)
	fn.Layout.AppendInst(entry, i2)

	retInst, _ := fn.DFG.BuildInst(clif.InstructionData{Opcode: clif.OpReturn, Args: r2})
	fn.Layout.AppendInst(entry, retInst)

	return fn, i2
}

func TestFoldConstantsMaterializesAddition(t *testing.T) {
	fn, addInst := buildConstantAdd()

	f := NewFolder()
	require.NoError(t, f.FoldConstants(fn))

	folded := fn.DFG.Inst(addInst)
	require.Equal(t, clif.OpIconst, folded.Opcode)
	require.Equal(t, int64(5), folded.Imm.Int())
}

// buildConstantBranch builds a function whose entry computes a bconst
// true condition, then a brnz on it followed by a fall-through jump:
// `v0 = bconst.b8 true; brnz v0, block1; jump block2`. Since v0 is
// always true the branch always transfers to block1, so the folder
// should straighten the brnz into an unconditional jump and discard
// the now-unreachable fall-through jump after it.
func buildConstantBranch() (*clif.Function, clif.Inst, clif.BlockRef, clif.Inst) {
	fn := clif.NewFunction("g", clif.Signature{Returns: []clif.Type{clif.I32}})
	entry := fn.DFG.CreateBlock()
	thenB := fn.DFG.CreateBlock()
	elseB := fn.DFG.CreateBlock()
	fn.Layout.AppendBlock(entry)
	fn.Layout.AppendBlock(thenB)
	fn.Layout.AppendBlock(elseB)

	trueVal := clif.NewBool(true)
	condInst, condResults := fn.DFG.BuildInst(clif.InstructionData{Opcode: clif.OpBconst, Imm: trueVal}, clif.Bool)
	fn.Layout.AppendInst(entry, condInst)

	brnzInst, _ := fn.DFG.BuildInst(clif.InstructionData{
		Opcode: clif.OpBrnz,
		Args:   condResults,
		Then:   thenB,
	})
	fn.Layout.AppendInst(entry, brnzInst)

	fallThroughJump, _ := fn.DFG.BuildInst(clif.InstructionData{Opcode: clif.OpJump, Then: elseB})
	fn.Layout.AppendInst(entry, fallThroughJump)

	ten, _ := clif.NewInt(10, clif.I32)
	thenConst, thenResults := fn.DFG.BuildInst(clif.InstructionData{Opcode: clif.OpIconst, Imm: ten}, clif.I32)
	fn.Layout.AppendInst(thenB, thenConst)
	thenRet, _ := fn.DFG.BuildInst(clif.InstructionData{Opcode: clif.OpReturn, Args: thenResults})
	fn.Layout.AppendInst(thenB, thenRet)

	twenty, _ := clif.NewInt(20, clif.I32)
	elseConst, elseResults := fn.DFG.BuildInst(clif.InstructionData{Opcode: clif.OpIconst, Imm: twenty}, clif.I32)
	fn.Layout.AppendInst(elseB, elseConst)
	elseRet, _ := fn.DFG.BuildInst(clif.InstructionData{Opcode: clif.OpReturn, Args: elseResults})
	fn.Layout.AppendInst(elseB, elseRet)

	return fn, brnzInst, entry, fallThroughJump
}

func TestFoldConstantsStraightensBranch(t *testing.T) {
	fn, brnzInst, entry, fallThroughJump := buildConstantBranch()

	f := NewFolder()
	require.NoError(t, f.FoldConstants(fn))

	rewritten := fn.DFG.Inst(brnzInst)
	require.Equal(t, clif.OpJump, rewritten.Opcode)
	require.Equal(t, clif.BlockRef(1), rewritten.Then)

	insts := fn.Layout.BlockInsts(entry)
	require.Len(t, insts, 2, "the fall-through jump after the now-unconditional branch must be discarded")
	_, stillPlaced := fn.Layout.BlockOf(fallThroughJump)
	require.False(t, stillPlaced)
}

func TestMeetLaw(t *testing.T) {
	require.Equal(t, topValue, meet(topValue, topValue))

	five, _ := clif.NewInt(5, clif.I32)
	c := constantValue(five)
	require.Equal(t, c, meet(topValue, c))
	require.Equal(t, c, meet(c, topValue))

	six, _ := clif.NewInt(6, clif.I32)
	require.Equal(t, bottomValue, meet(c, constantValue(six)))
	require.Equal(t, bottomValue, meet(c, bottomValue))
	require.Equal(t, bottomValue, meet(bottomValue, c))
}

func TestFoldConstantsLeavesNonConstantAlone(t *testing.T) {
	fn := clif.NewFunction("h", clif.Signature{Params: []clif.Type{clif.I32}, Returns: []clif.Type{clif.I32}})
	entry := fn.DFG.CreateBlock()
	fn.Layout.AppendBlock(entry)
	v0 := fn.DFG.AppendBlockParam(entry, clif.I32)

	addInst, addResults := fn.DFG.BuildInst(clif.InstructionData{Opcode: clif.OpIadd, Args: []clif.ValueRef{v0, v0}}, clif.I32)
	fn.Layout.AppendInst(entry, addInst)
	retInst, _ := fn.DFG.BuildInst(clif.InstructionData{Opcode: clif.OpReturn, Args: addResults})
	fn.Layout.AppendInst(entry, retInst)

	f := NewFolder()
	require.NoError(t, f.FoldConstants(fn))

	require.Equal(t, clif.OpIadd, fn.DFG.Inst(addInst).Opcode)
}
