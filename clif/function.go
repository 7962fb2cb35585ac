package clif

// Signature describes a function's parameter and return value types.
type Signature struct {
	Params  []Type
	Returns []Type
}

// ExtFuncData names an external callee by its printable symbol, matching
// function_name_of_func_ref in the Cranelift interpreter: call targets
// are resolved by name against an Environment, never by address.
type ExtFuncData struct {
	Name      string
	Signature Signature
}

// blockData holds a block's declared parameters.
type blockData struct {
	params     []ValueRef
	paramTypes []Type
}

// DataFlowGraph owns every instruction, its results, and every value's
// type and defining instruction (or block parameter), independent of the
// block order a Layout imposes on them. Mirrors the split Cranelift
// itself makes between ir::DataFlowGraph and ir::Layout.
type DataFlowGraph struct {
	insts       map[Inst]InstructionData
	instResults map[Inst][]ValueRef
	valueType   map[ValueRef]Type
	valueDef    map[ValueRef]Inst // zero value + ok=false for block params
	blocks      map[BlockRef]*blockData
	extFuncs    map[FuncRef]ExtFuncData

	nextValue ValueRef
	nextInst  Inst
	nextBlock BlockRef
	nextFunc  FuncRef
}

func newDataFlowGraph() DataFlowGraph {
	return DataFlowGraph{
		insts:       make(map[Inst]InstructionData),
		instResults: make(map[Inst][]ValueRef),
		valueType:   make(map[ValueRef]Type),
		valueDef:    make(map[ValueRef]Inst),
		blocks:      make(map[BlockRef]*blockData),
		extFuncs:    make(map[FuncRef]ExtFuncData),
	}
}

// Inst returns the instruction data for i.
func (g *DataFlowGraph) Inst(i Inst) InstructionData { return g.insts[i] }

// InstResults returns the SSA values i produced, in order.
func (g *DataFlowGraph) InstResults(i Inst) []ValueRef { return g.instResults[i] }

// ValueType returns the declared type of a value, whether it is a block
// parameter or an instruction result.
func (g *DataFlowGraph) ValueType(v ValueRef) Type { return g.valueType[v] }

// ValueDef reports the instruction that produced v and ok=true, or
// ok=false if v is a block parameter instead.
func (g *DataFlowGraph) ValueDef(v ValueRef) (Inst, bool) {
	i, ok := g.valueDef[v]
	return i, ok
}

// BlockParams returns the parameter values declared for b, in order.
func (g *DataFlowGraph) BlockParams(b BlockRef) []ValueRef {
	bd := g.blocks[b]
	if bd == nil {
		return nil
	}
	return bd.params
}

// ExtFuncData resolves a call target.
func (g *DataFlowGraph) ExtFuncData(f FuncRef) (ExtFuncData, bool) {
	d, ok := g.extFuncs[f]
	return d, ok
}

// CreateBlock declares a new, as yet unplaced, block.
func (g *DataFlowGraph) CreateBlock() BlockRef {
	b := g.nextBlock
	g.nextBlock++
	g.blocks[b] = &blockData{}
	return b
}

// AppendBlockParam declares a parameter of type t on b and returns its
// value handle.
func (g *DataFlowGraph) AppendBlockParam(b BlockRef, t Type) ValueRef {
	v := g.nextValue
	g.nextValue++
	g.valueType[v] = t
	bd := g.blocks[b]
	bd.params = append(bd.params, v)
	bd.paramTypes = append(bd.paramTypes, t)
	return v
}

// ImportFunction registers an external callee and returns its handle.
func (g *DataFlowGraph) ImportFunction(name string, sig Signature) FuncRef {
	f := g.nextFunc
	g.nextFunc++
	g.extFuncs[f] = ExtFuncData{Name: name, Signature: sig}
	return f
}

// BuildInst allocates a new instruction carrying data, declares its
// results with the given types, and returns the instruction handle plus
// its result values. The instruction is not yet placed into any block;
// callers place it via Layout.Append.
func (g *DataFlowGraph) BuildInst(data InstructionData, resultTypes ...Type) (Inst, []ValueRef) {
	i := g.nextInst
	g.nextInst++
	g.insts[i] = data

	results := make([]ValueRef, len(resultTypes))
	for idx, t := range resultTypes {
		v := g.nextValue
		g.nextValue++
		g.valueType[v] = t
		g.valueDef[v] = i
		results[idx] = v
	}
	g.instResults[i] = results
	return i, results
}

// ReplaceInst overwrites i's instruction data in place, keeping its
// existing result values (and therefore every other instruction's
// reference to them) intact. Used by the constant folder to turn a
// computed instruction into a direct materialization of its now-known
// value, and a resolved conditional branch into an unconditional jump.
func (g *DataFlowGraph) ReplaceInst(i Inst, data InstructionData) {
	g.insts[i] = data
}

// Layout imposes an ordering on blocks and, within each block, on its
// instructions — matching the separation cranelift_codegen::ir::Layout
// makes from the data it orders.
type Layout struct {
	blockOrder []BlockRef
	insts      map[BlockRef][]Inst
	blockOf    map[Inst]BlockRef
}

func newLayout() Layout {
	return Layout{
		insts:   make(map[BlockRef][]Inst),
		blockOf: make(map[Inst]BlockRef),
	}
}

// AppendBlock places a freshly created block at the end of the layout.
func (l *Layout) AppendBlock(b BlockRef) {
	l.blockOrder = append(l.blockOrder, b)
	if l.insts[b] == nil {
		l.insts[b] = nil
	}
}

// AppendInst places i at the end of b's instruction list.
func (l *Layout) AppendInst(b BlockRef, i Inst) {
	l.insts[b] = append(l.insts[b], i)
	l.blockOf[i] = b
}

// TruncateAfter drops every instruction placed in b after i, used by the
// folder to discard a block's now-unreachable tail once a conditional
// branch resolves to an always-taken jump. A no-op if i is not in b.
func (l *Layout) TruncateAfter(b BlockRef, i Inst) {
	insts := l.insts[b]
	for idx, cur := range insts {
		if cur != i {
			continue
		}
		for _, dead := range insts[idx+1:] {
			delete(l.blockOf, dead)
		}
		l.insts[b] = insts[:idx+1]
		return
	}
}

// Blocks returns every block in layout order.
func (l *Layout) Blocks() []BlockRef { return l.blockOrder }

// BlockInsts returns b's instructions in layout order.
func (l *Layout) BlockInsts(b BlockRef) []Inst { return l.insts[b] }

// BlockOf reports which block contains i.
func (l *Layout) BlockOf(i Inst) (BlockRef, bool) {
	b, ok := l.blockOf[i]
	return b, ok
}

// EntryBlock returns the function's first block.
func (l *Layout) EntryBlock() (BlockRef, bool) {
	if len(l.blockOrder) == 0 {
		return 0, false
	}
	return l.blockOrder[0], true
}

// Function is a single CLIF function: its signature plus the
// instructions and block structure describing its body.
type Function struct {
	Name      string
	Signature Signature
	DFG       DataFlowGraph
	Layout    Layout
}

// NewFunction creates an empty function ready for a builder to populate.
func NewFunction(name string, sig Signature) *Function {
	return &Function{
		Name:      name,
		Signature: sig,
		DFG:       newDataFlowGraph(),
		Layout:    newLayout(),
	}
}
