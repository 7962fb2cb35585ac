package interp

import "github.com/egalli/clifcore/clif"

// Environment resolves call targets by name to concrete functions,
// matching the Cranelift interpreter's habit of dispatching calls
// through a name table rather than raw addresses.
type Environment struct {
	functions map[string]*clif.Function
}

// NewEnvironment returns an empty Environment.
func NewEnvironment() *Environment {
	return &Environment{functions: make(map[string]*clif.Function)}
}

// Define registers fn under its own Name, overwriting any previous
// definition of the same name.
func (e *Environment) Define(fn *clif.Function) {
	e.functions[fn.Name] = fn
}

// Lookup resolves name to its function, reporting ok=false if
// unregistered.
func (e *Environment) Lookup(name string) (*clif.Function, bool) {
	fn, ok := e.functions[name]
	return fn, ok
}
