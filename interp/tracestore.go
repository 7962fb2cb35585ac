package interp

import "github.com/egalli/clifcore/clif"

// TraceStore caches compiled code for reconstructed trace functions
// keyed by trace id, so a trace that recurs through a hot loop is
// compiled once and then replayed from native code on every subsequent
// visit.
type TraceStore struct {
	entries map[int64]*CompiledCode
}

// NewTraceStore returns an empty store.
func NewTraceStore() *TraceStore {
	return &TraceStore{entries: make(map[int64]*CompiledCode)}
}

// Get returns the compiled code cached for id, if any.
func (s *TraceStore) Get(id int64) (*CompiledCode, bool) {
	c, ok := s.entries[id]
	return c, ok
}

// Put caches code under id, releasing and replacing any code already
// cached there.
func (s *TraceStore) Put(id int64, code *CompiledCode) {
	if old, ok := s.entries[id]; ok {
		old.Release()
	}
	s.entries[id] = code
}

// ReleaseAll releases every cached compiled code's mapped memory. Call
// once the store is no longer needed.
func (s *TraceStore) ReleaseAll() {
	for id, c := range s.entries {
		c.Release()
		delete(s.entries, id)
	}
}

// Codegen compiles a reconstructed, straight-line clif.Function into a
// native machine-code byte sequence using the host's calling
// convention. Producing those bytes (instruction selection, register
// allocation, ISA encoding) is explicitly out of scope for this
// module; callers supply their own implementation.
type Codegen interface {
	Compile(fn *clif.Function) ([]byte, error)
}
