package interp

import (
	"testing"

	"github.com/egalli/clifcore/clif"
	"github.com/stretchr/testify/require"
)

type stubCodegen struct {
	calls int
	code  []byte
	err   error
}

func (s *stubCodegen) Compile(fn *clif.Function) ([]byte, error) {
	s.calls++
	return s.code, s.err
}

func TestNativeRunnerRejectsMultiReturn(t *testing.T) {
	fn := clif.NewFunction("trace_1", clif.Signature{Returns: []clif.Type{clif.I32, clif.I32}})
	runner := NewNativeRunner(&stubCodegen{}, NewTraceStore())

	_, err := runner.Execute(1, fn, nil)
	require.Error(t, err)
	var trap *Trap
	require.ErrorAs(t, err, &trap)
	require.Equal(t, Unimplemented, trap.Kind)
}

func TestNativeRunnerRejectsTooManyArgs(t *testing.T) {
	fn := clif.NewFunction("trace_1", clif.Signature{Returns: []clif.Type{clif.I32}})
	runner := NewNativeRunner(&stubCodegen{}, NewTraceStore())

	a, _ := clif.NewInt(1, clif.I32)
	_, err := runner.Execute(1, fn, []clif.DataValue{a, a, a})
	require.Error(t, err)
	var trap *Trap
	require.ErrorAs(t, err, &trap)
	require.Equal(t, Unimplemented, trap.Kind)
}

func TestNativeRunnerPropagatesCodegenFailure(t *testing.T) {
	fn := clif.NewFunction("trace_1", clif.Signature{Returns: []clif.Type{clif.I32}})
	gen := &stubCodegen{code: nil, err: errCompileFailed}
	runner := NewNativeRunner(gen, NewTraceStore())

	_, err := runner.Execute(1, fn, nil)
	require.Error(t, err)
	require.Equal(t, 1, gen.calls)
}

var errCompileFailed = errNativeCompile{}

type errNativeCompile struct{}

func (errNativeCompile) Error() string { return "compile failed" }

func TestTraceStoreGetOnEmptyStoreMisses(t *testing.T) {
	store := NewTraceStore()
	_, ok := store.Get(1)
	require.False(t, ok)
}
