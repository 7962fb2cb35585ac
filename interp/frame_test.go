package interp

import (
	"testing"

	"github.com/egalli/clifcore/clif"
	"github.com/stretchr/testify/require"
)

func TestFrameBindAndValue(t *testing.T) {
	fn := clif.NewFunction("f", clif.Signature{})
	frame := NewFrame(fn, nil)

	v, _ := clif.NewInt(9, clif.I32)
	frame.Bind(clif.ValueRef(0), v)
	require.Equal(t, int64(9), frame.Value(clif.ValueRef(0)).Int())
}

func TestFrameCallerLink(t *testing.T) {
	fn := clif.NewFunction("f", clif.Signature{})
	caller := NewFrame(fn, nil)
	callee := NewFrame(fn, caller)

	require.Same(t, caller, callee.Caller)
	require.Nil(t, caller.Caller)
}

func TestFrameBindAll(t *testing.T) {
	fn := clif.NewFunction("f", clif.Signature{})
	frame := NewFrame(fn, nil)

	a, _ := clif.NewInt(1, clif.I32)
	b, _ := clif.NewInt(2, clif.I32)
	vs := []clif.ValueRef{0, 1}
	frame.BindAll(vs, []clif.DataValue{a, b})

	require.Equal(t, int64(1), frame.Value(0).Int())
	require.Equal(t, int64(2), frame.Value(1).Int())
}
