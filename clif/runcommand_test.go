package clif

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunCommandEqualsPasses(t *testing.T) {
	cmd := RunCommand{
		Invocation: Invocation{FunctionName: "double", Args: []DataValue{mustInt(t, 21, I32)}},
		Comparison: ComparisonEquals,
		Expected:   []DataValue{mustInt(t, 42, I32)},
	}

	_, err := cmd.Run(func(inv Invocation) ([]DataValue, error) {
		n := inv.Args[0].Int()
		v, _ := NewInt(n*2, I32)
		return []DataValue{v}, nil
	})
	require.NoError(t, err)
}

func TestRunCommandEqualsFails(t *testing.T) {
	cmd := RunCommand{
		Invocation: Invocation{FunctionName: "double", Args: []DataValue{mustInt(t, 21, I32)}},
		Comparison: ComparisonEquals,
		Expected:   []DataValue{mustInt(t, 43, I32)},
	}

	_, err := cmd.Run(func(inv Invocation) ([]DataValue, error) {
		n := inv.Args[0].Int()
		v, _ := NewInt(n*2, I32)
		return []DataValue{v}, nil
	})
	require.ErrorIs(t, err, ErrComparisonFailed)
}

func TestRunCommandPrintNeverFails(t *testing.T) {
	cmd := RunCommand{
		IsPrint:    true,
		Invocation: Invocation{FunctionName: "identity", Args: []DataValue{mustInt(t, 7, I32)}},
	}

	out, err := cmd.Run(func(inv Invocation) ([]DataValue, error) {
		return inv.Args, nil
	})
	require.NoError(t, err)
	require.Contains(t, out, "7")
}

func TestRunCommandNotEquals(t *testing.T) {
	cmd := RunCommand{
		Invocation: Invocation{FunctionName: "id", Args: []DataValue{mustInt(t, 1, I32)}},
		Comparison: ComparisonNotEquals,
		Expected:   []DataValue{mustInt(t, 2, I32)},
	}

	_, err := cmd.Run(func(inv Invocation) ([]DataValue, error) {
		return inv.Args, nil
	})
	require.NoError(t, err)
}
