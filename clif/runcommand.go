package clif

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Invocation names a function call recorded in a run command: the
// target's symbol and the argument values to pass it.
//
// Grounded on cranelift/reader/src/run_command.rs's Invocation.
type Invocation struct {
	FunctionName string
	Args         []DataValue
}

func (iv Invocation) String() string {
	parts := make([]string, len(iv.Args))
	for i, a := range iv.Args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("%%%s(%s)", iv.FunctionName, strings.Join(parts, ", "))
}

// Comparison relates an Invocation's result to an expected set of
// values, either asserting equality or inequality.
type Comparison uint8

const (
	ComparisonEquals Comparison = iota
	ComparisonNotEquals
)

// InvokeFunc dispatches an Invocation to a concrete callee, returning
// its result values. Supplied by the caller (interpreter or native
// runner) so RunCommand stays agnostic of how a call is actually made.
type InvokeFunc func(inv Invocation) ([]DataValue, error)

// RunCommand is either a bare Print (evaluate and display) or a Run
// (evaluate and assert against expected values), matching
// run_command.rs's RunCommand enum.
type RunCommand struct {
	IsPrint    bool
	Invocation Invocation
	Comparison Comparison
	Expected   []DataValue
}

// ErrComparisonFailed reports a Run command whose actual results did not
// satisfy its comparison against the expected values.
var ErrComparisonFailed = errors.New("run command comparison failed")

// Run evaluates the command's invocation via invoke and, for a Run
// command, checks the comparison. A Print command never fails on its
// own account; it returns a display string of the invocation's result.
func (c RunCommand) Run(invoke InvokeFunc) (string, error) {
	results, err := invoke(c.Invocation)
	if err != nil {
		return "", errors.Wrapf(err, "invoking %s", c.Invocation)
	}

	if c.IsPrint {
		return fmt.Sprintf("%s == %s", c.Invocation, formatValues(results)), nil
	}

	equal := sameValues(results, c.Expected)
	switch c.Comparison {
	case ComparisonEquals:
		if !equal {
			return "", errors.Wrapf(ErrComparisonFailed, "%s: got %s, want %s",
				c.Invocation, formatValues(results), formatValues(c.Expected))
		}
	case ComparisonNotEquals:
		if equal {
			return "", errors.Wrapf(ErrComparisonFailed, "%s: got %s, want anything but %s",
				c.Invocation, formatValues(results), formatValues(c.Expected))
		}
	}
	return fmt.Sprintf("%s == %s", c.Invocation, formatValues(results)), nil
}

func sameValues(a, b []DataValue) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		eq, err := a[i].Eq(b[i])
		if err != nil || !eq.Bool() {
			return false
		}
	}
	return true
}

func formatValues(vs []DataValue) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}
