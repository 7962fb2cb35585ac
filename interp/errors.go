// Package interp implements the CLIF interpreter, its trace recorder and
// reconstructor, and the native-code runner that executes reconstructed
// traces. See clif for the IR data types it operates over.
package interp

import (
	"fmt"

	"github.com/pkg/errors"
)

// TrapKind classifies why interpretation stopped.
type TrapKind uint8

const (
	// ValueError wraps a clif.DataValue operation failure (invalid
	// value, type mismatch, division by zero).
	ValueError TrapKind = iota
	// UnknownFunction means CallByName was asked to call a symbol the
	// Environment never registered.
	UnknownFunction
	// ArityMismatch means a call's argument count didn't match the
	// callee's declared signature.
	ArityMismatch
	// TraceError wraps a failure specific to trace recording,
	// reconstruction, compilation or dispatch (see ErrLiveInsUnsupported).
	TraceError
	// Unimplemented marks a construct this interpreter deliberately
	// does not support (multi-value or non-integer native dispatch,
	// guard reconstruction, arities above 2, unknown opcodes).
	Unimplemented
	// InvalidControlFlow means a called function has no blocks, or a
	// block ran out of instructions without reaching a terminator.
	InvalidControlFlow
)

func (k TrapKind) String() string {
	switch k {
	case ValueError:
		return "value error"
	case UnknownFunction:
		return "unknown function"
	case ArityMismatch:
		return "arity mismatch"
	case TraceError:
		return "trace error"
	case Unimplemented:
		return "unimplemented"
	case InvalidControlFlow:
		return "invalid control flow"
	default:
		return "trap"
	}
}

// Trap is the error type every interpreter, reconstructor and native
// runner operation returns on failure. It always carries a stack trace
// captured at the point it was first raised (github.com/pkg/errors),
// mirroring this codebase's existing emphasis on preserving actionable
// context across an interpreter boundary.
type Trap struct {
	Kind    TrapKind
	Message string
	cause   error
}

func (t *Trap) Error() string {
	if t.Message != "" {
		return fmt.Sprintf("%s: %s", t.Kind, t.Message)
	}
	return t.Kind.String()
}

func (t *Trap) Unwrap() error { return t.cause }

func newTrap(kind TrapKind, cause error, format string, args ...interface{}) error {
	return errors.WithStack(&Trap{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		cause:   cause,
	})
}

// ErrLiveInsUnsupported is the TraceError cause returned when a
// trace_start instruction carries a non-empty live-in argument list;
// see SPEC_FULL's resolution of the "reconstructed live-ins" open
// question.
var ErrLiveInsUnsupported = errors.New("trace_start live-in arguments are not supported")

// ErrGuardUnsupported is the Unimplemented cause returned when the
// reconstructor encounters a Guard trace item.
var ErrGuardUnsupported = errors.New("guard reconstruction is not supported")
