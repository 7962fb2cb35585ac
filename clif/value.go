package clif

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// ValueError is the typed failure result of a DataValue operation.
//
// Grounded on cranelift_interpreter's value::ValueError, carried through
// the interpreter (as a Trap) and swallowed by the folder (which treats
// a failing symbolic step as "no new information").
type ValueError struct {
	Kind  ValueErrorKind
	Type  Type
	Extra string
}

// ValueErrorKind enumerates the ways a DataValue operation can fail.
type ValueErrorKind uint8

const (
	InvalidValue ValueErrorKind = iota
	TypeMismatch
	DivisionByZero
)

func (e *ValueError) Error() string {
	switch e.Kind {
	case InvalidValue:
		return fmt.Sprintf("invalid value for type %s%s", e.Type, e.Extra)
	case TypeMismatch:
		return fmt.Sprintf("type mismatch%s", e.Extra)
	case DivisionByZero:
		return "division by zero"
	default:
		return "value error"
	}
}

func newValueError(kind ValueErrorKind, t Type, extra string) error {
	if extra != "" {
		extra = ": " + extra
	}
	return errors.WithStack(&ValueError{Kind: kind, Type: t, Extra: extra})
}

// DataValue is a tagged variant over the scalar values CLIF instructions
// operate on: a boolean, a signed integer of width 8/16/32/64, a float of
// width 32/64, or a 128-bit vector of 16 raw bytes.
//
// Grounded on cranelift/reader/src/run_command.rs's DataValue enum.
type DataValue struct {
	typ Type
	b   bool
	i   int64 // sign-extended to i64 regardless of stored width
	f64 float64
	f32 float32
	vec [16]byte
}

// Type returns the DataValue's CLIF type.
func (v DataValue) Type() Type { return v.typ }

// NewBool constructs a boolean DataValue.
func NewBool(b bool) DataValue { return DataValue{typ: Bool, b: b} }

// NewInt constructs a signed-integer DataValue of the given width,
// truncating n to fit. Fails if t is not an integer type.
func NewInt(n int64, t Type) (DataValue, error) {
	if !t.IsInt() {
		return DataValue{}, newValueError(InvalidValue, t, "not an integer type")
	}
	return DataValue{typ: t, i: truncateSigned(n, t)}, nil
}

// NewFloat32 constructs an f32 DataValue.
func NewFloat32(f float32) DataValue { return DataValue{typ: F32, f32: f} }

// NewFloat64 constructs an f64 DataValue.
func NewFloat64(f float64) DataValue { return DataValue{typ: F64, f64: f} }

// NewVector constructs a 128-bit vector DataValue from 16 raw bytes.
func NewVector(b [16]byte) DataValue { return DataValue{typ: I8X16, vec: b} }

// Bool returns the boolean payload; only valid when Type() == Bool.
func (v DataValue) Bool() bool { return v.b }

// Int returns the integer payload sign-extended to int64; only valid
// when Type().IsInt().
func (v DataValue) Int() int64 { return v.i }

// Float32 returns the f32 payload; only valid when Type() == F32.
func (v DataValue) Float32() float32 { return v.f32 }

// Float64 returns the f64 payload; only valid when Type() == F64.
func (v DataValue) Float64() float64 { return v.f64 }

// Vector returns the 16-byte payload; only valid when Type() == I8X16.
func (v DataValue) Vector() [16]byte { return v.vec }

// IsZero reports whether an integer or boolean value is the zero value
// of its width; used by brnz-family branch conditions.
func (v DataValue) IsZero() bool {
	switch {
	case v.typ == Bool:
		return !v.b
	case v.typ.IsInt():
		return v.i == 0
	default:
		return false
	}
}

func truncateSigned(n int64, t Type) int64 {
	switch t {
	case I8:
		return int64(int8(n))
	case I16:
		return int64(int16(n))
	case I32:
		return int64(int32(n))
	default:
		return n
	}
}

// ConversionKind selects the semantics of Convert.
type ConversionKind uint8

const (
	// Exact reinterprets the immediate as the exact target type without
	// changing its bit pattern's numeric meaning (used for const
	// materialization of iconst/bconst immediates).
	Exact ConversionKind = iota
	// Truncate drops high bits to fit a narrower integer type.
	Truncate
	// ZeroExtend zero-extends a narrower unsigned value.
	ZeroExtend
	// SignExtend sign-extends a narrower signed value.
	SignExtend
)

// Convert reinterprets or resizes v into the target type t according to
// kind. Fails loudly (TypeMismatch) on a representation mismatch, e.g.
// converting a float to an integer type.
func (v DataValue) Convert(kind ConversionKind, t Type) (DataValue, error) {
	switch kind {
	case Exact:
		switch {
		case t == Bool:
			if v.typ != Bool {
				return DataValue{}, newValueError(TypeMismatch, t, "exact conversion requires a bool source")
			}
			return v, nil
		case t.IsInt():
			if !v.typ.IsInt() && v.typ != Bool {
				return DataValue{}, newValueError(TypeMismatch, t, "exact conversion requires an integer or bool source")
			}
			src := v.i
			if v.typ == Bool {
				src = boolToInt(v.b)
			}
			return NewInt(src, t)
		case t == F32:
			if v.typ != F32 {
				return DataValue{}, newValueError(TypeMismatch, t, "exact conversion requires an f32 source")
			}
			return v, nil
		case t == F64:
			if v.typ != F64 {
				return DataValue{}, newValueError(TypeMismatch, t, "exact conversion requires an f64 source")
			}
			return v, nil
		default:
			return DataValue{}, newValueError(InvalidValue, t, "unsupported exact conversion target")
		}
	case Truncate, ZeroExtend, SignExtend:
		if !v.typ.IsInt() || !t.IsInt() {
			return DataValue{}, newValueError(TypeMismatch, t, "width conversion requires integer types")
		}
		n := v.i
		switch kind {
		case ZeroExtend:
			n = int64(uint64(v.i) & widthMask(v.typ))
		case Truncate:
			n &= widthMask(t)
		}
		return NewInt(n, t)
	default:
		return DataValue{}, newValueError(InvalidValue, t, "unknown conversion kind")
	}
}

func widthMask(t Type) uint64 {
	switch t {
	case I8:
		return 0xFF
	case I16:
		return 0xFFFF
	case I32:
		return 0xFFFFFFFF
	default:
		return ^uint64(0)
	}
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// CastImmediate casts an immediate integer of unspecified width into a
// typed DataValue. Fails if target is not an integer type.
func CastImmediate(n int64, target Type) (DataValue, error) {
	if !target.IsInt() {
		return DataValue{}, newValueError(InvalidValue, target, "immediate cast target must be an integer type")
	}
	return NewInt(n, target)
}

func sameIntType(a, b DataValue) (Type, error) {
	if !a.typ.IsInt() || !b.typ.IsInt() {
		return 0, newValueError(TypeMismatch, a.typ, "expected integer operands")
	}
	if a.typ != b.typ {
		return 0, newValueError(TypeMismatch, a.typ, fmt.Sprintf("operand types differ: %s vs %s", a.typ, b.typ))
	}
	return a.typ, nil
}

// Add implements iadd-family arithmetic.
func (v DataValue) Add(o DataValue) (DataValue, error) {
	if v.typ.IsFloat() {
		return floatBinary(v, o, func(a, b float64) float64 { return a + b }, func(a, b float32) float32 { return a + b })
	}
	t, err := sameIntType(v, o)
	if err != nil {
		return DataValue{}, err
	}
	return NewInt(v.i+o.i, t)
}

// Sub implements isub-family arithmetic.
func (v DataValue) Sub(o DataValue) (DataValue, error) {
	if v.typ.IsFloat() {
		return floatBinary(v, o, func(a, b float64) float64 { return a - b }, func(a, b float32) float32 { return a - b })
	}
	t, err := sameIntType(v, o)
	if err != nil {
		return DataValue{}, err
	}
	return NewInt(v.i-o.i, t)
}

// Mul implements imul-family arithmetic.
func (v DataValue) Mul(o DataValue) (DataValue, error) {
	if v.typ.IsFloat() {
		return floatBinary(v, o, func(a, b float64) float64 { return a * b }, func(a, b float32) float32 { return a * b })
	}
	t, err := sameIntType(v, o)
	if err != nil {
		return DataValue{}, err
	}
	return NewInt(v.i*o.i, t)
}

// Div implements sdiv-family arithmetic; traps on division by zero.
func (v DataValue) Div(o DataValue) (DataValue, error) {
	if v.typ.IsFloat() {
		return floatBinary(v, o, func(a, b float64) float64 { return a / b }, func(a, b float32) float32 { return a / b })
	}
	t, err := sameIntType(v, o)
	if err != nil {
		return DataValue{}, err
	}
	if o.i == 0 {
		return DataValue{}, errors.WithStack(&ValueError{Kind: DivisionByZero, Type: t})
	}
	return NewInt(v.i/o.i, t)
}

// Rem implements srem-family arithmetic; traps on division by zero.
func (v DataValue) Rem(o DataValue) (DataValue, error) {
	t, err := sameIntType(v, o)
	if err != nil {
		return DataValue{}, err
	}
	if o.i == 0 {
		return DataValue{}, errors.WithStack(&ValueError{Kind: DivisionByZero, Type: t})
	}
	return NewInt(v.i%o.i, t)
}

// Shl implements ishl.
func (v DataValue) Shl(o DataValue) (DataValue, error) {
	t, err := sameIntType(v, o)
	if err != nil {
		return DataValue{}, err
	}
	return NewInt(v.i<<uint64(o.i%int64(t.Bits())), t)
}

// Ushr implements ushr (logical right shift).
func (v DataValue) Ushr(o DataValue) (DataValue, error) {
	t, err := sameIntType(v, o)
	if err != nil {
		return DataValue{}, err
	}
	shift := uint64(o.i) % uint64(t.Bits())
	return NewInt(int64((uint64(v.i)&widthMask(t))>>shift), t)
}

// Ishr implements ishr (arithmetic right shift).
func (v DataValue) Ishr(o DataValue) (DataValue, error) {
	t, err := sameIntType(v, o)
	if err != nil {
		return DataValue{}, err
	}
	shift := uint64(o.i) % uint64(t.Bits())
	return NewInt(v.i>>shift, t)
}

// Rotl implements rotl.
func (v DataValue) Rotl(o DataValue) (DataValue, error) {
	t, err := sameIntType(v, o)
	if err != nil {
		return DataValue{}, err
	}
	bits := uint64(t.Bits())
	shift := uint64(o.i) % bits
	u := uint64(v.i) & widthMask(t)
	rotated := ((u << shift) | (u >> (bits - shift))) & widthMask(t)
	return NewInt(int64(rotated), t)
}

// Rotr implements rotr.
func (v DataValue) Rotr(o DataValue) (DataValue, error) {
	t, err := sameIntType(v, o)
	if err != nil {
		return DataValue{}, err
	}
	bits := uint64(t.Bits())
	shift := uint64(o.i) % bits
	u := uint64(v.i) & widthMask(t)
	rotated := ((u >> shift) | (u << (bits - shift))) & widthMask(t)
	return NewInt(int64(rotated), t)
}

// And implements band.
func (v DataValue) And(o DataValue) (DataValue, error) {
	t, err := sameIntType(v, o)
	if err != nil {
		return DataValue{}, err
	}
	return NewInt(v.i&o.i, t)
}

// Or implements bor.
func (v DataValue) Or(o DataValue) (DataValue, error) {
	t, err := sameIntType(v, o)
	if err != nil {
		return DataValue{}, err
	}
	return NewInt(v.i|o.i, t)
}

// Xor implements bxor.
func (v DataValue) Xor(o DataValue) (DataValue, error) {
	t, err := sameIntType(v, o)
	if err != nil {
		return DataValue{}, err
	}
	return NewInt(v.i^o.i, t)
}

// Not implements bnot.
func (v DataValue) Not() (DataValue, error) {
	if v.typ == Bool {
		return NewBool(!v.b), nil
	}
	if !v.typ.IsInt() {
		return DataValue{}, newValueError(TypeMismatch, v.typ, "expected integer or bool operand")
	}
	return NewInt(^v.i, v.typ)
}

func floatBinary(a, b DataValue, f64 func(a, b float64) float64, f32 func(a, b float32) float32) (DataValue, error) {
	if a.typ != b.typ || !a.typ.IsFloat() {
		return DataValue{}, newValueError(TypeMismatch, a.typ, "expected matching float operands")
	}
	if a.typ == F32 {
		return NewFloat32(f32(a.f32, b.f32)), nil
	}
	return NewFloat64(f64(a.f64, b.f64)), nil
}

// Eq implements the eq comparison, returning a boolean DataValue.
func (v DataValue) Eq(o DataValue) (DataValue, error) {
	if v.typ != o.typ {
		return DataValue{}, newValueError(TypeMismatch, v.typ, "expected matching operand types")
	}
	switch {
	case v.typ == Bool:
		return NewBool(v.b == o.b), nil
	case v.typ.IsInt():
		return NewBool(v.i == o.i), nil
	case v.typ == F32:
		return NewBool(v.f32 == o.f32), nil
	case v.typ == F64:
		return NewBool(v.f64 == o.f64), nil
	default:
		return DataValue{}, newValueError(InvalidValue, v.typ, "eq unsupported for type")
	}
}

// Gt implements the gt comparison, returning a boolean DataValue.
func (v DataValue) Gt(o DataValue) (DataValue, error) {
	if v.typ != o.typ {
		return DataValue{}, newValueError(TypeMismatch, v.typ, "expected matching operand types")
	}
	switch {
	case v.typ.IsInt():
		return NewBool(v.i > o.i), nil
	case v.typ == F32:
		return NewBool(v.f32 > o.f32), nil
	case v.typ == F64:
		return NewBool(v.f64 > o.f64), nil
	default:
		return DataValue{}, newValueError(InvalidValue, v.typ, "gt unsupported for type")
	}
}

// EvalIntCompare evaluates an icmp instruction's condition code against
// two integer operands, shared by the interpreter and the constant
// folder so both fold the same seven comparison kinds identically.
func EvalIntCompare(cond IntCC, a, b DataValue) (DataValue, error) {
	switch cond {
	case CondEqual:
		return a.Eq(b)
	case CondNotEqual:
		eq, err := a.Eq(b)
		if err != nil {
			return DataValue{}, err
		}
		return eq.Not()
	case CondSignedGreaterThan:
		return a.Gt(b)
	case CondSignedGreaterThanOrEqual:
		gt, err := a.Gt(b)
		if err != nil {
			return DataValue{}, err
		}
		if gt.Bool() {
			return gt, nil
		}
		return a.Eq(b)
	case CondSignedLessThan:
		return b.Gt(a)
	case CondSignedLessThanOrEqual:
		gt, err := b.Gt(a)
		if err != nil {
			return DataValue{}, err
		}
		if gt.Bool() {
			return gt, nil
		}
		return a.Eq(b)
	case CondUnsignedLessThanOrEqual:
		t, err := sameIntType(a, b)
		if err != nil {
			return DataValue{}, err
		}
		ua := uint64(a.i) & widthMask(t)
		ub := uint64(b.i) & widthMask(t)
		return NewBool(ua <= ub), nil
	default:
		return DataValue{}, newValueError(InvalidValue, a.typ, "unknown int comparison kind")
	}
}

// EvalIrsubImm implements irsub_imm: the immediate, cast to v's
// controlling type, minus v. Shared by the interpreter and the folder
// for the same reason EvalIntCompare is.
func EvalIrsubImm(v DataValue, imm int64) (DataValue, error) {
	if !v.typ.IsInt() {
		return DataValue{}, newValueError(TypeMismatch, v.typ, "irsub_imm requires an integer operand")
	}
	casted, err := CastImmediate(imm, v.typ)
	if err != nil {
		return DataValue{}, err
	}
	return casted.Sub(v)
}

// EvalIntCompareImm evaluates an icmp_imm instruction: v compared
// against imm, cast to v's controlling type, using cond. Shared by the
// interpreter and the folder, same as EvalIntCompare.
func EvalIntCompareImm(cond IntCC, v DataValue, imm int64) (DataValue, error) {
	casted, err := CastImmediate(imm, v.typ)
	if err != nil {
		return DataValue{}, err
	}
	return EvalIntCompare(cond, v, casted)
}

// Uno implements the "unordered" comparison (true if either operand is NaN).
func (v DataValue) Uno(o DataValue) (DataValue, error) {
	if v.typ != o.typ || !v.typ.IsFloat() {
		return DataValue{}, newValueError(TypeMismatch, v.typ, "uno requires matching float operands")
	}
	a, _ := v.IsNaN()
	b, _ := o.IsNaN()
	return NewBool(a || b), nil
}

// IsNaN reports whether a float DataValue holds NaN.
func (v DataValue) IsNaN() (bool, error) {
	switch v.typ {
	case F32:
		return math.IsNaN(float64(v.f32)), nil
	case F64:
		return math.IsNaN(v.f64), nil
	default:
		return false, newValueError(TypeMismatch, v.typ, "is_nan requires a float operand")
	}
}

func (v DataValue) String() string {
	switch v.typ {
	case Bool:
		return fmt.Sprintf("%t", v.b)
	case I8, I16, I32, I64:
		return fmt.Sprintf("%d", v.i)
	case F32:
		return fmt.Sprintf("%v", v.f32)
	case F64:
		return fmt.Sprintf("%v", v.f64)
	case I8X16:
		return fmt.Sprintf("%x", v.vec)
	default:
		return "<invalid>"
	}
}
