package op

import (
	"math"
	"math/big"
	"strconv"
	"strings"
)

// ValueKind is the guest-side type of a Value.
type ValueKind uint8

const (
	ValueUndefined ValueKind = iota
	ValueNull
	ValueBool
	ValueNumber
	ValueBigInt
	ValueString
	ValueBytes
	ValueObject
)

var valueKindNames = [...]string{
	ValueUndefined: "undefined",
	ValueNull:      "null",
	ValueBool:      "boolean",
	ValueNumber:    "number",
	ValueBigInt:    "bigint",
	ValueString:    "string",
	ValueBytes:     "Uint8Array",
	ValueObject:    "object",
}

func (k ValueKind) String() string {
	if int(k) < len(valueKindNames) {
		return valueKindNames[k]
	}
	return "unknown"
}

// Value is a guest value crossing the slow-path boundary. The zero Value
// is undefined.
type Value struct {
	obj  any
	big  *big.Int
	str  string
	buf  []byte
	num  float64
	kind ValueKind
	b    bool
}

// Undefined returns the undefined value.
func Undefined() Value { return Value{} }

// Null returns the null value.
func Null() Value { return Value{kind: ValueNull} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: ValueBool, b: b} }

// Number wraps a float64 number.
func Number(f float64) Value { return Value{kind: ValueNumber, num: f} }

// String wraps a string.
func String(s string) Value { return Value{kind: ValueString, str: s} }

// Bytes wraps a byte buffer without copying it.
func Bytes(b []byte) Value { return Value{kind: ValueBytes, buf: b} }

// Object wraps an arbitrary Go value serialized with CBOR on return.
func Object(v any) Value { return Value{kind: ValueObject, obj: v} }

// BigInt wraps an arbitrary-precision integer.
func BigInt(i *big.Int) Value { return Value{kind: ValueBigInt, big: i} }

// BigInt64 returns a bigint holding i.
func BigInt64(i int64) Value { return BigInt(big.NewInt(i)) }

// BigUint64 returns a bigint holding u.
func BigUint64(u uint64) Value { return BigInt(new(big.Int).SetUint64(u)) }

// Kind returns the guest type of v.
func (v Value) Kind() ValueKind { return v.kind }

// IsNullish reports whether v is null or undefined.
func (v Value) IsNullish() bool { return v.kind == ValueUndefined || v.kind == ValueNull }

// Bool returns the boolean payload; use Truthy for coercion.
func (v Value) Bool() bool { return v.b }

// Num returns the number payload.
func (v Value) Num() float64 { return v.num }

// Str returns the string payload.
func (v Value) Str() string { return v.str }

// Buf returns the bytes payload. The slice aliases guest memory.
func (v Value) Buf() []byte { return v.buf }

// Obj returns the object payload.
func (v Value) Obj() any { return v.obj }

// Big returns the bigint payload.
func (v Value) Big() *big.Int { return v.big }

// Truthy applies guest truthiness rules.
func (v Value) Truthy() bool {
	switch v.kind {
	case ValueBool:
		return v.b
	case ValueNumber:
		return v.num != 0 && !math.IsNaN(v.num)
	case ValueBigInt:
		return v.big != nil && v.big.Sign() != 0
	case ValueString:
		return v.str != ""
	case ValueBytes, ValueObject:
		return true
	default:
		return false
	}
}

// ToNumber applies guest numeric coercion.
func (v Value) ToNumber() float64 {
	switch v.kind {
	case ValueNull:
		return 0
	case ValueBool:
		if v.b {
			return 1
		}
		return 0
	case ValueNumber:
		return v.num
	case ValueBigInt:
		if v.big == nil {
			return 0
		}
		f, _ := new(big.Float).SetInt(v.big).Float64()
		return f
	case ValueString:
		s := strings.TrimSpace(v.str)
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

const (
	two63 = 9223372036854775808.0
	two64 = 18446744073709551616.0
)

// wrap64 truncates f toward zero and reduces it modulo 2^64.
func wrap64(f float64) uint64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	f = math.Trunc(f)
	if f >= -two63 && f < two63 {
		return uint64(int64(f))
	}
	m := math.Mod(f, two64)
	if m < 0 {
		m += two64
	}
	if m >= two63 {
		return uint64(m-two63) | 1<<63
	}
	return uint64(m)
}

var mask64 = new(big.Int).SetUint64(math.MaxUint64)

func (v Value) bits64() uint64 {
	if v.kind == ValueBigInt && v.big != nil {
		return new(big.Int).And(v.big, mask64).Uint64()
	}
	return wrap64(v.ToNumber())
}

// ToInt32 coerces v to a signed 32-bit integer with wraparound.
func (v Value) ToInt32() int32 { return int32(uint32(v.bits64())) }

// ToUint32 coerces v to an unsigned 32-bit integer with wraparound.
func (v Value) ToUint32() uint32 { return uint32(v.bits64()) }

// ToInt64 coerces v to a signed 64-bit integer with wraparound.
func (v Value) ToInt64() int64 { return int64(v.bits64()) }

// ToUint64 coerces v to an unsigned 64-bit integer with wraparound.
func (v Value) ToUint64() uint64 { return v.bits64() }

// CallInfo gives the slow path access to the guest's call arguments.
type CallInfo interface {
	Len() int
	Arg(i int) Value
}

// Args is a CallInfo over a slice.
type Args []Value

func (a Args) Len() int { return len(a) }

// Arg returns undefined past the end, matching a guest call with fewer
// arguments than declared.
func (a Args) Arg(i int) Value {
	if i < 0 || i >= len(a) {
		return Undefined()
	}
	return a[i]
}
