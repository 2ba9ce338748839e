package fastcall

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/wippyai/opcore/errors"
)

// Type is a fast-call argument or return type.
type Type uint8

const (
	Void Type = iota
	I8
	U8
	I16
	U16
	I32
	U32
	I64
	U64
	F32
	F64
	Pointer
)

var typeNames = [...]string{
	Void: "void", I8: "i8", U8: "u8", I16: "i16", U16: "u16",
	I32: "i32", U32: "u32", I64: "i64", U64: "u64",
	F32: "f32", F64: "f64", Pointer: "ptr",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "invalid"
}

// IsFloat reports whether t is passed in an XMM register.
func (t Type) IsFloat() bool { return t == F32 || t == F64 }

// Returnable reports whether t may be a fast-call result. 64-bit integers
// and pointers are excluded because engines box them on return.
func (t Type) Returnable() bool {
	switch t {
	case Void, I8, U8, I16, U16, I32, U32, F32, F64:
		return true
	}
	return false
}

// TypeOf maps a Go type to its fast-call type. int, uint and uintptr map
// to 64-bit integers.
func TypeOf(rt reflect.Type) (Type, bool) {
	switch rt.Kind() {
	case reflect.Int8:
		return I8, true
	case reflect.Uint8:
		return U8, true
	case reflect.Int16:
		return I16, true
	case reflect.Uint16:
		return U16, true
	case reflect.Int32:
		return I32, true
	case reflect.Uint32:
		return U32, true
	case reflect.Int64, reflect.Int:
		return I64, true
	case reflect.Uint64, reflect.Uint, reflect.Uintptr:
		return U64, true
	case reflect.Float32:
		return F32, true
	case reflect.Float64:
		return F64, true
	}
	return Void, false
}

// Signature is the ordered argument types and return type of a fast op,
// not counting the engine receiver.
type Signature struct {
	Args []Type
	Ret  Type
}

// Validate checks that sig can be expressed as a fast call.
func (s Signature) Validate() error {
	for i, a := range s.Args {
		if a == Void || a > Pointer {
			return errors.New(errors.PhaseFastCall, errors.KindUnsupported).
				Path("arg" + strconv.Itoa(i)).
				Detail("argument type %s", a).
				Build()
		}
	}
	if !s.Ret.Returnable() {
		return errors.New(errors.PhaseFastCall, errors.KindUnsupported).
			Path("return").
			Detail("return type %s", s.Ret).
			Build()
	}
	return nil
}

func (s Signature) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, a := range s.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a.String())
	}
	b.WriteString(") -> ")
	b.WriteString(s.Ret.String())
	return b.String()
}
