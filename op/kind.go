package op

import (
	"fmt"
	"reflect"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/opcore/fastcall"
)

// Kind is the marshaling directive for one op parameter or result.
type Kind uint8

const (
	KindVoid Kind = iota
	KindBool
	KindI8
	KindU8
	KindI16
	KindU16
	KindI32
	KindU32
	KindI64
	KindU64
	KindF32
	KindF64
	KindString   // text, copied out of the guest
	KindBuffer   // binary buffer, copied out of the guest
	KindOptional // nullable numeric; Param.Elem holds the numeric kind
	KindResource // resource handle
	KindSerde    // serialized value
)

var kindNames = [...]string{
	KindVoid: "void", KindBool: "bool",
	KindI8: "i8", KindU8: "u8", KindI16: "i16", KindU16: "u16",
	KindI32: "i32", KindU32: "u32", KindI64: "i64", KindU64: "u64",
	KindF32: "f32", KindF64: "f64",
	KindString: "string", KindBuffer: "buffer", KindOptional: "optional",
	KindResource: "resource", KindSerde: "serde",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// IsNumeric reports whether k is an integer or float width.
func (k Kind) IsNumeric() bool { return k >= KindI8 && k <= KindF64 }

// FastType maps a numeric kind to its fast-call type.
func (k Kind) FastType() (fastcall.Type, bool) {
	switch k {
	case KindVoid:
		return fastcall.Void, true
	case KindI8:
		return fastcall.I8, true
	case KindU8:
		return fastcall.U8, true
	case KindI16:
		return fastcall.I16, true
	case KindU16:
		return fastcall.U16, true
	case KindI32:
		return fastcall.I32, true
	case KindU32:
		return fastcall.U32, true
	case KindI64:
		return fastcall.I64, true
	case KindU64:
		return fastcall.U64, true
	case KindF32:
		return fastcall.F32, true
	case KindF64:
		return fastcall.F64, true
	}
	return fastcall.Void, false
}

// Param describes one parameter or the result of an op.
type Param struct {
	Type reflect.Type
	Kind Kind
	Elem Kind
}

// WIT returns the interface-type descriptor of p, or nil for void.
func (p Param) WIT() wit.Type {
	switch p.Kind {
	case KindBool:
		return wit.Bool{}
	case KindI8:
		return wit.S8{}
	case KindU8:
		return wit.U8{}
	case KindI16:
		return wit.S16{}
	case KindU16:
		return wit.U16{}
	case KindI32:
		return wit.S32{}
	case KindU32, KindResource:
		return wit.U32{}
	case KindI64:
		return wit.S64{}
	case KindU64:
		return wit.U64{}
	case KindF32:
		return wit.F32{}
	case KindF64:
		return wit.F64{}
	case KindString:
		return wit.String{}
	case KindBuffer, KindSerde:
		return &wit.TypeDef{Kind: &wit.List{Type: wit.U8{}}}
	case KindOptional:
		return &wit.TypeDef{Kind: &wit.Option{Type: Param{Kind: p.Elem}.WIT()}}
	}
	return nil
}

// TypeString renders a WIT type descriptor.
func TypeString(t wit.Type) string {
	switch v := t.(type) {
	case nil:
		return "_"
	case wit.Bool:
		return "bool"
	case wit.U8:
		return "u8"
	case wit.S8:
		return "s8"
	case wit.U16:
		return "u16"
	case wit.S16:
		return "s16"
	case wit.U32:
		return "u32"
	case wit.S32:
		return "s32"
	case wit.U64:
		return "u64"
	case wit.S64:
		return "s64"
	case wit.F32:
		return "f32"
	case wit.F64:
		return "f64"
	case wit.String:
		return "string"
	case *wit.TypeDef:
		switch k := v.Kind.(type) {
		case *wit.List:
			return "list<" + TypeString(k.Type) + ">"
		case *wit.Option:
			return "option<" + TypeString(k.Type) + ">"
		}
		if v.Name != nil {
			return *v.Name
		}
		return "typedef"
	default:
		return fmt.Sprintf("%T", t)
	}
}

// Signature renders d as a WIT-style function type.
func (d *Decl) Signature() string {
	var b strings.Builder
	if d.Async {
		b.WriteString("async ")
	}
	b.WriteString("func(")
	for i, p := range d.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "arg%d: %s", i, TypeString(p.WIT()))
	}
	b.WriteByte(')')
	if t := d.Result.WIT(); t != nil {
		b.WriteString(" -> ")
		b.WriteString(TypeString(t))
	}
	return b.String()
}
