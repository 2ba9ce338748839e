package op

import (
	"bytes"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/wippyai/opcore/errors"
	"github.com/wippyai/opcore/resource"
)

func argPath(op string, i int) []string {
	return []string{op, "arg" + strconv.Itoa(i)}
}

// fromValue converts a guest value into the Go type of p.
func fromValue(p Param, v Value, path []string) (reflect.Value, error) {
	out := reflect.New(p.Type).Elem()

	switch p.Kind {
	case KindBool:
		out.SetBool(v.Truthy())

	case KindI8, KindI16, KindI32, KindI64,
		KindU8, KindU16, KindU32, KindU64,
		KindF32, KindF64:
		if err := setNumeric(out, p.Kind, v, path); err != nil {
			return reflect.Value{}, err
		}

	case KindString:
		if v.Kind() != ValueString {
			return reflect.Value{}, errors.TypeMismatch(errors.PhaseMarshal, path, p.Type.String(), v.Kind().String())
		}
		if !utf8.ValidString(v.Str()) {
			return reflect.Value{}, errors.InvalidUTF8(errors.PhaseMarshal, path, []byte(v.Str()))
		}
		out.SetString(strings.Clone(v.Str()))

	case KindBuffer:
		if v.Kind() != ValueBytes {
			return reflect.Value{}, errors.TypeMismatch(errors.PhaseMarshal, path, p.Type.String(), v.Kind().String())
		}
		out.SetBytes(bytes.Clone(v.Buf()))

	case KindOptional:
		if v.IsNullish() {
			return out, nil
		}
		elem := reflect.New(p.Type.Elem())
		if err := setNumeric(elem.Elem(), p.Elem, v, path); err != nil {
			return reflect.Value{}, err
		}
		out.Set(elem)

	case KindResource:
		if v.Kind() != ValueNumber {
			return reflect.Value{}, errors.TypeMismatch(errors.PhaseMarshal, path, "resource.ID", v.Kind().String())
		}
		out.SetUint(uint64(v.ToUint32()))

	case KindSerde:
		if err := decodeInto(v, out.Addr().Interface()); err != nil {
			return reflect.Value{}, errors.New(errors.PhaseMarshal, errors.KindInvalidData).
				Path(path...).
				GoType(p.Type.String()).
				GuestType(v.Kind().String()).
				Cause(err).
				Build()
		}

	default:
		return reflect.Value{}, errors.Unsupported(errors.PhaseMarshal, "parameter kind "+p.Kind.String())
	}
	return out, nil
}

func setNumeric(out reflect.Value, k Kind, v Value, path []string) error {
	switch v.Kind() {
	case ValueObject, ValueBytes:
		return errors.TypeMismatch(errors.PhaseMarshal, path, out.Type().String(), v.Kind().String())
	}

	switch k {
	case KindI8:
		out.SetInt(int64(int8(v.ToInt32())))
	case KindI16:
		out.SetInt(int64(int16(v.ToInt32())))
	case KindI32:
		out.SetInt(int64(v.ToInt32()))
	case KindI64:
		out.SetInt(v.ToInt64())
	case KindU8:
		out.SetUint(uint64(uint8(v.ToUint32())))
	case KindU16:
		out.SetUint(uint64(uint16(v.ToUint32())))
	case KindU32:
		out.SetUint(uint64(v.ToUint32()))
	case KindU64:
		out.SetUint(v.ToUint64())
	case KindF32, KindF64:
		out.SetFloat(v.ToNumber())
	}
	return nil
}

// wordDecoder converts a raw fast-call word into the Go type of p.
// Integers narrower than 64 bits are truncated and sign- or zero-extended.
func wordDecoder(p Param) func(uint64) reflect.Value {
	t := p.Type
	signed := func(bits uint) func(uint64) reflect.Value {
		shift := 64 - bits
		return func(w uint64) reflect.Value {
			v := reflect.New(t).Elem()
			v.SetInt(int64(w<<shift) >> shift)
			return v
		}
	}
	unsigned := func(bits uint) func(uint64) reflect.Value {
		mask := uint64(math.MaxUint64) >> (64 - bits)
		return func(w uint64) reflect.Value {
			v := reflect.New(t).Elem()
			v.SetUint(w & mask)
			return v
		}
	}

	switch p.Kind {
	case KindI8:
		return signed(8)
	case KindI16:
		return signed(16)
	case KindI32:
		return signed(32)
	case KindI64:
		return signed(64)
	case KindU8:
		return unsigned(8)
	case KindU16:
		return unsigned(16)
	case KindU32:
		return unsigned(32)
	case KindU64:
		return unsigned(64)
	case KindF32:
		return func(w uint64) reflect.Value {
			v := reflect.New(t).Elem()
			v.SetFloat(float64(math.Float32frombits(uint32(w))))
			return v
		}
	default:
		return func(w uint64) reflect.Value {
			v := reflect.New(t).Elem()
			v.SetFloat(math.Float64frombits(w))
			return v
		}
	}
}

// wordEncoder converts a fast-call result into a raw word. 32-bit and
// narrower integers occupy the low 32 bits.
func wordEncoder(p Param) func(reflect.Value) uint64 {
	switch p.Kind {
	case KindI8, KindI16, KindI32:
		return func(v reflect.Value) uint64 { return uint64(uint32(int32(v.Int()))) }
	case KindU8, KindU16, KindU32:
		return func(v reflect.Value) uint64 { return uint64(uint32(v.Uint())) }
	case KindF32:
		return func(v reflect.Value) uint64 { return uint64(math.Float32bits(float32(v.Float()))) }
	default:
		return func(v reflect.Value) uint64 { return math.Float64bits(v.Float()) }
	}
}

// ToValue converts an op result into a guest value. 64-bit integers
// become bigints; narrower numerics, int and uint become numbers; other
// composite values pass through as objects.
func ToValue(v any) Value {
	switch x := v.(type) {
	case nil:
		return Undefined()
	case Value:
		return x
	case bool:
		return Bool(x)
	case string:
		return String(x)
	case []byte:
		return Bytes(x)
	case resource.ID:
		return Number(float64(x))
	case *big.Int:
		if x == nil {
			return Null()
		}
		return BigInt(x)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return Bool(rv.Bool())
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int:
		return Number(float64(rv.Int()))
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint, reflect.Uintptr:
		return Number(float64(rv.Uint()))
	case reflect.Int64:
		return BigInt64(rv.Int())
	case reflect.Uint64:
		return BigUint64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return Number(rv.Float())
	case reflect.String:
		return String(rv.String())
	case reflect.Pointer:
		if rv.IsNil() {
			return Null()
		}
		if _, ok := numericKind(rv.Elem().Type()); ok {
			return ToValue(rv.Elem().Interface())
		}
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return Bytes(rv.Bytes())
		}
	}
	return Object(v)
}
