package op

import (
	"fmt"
	"math"
	"math/big"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var (
	serdeEnc cbor.EncMode
	serdeDec cbor.DecMode
)

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("op: failed to create CBOR enc mode: %v", err))
	}
	serdeEnc = em

	dm, err := cbor.DecOptions{DefaultMapType: reflect.TypeOf(map[string]any(nil))}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("op: failed to create CBOR dec mode: %v", err))
	}
	serdeDec = dm
}

// plain returns the Go value carried by v. Integral numbers become int64
// so they decode into integer fields.
func plain(v Value) any {
	switch v.Kind() {
	case ValueBool:
		return v.Bool()
	case ValueNumber:
		f := v.Num()
		if f == math.Trunc(f) && math.Abs(f) < 1<<63 {
			return int64(f)
		}
		return f
	case ValueBigInt:
		return v.Big()
	case ValueString:
		return v.Str()
	case ValueBytes:
		return v.Buf()
	case ValueObject:
		return v.Obj()
	default:
		return nil
	}
}

// MarshalValue encodes v as canonical CBOR.
func MarshalValue(v Value) ([]byte, error) {
	return serdeEnc.Marshal(plain(v))
}

// UnmarshalValue decodes CBOR into a guest value. Maps and arrays become
// objects.
func UnmarshalValue(data []byte) (Value, error) {
	var x any
	if err := serdeDec.Unmarshal(data, &x); err != nil {
		return Value{}, err
	}
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case int64:
		return Number(float64(t)), nil
	case uint64:
		return Number(float64(t)), nil
	case big.Int:
		return BigInt(&t), nil
	}
	return ToValue(x), nil
}

func decodeInto(v Value, dst any) error {
	data, err := MarshalValue(v)
	if err != nil {
		return err
	}
	return serdeDec.Unmarshal(data, dst)
}
