package op

import (
	"math"
	"math/big"
	"testing"
)

func TestCoercion(t *testing.T) {
	tests := []struct {
		name   string
		v      Value
		i32    int32
		u32    uint32
		i64    int64
		u64    uint64
		truthy bool
	}{
		{"zero", Number(0), 0, 0, 0, 0, false},
		{"negative", Number(-1), -1, math.MaxUint32, -1, math.MaxUint64, true},
		{"fraction", Number(3.9), 3, 3, 3, 3, true},
		{"wrap32", Number(4294967297), 1, 1, 4294967297, 4294967297, true},
		{"NaN", Number(math.NaN()), 0, 0, 0, 0, false},
		{"infinity", Number(math.Inf(1)), 0, 0, 0, 0, true},
		{"true", Bool(true), 1, 1, 1, 1, true},
		{"null", Null(), 0, 0, 0, 0, false},
		{"undefined", Undefined(), 0, 0, 0, 0, false},
		{"numeric string", String(" 42 "), 42, 42, 42, 42, true},
		{"empty string", String(""), 0, 0, 0, 0, false},
		{"junk string", String("4x"), 0, 0, 0, 0, true},
		{"bigint", BigInt64(-2), -2, math.MaxUint32 - 1, -2, math.MaxUint64 - 1, true},
		{"huge bigint", BigInt(new(big.Int).Lsh(big.NewInt(1), 64)), 0, 0, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.ToInt32(); got != tt.i32 {
				t.Errorf("ToInt32 = %d, want %d", got, tt.i32)
			}
			if got := tt.v.ToUint32(); got != tt.u32 {
				t.Errorf("ToUint32 = %d, want %d", got, tt.u32)
			}
			if got := tt.v.ToInt64(); got != tt.i64 {
				t.Errorf("ToInt64 = %d, want %d", got, tt.i64)
			}
			if got := tt.v.ToUint64(); got != tt.u64 {
				t.Errorf("ToUint64 = %d, want %d", got, tt.u64)
			}
			if got := tt.v.Truthy(); got != tt.truthy {
				t.Errorf("Truthy = %v, want %v", got, tt.truthy)
			}
		})
	}
}

func TestArgsPastEnd(t *testing.T) {
	args := Args{Number(1)}
	if args.Arg(5).Kind() != ValueUndefined || args.Arg(-1).Kind() != ValueUndefined {
		t.Fatal("out-of-range args should be undefined")
	}
}

func TestToValue(t *testing.T) {
	n := int32(5)
	type point struct{ X, Y int }

	tests := []struct {
		name string
		in   any
		kind ValueKind
	}{
		{"nil", nil, ValueUndefined},
		{"bool", true, ValueBool},
		{"int32", int32(1), ValueNumber},
		{"int", 1, ValueNumber},
		{"int64", int64(1), ValueBigInt},
		{"uint64", uint64(1), ValueBigInt},
		{"float32", float32(1.5), ValueNumber},
		{"string", "s", ValueString},
		{"bytes", []byte("b"), ValueBytes},
		{"nil pointer", (*int32)(nil), ValueNull},
		{"pointer", &n, ValueNumber},
		{"struct", point{1, 2}, ValueObject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToValue(tt.in).Kind(); got != tt.kind {
				t.Fatalf("ToValue(%v).Kind() = %s, want %s", tt.in, got, tt.kind)
			}
		})
	}
}

func TestSerdeRoundTrip(t *testing.T) {
	data, err := MarshalValue(Object(map[string]any{"name": "x", "n": 3}))
	if err != nil {
		t.Fatalf("MarshalValue: %v", err)
	}
	v, err := UnmarshalValue(data)
	if err != nil {
		t.Fatalf("UnmarshalValue: %v", err)
	}
	m, ok := v.Obj().(map[string]any)
	if !ok || m["name"] != "x" {
		t.Fatalf("decoded %#v", v.Obj())
	}
}
