package fastcall

import (
	"bytes"
	"encoding/binary"
	stderrors "errors"
	"reflect"
	"runtime"
	"testing"

	"github.com/wippyai/opcore/errors"
)

func TestPlan(t *testing.T) {
	ints := func(n int) []Type {
		out := make([]Type, n)
		for i := range out {
			out[i] = I32
		}
		return out
	}

	tests := []struct {
		name string
		sig  Signature
		want []string
	}{
		{
			name: "two ints",
			sig:  Signature{Args: []Type{I32, I32}, Ret: I32},
			want: []string{"arg0: rsi -> rdi", "arg1: rdx -> rsi"},
		},
		{
			name: "floats untouched",
			sig:  Signature{Args: []Type{F64, F64}, Ret: F64},
			want: nil,
		},
		{
			name: "mixed",
			sig:  Signature{Args: []Type{I32, F32, I64}, Ret: F32},
			want: []string{"arg0: rsi -> rdi", "arg2: rdx -> rsi"},
		},
		{
			name: "first stacked int into r9",
			sig:  Signature{Args: ints(6), Ret: Void},
			want: []string{
				"arg0: rsi -> rdi", "arg1: rdx -> rsi", "arg2: rcx -> rdx",
				"arg3: r8 -> rcx", "arg4: r9 -> r8", "arg5: [rsp+8] -> r9",
			},
		},
		{
			name: "later stack slots shift down",
			sig:  Signature{Args: ints(8), Ret: U32},
			want: []string{
				"arg0: rsi -> rdi", "arg1: rdx -> rsi", "arg2: rcx -> rdx",
				"arg3: r8 -> rcx", "arg4: r9 -> r8", "arg5: [rsp+8] -> r9",
				"arg6: [rsp+16] -> [rsp+8]", "arg7: [rsp+24] -> [rsp+16]",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			moves, err := Plan(tt.sig)
			if err != nil {
				t.Fatalf("Plan: %v", err)
			}
			var got []string
			for _, m := range moves {
				got = append(got, m.String())
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("moves = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		sig     Signature
		wantErr bool
	}{
		{Signature{Args: []Type{I64, U64, F32}, Ret: I32}, false},
		{Signature{Ret: Void}, false},
		{Signature{Args: []Type{I32}, Ret: I64}, true},
		{Signature{Args: []Type{I32}, Ret: U64}, true},
		{Signature{Args: []Type{I32}, Ret: Pointer}, true},
		{Signature{Args: []Type{Void}, Ret: I32}, true},
	}

	for _, tt := range tests {
		t.Run(tt.sig.String(), func(t *testing.T) {
			err := tt.sig.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !stderrors.Is(err, &errors.Error{Kind: errors.KindUnsupported}) {
				t.Fatalf("error kind: %v", err)
			}
		})
	}
}

func TestTypeOf(t *testing.T) {
	tests := []struct {
		v    any
		want Type
		ok   bool
	}{
		{int8(0), I8, true},
		{uint16(0), U16, true},
		{int32(0), I32, true},
		{int(0), I64, true},
		{uintptr(0), U64, true},
		{float32(0), F32, true},
		{"", Void, false},
		{true, Void, false},
	}

	for _, tt := range tests {
		got, ok := TypeOf(reflect.TypeOf(tt.v))
		if got != tt.want || ok != tt.ok {
			t.Errorf("TypeOf(%T) = %s, %v", tt.v, got, ok)
		}
	}
}

func TestGenerate(t *testing.T) {
	const target = uintptr(0x1122334455667788)

	bare, err := Generate(Signature{Args: []Type{F64}, Ret: F64}, target)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	add, err := Generate(Signature{Args: []Type{I32, I32}, Ret: I32}, target)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	imm := binary.LittleEndian.AppendUint64(nil, uint64(target))
	jmpAX := []byte{0xff, 0xe0}
	for _, tr := range []*Trampoline{bare, add} {
		if !bytes.Contains(tr.Code, imm) {
			t.Errorf("%s: target immediate missing from % x", tr.Sig, tr.Code)
		}
		if !bytes.Contains(tr.Code, jmpAX) {
			t.Errorf("%s: JMP AX missing from % x", tr.Sig, tr.Code)
		}
	}
	if len(add.Code) <= len(bare.Code) {
		t.Errorf("register shifts should add code: %d <= %d", len(add.Code), len(bare.Code))
	}
	if len(add.Moves) != 2 {
		t.Errorf("moves = %d, want 2", len(add.Moves))
	}

	if _, err := Generate(Signature{Ret: I64}, target); err == nil {
		t.Error("expected error for 64-bit return")
	}
}

func TestMap(t *testing.T) {
	tr, err := Generate(Signature{Args: []Type{I32}, Ret: I32}, 0x1000)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	err = tr.Map()
	supported := (runtime.GOOS == "linux" || runtime.GOOS == "darwin") && runtime.GOARCH == "amd64"
	if !supported {
		if !stderrors.Is(err, &errors.Error{Kind: errors.KindUnsupported}) {
			t.Fatalf("Map on unsupported platform = %v", err)
		}
		return
	}
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if !tr.Mapped() {
		t.Fatal("Mapped = false after Map")
	}
	if err := tr.Unmap(); err != nil {
		t.Fatalf("Unmap: %v", err)
	}
	if tr.Mapped() {
		t.Fatal("Mapped = true after Unmap")
	}
}
