package engine

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/opcore/fastcall"
	"github.com/wippyai/opcore/op"
)

const (
	// ModuleName is the import module every op is exported from.
	ModuleName = "opcore"

	// CabiRealloc is the guest allocator used to return values into
	// linear memory.
	CabiRealloc = "cabi_realloc"

	// ResolveExport is the guest export that receives async completions.
	ResolveExport = "opcore_resolve"
)

// Status codes returned by slow ops and passed to ResolveExport.
const (
	StatusOK     = 0
	StatusThrown = 1
)

// flatTypes returns the core value types an op parameter occupies.
//
//	bool, i8..u32, resource  i32
//	i64, u64                 i64
//	f32 / f64                f32 / f64
//	string, buffer, serde    i32 ptr, i32 len
//	optional<T>              i32 present, T
func flatTypes(p op.Param) []api.ValueType {
	switch p.Kind {
	case op.KindBool, op.KindI8, op.KindU8, op.KindI16, op.KindU16,
		op.KindI32, op.KindU32, op.KindResource:
		return []api.ValueType{api.ValueTypeI32}
	case op.KindI64, op.KindU64:
		return []api.ValueType{api.ValueTypeI64}
	case op.KindF32:
		return []api.ValueType{api.ValueTypeF32}
	case op.KindF64:
		return []api.ValueType{api.ValueTypeF64}
	case op.KindString, op.KindBuffer, op.KindSerde:
		return []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}
	case op.KindOptional:
		return append([]api.ValueType{api.ValueTypeI32}, flatTypes(op.Param{Kind: p.Elem})...)
	default:
		return nil
	}
}

func fastValueType(t fastcall.Type) []api.ValueType {
	switch t {
	case fastcall.Void:
		return nil
	case fastcall.I64, fastcall.U64, fastcall.Pointer:
		return []api.ValueType{api.ValueTypeI64}
	case fastcall.F32:
		return []api.ValueType{api.ValueTypeF32}
	case fastcall.F64:
		return []api.ValueType{api.ValueTypeF64}
	default:
		return []api.ValueType{api.ValueTypeI32}
	}
}

// ImportSignature returns the core signature of the import generated for
// decl. Every import takes an i32 receiver first.
//
//	fast   (recv, args...) -> result
//	slow   (recv, args..., retptr) -> status
//	async  (recv, promise, args...) -> ()
//
// A slow op writes the (ptr, len) of its CBOR-encoded result, or of the
// thrown error, at retptr.
func ImportSignature(decl *op.Decl) (params, results []api.ValueType) {
	params = []api.ValueType{api.ValueTypeI32}

	if decl.Fast != nil {
		for _, t := range decl.Fast.Args {
			params = append(params, fastValueType(t)...)
		}
		return params, fastValueType(decl.Fast.Ret)
	}

	if decl.Async {
		params = append(params, api.ValueTypeI32)
	}
	for _, p := range decl.Params {
		params = append(params, flatTypes(p)...)
	}
	if decl.Async {
		return params, nil
	}
	return append(params, api.ValueTypeI32), []api.ValueType{api.ValueTypeI32}
}
