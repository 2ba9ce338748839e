package engine

import (
	"context"
	"math"
	"strconv"
	"unicode/utf8"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/opcore/errors"
	"github.com/wippyai/opcore/op"
)

// readArgs lifts flat core values, reading strings and buffers from
// guest memory, into guest values for the slow and async paths. Strings
// and buffers are copied.
func readArgs(decl *op.Decl, mem api.Memory, stack []uint64) (op.Args, error) {
	args := make(op.Args, 0, len(decl.Params))
	for i, p := range decl.Params {
		path := []string{decl.Name, "arg" + strconv.Itoa(i)}
		v, n, err := readArg(p, mem, stack, path)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
		stack = stack[n:]
	}
	return args, nil
}

func readArg(p op.Param, mem api.Memory, stack []uint64, path []string) (op.Value, int, error) {
	want := len(flatTypes(p))
	if len(stack) < want {
		return op.Value{}, 0, errors.MissingArg(path, len(stack))
	}

	switch p.Kind {
	case op.KindBool:
		return op.Bool(uint32(stack[0]) != 0), 1, nil
	case op.KindI8, op.KindI16, op.KindI32:
		return op.Number(float64(api.DecodeI32(stack[0]))), 1, nil
	case op.KindU8, op.KindU16, op.KindU32, op.KindResource:
		return op.Number(float64(api.DecodeU32(stack[0]))), 1, nil
	case op.KindI64:
		return op.BigInt64(int64(stack[0])), 1, nil
	case op.KindU64:
		return op.BigUint64(stack[0]), 1, nil
	case op.KindF32:
		return op.Number(float64(api.DecodeF32(stack[0]))), 1, nil
	case op.KindF64:
		return op.Number(api.DecodeF64(stack[0])), 1, nil

	case op.KindString, op.KindBuffer, op.KindSerde:
		data, err := readBytes(mem, uint32(stack[0]), uint32(stack[1]), path)
		if err != nil {
			return op.Value{}, 0, err
		}
		switch p.Kind {
		case op.KindString:
			if !utf8.Valid(data) {
				return op.Value{}, 0, errors.InvalidUTF8(errors.PhaseEngine, path, data)
			}
			return op.String(string(data)), 2, nil
		case op.KindBuffer:
			return op.Bytes(append([]byte(nil), data...)), 2, nil
		default:
			v, err := op.UnmarshalValue(data)
			if err != nil {
				return op.Value{}, 0, errors.Wrap(errors.PhaseEngine, errors.KindInvalidData, err, "decode serde argument")
			}
			return v, 2, nil
		}

	case op.KindOptional:
		if uint32(stack[0]) == 0 {
			return op.Null(), want, nil
		}
		v, _, err := readArg(op.Param{Kind: p.Elem}, mem, stack[1:], path)
		return v, want, err
	}

	return op.Value{}, 0, errors.Unsupported(errors.PhaseEngine, "parameter kind "+p.Kind.String())
}

func readBytes(mem api.Memory, ptr, n uint32, path []string) ([]byte, error) {
	if mem == nil {
		return nil, errors.NotInitialized(errors.PhaseEngine, "guest memory")
	}
	data, ok := mem.Read(ptr, n)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseEngine, path, int(ptr)+int(n), int(mem.Size()))
	}
	return data, nil
}

// writePayload encodes v as CBOR into memory allocated by the guest's
// CabiRealloc. An undefined value writes nothing and returns (0, 0).
func writePayload(ctx context.Context, mod api.Module, v op.Value) (ptr, n uint32, err error) {
	if v.Kind() == op.ValueUndefined {
		return 0, 0, nil
	}
	data, err := op.MarshalValue(v)
	if err != nil {
		return 0, 0, errors.Wrap(errors.PhaseEngine, errors.KindInvalidData, err, "encode result")
	}
	if uint64(len(data)) > math.MaxUint32 {
		return 0, 0, errors.Overflow(errors.PhaseEngine, []string{"result"}, len(data), "u32")
	}

	mem := mod.Memory()
	if mem == nil {
		return 0, 0, errors.NotInitialized(errors.PhaseEngine, "guest memory")
	}
	alloc := mod.ExportedFunction(CabiRealloc)
	if alloc == nil {
		return 0, 0, errors.NotFound(errors.PhaseEngine, "export", CabiRealloc)
	}

	res, err := alloc.Call(ctx, 0, 0, 1, uint64(len(data)))
	if err != nil {
		return 0, 0, errors.Wrap(errors.PhaseEngine, errors.KindInvalidInput, err, CabiRealloc)
	}
	ptr = uint32(res[0])
	if !mem.Write(ptr, data) {
		return 0, 0, errors.OutOfBounds(errors.PhaseEngine, []string{"result"}, int(ptr)+len(data), int(mem.Size()))
	}
	return ptr, uint32(len(data)), nil
}
