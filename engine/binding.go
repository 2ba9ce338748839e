package engine

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/opcore/errors"
	"github.com/wippyai/opcore/op"
	"github.com/wippyai/opcore/runtime"
)

// BindOption configures Bind.
type BindOption func(*binding)

// WithModuleName overrides the import module name, so several realms can
// be bound into one wazero runtime.
func WithModuleName(name string) BindOption {
	return func(b *binding) { b.module = name }
}

type binding struct {
	log    *zap.Logger
	rt     *runtime.Runtime
	realm  *runtime.Realm
	module string
}

// Bind instantiates a host module exposing every op registered in rt as
// an import, with calls routed to the given realm. Ops must be registered
// before Bind.
func Bind(ctx context.Context, r wazero.Runtime, rt *runtime.Runtime, realm int, opts ...BindOption) (api.Module, error) {
	b := &binding{log: rt.Logger().Named("engine"), rt: rt, realm: rt.Realm(realm), module: ModuleName}
	for _, opt := range opts {
		opt(b)
	}
	if b.realm == nil {
		return nil, errors.NotFound(errors.PhaseEngine, "realm", b.module)
	}

	builder := r.NewHostModuleBuilder(b.module)
	for i, decl := range rt.Dispatcher().Decls() {
		id := op.ID(i)
		params, results := ImportSignature(decl)

		var fn api.GoModuleFunc
		switch {
		case decl.Fast != nil:
			fn = b.fast(id, len(params))
		case decl.Async:
			fn = b.async(id, decl)
		default:
			fn = b.slow(id, decl, len(params))
		}

		builder.NewFunctionBuilder().
			WithGoModuleFunction(fn, params, results).
			WithName(decl.Name).
			Export(decl.Name)

		b.log.Debug("op import bound",
			zap.String("module", b.module),
			zap.String("op", decl.Name),
			zap.Int("realm", realm),
			zap.Int("params", len(params)),
			zap.Int("results", len(results)))
	}

	mod, err := builder.Instantiate(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseEngine, errors.KindRegistration, err, "instantiate "+b.module)
	}
	return mod, nil
}

func (b *binding) fast(id op.ID, n int) api.GoModuleFunc {
	return func(_ context.Context, _ api.Module, stack []uint64) {
		words := make([]uint64, n)
		copy(words, stack[:n])
		ret, err := b.realm.CallFast(id, words)
		if err != nil {
			panic(err)
		}
		stack[0] = ret
	}
}

func (b *binding) slow(id op.ID, decl *op.Decl, n int) api.GoModuleFunc {
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		retptr := uint32(stack[n-1])
		args, err := readArgs(decl, mod.Memory(), stack[1:n-1])
		if err != nil {
			stack[0] = b.writeResult(ctx, mod, retptr, op.Undefined(), errors.ToOpError(err, nil))
			return
		}

		var rv op.ReturnValue
		b.realm.CallSlow(id, args, &rv)
		thrown, _ := rv.Thrown()
		stack[0] = b.writeResult(ctx, mod, retptr, rv.Get(), thrown)
	}
}

func (b *binding) async(id op.ID, decl *op.Decl) api.GoModuleFunc {
	return func(_ context.Context, mod api.Module, stack []uint64) {
		promise := op.PromiseID(int32(uint32(stack[1])))
		args, err := readArgs(decl, mod.Memory(), stack[2:])
		if err == nil {
			err = b.realm.CallAsync(id, promise, args)
		}
		if err != nil {
			panic(err)
		}
	}
}

// writeResult stores the CBOR encoding of v, or of thrown, in guest
// memory and its (ptr, len) at retptr.
func (b *binding) writeResult(ctx context.Context, mod api.Module, retptr uint32, v op.Value, thrown *errors.OpError) uint64 {
	status := uint64(StatusOK)
	if thrown != nil {
		status = StatusThrown
		v = op.Object(thrown)
	}
	ptr, n, err := writePayload(ctx, mod, v)
	if err != nil {
		panic(err)
	}
	mem := mod.Memory()
	if !mem.WriteUint32Le(retptr, ptr) || !mem.WriteUint32Le(retptr+4, n) {
		panic(errors.OutOfBounds(errors.PhaseEngine, []string{"retptr"}, int(retptr), int(mem.Size())))
	}
	return status
}
