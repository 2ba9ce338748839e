// Package engine binds an op runtime into a wazero WebAssembly runtime.
//
// Every registered op becomes a function of the host module "opcore".
// Guests import them directly; the first parameter of each import is a
// receiver word the binding ignores.
//
// # Calling Conventions
//
//	Convention  Import signature                      Result
//	──────────────────────────────────────────────────────────────────
//	fast        (recv, args...) -> ret                raw return word
//	slow        (recv, args..., retptr) -> status     CBOR at *retptr
//	async       (recv, promise, args...)              via opcore_resolve
//
// Fast ops are those with only numeric parameters and a 32-bit or float
// result. Their stack words are passed to the op unchanged.
//
// Slow and async ops use flat parameters: numbers map to their core type,
// strings, buffers and serialized values to an (i32 ptr, i32 len) pair in
// guest memory, and optionals to an i32 presence flag followed by the
// value. Results are CBOR-encoded into memory obtained from the guest's
// cabi_realloc; status 1 means the payload is a thrown error.
//
// # Delivering Completions
//
// MemoryResolver implements runtime.Resolver. Attach a guest per realm and
// pass the resolver to runtime.New:
//
//	res := engine.NewMemoryResolver(ctx)
//	rt, _ := runtime.New(cfg, runtime.WithResolver(res))
//	rt.Register(decls...)
//
//	eng, _ := engine.New(ctx, nil)
//	engine.Bind(ctx, eng.Runtime(), rt, 0)
//	guest, _ := eng.Instantiate(ctx, wasm, "guest")
//	res.Attach(0, guest)
//
//	rt.Run(ctx)
package engine
