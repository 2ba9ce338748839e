// Package opcore is the op dispatch and native-resource core of a host
// runtime that embeds a guest engine.
//
// Guest code calls native functionality through ops: named host functions
// declared once with a typed signature and invoked through one of three
// calling conventions. Native objects the guest holds on to live in a
// resource table and are referenced by integer handles.
//
// # Architecture Overview
//
//	opcore/
//	├── op/          Op declarations, argument marshaling and the dispatcher
//	├── runtime/     Execution context: realms, event loop, configuration
//	├── engine/      wazero binding exposing ops as WebAssembly imports
//	├── resource/    Resource table, full-duplex streams, channel pairs
//	├── state/       Type-keyed state container shared by all ops
//	├── erased/      Fixed-capacity type-erased values and futures
//	├── future/      Poll-based futures, wakers and contexts
//	├── fastcall/    Fast-call signatures, register plans, trampolines
//	├── metrics/     Per-op dispatch and completion counters
//	├── errors/      Structured errors and guest error classes
//	└── cmd/opstat/  Workload driver with live metrics
//
// # Quick Start
//
//	rt, err := runtime.New(runtime.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close()
//
//	ids, _ := rt.Register(op.Must("op_add", func(a, b int32) int32 { return a + b }))
//	sum, _ := rt.Realm(0).CallFast(ids[0], []uint64{0, 2, 3})
//
// # Calling Conventions
//
//	fast   numeric arguments as raw words, no marshaling, no errors
//	slow   guest values marshaled per parameter kind, result or thrown error
//	async  promise-bound; completions delivered by the runtime loop
//
// An op is fast-eligible when it takes only numeric parameters, returns
// void, a 32-bit integer or a float, does not take the op context and
// cannot fail. Fast ops are also callable through the slow path, and both
// paths produce identical results.
package opcore
