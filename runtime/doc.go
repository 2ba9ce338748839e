// Package runtime ties the op core together into an execution context.
//
// A Runtime owns the state container (holding the resource table and the
// metrics tracker), the dispatcher, one or more realms and an arena of
// pending async calls. The guest engine calls ops through a Realm and
// drives completions with Poll or Run.
//
// # Quick Start
//
//	rt, err := runtime.New(runtime.DefaultConfig(),
//	    runtime.WithResolver(runtime.ResolverFunc(deliver)))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close()
//
//	ids, err := rt.Register(
//	    op.Must("op_add", func(a, b int32) int32 { return a + b }),
//	    op.Must("op_sleep", sleep, op.Spawned()),
//	)
//
//	realm := rt.Realm(0)
//	realm.CallAsync(ids[1], 1, op.Args{op.Number(10)})
//	if err := rt.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Configuration
//
// Config can be built in code or loaded from TOML:
//
//	slot_size = 64
//	arena_capacity = 128
//	realms = 2
//	fast_calls = false
//	log_level = "info"
//
// # Loop Model
//
// Async calls are polled once when dispatched. Calls that complete on that
// poll are queued and delivered on the next Poll; the rest are stored in
// the arena and polled every turn. Wakers signal the loop from any
// goroutine; completions are delivered only from Poll.
package runtime
