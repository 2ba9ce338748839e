// Package op declares native operations and dispatches guest calls to
// them.
//
// # Declaring ops
//
// New derives an op declaration from a Go function by reflection:
//
//	add := op.Must("op_add", func(a, b int32) int32 { return a + b })
//	read := op.Must("op_read", func(ctx *op.Ctx, rid resource.ID, buf []byte) future.Future[op.Result] {
//		...
//	})
//
// Parameter types select the marshaling directive: sized integers and
// floats are numeric, string is text, []byte is a binary buffer, *N for a
// numeric N is an optional number, resource.ID is a resource handle, and
// any other struct, map or slice is a serialized value carried as CBOR.
//
// # Calling conventions
//
// Sync ops whose parameters and result are all numeric, that take no
// *op.Ctx and cannot fail are fast-call eligible. CallFast passes them raw
// 64-bit words, word 0 being the engine receiver. Every sync op can be
// called through CallSlow, which reads Values from a CallInfo and writes
// into a ReturnValue. Both paths produce identical results.
//
// Async ops are started with DispatchAsync. The body's future is erased
// into a fixed-capacity slot and polled once; the returned PendingCall is
// either done or must be polled by the event loop until it yields its
// Completion. Each call produces exactly one Completion.
//
// # Errors
//
// Argument conversion failures and errors returned by bodies become
// tagged errors.OpError values via the dispatcher's classifier. A
// returning boundary writes them into the result slot; a throwing
// boundary raises them. Async errors travel inside the Completion.
package op
