// Package state provides the per-execution-context State Container.
//
// A State holds at most one value per distinct Go type. Ops receive the
// State through their op.Ctx and use the generic accessors:
//
//	state.Put(s, &Counter{})
//	c, release := state.BorrowMut[*Counter](s)
//	defer release()
//
// Two logically distinct values of the same shape must be wrapped in
// distinct marker types by the caller; the container keys on the type
// alone.
//
// Missing values and a second mutable borrow of the same type panic. Both
// are programming errors in the op, not conditions a guest can cause.
package state
