package runtime

import (
	"github.com/wippyai/opcore/errors"
	"github.com/wippyai/opcore/op"
)

// Realm is one guest execution environment within a runtime. Each realm
// has its own op contexts; all realms share the runtime's state.
type Realm struct {
	rt    *Runtime
	index int
}

// Index returns the realm's position in its runtime.
func (r *Realm) Index() int { return r.index }

// Runtime returns the owning runtime.
func (r *Realm) Runtime() *Runtime { return r.rt }

// CallFast invokes a fast-eligible op with raw argument words, the first
// being the engine receiver.
func (r *Realm) CallFast(id op.ID, words []uint64) (uint64, error) {
	if r.rt.closed {
		return 0, errors.Closed("runtime")
	}
	return r.rt.dispatch.CallFast(r.index, id, words)
}

// CallSlow invokes a sync op through the engine calling convention.
func (r *Realm) CallSlow(id op.ID, args op.CallInfo, rv *op.ReturnValue) {
	if r.rt.closed {
		rv.Throw(errors.ToOpError(errors.Closed("runtime"), nil))
		return
	}
	r.rt.dispatch.CallSlow(r.index, id, args, rv)
}

// CallAsync starts an async op bound to promise. Its completion is
// delivered to the runtime's resolver by a later Poll.
func (r *Realm) CallAsync(id op.ID, promise op.PromiseID, args op.CallInfo) error {
	if r.rt.closed {
		return errors.Closed("runtime")
	}
	r.rt.start(r.rt.dispatch.DispatchAsync(r.rt.cx, r.index, id, promise, args))
	return nil
}
