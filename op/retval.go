package op

import "github.com/wippyai/opcore/errors"

// ReturnValue is the slot a slow-path call writes its result into.
type ReturnValue struct {
	value  Value
	thrown *errors.OpError
}

// Set writes a result value.
func (r *ReturnValue) Set(v Value) {
	r.value = v
}

// Throw records an error to be raised in the guest.
func (r *ReturnValue) Throw(e *errors.OpError) {
	r.thrown = e
}

// Get returns the written value, undefined if none.
func (r *ReturnValue) Get() Value { return r.value }

// Thrown returns the raised error, if any.
func (r *ReturnValue) Thrown() (*errors.OpError, bool) {
	return r.thrown, r.thrown != nil
}

// Reset clears the slot for reuse.
func (r *ReturnValue) Reset() {
	*r = ReturnValue{}
}

// OpError reports whether v carries a tagged op error written by a
// returning error boundary.
func (v Value) OpError() (*errors.OpError, bool) {
	if v.kind != ValueObject {
		return nil, false
	}
	oe, ok := v.obj.(*errors.OpError)
	return oe, ok
}
