package op

import (
	"unsafe"

	"github.com/wippyai/opcore/erased"
	"github.com/wippyai/opcore/errors"
	"github.com/wippyai/opcore/future"
)

// Completion is a finished async call ready for delivery to the guest.
// Err is nil on success.
type Completion struct {
	Value   Value
	Err     *errors.OpError
	Realm   int
	Promise PromiseID
	Op      ID
}

// PendingCall is the handle returned by DispatchAsync. It is either done,
// when the body completed during the eager first poll, or pending, in
// which case Future must be driven to completion by the event loop.
type PendingCall struct {
	Realm   int
	Promise PromiseID
	Op      ID

	done *Completion
	fut  *erased.Future[Completion]
}

// Done returns the completion of an already-done call.
func (p *PendingCall) Done() (Completion, bool) {
	if p.done == nil {
		return Completion{}, false
	}
	return *p.done, true
}

// Future returns the erased future of a pending call, nil when done.
func (p *PendingCall) Future() *erased.Future[Completion] {
	return p.fut
}

// completionFuture ties an op body's future to its promise. It is erased
// into a fixed-capacity slot at dispatch.
type completionFuture struct {
	d       *Dispatcher
	inner   future.Future[Result]
	realm   int
	promise PromiseID
	op      ID
}

// MinSlotSize is the smallest erased capacity that holds a pending call.
const MinSlotSize = unsafe.Sizeof(completionFuture{})

func (c *completionFuture) Poll(cx *future.Context) future.Poll[Completion] {
	p := c.inner.Poll(cx)
	if !p.Ready {
		return future.Pending[Completion]()
	}
	return future.Ready(c.d.complete(c.realm, c.promise, c.op, p.Value))
}

func (c *completionFuture) Drop() {
	switch v := c.inner.(type) {
	case interface{ Drop() }:
		v.Drop()
	case interface{ Close() error }:
		_ = v.Close()
	}
}

// Resolved returns an already-completed async result.
func Resolved(v any) future.Future[Result] {
	return future.Done(Result{Value: v})
}

// Rejected returns an already-failed async result.
func Rejected(err error) future.Future[Result] {
	return future.Done(Result{Err: err})
}

// Spawn runs fn on its own goroutine and completes with its outcome.
func Spawn(fn func() (any, error)) future.Future[Result] {
	return future.Spawn(func() Result {
		v, err := fn()
		return Result{Value: v, Err: err}
	})
}
