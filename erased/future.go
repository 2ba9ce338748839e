package erased

import (
	"unsafe"

	"github.com/wippyai/opcore/future"
)

// Future is a pending computation of erased concrete type producing O.
type Future[O any] struct {
	ptr      unsafe.Pointer
	poll     func(unsafe.Pointer, *future.Context) future.Poll[O]
	drop     func(unsafe.Pointer)
	capacity uintptr
	done     bool
}

// NewFuture erases f. The method set of *F must implement
// future.Future[O]; it panics when F exceeds capacity or alignment 8.
//
//	fut := erased.NewFuture[op.Result](erased.DefaultCapacity, sleepFuture{d: time.Second})
func NewFuture[O any, F any, PF interface {
	*F
	future.Future[O]
}](capacity uintptr, f F) *Future[O] {
	checkLayout[F](capacity)
	cell := new(F)
	*cell = f
	return &Future[O]{
		ptr: unsafe.Pointer(cell),
		poll: func(p unsafe.Pointer, cx *future.Context) future.Poll[O] {
			return PF((*F)(p)).Poll(cx)
		},
		drop:     dropper[F](),
		capacity: capacity,
	}
}

type boxed[O any] struct {
	f future.Future[O]
}

func (b *boxed[O]) Poll(cx *future.Context) future.Poll[O] { return b.f.Poll(cx) }

func (b *boxed[O]) Drop() {
	switch v := b.f.(type) {
	case interface{ Drop() }:
		v.Drop()
	case interface{ Close() error }:
		_ = v.Close()
	}
}

// Box erases a future already held as an interface value.
func Box[O any](capacity uintptr, f future.Future[O]) *Future[O] {
	return NewFuture[O](capacity, boxed[O]{f: f})
}

// Poll advances the future. Once it reports ready, the concrete value is
// released and further polls panic.
func (f *Future[O]) Poll(cx *future.Context) future.Poll[O] {
	if f.done {
		panic("erased: future polled after completion")
	}
	p := f.poll(f.ptr, cx)
	if p.Ready {
		f.done = true
		f.ptr = nil
	}
	return p
}

// Done reports whether the future completed or was dropped.
func (f *Future[O]) Done() bool { return f.done }

// Capacity returns the declared capacity in bytes.
func (f *Future[O]) Capacity() uintptr { return f.capacity }

// Drop abandons a pending future, running its teardown.
func (f *Future[O]) Drop() {
	if f.done {
		return
	}
	f.done = true
	p := f.ptr
	f.ptr = nil
	f.drop(p)
}
