// Package future defines the pollable computation model used for async ops.
//
// A Future is polled by the driving loop with a Context carrying a Waker.
// A future that cannot make progress returns Pending and arranges for the
// waker to be invoked once progress is possible; the loop then polls again.
// Ready futures must not be polled a second time.
package future

import (
	"context"
	"sync"
)

// Poll is the outcome of polling a Future.
type Poll[T any] struct {
	Value T
	Ready bool
}

// Ready returns a completed poll result.
func Ready[T any](v T) Poll[T] {
	return Poll[T]{Value: v, Ready: true}
}

// Pending returns a not-yet-completed poll result.
func Pending[T any]() Poll[T] {
	return Poll[T]{}
}

// Future is a suspended computation producing a T.
type Future[T any] interface {
	Poll(cx *Context) Poll[T]
}

// Waker schedules a future to be polled again.
type Waker interface {
	Wake()
}

// WakerFunc adapts a function to Waker.
type WakerFunc func()

func (f WakerFunc) Wake() { f() }

type noopWaker struct{}

func (noopWaker) Wake() {}

// NoopWaker discards wake-ups.
var NoopWaker Waker = noopWaker{}

// Context is passed to every Poll call.
type Context struct {
	waker Waker
}

// NewContext returns a Context with the given waker. A nil waker is
// replaced by NoopWaker.
func NewContext(w Waker) *Context {
	if w == nil {
		w = NoopWaker
	}
	return &Context{waker: w}
}

// Waker returns the waker futures should retain when returning Pending.
func (c *Context) Waker() Waker {
	return c.waker
}

// Func adapts a poll function to Future.
type Func[T any] func(cx *Context) Poll[T]

func (f Func[T]) Poll(cx *Context) Poll[T] { return f(cx) }

type done[T any] struct {
	value T
}

func (d *done[T]) Poll(*Context) Poll[T] {
	return Ready(d.value)
}

// Done returns a future that is ready on its first poll.
func Done[T any](v T) Future[T] {
	return &done[T]{value: v}
}

type mapped[T, U any] struct {
	f  Future[T]
	fn func(T) U
}

func (m *mapped[T, U]) Poll(cx *Context) Poll[U] {
	p := m.f.Poll(cx)
	if !p.Ready {
		return Pending[U]()
	}
	return Ready(m.fn(p.Value))
}

// Map returns a future yielding fn applied to f's value.
func Map[T, U any](f Future[T], fn func(T) U) Future[U] {
	return &mapped[T, U]{f: f, fn: fn}
}

type spawned[T any] struct {
	fn    func() T
	start sync.Once

	mu    sync.Mutex
	ready bool
	value T
	waker Waker
}

// Spawn returns a future whose value is computed by fn on a separate
// goroutine. The goroutine starts on the first poll and wakes the most
// recently registered waker when fn returns.
func Spawn[T any](fn func() T) Future[T] {
	return &spawned[T]{fn: fn}
}

func (s *spawned[T]) Poll(cx *Context) Poll[T] {
	s.mu.Lock()
	if s.ready {
		v := s.value
		s.mu.Unlock()
		return Ready(v)
	}
	s.waker = cx.Waker()
	s.mu.Unlock()

	s.start.Do(func() { go s.run() })
	return Pending[T]()
}

func (s *spawned[T]) run() {
	v := s.fn()

	s.mu.Lock()
	s.value = v
	s.ready = true
	w := s.waker
	s.mu.Unlock()

	if w != nil {
		w.Wake()
	}
}

// Block polls f until it is ready or ctx is done. It is intended for
// tests and tools that drive a single future outside an event loop.
func Block[T any](ctx context.Context, f Future[T]) (T, error) {
	wake := make(chan struct{}, 1)
	cx := NewContext(WakerFunc(func() {
		select {
		case wake <- struct{}{}:
		default:
		}
	}))

	for {
		if p := f.Poll(cx); p.Ready {
			return p.Value, nil
		}
		select {
		case <-wake:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}
