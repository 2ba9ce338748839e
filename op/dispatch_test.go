package op

import (
	"context"
	"io"
	"math"
	"os"
	"testing"
	"time"

	"github.com/wippyai/opcore/errors"
	"github.com/wippyai/opcore/future"
	"github.com/wippyai/opcore/metrics"
	"github.com/wippyai/opcore/resource"
	"github.com/wippyai/opcore/state"
)

func newDispatcher(t *testing.T, decls ...*Decl) *Dispatcher {
	t.Helper()
	st := state.New()
	state.Put(st, resource.NewTable())
	d := NewDispatcher(st, metrics.NewTracker(), 2)
	if _, err := d.Register(decls...); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return d
}

func TestFastMatchesSlow(t *testing.T) {
	d := newDispatcher(t, Must("op_add", func(a, b int32) int32 { return a + b }))
	id, _ := d.Lookup("op_add")

	var rv ReturnValue
	for i := 0; i < 10000; i++ {
		a := int32(i*7919 - 40000000)
		b := int32(math.MaxInt32 - i*3)

		word, err := d.CallFast(0, id, []uint64{0xdeadbeef, uint64(uint32(a)), uint64(uint32(b))})
		if err != nil {
			t.Fatalf("CallFast: %v", err)
		}
		fast := int32(uint32(word))

		rv.Reset()
		d.CallSlow(0, id, Args{Number(float64(a)), Number(float64(b))}, &rv)
		if _, thrown := rv.Thrown(); thrown {
			t.Fatal("slow call threw")
		}
		slow := rv.Get().ToInt32()

		if fast != a+b || slow != fast {
			t.Fatalf("call %d: fast=%d slow=%d want %d", i, fast, slow, a+b)
		}
	}

	s := d.Metrics().Op(uint32(id))
	if s.OpsDispatchedFast != 10000 || s.OpsDispatchedSync != 20000 || s.OpsCompleted != 20000 {
		t.Fatalf("metrics = %+v", s)
	}
}

func TestFastDecodesWords(t *testing.T) {
	d := newDispatcher(t,
		Must("op_narrow", func(a int8, b uint16) int32 { return int32(a) + int32(b) }),
		Must("op_float", func(a float32, b float64) float32 { return a + float32(b) }),
		Must("op_string", func(s string) int32 { return 0 }),
	)

	w, err := d.CallFast(0, 0, []uint64{0, 0xffffffffffffff80, 0x1ffff})
	if err != nil || int32(uint32(w)) != -128+0xffff {
		t.Fatalf("op_narrow = %d, %v", int32(uint32(w)), err)
	}

	w, err = d.CallFast(1, 1, []uint64{0, uint64(math.Float32bits(1.5)), math.Float64bits(2.25)})
	if err != nil || math.Float32frombits(uint32(w)) != 3.75 {
		t.Fatalf("op_float = %v, %v", math.Float32frombits(uint32(w)), err)
	}

	if _, err := d.CallFast(0, 2, []uint64{0, 0}); err == nil {
		t.Fatal("non-eligible op should not be callable fast")
	}
	if _, err := d.CallFast(0, 0, []uint64{0, 1}); err == nil {
		t.Fatal("wrong word count should fail")
	}
	if _, err := d.CallFast(5, 0, []uint64{0, 1, 2}); err == nil {
		t.Fatal("unknown realm should fail")
	}
}

type copyArgs struct {
	From string `cbor:"from"`
	To   string `cbor:"to"`
}

func TestSlowMarshaling(t *testing.T) {
	d := newDispatcher(t,
		Must("op_echo", func(s string, b []byte) string { return s + string(b) }),
		Must("op_opt", func(n *uint32) uint32 {
			if n == nil {
				return 99
			}
			return *n
		}),
		Must("op_flag", func(b bool) bool { return !b }),
		Must("op_copy", func(a copyArgs) string { return a.From + "->" + a.To }),
		Must("op_big", func(n uint64) uint64 { return n + 1 }),
	)

	tests := []struct {
		name string
		id   ID
		args Args
		want Value
	}{
		{"text and buffer", 0, Args{String("ab"), Bytes([]byte("cd"))}, String("abcd")},
		{"optional null", 1, Args{Null()}, Number(99)},
		{"optional missing", 1, Args{}, Number(99)},
		{"optional set", 1, Args{Number(7)}, Number(7)},
		{"truthiness", 2, Args{String("")}, Bool(true)},
		{"serde", 3, Args{Object(map[string]any{"from": "a", "to": "b"})}, String("a->b")},
		{"bigint", 4, Args{BigUint64(math.MaxUint64 - 1)}, BigUint64(math.MaxUint64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rv ReturnValue
			d.CallSlow(0, tt.id, tt.args, &rv)
			if oe, thrown := rv.Thrown(); thrown {
				t.Fatalf("threw %v", oe)
			}
			got := rv.Get()
			if got.Kind() != tt.want.Kind() {
				t.Fatalf("kind = %s, want %s", got.Kind(), tt.want.Kind())
			}
			switch got.Kind() {
			case ValueString:
				if got.Str() != tt.want.Str() {
					t.Fatalf("got %q, want %q", got.Str(), tt.want.Str())
				}
			case ValueNumber:
				if got.Num() != tt.want.Num() {
					t.Fatalf("got %v, want %v", got.Num(), tt.want.Num())
				}
			case ValueBool:
				if got.Bool() != tt.want.Bool() {
					t.Fatalf("got %v, want %v", got.Bool(), tt.want.Bool())
				}
			case ValueBigInt:
				if got.Big().Cmp(tt.want.Big()) != 0 {
					t.Fatalf("got %v, want %v", got.Big(), tt.want.Big())
				}
			}
		})
	}
}

func TestSlowCopiesBuffers(t *testing.T) {
	var kept []byte
	d := newDispatcher(t, Must("op_keep", func(b []byte) { kept = b }))

	guest := []byte("abc")
	var rv ReturnValue
	d.CallSlow(0, 0, Args{Bytes(guest)}, &rv)
	guest[0] = 'z'

	if string(kept) != "abc" {
		t.Fatalf("op saw guest mutation: %q", kept)
	}
}

func TestSlowErrors(t *testing.T) {
	notFound := func() error { return os.ErrNotExist }
	d := newDispatcher(t,
		Must("op_returns", func() error { return notFound() }),
		Must("op_throws", func() error { return notFound() }, Throws()),
		Must("op_text", func(s string) {}, Throws()),
		Must("op_need", func(a, b int32) int32 { return a + b }, Throws()),
		Must("op_async", func() (int32, error) { return 1, nil }, Async()),
	)

	var rv ReturnValue
	d.CallSlow(0, 0, Args{}, &rv)
	oe, ok := rv.Get().OpError()
	if !ok || oe.Class != errors.ClassNotFound {
		t.Fatalf("returning boundary = %+v", rv.Get())
	}
	if _, thrown := rv.Thrown(); thrown {
		t.Fatal("returning boundary must not throw")
	}

	tests := []struct {
		name  string
		id    ID
		args  Args
		class string
	}{
		{"throwing boundary", 1, Args{}, errors.ClassNotFound},
		{"type mismatch", 2, Args{Number(1)}, errors.ClassTypeError},
		{"missing argument", 3, Args{Number(1)}, errors.ClassTypeError},
		{"async called sync", 4, Args{}, errors.ClassError},
		{"unknown op", 99, Args{}, errors.ClassError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rv ReturnValue
			d.CallSlow(0, tt.id, tt.args, &rv)
			oe, thrown := rv.Thrown()
			if !thrown {
				t.Fatalf("expected throw, got %+v", rv.Get())
			}
			if oe.Class != tt.class {
				t.Fatalf("class = %s, want %s (%s)", oe.Class, tt.class, oe.Message)
			}
		})
	}

	s := d.Metrics().Aggregate()
	if s.OpsErrored != 4 || s.OpsDispatchedSync != 4 {
		t.Fatalf("metrics = %+v", s)
	}
}

type marker struct{ calls int }

func TestCtxAccess(t *testing.T) {
	d := newDispatcher(t, Must("op_count", func(ctx *Ctx) int32 {
		m, release := state.BorrowMut[marker](ctx.State)
		defer release()
		m.calls++
		if ctx.Resources() == nil {
			return -1
		}
		return int32(m.calls*10 + ctx.Realm)
	}))
	state.Put(d.state, marker{})

	var rv ReturnValue
	d.CallSlow(1, 0, Args{}, &rv)
	d.CallSlow(0, 0, Args{}, &rv)
	if got := rv.Get().ToInt32(); got != 20 {
		t.Fatalf("result = %d, want 20", got)
	}

	c0, _ := d.Ctx(0, 0)
	c1, _ := d.Ctx(1, 0)
	if c0 == c1 || c0.Decl != c1.Decl || c0.State != c1.State {
		t.Fatal("realms should have distinct contexts sharing decl and state")
	}
}

// delayed completes after a fixed number of polls.
type delayed struct {
	value any
	err   error
	polls int
}

func (f *delayed) Poll(cx *future.Context) future.Poll[Result] {
	if f.polls > 0 {
		f.polls--
		cx.Waker().Wake()
		return future.Pending[Result]()
	}
	return future.Ready(Result{Value: f.value, Err: f.err})
}

func drive(t *testing.T, pc *PendingCall) Completion {
	t.Helper()
	if c, ok := pc.Done(); ok {
		return c
	}
	c, err := future.Block(context.Background(), future.Future[Completion](pc.Future()))
	if err != nil {
		t.Fatalf("drive: %v", err)
	}
	return c
}

func TestAsyncDoneAndPendingDeliverSame(t *testing.T) {
	d := newDispatcher(t,
		Must("op_now", func(n int32) future.Future[Result] { return Resolved(n * 2) }),
		Must("op_later", func(n int32) future.Future[Result] { return &delayed{value: n * 2, polls: 3} }),
	)
	cx := future.NewContext(nil)

	now := d.DispatchAsync(cx, 0, 0, 1, Args{Number(21)})
	later := d.DispatchAsync(cx, 0, 1, 2, Args{Number(21)})

	if _, ok := now.Done(); !ok || now.Future() != nil {
		t.Fatal("ready-on-first-poll call should be done")
	}
	if _, ok := later.Done(); ok || later.Future() == nil {
		t.Fatal("delayed call should be pending")
	}

	a, b := drive(t, now), drive(t, later)
	if a.Value.ToInt32() != 42 || b.Value.ToInt32() != 42 || a.Err != nil || b.Err != nil {
		t.Fatalf("completions differ: %+v vs %+v", a, b)
	}
	if a.Promise != 1 || b.Promise != 2 || b.Op != 1 {
		t.Fatalf("completion routing: %+v %+v", a, b)
	}

	if d.Metrics().HasOutstandingOps() {
		t.Fatal("no ops should be outstanding")
	}
	agg := d.Metrics().Aggregate()
	if agg.OpsDispatchedAsync != 2 || agg.OpsCompletedAsync != 2 {
		t.Fatalf("metrics = %+v", agg)
	}
}

func TestAsyncErrors(t *testing.T) {
	d := newDispatcher(t,
		Must("op_eof", func() future.Future[Result] { return &delayed{err: io.ErrUnexpectedEOF, polls: 1} }),
		Must("op_text", func(s string) (int32, error) { return 0, nil }, Async()),
	)
	cx := future.NewContext(nil)

	c := drive(t, d.DispatchAsync(cx, 0, 0, 7, Args{}))
	if c.Err == nil || c.Err.Class != errors.ClassUnexpectedEOF {
		t.Fatalf("completion = %+v", c)
	}

	pc := d.DispatchAsync(cx, 0, 1, 8, Args{Number(1)})
	c, ok := pc.Done()
	if !ok || c.Err == nil || c.Err.Class != errors.ClassTypeError {
		t.Fatalf("marshal failure should complete at once with TypeError: %+v", c)
	}

	agg := d.Metrics().Aggregate()
	if agg.OpsErroredAsync != 2 || agg.HasOutstandingOps() {
		t.Fatalf("metrics = %+v", agg)
	}
}

func TestAsyncSpawned(t *testing.T) {
	d := newDispatcher(t, Must("op_sleep", func(ms int32) (string, error) {
		time.Sleep(time.Duration(ms) * time.Millisecond)
		return "woke", nil
	}, Spawned()))

	pc := d.DispatchAsync(future.NewContext(nil), 0, 0, 3, Args{Number(5)})
	if pc.Future() != nil && !d.Metrics().HasOutstandingOps() {
		t.Fatal("pending spawned call should be outstanding")
	}
	c := drive(t, pc)
	if c.Value.Str() != "woke" {
		t.Fatalf("completion = %+v", c)
	}
}

func TestAsyncSlotTooSmallPanics(t *testing.T) {
	st := state.New()
	d := NewDispatcher(st, metrics.NewTracker(), 1, WithSlotSize(8))
	if _, err := d.Register(Must("op_x", func() future.Future[Result] { return Resolved(1) })); err != nil {
		t.Fatal(err)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected capacity panic")
		}
	}()
	d.DispatchAsync(future.NewContext(nil), 0, 0, 1, Args{})
}

func TestFastCallLinkage(t *testing.T) {
	add := func(a, b int32) int32 { return a + b }
	tests := []struct {
		name      string
		opts      []DispatcherOption
		wantTramp bool
	}{
		{"disabled", nil, false},
		{"enabled", []DispatcherOption{WithFastCalls(true)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDispatcher(state.New(), metrics.NewTracker(), 2, tt.opts...)
			defer d.Close()
			if _, err := d.Register(Must("op_add", add), Must("op_name", func(s string) int32 { return 0 })); err != nil {
				t.Fatal(err)
			}

			for realm := 0; realm < 2; realm++ {
				ctx, _ := d.Ctx(realm, 0)
				if (ctx.Trampoline != nil) != tt.wantTramp {
					t.Fatalf("realm %d trampoline = %v, want %v", realm, ctx.Trampoline != nil, tt.wantTramp)
				}
				if ctx.Trampoline != nil && ctx.Trampoline.Mapped() {
					t.Fatal("trampoline should not be mapped at registration")
				}
				if slow, _ := d.Ctx(realm, 1); slow.Trampoline != nil {
					t.Fatal("slow op got a trampoline")
				}
			}

			w, err := d.CallFast(0, 0, []uint64{0, 2, 3})
			if err != nil || int32(uint32(w)) != 5 {
				t.Fatalf("CallFast = %d, %v", int32(uint32(w)), err)
			}
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	d := newDispatcher(t, Must("op_a", func() {}))
	if _, err := d.Register(Must("op_a", func() {})); err == nil {
		t.Fatal("duplicate name should be rejected")
	}
}
