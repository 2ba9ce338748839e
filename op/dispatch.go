package op

import (
	"reflect"
	"strconv"

	"go.uber.org/zap"

	"github.com/wippyai/opcore/erased"
	"github.com/wippyai/opcore/errors"
	"github.com/wippyai/opcore/fastcall"
	"github.com/wippyai/opcore/future"
	"github.com/wippyai/opcore/metrics"
	"github.com/wippyai/opcore/state"
)

// Dispatcher routes guest calls to registered ops through the fast, slow
// and async conventions. Registration happens before the loop starts;
// calls are made from the loop goroutine.
type Dispatcher struct {
	state     *state.State
	metrics   *metrics.Tracker
	classify  errors.Classifier
	slotSize  uintptr
	fastCalls bool

	decls  []*Decl
	byName map[string]ID
	ctxs   [][]*Ctx
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithClassifier sets the function mapping op-body errors to classes.
func WithClassifier(c errors.Classifier) DispatcherOption {
	return func(d *Dispatcher) { d.classify = c }
}

// WithSlotSize sets the erased capacity for pending async calls. Values
// below MinSlotSize panic on the first async dispatch.
func WithSlotSize(n uintptr) DispatcherOption {
	return func(d *Dispatcher) { d.slotSize = n }
}

// WithFastCalls attaches generated trampoline linkage to the Ctx of every
// fast-eligible op. Trampolines are not mapped executable here: their
// target is the Go entry of the op body, which does not follow the System V
// convention the trampoline assumes. Go callers dispatch through CallFast;
// an embedder that supplies a native target may map the code itself.
func WithFastCalls(enabled bool) DispatcherOption {
	return func(d *Dispatcher) { d.fastCalls = enabled }
}

// NewDispatcher creates a dispatcher for the given number of realms.
func NewDispatcher(st *state.State, tracker *metrics.Tracker, realms int, opts ...DispatcherOption) *Dispatcher {
	if realms < 1 {
		realms = 1
	}
	d := &Dispatcher{
		state:    st,
		metrics:  tracker,
		classify: errors.DefaultClassifier,
		slotSize: erased.DefaultCapacity,
		byName:   make(map[string]ID),
		ctxs:     make([][]*Ctx, realms),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register adds decls and returns their IDs in order.
func (d *Dispatcher) Register(decls ...*Decl) ([]ID, error) {
	ids := make([]ID, 0, len(decls))
	for _, decl := range decls {
		if _, dup := d.byName[decl.Name]; dup {
			return ids, errors.Registration(decl.Name, errors.InvalidInput(errors.PhaseRegister, "duplicate op name"))
		}

		id := ID(len(d.decls))
		if mid := d.metrics.Register(decl.Name); mid != uint32(id) {
			return ids, errors.Registration(decl.Name, errors.InvalidInput(errors.PhaseRegister, "metrics tracker shared with another dispatcher"))
		}
		d.decls = append(d.decls, decl)
		d.byName[decl.Name] = id

		tramp := d.trampoline(decl)
		for realm := range d.ctxs {
			d.ctxs[realm] = append(d.ctxs[realm], &Ctx{
				ID:         id,
				State:      d.state,
				Decl:       decl,
				Trampoline: tramp,
				Realm:      realm,
			})
		}

		Logger().Debug("op registered",
			zap.Uint32("op_id", uint32(id)),
			zap.String("op", decl.Name),
			zap.String("signature", decl.Signature()),
			zap.Bool("fast", decl.IsFast()),
		)
		ids = append(ids, id)
	}
	return ids, nil
}

func (d *Dispatcher) trampoline(decl *Decl) *fastcall.Trampoline {
	if !d.fastCalls || decl.Fast == nil {
		return nil
	}
	t, err := fastcall.Generate(*decl.Fast, decl.fn.Pointer())
	if err != nil {
		Logger().Warn("trampoline generation failed", zap.String("op", decl.Name), zap.Error(err))
		return nil
	}
	return t
}

// Lookup returns the ID of the named op.
func (d *Dispatcher) Lookup(name string) (ID, bool) {
	id, ok := d.byName[name]
	return id, ok
}

// Decl returns the declaration of id, or nil.
func (d *Dispatcher) Decl(id ID) *Decl {
	if int(id) >= len(d.decls) {
		return nil
	}
	return d.decls[id]
}

// Decls returns all declarations in ID order.
func (d *Dispatcher) Decls() []*Decl {
	return d.decls
}

// Realms returns the number of realms.
func (d *Dispatcher) Realms() int { return len(d.ctxs) }

// Metrics returns the tracker fed by this dispatcher.
func (d *Dispatcher) Metrics() *metrics.Tracker { return d.metrics }

// Ctx returns the op context of id in realm.
func (d *Dispatcher) Ctx(realm int, id ID) (*Ctx, error) {
	if realm < 0 || realm >= len(d.ctxs) {
		return nil, errors.NotFound(errors.PhaseDispatch, "realm", strconv.Itoa(realm))
	}
	if int(id) >= len(d.ctxs[realm]) {
		return nil, errors.NotFound(errors.PhaseDispatch, "op", strconv.Itoa(int(id)))
	}
	return d.ctxs[realm][id], nil
}

// CallFast invokes a fast-eligible op with raw words. words[0] is the
// engine receiver and is ignored; the rest are decoded per the op's
// signature.
func (d *Dispatcher) CallFast(realm int, id ID, words []uint64) (uint64, error) {
	ctx, err := d.Ctx(realm, id)
	if err != nil {
		return 0, err
	}
	decl := ctx.Decl
	if decl.Fast == nil {
		return 0, errors.New(errors.PhaseDispatch, errors.KindUnsupported).
			Path(decl.Name).
			Detail("op is not fast-call eligible").
			Build()
	}
	if len(words) != len(decl.Params)+1 {
		return 0, errors.New(errors.PhaseDispatch, errors.KindInvalidInput).
			Path(decl.Name).
			Detail("got %d words, want receiver plus %d", len(words), len(decl.Params)).
			Build()
	}

	d.metrics.Track(uint32(id), metrics.DispatchedFast)
	in := make([]reflect.Value, len(decl.fastIn))
	for i, dec := range decl.fastIn {
		in[i] = dec(words[i+1])
	}
	out := decl.fn.Call(in)
	d.metrics.Track(uint32(id), metrics.Completed)

	if decl.fastOut == nil {
		return 0, nil
	}
	return decl.fastOut(out[0]), nil
}

// CallSlow invokes a sync op, reading arguments from args and writing the
// result or error into rv.
func (d *Dispatcher) CallSlow(realm int, id ID, args CallInfo, rv *ReturnValue) {
	ctx, err := d.Ctx(realm, id)
	if err != nil {
		rv.Throw(errors.ToOpError(err, d.classify))
		return
	}
	decl := ctx.Decl
	if decl.Async {
		rv.Throw(errors.ToOpError(errors.New(errors.PhaseDispatch, errors.KindUnsupported).
			Path(decl.Name).
			Detail("async op called synchronously").
			Build(), d.classify))
		return
	}

	d.metrics.Track(uint32(id), metrics.Dispatched)

	in, err := decl.marshalArgs(ctx, args)
	if err == nil {
		res := decl.result(decl.fn.Call(in))
		if res.Err == nil {
			rv.Set(ToValue(res.Value))
			d.metrics.Track(uint32(id), metrics.Completed)
			return
		}
		err = res.Err
	}

	d.metrics.Track(uint32(id), metrics.Error)
	oe := errors.ToOpError(err, d.classify)
	if decl.Boundary == BoundaryThrow {
		rv.Throw(oe)
		return
	}
	rv.Set(Object(oe))
}

// DispatchAsync starts an async op tied to promise. The body's future is
// erased and polled once with cx; a call that completes on that poll is
// returned done, otherwise its future must be polled by the loop.
func (d *Dispatcher) DispatchAsync(cx *future.Context, realm int, id ID, promise PromiseID, args CallInfo) *PendingCall {
	pc := &PendingCall{Realm: realm, Promise: promise, Op: id}

	ctx, err := d.Ctx(realm, id)
	if err != nil {
		pc.done = &Completion{Realm: realm, Promise: promise, Op: id, Err: errors.ToOpError(err, d.classify)}
		return pc
	}

	d.metrics.Track(uint32(id), metrics.DispatchedAsync)

	body, err := ctx.Decl.invokeAsync(ctx, args)
	if err != nil {
		c := d.complete(realm, promise, id, Result{Err: err})
		pc.done = &c
		return pc
	}

	fut := erased.NewFuture[Completion](d.slotSize, completionFuture{
		d:       d,
		inner:   body,
		realm:   realm,
		promise: promise,
		op:      id,
	})
	if p := fut.Poll(cx); p.Ready {
		pc.done = &p.Value
		return pc
	}
	pc.fut = fut
	return pc
}

func (d *Dispatcher) complete(realm int, promise PromiseID, id ID, res Result) Completion {
	c := Completion{Realm: realm, Promise: promise, Op: id}
	if res.Err != nil {
		c.Err = errors.ToOpError(res.Err, d.classify)
		d.metrics.Track(uint32(id), metrics.ErrorAsync)
		return c
	}
	c.Value = ToValue(res.Value)
	d.metrics.Track(uint32(id), metrics.CompletedAsync)
	return c
}

// Close releases any trampoline mappings made through Ctx.Trampoline.
func (d *Dispatcher) Close() error {
	if len(d.ctxs) == 0 {
		return nil
	}
	for _, ctx := range d.ctxs[0] {
		if ctx.Trampoline != nil {
			_ = ctx.Trampoline.Unmap()
		}
	}
	return nil
}

func (d *Decl) marshalArgs(ctx *Ctx, args CallInfo) ([]reflect.Value, error) {
	in := make([]reflect.Value, 0, len(d.Params)+1)
	if d.withCtx {
		in = append(in, reflect.ValueOf(ctx))
	}
	for i, p := range d.Params {
		if i >= args.Len() && p.Kind != KindOptional {
			return nil, errors.MissingArg(argPath(d.Name, i), i)
		}
		v, err := fromValue(p, args.Arg(i), argPath(d.Name, i))
		if err != nil {
			return nil, err
		}
		in = append(in, v)
	}
	return in, nil
}

func (d *Decl) result(out []reflect.Value) Result {
	var r Result
	if d.retErr {
		if e := out[len(out)-1]; !e.IsNil() {
			r.Err = e.Interface().(error)
			return r
		}
	}
	if d.retValue {
		r.Value = out[0].Interface()
	}
	return r
}

func (d *Decl) invokeAsync(ctx *Ctx, args CallInfo) (future.Future[Result], error) {
	in, err := d.marshalArgs(ctx, args)
	if err != nil {
		return nil, err
	}
	switch {
	case d.retFuture:
		out := d.fn.Call(in)
		if out[0].IsNil() {
			return Resolved(nil), nil
		}
		return out[0].Interface().(future.Future[Result]), nil
	case d.Spawned:
		return future.Spawn(func() Result { return d.result(d.fn.Call(in)) }), nil
	default:
		return future.Done(d.result(d.fn.Call(in))), nil
	}
}
