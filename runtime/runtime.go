package runtime

import (
	"context"
	stderrors "errors"

	"go.uber.org/zap"

	"github.com/wippyai/opcore/erased"
	"github.com/wippyai/opcore/errors"
	"github.com/wippyai/opcore/fastcall"
	"github.com/wippyai/opcore/future"
	"github.com/wippyai/opcore/metrics"
	"github.com/wippyai/opcore/op"
	"github.com/wippyai/opcore/resource"
	"github.com/wippyai/opcore/state"
)

// Resolver delivers finished async calls to the guest. It is called on
// the loop goroutine only.
type Resolver interface {
	Resolve(c op.Completion) error
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(c op.Completion) error

func (f ResolverFunc) Resolve(c op.Completion) error { return f(c) }

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the runtime's logger, overriding Config.LogLevel. Like a
// LogLevel logger it is also installed as the op, resource and fastcall
// package logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runtime) { r.log = l }
}

// WithResolver sets where completions are delivered.
func WithResolver(res Resolver) Option {
	return func(r *Runtime) { r.resolver = res }
}

// WithClassifier sets the error classifier used for op errors.
func WithClassifier(c errors.Classifier) Option {
	return func(r *Runtime) { r.classify = c }
}

// WithMetricsHook adds a metrics event hook.
func WithMetricsHook(fn metrics.EventFn) Option {
	return func(r *Runtime) { r.hooks = append(r.hooks, fn) }
}

// Runtime is one execution context: the state container shared by every
// op, its realms, and the loop that drives pending async calls.
//
// Register and the Realm call methods, Poll, Run and Close must be used
// from a single goroutine. Op bodies and wakers may run elsewhere.
type Runtime struct {
	cfg      Config
	log      *zap.Logger
	resolver Resolver
	classify errors.Classifier
	hooks    []metrics.EventFn

	state    *state.State
	table    *resource.Table
	metrics  *metrics.Tracker
	dispatch *op.Dispatcher
	arena    *erased.Arena[op.Completion]
	pending  map[erased.Key]op.ID
	ready    []op.Completion
	realms   []*Realm

	wake   chan struct{}
	cx     *future.Context
	closed bool
}

// New creates a runtime from cfg.
func New(cfg Config, opts ...Option) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Runtime{
		cfg:  cfg,
		wake: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	switch {
	case r.log != nil:
		installLogger(r.log)
	case cfg.LogLevel != "":
		l, err := cfg.logger()
		if err != nil {
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "build logger")
		}
		r.log = l
		installLogger(l)
	default:
		r.log = Logger()
	}
	if r.resolver == nil {
		r.resolver = ResolverFunc(func(c op.Completion) error {
			r.log.Debug("completion dropped, no resolver",
				zap.Int("realm", c.Realm),
				zap.Int32("promise", int32(c.Promise)))
			return nil
		})
	}

	r.cx = future.NewContext(future.WakerFunc(r.signal))
	r.state = state.New()
	r.table = resource.NewTable()
	r.metrics = metrics.NewTracker(r.hooks...)
	state.Put(r.state, r.table)
	state.Put(r.state, r.metrics)

	dopts := []op.DispatcherOption{
		op.WithSlotSize(uintptr(cfg.SlotSize)),
		op.WithFastCalls(cfg.FastCalls),
	}
	if r.classify != nil {
		dopts = append(dopts, op.WithClassifier(r.classify))
	}
	r.dispatch = op.NewDispatcher(r.state, r.metrics, cfg.Realms, dopts...)
	r.arena = erased.NewArena[op.Completion](uintptr(cfg.SlotSize), cfg.ArenaCapacity)
	r.pending = make(map[erased.Key]op.ID, cfg.ArenaCapacity)

	r.realms = make([]*Realm, cfg.Realms)
	for i := range r.realms {
		r.realms[i] = &Realm{rt: r, index: i}
	}

	r.log.Debug("runtime created",
		zap.Int("realms", cfg.Realms),
		zap.Uint32("slot_size", cfg.SlotSize),
		zap.Bool("fast_calls", cfg.FastCalls))
	return r, nil
}

func installLogger(l *zap.Logger) {
	op.SetLogger(l.Named("op"))
	resource.SetLogger(l.Named("resource"))
	fastcall.SetLogger(l.Named("fastcall"))
}

// Logger returns the runtime's logger.
func (r *Runtime) Logger() *zap.Logger { return r.log }

func (r *Runtime) signal() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Register declares ops. It must be called before any realm call.
func (r *Runtime) Register(decls ...*op.Decl) ([]op.ID, error) {
	if r.closed {
		return nil, errors.Closed("runtime")
	}
	return r.dispatch.Register(decls...)
}

// Lookup returns the ID of a registered op.
func (r *Runtime) Lookup(name string) (op.ID, bool) { return r.dispatch.Lookup(name) }

// Dispatcher returns the op dispatcher.
func (r *Runtime) Dispatcher() *op.Dispatcher { return r.dispatch }

// State returns the state container shared by all ops.
func (r *Runtime) State() *state.State { return r.state }

// Resources returns the resource table.
func (r *Runtime) Resources() *resource.Table { return r.table }

// Metrics returns the per-op metrics tracker.
func (r *Runtime) Metrics() *metrics.Tracker { return r.metrics }

// Config returns the configuration the runtime was created with.
func (r *Runtime) Config() Config { return r.cfg }

// Realm returns realm i, or nil if out of range.
func (r *Runtime) Realm(i int) *Realm {
	if i < 0 || i >= len(r.realms) {
		return nil
	}
	return r.realms[i]
}

// Realms returns the number of realms.
func (r *Runtime) Realms() int { return len(r.realms) }

// Pending returns the number of async calls not yet delivered.
func (r *Runtime) Pending() int { return len(r.ready) + r.arena.Len() }

func (r *Runtime) start(pc *op.PendingCall) {
	if c, ok := pc.Done(); ok {
		r.ready = append(r.ready, c)
		r.signal()
		return
	}
	r.pending[r.arena.Put(pc.Future())] = pc.Op
}

// Poll runs one loop turn: already-done calls are delivered, then every
// pending future is polled once and those that complete are delivered.
// It returns the number of completions delivered.
func (r *Runtime) Poll(ctx context.Context) (int, error) {
	if r.closed {
		return 0, errors.Closed("runtime")
	}
	select {
	case <-r.wake:
	default:
	}

	var errs []error
	delivered := 0
	deliver := func(c op.Completion) {
		delivered++
		if err := r.resolver.Resolve(c); err != nil {
			r.log.Warn("resolve failed",
				zap.Int("realm", c.Realm),
				zap.Int32("promise", int32(c.Promise)),
				zap.Error(err))
			errs = append(errs, err)
		}
	}

	ready := r.ready
	r.ready = nil
	for _, c := range ready {
		deliver(c)
	}

	for _, k := range r.arena.Keys() {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if p, ok := r.arena.Poll(k, r.cx); ok && p.Ready {
			delete(r.pending, k)
			deliver(p.Value)
		}
	}

	return delivered, stderrors.Join(errs...)
}

// Run polls until no async call is outstanding, sleeping between turns
// until a waker fires or ctx is done.
func (r *Runtime) Run(ctx context.Context) error {
	for {
		if _, err := r.Poll(ctx); err != nil {
			return err
		}
		if r.Pending() == 0 {
			return nil
		}
		select {
		case <-r.wake:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close drops pending calls, closes every resource and tears down state.
// Each dropped call is recorded as an async error so the metrics show no
// outstanding ops afterwards.
func (r *Runtime) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	dropped := r.arena.Len()
	r.arena.Clear()
	for k, id := range r.pending {
		r.metrics.Track(uint32(id), metrics.ErrorAsync)
		delete(r.pending, k)
	}
	r.ready = nil

	var errs []error
	if err := r.table.CloseAll(); err != nil {
		errs = append(errs, err)
	}
	if err := r.dispatch.Close(); err != nil {
		errs = append(errs, err)
	}
	r.state.Clear()

	r.log.Debug("runtime closed", zap.Int("dropped_calls", dropped))
	return stderrors.Join(errs...)
}
