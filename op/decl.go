package op

import (
	"reflect"

	"github.com/wippyai/opcore/errors"
	"github.com/wippyai/opcore/fastcall"
	"github.com/wippyai/opcore/future"
	"github.com/wippyai/opcore/resource"
	"github.com/wippyai/opcore/state"
)

// ID identifies a registered op.
type ID uint32

// PromiseID identifies an in-flight async call on the guest side.
type PromiseID int32

// Boundary decides how an op error reaches the guest.
type Boundary uint8

const (
	// BoundaryReturn writes the tagged error into the return slot as a value.
	BoundaryReturn Boundary = iota
	// BoundaryThrow raises the tagged error through ReturnValue.Throw.
	BoundaryThrow
)

// Result is the outcome of an async op body.
type Result struct {
	Value any
	Err   error
}

// Decl is the immutable declaration of an op.
type Decl struct {
	Name      string
	Async     bool
	Spawned   bool
	Reentrant bool
	Boundary  Boundary
	Params    []Param
	Result    Param

	// Fast is the fast-call signature, nil when the op is not eligible.
	Fast *fastcall.Signature

	fn        reflect.Value
	withCtx   bool
	retValue  bool
	retErr    bool
	retFuture bool
	fastIn    []func(uint64) reflect.Value
	fastOut   func(reflect.Value) uint64
}

// Option adjusts a declaration at registration.
type Option func(*Decl)

// Async marks the op as async. Bodies returning future.Future[Result] are
// async implicitly; other bodies run at dispatch and complete at once.
func Async() Option { return func(d *Decl) { d.Async = true } }

// Spawned runs the body on its own goroutine. It implies Async.
func Spawned() Option {
	return func(d *Decl) {
		d.Async = true
		d.Spawned = true
	}
}

// Reentrant marks an op that may call back into the guest. Such ops are
// never fast-call eligible.
func Reentrant() Option { return func(d *Decl) { d.Reentrant = true } }

// Throws makes the op raise errors instead of returning them as values.
func Throws() Option { return func(d *Decl) { d.Boundary = BoundaryThrow } }

// Ctx is the per-realm runtime handle passed to op bodies that declare a
// leading *op.Ctx parameter.
type Ctx struct {
	ID         ID
	State      *state.State
	Decl       *Decl
	Trampoline *fastcall.Trampoline
	Realm      int
}

// Resources returns the resource table stored in the context state, or
// nil when none was installed.
func (c *Ctx) Resources() *resource.Table {
	t, _ := state.TryBorrow[*resource.Table](c.State)
	return t
}

var (
	ctxType      = reflect.TypeFor[*Ctx]()
	errorType    = reflect.TypeFor[error]()
	futureType   = reflect.TypeFor[future.Future[Result]]()
	resourceType = reflect.TypeFor[resource.ID]()
	bytesType    = reflect.TypeFor[[]byte]()
)

// IsFast reports whether the op can be called through the fast path.
func (d *Decl) IsFast() bool { return d.Fast != nil }

// New declares an op from a Go function.
//
// Parameters may be bool, sized integers, int, uint, floats, string,
// []byte, pointers to numerics (optional), resource.ID, or any
// CBOR-serializable type. A leading *op.Ctx receives the runtime handle.
// Results may be empty, T, error, (T, error) or future.Future[Result].
func New(name string, fn any, opts ...Option) (*Decl, error) {
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func {
		return nil, errors.Registration(name, errors.TypeMismatch(errors.PhaseRegister, nil, typeName(fn), "function"))
	}
	ft := rv.Type()
	if ft.IsVariadic() {
		return nil, errors.Registration(name, errors.Unsupported(errors.PhaseRegister, "variadic op body"))
	}

	d := &Decl{Name: name, fn: rv}

	start := 0
	if ft.NumIn() > 0 && ft.In(0) == ctxType {
		d.withCtx = true
		start = 1
	}
	for i := start; i < ft.NumIn(); i++ {
		p, err := paramOf(ft.In(i))
		if err != nil {
			return nil, errors.Registration(name, err)
		}
		d.Params = append(d.Params, p)
	}

	if err := d.parseResults(ft); err != nil {
		return nil, errors.Registration(name, err)
	}

	for _, opt := range opts {
		opt(d)
	}
	if d.retFuture {
		if d.Spawned {
			return nil, errors.Registration(name, errors.Unsupported(errors.PhaseRegister, "spawned op returning a future"))
		}
		d.Async = true
	}

	d.planFast()
	return d, nil
}

// Must is New that panics on error.
func Must(name string, fn any, opts ...Option) *Decl {
	d, err := New(name, fn, opts...)
	if err != nil {
		panic(err)
	}
	return d
}

func (d *Decl) parseResults(ft reflect.Type) error {
	switch ft.NumOut() {
	case 0:
	case 1:
		switch out := ft.Out(0); out {
		case errorType:
			d.retErr = true
		case futureType:
			d.retFuture = true
		default:
			p, err := paramOf(out)
			if err != nil {
				return err
			}
			d.Result, d.retValue = p, true
		}
	case 2:
		if ft.Out(1) != errorType {
			return errors.New(errors.PhaseRegister, errors.KindTypeMismatch).
				Path("result1").
				GoType(ft.Out(1).String()).
				Detail("second result must be error").
				Build()
		}
		p, err := paramOf(ft.Out(0))
		if err != nil {
			return err
		}
		d.Result, d.retValue, d.retErr = p, true, true
	default:
		return errors.Unsupported(errors.PhaseRegister, "more than two results")
	}
	return nil
}

func paramOf(t reflect.Type) (Param, error) {
	switch t {
	case resourceType:
		return Param{Type: t, Kind: KindResource}, nil
	case bytesType:
		return Param{Type: t, Kind: KindBuffer}, nil
	}

	if k, ok := numericKind(t); ok {
		return Param{Type: t, Kind: k}, nil
	}

	switch t.Kind() {
	case reflect.Bool:
		return Param{Type: t, Kind: KindBool}, nil
	case reflect.String:
		return Param{Type: t, Kind: KindString}, nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return Param{Type: t, Kind: KindBuffer}, nil
		}
		return Param{Type: t, Kind: KindSerde}, nil
	case reflect.Pointer:
		if k, ok := numericKind(t.Elem()); ok {
			return Param{Type: t, Kind: KindOptional, Elem: k}, nil
		}
		return Param{Type: t, Kind: KindSerde}, nil
	case reflect.Struct, reflect.Map, reflect.Array, reflect.Interface:
		return Param{Type: t, Kind: KindSerde}, nil
	}
	return Param{}, errors.New(errors.PhaseRegister, errors.KindUnsupported).
		GoType(t.String()).
		Detail("no marshaling for %s", t.Kind()).
		Build()
}

func numericKind(t reflect.Type) (Kind, bool) {
	switch t.Kind() {
	case reflect.Int8:
		return KindI8, true
	case reflect.Uint8:
		return KindU8, true
	case reflect.Int16:
		return KindI16, true
	case reflect.Uint16:
		return KindU16, true
	case reflect.Int32:
		return KindI32, true
	case reflect.Uint32:
		return KindU32, true
	case reflect.Int64, reflect.Int:
		return KindI64, true
	case reflect.Uint64, reflect.Uint, reflect.Uintptr:
		return KindU64, true
	case reflect.Float32:
		return KindF32, true
	case reflect.Float64:
		return KindF64, true
	}
	return KindVoid, false
}

// planFast fills in the fast-call signature and raw-word converters when
// the op is sync, not re-entrant, takes no context and uses numeric types
// only.
func (d *Decl) planFast() {
	if d.Async || d.Reentrant || d.withCtx || d.retErr {
		return
	}

	sig := fastcall.Signature{Args: make([]fastcall.Type, len(d.Params))}
	for i, p := range d.Params {
		ft, ok := p.Kind.FastType()
		if !ok || p.Kind == KindVoid {
			return
		}
		sig.Args[i] = ft
	}
	ret, ok := d.Result.Kind.FastType()
	if !ok {
		return
	}
	sig.Ret = ret
	if sig.Validate() != nil {
		return
	}

	d.fastIn = make([]func(uint64) reflect.Value, len(d.Params))
	for i, p := range d.Params {
		d.fastIn[i] = wordDecoder(p)
	}
	if d.retValue {
		d.fastOut = wordEncoder(d.Result)
	}
	d.Fast = &sig
}

func typeName(v any) string {
	if v == nil {
		return "nil"
	}
	return reflect.TypeOf(v).String()
}
