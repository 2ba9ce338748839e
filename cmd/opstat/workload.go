package main

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/wippyai/opcore/future"
	"github.com/wippyai/opcore/op"
	"github.com/wippyai/opcore/resource"
	"github.com/wippyai/opcore/runtime"
)

type pipeIDs struct {
	Read  uint32 `cbor:"read"`
	Write uint32 `cbor:"write"`
}

func workloadOps() []*op.Decl {
	return []*op.Decl{
		op.Must("op_add", func(a, b int32) int32 { return a + b }),
		op.Must("op_concat", func(a, b string) string { return a + b }),
		op.Must("op_sleep", func(ms int32) (int32, error) {
			time.Sleep(time.Duration(ms) * time.Millisecond)
			return ms, nil
		}, op.Spawned()),
		op.Must("op_pipe_open", func(ctx *op.Ctx) pipeIDs {
			r, w := resource.ChannelPair("pipe")
			t := ctx.Resources()
			return pipeIDs{Read: uint32(t.Add(r)), Write: uint32(t.Add(w))}
		}),
		op.Must("op_pipe_write", func(ctx *op.Ctx, id resource.ID, data []byte) (int32, error) {
			end, err := resource.Get[*resource.ChannelEnd](ctx.Resources(), id)
			if err != nil {
				return 0, err
			}
			n, err := end.Write(data)
			return int32(n), err
		}),
		op.Must("op_pipe_read", func(ctx *op.Ctx, id resource.ID) future.Future[op.Result] {
			end, err := resource.Get[*resource.ChannelEnd](ctx.Resources(), id)
			if err != nil {
				return op.Rejected(err)
			}
			buf := make([]byte, 64)
			return future.Map(end.ReadFuture(buf), func(r resource.IOResult) op.Result {
				return op.Result{Value: buf[:r.N], Err: r.Err}
			})
		}),
		op.Must("op_close", func(ctx *op.Ctx, id resource.ID) error {
			return ctx.Resources().Close(id)
		}),
	}
}

// counter is the runtime resolver of the workload.
type counter struct {
	resolved atomic.Uint64
	failed   atomic.Uint64
}

func (c *counter) Resolve(done op.Completion) error {
	c.resolved.Add(1)
	if done.Err != nil {
		c.failed.Add(1)
	}
	return nil
}

type workload struct {
	rt      *runtime.Runtime
	res     *counter
	ids     map[string]op.ID
	calls   int
	async   int
	sleepMS int32
	promise op.PromiseID
}

func newWorkload(cfg runtime.Config, calls, async int, sleepMS int32, opts ...runtime.Option) (*workload, error) {
	res := &counter{}
	rt, err := runtime.New(cfg, append(opts, runtime.WithResolver(res))...)
	if err != nil {
		return nil, err
	}
	decls := workloadOps()
	if _, err := rt.Register(decls...); err != nil {
		_ = rt.Close()
		return nil, err
	}
	ids := make(map[string]op.ID, len(decls))
	for _, d := range decls {
		ids[d.Name], _ = rt.Lookup(d.Name)
	}
	return &workload{rt: rt, res: res, ids: ids, calls: calls, async: async, sleepMS: sleepMS}, nil
}

func (w *workload) nextPromise() op.PromiseID {
	w.promise++
	return w.promise
}

func (w *workload) slow(realm *runtime.Realm, name string, args ...op.Value) (op.Value, error) {
	var rv op.ReturnValue
	realm.CallSlow(w.ids[name], op.Args(args), &rv)
	if thrown, ok := rv.Thrown(); ok {
		return op.Value{}, thrown
	}
	if oe, ok := rv.Get().OpError(); ok {
		return op.Value{}, oe
	}
	return rv.Get(), nil
}

// round runs one pass of every call convention on every realm and drives
// the loop until all async calls are delivered.
func (w *workload) round(ctx context.Context) error {
	pipes := make([]pipeIDs, w.rt.Realms())
	for i := range pipes {
		p, err := w.roundRealm(w.rt.Realm(i))
		if err != nil {
			return err
		}
		pipes[i] = p
	}
	if err := w.rt.Run(ctx); err != nil {
		return err
	}

	for i, p := range pipes {
		for _, id := range []uint32{p.Read, p.Write} {
			if _, err := w.slow(w.rt.Realm(i), "op_close", op.Number(float64(id))); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *workload) roundRealm(realm *runtime.Realm) (pipeIDs, error) {
	var pipe pipeIDs
	for i := 0; i < w.calls; i++ {
		got, err := realm.CallFast(w.ids["op_add"], []uint64{0, uint64(uint32(i)), 1})
		if err != nil {
			return pipe, err
		}
		if int32(uint32(got)) != int32(i)+1 {
			return pipe, fmt.Errorf("op_add(%d, 1) = %d", i, int32(uint32(got)))
		}

		v, err := w.slow(realm, "op_concat", op.String("op"), op.String("core"))
		if err != nil {
			return pipe, err
		}
		if v.Str() != "opcore" {
			return pipe, fmt.Errorf("op_concat = %q", v.Str())
		}
	}

	for i := 0; i < w.async; i++ {
		if err := realm.CallAsync(w.ids["op_sleep"], w.nextPromise(), op.Args{op.Number(float64(w.sleepMS))}); err != nil {
			return pipe, err
		}
	}

	v, err := w.slow(realm, "op_pipe_open")
	if err != nil {
		return pipe, err
	}
	pipe, ok := v.Obj().(pipeIDs)
	if !ok {
		return pipe, fmt.Errorf("op_pipe_open returned %v", v.Obj())
	}
	if err := realm.CallAsync(w.ids["op_pipe_read"], w.nextPromise(), op.Args{op.Number(float64(pipe.Read))}); err != nil {
		return pipe, err
	}
	if _, err := w.slow(realm, "op_pipe_write", op.Number(float64(pipe.Write)), op.Bytes([]byte("ping"))); err != nil {
		return pipe, err
	}
	return pipe, nil
}

func (w *workload) close() error {
	return w.rt.Close()
}
