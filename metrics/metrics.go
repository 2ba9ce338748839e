// Package metrics counts op dispatch and completion events.
//
// Every call produces exactly one dispatch event followed by exactly one
// completion or error event. Counters are atomic so diagnostics can read
// them while the loop is running.
package metrics

import (
	"sync"

	"code.hybscloud.com/atomix"
)

// Event is a point in an op call's lifecycle.
type Event uint8

const (
	Dispatched Event = iota
	DispatchedFast
	DispatchedAsync
	Completed
	Error
	CompletedAsync
	ErrorAsync
)

func (e Event) String() string {
	switch e {
	case Dispatched:
		return "dispatched"
	case DispatchedFast:
		return "dispatched_fast"
	case DispatchedAsync:
		return "dispatched_async"
	case Completed:
		return "completed"
	case Error:
		return "error"
	case CompletedAsync:
		return "completed_async"
	case ErrorAsync:
		return "error_async"
	default:
		return "unknown"
	}
}

// Summary is a snapshot of counters for one op or the aggregate.
type Summary struct {
	OpsDispatchedSync  uint64 `json:"ops_dispatched_sync"`
	OpsDispatchedAsync uint64 `json:"ops_dispatched_async"`
	OpsDispatchedFast  uint64 `json:"ops_dispatched_fast"`
	OpsCompleted       uint64 `json:"ops_completed"`
	OpsErrored         uint64 `json:"ops_errored"`
	OpsCompletedAsync  uint64 `json:"ops_completed_async"`
	OpsErroredAsync    uint64 `json:"ops_errored_async"`
}

// Add returns the pointwise sum of s and o.
func (s Summary) Add(o Summary) Summary {
	return Summary{
		OpsDispatchedSync:  s.OpsDispatchedSync + o.OpsDispatchedSync,
		OpsDispatchedAsync: s.OpsDispatchedAsync + o.OpsDispatchedAsync,
		OpsDispatchedFast:  s.OpsDispatchedFast + o.OpsDispatchedFast,
		OpsCompleted:       s.OpsCompleted + o.OpsCompleted,
		OpsErrored:         s.OpsErrored + o.OpsErrored,
		OpsCompletedAsync:  s.OpsCompletedAsync + o.OpsCompletedAsync,
		OpsErroredAsync:    s.OpsErroredAsync + o.OpsErroredAsync,
	}
}

// Outstanding returns the number of async calls not yet completed.
func (s Summary) Outstanding() uint64 {
	if s.OpsCompletedAsync >= s.OpsDispatchedAsync {
		return 0
	}
	return s.OpsDispatchedAsync - s.OpsCompletedAsync
}

// HasOutstandingOps reports whether any async call is still pending.
func (s Summary) HasOutstandingOps() bool {
	return s.OpsCompletedAsync < s.OpsDispatchedAsync
}

type counters struct {
	dispatchedSync  atomix.Uint64
	dispatchedAsync atomix.Uint64
	dispatchedFast  atomix.Uint64
	completed       atomix.Uint64
	errored         atomix.Uint64
	completedAsync  atomix.Uint64
	erroredAsync    atomix.Uint64
}

func (c *counters) snapshot() Summary {
	return Summary{
		OpsDispatchedSync:  c.dispatchedSync.Load(),
		OpsDispatchedAsync: c.dispatchedAsync.Load(),
		OpsDispatchedFast:  c.dispatchedFast.Load(),
		OpsCompleted:       c.completed.Load(),
		OpsErrored:         c.errored.Load(),
		OpsCompletedAsync:  c.completedAsync.Load(),
		OpsErroredAsync:    c.erroredAsync.Load(),
	}
}

// EventFn observes every tracked event.
type EventFn func(id uint32, name string, ev Event)

// Tracker holds per-op counters indexed by op ID.
type Tracker struct {
	mu    sync.RWMutex
	names []string
	ops   []*counters
	hooks []EventFn
}

// NewTracker creates a tracker with the given hooks.
func NewTracker(hooks ...EventFn) *Tracker {
	return &Tracker{hooks: hooks}
}

// Register adds an op and returns its ID. IDs are dense and start at 0.
func (t *Tracker) Register(name string) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.names = append(t.names, name)
	t.ops = append(t.ops, &counters{})
	return uint32(len(t.ops) - 1)
}

// AddHook installs an additional event hook.
func (t *Tracker) AddHook(fn EventFn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hooks = append(t.hooks, fn)
}

// Track records ev for op id. Unknown IDs are ignored.
//
// A fast dispatch is a sync dispatch: DispatchedFast increments both
// OpsDispatchedFast and OpsDispatchedSync. Errors count as completions too:
// Error increments both OpsCompleted and OpsErrored, ErrorAsync both
// OpsCompletedAsync and OpsErroredAsync.
func (t *Tracker) Track(id uint32, ev Event) {
	t.mu.RLock()
	if int(id) >= len(t.ops) {
		t.mu.RUnlock()
		return
	}
	c, name, hooks := t.ops[id], t.names[id], t.hooks
	t.mu.RUnlock()

	switch ev {
	case Dispatched:
		c.dispatchedSync.Add(1)
	case DispatchedFast:
		c.dispatchedSync.Add(1)
		c.dispatchedFast.Add(1)
	case DispatchedAsync:
		c.dispatchedAsync.Add(1)
	case Completed:
		c.completed.Add(1)
	case Error:
		c.completed.Add(1)
		c.errored.Add(1)
	case CompletedAsync:
		c.completedAsync.Add(1)
	case ErrorAsync:
		c.completedAsync.Add(1)
		c.erroredAsync.Add(1)
	}

	for _, fn := range hooks {
		fn(id, name, ev)
	}
}

// Op returns the counters for one op.
func (t *Tracker) Op(id uint32) Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if int(id) >= len(t.ops) {
		return Summary{}
	}
	return t.ops[id].snapshot()
}

// Name returns the registered name of op id.
func (t *Tracker) Name(id uint32) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if int(id) >= len(t.names) {
		return ""
	}
	return t.names[id]
}

// Len returns the number of registered ops.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.ops)
}

// Aggregate returns the pointwise sum over all ops.
func (t *Tracker) Aggregate() Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var sum Summary
	for _, c := range t.ops {
		sum = sum.Add(c.snapshot())
	}
	return sum
}

// HasOutstandingOps reports whether any async call is still pending.
func (t *Tracker) HasOutstandingOps() bool {
	return t.Aggregate().HasOutstandingOps()
}
