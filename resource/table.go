package resource

import (
	stderrors "errors"
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/opcore/errors"
)

// Table maps resource IDs to live resources. It is safe for concurrent
// use; observers are notified outside the table lock.
type Table struct {
	mu     sync.RWMutex
	slab   slab
	closed bool

	obsMu     sync.RWMutex
	observers []Observer
}

// NewTable creates an empty resource table.
func NewTable() *Table {
	return &Table{slab: newSlab()}
}

// Add stores r and returns its fresh ID. Adding to a closed table closes
// r and returns 0.
func (t *Table) Add(r Resource) ID {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		_ = r.Close()
		Logger().Warn("resource added to closed table", zap.String("name", r.Name()))
		return 0
	}
	id := t.slab.insert(r)
	t.mu.Unlock()

	Logger().Debug("resource added", zap.Uint32("rid", uint32(id)), zap.String("name", r.Name()))
	t.notify(Event{Type: EventAdded, ID: id, Resource: r})
	return id
}

// Resource returns the resource stored under id.
func (t *Table) Resource(id ID) (Resource, error) {
	t.mu.RLock()
	r, ok := t.slab.get(id)
	t.mu.RUnlock()
	if !ok {
		return nil, errors.BadResourceID(uint32(id))
	}
	return r, nil
}

// Get returns the resource under id as T without removing it.
func Get[T any](t *Table, id ID) (T, error) {
	var zero T
	r, err := t.Resource(id)
	if err != nil {
		return zero, err
	}
	v, ok := r.(T)
	if !ok {
		return zero, errors.BadResource(uint32(id), r.Name(), reflect.TypeFor[T]().String())
	}
	return v, nil
}

// Take removes the resource under id and returns it as T. The caller
// becomes responsible for closing it. A wrong type leaves the entry in
// place.
func Take[T any](t *Table, id ID) (T, error) {
	var zero T

	t.mu.Lock()
	r, ok := t.slab.get(id)
	if !ok {
		t.mu.Unlock()
		return zero, errors.BadResourceID(uint32(id))
	}
	v, ok := r.(T)
	if !ok {
		t.mu.Unlock()
		return zero, errors.BadResource(uint32(id), r.Name(), reflect.TypeFor[T]().String())
	}
	t.slab.remove(id)
	t.mu.Unlock()

	Logger().Debug("resource taken", zap.Uint32("rid", uint32(id)), zap.String("name", r.Name()))
	t.notify(Event{Type: EventTaken, ID: id, Resource: r})
	return v, nil
}

// Close removes the resource under id and closes it.
func (t *Table) Close(id ID) error {
	t.mu.Lock()
	r, ok := t.slab.remove(id)
	t.mu.Unlock()
	if !ok {
		return errors.BadResourceID(uint32(id))
	}

	err := r.Close()
	if err != nil {
		Logger().Debug("resource close failed", zap.Uint32("rid", uint32(id)), zap.String("name", r.Name()), zap.Error(err))
	} else {
		Logger().Debug("resource closed", zap.Uint32("rid", uint32(id)), zap.String("name", r.Name()))
	}
	t.notify(Event{Type: EventClosed, ID: id, Resource: r, Err: err})
	return err
}

// Has reports whether id refers to a live resource.
func (t *Table) Has(id ID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.slab.get(id)
	return ok
}

// Entry pairs a resource ID with its name.
type Entry struct {
	Name string
	ID   ID
}

// Names lists live resources in ID order.
func (t *Table) Names() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Entry, 0, t.slab.live)
	t.slab.each(func(id ID, r Resource) bool {
		out = append(out, Entry{ID: id, Name: r.Name()})
		return true
	})
	return out
}

// Len returns the number of live resources.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.slab.live
}

// Each calls fn for every live resource until fn returns false. fn must
// not call back into the table.
func (t *Table) Each(fn func(ID, Resource) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	t.slab.each(fn)
}

// CloseAll closes every resource and rejects further additions.
func (t *Table) CloseAll() error {
	t.mu.Lock()
	t.closed = true
	var ids []ID
	t.slab.each(func(id ID, _ Resource) bool {
		ids = append(ids, id)
		return true
	})
	t.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := t.Close(id); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *Table) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}
