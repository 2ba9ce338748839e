package state

import (
	"fmt"
	"reflect"
)

type entry struct {
	value    any
	borrowed bool
}

// State is a heterogeneous store keyed by type. It is owned by one
// execution context and accessed from its event loop goroutine only.
type State struct {
	entries map[reflect.Type]*entry
}

// New creates an empty State.
func New() *State {
	return &State{entries: make(map[reflect.Type]*entry)}
}

func typeKey[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}

// Put stores v, replacing any existing value of type T.
func Put[T any](s *State, v T) {
	key := typeKey[T]()
	if e, ok := s.entries[key]; ok {
		if e.borrowed {
			panic(fmt.Sprintf("state: Put of %v while mutably borrowed", key))
		}
		e.value = v
		return
	}
	s.entries[key] = &entry{value: v}
}

// Has reports whether a value of type T is stored.
func Has[T any](s *State) bool {
	_, ok := s.entries[typeKey[T]()]
	return ok
}

// Borrow returns the stored T. It panics if none is stored or T is
// mutably borrowed.
func Borrow[T any](s *State) T {
	v, ok := TryBorrow[T](s)
	if !ok {
		panic(fmt.Sprintf("state: required type %v is not present", typeKey[T]()))
	}
	return v
}

// TryBorrow returns the stored T and whether it was present. It panics if
// T is mutably borrowed.
func TryBorrow[T any](s *State) (T, bool) {
	key := typeKey[T]()
	e, ok := s.entries[key]
	if !ok {
		var zero T
		return zero, false
	}
	if e.borrowed {
		panic(fmt.Sprintf("state: Borrow of %v while mutably borrowed", key))
	}
	return e.value.(T), true
}

// BorrowMut returns a pointer to the stored T and a release function.
// Writes through the pointer are visible to later borrows once released.
// It panics if T is absent or already mutably borrowed.
func BorrowMut[T any](s *State) (*T, func()) {
	p, release, ok := TryBorrowMut[T](s)
	if !ok {
		panic(fmt.Sprintf("state: required type %v is not present", typeKey[T]()))
	}
	return p, release
}

// TryBorrowMut is BorrowMut reporting absence instead of panicking.
// A re-entrant mutable borrow still panics.
func TryBorrowMut[T any](s *State) (*T, func(), bool) {
	key := typeKey[T]()
	e, ok := s.entries[key]
	if !ok {
		return nil, nil, false
	}
	if e.borrowed {
		panic(fmt.Sprintf("state: %v is already mutably borrowed", key))
	}
	e.borrowed = true
	v := e.value.(T)
	released := false
	return &v, func() {
		if released {
			return
		}
		released = true
		e.value = v
		e.borrowed = false
	}, true
}

// With runs fn with mutable access to the stored T.
func With[T any](s *State, fn func(*T)) {
	p, release := BorrowMut[T](s)
	defer release()
	fn(p)
}

// Take removes and returns the stored T. It panics if none is stored.
func Take[T any](s *State) T {
	v, ok := TryTake[T](s)
	if !ok {
		panic(fmt.Sprintf("state: required type %v is not present", typeKey[T]()))
	}
	return v
}

// TryTake removes and returns the stored T if present.
func TryTake[T any](s *State) (T, bool) {
	key := typeKey[T]()
	e, ok := s.entries[key]
	if !ok {
		var zero T
		return zero, false
	}
	if e.borrowed {
		panic(fmt.Sprintf("state: Take of %v while mutably borrowed", key))
	}
	delete(s.entries, key)
	return e.value.(T), true
}

// Len returns the number of stored types.
func (s *State) Len() int {
	return len(s.entries)
}

// Clear drops every stored value. Values implementing Close() error or
// Drop() are torn down, mirroring context teardown.
func (s *State) Clear() {
	for key, e := range s.entries {
		switch v := e.value.(type) {
		case interface{ Close() error }:
			_ = v.Close()
		case interface{ Drop() }:
			v.Drop()
		}
		delete(s.entries, key)
	}
}
