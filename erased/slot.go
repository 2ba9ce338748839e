package erased

import (
	"fmt"
	"reflect"
	"unsafe"
)

// Align is the alignment every erased value must satisfy.
const Align = 8

func checkLayout[T any](capacity uintptr) {
	var zero T
	size, align := unsafe.Sizeof(zero), unsafe.Alignof(zero)
	if size > capacity {
		panic(fmt.Sprintf("erased: %v needs %d bytes, capacity is %d", reflect.TypeFor[T](), size, capacity))
	}
	if align > Align {
		panic(fmt.Sprintf("erased: %v needs alignment %d, maximum is %d", reflect.TypeFor[T](), align, Align))
	}
}

// dropper returns the teardown for values of type T. Values implementing
// Drop() or Close() error have it called; everything else is released to
// the collector.
func dropper[T any]() func(unsafe.Pointer) {
	return func(p unsafe.Pointer) {
		switch v := any((*T)(p)).(type) {
		case interface{ Drop() }:
			v.Drop()
		case interface{ Close() error }:
			_ = v.Close()
		}
	}
}

// Slot holds one value of an erased type.
type Slot struct {
	ptr      unsafe.Pointer
	typ      reflect.Type
	drop     func(unsafe.Pointer)
	capacity uintptr
}

// NewSlot stores v in a slot of the given capacity.
func NewSlot[T any](capacity uintptr, v T) *Slot {
	checkLayout[T](capacity)
	cell := new(T)
	*cell = v
	return &Slot{
		ptr:      unsafe.Pointer(cell),
		typ:      reflect.TypeFor[T](),
		drop:     dropper[T](),
		capacity: capacity,
	}
}

// Capacity returns the declared capacity in bytes.
func (s *Slot) Capacity() uintptr { return s.capacity }

// Empty reports whether the value was taken or dropped.
func (s *Slot) Empty() bool { return s.ptr == nil }

// Take moves the value out of the slot. The stored drop is disarmed. It
// panics when the slot is empty or R is not the stored type.
func Take[R any](s *Slot) R {
	if s.ptr == nil {
		panic("erased: Take from empty slot")
	}
	if want := reflect.TypeFor[R](); want != s.typ {
		panic(fmt.Sprintf("erased: Take[%v] from slot holding %v", want, s.typ))
	}
	v := *(*R)(s.ptr)
	s.ptr = nil
	return v
}

// Drop runs the stored teardown if the value is still present.
func (s *Slot) Drop() {
	if s.ptr == nil {
		return
	}
	p := s.ptr
	s.ptr = nil
	s.drop(p)
}
