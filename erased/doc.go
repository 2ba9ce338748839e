// Package erased stores values and pending futures of arbitrary concrete
// type behind a uniform handle.
//
// Every erased value is declared with a capacity in bytes and a fixed
// alignment of 8. Construction panics when the concrete type does not fit;
// a mismatch is a programming error in the op that produced it.
//
//	slot := erased.NewSlot(16, myValue)
//	v := erased.Take[MyValue](slot)
//
// The concrete value is held in a single heap cell addressed by a stable
// pointer, so a future never moves after its first poll. Arena keeps erased
// futures in a reusable slab indexed by small integer keys.
package erased
