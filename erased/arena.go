package erased

import (
	"github.com/wippyai/opcore/future"
)

// DefaultCapacity is the slot size used when none is configured.
const DefaultCapacity uintptr = 64

// Key addresses a future stored in an Arena.
type Key uint32

type arenaEntry[O any] struct {
	fut  *Future[O]
	used bool
}

// Arena is a slab of erased futures with free-list key reuse. The initial
// size is a hint for expected concurrency; the slab grows past it.
type Arena[O any] struct {
	slotSize uintptr
	entries  []arenaEntry[O]
	free     []Key
	live     int
}

// NewArena creates an arena whose futures are checked against slotSize.
func NewArena[O any](slotSize uintptr, hint int) *Arena[O] {
	if slotSize == 0 {
		slotSize = DefaultCapacity
	}
	return &Arena[O]{
		slotSize: slotSize,
		entries:  make([]arenaEntry[O], 0, hint),
	}
}

// SlotSize returns the per-future capacity.
func (a *Arena[O]) SlotSize() uintptr { return a.slotSize }

// Put stores an already-erased future and returns its key.
func (a *Arena[O]) Put(f *Future[O]) Key {
	a.live++
	if n := len(a.free); n > 0 {
		k := a.free[n-1]
		a.free = a.free[:n-1]
		a.entries[k] = arenaEntry[O]{fut: f, used: true}
		return k
	}
	a.entries = append(a.entries, arenaEntry[O]{fut: f, used: true})
	return Key(len(a.entries) - 1)
}

// Insert erases f at the arena's slot size and stores it.
func Insert[O any](a *Arena[O], f future.Future[O]) Key {
	return a.Put(Box(a.slotSize, f))
}

// Poll polls the future at k. A ready future is removed and its key
// becomes reusable.
func (a *Arena[O]) Poll(k Key, cx *future.Context) (future.Poll[O], bool) {
	if int(k) >= len(a.entries) || !a.entries[k].used {
		return future.Poll[O]{}, false
	}
	p := a.entries[k].fut.Poll(cx)
	if p.Ready {
		a.release(k)
	}
	return p, true
}

// Remove drops the future at k without completing it.
func (a *Arena[O]) Remove(k Key) bool {
	if int(k) >= len(a.entries) || !a.entries[k].used {
		return false
	}
	a.entries[k].fut.Drop()
	a.release(k)
	return true
}

func (a *Arena[O]) release(k Key) {
	a.entries[k] = arenaEntry[O]{}
	a.free = append(a.free, k)
	a.live--
}

// Keys returns the keys of all stored futures in slab order.
func (a *Arena[O]) Keys() []Key {
	keys := make([]Key, 0, a.live)
	for i := range a.entries {
		if a.entries[i].used {
			keys = append(keys, Key(i))
		}
	}
	return keys
}

// Len returns the number of stored futures.
func (a *Arena[O]) Len() int { return a.live }

// Clear drops every stored future.
func (a *Arena[O]) Clear() {
	for _, k := range a.Keys() {
		a.Remove(k)
	}
}
