package resource

import "sync"

// CancelHandle signals cancellation of pending reads on one resource.
// Writes never observe it.
type CancelHandle struct {
	once sync.Once
	done chan struct{}
}

// NewCancelHandle returns an armed handle.
func NewCancelHandle() *CancelHandle {
	return &CancelHandle{done: make(chan struct{})}
}

// Cancel fires the handle. Later calls do nothing.
func (c *CancelHandle) Cancel() {
	c.once.Do(func() { close(c.done) })
}

// Done is closed once the handle fires.
func (c *CancelHandle) Done() <-chan struct{} {
	return c.done
}

// Cancelled reports whether Cancel was called.
func (c *CancelHandle) Cancelled() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
