package resource

import (
	stderrors "errors"
	"io"
	"reflect"
	"sync"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"

	"github.com/wippyai/opcore/errors"
)

type readResult struct {
	err error
	n   int
}

// FullDuplex joins a read half and a write half into one resource. Each
// half has its own lock, so one read and one write may be in flight at the
// same time. Close cancels a pending read, which then reports no data,
// and waits for an in-flight write before closing the write half.
type FullDuplex struct {
	name   string
	r      io.Reader
	w      io.Writer
	cancel *CancelHandle
	closed atomix.Uint32

	rmu sync.Mutex
	wmu sync.Mutex
}

// TryReader is a read half that reports iox.ErrWouldBlock instead of
// blocking. FullDuplex polls such halves in place.
type TryReader interface {
	TryRead(p []byte) (int, error)
}

// NewFullDuplex wraps r and w. Halves implementing io.Closer are closed
// when the resource is closed; a value passed as both halves is closed
// once, after the write half is idle.
//
// A blocking read half that is not a TryReader is read on a helper
// goroutine so the read can be cancelled. Its Read must return once it is
// closed, or the helper stays blocked after a cancelled read; bytes it
// reads after cancellation are discarded.
func NewFullDuplex(name string, r io.Reader, w io.Writer) *FullDuplex {
	return &FullDuplex{
		name:   name,
		r:      r,
		w:      w,
		cancel: NewCancelHandle(),
	}
}

func (d *FullDuplex) Name() string { return d.name }

// CancelHandle returns the handle guarding the read direction.
func (d *FullDuplex) CancelHandle() *CancelHandle { return d.cancel }

func (d *FullDuplex) isClosed() bool { return d.closed.Load() != 0 }

// Read reads from the read half. A read pending when the cancel handle
// fires returns (0, nil).
func (d *FullDuplex) Read(p []byte) (int, error) {
	if d.isClosed() {
		return 0, errors.Closed(d.name)
	}

	d.rmu.Lock()
	defer d.rmu.Unlock()

	if d.cancel.Cancelled() {
		return 0, nil
	}
	if tr, ok := d.r.(TryReader); ok {
		return d.pollRead(tr, p)
	}

	// The read half writes into a private buffer so a cancelled read
	// cannot touch p after returning.
	buf := make([]byte, len(p))
	ch := make(chan readResult, 1)
	go func() {
		n, err := d.r.Read(buf)
		ch <- readResult{n: n, err: err}
	}()

	select {
	case res := <-ch:
		if res.err != nil && d.cancel.Cancelled() {
			return 0, nil
		}
		n := copy(p, buf[:res.n])
		return n, res.err
	case <-d.cancel.Done():
		return 0, nil
	}
}

func (d *FullDuplex) pollRead(tr TryReader, p []byte) (int, error) {
	var bo iox.Backoff
	for {
		n, err := tr.TryRead(p)
		if !iox.IsWouldBlock(err) {
			if err != nil && d.cancel.Cancelled() {
				return 0, nil
			}
			return n, err
		}
		if d.cancel.Cancelled() {
			return 0, nil
		}
		bo.Wait()
	}
}

// Write writes to the write half. It is not affected by cancellation.
func (d *FullDuplex) Write(p []byte) (int, error) {
	if d.isClosed() {
		return 0, errors.Closed(d.name)
	}

	d.wmu.Lock()
	defer d.wmu.Unlock()

	if d.isClosed() {
		return 0, errors.Closed(d.name)
	}
	return d.w.Write(p)
}

// Shutdown closes the write half if it supports closing.
func (d *FullDuplex) Shutdown() error {
	if d.isClosed() {
		return errors.Closed(d.name)
	}

	d.wmu.Lock()
	defer d.wmu.Unlock()

	if s, ok := d.w.(Shutdowner); ok {
		return s.Shutdown()
	}
	if c, ok := d.w.(io.Closer); ok && !sameObject(d.r, d.w) {
		return c.Close()
	}
	return errors.Unsupported(errors.PhaseResource, "shutdown")
}

// Close cancels any pending read, closes the read half, waits for an
// in-flight write to finish, then closes the write half.
func (d *FullDuplex) Close() error {
	if d.closed.Add(1) != 1 {
		return nil
	}
	d.cancel.Cancel()

	shared := sameObject(d.r, d.w)
	var errs []error
	if c, ok := d.r.(io.Closer); ok && !shared {
		errs = append(errs, c.Close())
	}

	d.wmu.Lock()
	if c, ok := d.w.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	d.wmu.Unlock()

	return stderrors.Join(errs...)
}

func sameObject(a, b any) bool {
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if !ra.IsValid() || !rb.IsValid() || ra.Type() != rb.Type() || !ra.Comparable() {
		return false
	}
	return a == b
}
