package resource

import (
	"bytes"
	"sync"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/lfq"

	"github.com/wippyai/opcore/errors"
	"github.com/wippyai/opcore/future"
)

// channelCapacity bounds the number of queued messages per direction.
const channelCapacity = 64

// IOResult is the outcome of an asynchronous read or write.
type IOResult struct {
	Err error
	N   int
}

type channelPair struct {
	closed atomix.Uint32
	ab     lfq.SPSC[[]byte]
	ba     lfq.SPSC[[]byte]
	a, b   ChannelEnd
}

// ChannelEnd is one side of an in-memory bidirectional channel. Writes on
// one end are read in order from the other. Each direction is a bounded
// lock-free SPSC queue; the per-end read and write locks keep it single
// producer and single consumer.
type ChannelEnd struct {
	name   string
	pair   *channelPair
	send   *lfq.SPSC[[]byte]
	recv   *lfq.SPSC[[]byte]
	peer   *ChannelEnd
	rest   []byte
	rmu    sync.Mutex
	wmu    sync.Mutex
	wakeMu sync.Mutex
	waker  future.Waker
}

// ChannelPair creates two connected channel ends.
func ChannelPair(name string) (*ChannelEnd, *ChannelEnd) {
	p := &channelPair{}
	p.ab.Init(channelCapacity)
	p.ba.Init(channelCapacity)

	p.a = ChannelEnd{name: name, pair: p, send: &p.ab, recv: &p.ba}
	p.b = ChannelEnd{name: name, pair: p, send: &p.ba, recv: &p.ab}
	p.a.peer = &p.b
	p.b.peer = &p.a
	return &p.a, &p.b
}

func (c *ChannelEnd) Name() string { return c.name }

func (c *ChannelEnd) isClosed() bool { return c.pair.closed.Load() != 0 }

// TryWrite queues a copy of p for the peer. It returns iox.ErrWouldBlock
// when the queue is full. Empty writes queue nothing, so a read of (0, nil)
// always means the channel is closed and drained.
func (c *ChannelEnd) TryWrite(p []byte) (int, error) {
	if c.isClosed() {
		return 0, errors.Closed(c.name)
	}
	if len(p) == 0 {
		return 0, nil
	}

	c.wmu.Lock()
	msg := bytes.Clone(p)
	err := c.send.Enqueue(&msg)
	c.wmu.Unlock()
	if err != nil {
		return 0, err
	}

	c.peer.wake()
	return len(p), nil
}

// TryRead copies the next queued bytes into p. It returns
// iox.ErrWouldBlock when nothing is queued and (0, nil) once the channel is
// closed and drained.
func (c *ChannelEnd) TryRead(p []byte) (int, error) {
	c.rmu.Lock()
	defer c.rmu.Unlock()

	if len(c.rest) == 0 {
		msg, err := c.recv.Dequeue()
		if err != nil {
			if iox.IsWouldBlock(err) && c.isClosed() {
				return 0, nil
			}
			return 0, err
		}
		c.rest = msg
	}

	n := copy(p, c.rest)
	c.rest = c.rest[n:]
	return n, nil
}

// Read blocks with adaptive backoff until data is available or the
// channel is closed.
func (c *ChannelEnd) Read(p []byte) (int, error) {
	var bo iox.Backoff
	for {
		n, err := c.TryRead(p)
		if !iox.IsWouldBlock(err) {
			return n, err
		}
		bo.Wait()
	}
}

// Write blocks with adaptive backoff until the peer has room.
func (c *ChannelEnd) Write(p []byte) (int, error) {
	var bo iox.Backoff
	for {
		n, err := c.TryWrite(p)
		if !iox.IsWouldBlock(err) {
			return n, err
		}
		bo.Wait()
	}
}

// ReadFuture returns a future that completes with the next read into p.
// A pending poll registers the waker, which the peer's next write or a
// close fires.
func (c *ChannelEnd) ReadFuture(p []byte) future.Future[IOResult] {
	return future.Func[IOResult](func(cx *future.Context) future.Poll[IOResult] {
		n, err := c.TryRead(p)
		if !iox.IsWouldBlock(err) {
			return future.Ready(IOResult{N: n, Err: err})
		}

		c.wakeMu.Lock()
		c.waker = cx.Waker()
		c.wakeMu.Unlock()

		// A write landing between TryRead and registering the waker
		// would otherwise be missed.
		n, err = c.TryRead(p)
		if !iox.IsWouldBlock(err) {
			return future.Ready(IOResult{N: n, Err: err})
		}
		return future.Pending[IOResult]()
	})
}

func (c *ChannelEnd) wake() {
	c.wakeMu.Lock()
	w := c.waker
	c.waker = nil
	c.wakeMu.Unlock()
	if w != nil {
		w.Wake()
	}
}

// Close closes both ends. Queued data remains readable.
func (c *ChannelEnd) Close() error {
	c.pair.closed.Add(1)
	c.wake()
	c.peer.wake()
	return nil
}
