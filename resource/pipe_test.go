package resource

import (
	stderrors "errors"
	"sync/atomic"
	"testing"

	"code.hybscloud.com/iox"

	"github.com/wippyai/opcore/errors"
	"github.com/wippyai/opcore/future"
)

func TestChannelPair_TryReadWrite(t *testing.T) {
	a, b := ChannelPair("chan")

	buf := make([]byte, 4)
	if _, err := b.TryRead(buf); !iox.IsWouldBlock(err) {
		t.Fatalf("TryRead on empty channel: %v", err)
	}

	if n, err := a.TryWrite([]byte("abcdef")); err != nil || n != 6 {
		t.Fatalf("TryWrite = %d, %v", n, err)
	}

	if n, err := a.TryWrite(nil); err != nil || n != 0 {
		t.Fatalf("empty TryWrite = %d, %v", n, err)
	}

	n, err := b.TryRead(buf)
	if err != nil || string(buf[:n]) != "abcd" {
		t.Fatalf("first TryRead = %q, %v", buf[:n], err)
	}
	n, err = b.TryRead(buf)
	if err != nil || string(buf[:n]) != "ef" {
		t.Fatalf("second TryRead = %q, %v", buf[:n], err)
	}
	if _, err := b.TryRead(buf); !iox.IsWouldBlock(err) {
		t.Fatalf("empty write should queue nothing, TryRead: %v", err)
	}
}

func TestChannelPair_Backpressure(t *testing.T) {
	a, _ := ChannelPair("chan")

	var err error
	for i := 0; i <= channelCapacity*2; i++ {
		if _, err = a.TryWrite([]byte{byte(i)}); err != nil {
			break
		}
	}
	if !iox.IsWouldBlock(err) {
		t.Fatalf("expected ErrWouldBlock once full, got %v", err)
	}
}

func TestChannelPair_BlockingRoundTrip(t *testing.T) {
	a, b := ChannelPair("chan")

	done := make(chan string, 1)
	go func() {
		buf := make([]byte, 16)
		n, _ := b.Read(buf)
		done <- string(buf[:n])
	}()

	if _, err := a.Write([]byte("ping")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := <-done; got != "ping" {
		t.Fatalf("Read = %q", got)
	}
}

func TestChannelPair_ReadFutureWakes(t *testing.T) {
	a, b := ChannelPair("chan")

	var wakes atomic.Int32
	cx := future.NewContext(future.WakerFunc(func() { wakes.Add(1) }))
	buf := make([]byte, 8)
	f := b.ReadFuture(buf)

	if p := f.Poll(cx); p.Ready {
		t.Fatal("read future should be pending on an empty channel")
	}

	_, _ = a.TryWrite([]byte("hi"))
	if wakes.Load() != 1 {
		t.Fatalf("wakes = %d, want 1", wakes.Load())
	}

	p := f.Poll(cx)
	if !p.Ready || p.Value.Err != nil || string(buf[:p.Value.N]) != "hi" {
		t.Fatalf("Poll after write = %+v", p)
	}
}

func TestChannelPair_Close(t *testing.T) {
	a, b := ChannelPair("chan")
	_, _ = a.TryWrite([]byte("last"))

	var wakes atomic.Int32
	f := a.ReadFuture(make([]byte, 4))
	f.Poll(future.NewContext(future.WakerFunc(func() { wakes.Add(1) })))

	_ = b.Close()
	if wakes.Load() != 1 {
		t.Fatal("close should wake pending readers")
	}

	if _, err := a.TryWrite([]byte("x")); !stderrors.Is(err, errors.ErrClosed) {
		t.Fatalf("TryWrite after close: %v", err)
	}

	buf := make([]byte, 8)
	n, err := b.TryRead(buf)
	if err != nil || string(buf[:n]) != "last" {
		t.Fatalf("queued data should drain after close, got %q, %v", buf[:n], err)
	}
	n, err = b.Read(buf)
	if n != 0 || err != nil {
		t.Fatalf("drained closed channel = (%d, %v), want (0, nil)", n, err)
	}
}
