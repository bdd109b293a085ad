package tun

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"
)

// aLongTimeAgo is a deadline in the past, used to interrupt blocked I/O.
var aLongTimeAgo = time.Unix(1, 0)

// Async adds context cancellation to a Tun. Reads are serialized with each
// other and so are writes, but a read and a write may run at the same time.
type Async struct {
	dev Tun

	readLock  sync.Mutex
	writeLock sync.Mutex
}

func NewAsync(dev Tun) *Async {
	return &Async{dev: dev}
}

// Recv waits for one frame or for ctx to end, whichever comes first.
func (a *Async) Recv(ctx context.Context, b []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	a.readLock.Lock()
	defer a.readLock.Unlock()

	release := watch(ctx, a.dev.SetReadDeadline)
	n, err := a.dev.Read(b)
	release()

	return n, contextError(ctx, err)
}

// Send writes one frame unless ctx ends first.
func (a *Async) Send(ctx context.Context, b []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	a.writeLock.Lock()
	defer a.writeLock.Unlock()

	release := watch(ctx, a.dev.SetWriteDeadline)
	n, err := a.dev.Write(b)
	release()

	return n, contextError(ctx, err)
}

// ReadPackets receives frames until ctx ends, the device is closed or fn
// returns an error. The slice passed to fn is reused for the next frame.
// A closed device or an ended context is a normal stop and returns nil.
func (a *Async) ReadPackets(ctx context.Context, fn func(frame []byte) error) error {
	mtu, err := a.dev.MTU()
	if err != nil || mtu <= 0 {
		mtu = MTU
	}
	buf := make([]byte, BufferSize(mtu, a.dev.Mode(), a.dev.PacketInfo()))

	for {
		n, err := a.Recv(ctx, buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, os.ErrClosed) {
				return nil
			}
			return err
		}

		if err := fn(buf[:n]); err != nil {
			return err
		}
	}
}

// watch arms a deadline in the past when ctx ends. The returned func must be
// called once the I/O returned; it waits for the watcher and clears the
// deadline again.
func watch(ctx context.Context, setDeadline func(time.Time) error) func() {
	if ctx.Done() == nil {
		return func() {}
	}

	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-ctx.Done():
			setDeadline(aLongTimeAgo)
		case <-done:
		}
	}()

	return func() {
		close(done)
		<-exited
		setDeadline(time.Time{})
	}
}

func contextError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, os.ErrDeadlineExceeded) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
