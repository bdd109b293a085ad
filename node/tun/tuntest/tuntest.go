// Package tuntest provides an in-memory tun.Tun for tests that cannot create
// real devices.
package tuntest

import (
	"net/netip"
	"os"
	"sync"
	"time"

	"github.com/caldog20/tuntap/node/tun"
)

const queueLen = 64

// Device behaves like a tun device whose kernel side is a pair of channels:
// frames pushed with Inject are returned by Read, frames passed to Write show
// up on Written.
type Device struct {
	name       string
	mode       tun.Mode
	packetInfo bool
	mtu        int

	in  chan []byte
	out chan []byte

	mu            sync.Mutex
	readDeadline  time.Time
	writeDeadline time.Time
	wakeRead      chan struct{}
	wakeWrite     chan struct{}
	addr          netip.Prefix

	closeOnce sync.Once
	closed    chan struct{}
}

func New(name string, mode tun.Mode, packetInfo bool) *Device {
	return &Device{
		name:       name,
		mode:       mode,
		packetInfo: packetInfo,
		mtu:        tun.MTU,
		in:         make(chan []byte, queueLen),
		out:        make(chan []byte, queueLen),
		wakeRead:   make(chan struct{}, 1),
		wakeWrite:  make(chan struct{}, 1),
		closed:     make(chan struct{}),
	}
}

// Inject queues a frame as if the kernel had routed it into the device.
func (d *Device) Inject(frame []byte) {
	d.in <- append([]byte(nil), frame...)
}

// Written returns the frames the program wrote into the device.
func (d *Device) Written() <-chan []byte {
	return d.out
}

// Address returns the prefix passed to ConfigureIPAddress.
func (d *Device) Address() netip.Prefix {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.addr
}

func (d *Device) Read(b []byte) (int, error) {
	for {
		n, again, err := d.readOnce(b)
		if !again {
			return n, err
		}
	}
}

// readOnce waits for a frame, close, the deadline or a deadline change. The
// last one asks the caller to look at the new deadline.
func (d *Device) readOnce(b []byte) (int, bool, error) {
	d.mu.Lock()
	deadline := d.readDeadline
	d.mu.Unlock()

	expired, stop, err := deadlineTimer(deadline)
	if err != nil {
		return 0, false, err
	}
	defer stop()

	select {
	case <-d.closed:
		return 0, false, os.ErrClosed
	default:
	}

	select {
	case frame := <-d.in:
		return copy(b, frame), false, nil
	case <-d.closed:
		return 0, false, os.ErrClosed
	case <-expired:
		return 0, false, os.ErrDeadlineExceeded
	case <-d.wakeRead:
		return 0, true, nil
	}
}

// Write blocks while the Written queue is full, like a device whose kernel
// side stopped draining.
func (d *Device) Write(b []byte) (int, error) {
	for {
		n, again, err := d.writeOnce(b)
		if !again {
			return n, err
		}
	}
}

func (d *Device) writeOnce(b []byte) (int, bool, error) {
	d.mu.Lock()
	deadline := d.writeDeadline
	d.mu.Unlock()

	expired, stop, err := deadlineTimer(deadline)
	if err != nil {
		return 0, false, err
	}
	defer stop()

	select {
	case <-d.closed:
		return 0, false, os.ErrClosed
	default:
	}

	select {
	case d.out <- append([]byte(nil), b...):
		return len(b), false, nil
	case <-d.closed:
		return 0, false, os.ErrClosed
	case <-expired:
		return 0, false, os.ErrDeadlineExceeded
	case <-d.wakeWrite:
		return 0, true, nil
	}
}

// deadlineTimer returns a channel firing at deadline, nil for no deadline.
func deadlineTimer(deadline time.Time) (<-chan time.Time, func(), error) {
	if deadline.IsZero() {
		return nil, func() {}, nil
	}
	wait := time.Until(deadline)
	if wait <= 0 {
		return nil, nil, os.ErrDeadlineExceeded
	}
	t := time.NewTimer(wait)
	return t.C, func() { t.Stop() }, nil
}

func (d *Device) Name() string {
	return d.name
}

func (d *Device) Mode() tun.Mode {
	return d.mode
}

func (d *Device) PacketInfo() bool {
	return d.packetInfo
}

func (d *Device) MTU() (int, error) {
	return d.mtu, nil
}

func (d *Device) ConfigureIPAddress(addr netip.Prefix) error {
	d.mu.Lock()
	d.addr = addr
	d.mu.Unlock()
	return nil
}

func (d *Device) SetReadDeadline(t time.Time) error {
	d.mu.Lock()
	d.readDeadline = t
	d.mu.Unlock()
	notify(d.wakeRead)
	return nil
}

func (d *Device) SetWriteDeadline(t time.Time) error {
	d.mu.Lock()
	d.writeDeadline = t
	d.mu.Unlock()
	notify(d.wakeWrite)
	return nil
}

func notify(c chan struct{}) {
	select {
	case c <- struct{}{}:
	default:
	}
}

func (d *Device) Close() error {
	d.closeOnce.Do(func() {
		close(d.closed)
	})
	return nil
}
