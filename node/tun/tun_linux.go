//go:build linux

package tun

import (
	"fmt"
	"net/netip"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/caldog20/tuntap/pkg/netconf"
)

const cloneDevice = "/dev/net/tun"

// Iface is a TUN or TAP device backed by the Linux tun driver.
type Iface struct {
	file       *os.File
	name       string
	mode       Mode
	packetInfo bool
	closeOnce  sync.Once
	closeErr   error
}

// Open creates the device described by cfg, or attaches to it if a
// persistent device with that name already exists.
func Open(cfg Config) (Tun, error) {
	return OpenIface(cfg)
}

func OpenIface(cfg Config) (*Iface, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}

	// The descriptor is non-blocking so the runtime poller owns it and Close
	// interrupts a pending Read.
	// https://github.com/golang/go/issues/30426#issuecomment-470335255
	fd, err := unix.Open(cloneDevice, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cloneDevice, err)
	}

	ifr, err := unix.NewIfreq(cfg.Name)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("%w: %q", ErrNameTooLong, cfg.Name)
	}
	ifr.SetUint16(ifreqFlags(cfg.Mode, cfg.PacketInfo))

	if err := unix.IoctlIfreq(fd, unix.TUNSETIFF, ifr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("TUNSETIFF %q: %w", cfg.Name, err)
	}

	if cfg.Owner >= 0 {
		if err := unix.IoctlSetInt(fd, unix.TUNSETOWNER, cfg.Owner); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("TUNSETOWNER %d: %w", cfg.Owner, err)
		}
	}
	if cfg.Group >= 0 {
		if err := unix.IoctlSetInt(fd, unix.TUNSETGROUP, cfg.Group); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("TUNSETGROUP %d: %w", cfg.Group, err)
		}
	}
	if cfg.Persist {
		if err := unix.IoctlSetInt(fd, unix.TUNSETPERSIST, 1); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("TUNSETPERSIST: %w", err)
		}
	}

	name := ifr.Name()
	return &Iface{
		file:       os.NewFile(uintptr(fd), name),
		name:       name,
		mode:       cfg.Mode,
		packetInfo: cfg.PacketInfo,
	}, nil
}

func ifreqFlags(mode Mode, packetInfo bool) uint16 {
	var flags uint16
	switch mode {
	case TUN:
		flags = unix.IFF_TUN
	case TAP:
		flags = unix.IFF_TAP
	}
	if !packetInfo {
		flags |= unix.IFF_NO_PI
	}
	return flags
}

func (i *Iface) Name() string {
	return i.name
}

func (i *Iface) Mode() Mode {
	return i.mode
}

func (i *Iface) PacketInfo() bool {
	return i.packetInfo
}

// Recv blocks until a frame arrives and copies it into b. A frame larger than
// b is truncated.
func (i *Iface) Recv(b []byte) (int, error) {
	return i.file.Read(b)
}

// Send writes one frame. Invalid or unroutable frames are usually accepted
// here and dropped later by the kernel.
func (i *Iface) Send(b []byte) (int, error) {
	return i.file.Write(b)
}

func (i *Iface) Read(b []byte) (int, error) {
	return i.file.Read(b)
}

func (i *Iface) Write(b []byte) (int, error) {
	return i.file.Write(b)
}

func (i *Iface) SetReadDeadline(t time.Time) error {
	return i.file.SetReadDeadline(t)
}

func (i *Iface) SetWriteDeadline(t time.Time) error {
	return i.file.SetWriteDeadline(t)
}

func (i *Iface) Fd() uintptr {
	return i.file.Fd()
}

func (i *Iface) File() *os.File {
	return i.file
}

// Clone duplicates the descriptor. Both handles refer to the same device and
// each must be closed on its own.
func (i *Iface) Clone() (*Iface, error) {
	sc, err := i.file.SyscallConn()
	if err != nil {
		return nil, err
	}

	var (
		dup    int
		dupErr error
	)
	err = sc.Control(func(fd uintptr) {
		dup, dupErr = unix.FcntlInt(fd, unix.F_DUPFD_CLOEXEC, 0)
	})
	if err != nil {
		return nil, err
	}
	if dupErr != nil {
		return nil, fmt.Errorf("dup %s: %w", i.name, dupErr)
	}

	if err := unix.SetNonblock(dup, true); err != nil {
		unix.Close(dup)
		return nil, err
	}

	return &Iface{
		file:       os.NewFile(uintptr(dup), i.name),
		name:       i.name,
		mode:       i.mode,
		packetInfo: i.packetInfo,
	}, nil
}

func (i *Iface) SetPersistent(persist bool) error {
	v := 0
	if persist {
		v = 1
	}
	return i.ioctlInt(unix.TUNSETPERSIST, v)
}

func (i *Iface) SetOwner(uid int) error {
	return i.ioctlInt(unix.TUNSETOWNER, uid)
}

func (i *Iface) SetGroup(gid int) error {
	return i.ioctlInt(unix.TUNSETGROUP, gid)
}

func (i *Iface) ioctlInt(req uint, v int) error {
	sc, err := i.file.SyscallConn()
	if err != nil {
		return err
	}

	var opErr error
	err = sc.Control(func(fd uintptr) {
		opErr = unix.IoctlSetInt(int(fd), req, v)
	})
	if err != nil {
		return err
	}
	return opErr
}

func (i *Iface) MTU() (int, error) {
	return netconf.Default().MTU(i.name)
}

func (i *Iface) ConfigureIPAddress(addr netip.Prefix) error {
	return netconf.Configure(netconf.Default(), i.name, addr, 0)
}

func (i *Iface) Close() error {
	i.closeOnce.Do(func() {
		i.closeErr = i.file.Close()
	})
	return i.closeErr
}
