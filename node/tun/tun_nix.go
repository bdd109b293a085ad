//go:build darwin || freebsd || netbsd

package tun

import (
	"fmt"
	"net/netip"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/songgao/water"
)

// NixTun covers the BSD style tunnels through water. Only TUN mode without
// packet info is offered and the kernel always picks the name.
type NixTun struct {
	ifce *water.Interface
	mode Mode
}

// Open creates a new utun/tun device. The kernel chooses the name, so a
// requested name is refused rather than silently dropped; pass an empty one
// and read the result with Name().
func Open(cfg Config) (Tun, error) {
	wc, err := waterConfig(cfg)
	if err != nil {
		return nil, err
	}

	ifce, err := water.New(wc)
	if err != nil {
		return nil, err
	}

	return &NixTun{ifce: ifce, mode: cfg.Mode}, nil
}

func waterConfig(cfg Config) (water.Config, error) {
	if err := validate(cfg); err != nil {
		return water.Config{}, err
	}
	if cfg.Name != "" {
		return water.Config{}, fmt.Errorf("%w: choosing the interface name on %s, got %q", ErrUnsupported, runtime.GOOS, cfg.Name)
	}
	if cfg.Mode != TUN || cfg.PacketInfo || cfg.Persist || cfg.Owner >= 0 || cfg.Group >= 0 {
		return water.Config{}, fmt.Errorf("%w: only tun mode without packet info on %s", ErrUnsupported, runtime.GOOS)
	}
	return water.Config{DeviceType: water.TUN}, nil
}

func (n *NixTun) Read(b []byte) (int, error) {
	return n.ifce.Read(b)
}

func (n *NixTun) Write(b []byte) (int, error) {
	return n.ifce.Write(b)
}

func (n *NixTun) Name() string {
	return n.ifce.Name()
}

func (n *NixTun) Mode() Mode {
	return n.mode
}

func (n *NixTun) PacketInfo() bool {
	return false
}

func (n *NixTun) Close() error {
	return n.ifce.Close()
}

func (n *NixTun) MTU() (int, error) {
	return MTU, nil
}

func (n *NixTun) SetReadDeadline(t time.Time) error {
	return os.ErrNoDeadline
}

func (n *NixTun) SetWriteDeadline(t time.Time) error {
	return os.ErrNoDeadline
}

func (n *NixTun) ConfigureIPAddress(addr netip.Prefix) error {
	if err := exec.Command("/sbin/ifconfig", n.Name(), addr.Addr().String(), addr.Addr().String(), "up").Run(); err != nil {
		return fmt.Errorf("ifconfig error %v: %w", n.Name(), err)
	}
	if err := exec.Command("/sbin/route", "-n", "add", "-net", addr.Masked().String(), addr.Addr().String()).Run(); err != nil {
		return fmt.Errorf("route add error: %w", err)
	}
	return nil
}
