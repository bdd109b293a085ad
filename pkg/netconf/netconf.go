package netconf

import (
	"errors"
	"fmt"
	"net/netip"

	"go4.org/netipx"
)

var (
	ErrInvalidPrefix = errors.New("invalid interface prefix")
	ErrNoPeerAddr    = errors.New("no free peer address in prefix")
	ErrNoAddress     = errors.New("no ipv4 address on interface")
)

// Configurator reads and changes link settings of a network interface.
// Reads work unprivileged, changes need CAP_NET_ADMIN.
type Configurator interface {
	AddAddress(ifname string, addr netip.Prefix) error
	Addresses(ifname string) ([]netip.Prefix, error)
	SetMTU(ifname string, mtu int) error
	MTU(ifname string) (int, error)
	SetUp(ifname string) error
	SetDown(ifname string) error
	IsUp(ifname string) (bool, error)
	Delete(ifname string) error
}

// Configure assigns addr to the interface, sets the MTU when mtu > 0 and
// brings the link up. Settings already in place are left alone, so a link
// prepared by an administrator can be reused without privileges.
func Configure(c Configurator, ifname string, addr netip.Prefix, mtu int) error {
	if addr.IsValid() {
		if err := HostAddr(addr); err != nil {
			return err
		}
		has, err := HasAddress(c, ifname, addr)
		if err != nil {
			return err
		}
		if !has {
			if err := c.AddAddress(ifname, addr); err != nil {
				return fmt.Errorf("add address %s to %s: %w", addr, ifname, err)
			}
		}
	}

	if mtu > 0 {
		if cur, err := c.MTU(ifname); err != nil || cur != mtu {
			if err := c.SetMTU(ifname, mtu); err != nil {
				return fmt.Errorf("set mtu %d on %s: %w", mtu, ifname, err)
			}
		}
	}

	up, err := c.IsUp(ifname)
	if err != nil {
		return fmt.Errorf("read %s state: %w", ifname, err)
	}
	if !up {
		if err := c.SetUp(ifname); err != nil {
			return fmt.Errorf("set %s up: %w", ifname, err)
		}
	}
	return nil
}

// HasAddress reports whether addr, with the same prefix length, is assigned
// to the interface.
func HasAddress(c Configurator, ifname string, addr netip.Prefix) (bool, error) {
	addrs, err := c.Addresses(ifname)
	if err != nil {
		return false, fmt.Errorf("list addresses of %s: %w", ifname, err)
	}
	for _, a := range addrs {
		if a == addr {
			return true, nil
		}
	}
	return false, nil
}

// FirstIPv4 returns the first IPv4 address assigned to the interface.
func FirstIPv4(c Configurator, ifname string) (netip.Prefix, error) {
	addrs, err := c.Addresses(ifname)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("list addresses of %s: %w", ifname, err)
	}
	for _, a := range addrs {
		if a.Addr().Is4() {
			return a, nil
		}
	}
	return netip.Prefix{}, fmt.Errorf("%w: %s", ErrNoAddress, ifname)
}

// HostAddr checks that the prefix names a usable host address, i.e. neither
// the network nor the broadcast address of an IPv4 subnet.
func HostAddr(p netip.Prefix) error {
	if !p.IsValid() {
		return ErrInvalidPrefix
	}

	addr := p.Addr()
	// /31, /32 and IPv6 have no reserved ends worth guarding
	if addr.Is6() || p.Bits() >= 31 {
		return nil
	}

	r := netipx.RangeOfPrefix(p.Masked())
	if addr == r.From() || addr == r.To() {
		return fmt.Errorf("%w: %s is a network or broadcast address", ErrInvalidPrefix, p)
	}
	return nil
}

// PeerAddr returns the next usable address after the interface address in
// the same prefix. Programs use it to pose as the remote end of the link.
func PeerAddr(p netip.Prefix) (netip.Addr, error) {
	if err := HostAddr(p); err != nil {
		return netip.Addr{}, err
	}

	var b netipx.IPSetBuilder
	b.AddPrefix(p.Masked())
	if p.Addr().Is4() && p.Bits() < 31 {
		r := netipx.RangeOfPrefix(p.Masked())
		b.Remove(r.From())
		b.Remove(r.To())
	}
	b.Remove(p.Addr())

	set, err := b.IPSet()
	if err != nil {
		return netip.Addr{}, err
	}

	for next := p.Addr().Next(); next.IsValid() && p.Contains(next); next = next.Next() {
		if set.Contains(next) {
			return next, nil
		}
	}
	// wrap around below the interface address
	if ranges := set.Ranges(); len(ranges) > 0 {
		return ranges[0].From(), nil
	}
	return netip.Addr{}, fmt.Errorf("%w: %s", ErrNoPeerAddr, p)
}
