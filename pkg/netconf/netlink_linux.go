//go:build linux

package netconf

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"syscall"

	"github.com/vishvananda/netlink"
	"go4.org/netipx"
)

// Netlink configures links over rtnetlink.
type Netlink struct{}

func Default() Configurator {
	return Netlink{}
}

func (Netlink) link(ifname string) (netlink.Link, error) {
	link, err := netlink.LinkByName(ifname)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup interface %v: %w", ifname, err)
	}
	return link, nil
}

func (n Netlink) AddAddress(ifname string, addr netip.Prefix) error {
	link, err := n.link(ifname)
	if err != nil {
		return err
	}

	err = netlink.AddrAdd(link, &netlink.Addr{IPNet: netipx.PrefixIPNet(addr)})
	if err != nil && !errors.Is(err, syscall.EEXIST) {
		return err
	}
	return nil
}

func (n Netlink) Addresses(ifname string) ([]netip.Prefix, error) {
	link, err := n.link(ifname)
	if err != nil {
		return nil, err
	}

	addrs, err := netlink.AddrList(link, netlink.FAMILY_ALL)
	if err != nil {
		return nil, err
	}

	prefixes := make([]netip.Prefix, 0, len(addrs))
	for _, a := range addrs {
		if a.IPNet == nil {
			continue
		}
		if p, ok := netipx.FromStdIPNet(a.IPNet); ok {
			prefixes = append(prefixes, p)
		}
	}
	return prefixes, nil
}

func (n Netlink) SetMTU(ifname string, mtu int) error {
	link, err := n.link(ifname)
	if err != nil {
		return err
	}
	return netlink.LinkSetMTU(link, mtu)
}

func (n Netlink) SetUp(ifname string) error {
	link, err := n.link(ifname)
	if err != nil {
		return err
	}
	return netlink.LinkSetUp(link)
}

func (n Netlink) SetDown(ifname string) error {
	link, err := n.link(ifname)
	if err != nil {
		return err
	}
	return netlink.LinkSetDown(link)
}

func (n Netlink) IsUp(ifname string) (bool, error) {
	link, err := n.link(ifname)
	if err != nil {
		return false, err
	}
	return link.Attrs().Flags&net.FlagUp != 0, nil
}

func (n Netlink) MTU(ifname string) (int, error) {
	link, err := n.link(ifname)
	if err != nil {
		return 0, err
	}
	return link.Attrs().MTU, nil
}

func (n Netlink) Delete(ifname string) error {
	link, err := n.link(ifname)
	if err != nil {
		return err
	}
	return netlink.LinkDel(link)
}
