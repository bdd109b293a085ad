package conn

import (
	"net"
	"net/netip"
	"time"
)

const (
	UDPType = "udp"
)

type Conn struct {
	uc *net.UDPConn
}

func (conn *Conn) WriteToUDPAddrPort(b []byte, addr netip.AddrPort) (int, error) {
	return conn.uc.WriteToUDPAddrPort(b, addr)
}

// ReadFromUDPAddrPort returns the sender with any IPv4-in-IPv6 mapping
// removed so it compares equal to a parsed IPv4 endpoint.
func (conn *Conn) ReadFromUDPAddrPort(b []byte) (int, netip.AddrPort, error) {
	n, raddr, err := conn.uc.ReadFromUDPAddrPort(b)
	if err != nil {
		return n, raddr, err
	}
	return n, netip.AddrPortFrom(raddr.Addr().Unmap(), raddr.Port()), nil
}

func (conn *Conn) LocalAddr() netip.AddrPort {
	return conn.uc.LocalAddr().(*net.UDPAddr).AddrPort()
}

func (conn *Conn) Close() error {
	return conn.uc.Close()
}

func (conn *Conn) SetReadDeadline(t time.Time) error {
	return conn.uc.SetReadDeadline(t)
}
