//go:build !unix

package conn

import (
	"net"
	"net/netip"
)

func NewConn(listen netip.AddrPort) (*Conn, error) {
	udpconn, err := net.ListenUDP(UDPType, net.UDPAddrFromAddrPort(listen))
	if err != nil {
		return nil, err
	}

	conn := &Conn{uc: udpconn}

	return conn, nil
}
