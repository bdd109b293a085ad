package node

import (
	"encoding/binary"
	"errors"
	"net/netip"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

const (
	protocolICMP = 1
	pingTTL      = 64
)

var ErrNotIPv4 = errors.New("echo requests need ipv4 addresses")

// pingPayload mimics ping(8): a timestamp followed by a counting pattern.
func pingPayload(now time.Time) []byte {
	b := make([]byte, 56)
	binary.LittleEndian.PutUint64(b[0:8], uint64(now.Unix()))
	binary.LittleEndian.PutUint64(b[8:16], uint64(now.Nanosecond()/1000))
	for i := 16; i < len(b); i++ {
		b[i] = byte(i)
	}
	return b
}

// BuildEchoRequest returns a complete IPv4 packet carrying an ICMP echo
// request, ready to be written to a TUN device without packet info.
func BuildEchoRequest(src, dst netip.Addr, id, seq int, payload []byte) ([]byte, error) {
	if !src.Is4() || !dst.Is4() {
		return nil, ErrNotIPv4
	}

	ipHeader := &layers.IPv4{
		Version:  4,
		Id:       uint16(id),
		Flags:    layers.IPv4DontFragment,
		TTL:      pingTTL,
		Protocol: layers.IPProtocolICMPv4,
		SrcIP:    src.AsSlice(),
		DstIP:    dst.AsSlice(),
	}
	icmpHeader := &layers.ICMPv4{
		TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0),
		Id:       uint16(id),
		Seq:      uint16(seq),
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{
		FixLengths:       true,
		ComputeChecksums: true,
	}
	if err := gopacket.SerializeLayers(buf, opts,
		ipHeader,
		icmpHeader,
		gopacket.Payload(payload)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParseEcho returns the echo body of an IPv4 ICMP echo request or reply.
func ParseEcho(packet []byte) (icmp.Type, *icmp.Echo, bool) {
	h, err := ipv4.ParseHeader(packet)
	if err != nil || h.Protocol != protocolICMP || h.Len > len(packet) {
		return nil, nil, false
	}

	msg, err := icmp.ParseMessage(protocolICMP, packet[h.Len:])
	if err != nil {
		return nil, nil, false
	}

	echo, ok := msg.Body.(*icmp.Echo)
	if !ok {
		return nil, nil, false
	}
	return msg.Type, echo, true
}

// IsEchoReply reports whether packet is an ICMP echo reply and its sequence.
func IsEchoReply(packet []byte) (int, bool) {
	typ, echo, ok := ParseEcho(packet)
	if !ok || typ != ipv4.ICMPTypeEchoReply {
		return 0, false
	}
	return echo.Seq, true
}
