package header

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// Len is the size of the packet information prefix the kernel adds to
	// every frame when a device is opened without IFF_NO_PI.
	Len = 4

	// FlagTruncated is TUN_PKT_STRIP: the frame did not fit the read buffer.
	FlagTruncated uint16 = 0x0001
)

// EtherTypes carried in the protocol field.
const (
	ProtoIPv4 uint16 = 0x0800
	ProtoARP  uint16 = 0x0806
	ProtoIPv6 uint16 = 0x86dd
)

var (
	ErrShortBuffer = errors.New("buffer too short for packet information")
	ErrNotIP       = errors.New("packet is neither ipv4 nor ipv6")
)

type PacketInfo struct {
	Flags uint16
	Proto uint16
}

func NewPacketInfo() *PacketInfo {
	return &PacketInfo{}
}

// Encode writes the prefix into the first Len bytes of b and returns b[:Len].
func (h *PacketInfo) Encode(b []byte, flags, proto uint16) ([]byte, error) {
	if h == nil {
		return nil, errors.New("packet info cannot be nil")
	}

	if cap(b) < Len {
		return nil, ErrShortBuffer
	}

	h.Flags = flags
	h.Proto = proto

	b = b[:Len]
	binary.BigEndian.PutUint16(b[0:2], h.Flags)
	binary.BigEndian.PutUint16(b[2:4], h.Proto)
	return b, nil
}

func (h *PacketInfo) Parse(b []byte) error {
	if h == nil {
		return errors.New("packet info cannot be nil")
	}

	if len(b) < Len {
		return ErrShortBuffer
	}

	h.Flags = binary.BigEndian.Uint16(b[0:2])
	h.Proto = binary.BigEndian.Uint16(b[2:4])
	return nil
}

func (h *PacketInfo) Truncated() bool {
	return h.Flags&FlagTruncated != 0
}

func (h *PacketInfo) String() string {
	if h == nil {
		return "<nil>"
	}

	return fmt.Sprintf("packet info: {flags: %#04x, proto: %#04x}", h.Flags, h.Proto)
}

// ProtoForIP returns the EtherType matching the version nibble of an IP packet.
func ProtoForIP(packet []byte) (uint16, error) {
	if len(packet) == 0 {
		return 0, ErrNotIP
	}

	switch packet[0] >> 4 {
	case 4:
		return ProtoIPv4, nil
	case 6:
		return ProtoIPv6, nil
	default:
		return 0, ErrNotIP
	}
}

// Prepend returns dst with a packet information prefix for the IP packet
// appended, followed by the packet itself.
func Prepend(dst, packet []byte) ([]byte, error) {
	proto, err := ProtoForIP(packet)
	if err != nil {
		return nil, err
	}

	var pi [Len]byte
	binary.BigEndian.PutUint16(pi[2:4], proto)
	dst = append(dst, pi[:]...)
	return append(dst, packet...), nil
}

// Strip parses and removes the prefix from a frame read from the device.
func Strip(frame []byte) (PacketInfo, []byte, error) {
	var h PacketInfo
	if err := h.Parse(frame); err != nil {
		return h, nil, err
	}
	return h, frame[Len:], nil
}
