//go:build linux

package tun

import (
	"context"
	"encoding/binary"
	"net"
	"net/netip"
	"os"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"
)

/*
These tests create real devices and need CAP_NET_ADMIN:

sudo go test -count=1 -v ./node/tun/
*/

const (
	testDevice = "tun10"
	testLocal  = "10.10.10.1"
)

func skipUnlessRoot(t *testing.T) {
	t.Helper()
	if os.Geteuid() != 0 {
		t.Skip("creating tun devices requires root")
	}
	if _, err := os.Stat(cloneDevice); err != nil {
		t.Skipf("%s not available: %v", cloneDevice, err)
	}
}

func requireDevice(t *testing.T) *Iface {
	t.Helper()
	skipUnlessRoot(t)

	cfg := DefaultConfig()
	cfg.Name = testDevice
	iface, err := OpenIface(cfg)
	require.NoError(t, err, "failed to create a TUN device")
	t.Cleanup(func() { iface.Close() })

	require.NoError(t, iface.ConfigureIPAddress(netip.MustParsePrefix(testLocal+"/24")))
	return iface
}

// udpPacket builds an IPv4/UDP packet with valid lengths and checksums.
func udpPacket(t *testing.T, src, dst netip.AddrPort, payload []byte) []byte {
	t.Helper()

	ipHeader := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    src.Addr().AsSlice(),
		DstIP:    dst.Addr().AsSlice(),
	}
	udpHeader := &layers.UDP{
		SrcPort: layers.UDPPort(src.Port()),
		DstPort: layers.UDPPort(dst.Port()),
	}
	require.NoError(t, udpHeader.SetNetworkLayerForChecksum(ipHeader))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{
		FixLengths:       true,
		ComputeChecksums: true,
	}
	require.NoError(t, gopacket.SerializeLayers(buf, opts,
		ipHeader,
		udpHeader,
		gopacket.Payload(payload)))
	return buf.Bytes()
}

func TestIfreqFlags(t *testing.T) {
	assert.Equal(t, uint16(unix.IFF_TUN|unix.IFF_NO_PI), ifreqFlags(TUN, false))
	assert.Equal(t, uint16(unix.IFF_TAP), ifreqFlags(TAP, true))
}

func TestOpenRejectsLongName(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Name = "averyveryverylongname"
	_, err := OpenIface(cfg)
	assert.ErrorIs(t, err, ErrNameTooLong)
}

func TestIfaceSendsPackets(t *testing.T) {
	iface := requireDevice(t)
	assert.Equal(t, testDevice, iface.Name())
	assert.Equal(t, TUN, iface.Mode())
	assert.False(t, iface.PacketInfo())

	data := []byte{1, 1, 1, 1, 1, 1, 1, 1, 1, 1}
	sock, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP(testLocal), Port: 2424})
	require.NoError(t, err, "failed to bind to address")
	defer sock.Close()

	_, err = sock.WriteToUDP(data, &net.UDPAddr{IP: net.ParseIP("10.10.10.2"), Port: 4242})
	require.NoError(t, err)

	require.NoError(t, iface.SetReadDeadline(time.Now().Add(5*time.Second)))
	buf := make([]byte, 1500)
	for {
		n, err := iface.Recv(buf)
		require.NoError(t, err, "failed to receive data")

		// the kernel may emit ipv6 router solicitations first
		h, err := ipv4.ParseHeader(buf[:n])
		if err != nil || h.Protocol != unix.IPPROTO_UDP {
			continue
		}

		assert.Equal(t, 38, n)
		assert.True(t, h.Src.Equal(net.ParseIP(testLocal)))
		assert.True(t, h.Dst.Equal(net.ParseIP("10.10.10.2")))
		udp := buf[h.Len:n]
		assert.Equal(t, uint16(2424), binary.BigEndian.Uint16(udp[0:2]))
		assert.Equal(t, uint16(4242), binary.BigEndian.Uint16(udp[2:4]))
		assert.Equal(t, data, udp[8:])
		return
	}
}

func TestIfaceReceivesPackets(t *testing.T) {
	iface := requireDevice(t)

	sock, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP(testLocal), Port: 2424})
	require.NoError(t, err)
	defer sock.Close()

	data := []byte{1, 1, 1, 1, 1, 1, 1, 1, 1, 1}
	packet := udpPacket(t,
		netip.MustParseAddrPort("10.10.10.2:4242"),
		netip.MustParseAddrPort(testLocal+":2424"),
		data,
	)
	_, err = iface.Send(packet)
	require.NoError(t, err, "failed to send packet")

	require.NoError(t, sock.SetReadDeadline(time.Now().Add(5*time.Second)))
	buf := make([]byte, 64)
	n, from, err := sock.ReadFromUDPAddrPort(buf)
	require.NoError(t, err)
	assert.Equal(t, data, buf[:n])
	assert.Equal(t, netip.MustParseAddrPort("10.10.10.2:4242"), from)
}

func TestIfaceReceivesPacketsOnClone(t *testing.T) {
	iface := requireDevice(t)

	clone, err := iface.Clone()
	require.NoError(t, err, "failed to clone interface")
	defer clone.Close()
	assert.NotEqual(t, iface.Fd(), clone.Fd())
	assert.Equal(t, clone.Fd(), clone.File().Fd())
	assert.Equal(t, iface.Name(), clone.Name())
	assert.Equal(t, iface.Name(), clone.File().Name())

	sock, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP(testLocal), Port: 2424})
	require.NoError(t, err)
	defer sock.Close()

	data := []byte{5, 5, 5, 5, 5, 5, 5, 5, 5, 5}
	_, err = clone.Send(udpPacket(t,
		netip.MustParseAddrPort("10.10.10.3:4242"),
		netip.MustParseAddrPort(testLocal+":2424"),
		data,
	))
	require.NoError(t, err)

	require.NoError(t, sock.SetReadDeadline(time.Now().Add(5*time.Second)))
	buf := make([]byte, 64)
	n, from, err := sock.ReadFromUDPAddrPort(buf)
	require.NoError(t, err)
	assert.Equal(t, data, buf[:n])
	assert.Equal(t, netip.MustParseAddrPort("10.10.10.3:4242"), from)
}

func TestPacketInfoPrefix(t *testing.T) {
	if os.Geteuid() != 0 {
		t.Skip("creating tun devices requires root")
	}

	dev, err := New("pitest%d", TUN)
	require.NoError(t, err)
	defer dev.Close()
	assert.True(t, dev.PacketInfo())
	require.NoError(t, dev.ConfigureIPAddress(netip.MustParsePrefix("10.10.11.1/24")))

	sock, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("10.10.11.1")})
	require.NoError(t, err)
	defer sock.Close()
	_, err = sock.WriteToUDP([]byte("hi"), &net.UDPAddr{IP: net.ParseIP("10.10.11.2"), Port: 9})
	require.NoError(t, err)

	require.NoError(t, dev.SetReadDeadline(time.Now().Add(5*time.Second)))
	buf := make([]byte, 1504)
	for {
		n, err := dev.Read(buf)
		require.NoError(t, err)
		require.GreaterOrEqual(t, n, 4)
		if binary.BigEndian.Uint16(buf[2:4]) == 0x0800 {
			assert.Equal(t, byte(4), buf[4]>>4)
			return
		}
	}
}

func TestCloseUnblocksRecv(t *testing.T) {
	iface := requireDevice(t)

	done := make(chan error, 1)
	go func() {
		// drain until closed
		buf := make([]byte, 1500)
		for {
			if _, err := iface.Recv(buf); err != nil {
				done <- err
				return
			}
		}
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, iface.Close())
	require.NoError(t, iface.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, os.ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Recv still blocked after Close")
	}
}

func TestAsyncOnDevice(t *testing.T) {
	iface := requireDevice(t)
	a := NewAsync(iface)

	// tun10 is up with no traffic of ours, but the kernel may still emit
	// ipv6 chatter, so only the cancellation path is asserted
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	buf := make([]byte, 1500)
	for {
		if _, err := a.Recv(ctx, buf); err != nil {
			assert.ErrorIs(t, err, context.DeadlineExceeded)
			return
		}
	}
}

func TestPersistentDevice(t *testing.T) {
	skipUnlessRoot(t)

	cfg := DefaultConfig()
	cfg.Name = "persist%d"
	cfg.Persist = true
	iface, err := OpenIface(cfg)
	require.NoError(t, err)
	name := iface.Name()

	require.NoError(t, iface.SetOwner(65534))
	require.NoError(t, iface.SetGroup(65534))
	require.NoError(t, iface.Close())

	// still there without an open descriptor
	_, err = net.InterfaceByName(name)
	require.NoError(t, err)

	// reattach and drop persistence, the device goes away with the last close
	cfg.Name = name
	cfg.Persist = false
	iface, err = OpenIface(cfg)
	require.NoError(t, err)
	require.NoError(t, iface.SetPersistent(false))
	require.NoError(t, iface.Close())

	assert.Eventually(t, func() bool {
		_, err := net.InterfaceByName(name)
		return err != nil
	}, 2*time.Second, 50*time.Millisecond)
}
