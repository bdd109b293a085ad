package node

import (
	"context"
	"fmt"
	"net/netip"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/caldog20/tuntap/node/conn"
	"github.com/caldog20/tuntap/pkg/logger"
)

// Tunnel forwards frames between the device and a UDP peer until ctx ends.
// Every frame read from the device becomes one datagram to remote and every
// datagram received is written to the device as one frame. Without a remote
// the first sender is adopted. There is no authentication or encryption.
// The node takes ownership of c. Closing the device ends the tunnel with an
// error wrapping os.ErrClosed.
func (node *Node) Tunnel(ctx context.Context, c *conn.Conn, remote netip.AddrPort) error {
	if err := node.start(); err != nil {
		return err
	}
	defer node.stop()

	node.conn = c
	if remote.IsValid() {
		node.remote.Store(&remote)
		node.log.Infof("tunnelling to %s from %s", remote, c.LocalAddr())
	} else {
		node.log.Infof("waiting for a peer on %s", c.LocalAddr())
	}

	started := time.Now()
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		if err := node.ReadTunPackets(egCtx, node.OnTunnelPacket); err != nil {
			return err
		}
		if egCtx.Err() == nil {
			// device closed under us, take the socket down too
			return fmt.Errorf("device %s: %w", node.tun.Name(), os.ErrClosed)
		}
		return nil
	})
	eg.Go(func() error {
		return node.ReadUDPPackets(egCtx, node.OnUDPPacket)
	})
	eg.Go(func() error {
		// unblocks ReadUDPPackets
		<-egCtx.Done()
		return c.Close()
	})

	err := eg.Wait()
	node.log.Infof("tunnel stopped after %s: %s", logger.Since(started), node.stats.snapshot())
	return err
}

// Remote returns the current tunnel peer.
func (node *Node) Remote() (netip.AddrPort, bool) {
	remote := node.remote.Load()
	if remote == nil {
		return netip.AddrPort{}, false
	}
	return *remote, true
}

// OnTunnelPacket sends a frame from the device to the peer.
func (node *Node) OnTunnelPacket(ctx context.Context, buffer *PacketBuffer) {
	defer node.buffers.Put(buffer)

	remote, ok := node.Remote()
	if !ok {
		node.stats.drop()
		node.log.Debug("[outbound] no peer yet, dropping frame")
		return
	}

	if _, err := node.conn.WriteToUDPAddrPort(buffer.Bytes(), remote); err != nil {
		node.stats.drop()
		if ctx.Err() == nil {
			node.log.Warnf("[outbound] send to %s: %v", remote, err)
		}
	}
}

// OnUDPPacket writes a datagram from the peer into the device.
func (node *Node) OnUDPPacket(ctx context.Context, buffer *PacketBuffer) {
	defer node.buffers.Put(buffer)

	from := buffer.from
	if node.remote.CompareAndSwap(nil, &from) {
		node.log.Infof("[inbound] learned peer %s", from)
	} else if remote, _ := node.Remote(); remote != from {
		node.log.Debugf("[inbound] datagram from %s, peer is %s", from, remote)
	}

	n, err := node.async.Send(ctx, buffer.Bytes())
	if err != nil {
		node.stats.drop()
		if ctx.Err() == nil {
			node.log.Warnf("[inbound] write to device: %v", err)
		}
		return
	}
	node.stats.tx(n)
}
