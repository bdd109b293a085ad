package node

import (
	"context"
	"errors"
	"net"
	"os"
)

// Callees own the buffer and must return it to the pool.
type OnTunPacket func(ctx context.Context, buffer *PacketBuffer)
type OnUDPPacket func(ctx context.Context, buffer *PacketBuffer)

// ReadTunPackets reads frames from the device until ctx ends or the device
// is closed.
func (node *Node) ReadTunPackets(ctx context.Context, callback OnTunPacket) error {
	for {
		buffer := node.buffers.Get()
		n, err := node.async.Recv(ctx, buffer.data)
		if err != nil {
			node.buffers.Put(buffer)
			if ctx.Err() != nil || errors.Is(err, os.ErrClosed) {
				return nil
			}
			return err
		}

		buffer.size = n
		node.stats.rx(n)
		callback(ctx, buffer)
	}
}

// ReadUDPPackets reads datagrams from the socket until it is closed.
func (node *Node) ReadUDPPackets(ctx context.Context, callback OnUDPPacket) error {
	for {
		buffer := node.buffers.Get()
		n, from, err := node.conn.ReadFromUDPAddrPort(buffer.data)
		if err != nil {
			node.buffers.Put(buffer)
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			node.log.Warnf("[inbound] udp read: %v", err)
			continue
		}

		buffer.size = n
		buffer.from = from
		callback(ctx, buffer)
	}
}
