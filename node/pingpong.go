package node

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/caldog20/tuntap/node/tun"
	"github.com/caldog20/tuntap/pkg/header"
	"github.com/caldog20/tuntap/pkg/netconf"
)

var ErrNoAddress = errors.New("device has no ipv4 address")

// PingPong sends an echo request from peer to the device address every
// interval while printing every frame that comes back out of the device.
// The kernel answers the requests, so the replies show up in the dump.
func (node *Node) PingPong(ctx context.Context, peer netip.Addr, interval time.Duration, w io.Writer) error {
	if node.tun.Mode() != tun.TUN {
		return fmt.Errorf("pingpong needs a tun device, got %s", node.tun.Mode())
	}
	if !node.ip.IsValid() || !node.ip.Addr().Is4() {
		return ErrNoAddress
	}

	if !peer.IsValid() {
		var err error
		peer, err = netconf.PeerAddr(node.ip)
		if err != nil {
			return err
		}
	}

	if err := node.start(); err != nil {
		return err
	}
	defer node.stop()

	node.log.Infof("pinging %s from %s every %s", node.ip.Addr(), peer, interval)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return node.sendPings(egCtx, peer, interval)
	})
	eg.Go(func() error {
		var count uint64
		return node.async.ReadPackets(egCtx, func(frame []byte) error {
			count++
			node.stats.rx(len(frame))

			packet := frame
			if node.tun.PacketInfo() {
				_, p, err := header.Strip(frame)
				if err != nil {
					return nil
				}
				packet = p
			}
			if seq, ok := IsEchoReply(packet); ok {
				node.log.Infof("echo reply seq=%d", seq)
			}
			return node.printFrame(w, count, frame)
		})
	})

	return eg.Wait()
}

func (node *Node) sendPings(ctx context.Context, peer netip.Addr, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	id := os.Getpid() & 0xffff
	for seq := 1; ; seq++ {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			packet, err := BuildEchoRequest(peer, node.ip.Addr(), id, seq, pingPayload(now))
			if err != nil {
				return err
			}
			if node.tun.PacketInfo() {
				if packet, err = header.Prepend(nil, packet); err != nil {
					return err
				}
			}

			node.log.Debugf("sending ping seq=%d", seq)
			n, err := node.async.Send(ctx, packet)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("error sending ping: %w", err)
			}
			node.stats.tx(n)
		}
	}
}
