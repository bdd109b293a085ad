package node

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/caldog20/tuntap/node/conn"
	"github.com/caldog20/tuntap/node/tun"
	"github.com/caldog20/tuntap/pkg/config"
	"github.com/caldog20/tuntap/pkg/logger"
	"github.com/caldog20/tuntap/pkg/netconf"
)

var ErrRunning = errors.New("node is already running")

// Node drives one virtual adapter: dumping it, pinging through it or
// tunnelling it over UDP.
type Node struct {
	tun     tun.Tun
	async   *tun.Async
	conn    *conn.Conn
	buffers *BufferPool
	log     *log.Entry

	// address assigned to the device, if any
	ip netip.Prefix

	remote  atomic.Pointer[netip.AddrPort]
	running atomic.Bool
	stats   counters
}

// NewNode creates the device described by cfg. The address and MTU are
// applied when set and not already in place. Without a configured address
// the node adopts the IPv4 address the link already has.
func NewNode(cfg config.Device, entry *log.Entry) (*Node, error) {
	dev, err := tun.Open(cfg.TunConfig())
	if err != nil {
		return nil, fmt.Errorf("error creating %s device: %w", cfg.Mode, err)
	}

	node := NewNodeWithTun(dev, entry)
	if err := node.configure(netconf.Default(), cfg); err != nil {
		dev.Close()
		return nil, err
	}
	return node, nil
}

func (node *Node) configure(c netconf.Configurator, cfg config.Device) error {
	name := node.tun.Name()

	if p := cfg.Prefix(); p.IsValid() {
		if !linkReady(c, name, p) {
			if err := node.tun.ConfigureIPAddress(p); err != nil {
				return fmt.Errorf("error configuring %s: %w", name, err)
			}
			node.log.Infof("set device address: %s", p)
		} else {
			node.log.Debugf("device already has address %s", p)
		}
		node.ip = p
	} else if p, err := netconf.FirstIPv4(c, name); err == nil {
		node.ip = p
		node.log.Infof("using device address: %s", p)
	} else {
		node.log.Debugf("no device address: %v", err)
	}

	if cfg.MTU > 0 {
		if mtu, err := c.MTU(name); err != nil || mtu != cfg.MTU {
			if err := c.SetMTU(name, cfg.MTU); err != nil {
				return fmt.Errorf("error setting mtu on %s: %w", name, err)
			}
		}
	}
	return nil
}

// linkReady reports whether the link is up and carries p. Any read error
// counts as not ready.
func linkReady(c netconf.Configurator, name string, p netip.Prefix) bool {
	has, err := netconf.HasAddress(c, name, p)
	if err != nil || !has {
		return false
	}
	up, err := c.IsUp(name)
	return err == nil && up
}

// NewNodeWithTun wraps an already open device.
func NewNodeWithTun(dev tun.Tun, entry *log.Entry) *Node {
	if entry == nil {
		entry = logger.Discard()
	}

	mtu, err := dev.MTU()
	if err != nil || mtu <= 0 {
		mtu = tun.MTU
	}

	node := &Node{
		tun:     dev,
		async:   tun.NewAsync(dev),
		buffers: NewBufferPool(tun.BufferSize(mtu, dev.Mode(), dev.PacketInfo())),
		log: entry.WithFields(log.Fields{
			"device": dev.Name(),
			"mode":   dev.Mode(),
		}),
	}

	node.log.Infof("created device %s", dev.Name())
	return node
}

// SetAddress records the device address without touching the link, for
// devices configured out of band.
func (node *Node) SetAddress(p netip.Prefix) {
	node.ip = p
}

func (node *Node) Address() netip.Prefix {
	return node.ip
}

func (node *Node) Tun() tun.Tun {
	return node.tun
}

func (node *Node) Stats() Stats {
	return node.stats.snapshot()
}

func (node *Node) start() error {
	if !node.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	return nil
}

func (node *Node) stop() {
	node.running.Store(false)
}

func (node *Node) Close() error {
	var err error
	if node.conn != nil {
		// Tunnel closes the socket on its way out
		if err = node.conn.Close(); errors.Is(err, net.ErrClosed) {
			err = nil
		}
	}
	return errors.Join(err, node.tun.Close())
}
