package node

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/caldog20/tuntap/pkg/header"
)

// Dump writes every frame arriving on the device to w as one hex line. The
// packet info prefix is shown separately and not part of the dump.
func (node *Node) Dump(ctx context.Context, w io.Writer) error {
	if err := node.start(); err != nil {
		return err
	}
	defer node.stop()

	var count uint64
	return node.async.ReadPackets(ctx, func(frame []byte) error {
		count++
		node.stats.rx(len(frame))
		return node.printFrame(w, count, frame)
	})
}

func (node *Node) printFrame(w io.Writer, count uint64, frame []byte) error {
	if !node.tun.PacketInfo() {
		_, err := fmt.Fprintf(w, "#%d %d bytes: %s\n", count, len(frame), hex.EncodeToString(frame))
		return err
	}

	pi, payload, err := header.Strip(frame)
	if err != nil {
		node.stats.drop()
		node.log.Debugf("short frame of %d bytes", len(frame))
		return nil
	}
	if pi.Truncated() {
		node.log.Warnf("frame #%d truncated, read buffer too small", count)
	}

	_, err = fmt.Fprintf(w, "#%d %d bytes proto=%#04x: %s\n", count, len(payload), pi.Proto, hex.EncodeToString(payload))
	return err
}
