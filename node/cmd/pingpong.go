package cmd

import (
	"fmt"
	"net/netip"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/caldog20/tuntap/node"
	"github.com/caldog20/tuntap/pkg/config"
)

func NewPingPongCommand() *cobra.Command {
	var (
		dev      deviceFlags
		peer     string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "pingpong",
		Short: "ping the device address through the device and dump the replies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("peer") {
				cfg.Ping.Peer = peer
			}
			if cmd.Flags().Changed("interval") {
				cfg.Ping.Interval = interval
			}

			d, err := dev.apply(cmd, cfg)
			if err != nil {
				return err
			}

			var from netip.Addr
			if cfg.Ping.Peer != "" {
				if from, err = netip.ParseAddr(cfg.Ping.Peer); err != nil {
					return fmt.Errorf("invalid peer address: %w", err)
				}
			}

			n, err := node.NewNode(d, baseLog.WithField("component", "pingpong"))
			if err != nil {
				return err
			}
			defer n.Close()

			ctx, cancel := signalContext()
			defer cancel()

			if err := n.PingPong(ctx, from, cfg.Ping.Interval, os.Stdout); err != nil {
				return err
			}
			baseLog.WithField("component", "pingpong").Infof("done: %s", n.Stats())
			return nil
		},
	}

	dev.register(cmd)
	cmd.Flags().StringVar(&peer, "peer", "", "source address of the echo requests, defaults to the next address in the device prefix")
	cmd.Flags().DurationVar(&interval, "interval", config.DefaultPingInterval, "time between echo requests")
	return cmd
}
