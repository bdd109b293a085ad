package cmd

import (
	"fmt"
	"net/netip"

	"github.com/spf13/cobra"

	"github.com/caldog20/tuntap/node"
	"github.com/caldog20/tuntap/node/conn"
	"github.com/caldog20/tuntap/pkg/config"
)

func NewVPNCommand() *cobra.Command {
	var (
		dev    deviceFlags
		listen string
		remote string
	)

	cmd := &cobra.Command{
		Use:   "vpn",
		Short: "tunnel the device to a peer over udp, unencrypted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("listen") {
				cfg.VPN.Listen = listen
			}
			if cmd.Flags().Changed("remote") {
				cfg.VPN.Remote = remote
			}

			d, err := dev.apply(cmd, cfg)
			if err != nil {
				return err
			}

			laddr, err := netip.ParseAddrPort(cfg.VPN.Listen)
			if err != nil {
				return fmt.Errorf("invalid listen address: %w", err)
			}
			var raddr netip.AddrPort
			if cfg.VPN.Remote != "" {
				if raddr, err = netip.ParseAddrPort(cfg.VPN.Remote); err != nil {
					return fmt.Errorf("invalid remote address: %w", err)
				}
			}

			entry := baseLog.WithField("component", "vpn")
			n, err := node.NewNode(d, entry)
			if err != nil {
				return err
			}
			defer n.Close()

			c, err := conn.NewConn(laddr)
			if err != nil {
				return fmt.Errorf("error listening on %s: %w", laddr, err)
			}

			ctx, cancel := signalContext()
			defer cancel()

			return n.Tunnel(ctx, c, raddr)
		},
	}

	dev.register(cmd)
	cmd.Flags().StringVar(&listen, "listen", config.Default().VPN.Listen, "local udp address")
	cmd.Flags().StringVar(&remote, "remote", "", "peer udp address, learned from the first datagram when empty")
	return cmd
}
