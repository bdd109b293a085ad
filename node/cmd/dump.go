package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/caldog20/tuntap/node"
)

func NewDumpCommand() *cobra.Command {
	var dev deviceFlags

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "print every frame that arrives on the device as hex",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := dev.apply(cmd, cfg)
			if err != nil {
				return err
			}

			entry := baseLog.WithFields(log.Fields{"component": "dump"})
			n, err := node.NewNode(d, entry)
			if err != nil {
				return err
			}
			defer n.Close()

			ctx, cancel := signalContext()
			defer cancel()

			if err := n.Dump(ctx, os.Stdout); err != nil {
				return err
			}
			entry.Infof("done: %s", n.Stats())
			return nil
		},
	}

	dev.register(cmd)
	return cmd
}
